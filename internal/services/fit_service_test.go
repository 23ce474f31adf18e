// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingFitter struct {
	calls atomic.Int64
	err   error
}

func (f *countingFitter) FitAll(context.Context) error {
	f.calls.Add(1)
	return f.err
}

func TestFitServiceFitOnStartup(t *testing.T) {
	fitter := &countingFitter{}
	svc := NewFitService(fitter, FitConfig{FitOnStartup: true}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// The startup fit runs before the service parks on the context.
	deadline := time.After(2 * time.Second)
	for fitter.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("startup fit never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got := fitter.calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 fit, got %d", got)
	}
}

func TestFitServiceNoStartupFit(t *testing.T) {
	fitter := &countingFitter{}
	svc := NewFitService(fitter, FitConfig{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if got := fitter.calls.Load(); got != 0 {
		t.Errorf("expected no fits, got %d", got)
	}
}

func TestFitServiceTicker(t *testing.T) {
	fitter := &countingFitter{}
	svc := NewFitService(fitter, FitConfig{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for fitter.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 scheduled fits, got %d", fitter.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestFitServiceSurvivesFitErrors(t *testing.T) {
	fitter := &countingFitter{err: errors.New("boom")}
	svc := NewFitService(fitter, FitConfig{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for fitter.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("loop stopped after fit error, got %d calls", fitter.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFitServiceString(t *testing.T) {
	svc := NewFitService(&countingFitter{}, FitConfig{}, zerolog.Nop())
	if svc.String() != "fit-service" {
		t.Errorf("unexpected name %q", svc.String())
	}
}
