// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

// Package services wraps long-running components as suture services so the
// supervisor can restart them independently.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pourcast/pourcast/internal/recommend"
)

// Fitter is the subset of the recommendation service the fit loop uses.
type Fitter interface {
	FitAll(ctx context.Context) error
}

// FitConfig controls the periodic refit loop.
type FitConfig struct {
	// FitOnStartup triggers a fit when the service starts.
	FitOnStartup bool

	// Interval between scheduled refits. Zero disables the loop after the
	// optional startup fit.
	Interval time.Duration

	// Timeout bounds a single fit run.
	Timeout time.Duration
}

// FitService periodically refits the recommendation models. It implements
// suture.Service.
type FitService struct {
	fitter Fitter
	cfg    FitConfig
	logger zerolog.Logger
}

// NewFitService creates the refit service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewFitService(fitter Fitter, cfg FitConfig, logger zerolog.Logger) *FitService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &FitService{
		fitter: fitter,
		cfg:    cfg,
		logger: logger.With().Str("component", "fit-service").Logger(),
	}
}

// Serve implements suture.Service. A failed scheduled fit is logged and the
// loop continues; the models keep serving the previous snapshot.
func (s *FitService) Serve(ctx context.Context) error {
	if s.cfg.FitOnStartup {
		s.run(ctx)
	}

	if s.cfg.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *FitService) run(ctx context.Context) {
	fitCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := s.fitter.FitAll(fitCtx)
	switch {
	case err == nil:
		s.logger.Info().Dur("duration", time.Since(start)).Msg("scheduled fit completed")
	case errors.Is(err, recommend.ErrFitInProgress):
		s.logger.Info().Msg("scheduled fit skipped, another fit is running")
	default:
		s.logger.Error().Err(err).Msg("scheduled fit failed, previous models remain in service")
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *FitService) String() string {
	return "fit-service"
}
