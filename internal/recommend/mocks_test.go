// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// memData is an in-memory DataProvider for tests.
type memData struct {
	mu       sync.Mutex
	reviews  []Review
	alcohols []Alcohol
	pool     []int64

	userReviewsErr error
	allReviewsErr  error
	alcoholsErr    error
	poolErr        error
}

func (d *memData) UserReviews(_ context.Context, userID int64) ([]Review, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.userReviewsErr != nil {
		return nil, d.userReviewsErr
	}
	var out []Review
	for _, r := range d.reviews {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *memData) AllReviews(_ context.Context) ([]Review, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.allReviewsErr != nil {
		return nil, d.allReviewsErr
	}
	return append([]Review(nil), d.reviews...), nil
}

func (d *memData) Alcohols(_ context.Context) ([]Alcohol, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.alcoholsErr != nil {
		return nil, d.alcoholsErr
	}
	return append([]Alcohol(nil), d.alcohols...), nil
}

func (d *memData) PopularityPool(_ context.Context, size int) ([]int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.poolErr != nil {
		return nil, d.poolErr
	}
	if size > len(d.pool) {
		size = len(d.pool)
	}
	return append([]int64(nil), d.pool[:size]...), nil
}

// memGraph is an in-memory GraphStore mirroring the DuckDB query contract:
// strict floor, similarity descending, target ID ascending on ties.
type memGraph struct {
	mu       sync.Mutex
	edges    []SimilarityEdge
	rebuilds int

	rebuildErr error
	queryErr   error
}

func (g *memGraph) Rebuild(_ context.Context, edges []SimilarityEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rebuildErr != nil {
		return g.rebuildErr
	}
	g.edges = append([]SimilarityEdge(nil), edges...)
	g.rebuilds++
	return nil
}

func (g *memGraph) SimilarToAny(_ context.Context, sources, exclude []int64, floor float64, limit int) ([]SimilarityEdge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	srcSet := make(map[int64]struct{}, len(sources))
	for _, id := range sources {
		srcSet[id] = struct{}{}
	}
	exclSet := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		exclSet[id] = struct{}{}
	}

	var out []SimilarityEdge
	for _, e := range g.edges {
		if _, ok := srcSet[e.SourceID]; !ok {
			continue
		}
		if _, skip := exclSet[e.TargetID]; skip {
			continue
		}
		if e.Sim <= floor {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sim != out[j].Sim {
			return out[i].Sim > out[j].Sim
		}
		return out[i].TargetID < out[j].TargetID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *memGraph) SimilarTo(_ context.Context, alcoholID int64, floor float64, limit int) ([]SimilarityEdge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	var out []SimilarityEdge
	for _, e := range g.edges {
		if e.SourceID == alcoholID && e.Sim > floor {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sim != out[j].Sim {
			return out[i].Sim > out[j].Sim
		}
		return out[i].TargetID < out[j].TargetID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memSnapshots is an in-memory SnapshotStore.
type memSnapshots struct {
	mu     sync.Mutex
	states map[string]any
	metas  map[string]SnapshotMetadata
	puts   int

	putErr  error
	loadErr error
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{
		states: make(map[string]any),
		metas:  make(map[string]SnapshotMetadata),
	}
}

func (s *memSnapshots) Put(_ context.Context, tag string, state any, meta SnapshotMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.states[tag] = state
	s.metas[tag] = meta
	s.puts++
	return nil
}

func (s *memSnapshots) Load(_ context.Context, tag string, target any) (*SnapshotMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	state, ok := s.states[tag]
	if !ok {
		return nil, fmt.Errorf("snapshot %q: %w", tag, ErrSnapshotNotFound)
	}
	switch t := target.(type) {
	case *ContentModelState:
		*t = *state.(*ContentModelState)
	case *FactorizationModelState:
		*t = *state.(*FactorizationModelState)
	default:
		return nil, fmt.Errorf("unexpected target type %T", target)
	}
	meta := s.metas[tag]
	return &meta, nil
}

func (s *memSnapshots) Delete(_ context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, tag)
	delete(s.metas, tag)
	return nil
}

func (s *memSnapshots) Latest(tag string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.metas[tag]
	if !ok {
		return 0, false
	}
	return meta.Version, true
}

// stubContentTrainer returns a fixed state or error.
type stubContentTrainer struct {
	mu     sync.Mutex
	state  *ContentModelState
	err    error
	trains int
}

func (t *stubContentTrainer) Train(_ context.Context, _ []Alcohol) (*ContentModelState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trains++
	if t.err != nil {
		return nil, t.err
	}
	if t.state == nil {
		return &ContentModelState{}, nil
	}
	return t.state, nil
}

// stubFactTrainer returns a fixed state or error.
type stubFactTrainer struct {
	mu     sync.Mutex
	state  *FactorizationModelState
	err    error
	trains int
}

func (t *stubFactTrainer) Train(_ context.Context, _ []Review) (*FactorizationModelState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trains++
	if t.err != nil {
		return nil, t.err
	}
	if t.state == nil {
		return &FactorizationModelState{Candidates: map[int64][]Candidate{}}, nil
	}
	return t.state, nil
}

var (
	_ DataProvider         = (*memData)(nil)
	_ GraphStore           = (*memGraph)(nil)
	_ SnapshotStore        = (*memSnapshots)(nil)
	_ ContentTrainer       = (*stubContentTrainer)(nil)
	_ FactorizationTrainer = (*stubFactTrainer)(nil)
)
