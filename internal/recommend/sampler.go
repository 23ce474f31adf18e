// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package recommend

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Sampler draws uniform samples without replacement from the top-rated
// slice of the catalog. It backs the fallback stage of the blend and the
// cold-start path for users with no history.
type Sampler struct {
	data DataProvider
	cfg  Config

	// rng is guarded by mu; math/rand.Rand is not safe for concurrent use.
	rng *rand.Rand
	mu  sync.Mutex
}

// NewSampler creates a sampler. A zero seed falls back to the current time
// so production gets fresh draws while tests stay reproducible.
func NewSampler(data DataProvider, cfg Config) *Sampler {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sampler{
		data: data,
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(seed)), //nolint:gosec // sampling bias, not cryptography
	}
}

// Sample returns up to n item IDs drawn uniformly without replacement from
// the popularity pool, never including items the user has reviewed or items
// in exclude. If fewer than n survive exclusion, all survivors are returned.
func (s *Sampler) Sample(ctx context.Context, n int, userID int64, exclude []int64) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}

	pool, err := s.data.PopularityPool(ctx, s.cfg.PopularityPoolSize)
	if err != nil {
		return nil, fmt.Errorf("fetch popularity pool: %w", err)
	}

	reviews, err := s.data.UserReviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user reviews: %w", err)
	}

	excluded := make(map[int64]struct{}, len(reviews)+len(exclude))
	for _, r := range reviews {
		excluded[r.AlcoholID] = struct{}{}
	}
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	eligible := make([]int64, 0, len(pool))
	for _, id := range pool {
		if _, skip := excluded[id]; !skip {
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	if n > len(eligible) {
		n = len(eligible)
	}

	// Partial Fisher-Yates: the first n positions become the sample.
	s.mu.Lock()
	for i := 0; i < n; i++ {
		j := i + s.rng.Intn(len(eligible)-i)
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}
	s.mu.Unlock()

	return eligible[:n], nil
}
