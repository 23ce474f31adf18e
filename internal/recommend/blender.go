// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pourcast/pourcast/internal/metrics"
)

// CandidateSource serves precomputed per-user candidates. Implemented by
// the Manager for the factorization model.
type CandidateSource interface {
	Candidates(userID int64) []Candidate
}

// Personalizer produces personalized scored candidates honoring an
// exclusion set. Implemented by ContentPredictor.
type Personalizer interface {
	Recommend(ctx context.Context, userID int64, n int, exclude []int64) ([]Candidate, error)
}

// Filler fills residual slots with item IDs honoring an exclusion set.
// Implemented by Sampler.
type Filler interface {
	Sample(ctx context.Context, n int, userID int64, exclude []int64) ([]int64, error)
}

// Blender assembles the final list by concatenating producers in priority
// order: factorization picks first, then content picks, then sampled fills.
//
// Each stage receives the union of earlier picks as its exclusion set, so
// the output can never contain duplicates. Shortfall rolls forward only: a
// stage that under-fills enlarges the quotas of later stages, never the
// other way around.
type Blender struct {
	cfg     Config
	fact    CandidateSource
	content Personalizer
	sampler Filler
	logger  zerolog.Logger
}

// NewBlender creates a blender over the three producers.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBlender(cfg Config, fact CandidateSource, content Personalizer, sampler Filler, logger zerolog.Logger) *Blender {
	return &Blender{
		cfg:     cfg,
		fact:    fact,
		content: content,
		sampler: sampler,
		logger:  logger.With().Str("component", "blender").Logger(),
	}
}

// Recommend produces the blended list for one user.
func (b *Blender) Recommend(ctx context.Context, userID int64) (*Response, error) {
	total := b.cfg.TotalRecommendations
	items := make([]RecommendedItem, 0, total)
	exclude := make([]int64, 0, total)

	factPicks := b.fact.Candidates(userID)
	if len(factPicks) > b.cfg.FactorizationQuota {
		factPicks = factPicks[:b.cfg.FactorizationQuota]
	}
	for _, c := range factPicks {
		items = append(items, RecommendedItem{AlcoholID: c.AlcoholID, Source: SourceFactorization})
		exclude = append(exclude, c.AlcoholID)
	}

	contentN := total - len(items) - b.cfg.FallbackReserve
	if contentN > 0 {
		contentPicks, err := b.content.Recommend(ctx, userID, contentN, exclude)
		if err != nil {
			return nil, fmt.Errorf("content stage: %w", err)
		}
		for _, c := range contentPicks {
			items = append(items, RecommendedItem{AlcoholID: c.AlcoholID, Source: SourceContent})
			exclude = append(exclude, c.AlcoholID)
		}
	}

	if fillN := total - len(items); fillN > 0 {
		sampled, err := b.sampler.Sample(ctx, fillN, userID, exclude)
		if err != nil {
			return nil, fmt.Errorf("fallback stage: %w", err)
		}
		for _, id := range sampled {
			items = append(items, RecommendedItem{AlcoholID: id, Source: SourcePopularity})
		}
	}

	metrics.RecommendRequests.Inc()
	counts := map[string]int{}
	for _, it := range items {
		counts[it.Source]++
	}
	for source, n := range counts {
		metrics.RecommendSourceItems.WithLabelValues(source).Add(float64(n))
	}
	if len(items) < total {
		metrics.RecommendShortfall.Inc()
		b.logger.Debug().
			Int64("user_id", userID).
			Int("got", len(items)).
			Int("want", total).
			Msg("blended list under-filled")
	}

	return &Response{
		UserID:      userID,
		Items:       items,
		GeneratedAt: time.Now(),
	}, nil
}
