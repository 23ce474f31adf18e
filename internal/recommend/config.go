// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package recommend

import "fmt"

// Config controls the blended recommendation pipeline.
type Config struct {
	// TotalRecommendations is the final blended list length.
	TotalRecommendations int `json:"total_recommendations"`

	// FactorizationQuota is the number of head slots reserved for the
	// factorization predictor.
	FactorizationQuota int `json:"factorization_quota"`

	// FallbackReserve is withheld from the content quota so the sampler
	// always has room to diversify the tail.
	FallbackReserve int `json:"fallback_reserve"`

	// SimilarityFloor is the strict lower bound applied to graph queries.
	SimilarityFloor float64 `json:"similarity_floor"`

	// GraphQueryLimit caps edges fetched per content scoring query.
	GraphQueryLimit int `json:"graph_query_limit"`

	// PopularityPoolSize is the size of the sampler's top-rated pool.
	PopularityPoolSize int `json:"popularity_pool_size"`

	// CandidatesPerUser caps the precomputed factorization slice.
	CandidatesPerUser int `json:"candidates_per_user"`

	// Seed seeds the sampler. 0 means time-seeded.
	Seed int64 `json:"seed"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TotalRecommendations: 10,
		FactorizationQuota:   4,
		FallbackReserve:      2,
		SimilarityFloor:      0.2,
		GraphQueryLimit:      400,
		PopularityPoolSize:   500,
		CandidatesPerUser:    10,
	}
}

// Validate checks pipeline invariants.
func (c Config) Validate() error {
	if c.TotalRecommendations <= 0 {
		return fmt.Errorf("total_recommendations must be positive, got %d", c.TotalRecommendations)
	}
	if c.FactorizationQuota < 0 || c.FallbackReserve < 0 {
		return fmt.Errorf("quotas must be non-negative")
	}
	if c.FactorizationQuota+c.FallbackReserve > c.TotalRecommendations {
		return fmt.Errorf("factorization_quota (%d) + fallback_reserve (%d) exceeds total_recommendations (%d)",
			c.FactorizationQuota, c.FallbackReserve, c.TotalRecommendations)
	}
	if c.SimilarityFloor < 0 || c.SimilarityFloor >= 1 {
		return fmt.Errorf("similarity_floor must be in [0, 1), got %f", c.SimilarityFloor)
	}
	if c.GraphQueryLimit <= 0 {
		return fmt.Errorf("graph_query_limit must be positive, got %d", c.GraphQueryLimit)
	}
	if c.PopularityPoolSize <= 0 {
		return fmt.Errorf("popularity_pool_size must be positive, got %d", c.PopularityPoolSize)
	}
	if c.CandidatesPerUser <= 0 {
		return fmt.Errorf("candidates_per_user must be positive, got %d", c.CandidatesPerUser)
	}
	return nil
}
