// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

// Package config defines the layered application configuration.
//
// Configuration is resolved in three layers with increasing priority:
// built-in defaults, an optional YAML file, and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Pourcast server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Snapshots SnapshotConfig  `koanf:"snapshots"`
	Recommend RecommendConfig `koanf:"recommend"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// DatabaseConfig holds DuckDB settings. An empty Path opens an in-memory
// database, which is what the tests use.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
}

// SnapshotConfig holds model snapshot store settings.
type SnapshotConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// RecommendConfig holds recommendation pipeline settings.
type RecommendConfig struct {
	// TotalRecommendations is the final blended list length.
	TotalRecommendations int `koanf:"total_recommendations" validate:"gt=0"`

	// FactorizationQuota is the number of slots reserved for the
	// factorization predictor at the head of the list.
	FactorizationQuota int `koanf:"factorization_quota" validate:"gte=0"`

	// FallbackReserve is the number of slots withheld from the content
	// predictor so the popularity sampler always has room to diversify.
	FallbackReserve int `koanf:"fallback_reserve" validate:"gte=0"`

	// SimilarityFloor is the strict lower bound on edge similarity.
	// Edges with sim equal to the floor are excluded.
	SimilarityFloor float64 `koanf:"similarity_floor" validate:"gte=0,lt=1"`

	// GraphQueryLimit caps the number of edges fetched per scoring query.
	GraphQueryLimit int `koanf:"graph_query_limit" validate:"gt=0"`

	// PopularityPoolSize is the size of the sampler's top-rated pool.
	PopularityPoolSize int `koanf:"popularity_pool_size" validate:"gt=0"`

	// CandidatesPerUser caps the precomputed factorization slice per user.
	CandidatesPerUser int `koanf:"candidates_per_user" validate:"gt=0"`

	// Seed seeds the popularity sampler. 0 means time-seeded.
	Seed int64 `koanf:"seed"`

	FitOnStartup bool          `koanf:"fit_on_startup"`
	FitInterval  time.Duration `koanf:"fit_interval"`
	FitTimeout   time.Duration `koanf:"fit_timeout"`

	Content ContentTrainerConfig `koanf:"content"`
	ALS     ALSTrainerConfig     `koanf:"als"`
}

// ContentTrainerConfig holds content-similarity trainer settings.
type ContentTrainerConfig struct {
	// MaxEdgesPerItem caps outgoing edges per source item.
	MaxEdgesPerItem int `koanf:"max_edges_per_item" validate:"gt=0"`

	// MinTokenLength drops tokens shorter than this during vectorization.
	MinTokenLength int `koanf:"min_token_length" validate:"gt=0"`
}

// ALSTrainerConfig holds factorization trainer settings.
type ALSTrainerConfig struct {
	Factors        int     `koanf:"factors" validate:"gt=0"`
	Iterations     int     `koanf:"iterations" validate:"gt=0"`
	Regularization float64 `koanf:"regularization" validate:"gt=0"`
}

// APIConfig holds HTTP API behavior settings.
type APIConfig struct {
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gt=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	SimilarLimitMax   int           `koanf:"similar_limit_max" validate:"gt=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	r := c.Recommend
	if r.FactorizationQuota+r.FallbackReserve > r.TotalRecommendations {
		return fmt.Errorf("recommend: factorization_quota (%d) + fallback_reserve (%d) exceeds total_recommendations (%d)",
			r.FactorizationQuota, r.FallbackReserve, r.TotalRecommendations)
	}
	if r.FitInterval > 0 && r.FitInterval < time.Minute {
		return fmt.Errorf("recommend: fit_interval %s is below the 1m minimum", r.FitInterval)
	}
	return nil
}
