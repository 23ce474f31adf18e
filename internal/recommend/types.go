// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

// Package recommend implements the blended recommendation pipeline.
//
// Three producers feed a fixed-length blended list: a factorization
// predictor serving precomputed per-user candidates, a content-similarity
// predictor scoring targets of the similarity graph against the user's own
// ratings, and a popularity-biased sampler that fills whatever is left.
// The Manager owns the model lifecycle (lazy loading, snapshot persistence
// and refits); Service is the single entry point wired in main.
package recommend

import (
	"context"
	"time"
)

// Review is one user rating of a catalog item. Ratings are 1.0-5.0;
// callers are expected to validate before handing reviews to this package.
type Review struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	AlcoholID int64     `json:"alcohol_id"`
	Rating    float64   `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// Alcohol is a catalog item with the text attributes the content trainer
// vectorizes.
type Alcohol struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Types       []string `json:"types"`
	Description string   `json:"description"`
	Taste       []string `json:"taste"`
	Aroma       []string `json:"aroma"`
	Finish      []string `json:"finish"`
	Country     string   `json:"country"`
	AvgRating   float64  `json:"avg_rating"`
}

// SimilarityEdge is a directed weighted edge of the similarity graph.
type SimilarityEdge struct {
	SourceID int64   `json:"source_id"`
	TargetID int64   `json:"target_id"`
	Sim      float64 `json:"sim"`
}

// Candidate is a scored catalog item produced by a predictor.
type Candidate struct {
	AlcoholID int64   `json:"alcohol_id"`
	Score     float64 `json:"score"`
}

// Recommendation sources, in blend priority order.
const (
	SourceFactorization = "factorization"
	SourceContent       = "content"
	SourcePopularity    = "popularity"
)

// RecommendedItem is one entry of the blended list with its producing source.
type RecommendedItem struct {
	AlcoholID int64  `json:"alcohol_id"`
	Source    string `json:"source"`
}

// Response is the result of a blended recommendation request.
type Response struct {
	UserID      int64             `json:"user_id"`
	Items       []RecommendedItem `json:"items"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// ModelType identifies a trainable model. The string value doubles as the
// snapshot store tag.
type ModelType string

const (
	ModelContentSimilarity ModelType = "content-similarity"
	ModelFactorization     ModelType = "factorization"
)

// ModelTypes lists all trainable models.
var ModelTypes = []ModelType{ModelContentSimilarity, ModelFactorization}

// ModelState is the lifecycle state of a model.
type ModelState int

const (
	StateUnloaded ModelState = iota
	StateLoading
	StateReady
	StateStale
)

// String returns the lowercase state name.
func (s ModelState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// ModelStatus describes one model for the status endpoint.
type ModelStatus struct {
	Type      ModelType `json:"type"`
	State     string    `json:"state"`
	Version   int       `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Fitting   bool      `json:"fitting"`
	ItemCount int       `json:"item_count,omitempty"`
	UserCount int       `json:"user_count,omitempty"`
	EdgeCount int       `json:"edge_count,omitempty"`
}

// ContentModelState is the serializable artifact of a content-similarity
// fit. The edge list is both the snapshot payload and the input to the
// graph rebuild, so a cold load can restore the graph without retraining.
type ContentModelState struct {
	Items []int64
	Edges []SimilarityEdge
}

// FactorizationModelState is the serializable artifact of a factorization
// fit: precomputed top candidates per user, score descending.
type FactorizationModelState struct {
	Candidates map[int64][]Candidate
}

// SnapshotMetadata describes one persisted model snapshot.
type SnapshotMetadata struct {
	Tag           string    `json:"tag"`
	SchemaVersion int       `json:"schema_version"`
	Version       int       `json:"version"`
	TrainedAt     time.Time `json:"trained_at"`
	SavedAt       time.Time `json:"saved_at"`
	ItemCount     int       `json:"item_count"`
	UserCount     int       `json:"user_count"`
	EdgeCount     int       `json:"edge_count"`
	Checksum      string    `json:"checksum"`
	SizeBytes     int64     `json:"size_bytes"`
}

// DataProvider supplies reviews and catalog data to the pipeline.
type DataProvider interface {
	// UserReviews returns all reviews by one user.
	UserReviews(ctx context.Context, userID int64) ([]Review, error)

	// AllReviews returns the full review set for training.
	AllReviews(ctx context.Context) ([]Review, error)

	// Alcohols returns the full catalog for training.
	Alcohols(ctx context.Context) ([]Alcohol, error)

	// PopularityPool returns up to size catalog item IDs ordered by average
	// rating descending. Unreviewed items are eligible and rank last.
	PopularityPool(ctx context.Context, size int) ([]int64, error)
}

// GraphStore is the similarity graph behind the content predictor.
type GraphStore interface {
	// Rebuild atomically replaces the full edge set.
	Rebuild(ctx context.Context, edges []SimilarityEdge) error

	// SimilarToAny returns edges whose source is in sources, whose target
	// is not in exclude and whose similarity is strictly greater than
	// floor, ordered by similarity descending, capped at limit.
	SimilarToAny(ctx context.Context, sources, exclude []int64, floor float64, limit int) ([]SimilarityEdge, error)

	// SimilarTo returns the outgoing edges of one item whose similarity is
	// strictly greater than floor, similarity descending, capped at limit.
	SimilarTo(ctx context.Context, alcoholID int64, floor float64, limit int) ([]SimilarityEdge, error)
}

// SnapshotStore persists versioned model snapshots keyed by model-type tag.
// Put overwrites any previous snapshot for the tag; Delete is idempotent.
type SnapshotStore interface {
	Put(ctx context.Context, tag string, state any, meta SnapshotMetadata) error
	Load(ctx context.Context, tag string, target any) (*SnapshotMetadata, error)
	Delete(ctx context.Context, tag string) error
	Latest(tag string) (int, bool)
}

// ContentTrainer builds a content-similarity model from the catalog.
type ContentTrainer interface {
	Train(ctx context.Context, items []Alcohol) (*ContentModelState, error)
}

// FactorizationTrainer builds a factorization model from the review set.
type FactorizationTrainer interface {
	Train(ctx context.Context, reviews []Review) (*FactorizationModelState, error)
}
