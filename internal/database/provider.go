// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package database

import (
	"context"

	"github.com/pourcast/pourcast/internal/recommend"
)

// RecommendationDataProvider adapts DB to the recommend package's
// DataProvider and GraphStore interfaces.
type RecommendationDataProvider struct {
	db *DB
}

// NewRecommendationDataProvider creates a provider over the database.
func NewRecommendationDataProvider(db *DB) *RecommendationDataProvider {
	return &RecommendationDataProvider{db: db}
}

// UserReviews implements recommend.DataProvider.
func (p *RecommendationDataProvider) UserReviews(ctx context.Context, userID int64) ([]recommend.Review, error) {
	return p.db.GetUserReviews(ctx, userID)
}

// AllReviews implements recommend.DataProvider.
func (p *RecommendationDataProvider) AllReviews(ctx context.Context) ([]recommend.Review, error) {
	return p.db.GetAllReviews(ctx)
}

// Alcohols implements recommend.DataProvider.
func (p *RecommendationDataProvider) Alcohols(ctx context.Context) ([]recommend.Alcohol, error) {
	return p.db.GetAlcohols(ctx)
}

// PopularityPool implements recommend.DataProvider.
func (p *RecommendationDataProvider) PopularityPool(ctx context.Context, size int) ([]int64, error) {
	return p.db.GetPopularityPool(ctx, size)
}

// Rebuild implements recommend.GraphStore.
func (p *RecommendationDataProvider) Rebuild(ctx context.Context, edges []recommend.SimilarityEdge) error {
	return p.db.RebuildSimilarityGraph(ctx, edges)
}

// SimilarToAny implements recommend.GraphStore.
func (p *RecommendationDataProvider) SimilarToAny(ctx context.Context, sources, exclude []int64, floor float64, limit int) ([]recommend.SimilarityEdge, error) {
	return p.db.QuerySimilarToAny(ctx, sources, exclude, floor, limit)
}

// SimilarTo implements recommend.GraphStore.
func (p *RecommendationDataProvider) SimilarTo(ctx context.Context, alcoholID int64, floor float64, limit int) ([]recommend.SimilarityEdge, error) {
	return p.db.QuerySimilarTo(ctx, alcoholID, floor, limit)
}

var (
	_ recommend.DataProvider = (*RecommendationDataProvider)(nil)
	_ recommend.GraphStore   = (*RecommendationDataProvider)(nil)
)
