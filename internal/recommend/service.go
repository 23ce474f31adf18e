// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package recommend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Service is the single entry point for recommendation requests. It wires
// the lifecycle manager, the three producers and the blender together and
// is constructed once in main; there is no package-level instance.
type Service struct {
	cfg     Config
	manager *Manager
	content *ContentPredictor
	blender *Blender
	logger  zerolog.Logger
}

// NewService builds the full pipeline over the given stores and trainers.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewService(cfg Config, data DataProvider, graph GraphStore, snapshots SnapshotStore,
	contentTr ContentTrainer, factTr FactorizationTrainer, logger zerolog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("recommend config: %w", err)
	}

	manager := NewManager(cfg, data, graph, snapshots, contentTr, factTr, logger)
	content := NewContentPredictor(graph, data, cfg)
	sampler := NewSampler(data, cfg)
	blender := NewBlender(cfg, manager, content, sampler, logger)

	return &Service{
		cfg:     cfg,
		manager: manager,
		content: content,
		blender: blender,
		logger:  logger.With().Str("component", "recommend-service").Logger(),
	}, nil
}

// Config returns the pipeline configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Recommend produces the blended list for one user, lazily loading (or
// first-fitting) both models.
func (s *Service) Recommend(ctx context.Context, userID int64) (*Response, error) {
	for _, mt := range ModelTypes {
		if err := s.manager.EnsureLoaded(ctx, mt); err != nil {
			return nil, fmt.Errorf("load %s model: %w", mt, err)
		}
	}
	return s.blender.Recommend(ctx, userID)
}

// SimilarTo returns the most similar catalog items to one item.
func (s *Service) SimilarTo(ctx context.Context, alcoholID int64, limit int) ([]SimilarityEdge, error) {
	if err := s.manager.EnsureLoaded(ctx, ModelContentSimilarity); err != nil {
		return nil, fmt.Errorf("load %s model: %w", ModelContentSimilarity, err)
	}
	return s.content.SimilarTo(ctx, alcoholID, limit)
}

// Fit refits one model. Returns ErrFitInProgress if it is already running.
func (s *Service) Fit(ctx context.Context, mt ModelType) error {
	return s.manager.Fit(ctx, mt)
}

// FitAll refits all models.
func (s *Service) FitAll(ctx context.Context) error {
	return s.manager.FitAll(ctx)
}

// Fitting reports whether any fit is currently running.
func (s *Service) Fitting() bool {
	return s.manager.Fitting()
}

// Invalidate marks a model stale so the next request reloads its snapshot.
func (s *Service) Invalidate(mt ModelType) error {
	return s.manager.Invalidate(mt)
}

// Status reports all model lifecycle states.
func (s *Service) Status() []ModelStatus {
	return s.manager.Status()
}
