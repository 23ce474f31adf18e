// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

// Command server runs the Pourcast recommendation API: a DuckDB-backed
// similarity graph, Badger model snapshots and a blended recommendation
// pipeline behind a Chi HTTP server, supervised by suture.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/pourcast/pourcast/internal/api"
	"github.com/pourcast/pourcast/internal/config"
	"github.com/pourcast/pourcast/internal/database"
	"github.com/pourcast/pourcast/internal/logging"
	"github.com/pourcast/pourcast/internal/recommend"
	"github.com/pourcast/pourcast/internal/recommend/storage"
	"github.com/pourcast/pourcast/internal/services"
	"github.com/pourcast/pourcast/internal/trainer"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logger.Info().Str("version", version).Msg("starting pourcast")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("database close failed")
		}
	}()

	snapshots, err := storage.New(storage.Config{
		Path:     cfg.Snapshots.Path,
		InMemory: cfg.Snapshots.InMemory,
	})
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			logger.Warn().Err(err).Msg("snapshot store close failed")
		}
	}()

	contentTr := trainer.NewContentSimilarity(trainer.ContentConfig{
		SimilarityFloor: cfg.Recommend.SimilarityFloor,
		MaxEdgesPerItem: cfg.Recommend.Content.MaxEdgesPerItem,
		MinTokenLength:  cfg.Recommend.Content.MinTokenLength,
	}, logger)
	factTr := trainer.NewALS(trainer.ALSConfig{
		Factors:           cfg.Recommend.ALS.Factors,
		Iterations:        cfg.Recommend.ALS.Iterations,
		Regularization:    cfg.Recommend.ALS.Regularization,
		CandidatesPerUser: cfg.Recommend.CandidatesPerUser,
	}, logger)

	provider := database.NewRecommendationDataProvider(db)
	svc, err := recommend.NewService(recommend.Config{
		TotalRecommendations: cfg.Recommend.TotalRecommendations,
		FactorizationQuota:   cfg.Recommend.FactorizationQuota,
		FallbackReserve:      cfg.Recommend.FallbackReserve,
		SimilarityFloor:      cfg.Recommend.SimilarityFloor,
		GraphQueryLimit:      cfg.Recommend.GraphQueryLimit,
		PopularityPoolSize:   cfg.Recommend.PopularityPoolSize,
		CandidatesPerUser:    cfg.Recommend.CandidatesPerUser,
		Seed:                 cfg.Recommend.Seed,
	}, provider, provider, snapshots, contentTr, factTr, logger)
	if err != nil {
		return fmt.Errorf("build recommendation service: %w", err)
	}

	handler := api.NewHandler(svc, cfg.API.SimilarLimitMax)
	health := api.NewHealthHandler(db, version)
	router := api.NewRouter(cfg, handler, health)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	sup := suture.New("pourcast", suture.Spec{
		EventHook: supervisorEventHook(logger.With().Str("component", "supervisor").Logger()),
	})
	sup.Add(services.NewHTTPService(server, 10*time.Second, logger))
	sup.Add(services.NewFitService(svc, services.FitConfig{
		FitOnStartup: cfg.Recommend.FitOnStartup,
		Interval:     cfg.Recommend.FitInterval,
		Timeout:      cfg.Recommend.FitTimeout,
	}, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("addr", server.Addr).
		Str("database", cfg.Database.Path).
		Str("snapshots", cfg.Snapshots.Path).
		Msg("pourcast ready")

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logger.Info().Msg("pourcast stopped")
	return nil
}

// supervisorEventHook adapts suture events to the zerolog logger.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func supervisorEventHook(logger zerolog.Logger) suture.EventHook {
	return func(e suture.Event) {
		switch e.Type() {
		case suture.EventTypeServiceTerminate, suture.EventTypeServicePanic:
			logger.Warn().Interface("event", e.Map()).Msg(e.String())
		default:
			logger.Info().Interface("event", e.Map()).Msg(e.String())
		}
	}
}
