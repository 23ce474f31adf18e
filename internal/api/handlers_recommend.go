// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pourcast/pourcast/internal/logging"
	"github.com/pourcast/pourcast/internal/models"
	"github.com/pourcast/pourcast/internal/recommend"
)

// coldFitTimeout bounds request-scoped work. It is generous because the
// first request after a cold start may trigger a synchronous fit.
const (
	coldFitTimeout  = 5 * time.Minute
	similarDefault  = 10
	backgroundFitTO = 30 * time.Minute
)

// Handler serves the recommendation API endpoints.
type Handler struct {
	svc             *recommend.Service
	similarLimitMax int
}

// NewHandler creates the API handler over the recommendation service.
func NewHandler(svc *recommend.Service, similarLimitMax int) *Handler {
	if similarLimitMax <= 0 {
		similarLimitMax = 50
	}
	return &Handler{svc: svc, similarLimitMax: similarLimitMax}
}

// recommendationsRequest carries the validated path parameters.
type recommendationsRequest struct {
	UserID int64 `validate:"gt=0"`
}

// GetRecommendations handles GET /api/v1/recommendations/{userID}.
// Returns the blended top-N list for a user.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_USER_ID", "Invalid user ID", err)
		return
	}
	if apiErr := validateRequest(&recommendationsRequest{UserID: userID}); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error:    apiErr,
		})
		return
	}

	// First request after a cold start may fit synchronously.
	ctx, cancel := context.WithTimeout(r.Context(), coldFitTimeout)
	defer cancel()

	start := time.Now()
	resp, err := h.svc.Recommend(ctx, userID)
	if err != nil {
		if errors.Is(err, recommend.ErrFitInProgress) {
			respondError(w, http.StatusServiceUnavailable, "MODEL_WARMING_UP", "Models are being fitted, retry shortly", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "RECOMMENDATION_ERROR", "Failed to generate recommendations", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   resp,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// GetSimilar handles GET /api/v1/alcohols/{alcoholID}/similar.
// Returns the most similar catalog items, similarity descending.
func (h *Handler) GetSimilar(w http.ResponseWriter, r *http.Request) {
	alcoholID, err := strconv.ParseInt(chi.URLParam(r, "alcoholID"), 10, 64)
	if err != nil || alcoholID <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_ALCOHOL_ID", "Invalid alcohol ID", err)
		return
	}

	limit := getIntParam(r, "limit", similarDefault)
	if limit <= 0 {
		limit = similarDefault
	}
	if limit > h.similarLimitMax {
		limit = h.similarLimitMax
	}

	ctx, cancel := context.WithTimeout(r.Context(), coldFitTimeout)
	defer cancel()

	start := time.Now()
	edges, err := h.svc.SimilarTo(ctx, alcoholID, limit)
	if err != nil {
		if errors.Is(err, recommend.ErrFitInProgress) {
			respondError(w, http.StatusServiceUnavailable, "MODEL_WARMING_UP", "Models are being fitted, retry shortly", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "SIMILARITY_ERROR", "Failed to find similar items", err)
		return
	}
	if edges == nil {
		edges = []recommend.SimilarityEdge{}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alcohol_id": alcoholID,
			"similar":    edges,
			"count":      len(edges),
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// TriggerFit handles POST /api/v1/models/fit.
// Starts a background refit of all models; 409 if one is already running.
func (h *Handler) TriggerFit(w http.ResponseWriter, r *http.Request) {
	if h.svc.Fitting() {
		respondError(w, http.StatusConflict, "FIT_IN_PROGRESS", "A model fit is already in progress", nil)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundFitTO)
		defer cancel()

		if err := h.svc.FitAll(ctx); err != nil {
			logging.Error().Err(err).Msg("model fit failed")
		} else {
			logging.Info().Msg("model fit completed")
		}
	}()

	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status: "success",
		Data: map[string]string{
			"message": "Model fit started",
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// GetModelStatus handles GET /api/v1/models/status.
// Returns per-model lifecycle state, version and training counts.
func (h *Handler) GetModelStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"models": h.svc.Status(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// InvalidateModels handles POST /api/v1/models/invalidate.
// Marks all models stale so the next request reloads snapshots; used after
// another process has refitted against the shared store.
func (h *Handler) InvalidateModels(w http.ResponseWriter, r *http.Request) {
	for _, mt := range recommend.ModelTypes {
		if err := h.svc.Invalidate(mt); err != nil {
			respondError(w, http.StatusInternalServerError, "INVALIDATE_ERROR", "Failed to invalidate models", err)
			return
		}
	}

	logging.Ctx(r.Context()).Info().Msg("models invalidated via API")

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]string{
			"message": "Models marked stale",
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}
