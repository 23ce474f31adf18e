// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pourcast/pourcast/internal/models"
)

// Pinger is the subset of the database used by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	db      Pinger
	version string
	started time.Time
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version, started: time.Now()}
}

// Health handles GET /health. Reports degraded with a 503 when the
// database is unreachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	dbStatus := "up"
	if err := h.db.Ping(ctx); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
		dbStatus = "down"
	}

	respondJSON(w, httpStatus, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"status":         status,
			"version":        h.version,
			"database":       dbStatus,
			"uptime_seconds": int64(time.Since(h.started).Seconds()),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}
