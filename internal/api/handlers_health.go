// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/recsync/internal/eventprocessor"
	"github.com/tomtom215/recsync/internal/models"
)

// LivenessResponse reports that the process is serving.
type LivenessResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HealthLive godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse{data=LivenessResponse}
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, LivenessResponse{
		Status:        "alive",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}, start)
}

// HealthReady godoc
// @Summary Readiness probe
// @Description Aggregated component health. Degraded components keep the service ready; an unhealthy one returns 503.
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse{data=eventprocessor.OverallHealth}
// @Failure 503 {object} models.APIResponse{data=eventprocessor.OverallHealth}
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.health == nil {
		respondSuccess(w, eventprocessor.OverallHealth{
			Healthy:    true,
			Status:     eventprocessor.HealthStatusHealthy,
			Timestamp:  time.Now(),
			Components: map[string]eventprocessor.ComponentHealth{},
		}, start)
		return
	}

	overall := h.health.CheckAll(r.Context())
	if overall.Status == eventprocessor.HealthStatusUnhealthy {
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status: "error",
			Data:   overall,
			Metadata: models.Metadata{
				Timestamp:   time.Now(),
				QueryTimeMS: time.Since(start).Milliseconds(),
			},
			Error: &models.APIError{Code: ErrCodeServiceUnavailable, Message: "one or more components are unhealthy"},
		})
		return
	}
	respondSuccess(w, overall, start)
}
