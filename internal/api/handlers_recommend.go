// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/auth"
	"github.com/tomtom215/recsync/internal/logging"
	"github.com/tomtom215/recsync/internal/recommend"
)

// Recommendations godoc
// @Summary Get recommendations for the caller
// @Description Personalized recommendations ranked by genre relevance. Users without a profile get popular items.
// @Tags Recommendations
// @Produce json
// @Param limit query int false "Page size (default 10, max 100)"
// @Param offset query int false "Items to skip"
// @Success 200 {object} models.APIResponse{data=recommend.Response}
// @Failure 400 {object} models.APIResponse
// @Failure 401 {object} models.APIResponse
// @Failure 500 {object} models.APIResponse
// @Security BearerAuth
// @Router /recommendations [get]
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	subject := auth.GetAuthSubject(r.Context())
	if subject == nil {
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required", nil)
		return
	}

	userID, err := uuid.Parse(subject.ID)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "subject is not a valid user id", nil)
		return
	}

	h.serveRecommendations(w, r, userID)
}

// UserRecommendations godoc
// @Summary Get recommendations for any user
// @Description Same as /recommendations but for the user in the path. Requires the admin role.
// @Tags Recommendations
// @Produce json
// @Param userID path string true "User UUID"
// @Param limit query int false "Page size (default 10, max 100)"
// @Param offset query int false "Items to skip"
// @Success 200 {object} models.APIResponse{data=recommend.Response}
// @Failure 400 {object} models.APIResponse
// @Failure 403 {object} models.APIResponse
// @Security BearerAuth
// @Router /recommendations/user/{userID} [get]
func (h *Handler) UserRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil || userID == uuid.Nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "userID must be a valid UUID", nil)
		return
	}

	h.serveRecommendations(w, r, userID)
}

func (h *Handler) serveRecommendations(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	start := time.Now()

	page, verr := parsePage(r)
	if verr != nil {
		respondValidation(w, verr)
		return
	}

	resp, err := h.recommender.Recommend(r.Context(), recommend.Request{
		UserID:    userID,
		Limit:     page.Limit,
		Offset:    page.Offset,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		if errors.Is(err, recommend.ErrNilUser) {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "user id must not be nil", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeRecommendation, "failed to generate recommendations", err)
		return
	}

	respondSuccess(w, resp, start)
}
