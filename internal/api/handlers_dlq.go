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
	"github.com/goccy/go-json"

	"github.com/tomtom215/recsync/internal/eventprocessor"
	"github.com/tomtom215/recsync/internal/validation"
)

const (
	defaultDLQPageSize = 50
	maxDLQPageSize     = 1000
)

// DLQEntryView is the operator view of a dead-lettered message.
type DLQEntryView struct {
	ID            string            `json:"id"`
	Topic         string            `json:"topic"`
	Kind          string            `json:"kind,omitempty"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
	PayloadText   string            `json:"payload_text,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	OriginalError string            `json:"original_error"`
	LastError     string            `json:"last_error"`
	Category      string            `json:"category"`
	Status        string            `json:"status"`
	RetryCount    int               `json:"retry_count"`
	MaxRetries    int               `json:"max_retries"`
	FirstFailure  time.Time         `json:"first_failure"`
	LastFailure   time.Time         `json:"last_failure"`
	NextRetry     time.Time         `json:"next_retry"`
}

// DLQListResponse is one page of entries.
type DLQListResponse struct {
	Entries []DLQEntryView `json:"entries"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// DLQRetryAllResponse reports a bulk retry.
type DLQRetryAllResponse struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// DLQCleanupResponse reports how many expired entries were dropped.
type DLQCleanupResponse struct {
	Removed int `json:"removed"`
}

func (h *Handler) entryView(e *eventprocessor.DLQEntry) DLQEntryView {
	v := DLQEntryView{
		ID:            e.ID,
		Topic:         e.Topic,
		Kind:          string(e.Kind),
		Metadata:      e.Metadata,
		OriginalError: e.OriginalError,
		LastError:     e.LastError,
		Category:      e.Category.String(),
		Status:        h.dlq.Status(e),
		RetryCount:    e.RetryCount,
		MaxRetries:    h.dlq.MaxRetries(),
		FirstFailure:  e.FirstFailure,
		LastFailure:   e.LastFailure,
		NextRetry:     e.NextRetry,
	}
	if json.Valid(e.Payload) {
		v.Payload = json.RawMessage(e.Payload)
	} else {
		v.PayloadText = string(e.Payload)
	}
	return v
}

// dlqAvailable answers 503 when the service runs without a DLQ.
func (h *Handler) dlqAvailable(w http.ResponseWriter, r *http.Request) bool {
	if h.dlq == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "dead letter queue is not enabled", nil)
		return false
	}
	return true
}

// DLQList godoc
// @Summary List dead-lettered events
// @Tags DLQ
// @Produce json
// @Param limit query int false "Page size (default 50, max 1000)"
// @Param offset query int false "Entries to skip"
// @Param category query string false "Error category filter"
// @Success 200 {object} models.APIResponse{data=DLQListResponse}
// @Failure 400 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Security BearerAuth
// @Router /admin/dlq [get]
func (h *Handler) DLQList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}

	page, verr := parsePage(r)
	if verr != nil {
		respondValidation(w, verr)
		return
	}
	req := DLQListRequest{PageRequest: page, Category: r.URL.Query().Get("category")}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, verr)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultDLQPageSize
	}
	if req.Limit > maxDLQPageSize {
		req.Limit = maxDLQPageSize
	}

	entries, total := h.dlq.List(req.Offset, req.Limit, req.Category)
	views := make([]DLQEntryView, len(entries))
	for i, e := range entries {
		views[i] = h.entryView(e)
	}

	respondSuccess(w, DLQListResponse{
		Entries: views,
		Total:   total,
		Limit:   req.Limit,
		Offset:  req.Offset,
	}, start)
}

// DLQStats godoc
// @Summary DLQ statistics
// @Tags DLQ
// @Produce json
// @Success 200 {object} models.APIResponse{data=eventprocessor.DLQStats}
// @Security BearerAuth
// @Router /admin/dlq/stats [get]
func (h *Handler) DLQStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}
	respondSuccess(w, h.dlq.Stats(), start)
}

// DLQGet godoc
// @Summary Get one DLQ entry
// @Tags DLQ
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} models.APIResponse{data=DLQEntryView}
// @Failure 404 {object} models.APIResponse
// @Security BearerAuth
// @Router /admin/dlq/{id} [get]
func (h *Handler) DLQGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}

	entry, err := h.dlq.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.respondDLQError(w, r, err)
		return
	}
	respondSuccess(w, h.entryView(entry), start)
}

// DLQRetry godoc
// @Summary Replay one DLQ entry now
// @Description Runs the entry through its handler in-process. The entry is removed on success.
// @Tags DLQ
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Security BearerAuth
// @Router /admin/dlq/{id}/retry [post]
func (h *Handler) DLQRetry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.dlq.Retry(r.Context(), id); err != nil {
		if errors.Is(err, eventprocessor.ErrEntryNotFound) {
			h.respondDLQError(w, r, err)
			return
		}
		respondError(w, r, http.StatusConflict, ErrCodeRetryFailed, "retry failed: "+err.Error(), err)
		return
	}
	respondSuccess(w, map[string]string{"id": id, "result": "retried"}, start)
}

// DLQRetryAll godoc
// @Summary Replay every DLQ entry with retries left
// @Tags DLQ
// @Produce json
// @Success 200 {object} models.APIResponse{data=DLQRetryAllResponse}
// @Security BearerAuth
// @Router /admin/dlq/retry [post]
func (h *Handler) DLQRetryAll(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}
	ok, failed := h.dlq.RetryAll(r.Context())
	respondSuccess(w, DLQRetryAllResponse{Succeeded: ok, Failed: failed}, start)
}

// DLQRedrive godoc
// @Summary Republish one DLQ entry to its original topic
// @Tags DLQ
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Security BearerAuth
// @Router /admin/dlq/{id}/redrive [post]
func (h *Handler) DLQRedrive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.dlq.Redrive(r.Context(), id); err != nil {
		if errors.Is(err, eventprocessor.ErrEntryNotFound) || errors.Is(err, eventprocessor.ErrNilPublisher) {
			h.respondDLQError(w, r, err)
			return
		}
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "redrive failed", err)
		return
	}
	respondSuccess(w, map[string]string{"id": id, "result": "redriven"}, start)
}

// DLQDelete godoc
// @Summary Discard a DLQ entry
// @Tags DLQ
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Security BearerAuth
// @Router /admin/dlq/{id} [delete]
func (h *Handler) DLQDelete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.dlq.Delete(r.Context(), id); err != nil {
		h.respondDLQError(w, r, err)
		return
	}
	respondSuccess(w, map[string]string{"id": id, "result": "deleted"}, start)
}

// DLQCleanup godoc
// @Summary Drop expired DLQ entries
// @Tags DLQ
// @Produce json
// @Success 200 {object} models.APIResponse{data=DLQCleanupResponse}
// @Security BearerAuth
// @Router /admin/dlq/cleanup [post]
func (h *Handler) DLQCleanup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.dlqAvailable(w, r) {
		return
	}

	removed, err := h.dlq.Cleanup(r.Context())
	if err != nil {
		h.respondDLQError(w, r, err)
		return
	}
	respondSuccess(w, DLQCleanupResponse{Removed: removed}, start)
}

func (h *Handler) respondDLQError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, eventprocessor.ErrEntryNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "DLQ entry not found", nil)
	case errors.Is(err, eventprocessor.ErrNilPublisher):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "no publisher configured for redrive", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeDLQ, "DLQ operation failed", err)
	}
}
