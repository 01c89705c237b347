// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/auth"
	"github.com/tomtom215/recsync/internal/eventprocessor"
	"github.com/tomtom215/recsync/internal/models"
	"github.com/tomtom215/recsync/internal/recommend"
)

type fakeRecommender struct {
	mu   sync.Mutex
	reqs []recommend.Request
	err  error
}

func (f *fakeRecommender) Recommend(_ context.Context, req recommend.Request) (*recommend.Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &recommend.Response{
		Items:  []models.Recommendation{{ItemID: uuid.New(), Title: "Dune"}},
		Source: recommend.SourcePersonalized,
		Limit:  req.Limit,
		Offset: req.Offset,
	}, nil
}

func (f *fakeRecommender) last() recommend.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type fakeDLQ struct {
	mu         sync.Mutex
	entries    map[string]*eventprocessor.DLQEntry
	retryErr   error
	redriveErr error
	listArgs   [3]interface{}
}

func newFakeDLQ(entries ...*eventprocessor.DLQEntry) *fakeDLQ {
	f := &fakeDLQ{entries: make(map[string]*eventprocessor.DLQEntry)}
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return f
}

func (f *fakeDLQ) MaxRetries() int { return 5 }

func (f *fakeDLQ) Status(e *eventprocessor.DLQEntry) string {
	if e.RetryCount >= 5 {
		return eventprocessor.DLQStatusExhausted
	}
	return eventprocessor.DLQStatusPending
}

func (f *fakeDLQ) List(offset, limit int, category string) ([]*eventprocessor.DLQEntry, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listArgs = [3]interface{}{offset, limit, category}
	out := make([]*eventprocessor.DLQEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out, len(out)
}

func (f *fakeDLQ) Get(id string) (*eventprocessor.DLQEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, eventprocessor.ErrEntryNotFound
	}
	return e, nil
}

func (f *fakeDLQ) Retry(_ context.Context, id string) error {
	if _, err := f.Get(id); err != nil {
		return err
	}
	if f.retryErr != nil {
		return fmt.Errorf("retry %s: %w", id, f.retryErr)
	}
	return f.Delete(context.Background(), id)
}

func (f *fakeDLQ) RetryAll(context.Context) (int, int) { return 2, 1 }

func (f *fakeDLQ) Redrive(_ context.Context, id string) error {
	if f.redriveErr != nil {
		return f.redriveErr
	}
	if _, err := f.Get(id); err != nil {
		return err
	}
	return f.Delete(context.Background(), id)
}

func (f *fakeDLQ) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[id]; !ok {
		return eventprocessor.ErrEntryNotFound
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeDLQ) Stats() eventprocessor.DLQStats {
	return eventprocessor.DLQStats{TotalEntries: int64(len(f.entries))}
}

func (f *fakeDLQ) Cleanup(context.Context) (int, error) { return 3, nil }

type fakeHealth struct {
	status eventprocessor.HealthStatusType
}

func (f fakeHealth) CheckAll(context.Context) eventprocessor.OverallHealth {
	return eventprocessor.OverallHealth{
		Healthy:   f.status != eventprocessor.HealthStatusUnhealthy,
		Status:    f.status,
		Timestamp: time.Now(),
	}
}

// withSubject stands in for the auth middleware.
func withSubject(subject *auth.AuthSubject) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subject != nil {
				r = r.WithContext(auth.ContextWithSubject(r.Context(), subject))
			}
			next.ServeHTTP(w, r)
		})
	}
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func serve(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
		}
	}
	return rec, env
}

func newTestRouter(rec Recommender, dlq DLQService, health HealthReporter, subject *auth.AuthSubject) http.Handler {
	h := NewHandler(rec, dlq, health)
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	return NewRouter(h, NewChiMiddleware(cfg), withSubject(subject), nil).SetupChi()
}

func TestRecommendations_UsesSubject(t *testing.T) {
	t.Parallel()
	user := uuid.New()
	rec := &fakeRecommender{}
	router := newTestRouter(rec, nil, nil, &auth.AuthSubject{ID: user.String(), Roles: []string{"user"}})

	resp, env := serve(t, router, http.MethodGet, "/api/v1/recommendations?limit=5&offset=10")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
	}
	if env.Status != "success" {
		t.Errorf("envelope status = %q", env.Status)
	}
	got := rec.last()
	if got.UserID != user || got.Limit != 5 || got.Offset != 10 {
		t.Errorf("request = %+v", got)
	}
	if got.RequestID == "" {
		t.Error("request id not propagated")
	}
	if resp.Header().Get("Cache-Control") != "no-store" {
		t.Error("missing Cache-Control: no-store")
	}

	var data recommend.Response
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Items) != 1 || data.Source != recommend.SourcePersonalized {
		t.Errorf("data = %+v", data)
	}

	var raw struct {
		Items []map[string]json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw.Items[0]["item_id"]; !ok {
		t.Errorf("item keys = %v, want item_id", raw.Items[0])
	}
	if _, ok := raw.Items[0]["media_id"]; ok {
		t.Error("item still serialized with media_id")
	}
}

func TestRecommendations_BadInput(t *testing.T) {
	t.Parallel()
	user := uuid.New()

	tests := []struct {
		name    string
		subject *auth.AuthSubject
		target  string
		status  int
		code    string
	}{
		{"no subject", nil, "/api/v1/recommendations", http.StatusUnauthorized, ErrCodeUnauthorized},
		{"subject not uuid", &auth.AuthSubject{ID: "alice"}, "/api/v1/recommendations", http.StatusBadRequest, ErrCodeValidation},
		{"limit not integer", &auth.AuthSubject{ID: user.String()}, "/api/v1/recommendations?limit=ten", http.StatusBadRequest, ErrCodeValidation},
		{"negative offset", &auth.AuthSubject{ID: user.String()}, "/api/v1/recommendations?offset=-1", http.StatusBadRequest, ErrCodeValidation},
		{"path user not uuid", &auth.AuthSubject{ID: user.String()}, "/api/v1/recommendations/user/nope", http.StatusBadRequest, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newTestRouter(&fakeRecommender{}, nil, nil, tt.subject)
			resp, env := serve(t, router, http.MethodGet, tt.target)
			if resp.Code != tt.status {
				t.Fatalf("status = %d, want %d", resp.Code, tt.status)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestUserRecommendations(t *testing.T) {
	t.Parallel()
	target := uuid.New()
	rec := &fakeRecommender{}
	router := newTestRouter(rec, nil, nil, &auth.AuthSubject{ID: uuid.NewString(), Roles: []string{"admin"}})

	resp, _ := serve(t, router, http.MethodGet, "/api/v1/recommendations/user/"+target.String())
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if rec.last().UserID != target {
		t.Errorf("UserID = %s, want %s", rec.last().UserID, target)
	}
}

func TestRecommendations_EngineError(t *testing.T) {
	t.Parallel()
	router := newTestRouter(&fakeRecommender{err: errors.New("store closed")}, nil, nil,
		&auth.AuthSubject{ID: uuid.NewString()})

	resp, env := serve(t, router, http.MethodGet, "/api/v1/recommendations")
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.Code)
	}
	if env.Error.Code != ErrCodeRecommendation {
		t.Errorf("code = %s", env.Error.Code)
	}
	if strings.Contains(resp.Body.String(), "store closed") {
		t.Error("internal error leaked to client")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		health HealthReporter
		status int
	}{
		{"no checker", nil, http.StatusOK},
		{"healthy", fakeHealth{eventprocessor.HealthStatusHealthy}, http.StatusOK},
		{"degraded", fakeHealth{eventprocessor.HealthStatusDegraded}, http.StatusOK},
		{"unhealthy", fakeHealth{eventprocessor.HealthStatusUnhealthy}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newTestRouter(&fakeRecommender{}, nil, tt.health, nil)

			resp, _ := serve(t, router, http.MethodGet, "/api/v1/health/ready")
			if resp.Code != tt.status {
				t.Errorf("ready status = %d, want %d", resp.Code, tt.status)
			}
			resp, env := serve(t, router, http.MethodGet, "/api/v1/health/live")
			if resp.Code != http.StatusOK || !strings.Contains(string(env.Data), "alive") {
				t.Errorf("live = %d %s", resp.Code, env.Data)
			}
		})
	}
}

func TestMetricsAndRequestID(t *testing.T) {
	t.Parallel()
	router := newTestRouter(&fakeRecommender{}, nil, nil, nil)

	resp, _ := serve(t, router, http.MethodGet, "/metrics")
	if resp.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", resp.Code)
	}
	if resp.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}
