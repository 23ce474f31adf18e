// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pourcast/pourcast/internal/config"
	"github.com/pourcast/pourcast/internal/models"
	"github.com/pourcast/pourcast/internal/recommend"
)

// fakeData is a fixed-world DataProvider for handler tests.
type fakeData struct{}

func (fakeData) UserReviews(_ context.Context, userID int64) ([]recommend.Review, error) {
	if userID != 1 {
		return nil, nil
	}
	return []recommend.Review{
		{ID: 1, UserID: 1, AlcoholID: 100, Rating: 5.0},
		{ID: 2, UserID: 1, AlcoholID: 101, Rating: 4.0},
	}, nil
}

func (d fakeData) AllReviews(ctx context.Context) ([]recommend.Review, error) {
	return d.UserReviews(ctx, 1)
}

func (fakeData) Alcohols(context.Context) ([]recommend.Alcohol, error) {
	return []recommend.Alcohol{
		{ID: 100, Name: "Islay Malt", Kind: "whisky", Taste: []string{"peat", "smoke"}},
		{ID: 101, Name: "Speyside Malt", Kind: "whisky", Taste: []string{"honey", "fruit"}},
		{ID: 200, Name: "Island Malt", Kind: "whisky", Taste: []string{"peat", "honey"}},
	}, nil
}

func (fakeData) PopularityPool(context.Context, int) ([]int64, error) {
	return []int64{200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100, 1200, 1300}, nil
}

// fakeGraph is an in-memory GraphStore.
type fakeGraph struct {
	edges []recommend.SimilarityEdge
}

func (g *fakeGraph) Rebuild(_ context.Context, edges []recommend.SimilarityEdge) error {
	g.edges = append([]recommend.SimilarityEdge(nil), edges...)
	return nil
}

func (g *fakeGraph) SimilarToAny(_ context.Context, sources, exclude []int64, floor float64, limit int) ([]recommend.SimilarityEdge, error) {
	srcSet := make(map[int64]struct{})
	for _, id := range sources {
		srcSet[id] = struct{}{}
	}
	exclSet := make(map[int64]struct{})
	for _, id := range exclude {
		exclSet[id] = struct{}{}
	}
	var out []recommend.SimilarityEdge
	for _, e := range g.edges {
		if _, ok := srcSet[e.SourceID]; !ok {
			continue
		}
		if _, skip := exclSet[e.TargetID]; skip {
			continue
		}
		if e.Sim > floor {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sim > out[j].Sim })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *fakeGraph) SimilarTo(_ context.Context, alcoholID int64, floor float64, limit int) ([]recommend.SimilarityEdge, error) {
	var out []recommend.SimilarityEdge
	for _, e := range g.edges {
		if e.SourceID == alcoholID && e.Sim > floor {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sim > out[j].Sim })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeSnapshots is an in-memory SnapshotStore.
type fakeSnapshots struct {
	states map[string]any
	metas  map[string]recommend.SnapshotMetadata
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{
		states: make(map[string]any),
		metas:  make(map[string]recommend.SnapshotMetadata),
	}
}

func (s *fakeSnapshots) Put(_ context.Context, tag string, state any, meta recommend.SnapshotMetadata) error {
	s.states[tag] = state
	s.metas[tag] = meta
	return nil
}

func (s *fakeSnapshots) Load(_ context.Context, tag string, target any) (*recommend.SnapshotMetadata, error) {
	state, ok := s.states[tag]
	if !ok {
		return nil, recommend.ErrSnapshotNotFound
	}
	switch t := target.(type) {
	case *recommend.ContentModelState:
		*t = *state.(*recommend.ContentModelState)
	case *recommend.FactorizationModelState:
		*t = *state.(*recommend.FactorizationModelState)
	}
	meta := s.metas[tag]
	return &meta, nil
}

func (s *fakeSnapshots) Delete(_ context.Context, tag string) error {
	delete(s.states, tag)
	delete(s.metas, tag)
	return nil
}

func (s *fakeSnapshots) Latest(tag string) (int, bool) {
	meta, ok := s.metas[tag]
	if !ok {
		return 0, false
	}
	return meta.Version, true
}

type fakeContentTrainer struct{}

func (fakeContentTrainer) Train(context.Context, []recommend.Alcohol) (*recommend.ContentModelState, error) {
	return &recommend.ContentModelState{
		Items: []int64{100, 101, 200},
		Edges: []recommend.SimilarityEdge{
			{SourceID: 100, TargetID: 200, Sim: 0.8},
			{SourceID: 200, TargetID: 100, Sim: 0.8},
		},
	}, nil
}

type fakeFactTrainer struct{}

func (fakeFactTrainer) Train(context.Context, []recommend.Review) (*recommend.FactorizationModelState, error) {
	return &recommend.FactorizationModelState{
		Candidates: map[int64][]recommend.Candidate{
			1: {{AlcoholID: 300, Score: 4.7}},
		},
	}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := recommend.DefaultConfig()
	cfg.Seed = 42
	svc, err := recommend.NewService(cfg, fakeData{}, &fakeGraph{}, newFakeSnapshots(),
		fakeContentTrainer{}, fakeFactTrainer{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	appCfg := &config.Config{
		API: config.APIConfig{
			RateLimitRequests: 1000,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{"*"},
			SimilarLimitMax:   50,
		},
	}
	handler := NewHandler(svc, appCfg.API.SimilarLimitMax)
	health := NewHealthHandler(pingOK{}, "test")
	srv := httptest.NewServer(NewRouter(appCfg, handler, health).Setup())
	t.Cleanup(srv.Close)
	return srv
}

type pingOK struct{}

func (pingOK) Ping(context.Context) error { return nil }

type pingFail struct{}

func (pingFail) Ping(context.Context) error { return errors.New("down") }

func decodeResponse(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestGetRecommendations(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/recommendations/1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	body := decodeResponse(t, resp)
	if body.Status != "success" {
		t.Errorf("expected success, got %q", body.Status)
	}
	data, err := json.Marshal(body.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var rec recommend.Response
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode recommendation payload: %v", err)
	}
	if rec.UserID != 1 {
		t.Errorf("expected user_id 1, got %d", rec.UserID)
	}
	if len(rec.Items) == 0 {
		t.Fatal("expected non-empty item list")
	}
	if rec.Items[0].AlcoholID != 300 || rec.Items[0].Source != recommend.SourceFactorization {
		t.Errorf("expected factorization pick 300 first, got %+v", rec.Items[0])
	}
	seen := make(map[int64]struct{})
	for _, it := range rec.Items {
		if _, dup := seen[it.AlcoholID]; dup {
			t.Errorf("duplicate item %d", it.AlcoholID)
		}
		seen[it.AlcoholID] = struct{}{}
	}
}

func TestGetRecommendationsValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{name: "non-numeric user", path: "/api/v1/recommendations/abc"},
		{name: "zero user", path: "/api/v1/recommendations/0"},
		{name: "negative user", path: "/api/v1/recommendations/-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestGetSimilar(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/alcohols/100/similar?limit=5")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeResponse(t, resp)
	data := body.Data.(map[string]interface{})
	similar := data["similar"].([]interface{})
	if len(similar) != 1 {
		t.Errorf("expected 1 similar item, got %d", len(similar))
	}

	resp, err = http.Get(srv.URL + "/api/v1/alcohols/bogus/similar")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad ID, got %d", resp.StatusCode)
	}
}

func TestTriggerFitAndStatus(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/models/fit", "application/json", nil)
	if err != nil {
		t.Fatalf("POST fit: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// The fit is quick with fake trainers; poll the status endpoint until
	// both models report ready.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(srv.URL + "/api/v1/models/status")
		if err != nil {
			t.Fatalf("GET status: %v", err)
		}
		body := decodeResponse(t, resp)
		data := body.Data.(map[string]interface{})
		modelList := data["models"].([]interface{})
		if len(modelList) != 2 {
			t.Fatalf("expected 2 model statuses, got %d", len(modelList))
		}

		ready := 0
		fitting := false
		for _, raw := range modelList {
			st := raw.(map[string]interface{})
			if st["state"] == "ready" {
				ready++
			}
			if st["fitting"] == true {
				fitting = true
			}
		}
		if ready == 2 && !fitting {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("models never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInvalidateModels(t *testing.T) {
	srv := newTestServer(t)

	// Warm the models first.
	if resp, err := http.Get(srv.URL + "/api/v1/recommendations/1"); err != nil {
		t.Fatalf("warm request: %v", err)
	} else {
		_ = resp.Body.Close()
	}

	resp, err := http.Post(srv.URL+"/api/v1/models/invalidate", "application/json", nil)
	if err != nil {
		t.Fatalf("POST invalidate: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	statusResp, err := http.Get(srv.URL + "/api/v1/models/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	body := decodeResponse(t, statusResp)
	data := body.Data.(map[string]interface{})
	for _, raw := range data["models"].([]interface{}) {
		st := raw.(map[string]interface{})
		if st["state"] != "stale" {
			t.Errorf("expected stale after invalidate, got %v", st["state"])
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h := NewHealthHandler(pingOK{}, "test")
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h := NewHealthHandler(pingFail{}, "test")
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "clean string", input: "whisky", want: "whisky"},
		{name: "newline escaped", input: "a\nb", want: "a\\x0ab"},
		{name: "carriage return escaped", input: "a\rb", want: "a\\x0db"},
		{name: "delete escaped", input: "a\x7fb", want: "a\\x7fb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogValue(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGetIntParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=xyz", nil)

	if got := getIntParam(r, "limit", 10); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
	if got := getIntParam(r, "missing", 10); got != 10 {
		t.Errorf("expected default 10, got %d", got)
	}
	if got := getIntParam(r, "bad", 10); got != 10 {
		t.Errorf("expected default for non-numeric, got %d", got)
	}
}
