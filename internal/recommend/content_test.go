// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package recommend

import (
	"context"
	"math"
	"testing"
)

func TestContentPredictorRecommend(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name    string
		reviews []Review
		edges   []SimilarityEdge
		userID  int64
		n       int
		exclude []int64
		verify  func(t *testing.T, got []Candidate)
	}{
		{
			name: "single rating propagates through edges",
			// mean = 5.0, so every reachable target scores exactly 5.0
			// and ties resolve by item ID ascending.
			reviews: []Review{
				{UserID: 1, AlcoholID: 100, Rating: 5.0},
			},
			edges: []SimilarityEdge{
				{SourceID: 100, TargetID: 200, Sim: 0.8},
				{SourceID: 100, TargetID: 300, Sim: 0.4},
			},
			userID: 1,
			n:      10,
			verify: func(t *testing.T, got []Candidate) {
				if len(got) != 2 {
					t.Fatalf("expected 2 candidates, got %d", len(got))
				}
				if got[0].AlcoholID != 200 || got[1].AlcoholID != 300 {
					t.Errorf("expected order [200 300], got [%d %d]", got[0].AlcoholID, got[1].AlcoholID)
				}
				for _, c := range got {
					if math.Abs(c.Score-5.0) > 1e-9 {
						t.Errorf("item %d: expected score 5.0, got %f", c.AlcoholID, c.Score)
					}
				}
			},
		},
		{
			name: "deviation weighting favors targets near liked items",
			// mean = 3.0. Target 200 is similar to the 5-star item,
			// target 300 to the 1-star item.
			reviews: []Review{
				{UserID: 1, AlcoholID: 100, Rating: 5.0},
				{UserID: 1, AlcoholID: 101, Rating: 1.0},
			},
			edges: []SimilarityEdge{
				{SourceID: 100, TargetID: 200, Sim: 0.9},
				{SourceID: 101, TargetID: 300, Sim: 0.9},
			},
			userID: 1,
			n:      10,
			verify: func(t *testing.T, got []Candidate) {
				if len(got) != 2 {
					t.Fatalf("expected 2 candidates, got %d", len(got))
				}
				if got[0].AlcoholID != 200 {
					t.Errorf("expected liked-adjacent item 200 first, got %d", got[0].AlcoholID)
				}
				if math.Abs(got[0].Score-5.0) > 1e-9 {
					t.Errorf("expected score 5.0 for item 200, got %f", got[0].Score)
				}
				if math.Abs(got[1].Score-1.0) > 1e-9 {
					t.Errorf("expected score 1.0 for item 300, got %f", got[1].Score)
				}
			},
		},
		{
			name: "cold start user yields empty result",
			reviews: []Review{
				{UserID: 2, AlcoholID: 100, Rating: 4.0},
			},
			edges: []SimilarityEdge{
				{SourceID: 100, TargetID: 200, Sim: 0.8},
			},
			userID: 1,
			n:      10,
			verify: func(t *testing.T, got []Candidate) {
				if len(got) != 0 {
					t.Errorf("expected empty result for cold user, got %d candidates", len(got))
				}
			},
		},
		{
			name: "reviewed items never come back",
			reviews: []Review{
				{UserID: 1, AlcoholID: 100, Rating: 5.0},
				{UserID: 1, AlcoholID: 200, Rating: 4.0},
			},
			edges: []SimilarityEdge{
				{SourceID: 100, TargetID: 200, Sim: 0.9},
				{SourceID: 100, TargetID: 300, Sim: 0.5},
			},
			userID: 1,
			n:      10,
			verify: func(t *testing.T, got []Candidate) {
				for _, c := range got {
					if c.AlcoholID == 100 || c.AlcoholID == 200 {
						t.Errorf("reviewed item %d returned as candidate", c.AlcoholID)
					}
				}
			},
		},
		{
			name: "caller exclusion set is honored",
			reviews: []Review{
				{UserID: 1, AlcoholID: 100, Rating: 5.0},
			},
			edges: []SimilarityEdge{
				{SourceID: 100, TargetID: 200, Sim: 0.8},
				{SourceID: 100, TargetID: 300, Sim: 0.4},
			},
			userID:  1,
			n:       10,
			exclude: []int64{200},
			verify: func(t *testing.T, got []Candidate) {
				if len(got) != 1 || got[0].AlcoholID != 300 {
					t.Errorf("expected only item 300, got %+v", got)
				}
			},
		},
		{
			name: "edges at the similarity floor are excluded",
			reviews: []Review{
				{UserID: 1, AlcoholID: 100, Rating: 5.0},
			},
			edges: []SimilarityEdge{
				{SourceID: 100, TargetID: 200, Sim: 0.2},
				{SourceID: 100, TargetID: 300, Sim: 0.2000001},
			},
			userID: 1,
			n:      10,
			verify: func(t *testing.T, got []Candidate) {
				if len(got) != 1 || got[0].AlcoholID != 300 {
					t.Errorf("expected only above-floor item 300, got %+v", got)
				}
			},
		},
		{
			name: "n caps the result",
			reviews: []Review{
				{UserID: 1, AlcoholID: 100, Rating: 5.0},
			},
			edges: []SimilarityEdge{
				{SourceID: 100, TargetID: 200, Sim: 0.9},
				{SourceID: 100, TargetID: 300, Sim: 0.8},
				{SourceID: 100, TargetID: 400, Sim: 0.7},
			},
			userID: 1,
			n:      2,
			verify: func(t *testing.T, got []Candidate) {
				if len(got) != 2 {
					t.Errorf("expected 2 candidates, got %d", len(got))
				}
			},
		},
		{
			name: "non-positive n yields empty result",
			reviews: []Review{
				{UserID: 1, AlcoholID: 100, Rating: 5.0},
			},
			edges: []SimilarityEdge{
				{SourceID: 100, TargetID: 200, Sim: 0.9},
			},
			userID: 1,
			n:      0,
			verify: func(t *testing.T, got []Candidate) {
				if len(got) != 0 {
					t.Errorf("expected empty result for n=0, got %d", len(got))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &memData{reviews: tt.reviews}
			graph := &memGraph{edges: tt.edges}
			p := NewContentPredictor(graph, data, cfg)

			got, err := p.Recommend(context.Background(), tt.userID, tt.n, tt.exclude)
			if err != nil {
				t.Fatalf("Recommend returned error: %v", err)
			}
			tt.verify(t, got)
		})
	}
}

func TestScoreTargetsZeroSimGuard(t *testing.T) {
	// A zero-similarity edge contributes zero mass; the target must be
	// dropped rather than divided by zero.
	edges := []SimilarityEdge{
		{SourceID: 100, TargetID: 200, Sim: 0},
	}
	got := scoreTargets(edges, map[int64]float64{100: 5.0}, 5.0)
	if len(got) != 0 {
		t.Fatalf("expected zero-mass target dropped, got %+v", got)
	}
}

func TestScoreTargetsIgnoresUnratedSources(t *testing.T) {
	// Edges from items the user did not rate carry no information.
	edges := []SimilarityEdge{
		{SourceID: 999, TargetID: 200, Sim: 0.9},
		{SourceID: 100, TargetID: 300, Sim: 0.5},
	}
	got := scoreTargets(edges, map[int64]float64{100: 4.0}, 4.0)
	if len(got) != 1 || got[0].AlcoholID != 300 {
		t.Fatalf("expected only target 300, got %+v", got)
	}
}

func TestContentPredictorSimilarTo(t *testing.T) {
	graph := &memGraph{edges: []SimilarityEdge{
		{SourceID: 100, TargetID: 200, Sim: 0.9},
		{SourceID: 100, TargetID: 300, Sim: 0.5},
		{SourceID: 100, TargetID: 400, Sim: 0.2}, // exactly at floor
		{SourceID: 100, TargetID: 500, Sim: 0.1}, // below floor
		{SourceID: 200, TargetID: 100, Sim: 0.9},
	}}
	p := NewContentPredictor(graph, &memData{}, DefaultConfig())

	got, err := p.SimilarTo(context.Background(), 100, 1)
	if err != nil {
		t.Fatalf("SimilarTo returned error: %v", err)
	}
	if len(got) != 1 || got[0].TargetID != 200 {
		t.Errorf("expected top edge to 200, got %+v", got)
	}

	// The configured floor applies to single-item lookups too, strictly.
	got, err = p.SimilarTo(context.Background(), 100, 10)
	if err != nil {
		t.Fatalf("SimilarTo returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 edges above the floor, got %+v", got)
	}
	for _, e := range got {
		if e.TargetID == 400 || e.TargetID == 500 {
			t.Errorf("edge at or below floor returned: %+v", e)
		}
	}

	got, err = p.SimilarTo(context.Background(), 100, 0)
	if err != nil {
		t.Fatalf("SimilarTo returned error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result for limit=0, got %+v", got)
	}
}
