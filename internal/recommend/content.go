// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// ContentPredictor scores unseen items against a user's own ratings using
// the similarity graph.
//
// For each target t reachable from the user's reviewed items:
//
//	score(t) = mean + sum(sim(s,t) * (rating(s) - mean)) / sum(sim(s,t))
//
// where mean is the user's mean rating. Targets whose similarity sum is
// zero or non-finite are skipped; the division never runs on them.
type ContentPredictor struct {
	graph GraphStore
	data  DataProvider
	cfg   Config
}

// NewContentPredictor creates a content predictor over the given graph and
// data source.
func NewContentPredictor(graph GraphStore, data DataProvider, cfg Config) *ContentPredictor {
	return &ContentPredictor{graph: graph, data: data, cfg: cfg}
}

// Recommend returns up to n scored candidates for the user, score
// descending with ties broken by item ID ascending. Items the user has
// reviewed and items in exclude are never returned. A user with no reviews
// gets an empty result, not an error.
func (p *ContentPredictor) Recommend(ctx context.Context, userID int64, n int, exclude []int64) ([]Candidate, error) {
	if n <= 0 {
		return nil, nil
	}

	reviews, err := p.data.UserReviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user reviews: %w", err)
	}
	if len(reviews) == 0 {
		return nil, nil
	}

	ratingByID := make(map[int64]float64, len(reviews))
	sources := make([]int64, 0, len(reviews))
	var sum float64
	for _, r := range reviews {
		if _, seen := ratingByID[r.AlcoholID]; !seen {
			sources = append(sources, r.AlcoholID)
		}
		ratingByID[r.AlcoholID] = r.Rating
		sum += r.Rating
	}
	mean := sum / float64(len(reviews))

	// Reviewed items join the caller's exclusion set so a user is never
	// recommended something they already rated.
	excludeAll := make([]int64, 0, len(sources)+len(exclude))
	excludeAll = append(excludeAll, sources...)
	excludeAll = append(excludeAll, exclude...)

	edges, err := p.graph.SimilarToAny(ctx, sources, excludeAll, p.cfg.SimilarityFloor, p.cfg.GraphQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("query similarity graph: %w", err)
	}
	if len(edges) == 0 {
		return nil, nil
	}

	candidates := scoreTargets(edges, ratingByID, mean)
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

// SimilarTo returns the most similar items to one catalog item, similarity
// descending. An item with no outgoing edges yields an empty result.
func (p *ContentPredictor) SimilarTo(ctx context.Context, alcoholID int64, limit int) ([]SimilarityEdge, error) {
	if limit <= 0 {
		return nil, nil
	}
	edges, err := p.graph.SimilarTo(ctx, alcoholID, p.cfg.SimilarityFloor, limit)
	if err != nil {
		return nil, fmt.Errorf("query similarity graph: %w", err)
	}
	return edges, nil
}

// scoreTargets aggregates edges per target and computes deviation-from-mean
// scores. The result is sorted score descending, ties by ID ascending.
func scoreTargets(edges []SimilarityEdge, ratingByID map[int64]float64, mean float64) []Candidate {
	type accum struct {
		weighted float64
		simSum   float64
	}
	byTarget := make(map[int64]*accum)

	for _, e := range edges {
		rating, ok := ratingByID[e.SourceID]
		if !ok {
			continue
		}
		a := byTarget[e.TargetID]
		if a == nil {
			a = &accum{}
			byTarget[e.TargetID] = a
		}
		a.weighted += e.Sim * (rating - mean)
		a.simSum += e.Sim
	}

	candidates := make([]Candidate, 0, len(byTarget))
	for id, a := range byTarget {
		// Guard: never divide by a zero or non-finite similarity mass.
		if a.simSum <= 0 || math.IsNaN(a.simSum) || math.IsInf(a.simSum, 0) {
			continue
		}
		score := mean + a.weighted/a.simSum
		if math.IsNaN(score) || math.IsInf(score, 0) {
			continue
		}
		candidates = append(candidates, Candidate{AlcoholID: id, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].AlcoholID < candidates[j].AlcoholID
	})

	return candidates
}
