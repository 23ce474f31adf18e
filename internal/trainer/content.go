// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

// Package trainer builds the recommendation models: a TF-IDF
// content-similarity trainer over the catalog's text attributes and an ALS
// factorization trainer over the review matrix.
package trainer

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/pourcast/pourcast/internal/recommend"
)

// ContentConfig contains configuration for the content-similarity trainer.
type ContentConfig struct {
	// SimilarityFloor drops edges at or below this cosine similarity.
	// The comparison is strict, matching the graph query contract.
	SimilarityFloor float64

	// MaxEdgesPerItem caps outgoing edges per source item, keeping the
	// graph bounded on large catalogs.
	MaxEdgesPerItem int

	// MinTokenLength drops tokens shorter than this.
	MinTokenLength int
}

// DefaultContentConfig returns default trainer configuration.
func DefaultContentConfig() ContentConfig {
	return ContentConfig{
		SimilarityFloor: 0.2,
		MaxEdgesPerItem: 50,
		MinTokenLength:  3,
	}
}

// ContentSimilarity vectorizes each catalog item's text attributes (name,
// kind, types, description, taste, aroma, finish, country) with TF-IDF and
// emits directed similarity edges from pairwise cosine similarity.
type ContentSimilarity struct {
	cfg    ContentConfig
	logger zerolog.Logger
}

// NewContentSimilarity creates the trainer, applying defaults for zero
// config values.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewContentSimilarity(cfg ContentConfig, logger zerolog.Logger) *ContentSimilarity {
	if cfg.MaxEdgesPerItem <= 0 {
		cfg.MaxEdgesPerItem = 50
	}
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = 3
	}
	return &ContentSimilarity{
		cfg:    cfg,
		logger: logger.With().Str("component", "content-trainer").Logger(),
	}
}

// Train builds the content model state from the catalog. Self-edges are
// never emitted and every emitted edge satisfies sim > SimilarityFloor.
func (t *ContentSimilarity) Train(ctx context.Context, items []recommend.Alcohol) (*recommend.ContentModelState, error) {
	state := &recommend.ContentModelState{
		Items: make([]int64, 0, len(items)),
	}
	for _, item := range items {
		state.Items = append(state.Items, item.ID)
	}
	if len(items) < 2 {
		return state, nil
	}

	vectors := make([]map[string]float64, len(items))
	df := make(map[string]int)
	for i, item := range items {
		tokens := t.tokenize(itemDocument(item))
		tf := make(map[string]float64, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			df[tok]++
		}
		vectors[i] = tf
	}

	// Smoothed IDF, then L2 normalization so cosine is a plain dot product.
	n := float64(len(items))
	idf := make(map[string]float64, len(df))
	for tok, count := range df {
		idf[tok] = math.Log((n+1)/(float64(count)+1)) + 1
	}
	for _, vec := range vectors {
		var norm float64
		for tok, tf := range vec {
			w := tf * idf[tok]
			vec[tok] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for tok := range vec {
				vec[tok] /= norm
			}
		}
	}

	perSource := make([][]recommend.SimilarityEdge, len(items))
	for i := range items {
		if i%64 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for j := i + 1; j < len(items); j++ {
			sim := dot(vectors[i], vectors[j])
			if sim <= t.cfg.SimilarityFloor {
				continue
			}
			perSource[i] = append(perSource[i], recommend.SimilarityEdge{
				SourceID: items[i].ID, TargetID: items[j].ID, Sim: sim,
			})
			perSource[j] = append(perSource[j], recommend.SimilarityEdge{
				SourceID: items[j].ID, TargetID: items[i].ID, Sim: sim,
			})
		}
	}

	for _, edges := range perSource {
		sort.Slice(edges, func(a, b int) bool {
			if edges[a].Sim != edges[b].Sim {
				return edges[a].Sim > edges[b].Sim
			}
			return edges[a].TargetID < edges[b].TargetID
		})
		if len(edges) > t.cfg.MaxEdgesPerItem {
			edges = edges[:t.cfg.MaxEdgesPerItem]
		}
		state.Edges = append(state.Edges, edges...)
	}

	t.logger.Debug().
		Int("items", len(items)).
		Int("edges", len(state.Edges)).
		Int("vocabulary", len(df)).
		Msg("content model trained")

	return state, nil
}

// itemDocument joins the item's text attributes into one document.
func itemDocument(a recommend.Alcohol) string {
	parts := []string{a.Name, a.Kind, a.Description, a.Country}
	parts = append(parts, a.Types...)
	parts = append(parts, a.Taste...)
	parts = append(parts, a.Aroma...)
	parts = append(parts, a.Finish...)
	return strings.Join(parts, " ")
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping short
// and purely numeric tokens.
func (t *ContentSimilarity) tokenize(doc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < t.cfg.MinTokenLength || isNumeric(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// dot computes the dot product of two sparse vectors, iterating the smaller.
func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for tok, wa := range a {
		if wb, ok := b[tok]; ok {
			sum += wa * wb
		}
	}
	return sum
}

var _ recommend.ContentTrainer = (*ContentSimilarity)(nil)
