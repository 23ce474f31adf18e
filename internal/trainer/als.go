// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package trainer

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/pourcast/pourcast/internal/recommend"
)

// ALSConfig contains configuration for the factorization trainer.
type ALSConfig struct {
	// Factors is the dimension of the latent factor vectors.
	Factors int

	// Iterations is the number of alternating optimization rounds.
	Iterations int

	// Regularization is the L2 regularization parameter.
	Regularization float64

	// CandidatesPerUser caps the precomputed candidate slice per user.
	CandidatesPerUser int
}

// DefaultALSConfig returns default trainer configuration.
func DefaultALSConfig() ALSConfig {
	return ALSConfig{
		Factors:           32,
		Iterations:        15,
		Regularization:    0.05,
		CandidatesPerUser: 10,
	}
}

// ALS factorizes the explicit user-item rating matrix with alternating
// least squares and precomputes per-user top candidates over unrated items.
//
// The objective minimizes, over observed ratings r_ui:
//
//	sum (r_ui - x_u' * y_i)^2 + lambda * (||x_u||^2 + ||y_i||^2)
type ALS struct {
	cfg    ALSConfig
	logger zerolog.Logger
}

// NewALS creates the trainer, applying defaults for zero config values.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewALS(cfg ALSConfig, logger zerolog.Logger) *ALS {
	if cfg.Factors <= 0 {
		cfg.Factors = 32
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 15
	}
	if cfg.Regularization <= 0 {
		cfg.Regularization = 0.05
	}
	if cfg.CandidatesPerUser <= 0 {
		cfg.CandidatesPerUser = 10
	}
	return &ALS{
		cfg:    cfg,
		logger: logger.With().Str("component", "als-trainer").Logger(),
	}
}

// Train fits the factorization and returns per-user candidate slices,
// score descending with ties broken by item ID ascending. An empty review
// set trains to an empty model rather than erroring.
//
//nolint:gocyclo // alternating optimization is inherently branchy
func (t *ALS) Train(ctx context.Context, reviews []recommend.Review) (*recommend.FactorizationModelState, error) {
	state := &recommend.FactorizationModelState{
		Candidates: make(map[int64][]recommend.Candidate),
	}

	userIndex := make(map[int64]int)
	itemIndex := make(map[int64]int)
	var indexToUser, indexToItem []int64
	for _, r := range reviews {
		if _, ok := userIndex[r.UserID]; !ok {
			userIndex[r.UserID] = len(indexToUser)
			indexToUser = append(indexToUser, r.UserID)
		}
		if _, ok := itemIndex[r.AlcoholID]; !ok {
			itemIndex[r.AlcoholID] = len(indexToItem)
			indexToItem = append(indexToItem, r.AlcoholID)
		}
	}

	numUsers := len(indexToUser)
	numItems := len(indexToItem)
	if numUsers == 0 || numItems == 0 {
		return state, nil
	}

	// Sparse rating matrix in both orientations. Later duplicates win.
	userItems := make([]map[int]float64, numUsers)
	itemUsers := make([]map[int]float64, numItems)
	for _, r := range reviews {
		ui := userIndex[r.UserID]
		ii := itemIndex[r.AlcoholID]
		if userItems[ui] == nil {
			userItems[ui] = make(map[int]float64)
		}
		if itemUsers[ii] == nil {
			itemUsers[ii] = make(map[int]float64)
		}
		userItems[ui][ii] = r.Rating
		itemUsers[ii][ui] = r.Rating
	}

	f := t.cfg.Factors
	X := initFactors(numUsers, f)
	Y := initFactors(numItems, f)

	for iter := 0; iter < t.cfg.Iterations; iter++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for u := 0; u < numUsers; u++ {
			solveFactors(X[u], userItems[u], Y, t.cfg.Regularization)
		}
		for i := 0; i < numItems; i++ {
			solveFactors(Y[i], itemUsers[i], X, t.cfg.Regularization)
		}
	}

	for u := 0; u < numUsers; u++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rated := userItems[u]
		candidates := make([]recommend.Candidate, 0, numItems-len(rated))
		for i := 0; i < numItems; i++ {
			if _, seen := rated[i]; seen {
				continue
			}
			candidates = append(candidates, recommend.Candidate{
				AlcoholID: indexToItem[i],
				Score:     dotDense(X[u], Y[i]),
			})
		}
		sort.Slice(candidates, func(a, b int) bool {
			if candidates[a].Score != candidates[b].Score {
				return candidates[a].Score > candidates[b].Score
			}
			return candidates[a].AlcoholID < candidates[b].AlcoholID
		})
		if len(candidates) > t.cfg.CandidatesPerUser {
			candidates = candidates[:t.cfg.CandidatesPerUser]
		}
		if len(candidates) > 0 {
			state.Candidates[indexToUser[u]] = candidates
		}
	}

	t.logger.Debug().
		Int("users", numUsers).
		Int("items", numItems).
		Int("ratings", len(reviews)).
		Msg("factorization model trained")

	return state, nil
}

// initFactors builds a deterministically seeded factor matrix. Small
// deterministic initialization keeps fits reproducible across processes.
func initFactors(rows, factors int) [][]float64 {
	m := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		m[r] = make([]float64, factors)
		for f := 0; f < factors; f++ {
			m[r][f] = 0.1 * (float64((r*factors+f)%1000)/1000.0 - 0.5)
		}
	}
	return m
}

// solveFactors updates one factor vector by solving the regularized normal
// equations (Y_o' Y_o + lambda*I) x = Y_o' r over the observed entries.
func solveFactors(x []float64, observed map[int]float64, other [][]float64, lambda float64) {
	f := len(x)
	if len(observed) == 0 {
		for i := range x {
			x[i] = 0
		}
		return
	}

	A := make([][]float64, f)
	for i := range A {
		A[i] = make([]float64, f)
		A[i][i] = lambda
	}
	b := make([]float64, f)

	// Accumulate in index order: float summation order must not depend on
	// map iteration, or fits stop being reproducible.
	indices := make([]int, 0, len(observed))
	for idx := range observed {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		rating := observed[idx]
		v := other[idx]
		for i := 0; i < f; i++ {
			b[i] += v[i] * rating
			for j := i; j < f; j++ {
				A[i][j] += v[i] * v[j]
			}
		}
	}
	// Mirror the upper triangle.
	for i := 0; i < f; i++ {
		for j := 0; j < i; j++ {
			A[i][j] = A[j][i]
		}
	}

	solveLinearSystem(A, b, x)
}

// solveLinearSystem solves A*x = b in place via Gaussian elimination with
// partial pivoting. A and b are clobbered.
func solveLinearSystem(A [][]float64, b, x []float64) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if abs(A[row][col]) > abs(A[pivot][col]) {
				pivot = row
			}
		}
		if A[pivot][col] == 0 {
			continue
		}
		A[col], A[pivot] = A[pivot], A[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			factor := A[row][col] / A[col][col]
			if factor == 0 {
				continue
			}
			for k := col; k < n; k++ {
				A[row][k] -= factor * A[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	for row := n - 1; row >= 0; row-- {
		if A[row][row] == 0 {
			x[row] = 0
			continue
		}
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= A[row][k] * x[k]
		}
		x[row] = sum / A[row][row]
	}
}

func dotDense(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

var _ recommend.FactorizationTrainer = (*ALS)(nil)
