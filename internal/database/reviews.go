// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/pourcast/pourcast/internal/metrics"
	"github.com/pourcast/pourcast/internal/recommend"
)

// GetUserReviews returns all reviews by one user, newest first.
func (db *DB) GetUserReviews(ctx context.Context, userID int64) ([]recommend.Review, error) {
	start := time.Now()

	stmt, err := db.preparedStmt(ctx, `
		SELECT id, user_id, alcohol_id, rating, created_at
		FROM reviews
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, userID)
	metrics.ObserveDBQuery("select", "reviews", start, err)
	if err != nil {
		return nil, fmt.Errorf("query user reviews: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // close after read is not actionable

	return scanReviews(rows)
}

// GetAllReviews returns the full review set for model training.
func (db *DB) GetAllReviews(ctx context.Context) ([]recommend.Review, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, alcohol_id, rating, created_at
		FROM reviews
		ORDER BY id`)
	metrics.ObserveDBQuery("select_all", "reviews", start, err)
	if err != nil {
		return nil, fmt.Errorf("query all reviews: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // close after read is not actionable

	return scanReviews(rows)
}

// InsertReview stores one review. Used by ingestion and tests; the API
// surface itself is read-only.
func (db *DB) InsertReview(ctx context.Context, r recommend.Review) error {
	start := time.Now()

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO reviews (id, user_id, alcohol_id, rating, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.AlcoholID, r.Rating, createdAt)
	metrics.ObserveDBQuery("insert", "reviews", start, err)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanReviews(rows rowScanner) ([]recommend.Review, error) {
	var reviews []recommend.Review
	for rows.Next() {
		var r recommend.Review
		if err := rows.Scan(&r.ID, &r.UserID, &r.AlcoholID, &r.Rating, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}
