// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pourcast/pourcast/internal/metrics"
	"github.com/pourcast/pourcast/internal/recommend"
)

// GetAlcohols returns the full catalog with average ratings, ordered by ID.
// List-valued attributes are stored comma-joined and split here.
func (db *DB) GetAlcohols(ctx context.Context) ([]recommend.Alcohol, error) {
	start := time.Now()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT a.id, a.name,
		       COALESCE(a.kind, ''), COALESCE(a.types, ''),
		       COALESCE(a.description, ''), COALESCE(a.taste, ''),
		       COALESCE(a.aroma, ''), COALESCE(a.finish, ''),
		       COALESCE(a.country, ''),
		       COALESCE(AVG(r.rating), 0)
		FROM alcohols a
		LEFT JOIN reviews r ON r.alcohol_id = a.id
		GROUP BY a.id, a.name, a.kind, a.types, a.description,
		         a.taste, a.aroma, a.finish, a.country
		ORDER BY a.id`)
	metrics.ObserveDBQuery("select_all", "alcohols", start, err)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // close after read is not actionable

	var items []recommend.Alcohol
	for rows.Next() {
		var a recommend.Alcohol
		var types, taste, aroma, finish string
		if err := rows.Scan(&a.ID, &a.Name, &a.Kind, &types, &a.Description,
			&taste, &aroma, &finish, &a.Country, &a.AvgRating); err != nil {
			return nil, fmt.Errorf("scan alcohol: %w", err)
		}
		a.Types = splitList(types)
		a.Taste = splitList(taste)
		a.Aroma = splitList(aroma)
		a.Finish = splitList(finish)
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	return items, nil
}

// GetPopularityPool returns up to size catalog item IDs ordered by average
// rating descending. Unreviewed items are still eligible with an average of
// zero, so a fresh catalog without any reviews produces a usable pool.
func (db *DB) GetPopularityPool(ctx context.Context, size int) ([]int64, error) {
	start := time.Now()

	stmt, err := db.preparedStmt(ctx, `
		SELECT a.id
		FROM alcohols a
		LEFT JOIN reviews r ON r.alcohol_id = a.id
		GROUP BY a.id
		ORDER BY COALESCE(AVG(r.rating), 0) DESC, a.id ASC
		LIMIT ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, size)
	metrics.ObserveDBQuery("popularity_pool", "alcohols", start, err)
	if err != nil {
		return nil, fmt.Errorf("query popularity pool: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // close after read is not actionable

	var pool []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pool entry: %w", err)
		}
		pool = append(pool, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate popularity pool: %w", err)
	}
	return pool, nil
}

// InsertAlcohol stores one catalog item. Used by ingestion and tests.
func (db *DB) InsertAlcohol(ctx context.Context, a recommend.Alcohol) error {
	start := time.Now()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO alcohols (id, name, kind, types, description, taste, aroma, finish, country)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Kind, joinList(a.Types), a.Description,
		joinList(a.Taste), joinList(a.Aroma), joinList(a.Finish), a.Country)
	metrics.ObserveDBQuery("insert", "alcohols", start, err)
	if err != nil {
		return fmt.Errorf("insert alcohol: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(values []string) string {
	return strings.Join(values, ",")
}
