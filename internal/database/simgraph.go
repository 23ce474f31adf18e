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

// edgeInsertBatch is the number of rows per multi-row INSERT during rebuild.
const edgeInsertBatch = 500

// RebuildSimilarityGraph atomically replaces the full edge set: readers see
// either the old graph or the new one, never a partial mix.
func (db *DB) RebuildSimilarityGraph(ctx context.Context, edges []recommend.SimilarityEdge) error {
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM similarity_edges`); err != nil {
		metrics.ObserveDBQuery("rebuild", "similarity_edges", start, err)
		return fmt.Errorf("clear similarity edges: %w", err)
	}

	for i := 0; i < len(edges); i += edgeInsertBatch {
		end := i + edgeInsertBatch
		if end > len(edges) {
			end = len(edges)
		}
		batch := edges[i:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO similarity_edges (source_id, target_id, sim) VALUES `)
		args := make([]any, 0, len(batch)*3)
		for j, e := range batch {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?)")
			args = append(args, e.SourceID, e.TargetID, e.Sim)
		}

		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			metrics.ObserveDBQuery("rebuild", "similarity_edges", start, err)
			return fmt.Errorf("insert edge batch: %w", err)
		}
	}

	err = tx.Commit()
	metrics.ObserveDBQuery("rebuild", "similarity_edges", start, err)
	if err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}

// QuerySimilarToAny returns edges originating from any of sources whose
// target is not excluded and whose similarity is strictly greater than
// floor, ordered by similarity descending with target ID as tie-break,
// capped at limit.
func (db *DB) QuerySimilarToAny(ctx context.Context, sources, exclude []int64, floor float64, limit int) ([]recommend.SimilarityEdge, error) {
	if len(sources) == 0 || limit <= 0 {
		return nil, nil
	}
	start := time.Now()

	var sb strings.Builder
	args := make([]any, 0, len(sources)+len(exclude)+2)

	sb.WriteString(`SELECT source_id, target_id, sim FROM similarity_edges WHERE source_id IN (`)
	sb.WriteString(placeholders(len(sources)))
	sb.WriteString(`)`)
	for _, id := range sources {
		args = append(args, id)
	}

	if len(exclude) > 0 {
		sb.WriteString(` AND target_id NOT IN (`)
		sb.WriteString(placeholders(len(exclude)))
		sb.WriteString(`)`)
		for _, id := range exclude {
			args = append(args, id)
		}
	}

	sb.WriteString(` AND sim > ? ORDER BY sim DESC, target_id ASC LIMIT ?`)
	args = append(args, floor, limit)

	rows, err := db.conn.QueryContext(ctx, sb.String(), args...)
	metrics.ObserveDBQuery("similar_to_any", "similarity_edges", start, err)
	if err != nil {
		return nil, fmt.Errorf("query similarity edges: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // close after read is not actionable

	return scanEdges(rows)
}

// QuerySimilarTo returns the outgoing edges of one item whose similarity
// is strictly greater than floor, similarity descending, capped at limit.
// The floor is enforced here, not just at rebuild time, so sub-floor edges
// in the table are never served.
func (db *DB) QuerySimilarTo(ctx context.Context, alcoholID int64, floor float64, limit int) ([]recommend.SimilarityEdge, error) {
	if limit <= 0 {
		return nil, nil
	}
	start := time.Now()

	stmt, err := db.preparedStmt(ctx, `
		SELECT source_id, target_id, sim
		FROM similarity_edges
		WHERE source_id = ? AND sim > ?
		ORDER BY sim DESC, target_id ASC
		LIMIT ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, alcoholID, floor, limit)
	metrics.ObserveDBQuery("similar_to", "similarity_edges", start, err)
	if err != nil {
		return nil, fmt.Errorf("query similarity edges: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // close after read is not actionable

	return scanEdges(rows)
}

// CountSimilarityEdges returns the current edge count.
func (db *DB) CountSimilarityEdges(ctx context.Context) (int64, error) {
	start := time.Now()

	var count int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM similarity_edges`).Scan(&count)
	metrics.ObserveDBQuery("count", "similarity_edges", start, err)
	if err != nil {
		return 0, fmt.Errorf("count similarity edges: %w", err)
	}
	return count, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanEdges(rows rowScanner) ([]recommend.SimilarityEdge, error) {
	var edges []recommend.SimilarityEdge
	for rows.Next() {
		var e recommend.SimilarityEdge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Sim); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}
