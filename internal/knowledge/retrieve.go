// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pdiddy/p2kb/pkg/types"
)

// QueryOptions holds parameters for index queries.
type QueryOptions struct {
	// Query is an FTS5 full-text search string.
	Query string

	// Kind filters by entry kind.
	Kind types.EntryKind

	// Group filters by instruction group or method category.
	Group string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Kind == "" && q.Group == ""
}

// QueryResult is an index entry with its full-text rank. Rank is zero
// for filter-only queries; lower is better.
type QueryResult struct {
	types.Entry
	Rank float64 `json:"rank,omitempty" yaml:"rank,omitempty"`
}

// Retrieve queries the index. Full-text queries are ordered by rank;
// filter-only queries are ordered by kind and name.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)
	if useFTS {
		qb.WriteString(
			`SELECT e.id, e.kind, e.name, e.grp, e.content, entries_fts.rank
			FROM entries_fts
			JOIN entries e ON e.rowid = entries_fts.rowid
			WHERE entries_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT e.id, e.kind, e.name, e.grp, e.content, 0 AS rank
			FROM entries e
			WHERE 1=1`)
	}

	if opts.Kind != "" {
		qb.WriteString(` AND e.kind = ?`)
		args = append(args, string(opts.Kind))
	}
	if opts.Group != "" {
		qb.WriteString(` AND e.grp = ? COLLATE NOCASE`)
		args = append(args, opts.Group)
	}

	if useFTS {
		qb.WriteString(` ORDER BY entries_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY e.kind, e.name, e.id`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var (
			qr   QueryResult
			kind string
			grp  sql.NullString
		)
		if err := rows.Scan(&qr.ID, &kind, &qr.Name, &grp, &qr.Content, &qr.Rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		qr.Kind = types.EntryKind(kind)
		qr.Group = grp.String
		results = append(results, qr)
	}
	return results, rows.Err()
}

// Count returns the number of indexed entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}
