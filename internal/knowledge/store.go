// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge indexes the knowledge-base YAML tree into a SQLite
// full-text index and answers queries against it.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
	"github.com/pdiddy/p2kb/pkg/types"
)

const dbFile = "p2kb.db"

// Store manages the search index database.
type Store struct {
	db         *sql.DB
	root       string
	indexDir   string
	maxResults int
}

// NewStore opens or creates the index database at
// <root>/<index_dir>/p2kb.db and creates the schema if it does not exist.
func NewStore(cfg types.KnowledgeBaseConfig) (*Store, error) {
	indexDir := cfg.Resolve(cfg.IndexDir)
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(indexDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:         db,
		root:       cfg.Root,
		indexDir:   indexDir,
		maxResults: maxResults,
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// IndexExists reports whether the index database for cfg has been built.
func IndexExists(cfg types.KnowledgeBaseConfig) bool {
	_, err := os.Stat(filepath.Join(cfg.Resolve(cfg.IndexDir), dbFile))
	return err == nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			grp TEXT,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_name ON entries(name)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			id TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='entries_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE entries_fts USING fts5(name, content, content=entries, content_rowid=rowid)`,
		`CREATE TRIGGER entries_ai AFTER INSERT ON entries BEGIN
			INSERT INTO entries_fts(rowid, name, content) VALUES (new.rowid, new.name, new.content);
		END`,
		`CREATE TRIGGER entries_ad AFTER DELETE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, name, content) VALUES('delete', old.rowid, old.name, old.content);
		END`,
		`CREATE TRIGGER entries_au AFTER UPDATE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, name, content) VALUES('delete', old.rowid, old.name, old.content);
			INSERT INTO entries_fts(rowid, name, content) VALUES (new.rowid, new.name, new.content);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	return nil
}

// IngestSummary holds counts from one indexing run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
	Removed int
}

// Total returns the number of files seen.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Changed reports whether the run altered the index.
func (s IngestSummary) Changed() bool {
	return s.Indexed > 0 || s.Updated > 0 || s.Removed > 0
}

// Ingest walks the knowledge base for YAML files and brings the index up
// to date. Files whose modification time is unchanged are skipped and
// files that have disappeared are removed. When anything changed it
// rewrites export.yaml.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	files, err := s.yamlFiles()
	if err != nil {
		return IngestSummary{}, err
	}

	var (
		summary IngestSummary
		seen    = make(map[string]bool, len(files))
	)
	for _, rel := range files {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}
		seen[rel] = true
		path := filepath.Join(s.root, filepath.FromSlash(rel))

		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var stored string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM indexing_status WHERE id = ?`, rel,
		).Scan(&stored)
		if err == nil && stored == modTime {
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			fmt.Fprintf(w, "failed  %s: parse error: %v\n", rel, err)
			summary.Failed++
			continue
		}

		entry := Classify(rel, doc)
		if err := s.upsert(ctx, entry, modTime); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}
		if isUpdate {
			fmt.Fprintf(w, "updated %s\n", rel)
			summary.Updated++
		} else {
			summary.Indexed++
		}
	}

	removed, err := s.prune(ctx, seen)
	if err != nil {
		return summary, err
	}
	for _, id := range removed {
		fmt.Fprintf(w, "removed %s\n", id)
	}
	summary.Removed = len(removed)

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d, removed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed, summary.Removed)

	if summary.Changed() {
		if _, err := s.ExportYAML(ctx, QueryOptions{}); err != nil {
			lg := kblog.WithComponent("knowledge")
			lg.Warn().Err(err).Msg("export.yaml write failed")
		}
	}
	return summary, nil
}

func (s *Store) upsert(ctx context.Context, e types.Entry, modTime string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (id, kind, name, grp, content) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			kind=excluded.kind, name=excluded.name, grp=excluded.grp, content=excluded.content`,
		e.ID, string(e.Kind), e.Name, e.Group, e.Content,
	)
	if err != nil {
		return fmt.Errorf("upserting entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (id, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		e.ID, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}
	return tx.Commit()
}

// prune deletes index rows for files that no longer exist.
func (s *Store) prune(ctx context.Context, seen map[string]bool) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM indexing_status ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing indexed files: %w", err)
	}
	var gone []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning indexed file: %w", err)
		}
		if !seen[id] {
			gone = append(gone, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range gone {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("removing %s: %w", id, err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM indexing_status WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("removing %s: %w", id, err)
		}
	}
	return gone, nil
}

// yamlFiles lists YAML files under the root as slash-separated relative
// paths, skipping the index directory and hidden directories.
func (s *Store) yamlFiles() ([]string, error) {
	indexAbs, _ := filepath.Abs(s.indexDir)
	var files []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if abs, _ := filepath.Abs(path); abs == indexAbs {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".yaml" {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Classify builds the index entry for the document at rel.
func Classify(rel string, doc any) types.Entry {
	doc = kbfile.Plain(doc)
	stem := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	e := types.Entry{ID: rel, Kind: types.KindDocument, Name: stem, Content: flatten(doc)}

	m, _ := doc.(map[string]any)
	switch {
	case isMap(m["layer1_csv"]):
		l1 := m["layer1_csv"].(map[string]any)
		e.Kind = types.KindInstruction
		if v := scalar(l1["mnemonic"]); v != "" {
			e.Name = v
		}
		e.Group = scalar(l1["group"])
	case scalar(m["type"]) == "method":
		e.Kind = types.KindMethod
		if v := scalar(m["name"]); v != "" {
			e.Name = v
		}
		e.Group = scalar(m["category"])
	case isMap(m["object_metadata"]):
		om := m["object_metadata"].(map[string]any)
		e.Kind = types.KindObject
		if v := scalar(om["title"]); v != "" {
			e.Name = v
		}
	}
	return e
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil, map[string]any, []any:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprint(t)
	}
}

// flatten joins every scalar value in doc, in key order, one per line.
func flatten(doc any) string {
	var parts []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k])
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		default:
			if s := strings.TrimSpace(scalar(t)); s != "" {
				parts = append(parts, s)
			}
		}
	}
	walk(doc)
	return strings.Join(parts, "\n")
}
