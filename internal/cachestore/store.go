// Package cachestore persists the visited cache of dependency walks in
// Postgres so separate runs can share expanded subtrees.
//
// Entries are keyed by project, options fingerprint and file. An entry is
// reused only while every file in its subtree is unchanged since the entry
// was built.
package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/deptree/deptree/pkg/deptree"
)

// ModTimeFunc reports a file's modification time.
type ModTimeFunc func(path string) (time.Time, error)

// Store provides visited-cache persistence backed by Postgres.
type Store struct {
	db      *sql.DB
	project string
	modTime ModTimeFunc
	logger  *slog.Logger
}

// Entry is one persisted subtree.
type Entry struct {
	// Options is the deptree.Options fingerprint the subtree was built with.
	Options string
	File    string
	Subtree deptree.Tree
	BuiltAt time.Time
}

// NewStore creates a Store over an open database. project namespaces the
// entries, so one database can serve several checkouts.
func NewStore(db *sql.DB, project string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{db: db, project: project, modTime: osModTime, logger: logger}
}

// Open connects to databaseURL, runs migrations and returns a Store.
func Open(ctx context.Context, databaseURL, project string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewStore(db, project, logger), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func osModTime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// Entries returns the stored entries built with the given options
// fingerprint, or every entry of the project when options is empty.
func (s *Store) Entries(ctx context.Context, options string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT options, file, subtree, built_at FROM visited_entries
		 WHERE project = $1 AND ($2 = '' OR options = $2)
		 ORDER BY options, file`,
		s.project, options,
	)
	if err != nil {
		return nil, fmt.Errorf("list visited entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var raw []byte
		if err := rows.Scan(&e.Options, &e.File, &raw, &e.BuiltAt); err != nil {
			return nil, fmt.Errorf("scan visited entry: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Subtree); err != nil {
			return nil, fmt.Errorf("decode subtree of %s: %w", e.File, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Load builds a Visited cache from the fresh entries built with options
// and deletes the stale ones. It returns the number of entries dropped.
func (s *Store) Load(ctx context.Context, options string) (*deptree.Visited, int, error) {
	if options == "" {
		return nil, 0, fmt.Errorf("load visited entries: options fingerprint is required")
	}
	entries, err := s.Entries(ctx, options)
	if err != nil {
		return nil, 0, err
	}

	visited := deptree.NewVisited()
	var stale []string
	for _, e := range entries {
		if !fresh(e, s.modTime) {
			stale = append(stale, e.File)
			continue
		}
		visited.Seed(e.File, e.Subtree)
	}

	if len(stale) > 0 {
		if err := s.Delete(ctx, options, stale...); err != nil {
			return nil, 0, err
		}
	}
	s.logger.Debug("visited cache loaded", "project", s.project, "options", options, "entries", visited.Len(), "stale", len(stale))
	return visited, len(stale), nil
}

// Save upserts the entries that walks committed to visited under the
// options fingerprint, stamped with builtAt. builtAt should be taken before
// the walk started so that files edited during the walk invalidate them.
// Seeded entries are left as stored, with their original build time.
func (s *Store) Save(ctx context.Context, options string, visited *deptree.Visited, builtAt time.Time) error {
	if options == "" {
		return fmt.Errorf("save visited entries: options fingerprint is required")
	}
	files := visited.Committed()
	if len(files) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	builtAt = builtAt.UTC()
	for _, file := range files {
		subtree, _ := visited.Get(file)
		raw, err := json.Marshal(subtree)
		if err != nil {
			return fmt.Errorf("encode subtree of %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO visited_entries (project, options, file, subtree, built_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (project, options, file) DO UPDATE
			   SET subtree = EXCLUDED.subtree, built_at = EXCLUDED.built_at`,
			s.project, options, file, raw, builtAt,
		); err != nil {
			return fmt.Errorf("upsert visited entry %s: %w", file, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit visited entries: %w", err)
	}
	s.logger.Debug("visited cache saved", "project", s.project, "options", options, "entries", len(files))
	return nil
}

// Delete removes the entries of files built with options.
func (s *Store) Delete(ctx context.Context, options string, files ...string) error {
	for _, file := range files {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM visited_entries WHERE project = $1 AND options = $2 AND file = $3`,
			s.project, options, file,
		); err != nil {
			return fmt.Errorf("delete visited entry %s: %w", file, err)
		}
	}
	return nil
}

// Purge removes every entry of the project, under all options.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM visited_entries WHERE project = $1`, s.project,
	); err != nil {
		return fmt.Errorf("purge visited entries: %w", err)
	}
	return nil
}

// fresh reports whether the entry's file and every file in its subtree
// still exist and were last modified no later than the entry was built.
func fresh(e Entry, modTime ModTimeFunc) bool {
	for _, f := range subtreeFiles(e.File, e.Subtree) {
		mt, err := modTime(f)
		if err != nil || mt.After(e.BuiltAt) {
			return false
		}
	}
	return true
}

// subtreeFiles returns root followed by every key reachable in t, each once.
func subtreeFiles(root string, t deptree.Tree) []string {
	seen := map[string]bool{root: true}
	out := []string{root}
	var walk func(t deptree.Tree)
	walk = func(t deptree.Tree) {
		for k, sub := range t {
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
			walk(sub)
		}
	}
	walk(t)
	return out
}
