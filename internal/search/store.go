package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Store keeps a search index in SQLite. Use ":memory:" for an in-process
// index or a file path to export one next to the built site.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenStore opens (or creates) a store at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		content TEXT NOT NULL,
		section_id TEXT NOT NULL,
		section_label TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_section ON entries(section_id);
	`)
	return err
}

// Replace swaps the stored index for entries in one transaction.
func (s *Store) Replace(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO entries (id, path, title, description, content, section_id, section_label) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Path, e.Title, e.Description, e.Content, e.SectionID, e.SectionLabel); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.Path, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n)
	return n, err
}

// Query runs the same scoring as the in-memory Query inside SQLite.
func (s *Store) Query(ctx context.Context, q string, limit int) ([]Result, error) {
	terms := strings.Fields(strings.ToLower(q))
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	var (
		scoreParts []string
		whereParts []string
		scoreArgs  []any
		whereArgs  []any
	)
	for _, t := range terms {
		like := "%" + escapeLike(t) + "%"
		scoreParts = append(scoreParts, fmt.Sprintf(
			"(CASE WHEN lower(title) LIKE ? ESCAPE '\\' THEN %d ELSE 0 END + "+
				"CASE WHEN lower(description) LIKE ? ESCAPE '\\' THEN %d ELSE 0 END + "+
				"CASE WHEN lower(content) LIKE ? ESCAPE '\\' THEN %d ELSE 0 END)",
			titleWeight, descriptionWeight, contentWeight))
		scoreArgs = append(scoreArgs, like, like, like)
		whereParts = append(whereParts,
			"(lower(title) LIKE ? ESCAPE '\\' OR lower(description) LIKE ? ESCAPE '\\' OR lower(content) LIKE ? ESCAPE '\\')")
		whereArgs = append(whereArgs, like, like, like)
	}

	query := fmt.Sprintf(
		"SELECT id, path, title, description, content, section_id, section_label, %s AS score FROM entries WHERE %s ORDER BY score DESC, id ASC LIMIT ?",
		strings.Join(scoreParts, " + "), strings.Join(whereParts, " AND "))
	args := append(append(scoreArgs, whereArgs...), limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Path, &r.Title, &r.Description, &r.Content, &r.SectionID, &r.SectionLabel, &r.Score); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
