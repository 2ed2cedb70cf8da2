// Package historydb stores analysis history in SQLite. *Store implements
// imagetruth.History.
package historydb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	imagetruth "github.com/anatolykoptev/go-imagetruth"
)

// ErrNotFound is returned by Get for an unknown entry ID.
var ErrNotFound = errors.New("history entry not found")

// Fixed-width UTC timestamps keep lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store manages history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var _ imagetruth.History = (*Store)(nil)

// Open creates or opens the history database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts an entry. Entries are immutable; saving an existing ID fails.
func (s *Store) Save(ctx context.Context, e imagetruth.HistoryEntry) error {
	if e.ID == "" {
		return errors.New("history entry ID is empty")
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history_entries (id, image_ref, name, verdict, is_ai, confidence, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.ImageRef,
		e.Name,
		e.Verdict.String(),
		boolToInt(e.IsAI),
		e.Confidence,
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// Get fetches one entry by ID.
func (s *Store) Get(ctx context.Context, id string) (imagetruth.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, image_ref, name, verdict, is_ai, confidence, created_at
         FROM history_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return imagetruth.HistoryEntry{}, ErrNotFound
	}
	return e, err
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]imagetruth.HistoryEntry, error) {
	query := `SELECT id, image_ref, name, verdict, is_ai, confidence, created_at
              FROM history_entries ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []imagetruth.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Stats counts all stored entries per verdict.
func (s *Store) Stats(ctx context.Context) (imagetruth.HistoryStats, error) {
	var stats imagetruth.HistoryStats
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(CASE WHEN verdict = ? THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN verdict = ? THEN 1 ELSE 0 END), 0)
         FROM history_entries`,
		imagetruth.VerdictReal.String(),
		imagetruth.VerdictAI.String(),
	)
	if err := row.Scan(&stats.Total, &stats.Real, &stats.AI); err != nil {
		return stats, fmt.Errorf("scan history stats: %w", err)
	}
	return stats, nil
}

// Delete removes one entry. Deleting an unknown ID returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM history_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (imagetruth.HistoryEntry, error) {
	var (
		e         imagetruth.HistoryEntry
		verdict   string
		isAI      int
		createdAt string
	)
	if err := r.Scan(&e.ID, &e.ImageRef, &e.Name, &verdict, &isAI, &e.Confidence, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan history entry: %w", err)
	}
	e.Verdict = imagetruth.ParseVerdict(verdict)
	e.IsAI = isAI != 0
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return e, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
