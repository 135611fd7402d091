// Package sqlite is the SQLite backend for the access-log store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/curiefense/curieproxy-go/internal/storage"
)

// Store persists access records in a SQLite database.
type Store struct {
	db *sql.DB
}

var _ storage.RecordStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS access_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			authority TEXT,
			remote_ip TEXT,
			action TEXT NOT NULL,
			status INTEGER NOT NULL DEFAULT 0,
			tags TEXT,
			request_map TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_access_log_request ON access_log(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_access_log_created ON access_log(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Append inserts one access record.
func (s *Store) Append(ctx context.Context, rec *storage.AccessRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `INSERT INTO access_log
		(request_id, method, path, authority, remote_ip, action, status, tags, request_map, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.RequestID, rec.Method, rec.Path, rec.Authority,
		rec.RemoteIP, rec.Action, rec.Status, rec.Tags, rec.RawMap, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. Used by tests and
// operational tooling.
func (s *Store) Recent(ctx context.Context, limit int) ([]*storage.AccessRecord, error) {
	query := `SELECT request_id, method, path, authority, remote_ip, action, status, tags, request_map, created_at
		FROM access_log ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query access records: %w", err)
	}
	defer rows.Close()

	var out []*storage.AccessRecord
	for rows.Next() {
		rec := &storage.AccessRecord{}
		if err := rows.Scan(&rec.RequestID, &rec.Method, &rec.Path, &rec.Authority,
			&rec.RemoteIP, &rec.Action, &rec.Status, &rec.Tags, &rec.RawMap, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan access record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
