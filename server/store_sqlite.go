package server

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStoreConfig configures the SQLite invocation store.
type SQLiteStoreConfig struct {
	// DSN is the database connection string.
	DSN string

	// RetentionAge deletes records older than this duration (0 = no age
	// pruning).
	RetentionAge time.Duration

	// PruneInterval is how often to run pruning (default 1 hour).
	PruneInterval time.Duration
}

// SQLiteInvocationStore persists invocation records to a SQLite database.
// WAL mode keeps reads concurrent with the request-path writes; a
// background pruner enforces retention.
type SQLiteInvocationStore struct {
	db   *sql.DB
	cfg  SQLiteStoreConfig
	stop chan struct{}
	done chan struct{}
}

// NewSQLiteInvocationStore opens (or creates) a SQLite invocation store.
func NewSQLiteInvocationStore(cfg SQLiteStoreConfig) (*SQLiteInvocationStore, error) {
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = time.Hour
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invocationstore: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invocationstore: set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invocationstore: create schema: %w", err)
	}

	s := &SQLiteInvocationStore{
		db:   db,
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	if cfg.RetentionAge > 0 {
		go s.pruneLoop()
	} else {
		close(s.done)
	}

	return s, nil
}

// Append stores a record in the database.
func (s *SQLiteInvocationStore) Append(ctx context.Context, rec InvocationRecord) error {
	input := rec.Input
	if input == nil {
		input = map[string]any{}
	}
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("invocationstore: marshal input: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invocations (id, tool, input, status, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Tool,
		string(inputJSON),
		rec.Status,
		rec.ElapsedMS,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("invocationstore: append: %w", err)
	}
	return nil
}

// List returns records, newest first, optionally filtered by tool name.
func (s *SQLiteInvocationStore) List(ctx context.Context, tool string, limit int) ([]InvocationRecord, error) {
	query := `SELECT id, tool, input, status, elapsed_ms, created_at
	           FROM invocations`
	args := []any{}
	if tool != "" {
		query += " WHERE tool = ?"
		args = append(args, tool)
	}
	query += " ORDER BY rowid_pk DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("invocationstore: list: %w", err)
	}
	defer rows.Close()

	var recs []InvocationRecord
	for rows.Next() {
		var (
			rec       InvocationRecord
			inputJSON string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Tool, &inputJSON, &rec.Status, &rec.ElapsedMS, &createdAt); err != nil {
			return nil, fmt.Errorf("invocationstore: scan: %w", err)
		}

		if inputJSON != "" && inputJSON != "{}" {
			if err := json.Unmarshal([]byte(inputJSON), &rec.Input); err != nil {
				return nil, fmt.Errorf("invocationstore: unmarshal input: %w", err)
			}
		} else {
			rec.Input = map[string]any{}
		}

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("invocationstore: parse created_at %q: %w", createdAt, err)
		}
		rec.CreatedAt = t

		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close stops the background pruner and closes the database connection.
func (s *SQLiteInvocationStore) Close() error {
	select {
	case <-s.stop:
		// Already closed.
	default:
		close(s.stop)
	}
	<-s.done
	return s.db.Close()
}

// Prune runs a single pruning pass. Exported for testing.
func (s *SQLiteInvocationStore) Prune(ctx context.Context) error {
	if s.cfg.RetentionAge <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-s.cfg.RetentionAge).Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM invocations WHERE created_at < ?`, cutoff,
	); err != nil {
		return fmt.Errorf("invocationstore: prune: %w", err)
	}
	return nil
}

func (s *SQLiteInvocationStore) pruneLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = s.Prune(context.Background())
		}
	}
}

// Compile-time interface check.
var _ InvocationStore = (*SQLiteInvocationStore)(nil)
