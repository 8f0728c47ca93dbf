// Package store provides durable ContextStore implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/duraflow-go/flow"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of flow.ContextStore.
//
// It stores execution contexts and their event logs in a single-file
// database. Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments
//   - Local workflows requiring durability across restarts
//
// SQLiteStore uses WAL mode for concurrent reads and transactional
// writes for the append-with-dedup save contract.
//
// Schema:
//   - workflow_executions: one row per execution (identity, input, output)
//   - workflow_execution_events: the append-only event log, keyed by
//     (execution_id, source_id, type) so re-saving a context is a no-op
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore creates a SQLite-backed store.
//
// The path parameter specifies the database file location:
//   - "./duraflow.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// The store automatically creates the database file and schema, and
// enables WAL mode for concurrent reads.
//
// Example:
//
//	store, err := store.NewSQLiteStore("./duraflow.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	executionsTable := `
		CREATE TABLE IF NOT EXISTS workflow_executions (
			execution_id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			input TEXT,
			output TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, executionsTable); err != nil {
		return fmt.Errorf("failed to create workflow_executions table: %w", err)
	}

	eventsTable := `
		CREATE TABLE IF NOT EXISTS workflow_execution_events (
			execution_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT,
			event_time TEXT NOT NULL,
			PRIMARY KEY (execution_id, source_id, type),
			FOREIGN KEY (execution_id) REFERENCES workflow_executions(execution_id)
		)
	`
	if _, err := s.db.ExecContext(ctx, eventsTable); err != nil {
		return fmt.Errorf("failed to create workflow_execution_events table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_events_execution ON workflow_execution_events(execution_id)"); err != nil {
		return fmt.Errorf("failed to create idx_events_execution: %w", err)
	}
	return nil
}

// Save implements flow.ContextStore.
//
// The context row is upserted and each event inserted with
// ON CONFLICT DO NOTHING on (execution_id, source_id, type), all in
// one transaction. Saving an unchanged context leaves storage
// unchanged.
func (s *SQLiteStore) Save(ctx context.Context, ec *flow.ExecutionContext) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	upsert := `
		INSERT INTO workflow_executions (execution_id, name, input, output)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(execution_id) DO UPDATE SET
			input = excluded.input,
			output = excluded.output,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = tx.ExecContext(ctx, upsert,
		ec.ExecutionID(), ec.Name(), rawString(ec.Input()), rawString(ec.Output()))
	if err != nil {
		return fmt.Errorf("failed to upsert execution: %w", err)
	}

	insertEvent := `
		INSERT INTO workflow_execution_events (execution_id, source_id, type, name, value, event_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(execution_id, source_id, type) DO NOTHING
	`
	for _, ev := range ec.Events() {
		_, err = tx.ExecContext(ctx, insertEvent,
			ec.ExecutionID(), ev.SourceID, string(ev.Type), ev.Name,
			rawString(ev.Value), ev.Time.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to insert event %s/%s: %w", ev.SourceID, ev.Type, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get implements flow.ContextStore. Events come back in insertion
// order. Returns flow.ErrContextNotFound when the execution id is
// unknown.
func (s *SQLiteStore) Get(ctx context.Context, executionID string) (*flow.ExecutionContext, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("store is closed")
	}
	s.mu.RUnlock()

	var name string
	var input sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT name, input FROM workflow_executions WHERE execution_id = ?", executionID,
	).Scan(&name, &input)
	if err == sql.ErrNoRows {
		return nil, flow.ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, type, name, value, event_time
		FROM workflow_execution_events
		WHERE execution_id = ?
		ORDER BY rowid ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []flow.ExecutionEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return flow.RestoreExecutionContext(executionID, name, nullRaw(input), events), nil
}

// Close closes the database connection. Double-close is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive. Useful for health
// checks.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	s.mu.RUnlock()
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

type eventScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row eventScanner) (flow.ExecutionEvent, error) {
	var (
		sourceID, typ, name string
		value               sql.NullString
		eventTime           string
	)
	if err := row.Scan(&sourceID, &typ, &name, &value, &eventTime); err != nil {
		return flow.ExecutionEvent{}, fmt.Errorf("failed to scan event row: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, eventTime)
	if err != nil {
		return flow.ExecutionEvent{}, fmt.Errorf("failed to parse event time: %w", err)
	}
	return flow.ExecutionEvent{
		Type:     flow.EventType(typ),
		SourceID: sourceID,
		Name:     name,
		Value:    nullRaw(value),
		Time:     ts,
	}, nil
}

func rawString(raw json.RawMessage) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}

func nullRaw(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}
