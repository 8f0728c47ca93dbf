package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/duraflow-go/flow"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of flow.ContextStore.
//
// It stores execution contexts and event logs in a relational
// database. Designed for:
//   - Production deployments requiring persistence
//   - Distributed systems with multiple workers
//   - Long-running workflows that survive process restarts
//   - Audit trails over the execution log
//
// MySQLStore uses connection pooling and transactions for the
// append-with-dedup save contract.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Widths of the event table's composite primary key columns. In
// utf8mb4 each character costs 4 bytes and InnoDB caps index entries
// at 3072 bytes, so the three widths together must stay at or under
// 768 characters. Task source ids are "<name>_<16 hex>", well inside
// 384.
const (
	executionIDWidth = 255
	sourceIDWidth    = 384
	eventTypeWidth   = 64
)

// NewMySQLStore creates a MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example DSNs:
//
//	user:password@tcp(localhost:3306)/duraflow
//	user:password@tcp(127.0.0.1:3306)/duraflow?parseTime=true
//
// Never hardcode credentials; read the DSN from the environment or
// configuration:
//
//	dsn := os.Getenv("DURAFLOW_DATABASE_URL")
//	store, err := store.NewMySQLStore(dsn)
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	executionsTable := `
		CREATE TABLE IF NOT EXISTS workflow_executions (
			execution_id VARCHAR(255) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			input JSON NULL,
			output JSON NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, executionsTable); err != nil {
		return fmt.Errorf("failed to create workflow_executions table: %w", err)
	}

	eventsTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS workflow_execution_events (
			id BIGINT AUTO_INCREMENT,
			execution_id VARCHAR(%d) NOT NULL,
			source_id VARCHAR(%d) NOT NULL,
			type VARCHAR(%d) NOT NULL,
			name VARCHAR(255) NOT NULL,
			value JSON NULL,
			event_time VARCHAR(64) NOT NULL,
			PRIMARY KEY (execution_id, source_id, type),
			KEY id (id),
			INDEX idx_events_execution (execution_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`, executionIDWidth, sourceIDWidth, eventTypeWidth)
	if _, err := m.db.ExecContext(ctx, eventsTable); err != nil {
		return fmt.Errorf("failed to create workflow_execution_events table: %w", err)
	}
	return nil
}

// Save implements flow.ContextStore. The execution row is upserted and
// each event inserted with INSERT IGNORE against the composite primary
// key, all in one transaction.
func (m *MySQLStore) Save(ctx context.Context, ec *flow.ExecutionContext) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	tx, err := m.db.BeginTx(ctx, nil)
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
		ON DUPLICATE KEY UPDATE
			input = VALUES(input),
			output = VALUES(output)
	`
	_, err = tx.ExecContext(ctx, upsert,
		ec.ExecutionID(), ec.Name(), rawString(ec.Input()), rawString(ec.Output()))
	if err != nil {
		return fmt.Errorf("failed to upsert execution: %w", err)
	}

	insertEvent := `
		INSERT IGNORE INTO workflow_execution_events
			(execution_id, source_id, type, name, value, event_time)
		VALUES (?, ?, ?, ?, ?, ?)
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
func (m *MySQLStore) Get(ctx context.Context, executionID string) (*flow.ExecutionContext, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	var name string
	var input sql.NullString
	err := m.db.QueryRowContext(ctx,
		"SELECT name, input FROM workflow_executions WHERE execution_id = ?", executionID,
	).Scan(&name, &input)
	if err == sql.ErrNoRows {
		return nil, flow.ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT source_id, type, name, value, event_time
		FROM workflow_execution_events
		WHERE execution_id = ?
		ORDER BY id ASC
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
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()
	return m.db.PingContext(ctx)
}
