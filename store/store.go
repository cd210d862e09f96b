// Package store persists task progress and workflow executions to a SQL
// database so history survives restarts and stays queryable.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
	"github.com/oliver-os/conductor/distributor"
	"github.com/oliver-os/conductor/workflow"
)

// Store writes history rows with JSON payload columns. Writes are
// UPSERTs keyed by id, so re-saving a record is safe.
type Store struct {
	db      *sql.DB
	dialect string
}

const (
	createTaskProgressTableSQL = `
CREATE TABLE IF NOT EXISTS task_progress (
    task_id VARCHAR(255) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    status VARCHAR(32) NOT NULL,
    payload_json TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

	createExecutionsTableSQL = `
CREATE TABLE IF NOT EXISTS workflow_executions (
    id VARCHAR(255) PRIMARY KEY,
    workflow_id VARCHAR(255) NOT NULL,
    status VARCHAR(32) NOT NULL,
    payload_json TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
)`

	createExecutionsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_workflow_executions_workflow_id ON workflow_executions(workflow_id)`
)

// Open opens a connection from storage configuration and initializes
// the schema.
func Open(cfg config.StorageConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "sqlite" {
		driver = "sqlite3"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return New(db, cfg.Driver)
}

// New wraps an existing connection. The db should be shared with other
// services using the same database to avoid SQLite lock contention.
func New(db *sql.DB, dialect string) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if dialect == "sqlite3" {
		dialect = "sqlite"
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range []string{
		createTaskProgressTableSQL,
		createExecutionsTableSQL,
		createExecutionsIndexSQL,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================================================
// TASK PROGRESS
// ============================================================================

// SaveTaskProgress upserts one task progress snapshot.
func (s *Store) SaveTaskProgress(ctx context.Context, progress *distributor.TaskProgress) error {
	if progress == nil {
		return fmt.Errorf("task progress is required")
	}
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to serialize task progress: %w", err)
	}

	query := `
INSERT INTO task_progress (task_id, name, status, payload_json, started_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name = VALUES(name),
    status = VALUES(status),
    payload_json = VALUES(payload_json),
    updated_at = VALUES(updated_at)
`
	switch s.dialect {
	case "postgres":
		query = `
INSERT INTO task_progress (task_id, name, status, payload_json, started_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (task_id) DO UPDATE SET
    name = EXCLUDED.name,
    status = EXCLUDED.status,
    payload_json = EXCLUDED.payload_json,
    updated_at = EXCLUDED.updated_at
`
	case "sqlite":
		query = `
INSERT INTO task_progress (task_id, name, status, payload_json, started_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id) DO UPDATE SET
    name = excluded.name,
    status = excluded.status,
    payload_json = excluded.payload_json,
    updated_at = excluded.updated_at
`
	}

	_, err = s.db.ExecContext(ctx, query,
		progress.TaskID, progress.Name, string(progress.Status),
		string(payload), progress.StartedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save task progress: %w", err)
	}
	return nil
}

// GetTaskProgress loads one task progress record by id.
func (s *Store) GetTaskProgress(ctx context.Context, taskID string) (*distributor.TaskProgress, error) {
	query := `SELECT payload_json FROM task_progress WHERE task_id = ?`
	if s.dialect == "postgres" {
		query = `SELECT payload_json FROM task_progress WHERE task_id = $1`
	}

	var payload string
	err := s.db.QueryRowContext(ctx, query, taskID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, core.NewNotFoundError("task", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task progress: %w", err)
	}

	var progress distributor.TaskProgress
	if err := json.Unmarshal([]byte(payload), &progress); err != nil {
		return nil, fmt.Errorf("failed to deserialize task progress: %w", err)
	}
	return &progress, nil
}

// ============================================================================
// WORKFLOW EXECUTIONS
// ============================================================================

// SaveExecution upserts one workflow execution.
func (s *Store) SaveExecution(ctx context.Context, exec *workflow.Execution) error {
	if exec == nil {
		return fmt.Errorf("execution is required")
	}
	payload, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to serialize execution: %w", err)
	}

	query := `
INSERT INTO workflow_executions (id, workflow_id, status, payload_json, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    status = VALUES(status),
    payload_json = VALUES(payload_json),
    completed_at = VALUES(completed_at)
`
	switch s.dialect {
	case "postgres":
		query = `
INSERT INTO workflow_executions (id, workflow_id, status, payload_json, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    payload_json = EXCLUDED.payload_json,
    completed_at = EXCLUDED.completed_at
`
	case "sqlite":
		query = `
INSERT INTO workflow_executions (id, workflow_id, status, payload_json, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    payload_json = excluded.payload_json,
    completed_at = excluded.completed_at
`
	}

	var completedAt any
	if !exec.CompletedAt.IsZero() {
		completedAt = exec.CompletedAt
	}
	_, err = s.db.ExecContext(ctx, query,
		exec.ID, exec.WorkflowID, string(exec.Status),
		string(payload), exec.StartedAt, completedAt)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

// ListExecutions returns the stored executions of one workflow, oldest
// first.
func (s *Store) ListExecutions(ctx context.Context, workflowID string) ([]*workflow.Execution, error) {
	query := `SELECT payload_json FROM workflow_executions WHERE workflow_id = ? ORDER BY started_at`
	if s.dialect == "postgres" {
		query = `SELECT payload_json FROM workflow_executions WHERE workflow_id = $1 ORDER BY started_at`
	}

	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var out []*workflow.Execution
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		var exec workflow.Execution
		if err := json.Unmarshal([]byte(payload), &exec); err != nil {
			return nil, fmt.Errorf("failed to deserialize execution: %w", err)
		}
		out = append(out, &exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("execution row iteration failed: %w", err)
	}
	return out, nil
}
