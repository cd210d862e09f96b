package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
)

// ============================================================================
// DATABASE BACKEND
// ============================================================================

// DatabaseBackend serves SQL query tools over database/sql. run_query is
// restricted to SELECT statements; execute_statement handles writes.
type DatabaseBackend struct {
	db     *sql.DB
	driver string
}

type runQueryArgs struct {
	Query string `json:"query" jsonschema:"required,description=SELECT statement to run"`
}

type executeStatementArgs struct {
	Statement string `json:"statement" jsonschema:"required,description=SQL statement to execute"`
}

// NewDatabaseBackend opens a database connection from configuration.
func NewDatabaseBackend(cfg config.ToolConfig) (*DatabaseBackend, error) {
	driver := cfg.Driver
	switch driver {
	case "sqlite":
		driver = "sqlite3"
	case "postgres", "mysql":
	default:
		return nil, core.NewValidationError("tools", "driver",
			fmt.Sprintf("unsupported database driver: %s", cfg.Driver))
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &DatabaseBackend{db: db, driver: cfg.Driver}, nil
}

// Name implements Backend.
func (b *DatabaseBackend) Name() string { return "database" }

// Tools implements Backend.
func (b *DatabaseBackend) Tools() []Definition {
	return []Definition{
		{
			Name:        "run_query",
			Description: "Run a SELECT statement and return rows as JSON",
			InputSchema: schemaFor(&runQueryArgs{}),
		},
		{
			Name:        "execute_statement",
			Description: "Execute a SQL statement and return the affected row count",
			InputSchema: schemaFor(&executeStatementArgs{}),
		},
	}
}

// Execute implements Backend.
func (b *DatabaseBackend) Execute(ctx context.Context, tool string, args map[string]any) (ToolResult, error) {
	switch tool {
	case "run_query":
		return b.runQuery(ctx, args)
	case "execute_statement":
		return b.executeStatement(ctx, args)
	default:
		return ToolResult{}, core.NewNotFoundError("tool", tool)
	}
}

// HealthCheck implements Backend.
func (b *DatabaseBackend) HealthCheck(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close releases the connection pool.
func (b *DatabaseBackend) Close() error {
	return b.db.Close()
}

func (b *DatabaseBackend) runQuery(ctx context.Context, args map[string]any) (ToolResult, error) {
	var in runQueryArgs
	if err := decodeArgs("run_query", schemaFor(&runQueryArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	trimmed := strings.TrimSpace(strings.ToUpper(in.Query))
	if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "WITH") {
		return ToolResult{}, core.NewValidationError("tools", "query",
			"run_query only accepts SELECT statements")
	}

	rows, err := b.db.QueryContext(ctx, in.Query)
	if err != nil {
		return ToolResult{}, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ToolResult{}, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if bs, ok := values[i].([]byte); ok {
				row[col] = string(bs)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return ToolResult{}, fmt.Errorf("row iteration failed: %w", err)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return ToolResult{}, fmt.Errorf("failed to encode rows: %w", err)
	}
	return ToolResult{
		Success: true,
		Content: string(payload),
		Metadata: map[string]any{
			"rows":    len(out),
			"columns": cols,
		},
	}, nil
}

func (b *DatabaseBackend) executeStatement(ctx context.Context, args map[string]any) (ToolResult, error) {
	var in executeStatementArgs
	if err := decodeArgs("execute_statement", schemaFor(&executeStatementArgs{}), args, &in); err != nil {
		return ToolResult{}, err
	}
	res, err := b.db.ExecContext(ctx, in.Statement)
	if err != nil {
		return ToolResult{}, fmt.Errorf("statement failed: %w", err)
	}
	affected, _ := res.RowsAffected()
	return ToolResult{
		Success: true,
		Content: fmt.Sprintf("%d row(s) affected", affected),
		Metadata: map[string]any{
			"rows_affected": affected,
		},
	}, nil
}
