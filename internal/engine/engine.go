// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

// Package engine wraps read-only access to the target DuckDB database: plan-only
// validation of candidate SQL and full execution for result display and grading.
package engine

import (
	"context"
	"database/sql"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/sqlsage-dev/sqlsage/internal/schema"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

// Engine is a read-only handle on the target database.
// It is safe for concurrent use; database/sql pools connections internally.
type Engine struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens the DuckDB database at path in read-only mode. The file must
// already exist; sqlsage never creates or mutates the target database.
func Open(path string, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("duckdb", path+"?access_mode=read_only")
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeEngineOpenFailure, "opening duckdb database",
			sageerr.Field("path", path))
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, sageerr.Wrap(err, sageerr.CodeEngineOpenFailure, "pinging duckdb database",
			sageerr.Field("path", path))
	}

	return &Engine{db: db, path: path, logger: logger}, nil
}

// Close releases the underlying pool.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Validate submits query wrapped in EXPLAIN so the engine parses, binds, and
// plans it without executing the data path. A nil return means the statement
// is well-formed against the schema; otherwise the error carries the engine's
// diagnostic text. The connection is scoped to the call and released on every
// exit path.
func (e *Engine) Validate(ctx context.Context, query string) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return sageerr.Wrap(err, sageerr.CodeEngineOpenFailure, "acquiring connection")
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "EXPLAIN "+query); err != nil {
		return sageerr.Wrap(err, sageerr.CodeEngineValidateFailed, "explain rejected statement")
	}

	return nil
}

// Result holds the outcome of a full query execution.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Query executes query fully and returns all rows. Used by the interactive
// loop to display answers, by the trainer to grade them, and by the miner to
// confirm adapted SQL actually runs.
func (e *Engine) Query(ctx context.Context, query string) (Result, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return Result{}, sageerr.Wrap(err, sageerr.CodeEngineQueryFailure, "executing query")
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, sageerr.Wrap(err, sageerr.CodeEngineQueryFailure, "reading column names")
	}

	result := Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, sageerr.Wrap(err, sageerr.CodeEngineQueryFailure, "scanning row")
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return Result{}, sageerr.Wrap(err, sageerr.CodeEngineQueryFailure, "iterating rows")
	}

	return result, nil
}

// IntrospectSchema reads the table and column catalog of the open database
// into an ordered schema descriptor. Tables come back in name order and
// columns in declaration order, so the rendered schema text is stable.
func (e *Engine) IntrospectSchema(ctx context.Context) (schema.Descriptor, error) {
	const q = `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'main'
ORDER BY table_name, ordinal_position`

	rows, err := e.db.QueryContext(ctx, q)
	if err != nil {
		return schema.Descriptor{}, sageerr.Wrap(err, sageerr.CodeEngineQueryFailure, "introspecting schema")
	}
	defer func() { _ = rows.Close() }()

	var desc schema.Descriptor
	for rows.Next() {
		var table, column, dtype string
		if err := rows.Scan(&table, &column, &dtype); err != nil {
			return schema.Descriptor{}, sageerr.Wrap(err, sageerr.CodeEngineQueryFailure, "scanning catalog row")
		}
		n := len(desc.Tables)
		if n == 0 || desc.Tables[n-1].Name != table {
			desc.Tables = append(desc.Tables, schema.Table{Name: table})
			n++
		}
		desc.Tables[n-1].Columns = append(desc.Tables[n-1].Columns, schema.Column{Name: column, Type: dtype})
	}
	if err := rows.Err(); err != nil {
		return schema.Descriptor{}, sageerr.Wrap(err, sageerr.CodeEngineQueryFailure, "iterating catalog rows")
	}

	return desc, nil
}
