// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package engine_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/sqlsage-dev/sqlsage/internal/engine"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDB creates a DuckDB file with a small bike-store-flavored schema.
// The engine itself is read-only, so the fixture is written out-of-band.
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.duckdb")

	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	stmts := []string{
		`CREATE TABLE staffs (staff_id INTEGER, first_name VARCHAR, last_name VARCHAR)`,
		`CREATE TABLE orders (order_id INTEGER, staff_id INTEGER, order_date DATE)`,
		`INSERT INTO staffs VALUES (1, 'Ada', 'Nilsen'), (2, 'Joe', 'Brown')`,
		`INSERT INTO orders VALUES (10, 1, DATE '2024-01-02'), (11, 2, DATE '2024-01-03')`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return path
}

func openEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.Open(seedDB(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestOpenMissingFile(t *testing.T) {
	_, err := engine.Open(filepath.Join(t.TempDir(), "absent.duckdb"), nil)
	require.Error(t, err)
	assert.Equal(t, sageerr.CodeEngineOpenFailure, sageerr.CodeOf(err))
}

func TestValidateAcceptsWellFormedSQL(t *testing.T) {
	e := openEngine(t)
	assert.NoError(t, e.Validate(context.Background(), "SELECT * FROM staffs"))
}

func TestValidateRejectsUnknownTable(t *testing.T) {
	e := openEngine(t)
	err := e.Validate(context.Background(), "SELECT * FROM nosuchtable")
	require.Error(t, err)
	assert.Equal(t, sageerr.CodeEngineValidateFailed, sageerr.CodeOf(err))
	assert.Contains(t, err.Error(), "nosuchtable")
}

func TestValidateIsIdempotent(t *testing.T) {
	e := openEngine(t)
	const q = "SELECT first_name FROM staffs WHERE staff_id = 1"
	assert.NoError(t, e.Validate(context.Background(), q))
	assert.NoError(t, e.Validate(context.Background(), q))

	const bad = "SELECT nope FROM staffs"
	require.Error(t, e.Validate(context.Background(), bad))
	require.Error(t, e.Validate(context.Background(), bad))
}

func TestQueryReturnsRows(t *testing.T) {
	e := openEngine(t)
	res, err := e.Query(context.Background(), "SELECT staff_id, first_name FROM staffs ORDER BY staff_id")
	require.NoError(t, err)

	assert.Equal(t, []string{"staff_id", "first_name"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Ada", res.Rows[0][1])
}

func TestIntrospectSchema(t *testing.T) {
	e := openEngine(t)
	desc, err := e.IntrospectSchema(context.Background())
	require.NoError(t, err)

	require.Len(t, desc.Tables, 2)
	assert.Equal(t, "orders", desc.Tables[0].Name)
	assert.Equal(t, "staffs", desc.Tables[1].Name)
	assert.Equal(t, "staff_id", desc.Tables[1].Columns[0].Name)

	text := desc.Format()
	assert.Contains(t, text, "Table staffs: staff_id (INTEGER)")
}
