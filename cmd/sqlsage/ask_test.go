// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sqlsage-dev/sqlsage/internal/engine"
)

func TestRenderResult(t *testing.T) {
	buf := new(bytes.Buffer)
	renderResult(buf, engine.Result{
		Columns: []string{"id", "name"},
		Rows: [][]any{
			{int64(1), "Ada"},
			{int64(2), "Grace"},
		},
	}, 20)

	assert.Equal(t, "id\tname\n1\tAda\n2\tGrace\n", buf.String())
}

func TestRenderResultCapsRows(t *testing.T) {
	result := engine.Result{Columns: []string{"n"}}
	for i := range 25 {
		result.Rows = append(result.Rows, []any{int64(i)})
	}

	buf := new(bytes.Buffer)
	renderResult(buf, result, 20)

	assert.Contains(t, buf.String(), "... (5 more rows)")
	assert.NotContains(t, buf.String(), "\n24\n")
}

func TestRenderResultEmpty(t *testing.T) {
	buf := new(bytes.Buffer)
	renderResult(buf, engine.Result{Columns: []string{"n"}}, 20)

	assert.Equal(t, "n\n", buf.String())
}
