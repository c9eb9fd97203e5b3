// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFencedBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "tagged fence",
			input: "Here you go:\n```sql\nSELECT 1;\n```\nHope that helps!",
			want:  "SELECT 1;",
		},
		{
			name:  "untagged fence",
			input: "```\nSELECT * FROM staffs\n```",
			want:  "SELECT * FROM staffs",
		},
		{
			name:  "uppercase tag",
			input: "```SQL\nSELECT 1;\n```",
			want:  "SELECT 1;",
		},
		{
			name:  "first of several fences wins",
			input: "```sql\nSELECT 1;\n```\nor maybe\n```sql\nSELECT 2;\n```",
			want:  "SELECT 1;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.input)
			assert.Equal(t, tt.want, got.SQL)
			assert.Equal(t, StrategyFenced, got.Strategy)
		})
	}
}

func TestExtractPreambleStripped(t *testing.T) {
	got := Extract("Here is the SQL you asked for:\nSELECT * FROM orders")
	assert.Equal(t, "SELECT * FROM orders", got.SQL)
	assert.Equal(t, StrategyPreamble, got.Strategy)
}

func TestExtractKeywordAnchor(t *testing.T) {
	got := Extract("The answer involves a join. SELECT o.order_id FROM orders o")
	assert.Equal(t, "SELECT o.order_id FROM orders o", got.SQL)
	assert.Equal(t, StrategyKeyword, got.Strategy)

	got = Extract("try this one WITH t AS (SELECT 1) SELECT * FROM t")
	assert.Equal(t, "WITH t AS (SELECT 1) SELECT * FROM t", got.SQL)
	assert.Equal(t, StrategyKeyword, got.Strategy)
}

func TestExtractRawFallback(t *testing.T) {
	got := Extract("  no query here at all  ")
	assert.Equal(t, "no query here at all", got.SQL)
	assert.Equal(t, StrategyRaw, got.Strategy)
}

func TestExtractAlreadyClean(t *testing.T) {
	got := Extract("SELECT COUNT(*) FROM staffs")
	assert.Equal(t, "SELECT COUNT(*) FROM staffs", got.SQL)
	assert.Equal(t, StrategyRaw, got.Strategy)
}

func TestExtractIsDeterministic(t *testing.T) {
	input := "Based on the schema: something SELECT a FROM b"

	first := Extract(input)
	for range 5 {
		assert.Equal(t, first, Extract(input))
	}
}
