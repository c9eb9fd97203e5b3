// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

// Package schema holds the read-only descriptor of the target database and
// renders it into the compact textual form used in prompts.
package schema

import (
	"fmt"
	"strings"
)

// Column is a single named, typed column.
type Column struct {
	Name string
	Type string
}

// Table is a named table with its columns in declaration order.
type Table struct {
	Name    string
	Columns []Column
}

// Descriptor is an immutable snapshot of the target schema, taken at startup
// by the introspection layer and treated as read-only here. Table and column
// order is preserved so prompts are stable across runs.
type Descriptor struct {
	Tables []Table
}

// TableNames returns the table names in declaration order.
func (d Descriptor) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Format renders the descriptor as one line per table:
//
//	Table orders: order_id (INTEGER), customer_id (INTEGER), order_date (DATE)
//
// This is the exact shape the completion prompts embed.
func (d Descriptor) Format() string {
	var b strings.Builder
	for i, t := range d.Tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("Table ")
		b.WriteString(t.Name)
		b.WriteString(": ")
		for j, c := range t.Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s (%s)", c.Name, c.Type)
		}
	}
	return b.String()
}
