// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package tablexls writes in-memory tables into Excel 97-2003 (.xls) files,
// one sheet per table.
package tablexls

import (
	"errors"
	"fmt"
)

// Kind is the declared value type of a column.
type Kind uint8

const (
	// KindOther values are written as their fmt.Sprint text.
	KindOther Kind = iota
	// KindText values are strings.
	KindText
	// KindBool values are bools.
	KindBool
	// KindNumber values are Go numbers or Number strings.
	KindNumber
	// KindTime values are time.Time instants, written as date serials.
	KindTime
	// KindRichText values are xls.RichText.
	KindRichText
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	case KindRichText:
		return "richtext"
	default:
		return "other"
	}
}

// Column is the Name and declared Kind of a column.
type Column struct {
	Name string
	Kind Kind
}

// Table is a named set of columns and rows.
//
// Each row should have one value per column, typed per the column's Kind,
// or nil. Missing trailing values are treated as nil, extra values are
// ignored.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ErrTooManyValues is returned by AddRow when a row has more values than
// the table has columns.
var ErrTooManyValues = errors.New("too many values")

// NewTable returns an empty table.
func NewTable(name string) *Table { return &Table{Name: name} }

// AddColumn appends a column and returns its index.
func (t *Table) AddColumn(name string, kind Kind) int {
	t.Columns = append(t.Columns, Column{Name: name, Kind: kind})
	return len(t.Columns) - 1
}

// AddRow appends a row, padded with nils to the number of columns.
func (t *Table) AddRow(values ...any) error {
	if len(values) > len(t.Columns) {
		return fmt.Errorf("%s: %d values for %d columns: %w", t.Name, len(values), len(t.Columns), ErrTooManyValues)
	}
	row := make([]any, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
	return nil
}

// DataSet is an ordered collection of tables, written into one workbook.
// Table names need not be unique.
type DataSet struct {
	Name   string
	Tables []*Table
}

// Add appends the tables.
func (ds *DataSet) Add(tables ...*Table) { ds.Tables = append(ds.Tables, tables...) }

// Number is a string that contains a number.
type Number string
