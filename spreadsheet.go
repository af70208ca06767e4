// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package tablexls

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/UNO-SOFT/tablexls/xls"
)

// SpreadsheetWriter writes the workbook consisting of the sheets created
// with NewSheet. The write finishes when Close is called.
//
// The writer SHOULD allow writing to separate sheets concurrently,
// and document if it does not provide this functionality.
type SpreadsheetWriter interface {
	io.Closer
	NewSheet(name string, cols []Column) (Sheet, error)
}

// Sheet should be Closed when finished.
type Sheet interface {
	io.Closer
	AppendRow(values ...any) error
}

var _ = (SpreadsheetWriter)((*XLSWriter)(nil))

// XLSWriter is a SpreadsheetWriter producing an .xls workbook.
type XLSWriter struct {
	w      io.Writer
	wb     *xls.Workbook
	writer Writer
	mu     sync.Mutex
}

// XLSSheet is a sheet of an XLSWriter.
type XLSSheet struct {
	sheet *xls.Sheet
	cols  []Column
	row   int
	mu    sync.Mutex
}

// NewXLSWriter returns a new SpreadsheetWriter writing to w.
//
// This writer allows concurrent writes to separate sheets.
//
// This writer collects everything in memory, and writes it on Close.
func NewXLSWriter(w io.Writer) *XLSWriter {
	var xw Writer
	return xw.NewXLSWriter(w)
}

// NewXLSWriter returns a new SpreadsheetWriter writing to dst,
// with the Properties and Logger of w.
func (w *Writer) NewXLSWriter(dst io.Writer) *XLSWriter {
	wb := xls.NewWorkbook()
	wb.Properties = w.Properties
	return &XLSWriter{w: dst, wb: wb, writer: *w}
}

// Close writes the workbook. Subsequent calls are no-ops.
func (xw *XLSWriter) Close() error {
	if xw == nil {
		return nil
	}
	xw.mu.Lock()
	defer xw.mu.Unlock()
	wb, w := xw.wb, xw.w
	xw.wb, xw.w = nil, nil
	if wb == nil || w == nil {
		return nil
	}
	return xw.writer.encode(w, wb)
}

// NewSheet appends a sheet with the given columns.
// The column names are not written: append them as a row if needed.
//
// An empty name is replaced by "Sheet {n}".
func (xw *XLSWriter) NewSheet(name string, cols []Column) (Sheet, error) {
	if n := len(cols); n > xls.MaxColumns {
		return nil, &DimensionError{Table: name, Dimension: "columns", Count: n, Limit: xls.MaxColumns}
	}
	xw.mu.Lock()
	defer xw.mu.Unlock()
	if xw.wb == nil {
		return nil, fmt.Errorf("new sheet %q: %w", name, os.ErrClosed)
	}
	if name == "" {
		name = fmt.Sprintf("Sheet %d", xw.wb.NumberOfSheets()+1)
	}
	s := &XLSSheet{sheet: xw.wb.CreateSheet(name), cols: slices.Clone(cols)}
	xw.writer.logger().Debug("NewSheet", "name", name, "columns", len(cols))
	return s, nil
}

// Name of the sheet.
func (s *XLSSheet) Name() string { return s.sheet.Name }

func (s *XLSSheet) Close() error { return nil }

// AppendRow appends the values as the next row, in column order.
// Missing values are nil.
func (s *XLSSheet) AppendRow(values ...any) error {
	if len(values) > len(s.cols) {
		return fmt.Errorf("%s: %d values for %d columns: %w", s.sheet.Name, len(values), len(s.cols), ErrTooManyValues)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRow(values)
}

// appendRow writes values, ignoring the ones without a column.
func (s *XLSSheet) appendRow(values []any) error {
	if s.row >= xls.MaxRows {
		return ErrTooManyRows
	}
	row := s.sheet.GetRow(s.row)
	if row == nil {
		row = s.sheet.CreateRow(s.row)
	}
	s.row++
	for c, col := range s.cols {
		var v any
		if c < len(values) {
			v = values[c]
		}
		cell := row.GetCell(c)
		if cell == nil {
			cell = row.CreateCell(c)
		}
		SetCellValue(cell, col.Kind, v)
	}
	return nil
}
