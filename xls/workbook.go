// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package xls builds Excel 97-2003 (BIFF8) workbooks in memory and
// serializes them into a compound file.
//
// The model is sparse: rows and cells exist only where they were created.
// Everything is kept in memory until WriteTo is called, so huge sheets
// need a lot of memory.
package xls

import (
	"fmt"
	"slices"
)

const (
	// MaxRows is the number of rows a BIFF8 sheet can hold.
	MaxRows = 65536
	// MaxColumns is the number of columns a BIFF8 sheet can hold.
	MaxColumns = 256
	// MaxStringLen is the maximum length of a cell text, in UTF-16 units.
	MaxStringLen = 32767
	// MaxSheetNameLen is the maximum length of a sheet name, in UTF-16 units.
	MaxSheetNameLen = 31
)

// Workbook is an in-memory BIFF8 workbook.
//
// A Workbook is not safe for concurrent use.
type Workbook struct {
	// Properties are written as the SummaryInformation stream, if not empty.
	Properties Properties
	sheets     []*Sheet
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook { return &Workbook{} }

// CreateSheet appends a new, empty sheet.
//
// The name is used as is: duplicates are allowed, and names longer than
// MaxSheetNameLen are truncated only when the workbook is written.
// An empty name is replaced by "Sheet{n}".
func (wb *Workbook) CreateSheet(name string) *Sheet {
	if name == "" {
		name = fmt.Sprintf("Sheet%d", len(wb.sheets)+1)
	}
	sh := &Sheet{Name: name, rows: make(map[int]*Row)}
	wb.sheets = append(wb.sheets, sh)
	return sh
}

// NumberOfSheets returns the number of sheets created so far.
func (wb *Workbook) NumberOfSheets() int { return len(wb.sheets) }

// SheetAt returns the i-th sheet, or nil if there is no such sheet.
func (wb *Workbook) SheetAt(i int) *Sheet {
	if i < 0 || i >= len(wb.sheets) {
		return nil
	}
	return wb.sheets[i]
}

// Sheet is a named, sparse collection of rows.
type Sheet struct {
	Name string
	rows map[int]*Row
}

// GetRow returns the row at the 0-based index, or nil if it does not exist.
func (sh *Sheet) GetRow(i int) *Row { return sh.rows[i] }

// CreateRow creates a new, empty row at the 0-based index,
// replacing the existing one.
//
// CreateRow panics if i is outside [0, MaxRows).
func (sh *Sheet) CreateRow(i int) *Row {
	if i < 0 || i >= MaxRows {
		panic(fmt.Sprintf("xls: row index %d out of range [0,%d)", i, MaxRows))
	}
	r := &Row{index: i, cells: make(map[int]*Cell)}
	sh.rows[i] = r
	return r
}

// NumberOfRows returns the number of existing rows.
func (sh *Sheet) NumberOfRows() int { return len(sh.rows) }

// sortedRows returns the rows in index order.
func (sh *Sheet) sortedRows() []*Row {
	rows := make([]*Row, 0, len(sh.rows))
	for _, r := range sh.rows {
		rows = append(rows, r)
	}
	slices.SortFunc(rows, func(a, b *Row) int { return a.index - b.index })
	return rows
}

// Dimensions returns the first row, last row + 1, first column and
// last column + 1 of the used cells.
func (sh *Sheet) Dimensions() (rowMic, rowMac, colMic, colMac int) {
	first := true
	for _, r := range sh.rows {
		if first {
			rowMic, rowMac = r.index, r.index+1
		} else {
			rowMic, rowMac = min(rowMic, r.index), max(rowMac, r.index+1)
		}
		if len(r.cells) != 0 {
			cMic, cMac := r.span()
			if colMac == 0 {
				colMic, colMac = cMic, cMac
			} else {
				colMic, colMac = min(colMic, cMic), max(colMac, cMac)
			}
		}
		first = false
	}
	return rowMic, rowMac, colMic, colMac
}

// Range returns the A1-style range of the used cells ("A1:J10"),
// or "" if the sheet has no cells.
func (sh *Sheet) Range() string {
	rowMic, rowMac, colMic, colMac := sh.Dimensions()
	if colMac == 0 {
		return ""
	}
	return cellRef(rowMic, colMic) + ":" + cellRef(rowMac-1, colMac-1)
}

// Row is a sparse collection of cells.
type Row struct {
	cells map[int]*Cell
	index int
}

// Index returns the 0-based row index.
func (r *Row) Index() int { return r.index }

// GetCell returns the cell at the 0-based column, or nil if it does not exist.
func (r *Row) GetCell(col int) *Cell { return r.cells[col] }

// CreateCell creates a new, blank cell at the 0-based column,
// replacing the existing one.
//
// CreateCell panics if col is outside [0, MaxColumns).
func (r *Row) CreateCell(col int) *Cell {
	if col < 0 || col >= MaxColumns {
		panic(fmt.Sprintf("xls: column index %d out of range [0,%d)", col, MaxColumns))
	}
	c := &Cell{row: r.index, col: col, xf: xfDefault}
	r.cells[col] = c
	return c
}

// NumberOfCells returns the number of existing cells.
func (r *Row) NumberOfCells() int { return len(r.cells) }

// sortedCells returns the cells in column order.
func (r *Row) sortedCells() []*Cell {
	cells := make([]*Cell, 0, len(r.cells))
	for _, c := range r.cells {
		cells = append(cells, c)
	}
	slices.SortFunc(cells, func(a, b *Cell) int { return a.col - b.col })
	return cells
}

// span returns the first column and the last column + 1.
func (r *Row) span() (int, int) {
	if len(r.cells) == 0 {
		return 0, 0
	}
	colMic, colMac := MaxColumns, 0
	for c := range r.cells {
		colMic, colMac = min(colMic, c), max(colMac, c+1)
	}
	return colMic, colMac
}
