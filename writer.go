// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package tablexls

import (
	"bufio"
	"context"
	"database/sql/driver"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/UNO-SOFT/tablexls/xls"
)

// WriteTable writes t as a one-sheet workbook into fileName,
// creating or truncating it.
func WriteTable(t *Table, fileName string) error {
	var w Writer
	return w.WriteTable(t, fileName)
}

// WriteDataSet writes every table of ds as a sheet, in order, into fileName,
// creating or truncating it.
func WriteDataSet(ds *DataSet, fileName string) error {
	var w Writer
	return w.WriteDataSet(ds, fileName)
}

// Writer writes tables into .xls workbooks.
//
// The whole workbook is assembled in memory, and the target is touched only
// if the input is valid.
type Writer struct {
	// Logger gets debug messages; nil means no logging.
	Logger *slog.Logger
	// Properties are written as the document summary of the workbook.
	Properties xls.Properties
}

func (w *Writer) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// WriteTable writes t as a one-sheet workbook into fileName.
func (w *Writer) WriteTable(t *Table, fileName string) error {
	wb, err := w.tableWorkbook(t)
	if err != nil {
		return err
	}
	return w.writeFile(wb, fileName)
}

// WriteDataSet writes every table of ds as a sheet into fileName.
func (w *Writer) WriteDataSet(ds *DataSet, fileName string) error {
	wb, err := w.dataSetWorkbook(ds)
	if err != nil {
		return err
	}
	return w.writeFile(wb, fileName)
}

// EncodeTable writes t as a one-sheet workbook to dst.
func (w *Writer) EncodeTable(dst io.Writer, t *Table) error {
	wb, err := w.tableWorkbook(t)
	if err != nil {
		return err
	}
	return w.encode(dst, wb)
}

// EncodeDataSet writes every table of ds as a sheet to dst.
func (w *Writer) EncodeDataSet(dst io.Writer, ds *DataSet) error {
	wb, err := w.dataSetWorkbook(ds)
	if err != nil {
		return err
	}
	return w.encode(dst, wb)
}

func (w *Writer) tableWorkbook(t *Table) (*xls.Workbook, error) {
	if err := ValidateTable(t); err != nil {
		return nil, err
	}
	wb := xls.NewWorkbook()
	wb.Properties = w.Properties
	w.importTable(wb, t)
	return wb, nil
}

func (w *Writer) dataSetWorkbook(ds *DataSet) (*xls.Workbook, error) {
	if err := ValidateDataSet(ds); err != nil {
		return nil, err
	}
	wb := xls.NewWorkbook()
	wb.Properties = w.Properties
	if wb.Properties.Title == "" {
		wb.Properties.Title = ds.Name
	}
	for _, t := range ds.Tables {
		w.importTable(wb, t)
	}
	return wb, nil
}

func (w *Writer) importTable(wb *xls.Workbook, t *Table) {
	Import(wb, t)
	logger := w.logger()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	sh := wb.SheetAt(wb.NumberOfSheets() - 1)
	rowMic, rowMac, colMic, colMac := sh.Dimensions()
	logger.Debug("sheet", "name", sh.Name, "table", t.Name,
		"rows", sh.NumberOfRows(), "range", sh.Range(),
		"dimensions", [4]int{rowMic, rowMac, colMic, colMac})
}

func (w *Writer) encode(dst io.Writer, wb *xls.Workbook) error {
	n, err := wb.WriteTo(dst)
	if err != nil {
		return err
	}
	w.logger().Debug("written", "sheets", wb.NumberOfSheets(), "bytes", n)
	return nil
}

// writeFile writes wb into fileName. Errors of the file system are returned
// as they are.
func (w *Writer) writeFile(wb *xls.Workbook, fileName string) error {
	fh, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer fh.Close()
	bw := bufio.NewWriterSize(fh, 1<<16)
	if err = w.encode(bw, wb); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	w.logger().Debug("closing", "file", fileName)
	return fh.Close()
}

// ValidateTable checks t against the sheet ceilings.
func ValidateTable(t *Table) error {
	if t == nil {
		return ErrNullInput
	}
	if n := len(t.Columns); n > xls.MaxColumns {
		return &DimensionError{Table: t.Name, Dimension: "columns", Count: n, Limit: xls.MaxColumns}
	}
	if n := len(t.Rows); n > xls.MaxRows {
		return &DimensionError{Table: t.Name, Dimension: "rows", Count: n, Limit: xls.MaxRows}
	}
	return nil
}

// ValidateDataSet checks that ds has tables, and each of them passes ValidateTable.
// It returns the first error.
func ValidateDataSet(ds *DataSet) error {
	if ds == nil {
		return ErrNullInput
	}
	if len(ds.Tables) == 0 {
		return ErrEmptyCollection
	}
	for i, t := range ds.Tables {
		if t == nil {
			return fmt.Errorf("table %d: %w", i, ErrNullInput)
		}
		if err := ValidateTable(t); err != nil {
			return err
		}
	}
	return nil
}

// Import adds t to wb as a new sheet.
//
// The sheet is named after the table, or "Sheet {n}" if the table has no name.
// Row and column indexes are the same as in the table; no header row is written.
//
// t must pass ValidateTable, Import panics on too many rows.
func Import(wb *xls.Workbook, t *Table) {
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("Sheet %d", wb.NumberOfSheets()+1)
	}
	s := &XLSSheet{sheet: wb.CreateSheet(name), cols: t.Columns}
	if len(s.cols) == 0 {
		return
	}
	for _, values := range t.Rows {
		if err := s.appendRow(values); err != nil {
			panic(fmt.Errorf("%s: %w", name, err))
		}
	}
}

// SetCellValue stores v into c according to the column's kind.
//
// database/sql/driver.Valuer values are unwrapped first.
// nil (and the zero time) leaves the cell blank, except for KindOther,
// which writes an empty string.
// A value not matching the kind is written as its fmt.Sprint text.
func SetCellValue(c *xls.Cell, kind Kind, v any) {
	if vr, ok := v.(driver.Valuer); ok {
		if vv, err := vr.Value(); err == nil {
			v = vv
		}
	}
	if v == nil {
		if kind == KindOther {
			c.SetString("")
		} else {
			c.SetBlank()
		}
		return
	}
	switch kind {
	case KindText:
		if s, ok := v.(string); ok {
			c.SetString(s)
			return
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			c.SetBool(b)
			return
		}
	case KindNumber:
		if f, ok := asFloat(v); ok {
			c.SetNumber(f)
			return
		}
	case KindTime:
		if t, ok := v.(time.Time); ok {
			if t.IsZero() {
				c.SetBlank()
			} else {
				c.SetTime(t)
			}
			return
		}
	case KindRichText:
		switch x := v.(type) {
		case xls.RichText:
			c.SetRichText(x)
			return
		case *xls.RichText:
			if x == nil {
				c.SetBlank()
			} else {
				c.SetRichText(*x)
			}
			return
		}
	}
	c.SetString(fmt.Sprint(v))
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case Number:
		f, err := strconv.ParseFloat(string(x), 64)
		return f, err == nil
	}
	return 0, false
}
