// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package tablexls

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/UNO-SOFT/tablexls/internal/xlstest"
	"github.com/UNO-SOFT/tablexls/xls"
)

// makeTable returns a table of text columns, with "R{r+1}C{c+1}" in each cell.
func makeTable(name string, cols, rows int) *Table {
	t := NewTable(name)
	for c := range cols {
		t.AddColumn(fmt.Sprintf("C%d", c+1), KindText)
	}
	t.Rows = make([][]any, rows)
	for r := range rows {
		row := make([]any, cols)
		for c := range cols {
			row[c] = fmt.Sprintf("R%dC%d", r+1, c+1)
		}
		t.Rows[r] = row
	}
	return t
}

func readBack(t *testing.T, fileName string) *xlstest.Book {
	t.Helper()
	book, err := xlstest.Open(fileName)
	require.NoError(t, err)
	return book
}

func assertCells(t *testing.T, sh *xlstest.Sheet, cols, rows int) {
	t.Helper()
	require.Len(t, sh.Cells, cols*rows)
	for r := range rows {
		for c := range cols {
			cell, ok := sh.Cell(r, c)
			require.True(t, ok, "%d,%d", r, c)
			require.Equal(t, xlstest.String, cell.Type)
			require.Equal(t, fmt.Sprintf("R%dC%d", r+1, c+1), cell.Text)
		}
	}
}

func TestWriteTable(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "table.xls")
	require.NoError(t, WriteTable(makeTable("data", 10, 10), fn))

	book := readBack(t, fn)
	require.Len(t, book.Sheets, 1)
	sh := book.Sheets[0]
	assert.Equal(t, "data", sh.Name)
	c, _ := sh.Cell(0, 0)
	assert.Equal(t, "R1C1", c.Text)
	c, _ = sh.Cell(9, 9)
	assert.Equal(t, "R10C10", c.Text)
	assertCells(t, sh, 10, 10)
	assert.Empty(t, book.Properties)
}

func TestWriteTableOverwrites(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "table.xls")
	require.NoError(t, os.WriteFile(fn, bytes.Repeat([]byte("x"), 1<<20), 0644))
	require.NoError(t, WriteTable(makeTable("small", 1, 1), fn))
	fi, err := os.Stat(fn)
	require.NoError(t, err)
	assert.Less(t, fi.Size(), int64(1<<20))
	assertCells(t, readBack(t, fn).Sheets[0], 1, 1)
}

func TestWriteDataSet(t *testing.T) {
	var ds DataSet
	ds.Add(makeTable("first", 2, 3), makeTable("second", 3, 2), makeTable("third", 0, 0))
	fn := filepath.Join(t.TempDir(), "dataset.xls")
	require.NoError(t, WriteDataSet(&ds, fn))

	book := readBack(t, fn)
	require.Len(t, book.Sheets, 3)
	for i, name := range []string{"first", "second", "third"} {
		assert.Equal(t, name, book.Sheets[i].Name)
	}
	assertCells(t, book.Sheets[0], 2, 3)
	assertCells(t, book.Sheets[1], 3, 2)
	assert.Empty(t, book.Sheets[2].Cells)
}

func TestWriteDataSetEmpty(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "empty.xls")
	err := WriteDataSet(&DataSet{Name: "empty"}, fn)
	assert.ErrorIs(t, err, ErrEmptyCollection)
	_, err = os.Stat(fn)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestNullInput(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "null.xls")
	assert.ErrorIs(t, WriteTable(nil, fn), ErrNullInput)
	assert.ErrorIs(t, WriteDataSet(nil, fn), ErrNullInput)
	err := WriteDataSet(&DataSet{Tables: []*Table{makeTable("a", 1, 1), nil}}, fn)
	assert.ErrorIs(t, err, ErrNullInput)
	assert.ErrorContains(t, err, "table 1")
	_, err = os.Stat(fn)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDimensionExceeded(t *testing.T) {
	for _, tc := range []struct {
		table     *Table
		dimension string
		count     int
		limit     int
	}{
		{makeTable("wide", xls.MaxColumns+1, 1), "columns", 257, 256},
		{makeTable("long", 1, xls.MaxRows+1), "rows", 65537, 65536},
	} {
		t.Run(tc.table.Name, func(t *testing.T) {
			fn := filepath.Join(t.TempDir(), "big.xls")
			require.NoError(t, os.WriteFile(fn, []byte("keep"), 0644))

			err := WriteTable(tc.table, fn)
			require.ErrorIs(t, err, ErrDimensionExceeded)
			var dimErr *DimensionError
			require.True(t, errors.As(err, &dimErr))
			assert.Equal(t, DimensionError{Table: tc.table.Name, Dimension: tc.dimension, Count: tc.count, Limit: tc.limit}, *dimErr)

			// a bad member fails the whole collection, before the file is touched
			err = WriteDataSet(&DataSet{Tables: []*Table{makeTable("ok", 1, 1), tc.table}}, fn)
			require.ErrorIs(t, err, ErrDimensionExceeded)

			b, err := os.ReadFile(fn)
			require.NoError(t, err)
			assert.Equal(t, "keep", string(b))
		})
	}
}

func TestCeilings(t *testing.T) {
	dir := t.TempDir()

	wide := filepath.Join(dir, "wide.xls")
	require.NoError(t, WriteTable(makeTable("wide", xls.MaxColumns, 1), wide))
	sh := readBack(t, wide).Sheets[0]
	assertCells(t, sh, xls.MaxColumns, 1)
	c, _ := sh.Cell(0, 255)
	assert.Equal(t, "R1C256", c.Text)

	long := filepath.Join(dir, "long.xls")
	require.NoError(t, WriteTable(makeTable("long", 1, xls.MaxRows), long))
	sh = readBack(t, long).Sheets[0]
	assert.Equal(t, xls.MaxRows, sh.Rows)
	c, _ = sh.Cell(65535, 0)
	assert.Equal(t, "R65536C1", c.Text)
}

func TestCeilingsFull(t *testing.T) {
	if testing.Short() {
		t.Skip("writes a full 256x65536 sheet")
	}
	tbl := NewTable("full")
	for c := range xls.MaxColumns {
		tbl.AddColumn(fmt.Sprintf("C%d", c+1), KindText)
	}
	row := make([]any, xls.MaxColumns)
	for c := range row {
		row[c] = "x"
	}
	tbl.Rows = make([][]any, xls.MaxRows)
	for r := range tbl.Rows {
		tbl.Rows[r] = row
	}
	last := slices.Clone(row)
	last[0], last[xls.MaxColumns-1] = "first", "last"
	tbl.Rows[xls.MaxRows-1] = last
	require.NoError(t, ValidateTable(tbl))

	fn := filepath.Join(t.TempDir(), "full.xls")
	require.NoError(t, WriteTable(tbl, fn))

	sh := readBack(t, fn).Sheets[0]
	assert.Equal(t, [4]int{0, xls.MaxRows, 0, xls.MaxColumns}, sh.Dimensions)
	assert.Equal(t, xls.MaxRows, sh.Rows)
	assert.Len(t, sh.Cells, xls.MaxRows*xls.MaxColumns)
	for _, tc := range []struct {
		row, col int
		want     string
	}{
		{0, 0, "x"},
		{0, xls.MaxColumns - 1, "x"},
		{xls.MaxRows - 2, xls.MaxColumns - 1, "x"},
		{xls.MaxRows - 1, 0, "first"},
		{xls.MaxRows - 1, xls.MaxColumns - 1, "last"},
	} {
		c, ok := sh.Cell(tc.row, tc.col)
		require.True(t, ok, "%d,%d", tc.row, tc.col)
		assert.Equal(t, tc.want, c.Text, "%d,%d", tc.row, tc.col)
	}
}

func TestKinds(t *testing.T) {
	when := time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC)
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	rich := xls.NewRichText(
		excelize.RichTextRun{Text: "bold", Font: &excelize.Font{Bold: true}},
		excelize.RichTextRun{Text: " plain"},
	)

	tbl := NewTable("kinds")
	tbl.AddColumn("text", KindText)
	tbl.AddColumn("bool", KindBool)
	tbl.AddColumn("number", KindNumber)
	tbl.AddColumn("time", KindTime)
	tbl.AddColumn("rich", KindRichText)
	tbl.AddColumn("other", KindOther)
	require.NoError(t, tbl.AddRow("a", true, 1.2, when, rich, 42))
	require.NoError(t, tbl.AddRow(nil, nil, nil, nil, nil, nil))
	require.NoError(t, tbl.AddRow(
		sql.NullString{String: "valid", Valid: true}, false, Number("3.5"), day, &rich, struct{ A int }{7}))
	require.NoError(t, tbl.AddRow(12, "yes", "many", "today", "plain", sql.NullInt64{}))
	require.NoError(t, tbl.AddRow("short"))

	fn := filepath.Join(t.TempDir(), "kinds.xls")
	require.NoError(t, WriteTable(tbl, fn))
	book := readBack(t, fn)
	sh := book.Sheets[0]
	cell := func(r, c int) xlstest.Cell {
		t.Helper()
		x, ok := sh.Cell(r, c)
		require.True(t, ok, "%d,%d", r, c)
		return x
	}

	assert.Equal(t, "a", cell(0, 0).Text)
	assert.Equal(t, xlstest.Cell{Type: xlstest.Bool, Bool: true}, cell(0, 1))
	assert.Equal(t, xlstest.Number, cell(0, 2).Type)
	assert.Equal(t, 1.2, cell(0, 2).Number)
	assert.True(t, cell(0, 3).IsDate())
	got, err := excelize.ExcelDateToTime(cell(0, 3).Number, book.Date1904)
	require.NoError(t, err)
	assert.WithinDuration(t, when, got, time.Second)
	assert.Equal(t, "bold plain", cell(0, 4).Text)
	assert.Len(t, cell(0, 4).Runs, 2)
	assert.Equal(t, "42", cell(0, 5).Text)

	for c := range 5 {
		assert.Equal(t, xlstest.Blank, cell(1, c).Type, c)
	}
	assert.Equal(t, xlstest.Cell{Type: xlstest.String}, cell(1, 5))

	assert.Equal(t, "valid", cell(2, 0).Text)
	assert.Equal(t, xlstest.Cell{Type: xlstest.Bool}, cell(2, 1))
	assert.Equal(t, 3.5, cell(2, 2).Number)
	assert.True(t, cell(2, 3).IsDate())
	assert.Equal(t, 45366.0, cell(2, 3).Number)
	assert.Equal(t, "bold plain", cell(2, 4).Text)
	assert.Equal(t, "{7}", cell(2, 5).Text)

	// mismatching values are written as text
	for c, want := range []string{"12", "yes", "many", "today", "plain"} {
		assert.Equal(t, xlstest.Cell{Type: xlstest.String, Text: want}, cell(3, c), c)
	}
	assert.Equal(t, xlstest.Cell{Type: xlstest.String}, cell(3, 5))

	assert.Equal(t, "short", cell(4, 0).Text)
	assert.Equal(t, xlstest.Blank, cell(4, 1).Type)
	assert.Equal(t, xlstest.Cell{Type: xlstest.String}, cell(4, 5))
}

func TestDuplicateNames(t *testing.T) {
	a, b := makeTable("dup", 1, 1), makeTable("dup", 2, 2)
	fn := filepath.Join(t.TempDir(), "dup.xls")
	require.NoError(t, WriteDataSet(&DataSet{Tables: []*Table{a, b}}, fn))
	book := readBack(t, fn)
	require.Len(t, book.Sheets, 2)
	assert.Equal(t, "dup", book.Sheets[0].Name)
	assert.Equal(t, "dup", book.Sheets[1].Name)
	assertCells(t, book.Sheets[0], 1, 1)
	assertCells(t, book.Sheets[1], 2, 2)
}

func TestSheetNames(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "names.xls")
	require.NoError(t, WriteDataSet(&DataSet{Tables: []*Table{
		makeTable("", 1, 1), makeTable("named", 1, 1), makeTable("", 1, 1),
	}}, fn))
	book := readBack(t, fn)
	require.Len(t, book.Sheets, 3)
	assert.Equal(t, "Sheet 1", book.Sheets[0].Name)
	assert.Equal(t, "named", book.Sheets[1].Name)
	assert.Equal(t, "Sheet 3", book.Sheets[2].Name)

	require.NoError(t, WriteTable(makeTable("", 1, 1), fn))
	assert.Equal(t, "Sheet 1", readBack(t, fn).Sheets[0].Name)
}

func TestWriteReadOnlyFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can write read-only files")
	}
	fn := filepath.Join(t.TempDir(), "ro.xls")
	require.NoError(t, os.WriteFile(fn, []byte("keep"), 0444))

	err := WriteTable(makeTable("ro", 1, 1), fn)
	require.ErrorIs(t, err, fs.ErrPermission)
	var pathErr *fs.PathError
	assert.True(t, errors.As(err, &pathErr))

	b, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(b))
}

func TestWriteInvalidPath(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "no", "such", "dir.xls")
	err := WriteDataSet(&DataSet{Tables: []*Table{makeTable("x", 1, 1)}}, fn)
	require.ErrorIs(t, err, fs.ErrNotExist)
	var pathErr *fs.PathError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, fn, pathErr.Path)

	err = WriteTable(makeTable("x", 1, 1), t.TempDir())
	assert.Error(t, err)
}

func TestWriterEncode(t *testing.T) {
	var logs bytes.Buffer
	w := Writer{
		Logger:     slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Properties: xls.Properties{Author: "tester", Application: "tablexls"},
	}
	var buf bytes.Buffer
	require.NoError(t, w.EncodeDataSet(&buf, &DataSet{Name: "Report", Tables: []*Table{makeTable("a", 2, 2)}}))
	book, err := xlstest.Read(buf.Bytes())
	require.NoError(t, err)
	assertCells(t, book.Sheets[0], 2, 2)
	assert.Equal(t, "Report", book.Properties["Title"])
	assert.Equal(t, "tester", book.Properties["Author"])
	assert.Equal(t, "tablexls", book.Properties["AppName"])
	assert.Contains(t, logs.String(), "msg=sheet")
	assert.Contains(t, logs.String(), "range=A1:B2")
	assert.Contains(t, logs.String(), "msg=written")

	buf.Reset()
	w.Properties = xls.Properties{}
	require.NoError(t, w.EncodeTable(&buf, makeTable("b", 1, 1)))
	book, err = xlstest.Read(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "b", book.Sheets[0].Name)
	assert.Empty(t, book.Properties)

	buf.Reset()
	assert.ErrorIs(t, w.EncodeTable(&buf, nil), ErrNullInput)
	assert.ErrorIs(t, w.EncodeDataSet(&buf, &DataSet{}), ErrEmptyCollection)
	assert.Zero(t, buf.Len())
}

func TestImport(t *testing.T) {
	wb := xls.NewWorkbook()
	wb.CreateSheet("existing")
	tbl := makeTable("", 2, 1)
	tbl.Rows = append(tbl.Rows, nil, []any{"only"})
	Import(wb, tbl)
	require.Equal(t, 2, wb.NumberOfSheets())
	sh := wb.SheetAt(1)
	assert.Equal(t, "Sheet 2", sh.Name)
	assert.Equal(t, 3, sh.NumberOfRows())
	assert.Equal(t, "R1C2", sh.GetRow(0).GetCell(1).StringValue())
	assert.Equal(t, xls.CellBlank, sh.GetRow(1).GetCell(0).Type())
	assert.Equal(t, "only", sh.GetRow(2).GetCell(0).StringValue())
	assert.Equal(t, xls.CellBlank, sh.GetRow(2).GetCell(1).Type())

	Import(wb, NewTable("no columns"))
	assert.Zero(t, wb.SheetAt(2).NumberOfRows())

	tbl = makeTable("long", 1, 0)
	tbl.Rows = make([][]any, xls.MaxRows+1)
	assert.Panics(t, func() { Import(wb, tbl) })
}

func TestSetCellValue(t *testing.T) {
	c := xls.NewWorkbook().CreateSheet("s").CreateRow(0).CreateCell(0)
	for _, tc := range []struct {
		v    any
		kind Kind
		typ  xls.CellType
		str  string
		num  float64
	}{
		{kind: KindText, v: "x", typ: xls.CellString, str: "x"},
		{kind: KindNumber, v: int64(-3), typ: xls.CellNumber, num: -3},
		{kind: KindNumber, v: uint8(200), typ: xls.CellNumber, num: 200},
		{kind: KindNumber, v: float32(0.5), typ: xls.CellNumber, num: 0.5},
		{kind: KindNumber, v: Number("x"), typ: xls.CellString, str: "x"},
		{kind: KindNumber, v: sql.NullFloat64{Float64: 2, Valid: true}, typ: xls.CellNumber, num: 2},
		{kind: KindTime, v: time.Time{}, typ: xls.CellBlank},
		{kind: KindTime, v: sql.NullTime{}, typ: xls.CellBlank},
		{kind: KindRichText, v: (*xls.RichText)(nil), typ: xls.CellBlank},
		{kind: KindOther, v: nil, typ: xls.CellString},
		{kind: KindOther, v: 1.5, typ: xls.CellString, str: "1.5"},
	} {
		SetCellValue(c, tc.kind, tc.v)
		assert.Equal(t, tc.typ, c.Type(), "%v %#v", tc.kind, tc.v)
		assert.Equal(t, tc.str, c.StringValue(), "%v %#v", tc.kind, tc.v)
		assert.Equal(t, tc.num, c.NumberValue(), "%v %#v", tc.kind, tc.v)
	}
}
