// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package xls

import (
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/xuri/excelize/v2"
)

// CellType is the type of the value stored in a Cell.
type CellType uint8

const (
	CellBlank CellType = iota
	CellString
	CellNumber
	CellBool
	CellRichText
)

func (t CellType) String() string {
	switch t {
	case CellBlank:
		return "blank"
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	case CellBool:
		return "bool"
	case CellRichText:
		return "richtext"
	default:
		return fmt.Sprintf("CellType(%d)", uint8(t))
	}
}

// Cell holds exactly one value.
type Cell struct {
	rich *RichText
	str  string
	num  float64
	row  int
	col  int
	xf   uint16
	typ  CellType
	b    bool
}

// Row returns the 0-based row index.
func (c *Cell) Row() int { return c.row }

// Col returns the 0-based column index.
func (c *Cell) Col() int { return c.col }

// Ref returns the A1-style reference of the cell.
func (c *Cell) Ref() string { return cellRef(c.row, c.col) }

// cellRef returns the A1-style reference of the 0-based row and column.
func cellRef(row, col int) string {
	s, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row+1, col+1)
	}
	return s
}

// Type returns the type of the stored value.
func (c *Cell) Type() CellType { return c.typ }

// IsDate reports whether the cell was set with SetTime.
func (c *Cell) IsDate() bool { return c.xf == xfDate || c.xf == xfDateTime }

// StringValue returns the text of a string or rich text cell.
func (c *Cell) StringValue() string {
	if c.typ == CellRichText {
		return c.rich.Text
	}
	return c.str
}

// NumberValue returns the number stored in a number (or date) cell.
func (c *Cell) NumberValue() float64 { return c.num }

// BoolValue returns the value of a boolean cell.
func (c *Cell) BoolValue() bool { return c.b }

// RichTextValue returns the rich text of a rich text cell, or nil.
func (c *Cell) RichTextValue() *RichText { return c.rich }

func (c *Cell) reset(typ CellType, xf uint16) {
	*c = Cell{row: c.row, col: c.col, typ: typ, xf: xf}
}

// SetBlank clears the cell.
func (c *Cell) SetBlank() { c.reset(CellBlank, xfDefault) }

// SetString stores s as text.
// Texts longer than MaxStringLen UTF-16 units are truncated.
func (c *Cell) SetString(s string) {
	c.reset(CellString, xfDefault)
	c.str = truncateUTF16(s, MaxStringLen)
}

// SetNumber stores a number.
func (c *Cell) SetNumber(f float64) {
	c.reset(CellNumber, xfDefault)
	c.num = f
}

// SetBool stores a boolean.
func (c *Cell) SetBool(b bool) {
	c.reset(CellBool, xfDefault)
	c.b = b
}

// SetTime stores t as a date serial number (see TimeToSerial),
// formatted as a date, or as date and time if t has a time of day.
func (c *Cell) SetTime(t time.Time) {
	xf := uint16(xfDate)
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		xf = xfDateTime
	}
	c.reset(CellNumber, xf)
	c.num = TimeToSerial(t)
}

// SetRichText stores formatted text. The runs are normalized:
// runs outside the text or not in increasing order are dropped.
func (c *Cell) SetRichText(rt RichText) {
	c.reset(CellRichText, xfDefault)
	rt.Text = truncateUTF16(rt.Text, MaxStringLen)
	rt.Runs = rt.normalizedRuns()
	c.rich = &rt
}

func (c *Cell) String() string {
	switch c.typ {
	case CellString, CellRichText:
		return c.StringValue()
	case CellNumber:
		return fmt.Sprintf("%g", c.num)
	case CellBool:
		if c.b {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// truncateUTF16 returns the longest prefix of s that fits n UTF-16 units,
// without splitting surrogate pairs.
func truncateUTF16(s string, n int) string {
	if len(s) <= n {
		return s
	}
	var units int
	for i, r := range s {
		k := utf16.RuneLen(r)
		if k < 0 {
			k = 1
		}
		if units+k > n {
			return s[:i]
		}
		units += k
	}
	return s
}
