// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package xlstest decodes BIFF8 workbooks for tests.
//
// It understands exactly the records the xls package writes, and reads
// them independently of it: the compound file is opened with mscfb,
// the summary properties with msoleps.
package xlstest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"
)

// Cell types.
const (
	Blank  = "blank"
	String = "string"
	Number = "number"
	Bool   = "bool"
)

// Run is a formatting run of a shared string.
type Run struct {
	Start, Font int
}

// Cell is a decoded cell.
type Cell struct {
	Type   string
	Text   string
	Runs   []Run
	Number float64
	Bool   bool
	// NumFmt is the number format index of the cell's XF.
	NumFmt int
}

// IsDate reports whether the cell has a built-in date format.
func (c Cell) IsDate() bool {
	return c.Type == Number && (14 <= c.NumFmt && c.NumFmt <= 22 || 45 <= c.NumFmt && c.NumFmt <= 47)
}

// Font is a decoded FONT record.
type Font struct {
	Name           string
	Height, Color  int
	Bold, Italic   bool
	Strike, Underl bool
}

// Sheet is a decoded worksheet.
type Sheet struct {
	Name  string
	Cells map[[2]int]Cell
	// Dimensions are rwMic, rwMac, colMic, colMac.
	Dimensions [4]int
	Rows       int
}

// Cell returns the cell at the 0-based row and column.
func (sh *Sheet) Cell(row, col int) (Cell, bool) {
	c, ok := sh.Cells[[2]int{row, col}]
	return c, ok
}

// Book is a decoded workbook.
type Book struct {
	Sheets []*Sheet
	// Fonts by BIFF font index.
	Fonts      map[int]Font
	Properties map[string]string
	Date1904   bool
}

// Open reads the named file.
func Open(fileName string) (*Book, error) {
	b, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	return Read(b)
}

// Read decodes the compound file in b.
func Read(b []byte) (*Book, error) {
	doc, err := mscfb.New(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	book := Book{Fonts: make(map[int]Font), Properties: make(map[string]string)}
	var stream []byte
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch {
		case entry.Name == "Workbook":
			if stream, err = io.ReadAll(entry); err != nil {
				return nil, fmt.Errorf("read %s: %w", entry.Name, err)
			}
		case msoleps.IsMSOLEPS(entry.Initial):
			props, err := msoleps.NewFrom(entry)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", entry.Name, err)
			}
			for _, p := range props.Property {
				if p.Name != "" && p.T != nil {
					book.Properties[p.Name] = p.String()
				}
			}
		}
	}
	if stream == nil {
		return nil, errors.New("no Workbook stream")
	}
	if err := book.parse(stream); err != nil {
		return nil, err
	}
	return &book, nil
}

type record struct {
	data []byte
	id   uint16
}

// records returns the records of the substream starting at off, up to and
// including its EOF.
func records(stream []byte, off int) ([]record, error) {
	var recs []record
	for {
		if off+4 > len(stream) {
			return recs, io.ErrUnexpectedEOF
		}
		id := binary.LittleEndian.Uint16(stream[off:])
		n := int(binary.LittleEndian.Uint16(stream[off+2:]))
		if off+4+n > len(stream) {
			return recs, io.ErrUnexpectedEOF
		}
		recs = append(recs, record{id: id, data: stream[off+4 : off+4+n]})
		off += 4 + n
		if id == 0x000A {
			return recs, nil
		}
	}
}

func (book *Book) parse(stream []byte) error {
	le := binary.LittleEndian
	globals, err := records(stream, 0)
	if err != nil {
		return fmt.Errorf("globals: %w", err)
	}
	if len(globals) == 0 || globals[0].id != 0x0809 || le.Uint16(globals[0].data) != 0x0600 {
		return errors.New("not a BIFF8 workbook")
	}
	var xfFormats []int
	var strs []sstString
	var offsets []int
	var nFonts int
	for i := 0; i < len(globals); i++ {
		r := globals[i]
		switch r.id {
		case 0x0022: // DATEMODE
			book.Date1904 = le.Uint16(r.data) == 1
		case 0x0031: // FONT
			idx := nFonts
			if idx >= 4 {
				idx++
			}
			nFonts++
			book.Fonts[idx] = Font{
				Height: int(le.Uint16(r.data)),
				Italic: le.Uint16(r.data[2:])&0x02 != 0,
				Strike: le.Uint16(r.data[2:])&0x08 != 0,
				Color:  int(le.Uint16(r.data[4:])),
				Bold:   le.Uint16(r.data[6:]) >= 700,
				Underl: r.data[10] != 0,
				Name:   shortString(r.data[14:]),
			}
		case 0x00E0: // XF
			xfFormats = append(xfFormats, int(le.Uint16(r.data[2:])))
		case 0x0085: // BOUNDSHEET
			offsets = append(offsets, int(le.Uint32(r.data)))
			book.Sheets = append(book.Sheets, &Sheet{
				Name:  shortString(r.data[6:]),
				Cells: make(map[[2]int]Cell),
			})
		case 0x00FC: // SST
			segs := [][]byte{r.data}
			for i+1 < len(globals) && globals[i+1].id == 0x003C {
				i++
				segs = append(segs, globals[i].data)
			}
			if strs, err = parseSST(segs); err != nil {
				return err
			}
		}
	}

	for k, sh := range book.Sheets {
		recs, err := records(stream, offsets[k])
		if err != nil {
			return fmt.Errorf("%s: %w", sh.Name, err)
		}
		if len(recs) == 0 || recs[0].id != 0x0809 || le.Uint16(recs[0].data[2:]) != 0x0010 {
			return fmt.Errorf("%s: no worksheet BOF at %d", sh.Name, offsets[k])
		}
		for _, r := range recs {
			if r.id == 0x0200 { // DIMENSIONS
				sh.Dimensions = [4]int{
					int(le.Uint32(r.data)), int(le.Uint32(r.data[4:])),
					int(le.Uint16(r.data[8:])), int(le.Uint16(r.data[10:])),
				}
				continue
			}
			if r.id == 0x0208 { // ROW
				sh.Rows++
				continue
			}
			var c Cell
			switch r.id {
			case 0x0201: // BLANK
				c.Type = Blank
			case 0x00FD: // LABELSST
				isst := int(le.Uint32(r.data[6:]))
				if isst >= len(strs) {
					return fmt.Errorf("%s: string index %d out of %d", sh.Name, isst, len(strs))
				}
				c.Type, c.Text, c.Runs = String, strs[isst].text, strs[isst].runs
			case 0x0203: // NUMBER
				c.Type, c.Number = Number, math.Float64frombits(le.Uint64(r.data[6:]))
			case 0x0205: // BOOLERR
				if r.data[7] != 0 {
					return fmt.Errorf("%s: error cell", sh.Name)
				}
				c.Type, c.Bool = Bool, r.data[6] != 0
			default:
				continue
			}
			if ixfe := int(le.Uint16(r.data[4:])); ixfe < len(xfFormats) {
				c.NumFmt = xfFormats[ixfe]
			}
			sh.Cells[[2]int{int(le.Uint16(r.data)), int(le.Uint16(r.data[2:]))}] = c
		}
	}
	return nil
}

func shortString(b []byte) string {
	n := int(b[0])
	if b[1]&0x01 == 0 {
		return latin1(b[2 : 2+n])
	}
	return wide(b[2 : 2+2*n])
}

func latin1(b []byte) string {
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = rune(c)
	}
	return string(rs)
}

func wide(b []byte) string {
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(u))
}

type sstString struct {
	text string
	runs []Run
}

// parseSST decodes the SST record and its CONTINUE records.
func parseSST(segs [][]byte) ([]sstString, error) {
	le := binary.LittleEndian
	seg, pos := segs[0], 8
	unique := int(le.Uint32(seg[4:]))
	next := func() error {
		if len(segs) < 2 {
			return io.ErrUnexpectedEOF
		}
		segs = segs[1:]
		seg, pos = segs[0], 0
		return nil
	}
	strs := make([]sstString, 0, unique)
	for len(strs) < unique {
		if pos >= len(seg) {
			if err := next(); err != nil {
				return strs, err
			}
		}
		if pos+3 > len(seg) {
			return strs, fmt.Errorf("string %d: header split", len(strs))
		}
		n := int(le.Uint16(seg[pos:]))
		opt := seg[pos+2]
		pos += 3
		var nRuns int
		if opt&0x08 != 0 {
			nRuns = int(le.Uint16(seg[pos:]))
			pos += 2
		}
		if opt&0x04 != 0 {
			return strs, fmt.Errorf("string %d: extended strings are not supported", len(strs))
		}
		units := make([]uint16, 0, n)
		wideChars := opt&0x01 != 0
		for len(units) < n {
			if pos >= len(seg) {
				if err := next(); err != nil {
					return strs, err
				}
				wideChars = seg[0]&0x01 != 0
				pos = 1
			}
			if wideChars {
				for ; len(units) < n && pos+2 <= len(seg); pos += 2 {
					units = append(units, le.Uint16(seg[pos:]))
				}
			} else {
				for ; len(units) < n && pos < len(seg); pos++ {
					units = append(units, uint16(seg[pos]))
				}
			}
		}
		s := sstString{text: string(utf16.Decode(units))}
		for range nRuns {
			if pos >= len(seg) {
				if err := next(); err != nil {
					return strs, err
				}
			}
			s.runs = append(s.runs, Run{Start: int(le.Uint16(seg[pos:])), Font: int(le.Uint16(seg[pos+2:]))})
			pos += 4
		}
		strs = append(strs, s)
	}
	return strs, nil
}
