// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package xls

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/UNO-SOFT/tablexls/internal/cfb"
)

// ErrNoSheets is returned when writing a workbook without sheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// Cell XF indexes. 0-14 are the style XFs every workbook needs.
const (
	xfDefault  = 15
	xfDate     = 16
	xfDateTime = 17

	numFmtDate     = 14 // m/d/yyyy
	numFmtDateTime = 22 // m/d/yyyy h:mm

	rowBlockSize = 32

	defaultFontName = "Arial"
	defaultFontSize = 10
	// fonts written before the custom ones; index 4 is never used
	defaultFontCount = 4
)

const (
	streamWorkbook = "Workbook"
	streamSummary  = "\x05SummaryInformation"
)

// WriteTo writes the workbook as an Excel 97-2003 (.xls) file.
func (wb *Workbook) WriteTo(w io.Writer) (int64, error) {
	data, err := wb.workbookStream()
	if err != nil {
		return 0, err
	}
	streams := []cfb.Stream{{Name: streamWorkbook, Data: data}}
	if !wb.Properties.IsZero() {
		ps, err := wb.Properties.propertySetStream()
		if err != nil {
			return 0, err
		}
		streams = append(streams, cfb.Stream{Name: streamSummary, Data: ps})
	}
	return cfb.Write(w, streams...)
}

// workbookStream returns the BIFF8 Workbook stream: the globals substream
// followed by one substream per sheet.
func (wb *Workbook) workbookStream() ([]byte, error) {
	if len(wb.sheets) == 0 {
		return nil, ErrNoSheets
	}
	strs, fonts := newSST(), &fontTable{ids: make(map[Font]uint16)}
	sheets := make([]*recordWriter, len(wb.sheets))
	for i, sh := range wb.sheets {
		sheets[i] = &recordWriter{}
		if err := writeSheet(sheets[i], sh, i == 0, strs, fonts); err != nil {
			return nil, fmt.Errorf("%s: %w", sh.Name, err)
		}
	}

	g := &recordWriter{}
	plyPos := wb.writeGlobals(g, strs, fonts)
	globals := g.Bytes()
	off := len(globals)
	size := off
	for _, s := range sheets {
		size += s.Len()
	}
	if int64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("workbook stream too big (%d bytes)", size)
	}
	stream := make([]byte, 0, size)
	stream = append(stream, globals...)
	for i, s := range sheets {
		binary.LittleEndian.PutUint32(stream[plyPos[i]:], uint32(off))
		off += s.Len()
		stream = append(stream, s.Bytes()...)
	}
	return stream, nil
}

// writeGlobals writes the workbook globals substream, and returns the
// positions of the BOUNDSHEET sheet offsets, to be filled in later.
func (wb *Workbook) writeGlobals(g *recordWriter, strs *sst, fonts *fontTable) []int {
	le := binary.LittleEndian
	g.bof(bofGlobals)
	g.u16(recInterfaceHdr, codepageUTF16)
	g.u16(recMMS, 0)
	g.record(recInterfaceEnd, nil)

	user := wb.Properties.Author
	if user == "" {
		user = "tablexls"
	}
	b := appendString(nil, truncateUTF16(user, 54))
	for len(b) < 112 {
		b = append(b, ' ')
	}
	g.record(recWriteAccess, b)
	g.u16(recCodepage, codepageUTF16)
	g.u16(recDSF, 0)
	tabs := make([]uint16, min(len(wb.sheets), maxRecordData/2))
	for i := range tabs {
		tabs[i] = uint16(i + 1)
	}
	g.u16(recTabID, tabs...)
	g.u16(recFnGroupCount, 0x000E)
	g.u16(recWindowProt, 0)
	g.u16(recProtect, 0)
	g.u16(recPassword, 0)
	g.u16(recProt4Rev, 0)
	g.u16(recProt4RevPass, 0)
	g.u16(recWindow1, 0x01E0, 0x005A, 0x3FCF, 0x2A4E, 0x0038, 0, 0, 1, 0x0258)
	g.u16(recBackup, 0)
	g.u16(recHideObj, 0)
	g.u16(recDateMode, 0)
	g.u16(recPrecision, 1)
	g.u16(recRefreshAll, 0)
	g.u16(recBookBool, 0)

	for range defaultFontCount {
		g.record(recFont, appendFont(nil, Font{}))
	}
	for _, f := range fonts.fonts {
		g.record(recFont, appendFont(nil, f))
	}

	// style XFs
	for i := range 15 {
		var ifnt uint16
		switch i {
		case 1, 2:
			ifnt = 1
		case 3, 4:
			ifnt = 2
		}
		var used byte
		if i != 0 {
			used = 0xF4
		}
		g.record(recXF, appendXF(nil, ifnt, 0, 0xFFF5, used))
	}
	g.record(recXF, appendXF(nil, 0, 0, 0x0001, 0))
	g.record(recXF, appendXF(nil, 0, numFmtDate, 0x0001, 0x04))
	g.record(recXF, appendXF(nil, 0, numFmtDateTime, 0x0001, 0x04))
	g.record(recStyle, []byte{0x00, 0x80, 0x00, 0xFF})
	g.u16(recUsesElfs, 0)

	plyPos := make([]int, len(wb.sheets))
	for i, sh := range wb.sheets {
		plyPos[i] = g.Len() + 4
		b := le.AppendUint32(g.data(), 0)
		b = append(b, 0, 0) // visible worksheet
		b = appendShortString(b, truncateUTF16(sh.Name, MaxSheetNameLen))
		g.record(recBoundSheet, b)
		g.scratch = b
	}
	g.u16(recCountry, 1, 1)
	strs.write(g)
	g.record(recEOF, nil)
	return plyPos
}

func appendXF(b []byte, ifnt, ifmt, flags uint16, used byte) []byte {
	le := binary.LittleEndian
	b = le.AppendUint16(b, ifnt)
	b = le.AppendUint16(b, ifmt)
	b = le.AppendUint16(b, flags)
	b = append(b, 0x20, 0, 0, used) // bottom aligned
	b = le.AppendUint32(b, 0)       // borders
	b = le.AppendUint32(b, 0)
	return le.AppendUint16(b, 0x20C0) // pattern colors
}

func appendFont(b []byte, f Font) []byte {
	le := binary.LittleEndian
	size := f.Size
	if size <= 0 {
		size = defaultFontSize
	}
	var grbit uint16
	if f.Italic {
		grbit |= 0x02
	}
	if f.Strike {
		grbit |= 0x08
	}
	weight := uint16(400)
	if f.Bold {
		weight = 700
	}
	color := uint16(colorAuto)
	if f.Color != "" {
		color = colorIndex(f.Color)
	}
	var underline byte
	if f.Underline {
		underline = 1
	}
	name := f.Name
	if name == "" {
		name = defaultFontName
	}
	b = le.AppendUint16(b, uint16(min(math.Round(size*20), 0x7FFF)))
	b = le.AppendUint16(b, grbit)
	b = le.AppendUint16(b, color)
	b = le.AppendUint16(b, weight)
	b = le.AppendUint16(b, 0) // no super/subscript
	b = append(b, underline, 0, 0, 0)
	return appendShortString(b, truncateUTF16(name, 255))
}

// fontTable collects the distinct fonts of rich text runs.
type fontTable struct {
	ids   map[Font]uint16
	fonts []Font
}

// index returns the BIFF font index of f. Custom fonts start at 5,
// as index 4 is skipped by the format.
func (ft *fontTable) index(f Font) uint16 {
	if f == (Font{}) {
		return 0
	}
	if i, ok := ft.ids[f]; ok {
		return i
	}
	i := uint16(defaultFontCount + 1 + len(ft.fonts))
	ft.fonts = append(ft.fonts, f)
	ft.ids[f] = i
	return i
}

// writeSheet writes the worksheet substream of sh, registering its strings.
func writeSheet(w *recordWriter, sh *Sheet, active bool, strs *sst, fonts *fontTable) error {
	le := binary.LittleEndian
	w.bof(bofSheet)
	w.u16(recCalcMode, 1)
	w.u16(recCalcCount, 100)
	w.u16(recRefMode, 1)
	w.u16(recIteration, 0)
	w.record(recDelta, appendF64(w.data(), 0.001))
	w.u16(recSaveRecalc, 1)
	w.u16(recPrintHeaders, 0)
	w.u16(recPrintGrid, 0)
	w.u16(recGridSet, 1)
	w.u16(recGuts, 0, 0, 0, 0)
	w.u16(recDefRowHeight, 0, 0x00FF)
	w.u16(recWsBool, 0x04C1)
	w.u16(recDefColWidth, 8)

	rowMic, rowMac, colMic, colMac := sh.Dimensions()
	b := le.AppendUint32(w.data(), uint32(rowMic))
	b = le.AppendUint32(b, uint32(rowMac))
	b = le.AppendUint16(b, uint16(colMic))
	b = le.AppendUint16(b, uint16(colMac))
	b = le.AppendUint16(b, 0)
	w.record(recDimensions, b)
	w.scratch = b

	rows := sh.sortedRows()
	for len(rows) != 0 {
		n := min(len(rows), rowBlockSize)
		block := rows[:n]
		rows = rows[n:]
		for _, r := range block {
			cMic, cMac := r.span()
			b := le.AppendUint16(w.data(), uint16(r.index))
			b = le.AppendUint16(b, uint16(cMic))
			b = le.AppendUint16(b, uint16(cMac))
			b = le.AppendUint16(b, 0x00FF) // default height
			b = le.AppendUint32(b, 0)
			b = le.AppendUint32(b, 0x000F0100) // default cell XF
			w.record(recRow, b)
			w.scratch = b
		}
		for _, r := range block {
			for _, c := range r.sortedCells() {
				if err := writeCell(w, c, strs, fonts); err != nil {
					return fmt.Errorf("%s: %w", c.Ref(), err)
				}
			}
		}
	}

	grbit := uint16(0x00B6)
	if active {
		grbit |= 0x0600 // selected, displayed
	}
	w.u16(recWindow2, grbit, 0, 0, 0x0040, 0, 0, 0, 0, 0)
	w.record(recEOF, nil)
	return nil
}

func writeCell(w *recordWriter, c *Cell, strs *sst, fonts *fontTable) error {
	le := binary.LittleEndian
	b := le.AppendUint16(w.data(), uint16(c.row))
	b = le.AppendUint16(b, uint16(c.col))
	b = le.AppendUint16(b, c.xf)
	var id uint16
	switch c.typ {
	case CellBlank:
		id = recBlank
	case CellString:
		id = recLabelSST
		b = le.AppendUint32(b, strs.addString(c.str))
	case CellRichText:
		id = recLabelSST
		b = le.AppendUint32(b, strs.addRichText(c.rich, fonts))
	case CellNumber:
		id = recNumber
		b = appendF64(b, c.num)
	case CellBool:
		id = recBoolErr
		var v byte
		if c.b {
			v = 1
		}
		b = append(b, v, 0)
	default:
		return fmt.Errorf("unknown cell type %v", c.typ)
	}
	w.record(id, b)
	w.scratch = b
	return nil
}
