// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package xls

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// BIFF8 record identifiers.
const (
	recEOF          = 0x000A
	recCalcCount    = 0x000C
	recCalcMode     = 0x000D
	recPrecision    = 0x000E
	recRefMode      = 0x000F
	recDelta        = 0x0010
	recIteration    = 0x0011
	recProtect      = 0x0012
	recPassword     = 0x0013
	recWindowProt   = 0x0019
	recDateMode     = 0x0022
	recPrintHeaders = 0x002A
	recPrintGrid    = 0x002B
	recFont         = 0x0031
	recWindow1      = 0x003D
	recContinue     = 0x003C
	recBackup       = 0x0040
	recCodepage     = 0x0042
	recDefColWidth  = 0x0055
	recWriteAccess  = 0x005C
	recSaveRecalc   = 0x005F
	recGuts         = 0x0080
	recWsBool       = 0x0081
	recGridSet      = 0x0082
	recBoundSheet   = 0x0085
	recCountry      = 0x008C
	recHideObj      = 0x008D
	recFnGroupCount = 0x009C
	recMMS          = 0x00C1
	recBookBool     = 0x00DA
	recXF           = 0x00E0
	recInterfaceHdr = 0x00E1
	recInterfaceEnd = 0x00E2
	recSST          = 0x00FC
	recLabelSST     = 0x00FD
	recExtSST       = 0x00FF
	recTabID        = 0x013D
	recUsesElfs     = 0x0160
	recDSF          = 0x0161
	recProt4Rev     = 0x01AF
	recRefreshAll   = 0x01B7
	recProt4RevPass = 0x01BC
	recDimensions   = 0x0200
	recBlank        = 0x0201
	recNumber       = 0x0203
	recBoolErr      = 0x0205
	recRow          = 0x0208
	recDefRowHeight = 0x0225
	recWindow2      = 0x023E
	recStyle        = 0x0293
	recBOF          = 0x0809
)

const (
	// maxRecordData is the maximum size of a record's data.
	maxRecordData = 8224

	biffVersion = 0x0600
	bofGlobals  = 0x0005
	bofSheet    = 0x0010
	buildID     = 0x0DBB
	buildYear   = 0x07CC

	codepageUTF16 = 0x04B0
)

// recordWriter appends BIFF records to a buffer.
type recordWriter struct {
	bytes.Buffer
	scratch []byte
}

// record appends a record. len(data) must not exceed maxRecordData.
func (w *recordWriter) record(id uint16, data []byte) {
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[:2], id)
	binary.LittleEndian.PutUint16(hdr[2:], uint16(len(data)))
	w.Write(hdr[:])
	w.Write(data)
}

// data returns a reusable, empty scratch buffer.
func (w *recordWriter) data() []byte { return w.scratch[:0] }

func (w *recordWriter) u16(id uint16, vs ...uint16) {
	b := w.data()
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	w.record(id, b)
	w.scratch = b
}

func (w *recordWriter) bof(typ uint16) {
	b := w.data()
	b = binary.LittleEndian.AppendUint16(b, biffVersion)
	b = binary.LittleEndian.AppendUint16(b, typ)
	b = binary.LittleEndian.AppendUint16(b, buildID)
	b = binary.LittleEndian.AppendUint16(b, buildYear)
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 0x06)
	w.record(recBOF, b)
	w.scratch = b
}

func appendF64(b []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
}

// appendShortString appends a ShortXLUnicodeString (8-bit length).
func appendShortString(b []byte, s string) []byte {
	units := utf16.Encode([]rune(s))
	b = append(b, byte(len(units)))
	return appendChars(b, units)
}

// appendString appends an XLUnicodeString (16-bit length).
func appendString(b []byte, s string) []byte {
	units := utf16.Encode([]rune(s))
	b = binary.LittleEndian.AppendUint16(b, uint16(len(units)))
	return appendChars(b, units)
}

// appendChars appends the option byte and the characters, compressed
// to one byte each if possible.
func appendChars(b []byte, units []uint16) []byte {
	if isCompressible(units) {
		b = append(b, 0)
		for _, u := range units {
			b = append(b, byte(u))
		}
		return b
	}
	b = append(b, 1)
	for _, u := range units {
		b = binary.LittleEndian.AppendUint16(b, u)
	}
	return b
}

func isCompressible(units []uint16) bool {
	for _, u := range units {
		if u > 0xFF {
			return false
		}
	}
	return true
}
