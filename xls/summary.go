// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package xls

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Properties are the document summary properties of the workbook.
type Properties struct {
	Title, Subject, Author, Keywords, Comments string
	// Application is the name of the creating application.
	Application string
}

// IsZero reports whether no property is set.
func (p Properties) IsZero() bool { return p == Properties{} }

// SummaryInformation property identifiers.
const (
	pidCodepage = 0x01
	pidTitle    = 0x02
	pidSubject  = 0x03
	pidAuthor   = 0x04
	pidKeywords = 0x05
	pidComments = 0x06
	pidAppName  = 0x12

	vtI2    = 0x0002
	vtLPSTR = 0x001E

	codepage1252 = 1252
)

// fmtidSummary is F29F85E0-4FF9-1068-AB91-08002B27B3D9, in GUID byte order.
var fmtidSummary = [16]byte{
	0xE0, 0x85, 0x9F, 0xF2, 0xF9, 0x4F, 0x68, 0x10,
	0xAB, 0x91, 0x08, 0x00, 0x2B, 0x27, 0xB3, 0xD9,
}

// propertySetStream returns the SummaryInformation property set stream.
// Strings are stored in Windows-1252, unknown characters replaced.
func (p Properties) propertySetStream() ([]byte, error) {
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	type prop struct {
		value []byte
		id    uint32
	}
	le := binary.LittleEndian
	props := []prop{{id: pidCodepage, value: le.AppendUint16(le.AppendUint32(nil, vtI2), codepage1252)}}
	for _, kv := range []struct {
		value string
		id    uint32
	}{
		{id: pidTitle, value: p.Title},
		{id: pidSubject, value: p.Subject},
		{id: pidAuthor, value: p.Author},
		{id: pidKeywords, value: p.Keywords},
		{id: pidComments, value: p.Comments},
		{id: pidAppName, value: p.Application},
	} {
		if kv.value == "" {
			continue
		}
		s, err := enc.String(kv.value)
		if err != nil {
			return nil, fmt.Errorf("encode property %d: %w", kv.id, err)
		}
		b := le.AppendUint32(nil, vtLPSTR)
		b = le.AppendUint32(b, uint32(len(s)+1))
		b = append(b, s...)
		b = append(b, 0)
		props = append(props, prop{id: kv.id, value: b})
	}

	// section: size, count, (id, offset) pairs, values aligned to 4 bytes
	offset := 8 + 8*len(props)
	offsets := make([]int, len(props))
	for i := range props {
		for len(props[i].value)%4 != 0 {
			props[i].value = append(props[i].value, 0)
		}
		offsets[i] = offset
		offset += len(props[i].value)
	}
	section := le.AppendUint32(nil, uint32(offset))
	section = le.AppendUint32(section, uint32(len(props)))
	for i, p := range props {
		section = le.AppendUint32(section, p.id)
		section = le.AppendUint32(section, uint32(offsets[i]))
	}
	for _, p := range props {
		section = append(section, p.value...)
	}

	const headerLen = 48
	b := make([]byte, 0, headerLen+len(section))
	b = le.AppendUint16(b, 0xFFFE) // byte order
	b = le.AppendUint16(b, 0)      // version
	b = le.AppendUint32(b, 0x00020006)
	b = append(b, make([]byte, 16)...) // CLSID
	b = le.AppendUint32(b, 1)
	b = append(b, fmtidSummary[:]...)
	b = le.AppendUint32(b, headerLen)
	return append(b, section...), nil
}
