// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package xls

import (
	"encoding/binary"
	"unicode/utf16"
)

type formatRun struct {
	ich, ifnt uint16
}

type sstEntry struct {
	units []uint16
	runs  []formatRun
}

// sst is the shared string table. Plain strings are deduplicated,
// rich texts are always appended.
type sst struct {
	index   map[string]uint32
	entries []sstEntry
	total   uint32
}

func newSST() *sst { return &sst{index: make(map[string]uint32)} }

func (t *sst) addString(s string) uint32 {
	t.total++
	if i, ok := t.index[s]; ok {
		return i
	}
	i := uint32(len(t.entries))
	t.entries = append(t.entries, sstEntry{units: utf16.Encode([]rune(s))})
	t.index[s] = i
	return i
}

func (t *sst) addRichText(rt *RichText, fonts *fontTable) uint32 {
	if len(rt.Runs) == 0 {
		return t.addString(rt.Text)
	}
	t.total++
	e := sstEntry{units: utf16.Encode([]rune(rt.Text)), runs: make([]formatRun, len(rt.Runs))}
	for i, r := range rt.Runs {
		e.runs[i] = formatRun{ich: uint16(r.Start), ifnt: fonts.index(r.Font)}
	}
	t.entries = append(t.entries, e)
	return uint32(len(t.entries) - 1)
}

// write the SST record, its CONTINUE records and the EXTSST record.
//
// A string header never spans records. Character data is split at
// character boundaries, each CONTINUE starting with the option byte
// again; formatting runs are split at run boundaries.
func (t *sst) write(w *recordWriter) {
	le := binary.LittleEndian
	dsst := min(max(8, len(t.entries)/128+1), 0xFFFF)
	ext := le.AppendUint16(make([]byte, 0, 2+8*(len(t.entries)/dsst+1)), uint16(dsst))

	rec := make([]byte, 0, maxRecordData)
	rec = le.AppendUint32(rec, t.total)
	rec = le.AppendUint32(rec, uint32(len(t.entries)))
	id := uint16(recSST)
	flush := func() {
		w.record(id, rec)
		rec, id = rec[:0], recContinue
	}
	for i, e := range t.entries {
		var opt byte
		charSize := 1
		if !isCompressible(e.units) {
			opt, charSize = 0x01, 2
		}
		need := 3
		if len(e.runs) != 0 {
			opt |= 0x08
			need += 2
		}
		if len(e.units) != 0 {
			need += charSize
		}
		if len(rec)+need > maxRecordData {
			flush()
		}
		if i%dsst == 0 {
			ext = le.AppendUint32(ext, uint32(w.Len()+4+len(rec)))
			ext = le.AppendUint16(ext, uint16(4+len(rec)))
			ext = le.AppendUint16(ext, 0)
		}
		rec = le.AppendUint16(rec, uint16(len(e.units)))
		rec = append(rec, opt)
		if len(e.runs) != 0 {
			rec = le.AppendUint16(rec, uint16(len(e.runs)))
		}
		for units := e.units; len(units) != 0; {
			n := min((maxRecordData-len(rec))/charSize, len(units))
			if n == 0 {
				flush()
				rec = append(rec, opt&0x01)
				continue
			}
			for _, u := range units[:n] {
				if charSize == 1 {
					rec = append(rec, byte(u))
				} else {
					rec = le.AppendUint16(rec, u)
				}
			}
			units = units[n:]
		}
		for _, r := range e.runs {
			if len(rec)+4 > maxRecordData {
				flush()
			}
			rec = le.AppendUint16(rec, r.ich)
			rec = le.AppendUint16(rec, r.ifnt)
		}
	}
	flush()
	w.record(recExtSST, ext)
}
