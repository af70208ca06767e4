// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package cfb writes Microsoft Compound File Binary (OLE2) containers.
//
// Only what a BIFF8 workbook needs is supported: version 3 files with 512
// byte sectors and streams directly under the root storage. Streams shorter
// than the mini stream cutoff are padded, so no mini stream is ever written.
package cfb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf16"
)

const (
	sectorSize   = 512
	miniCutoff   = 4096
	dirEntrySize = 128
	headerDifats = 109

	freeSect   = 0xFFFFFFFF
	endOfChain = 0xFFFFFFFE
	fatSect    = 0xFFFFFFFD
	difSect    = 0xFFFFFFFC
	noStream   = 0xFFFFFFFF

	typeStream = 2
	typeRoot   = 5
	colorBlack = 1
)

var signature = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ErrName is returned for stream names the directory cannot hold.
var ErrName = errors.New("invalid stream name")

// Stream is a named stream of the root storage.
type Stream struct {
	Name string
	Data []byte
}

// sectors is the number of sectors the (padded) stream occupies.
func (s Stream) sectors() int {
	n := len(s.Data)
	if n < miniCutoff {
		n = miniCutoff
	}
	return (n + sectorSize - 1) / sectorSize
}

func (s Stream) size() int {
	return max(len(s.Data), miniCutoff)
}

// Write the compound file containing the given streams to w.
func Write(w io.Writer, streams ...Stream) (int64, error) {
	for _, s := range streams {
		if n := len(utf16.Encode([]rune(s.Name))); n == 0 || n > 31 {
			return 0, fmt.Errorf("%q: %w", s.Name, ErrName)
		}
	}
	// Sector layout: stream data, directory, FAT, DIFAT.
	starts := make([]uint32, len(streams))
	var nData int
	for i, s := range streams {
		starts[i] = uint32(nData)
		nData += s.sectors()
	}
	nDirEntries := len(streams) + 1
	nDir := (nDirEntries*dirEntrySize + sectorSize - 1) / sectorSize
	dirStart := uint32(nData)
	nData += nDir
	nFat, nDifat := fatSize(nData)
	fatStart := uint32(nData)
	difatStart := fatStart + uint32(nFat)

	fat := make([]uint32, nFat*sectorSize/4)
	for i := range fat {
		fat[i] = freeSect
	}
	chain := func(start uint32, n int) {
		for i := 0; i < n-1; i++ {
			fat[start+uint32(i)] = start + uint32(i) + 1
		}
		fat[start+uint32(n-1)] = endOfChain
	}
	for i, s := range streams {
		chain(starts[i], s.sectors())
	}
	chain(dirStart, nDir)
	for i := 0; i < nFat; i++ {
		fat[fatStart+uint32(i)] = fatSect
	}
	for i := 0; i < nDifat; i++ {
		fat[difatStart+uint32(i)] = difSect
	}

	cw := &countingWriter{w: w}
	hdr := make([]byte, sectorSize)
	copy(hdr, signature[:])
	le := binary.LittleEndian
	le.PutUint16(hdr[24:], 0x003E) // minor version
	le.PutUint16(hdr[26:], 0x0003) // major version
	le.PutUint16(hdr[28:], 0xFFFE) // byte order
	le.PutUint16(hdr[30:], 9)      // sector shift
	le.PutUint16(hdr[32:], 6)      // mini sector shift
	le.PutUint32(hdr[44:], uint32(nFat))
	le.PutUint32(hdr[48:], dirStart)
	le.PutUint32(hdr[56:], miniCutoff)
	le.PutUint32(hdr[60:], endOfChain) // first mini FAT sector
	le.PutUint32(hdr[64:], 0)
	if nDifat == 0 {
		le.PutUint32(hdr[68:], endOfChain)
	} else {
		le.PutUint32(hdr[68:], difatStart)
	}
	le.PutUint32(hdr[72:], uint32(nDifat))
	for i := 0; i < headerDifats; i++ {
		v := uint32(freeSect)
		if i < nFat {
			v = fatStart + uint32(i)
		}
		le.PutUint32(hdr[76+4*i:], v)
	}
	if _, err := cw.Write(hdr); err != nil {
		return cw.n, err
	}

	for _, s := range streams {
		if _, err := cw.Write(s.Data); err != nil {
			return cw.n, err
		}
		if err := cw.pad(s.sectors()*sectorSize - len(s.Data)); err != nil {
			return cw.n, err
		}
	}

	dir := make([]byte, nDir*sectorSize)
	putDirEntries(dir, streams, starts)
	if _, err := cw.Write(dir); err != nil {
		return cw.n, err
	}

	buf := make([]byte, len(fat)*4)
	for i, v := range fat {
		le.PutUint32(buf[4*i:], v)
	}
	if _, err := cw.Write(buf); err != nil {
		return cw.n, err
	}

	if nDifat != 0 {
		buf = make([]byte, nDifat*sectorSize)
		for i := range len(buf) / 4 {
			le.PutUint32(buf[4*i:], freeSect)
		}
		const perSector = sectorSize/4 - 1
		for i := headerDifats; i < nFat; i++ {
			j := i - headerDifats
			sec, off := j/perSector, j%perSector
			le.PutUint32(buf[sec*sectorSize+4*off:], fatStart+uint32(i))
		}
		for sec := 0; sec < nDifat; sec++ {
			next := uint32(endOfChain)
			if sec < nDifat-1 {
				next = difatStart + uint32(sec) + 1
			}
			le.PutUint32(buf[sec*sectorSize+perSector*4:], next)
		}
		if _, err := cw.Write(buf); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

// fatSize returns the number of FAT and DIFAT sectors needed to map
// nData sectors plus the FAT and DIFAT sectors themselves.
func fatSize(nData int) (nFat, nDifat int) {
	const perFat = sectorSize / 4
	const perDifat = sectorSize/4 - 1
	for {
		need := (nData + nFat + nDifat + perFat - 1) / perFat
		d := 0
		if need > headerDifats {
			d = (need - headerDifats + perDifat - 1) / perDifat
		}
		if need == nFat && d == nDifat {
			return nFat, nDifat
		}
		nFat, nDifat = need, d
	}
}

// putDirEntries writes the root entry and one entry per stream.
// The children form a balanced binary search tree in directory order,
// all nodes black.
func putDirEntries(dir []byte, streams []Stream, starts []uint32) {
	order := make([]int, len(streams))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return compareNames(streams[a].Name, streams[b].Name)
	})
	left := make([]uint32, len(streams))
	right := make([]uint32, len(streams))
	var build func(lo, hi int) uint32
	build = func(lo, hi int) uint32 {
		if lo >= hi {
			return noStream
		}
		mid := (lo + hi) / 2
		i := order[mid]
		left[i] = build(lo, mid)
		right[i] = build(mid+1, hi)
		return uint32(i + 1)
	}
	root := build(0, len(order))

	putEntry(dir[0:dirEntrySize], "Root Entry", typeRoot, noStream, noStream, root, endOfChain, 0)
	for i, s := range streams {
		off := (i + 1) * dirEntrySize
		putEntry(dir[off:off+dirEntrySize], s.Name, typeStream, left[i], right[i], noStream, starts[i], uint32(s.size()))
	}
	for off := (len(streams) + 1) * dirEntrySize; off < len(dir); off += dirEntrySize {
		le := binary.LittleEndian
		le.PutUint32(dir[off+68:], noStream)
		le.PutUint32(dir[off+72:], noStream)
		le.PutUint32(dir[off+76:], noStream)
	}
}

func putEntry(b []byte, name string, typ byte, left, right, child, start, size uint32) {
	le := binary.LittleEndian
	u := utf16.Encode([]rune(name))
	for i, c := range u {
		le.PutUint16(b[2*i:], c)
	}
	le.PutUint16(b[64:], uint16(2*(len(u)+1)))
	b[66] = typ
	b[67] = colorBlack
	le.PutUint32(b[68:], left)
	le.PutUint32(b[72:], right)
	le.PutUint32(b[76:], child)
	le.PutUint32(b[116:], start)
	le.PutUint32(b[120:], size)
}

// compareNames orders directory entry names: shorter first, then by the
// upper-cased UTF-16 code units.
func compareNames(a, b string) int {
	ua := utf16.Encode([]rune(strings.ToUpper(a)))
	ub := utf16.Encode([]rune(strings.ToUpper(b)))
	if len(ua) != len(ub) {
		return len(ua) - len(ub)
	}
	return slices.Compare(ua, ub)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

var zeros [sectorSize]byte

func (cw *countingWriter) pad(n int) error {
	for n > 0 {
		k := min(n, len(zeros))
		if _, err := cw.Write(zeros[:k]); err != nil {
			return err
		}
		n -= k
	}
	return nil
}
