// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package xls

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/xuri/excelize/v2"
)

// RichText is a text with formatting runs.
type RichText struct {
	Text string
	Runs []Run
}

// Run applies Font from the UTF-16 offset Start to the start of the next run.
type Run struct {
	Font  Font
	Start int
}

// Font of a formatting run. The zero value is the default font.
type Font struct {
	// Name defaults to Arial.
	Name string
	// Color is an RGB hex color ("FF0000" or "#FF0000"), mapped to the
	// nearest color of the BIFF8 default palette. Empty means automatic.
	Color string
	// Size is in points, 10 by default.
	Size      float64
	Bold      bool
	Italic    bool
	Strike    bool
	Underline bool
}

// NewRichText concatenates excelize rich text runs.
func NewRichText(runs ...excelize.RichTextRun) RichText {
	var rt RichText
	var buf strings.Builder
	var pos int
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		var f Font
		if r.Font != nil {
			f = Font{
				Name: r.Font.Family, Size: r.Font.Size, Color: r.Font.Color,
				Bold: r.Font.Bold, Italic: r.Font.Italic, Strike: r.Font.Strike,
				Underline: r.Font.Underline != "" && r.Font.Underline != "none",
			}
		}
		rt.Runs = append(rt.Runs, Run{Start: pos, Font: f})
		buf.WriteString(r.Text)
		pos += len(utf16.Encode([]rune(r.Text)))
	}
	rt.Text = buf.String()
	return rt
}

func (rt RichText) String() string { return rt.Text }

// normalizedRuns returns the runs that start inside the text,
// in strictly increasing order.
func (rt RichText) normalizedRuns() []Run {
	n := len(utf16.Encode([]rune(rt.Text)))
	runs := make([]Run, 0, len(rt.Runs))
	last := -1
	for _, r := range rt.Runs {
		if r.Start <= last || r.Start < 0 || r.Start >= n {
			continue
		}
		runs = append(runs, r)
		last = r.Start
	}
	if len(runs) == 0 {
		return nil
	}
	return runs
}

const colorAuto = 0x7FFF

// palette is the BIFF8 default palette, starting at color index 8.
var palette = [...]uint32{
	0x000000, 0xFFFFFF, 0xFF0000, 0x00FF00, 0x0000FF, 0xFFFF00, 0xFF00FF, 0x00FFFF,
	0x800000, 0x008000, 0x000080, 0x808000, 0x800080, 0x008080, 0xC0C0C0, 0x808080,
	0x9999FF, 0x993366, 0xFFFFCC, 0xCCFFFF, 0x660066, 0xFF8080, 0x0066CC, 0xCCCCFF,
	0x000080, 0xFF00FF, 0xFFFF00, 0x00FFFF, 0x800080, 0x800000, 0x008080, 0x0000FF,
	0x00CCFF, 0xCCFFFF, 0xCCFFCC, 0xFFFF99, 0x99CCFF, 0xFF99CC, 0xCC99FF, 0xFFCC99,
	0x3366FF, 0x33CCCC, 0x99CC00, 0xFFCC00, 0xFF9900, 0xFF6600, 0x666699, 0x969696,
	0x003366, 0x339966, 0x003300, 0x333300, 0x993300, 0x993366, 0x333399, 0x333333,
}

// colorIndex maps an RGB hex color to the nearest palette index.
func colorIndex(s string) uint16 {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 8 { // ARGB
		s = s[2:]
	}
	if len(s) != 6 {
		return colorAuto
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return colorAuto
	}
	r, g, b := int(v>>16&0xFF), int(v>>8&0xFF), int(v&0xFF)
	best, bestDist := 0, math.MaxInt
	for i, p := range palette {
		dr, dg, db := r-int(p>>16&0xFF), g-int(p>>8&0xFF), b-int(p&0xFF)
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			best, bestDist = i, d
		}
	}
	return uint16(best + 8)
}
