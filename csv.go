// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package tablexls

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// EncName is the charset of $LANG, utf-8 by default.
var EncName = "utf-8"

func init() {
	lang := os.Getenv("LANG")
	if i := strings.IndexByte(lang, '.'); i >= 0 {
		lang = strings.ToLower(lang[i+1:])
		if i = strings.IndexByte(lang, '@'); i >= 0 {
			lang = lang[:i]
		}
		if lang != "" {
			EncName = lang
		}
	}
}

// GetEncoding returns the named encoding, or nil for UTF-8.
func GetEncoding(encName string) (encoding.Encoding, error) {
	encName = strings.ToLower(encName)
	if encName == "" || encName == "utf-8" || encName == "utf8" {
		return nil, nil
	}
	enc, err := htmlindex.Get(encName)
	if err != nil {
		err = fmt.Errorf("%q: %w", encName, err)
	}
	return enc, err
}

type csvReadCloser struct {
	*csv.Reader
	io.Closer
}

// OpenCsv opens the named file (stdin for "" or "-") for CSV reading,
// decoding from encName and sniffing the field separator.
//
// The returned reader reuses its records.
func OpenCsv(fn, encName string) (csvReadCloser, error) {
	var enc encoding.Encoding
	if encName != "" {
		var err error
		if enc, err = GetEncoding(encName); err != nil {
			return csvReadCloser{}, err
		}
	}
	var fh io.ReadCloser = io.NopCloser(os.Stdin)
	if !(fn == "" || fn == "-") {
		f, err := os.Open(fn)
		if err != nil {
			return csvReadCloser{}, err
		}
		fh = f
	}
	r := fh
	if enc != nil {
		r = struct {
			io.Reader
			io.Closer
		}{enc.NewDecoder().Reader(fh), fh}
	}
	br := bufio.NewReaderSize(r, 1<<20)
	b, err := br.Peek(1024)
	if err != nil && len(b) == 0 {
		fh.Close()
		return csvReadCloser{}, err
	}
	sep := sniffSeparator(b)

	cr := csv.NewReader(br)
	cr.ReuseRecord = true
	cr.Comma = sep
	return csvReadCloser{cr, r}, nil
}

// separators are the recognized field separators, in order of preference.
var separators = [...]byte{',', ';', '\t', '|'}

// sniffSeparator returns the separator occurring most often in the first
// line of b, outside of quotes. Defaults to ','.
func sniffSeparator(b []byte) rune {
	var counts [len(separators)]int
	var quoted bool
Loop:
	for _, c := range b {
		switch {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '\n' || c == '\r':
			break Loop
		default:
			if i := bytes.IndexByte(separators[:], c); i >= 0 {
				counts[i]++
			}
		}
	}
	best := 0
	for i, n := range counts {
		if n > counts[best] {
			best = i
		}
	}
	return rune(separators[best])
}

// CsvOptions configures ReadCsvTable.
type CsvOptions struct {
	// Charset of the file, UTF-8 if empty.
	Charset string
	// HeaderRow keeps the header line as the first row of the table, too.
	HeaderRow bool
	// Infer column kinds from the values. Otherwise every column is KindText.
	Infer bool
}

// ReadCsvTable reads the named CSV file (stdin for "" or "-") into a Table.
//
// The first line gives the column names, the table is named after the file.
// With Infer, a column where every non-empty value is a bool, a number or
// a date gets that kind, and its empty values become nil.
func ReadCsvTable(fn string, opts CsvOptions) (*Table, error) {
	cr, err := OpenCsv(fn, opts.Charset)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%s: no header: %w", fn, io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	defer cr.Close()
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%s: no header: %w", fn, io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	var name string
	if !(fn == "" || fn == "-") {
		name = strings.TrimSuffix(filepath.Base(fn), filepath.Ext(fn))
	}
	t := NewTable(name)
	for _, s := range header {
		t.AddColumn(s, KindText)
	}
	var records [][]string
	if opts.HeaderRow {
		records = append(records, slices.Clone(header))
	}
	for {
		row, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		records = append(records, slices.Clone(row))
	}

	if opts.Infer {
		data := records
		if opts.HeaderRow {
			data = data[1:]
		}
		for i := range t.Columns {
			t.Columns[i].Kind = inferKind(data, i)
		}
	}
	for i, rec := range records {
		row := make([]any, len(t.Columns))
		for j := range min(len(rec), len(row)) {
			if opts.HeaderRow && i == 0 {
				row[j] = rec[j]
			} else {
				row[j] = parseValue(t.Columns[j].Kind, rec[j])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// inferKind returns the kind every non-empty value of the i-th field parses as.
func inferKind(records [][]string, i int) Kind {
	candidates := []Kind{KindBool, KindNumber, KindTime}
	var seen bool
	for _, rec := range records {
		if i >= len(rec) || rec[i] == "" {
			continue
		}
		seen = true
		s := rec[i]
		candidates = slices.DeleteFunc(candidates, func(k Kind) bool {
			switch k {
			case KindBool:
				_, ok := parseBool(s)
				return !ok
			case KindNumber:
				_, ok := parseNumber(s)
				return !ok
			default:
				_, ok := parseTime(s)
				return !ok
			}
		})
		if len(candidates) == 0 {
			break
		}
	}
	if !seen || len(candidates) == 0 {
		return KindText
	}
	return candidates[0]
}

// parseValue converts s to the Go type of kind; empty strings are nil
// for other kinds than KindText.
func parseValue(kind Kind, s string) any {
	if s == "" && kind != KindText {
		return nil
	}
	switch kind {
	case KindBool:
		if b, ok := parseBool(s); ok {
			return b
		}
	case KindNumber:
		if f, ok := parseNumber(s); ok {
			return f
		}
	case KindTime:
		if t, ok := parseTime(s); ok {
			return t
		}
	}
	return s
}
