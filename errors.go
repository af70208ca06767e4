// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package tablexls

import (
	"errors"
	"fmt"
)

var (
	// ErrNullInput is returned for a nil table or data set.
	ErrNullInput = errors.New("nil input")
	// ErrEmptyCollection is returned for a data set without tables.
	ErrEmptyCollection = errors.New("empty collection")
	// ErrDimensionExceeded is returned for a table with too many rows or columns.
	ErrDimensionExceeded = errors.New("dimension exceeded")
	// ErrTooManyRows is returned by Sheet.AppendRow after the last row of the sheet.
	ErrTooManyRows = errors.New("too many rows")
)

// DimensionError tells which Dimension of which Table is over the Limit.
type DimensionError struct {
	Table     string
	Dimension string
	Count     int
	Limit     int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("table %q has %d %s (max %d): %s", e.Table, e.Count, e.Dimension, e.Limit, ErrDimensionExceeded)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionExceeded }
