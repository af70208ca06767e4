// Copyright 2026, Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package xls

import "time"

const (
	secondsInDay = 24 * 60 * 60
	nanosInDay   = secondsInDay * int64(time.Second)
)

var (
	// serial 0 in the 1900 date system
	epoch1900 = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)
	minDate   = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	// the first day after the nonexistent 1900-02-29
	leapBugEnd = time.Date(1900, time.March, 1, 0, 0, 0, 0, time.UTC)
)

// TimeToSerial converts t to a 1900 date system serial number: days since
// 1899-12-31, the fraction being the time of day.
//
// The wall clock of t's own location is used, as spreadsheets have no time
// zones. Serials from 1900-03-01 on are shifted by one, to account for the
// phantom 1900-02-29 of the format. Times before 1900-01-01 return -1.
func TimeToSerial(t time.Time) float64 {
	w := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	if w.Before(minDate) {
		return -1
	}
	secs := w.Unix() - epoch1900.Unix()
	days := secs / secondsInDay
	frac := (secs%secondsInDay)*int64(time.Second) + int64(w.Nanosecond())
	if !w.Before(leapBugEnd) {
		days++
	}
	return float64(days) + float64(frac)/float64(nanosInDay)
}
