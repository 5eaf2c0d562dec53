// Package models defines the data types shared across the backtester.
package models

import (
	"fmt"
	"time"
)

// DateFormat is the wire format for dates in input files and ledgers.
const DateFormat = "2006-01-02"

// Date is a civil date. It serializes as YYYY-MM-DD in CSV ledgers.
type Date struct {
	time.Time
}

// NewDate creates a Date truncated to midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{t}, nil
}

// String returns the date in wire format.
func (d Date) String() string {
	return d.Format(DateFormat)
}

// MarshalCSV implements gocsv marshalling.
func (d Date) MarshalCSV() (string, error) {
	return d.Format(DateFormat), nil
}

// UnmarshalCSV implements gocsv unmarshalling.
func (d *Date) UnmarshalCSV(s string) error {
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AddDays returns the date shifted forward by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the number of calendar days from d to other.
// Negative when other is in the past.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

// Bar is one daily row of the underlying price series.
// Columns beyond Date/Close are optional in the input file.
type Bar struct {
	Date   Date    `csv:"Date"`
	Open   float64 `csv:"Open"`
	High   float64 `csv:"High"`
	Low    float64 `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume float64 `csv:"Volume"`
}
