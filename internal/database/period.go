package database

import (
	"database/sql"
	"fmt"
	"time"
)

// storedTimeLayout keeps timestamps lexically sortable. All stored
// timestamps are UTC.
const storedTimeLayout = "2006-01-02 15:04:05.000000"

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(storedTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// MakeRunID names an ingest run by its date range, e.g.
// "2024-03-01_to_2024-03-31".
func MakeRunID(start, end time.Time) string {
	return start.Format(dateLayout) + "_to_" + end.Format(dateLayout)
}

// DayBounds returns the half-open interval covering the calendar days from
// start through end in loc.
func DayBounds(start, end time.Time, loc *time.Location) (from, to time.Time) {
	from = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	to = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return from, to
}

// MonthBounds returns the half-open interval of a calendar month in loc.
func MonthBounds(month time.Month, year int, loc *time.Location) (from, to time.Time) {
	from = time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}

// YearBounds returns the half-open interval of a calendar year in loc.
func YearBounds(year int, loc *time.Location) (from, to time.Time) {
	from = time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(1, 0, 0)
}
