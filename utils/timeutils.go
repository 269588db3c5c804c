package utils

import (
	"fmt"
	"strings"
	"time"
)

// Iso8601 formats t in UTC as RFC3339.
func Iso8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTimestamp accepts RFC3339 with or without fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// Some producers omit the offset; treat those as UTC.
	return time.Parse("2006-01-02T15:04:05", s)
}

// Duration renders d as an xsd:duration in whole seconds, e.g. PT30S.
func Duration(d time.Duration) string {
	return fmt.Sprintf("PT%dS", int64(d/time.Second))
}

// GTFSStartDate formats t as the GTFS-RT start_date (YYYYMMDD) in t's own zone.
func GTFSStartDate(t time.Time) string {
	return t.Format("20060102")
}

// GTFSStartTime formats t as the GTFS-RT start_time (HH:MM:SS) in t's own zone.
func GTFSStartTime(t time.Time) string {
	return t.Format("15:04:05")
}

// ArchiveStamp is the sortable timestamp used in archive object keys.
func ArchiveStamp(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000Z")
}
