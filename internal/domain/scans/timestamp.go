package scans

import "time"

// accepted ISO-8601 forms: extended and basic, with or without offset,
// date-only and minute precision
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
	"20060102T150405Z0700",
	"20060102T150405",
	"20060102",
}

// ValidTimestamp reports whether ts is one of the ISO-8601 forms a client may
// send. The value is stored as given, never reformatted.
func ValidTimestamp(ts string) bool {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, ts); err == nil {
			return true
		}
	}
	return false
}
