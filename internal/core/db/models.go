package db

import "time"

// TimestampLayout is the fixed-width UTC layout used for stored times, so
// that text ordering matches time ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTimestamp renders t for storage.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// URL is a monitored URL with the outcome of its latest check.
type URL struct {
	ID               int64
	URL              string
	Status           string
	ResponseTime     float64
	UptimePercentage float64
	// LastChecked is stored in the DB as TimestampLayout text.
	LastChecked string
	// Warning is set when the latest check skipped TLS verification.
	Warning string
}

// Check is one recorded probe of a URL.
type Check struct {
	ID     int64
	URLID  int64
	Status string
	// ResponseTime is nil when the probe did not measure one.
	ResponseTime *float64
	Timestamp    string
}

// CheckInput is the outcome of a probe to be recorded.
type CheckInput struct {
	URL          string
	Status       string
	ResponseTime float64
	Warning      string
	CheckedAt    time.Time
}
