package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is a probe outcome.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// URLID identifies a monitored URL on the service. It is opaque to the
// dashboard: the service emits integers, but any JSON string is accepted too.
type URLID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *URLID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = URLID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("url_id: %w", err)
	}
	*id = URLID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers so they round-trip with the service.
func (id URLID) MarshalJSON() ([]byte, error) {
	if id != "" && strings.Trim(string(id), "0123456789") == "" {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Timestamp is an instant as reported by the service. Both RFC 3339 and
// zone-less ISO 8601 values are accepted; the latter are read in time.Local.
type Timestamp struct {
	time.Time
}

// naiveLayout is what Python's datetime.isoformat() emits without a zone.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// ParseTimestamp parses s as RFC 3339, falling back to the zone-less layout.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// URLCheckResult is one row of the main table.
type URLCheckResult struct {
	URL              string    `json:"url"`
	URLID            URLID     `json:"url_id"`
	Status           Status    `json:"status"`
	ResponseTime     float64   `json:"response_time"`
	UptimePercentage float64   `json:"uptime_percentage"`
	LastChecked      Timestamp `json:"last_checked"`
	// Warning is set when the probe had to skip TLS verification.
	Warning string `json:"warning,omitempty"`
}

// HistoryEntry is one past probe of a single URL.
type HistoryEntry struct {
	Status       Status    `json:"status"`
	ResponseTime *float64  `json:"response_time"`
	Timestamp    Timestamp `json:"timestamp"`
}

// CheckRequest is the body of POST /check-urls/.
type CheckRequest struct {
	URLs []string `json:"urls"`
}

// ErrorBody is the shape of a service error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}
