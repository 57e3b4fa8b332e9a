package core

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// ValidationError reports input that cannot be dispatched to the monitoring
// service. It never reaches the network.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Is lets errors.Is match the sentinel errors below by reason.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

var (
	// ErrEmptyInput is returned when the raw input is blank.
	ErrEmptyInput = &ValidationError{Reason: "empty input"}
	// ErrNoValidURLs is returned when every piece of the input was rejected.
	ErrNoValidURLs = &ValidationError{Reason: "no valid urls"}
)

// UserMessage returns the banner text shown for a validation failure.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return "Please enter at least one URL"
	case errors.Is(err, ErrNoValidURLs):
		return "No valid URLs provided"
	default:
		return err.Error()
	}
}

// NormalizeURLs turns comma-separated free text into absolute URLs.
//
// Pieces are trimmed and empty ones dropped. A piece without an http:// or
// https:// prefix gets https:// prepended. Pieces that still don't parse as an
// absolute URL with a plausible host are dropped silently. Order and duplicates
// are preserved.
func NormalizeURLs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyInput
	}

	var out []string
	for _, piece := range strings.Split(raw, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if !strings.HasPrefix(piece, "http://") && !strings.HasPrefix(piece, "https://") {
			piece = "https://" + piece
		}
		if !IsValidURL(piece) {
			continue
		}
		out = append(out, piece)
	}

	if len(out) == 0 {
		return nil, ErrNoValidURLs
	}
	return out, nil
}

// IsValidURL reports whether s is an absolute http(s) URL whose host is a
// dotted name, localhost or an IP literal.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	if host == "localhost" || net.ParseIP(host) != nil {
		return true
	}
	// Single-label hosts like "bad" are almost always typos in this form.
	if !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return false
	}
	return true
}

// Hostname extracts the host of an absolute URL, or "" when s doesn't parse.
func Hostname(s string) string {
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return ""
	}
	return u.Hostname()
}
