package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/seckatie/urlhealth/internal/core"
)

// ErrNotFound is returned when a URL or its history does not exist.
var ErrNotFound = errors.New("not found")

// ------------------------------
// URL methods
// ------------------------------

// RecordCheck stores the outcome of probing rawURL and returns the updated
// URL row. It is RecordChecks for a single check.
func (db *DB) RecordCheck(rawURL string, in CheckInput) (URL, error) {
	in.URL = rawURL
	urls, err := db.RecordChecks([]CheckInput{in})
	if err != nil {
		return URL{}, err
	}
	return urls[0], nil
}

// RecordChecks stores a batch of probe outcomes in one transaction: either
// every check is recorded or none is.
//
// A URL row is created on first sight. Every check is appended to the
// history and the URL's uptime is recomputed as the share of UP checks. The
// updated URL rows are returned in input order. URLCreatedEvent and
// CheckRecordedEvent are emitted only after the transaction commits.
func (db *DB) RecordChecks(checks []CheckInput) ([]URL, error) {
	tx, err := db.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback()
	}()

	var events []Event
	out := make([]URL, 0, len(checks))
	for _, in := range checks {
		if in.CheckedAt.IsZero() {
			in.CheckedAt = time.Now()
		}
		u, check, created, err := recordCheck(tx, in)
		if err != nil {
			return nil, fmt.Errorf("record check of %s: %w", in.URL, err)
		}
		if created {
			events = append(events, URLCreatedEvent{URL: u})
		}
		events = append(events, CheckRecordedEvent{URL: u, Check: check})
		out = append(out, u)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	for _, ev := range events {
		db.emit(ev)
	}
	return out, nil
}

func recordCheck(tx *sql.Tx, in CheckInput) (URL, Check, bool, error) {
	checkedAt := FormatTimestamp(in.CheckedAt)

	var id int64
	created := false
	err := tx.QueryRow("SELECT id FROM urls WHERE url = ?", in.URL).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		initial := 0.0
		if in.Status == core.StatusUp {
			initial = 100.0
		}
		res, err := tx.Exec(`
			INSERT INTO urls (url, status, response_time, uptime_percentage, last_checked, warning)
			VALUES (?, ?, ?, ?, ?, ?)
		`, in.URL, in.Status, in.ResponseTime, initial, checkedAt, in.Warning)
		if err != nil {
			return URL{}, Check{}, false, fmt.Errorf("failed to add url: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return URL{}, Check{}, false, fmt.Errorf("failed to get last insert ID: %w", err)
		}
		created = true
	case err != nil:
		return URL{}, Check{}, false, fmt.Errorf("failed to look up url: %w", err)
	}

	res, err := tx.Exec(`
		INSERT INTO url_checks (url_id, status, response_time, timestamp)
		VALUES (?, ?, ?, ?)
	`, id, in.Status, in.ResponseTime, checkedAt)
	if err != nil {
		return URL{}, Check{}, false, fmt.Errorf("failed to add check: %w", err)
	}
	checkID, err := res.LastInsertId()
	if err != nil {
		return URL{}, Check{}, false, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	var total, up int
	if err := tx.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM url_checks
		WHERE url_id = ?
	`, core.StatusUp, id).Scan(&total, &up); err != nil {
		return URL{}, Check{}, false, fmt.Errorf("failed to compute uptime: %w", err)
	}
	uptime := 100.0
	if total > 0 {
		uptime = float64(up) / float64(total) * 100
	}

	if _, err := tx.Exec(`
		UPDATE urls
		SET status = ?, response_time = ?, uptime_percentage = ?, last_checked = ?, warning = ?
		WHERE id = ?
	`, in.Status, in.ResponseTime, uptime, checkedAt, in.Warning, id); err != nil {
		return URL{}, Check{}, false, fmt.Errorf("failed to update url: %w", err)
	}

	u := URL{
		ID:               id,
		URL:              in.URL,
		Status:           in.Status,
		ResponseTime:     in.ResponseTime,
		UptimePercentage: uptime,
		LastChecked:      checkedAt,
		Warning:          in.Warning,
	}
	rt := in.ResponseTime
	check := Check{ID: checkID, URLID: id, Status: in.Status, ResponseTime: &rt, Timestamp: checkedAt}
	return u, check, created, nil
}

// ListURLs returns every monitored URL in insertion order.
func (db *DB) ListURLs() ([]URL, error) {
	rows, err := db.db.Query(`
		SELECT id, url, status, response_time, uptime_percentage, last_checked, warning
		FROM urls
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	out := []URL{}
	for rows.Next() {
		var u URL
		if err := rows.Scan(&u.ID, &u.URL, &u.Status, &u.ResponseTime, &u.UptimePercentage, &u.LastChecked, &u.Warning); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	return out, nil
}

// ------------------------------
// Check history methods
// ------------------------------

// ListChecks returns the checks of a URL, newest first. limit <= 0 means no
// limit. ErrNotFound is returned when the URL has no history.
func (db *DB) ListChecks(urlID int64, limit int) ([]Check, error) {
	query := `
		SELECT id, url_id, status, response_time, timestamp
		FROM url_checks
		WHERE url_id = ?
		ORDER BY timestamp DESC, id DESC
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.db.Query(query+" LIMIT ?", urlID, limit)
	} else {
		rows, err = db.db.Query(query, urlID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("failed to close rows: %v", err)
		}
	}()

	var out []Check
	for rows.Next() {
		var c Check
		var rt sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.URLID, &c.Status, &rt, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		if rt.Valid {
			v := rt.Float64
			c.ResponseTime = &v
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("history of url %d: %w", urlID, ErrNotFound)
	}
	return out, nil
}
