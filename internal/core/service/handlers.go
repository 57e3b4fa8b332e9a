package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/seckatie/urlhealth/internal/core/db"
	"github.com/seckatie/urlhealth/internal/core/remote"
)

// maxCheckBody bounds the size of a POST /check-urls/ body.
const maxCheckBody = 1 << 20

// requireMethod checks if the request method matches the expected method.
// Returns true if the method matches, false otherwise (and sends 405 response).
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		methodNotAllowed(w)
		return false
	}
	return true
}

// handleAllURLs lists every monitored URL with its latest check.
func (s *Server) handleAllURLs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/all-urls/" {
		notFound(w, DetailNotFound)
		return
	}
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	urls, err := s.store.ListURLs()
	if err != nil {
		log.Printf("Failed to list urls: %v", err)
		internalError(w, fmt.Sprintf("Error fetching URLs: %v", err))
		return
	}

	out := make([]remote.URLCheckResult, 0, len(urls))
	for _, u := range urls {
		out = append(out, resultFromURL(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCheckURLs probes the posted URLs, records each check and returns
// the results in request order. Blank entries are skipped.
func (s *Server) handleCheckURLs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/check-urls/" {
		notFound(w, DetailNotFound)
		return
	}
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req remote.CheckRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCheckBody)).Decode(&req); err != nil {
		unprocessable(w, DetailInvalidBody)
		return
	}
	if len(req.URLs) == 0 {
		unprocessable(w, DetailEmptyURLs)
		return
	}

	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if strings.TrimSpace(u) == "" {
			continue
		}
		urls = append(urls, u)
	}

	// Probes run to completion even if the client goes away, so a cancelled
	// request never records a DOWN check for a URL that was not probed.
	probed := s.pool.Run(context.WithoutCancel(r.Context()), urls)

	checks := make([]db.CheckInput, 0, len(probed))
	for _, res := range probed {
		if res.Err != nil {
			log.Printf("Probe of %s failed: %v", res.URL, res.Err)
		}
		checks = append(checks, db.CheckInput{
			URL:          res.URL,
			Status:       res.Status,
			ResponseTime: res.ResponseTime,
			Warning:      res.Warning,
			CheckedAt:    s.now(),
		})
	}

	stored, err := s.store.RecordChecks(checks)
	if err != nil {
		log.Printf("Failed to record checks: %v", err)
		internalError(w, fmt.Sprintf("Error checking URLs: %v", err))
		return
	}

	out := make([]remote.URLCheckResult, 0, len(stored))
	for _, u := range stored {
		out = append(out, resultFromURL(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHistory returns the checks of one URL, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/history/"), "/")
	if raw == "" || strings.Contains(raw, "/") {
		notFound(w, DetailNotFound)
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		unprocessable(w, DetailInvalidURLID)
		return
	}

	checks, err := s.store.ListChecks(id, 0)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, DetailNoHistory)
			return
		}
		log.Printf("Failed to list history of url %d: %v", id, err)
		internalError(w, fmt.Sprintf("Error fetching history: %v", err))
		return
	}

	out := make([]remote.HistoryEntry, 0, len(checks))
	for _, c := range checks {
		out = append(out, remote.HistoryEntry{
			Status:       remote.Status(c.Status),
			ResponseTime: c.ResponseTime,
			Timestamp:    storedTime(c.Timestamp),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func resultFromURL(u db.URL) remote.URLCheckResult {
	return remote.URLCheckResult{
		URL:              u.URL,
		URLID:            remote.URLID(strconv.FormatInt(u.ID, 10)),
		Status:           remote.Status(u.Status),
		ResponseTime:     u.ResponseTime,
		UptimePercentage: u.UptimePercentage,
		LastChecked:      storedTime(u.LastChecked),
		Warning:          u.Warning,
	}
}

// storedTime parses a DB timestamp. Unparseable values become the zero time.
func storedTime(s string) remote.Timestamp {
	t, err := time.Parse(db.TimestampLayout, s)
	if err != nil {
		if t, err = remote.ParseTimestamp(s); err != nil {
			log.Printf("Invalid stored timestamp %q: %v", s, err)
			return remote.Timestamp{}
		}
	}
	return remote.Timestamp{Time: t}
}
