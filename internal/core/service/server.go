// Package service implements the monitoring HTTP API that the dashboard
// consumes: it probes URLs, records every check and serves the history.
package service

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/seckatie/urlhealth/internal/core/db"
	"github.com/seckatie/urlhealth/internal/core/probe"
	"github.com/seckatie/urlhealth/internal/metrics"
)

// Store persists checks. *db.DB implements it.
type Store interface {
	RecordChecks(checks []db.CheckInput) ([]db.URL, error)
	ListURLs() ([]db.URL, error)
	ListChecks(urlID int64, limit int) ([]db.Check, error)
}

// Server serves the monitoring API.
type Server struct {
	store   Store
	pool    *probe.Pool
	metrics *metrics.Registry
	now     func() time.Time
}

// NewServer returns a Server probing through pool and recording into store.
// reg may be nil, in which case /metrics is not served.
func NewServer(store Store, pool *probe.Pool, reg *metrics.Registry) *Server {
	return &Server{
		store:   store,
		pool:    pool,
		metrics: reg,
		now:     time.Now,
	}
}

// StartServer serves the API on addr until the listener fails.
func StartServer(addr string, s *Server) {
	log.Printf("Starting monitoring service at %s", addr)
	if err := http.ListenAndServe(addr, s.Handler()); err != nil {
		log.Fatalf("Monitoring service failed: %v", err)
	}
}

// Handler returns the API with logging, recovery and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return chainMiddleware(mux, loggingMiddleware, recoveryMiddleware, corsMiddleware)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/all-urls/", s.handleAllURLs)
	mux.HandleFunc("/check-urls/", s.handleCheckURLs)
	mux.HandleFunc("/history/", s.handleHistory) // Handles /history/{url_id}
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		notFound(w, DetailNotFound)
	})
}

// ObserveChecks counts recorded checks and newly monitored URLs in reg.
func ObserveChecks(database *db.DB, reg *metrics.Registry) {
	checks := reg.NewCounterVec("urlhealth_checks_total", "Checks recorded by the monitoring service.", "status")
	created := reg.NewCounterVec("urlhealth_urls_created_total", "URLs monitored for the first time.")

	database.RegisterEventListener(db.OnCheckRecordedEvent, func(event db.Event) error {
		e, ok := event.(db.CheckRecordedEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}
		checks.Inc(e.Check.Status)
		return nil
	})
	database.RegisterEventListener(db.OnURLCreatedEvent, func(db.Event) error {
		created.Inc()
		return nil
	})
}
