package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seckatie/urlhealth/internal/core"
	"github.com/seckatie/urlhealth/internal/core/db"
	"github.com/seckatie/urlhealth/internal/core/probe"
	"github.com/seckatie/urlhealth/internal/core/remote"
	"github.com/seckatie/urlhealth/internal/metrics"
)

// fakeProber answers from a table of canned results; unknown URLs are UP.
// Like a real probe, it reports DOWN once ctx is done.
type fakeProber struct {
	mu      sync.Mutex
	results map[string]probe.Result
	probed  []string
}

func (f *fakeProber) Probe(ctx context.Context, rawURL string) probe.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, rawURL)
	if err := ctx.Err(); err != nil {
		return probe.Result{URL: rawURL, Status: core.StatusDown, Err: err}
	}
	if res, ok := f.results[rawURL]; ok {
		res.URL = rawURL
		return res
	}
	return probe.Result{URL: rawURL, Status: core.StatusUp, ResponseTime: 0.25}
}

// newTestDB creates a new in-memory SQLite database for testing.
func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("failed to close db: %v", err)
		}
	})
	return database
}

// newTestServer returns a server over an in-memory DB whose clock advances
// one second per check.
func newTestServer(t *testing.T, prober *fakeProber) (*Server, *db.DB) {
	t.Helper()
	database := newTestDB(t)
	s := NewServer(database, probe.NewPool(prober, 4), nil)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s, database
}

func postCheck(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/check-urls/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body remote.ErrorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Detail
}

func TestHandleCheckURLs(t *testing.T) {
	prober := &fakeProber{results: map[string]probe.Result{
		"down.example":        {Status: core.StatusDown, Err: errors.New("connection refused")},
		"self-signed.example": {Status: core.StatusUp, ResponseTime: 0.5, Warning: probe.WarningInsecure},
	}}
	s, _ := newTestServer(t, prober)
	h := s.Handler()

	t.Run("returns results in request order", func(t *testing.T) {
		w := postCheck(t, h, `{"urls": ["up.example", "  ", "down.example", "self-signed.example"]}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}

		var got []remote.URLCheckResult
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 results (blank skipped), got %d", len(got))
		}

		want := []struct {
			url     string
			status  remote.Status
			uptime  float64
			warning string
		}{
			{"up.example", remote.StatusUp, 100, ""},
			{"down.example", remote.StatusDown, 0, ""},
			{"self-signed.example", remote.StatusUp, 100, probe.WarningInsecure},
		}
		for i, tt := range want {
			if got[i].URL != tt.url {
				t.Errorf("result %d: expected url %q, got %q", i, tt.url, got[i].URL)
			}
			if got[i].Status != tt.status {
				t.Errorf("result %d: expected status %s, got %s", i, tt.status, got[i].Status)
			}
			if got[i].UptimePercentage != tt.uptime {
				t.Errorf("result %d: expected uptime %v, got %v", i, tt.uptime, got[i].UptimePercentage)
			}
			if got[i].Warning != tt.warning {
				t.Errorf("result %d: expected warning %q, got %q", i, tt.warning, got[i].Warning)
			}
			if got[i].URLID == "" {
				t.Errorf("result %d: expected url_id to be set", i)
			}
			if got[i].LastChecked.IsZero() {
				t.Errorf("result %d: expected last_checked to be set", i)
			}
		}
		if got[1].ResponseTime != 0 {
			t.Errorf("expected DOWN response time 0, got %v", got[1].ResponseTime)
		}
	})

	t.Run("uptime is recomputed on every check", func(t *testing.T) {
		prober.mu.Lock()
		prober.results["up.example"] = probe.Result{Status: core.StatusDown}
		prober.mu.Unlock()

		w := postCheck(t, h, `{"urls": ["up.example"]}`)
		var got []remote.URLCheckResult
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(got) != 1 || got[0].UptimePercentage != 50 {
			t.Fatalf("expected uptime 50 after one UP and one DOWN, got %+v", got)
		}
	})

	errorTests := []struct {
		name   string
		body   string
		status int
		detail string
	}{
		{"empty list", `{"urls": []}`, http.StatusUnprocessableEntity, DetailEmptyURLs},
		{"missing list", `{}`, http.StatusUnprocessableEntity, DetailEmptyURLs},
		{"malformed body", `{"urls": `, http.StatusUnprocessableEntity, DetailInvalidBody},
		{"wrong type", `{"urls": "a.com"}`, http.StatusUnprocessableEntity, DetailInvalidBody},
	}
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCheck(t, h, tt.body)
			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			if detail := decodeDetail(t, w); detail != tt.detail {
				t.Errorf("expected detail %q, got %q", tt.detail, detail)
			}
		})
	}

	t.Run("only blank entries returns empty list", func(t *testing.T) {
		w := postCheck(t, h, `{"urls": ["", "   "]}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if body := strings.TrimSpace(w.Body.String()); body != "[]" {
			t.Errorf("expected [], got %s", body)
		}
	})

	t.Run("cancelled request still records real outcomes", func(t *testing.T) {
		s, database := newTestServer(t, &fakeProber{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		req := httptest.NewRequest(http.MethodPost, "/check-urls/",
			strings.NewReader(`{"urls": ["a.example", "b.example"]}`)).WithContext(ctx)
		s.Handler().ServeHTTP(httptest.NewRecorder(), req)

		urls, err := database.ListURLs()
		if err != nil {
			t.Fatalf("ListURLs: %v", err)
		}
		if len(urls) != 2 {
			t.Fatalf("expected 2 stored urls, got %d", len(urls))
		}
		for _, u := range urls {
			if u.Status != core.StatusUp || u.UptimePercentage != 100 {
				t.Errorf("%s stored as %s uptime %v, want UP 100", u.URL, u.Status, u.UptimePercentage)
			}
		}
	})

	t.Run("record failure stores nothing", func(t *testing.T) {
		s, database := newTestServer(t, &fakeProber{results: map[string]probe.Result{
			"broken.example": {Status: "UNKNOWN"},
		}})

		w := postCheck(t, s.Handler(), `{"urls": ["fine.example", "broken.example"]}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		if detail := decodeDetail(t, w); !strings.HasPrefix(detail, "Error checking URLs: ") {
			t.Errorf("unexpected detail %q", detail)
		}
		urls, err := database.ListURLs()
		if err != nil {
			t.Fatalf("ListURLs: %v", err)
		}
		if len(urls) != 0 {
			t.Errorf("expected no stored urls, got %+v", urls)
		}
	})

	t.Run("GET returns method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/check-urls/", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
		}
	})
}

func TestHandleAllURLs(t *testing.T) {
	s, database := newTestServer(t, &fakeProber{})
	h := s.Handler()

	t.Run("empty database returns empty list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/all-urls/", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if body := strings.TrimSpace(w.Body.String()); body != "[]" {
			t.Errorf("expected [], got %s", body)
		}
	})

	t.Run("lists recorded urls", func(t *testing.T) {
		for _, u := range []string{"https://a.example", "https://b.example"} {
			if _, err := database.RecordCheck(u, db.CheckInput{Status: core.StatusUp, ResponseTime: 0.1}); err != nil {
				t.Fatalf("failed to record check: %v", err)
			}
		}

		req := httptest.NewRequest(http.MethodGet, "/all-urls/", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		var got []remote.URLCheckResult
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 urls, got %d", len(got))
		}
		if got[0].URL != "https://a.example" || got[1].URL != "https://b.example" {
			t.Errorf("unexpected order: %+v", got)
		}
	})

	t.Run("POST returns method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/all-urls/", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
		}
	})
}

func TestHandleHistory(t *testing.T) {
	prober := &fakeProber{results: map[string]probe.Result{}}
	s, _ := newTestServer(t, prober)
	h := s.Handler()

	// Three checks: UP, DOWN, UP.
	var id remote.URLID
	for _, status := range []string{core.StatusUp, core.StatusDown, core.StatusUp} {
		prober.mu.Lock()
		prober.results["a.example"] = probe.Result{Status: status}
		prober.mu.Unlock()

		w := postCheck(t, h, `{"urls": ["a.example"]}`)
		var got []remote.URLCheckResult
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		id = got[0].URLID
	}

	t.Run("returns history newest first", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/history/"+string(id), nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var got []remote.HistoryEntry
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(got))
		}
		if got[1].Status != remote.StatusDown {
			t.Errorf("expected middle entry DOWN, got %s", got[1].Status)
		}
		for i := 1; i < len(got); i++ {
			if !got[i-1].Timestamp.After(got[i].Timestamp.Time) {
				t.Errorf("entries %d and %d are not newest first", i-1, i)
			}
		}
	})

	tests := []struct {
		name   string
		path   string
		status int
		detail string
	}{
		{"unknown id", "/history/999", http.StatusNotFound, DetailNoHistory},
		{"non-integer id", "/history/abc", http.StatusUnprocessableEntity, DetailInvalidURLID},
		{"missing id", "/history/", http.StatusNotFound, DetailNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			if detail := decodeDetail(t, w); detail != tt.detail {
				t.Errorf("expected detail %q, got %q", tt.detail, detail)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, &fakeProber{})
	h := s.Handler()

	t.Run("preflight is answered with no content", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/check-urls/", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("expected origin to be echoed, got %q", got)
		}
		if got := w.Header().Get("Access-Control-Allow-Headers"); got != "content-type" {
			t.Errorf("expected requested headers to be allowed, got %q", got)
		}
	})

	t.Run("error responses carry CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/history/999", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("expected wildcard origin, got %q", got)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	h := chainMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), recoveryMiddleware)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if detail := decodeDetail(t, w); detail != DetailInternal {
		t.Errorf("expected detail %q, got %q", DetailInternal, detail)
	}
}

func TestChainMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := chainMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("first"), mark("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(order, ","); got != "first,second,handler" {
		t.Errorf("unexpected order %q", got)
	}
}

func TestObserveChecks(t *testing.T) {
	database := newTestDB(t)
	reg := metrics.NewRegistry()
	ObserveChecks(database, reg)

	s := NewServer(database, probe.NewPool(&fakeProber{results: map[string]probe.Result{
		"down.example": {Status: core.StatusDown},
	}}, 2), reg)
	h := s.Handler()

	postCheck(t, h, `{"urls": ["a.example", "down.example"]}`)
	postCheck(t, h, `{"urls": ["a.example"]}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	body := w.Body.String()
	for _, want := range []string{
		`urlhealth_checks_total{status="UP"} 2`,
		`urlhealth_checks_total{status="DOWN"} 1`,
		`urlhealth_urls_created_total 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics to contain %q, got:\n%s", want, body)
		}
	}
}

func TestClientRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, &fakeProber{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	client := remote.NewClient(ts.URL, ts.Client())
	ctx := context.Background()

	checked, err := client.CheckURLs(ctx, []string{"https://a.example"})
	if err != nil {
		t.Fatalf("CheckURLs: %v", err)
	}
	if len(checked) != 1 || checked[0].URLID != "1" {
		t.Fatalf("unexpected check results %+v", checked)
	}

	all, err := client.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(all) != 1 || all[0].URL != "https://a.example" {
		t.Fatalf("unexpected urls %+v", all)
	}

	history, err := client.FetchHistory(ctx, checked[0].URLID)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(history) != 1 || history[0].ResponseTime == nil {
		t.Fatalf("unexpected history %+v", history)
	}

	_, err = client.FetchHistory(ctx, "42")
	var se *remote.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.Detail != DetailNoHistory {
		t.Errorf("expected detail %q, got %q", DetailNoHistory, se.Detail)
	}
}
