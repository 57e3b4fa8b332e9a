package logo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var icoBytes = []byte{0, 0, 1, 0, 1, 0, 16, 16}

// site is a fake logo provider and website in one server.
type site struct {
	provider bool
	page     string
	favicon  bool
	hits     atomic.Int32
}

func (s *site) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/provider/") && s.provider:
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("provider-png"))
		case r.URL.Path == "/" && s.page != "":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(s.page))
		case r.URL.Path == "/static/icon.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("declared-png"))
		case r.URL.Path == "/favicon.ico" && s.favicon:
			_, _ = w.Write(icoBytes)
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestResolver(t *testing.T, s *site) (*Resolver, string) {
	t.Helper()
	ts := httptest.NewServer(s.handler())
	t.Cleanup(ts.Close)

	r := NewResolver(Options{
		Provider: ts.URL + "/provider/{host}",
		Scheme:   "http",
		Rate:     1000,
		Burst:    100,
	})
	return r, strings.TrimPrefix(ts.URL, "http://")
}

func TestResolver_Chain(t *testing.T) {
	tests := []struct {
		name       string
		site       *site
		wantData   string
		wantSource string
	}{
		{
			name:       "provider",
			site:       &site{provider: true, favicon: true},
			wantData:   "provider-png",
			wantSource: "/provider/",
		},
		{
			name:       "declared icon",
			site:       &site{page: `<html><head><link rel="icon" href="/static/icon.png"></head></html>`, favicon: true},
			wantData:   "declared-png",
			wantSource: "/static/icon.png",
		},
		{
			name:       "shortcut icon",
			site:       &site{page: `<html><head><link rel="shortcut icon" href="static/icon.png"></head></html>`},
			wantData:   "declared-png",
			wantSource: "/static/icon.png",
		},
		{
			name:       "favicon",
			site:       &site{page: `<html><head><title>no icon</title></head></html>`, favicon: true},
			wantData:   string(icoBytes),
			wantSource: "/favicon.ico",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, host := newTestResolver(t, tt.site)
			logo, err := r.Resolve(context.Background(), host)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if string(logo.Data) != tt.wantData {
				t.Errorf("Data = %q, want %q", logo.Data, tt.wantData)
			}
			if !strings.Contains(logo.Source, tt.wantSource) {
				t.Errorf("Source = %q, want it to contain %q", logo.Source, tt.wantSource)
			}
		})
	}
}

func TestResolver_NotFoundIsCached(t *testing.T) {
	s := &site{}
	r, host := newTestResolver(t, s)

	if _, err := r.Resolve(context.Background(), host); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}
	hits := s.hits.Load()
	if hits == 0 {
		t.Fatal("expected the candidates to be tried")
	}

	if _, err := r.Resolve(context.Background(), host); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Resolve() error = %v, want ErrNotFound", err)
	}
	if got := s.hits.Load(); got != hits {
		t.Errorf("cached miss made %d more requests", got-hits)
	}
}

func TestResolver_CacheExpires(t *testing.T) {
	s := &site{provider: true}
	r, host := newTestResolver(t, s)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if _, err := r.Resolve(context.Background(), host); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, err := r.Resolve(context.Background(), host); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := s.hits.Load(); got != 1 {
		t.Fatalf("hits = %d, want 1 while cached", got)
	}

	now = now.Add(2 * time.Hour)
	if _, err := r.Resolve(context.Background(), host); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := s.hits.Load(); got != 2 {
		t.Errorf("hits = %d, want 2 after expiry", got)
	}
}

func TestResolver_CacheIsBounded(t *testing.T) {
	s := &site{provider: true}
	r, _ := newTestResolver(t, s)
	r.cache.Resize(2)

	for _, host := range []string{"a.example", "b.example", "c.example"} {
		if _, err := r.Resolve(context.Background(), host); err != nil {
			t.Fatalf("Resolve(%s) error = %v", host, err)
		}
	}
	if got := r.cache.Len(); got != 2 {
		t.Errorf("cache holds %d hosts, want 2", got)
	}
	if r.cache.Contains("a.example") {
		t.Error("least recently used host should have been evicted")
	}

	hits := s.hits.Load()
	if _, err := r.Resolve(context.Background(), "a.example"); err != nil {
		t.Fatalf("Resolve(a.example) error = %v", err)
	}
	if got := s.hits.Load(); got != hits+1 {
		t.Errorf("evicted host made %d requests, want 1", got-hits)
	}
}

func TestNewResolver_DefaultCacheSize(t *testing.T) {
	r := NewResolver(Options{})
	if r.opts.CacheSize != DefaultOptions().CacheSize {
		t.Errorf("CacheSize = %d, want %d", r.opts.CacheSize, DefaultOptions().CacheSize)
	}
}

func TestResolver_InvalidHost(t *testing.T) {
	s := &site{provider: true}
	r, _ := newTestResolver(t, s)

	for _, host := range []string{"", "bad", "a b.com", "x.com/../etc"} {
		t.Run(host, func(t *testing.T) {
			if _, err := r.Resolve(context.Background(), host); !errors.Is(err, ErrInvalidHost) {
				t.Errorf("Resolve(%q) error = %v, want ErrInvalidHost", host, err)
			}
		})
	}
	if got := s.hits.Load(); got != 0 {
		t.Errorf("invalid hosts made %d requests", got)
	}
}

func TestResolver_Canceled(t *testing.T) {
	s := &site{provider: true}
	r, host := newTestResolver(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx, host); err == nil {
		t.Fatal("expected an error for a canceled context")
	}

	// The canceled attempt was not cached.
	if _, err := r.Resolve(context.Background(), host); err != nil {
		t.Errorf("Resolve() after cancel error = %v", err)
	}
}
