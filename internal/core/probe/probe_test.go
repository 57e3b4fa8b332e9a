package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seckatie/urlhealth/internal/core"
)

func TestHTTPProber(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus string
	}{
		{
			name:       "ok",
			handler:    func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) },
			wantStatus: core.StatusUp,
		},
		{
			name: "redirect followed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/" {
					http.Redirect(w, r, "/landing", http.StatusFound)
					return
				}
				_, _ = w.Write([]byte("landing"))
			},
			wantStatus: core.StatusUp,
		},
		{
			name:       "not found",
			handler:    func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			wantStatus: core.StatusDown,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantStatus: core.StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			res := NewHTTPProber(5*time.Second).Probe(context.Background(), ts.URL)
			if res.Status != tt.wantStatus {
				t.Fatalf("Status = %q, want %q (err %v)", res.Status, tt.wantStatus, res.Err)
			}
			if res.URL != ts.URL {
				t.Errorf("URL = %q, want %q", res.URL, ts.URL)
			}
			if res.Up() {
				if res.ResponseTime <= 0 {
					t.Errorf("ResponseTime = %v, want > 0", res.ResponseTime)
				}
				if res.Err != nil {
					t.Errorf("Err = %v, want nil", res.Err)
				}
			} else {
				if res.ResponseTime != 0 {
					t.Errorf("ResponseTime = %v, want 0 for DOWN", res.ResponseTime)
				}
				if res.Err == nil {
					t.Error("expected an error for DOWN")
				}
			}
		})
	}
}

func TestHTTPProber_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	res := NewHTTPProber(time.Second).Probe(context.Background(), url)
	if res.Status != core.StatusDown {
		t.Errorf("Status = %q, want DOWN", res.Status)
	}
}

func TestHTTPProber_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	res := NewHTTPProber(100*time.Millisecond).Probe(context.Background(), ts.URL)
	if res.Status != core.StatusDown {
		t.Errorf("Status = %q, want DOWN", res.Status)
	}
}

func TestHTTPProber_SelfSignedFallsBack(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secure-ish"))
	}))
	defer ts.Close()

	res := NewHTTPProber(5*time.Second).Probe(context.Background(), ts.URL)
	if res.Status != core.StatusUp {
		t.Fatalf("Status = %q, want UP (err %v)", res.Status, res.Err)
	}
	if res.Warning != WarningInsecure {
		t.Errorf("Warning = %q, want %q", res.Warning, WarningInsecure)
	}
}

func TestHTTPProber_SelfSignedDown(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	res := NewHTTPProber(5*time.Second).Probe(context.Background(), ts.URL)
	if res.Status != core.StatusDown {
		t.Errorf("Status = %q, want DOWN", res.Status)
	}
}

func TestWithScheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "https://example.com"},
		{"  example.com ", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"https://example.com/a", "https://example.com/a"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := withScheme(tt.in); got != tt.want {
				t.Errorf("withScheme(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestBrowserProber_RequiresBrowser is skipped unless Chrome is available.
func TestBrowserProber_RequiresBrowser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b, err := NewBrowserProber(ctx, BrowserOptions{Headless: true, Timeout: 20 * time.Second})
	if err != nil {
		t.Skipf("Chrome not available or failed: %v", err)
	}
	defer b.Close()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer ts.Close()

	if res := b.Probe(ctx, ts.URL); res.Status != core.StatusUp {
		t.Errorf("Status = %q, want UP (err %v)", res.Status, res.Err)
	}
	if res := b.Probe(ctx, ts.URL+"/missing"); res.Status != core.StatusDown {
		t.Errorf("Status = %q, want DOWN", res.Status)
	}
}
