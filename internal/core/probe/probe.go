// Package probe measures whether URLs are up and how long they take to answer.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seckatie/urlhealth/internal/core"
)

// WarningInsecure is attached to results that needed TLS verification turned off.
const WarningInsecure = "SSL verification disabled"

// Result is the outcome of probing one URL.
type Result struct {
	// URL is the probed URL as given by the caller.
	URL    string
	Status string
	// ResponseTime is in seconds; 0 when the URL is down.
	ResponseTime float64
	Warning      string
	// Err describes why the URL is down.
	Err error
}

// Up reports whether the probe succeeded.
func (r Result) Up() bool { return r.Status == core.StatusUp }

// Prober checks a single URL.
type Prober interface {
	Probe(ctx context.Context, rawURL string) Result
}

// HTTPProber probes with a plain GET.
//
// A response with status >= 400 or a transport error means DOWN. When the
// certificate cannot be verified the request is repeated once without
// verification, and a success is reported UP with WarningInsecure.
type HTTPProber struct {
	client   *http.Client
	insecure *http.Client
	now      func() time.Time
}

// NewHTTPProber returns an HTTPProber with the given per-attempt timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = core.DefaultProbeTimeout
	}
	insecureTransport := http.DefaultTransport.(*http.Transport).Clone()
	insecureTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit fallback, reported as a warning

	return &HTTPProber{
		client:   &http.Client{Timeout: timeout},
		insecure: &http.Client{Timeout: timeout, Transport: insecureTransport},
		now:      time.Now,
	}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) Result {
	target := withScheme(rawURL)
	start := p.now()

	err := get(ctx, p.client, target)
	warning := ""
	if err != nil && isCertificateError(err) {
		warning = WarningInsecure
		err = get(ctx, p.insecure, target)
	}
	if err != nil {
		return Result{URL: rawURL, Status: core.StatusDown, Err: err}
	}

	return Result{
		URL:          rawURL,
		Status:       core.StatusUp,
		ResponseTime: p.now().Sub(start).Seconds(),
		Warning:      warning,
	}
}

func get(ctx context.Context, client *http.Client, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", core.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Drain so the timing covers the whole response.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// withScheme prepends https:// when rawURL has no http(s) scheme.
func withScheme(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	return "https://" + rawURL
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}
