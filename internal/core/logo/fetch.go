package logo

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/seckatie/urlhealth/internal/core"
)

// AllowInternalURLsForTesting disables the internal address check so tests
// can fetch from httptest servers.
var AllowInternalURLsForTesting = false

// internalSuffixes are domain suffixes that never resolve publicly.
var internalSuffixes = []string{".local", ".localhost", ".internal", ".localdomain"}

type fetchResult struct {
	data        []byte
	contentType string
}

// isInternalURL reports whether urlStr points at a loopback, private,
// link-local or otherwise internal address. Unparsable URLs count as internal.
func isInternalURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return true
	}
	host := u.Hostname()
	if host == "" {
		return true
	}

	lower := strings.ToLower(host)
	if lower == "localhost" {
		return true
	}
	for _, suffix := range internalSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// resolveURL resolves a potentially relative URL against a base URL.
func resolveURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}

	// Skip data URIs and javascript:
	if strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") {
		return ""
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	return base.ResolveReference(refURL).String()
}

// fetchURL GETs urlStr and returns its body, truncated to maxSize when
// maxSize > 0.
func fetchURL(ctx context.Context, client *http.Client, urlStr string, maxSize int64) (*fetchResult, error) {
	if !AllowInternalURLsForTesting && isInternalURL(urlStr) {
		return nil, fmt.Errorf("blocked internal URL: %s", urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", core.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if maxSize > 0 {
		reader = io.LimitReader(resp.Body, maxSize)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &fetchResult{data: data, contentType: contentType}, nil
}

// isImage reports whether a fetched body is usable as a logo.
func isImage(r *fetchResult) bool {
	if len(r.data) == 0 {
		return false
	}
	ct := r.contentType
	if idx := strings.Index(ct, ";"); idx > 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if strings.HasPrefix(ct, "image/") {
		return true
	}
	// Some servers send icons as octet-stream.
	return strings.HasPrefix(http.DetectContentType(r.data), "image/")
}
