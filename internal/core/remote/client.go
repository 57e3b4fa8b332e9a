package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/seckatie/urlhealth/internal/core"
)

// maxErrorBody bounds how much of an error response is read looking for "detail".
const maxErrorBody = 64 * 1024

// Client talks to the remote monitoring service. Each call is a single
// request/response exchange; nothing is retried.
type Client struct {
	mu      sync.RWMutex
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for the service at baseURL. A nil httpClient gets
// one with core.DefaultClientTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: core.DefaultClientTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// BaseURL returns the service base URL currently in use.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL points the client at a different service. In-flight requests keep
// the URL they started with.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.mu.Unlock()
}

// FetchAll returns every URL the service has monitored.
func (c *Client) FetchAll(ctx context.Context) ([]URLCheckResult, error) {
	var out []URLCheckResult
	if err := c.do(ctx, OpFetchAll, http.MethodGet, "/all-urls/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckURLs asks the service to probe urls now and returns the results in
// service order.
func (c *Client) CheckURLs(ctx context.Context, urls []string) ([]URLCheckResult, error) {
	var out []URLCheckResult
	if err := c.do(ctx, OpCheckURLs, http.MethodPost, "/check-urls/", CheckRequest{URLs: urls}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchHistory returns the past probes of the URL identified by id.
func (c *Client) FetchHistory(ctx context.Context, id URLID) ([]HistoryEntry, error) {
	var out []HistoryEntry
	path := "/history/" + url.PathEscape(string(id))
	if err := c.do(ctx, OpFetchHistory, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op Op, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &ServiceError{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, reader)
	if err != nil {
		return &ServiceError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", core.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServiceError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServiceError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// readDetail extracts a string "detail" field from an error body. Non-string
// details (e.g. validation error lists) are ignored.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err != nil {
		return ""
	}
	return detail
}
