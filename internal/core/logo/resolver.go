// Package logo resolves a site's logo image from its hostname.
//
// Candidates are tried in order: the third-party logo provider, the icon
// declared in the site's HTML, and /favicon.ico. When all fail, Resolve
// returns ErrNotFound and callers serve their default asset.
package logo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/seckatie/urlhealth/internal/core"
)

// ErrNotFound is returned when no candidate produced an image.
var ErrNotFound = errors.New("logo not found")

// ErrInvalidHost is returned for hostnames that cannot name a public site.
var ErrInvalidHost = errors.New("invalid host")

// Logo is a resolved image.
type Logo struct {
	Data        []byte
	ContentType string
	// Source is the location the image was loaded from.
	Source string
}

// Options controls a Resolver.
type Options struct {
	// Provider is the logo service location with a {host} placeholder.
	// Empty disables the provider step.
	Provider string
	// Scheme is used to reach the site itself. Defaults to https.
	Scheme string
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// MaxSize is the largest image accepted, in bytes.
	MaxSize int64
	// Rate and Burst limit outbound requests across all hosts.
	Rate  rate.Limit
	Burst int
	// CacheTTL is how long results, including misses, are remembered.
	CacheTTL time.Duration
	// CacheSize bounds the number of remembered hosts; the least recently
	// used host is dropped first.
	CacheSize int
}

// DefaultOptions returns the options used by the dashboard.
func DefaultOptions() Options {
	return Options{
		Provider:  core.DefaultLogoProvider,
		Scheme:    "https",
		Timeout:   core.DefaultLogoTimeout,
		MaxSize:   core.MaxLogoSize,
		Rate:      rate.Limit(10),
		Burst:     5,
		CacheTTL:  time.Hour,
		CacheSize: 1024,
	}
}

type cacheEntry struct {
	logo    *Logo
	err     error
	expires time.Time
}

// Resolver finds and caches logos. It is safe for concurrent use.
type Resolver struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
	cache   *lru.Cache[string, cacheEntry]
}

// NewResolver returns a Resolver. Zero option fields take their defaults.
func NewResolver(opts Options) *Resolver {
	def := DefaultOptions()
	if opts.Scheme == "" {
		opts.Scheme = def.Scheme
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = def.MaxSize
	}
	if opts.Rate <= 0 {
		opts.Rate = def.Rate
	}
	if opts.Burst <= 0 {
		opts.Burst = def.Burst
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = def.CacheSize
	}

	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, cacheEntry](opts.CacheSize)
	return &Resolver{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(opts.Rate, opts.Burst),
		now:     time.Now,
		cache:   cache,
	}
}

// Resolve returns the logo of host, trying each candidate in turn.
func (r *Resolver) Resolve(ctx context.Context, host string) (*Logo, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if !validHost(r.opts.Scheme, host) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}

	if e, ok := r.cached(host); ok {
		return e.logo, e.err
	}

	logo, err := r.resolve(ctx, host)
	if ctx.Err() != nil {
		// Don't remember results cut short by the caller.
		return logo, err
	}

	r.cache.Add(host, cacheEntry{logo: logo, err: err, expires: r.now().Add(r.opts.CacheTTL)})
	return logo, err
}

// validHost accepts a bare host[:port] that forms a valid site URL.
func validHost(scheme, host string) bool {
	u, err := url.Parse(scheme + "://" + host)
	if err != nil || u.Host != host || u.Path != "" || u.RawQuery != "" || u.User != nil {
		return false
	}
	return core.IsValidURL(u.String())
}

func (r *Resolver) cached(host string) (cacheEntry, bool) {
	e, ok := r.cache.Get(host)
	if !ok {
		return cacheEntry{}, false
	}
	if !r.now().Before(e.expires) {
		r.cache.Remove(host)
		return cacheEntry{}, false
	}
	return e, true
}

func (r *Resolver) resolve(ctx context.Context, host string) (*Logo, error) {
	for _, candidate := range r.candidates(host) {
		logo, err := candidate(ctx)
		if err == nil {
			return logo, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Only log non-404 errors (404s are the common case for missing logos)
		if !strings.Contains(err.Error(), "HTTP 404") {
			log.Printf("Logo candidate failed for %s: %v", host, err)
		}
	}
	return nil, ErrNotFound
}

func (r *Resolver) candidates(host string) []func(context.Context) (*Logo, error) {
	site := r.opts.Scheme + "://" + host + "/"
	var out []func(context.Context) (*Logo, error)

	if r.opts.Provider != "" {
		provider := strings.ReplaceAll(r.opts.Provider, "{host}", url.PathEscape(host))
		out = append(out, func(ctx context.Context) (*Logo, error) {
			return r.fetchImage(ctx, provider)
		})
	}
	out = append(out,
		func(ctx context.Context) (*Logo, error) {
			return r.declaredIcon(ctx, site)
		},
		func(ctx context.Context) (*Logo, error) {
			return r.fetchImage(ctx, site+"favicon.ico")
		},
	)
	return out
}

// declaredIcon loads the site's home page and follows its icon link.
func (r *Resolver) declaredIcon(ctx context.Context, site string) (*Logo, error) {
	page, err := r.fetch(ctx, site)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(site)
	if err != nil {
		return nil, err
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved := resolveURL(base, href); resolved != "" {
			if b, err := url.Parse(resolved); err == nil {
				base = b
			}
		}
	}

	selectors := []string{
		"link[rel='apple-touch-icon']",
		"link[rel='icon']",
		"link[rel='shortcut icon']",
		"link[rel~='icon']",
	}
	for _, sel := range selectors {
		href, ok := doc.Find(sel).First().Attr("href")
		if !ok {
			continue
		}
		iconURL := resolveURL(base, href)
		if iconURL == "" {
			continue
		}
		return r.fetchImage(ctx, iconURL)
	}
	return nil, fmt.Errorf("no icon declared on %s", site)
}

func (r *Resolver) fetchImage(ctx context.Context, urlStr string) (*Logo, error) {
	res, err := r.fetch(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	if !isImage(res) {
		return nil, fmt.Errorf("not an image: %s (%s)", urlStr, res.contentType)
	}
	return &Logo{Data: res.data, ContentType: res.contentType, Source: urlStr}, nil
}

func (r *Resolver) fetch(ctx context.Context, urlStr string) (*fetchResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return fetchURL(ctx, r.client, urlStr, r.opts.MaxSize)
}
