package probe

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/seckatie/urlhealth/internal/core"
)

// BrowserOptions controls how pages are loaded in Chrome.
//
// A browser probe counts a URL as UP only when the main document loads with
// a status below 400, after JavaScript redirects and client-side routing.
type BrowserOptions struct {
	// ChromePath optionally overrides the Chrome/Chromium executable path.
	// If empty, chromedp will try to find a browser on PATH / default locations.
	ChromePath string
	// Headless controls whether Chrome runs without a visible window.
	Headless bool
	// Timeout is the per-page deadline for navigation and load.
	// If <= 0, DefaultProbeTimeout is used.
	Timeout time.Duration
}

// BrowserProber probes URLs by loading them in a shared Chrome instance, one
// tab per probe.
type BrowserProber struct {
	opts          BrowserOptions
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	closeOnce     sync.Once
}

// NewBrowserProber starts Chrome. Call Close to stop it.
func NewBrowserProber(ctx context.Context, opts BrowserOptions) (*BrowserProber, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = core.DefaultProbeTimeout
	}

	allocatorOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOpts = append(allocatorOpts,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.UserAgent(core.UserAgent),
	)
	if opts.ChromePath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(opts.ChromePath))
	}
	if opts.Headless {
		allocatorOpts = append(allocatorOpts, chromedp.Headless)
	} else {
		allocatorOpts = append(allocatorOpts, chromedp.Flag("headless", false))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser now so a missing Chrome fails here, not on first probe.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &BrowserProber{
		opts:          opts,
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

// Close stops the browser.
func (b *BrowserProber) Close() {
	b.closeOnce.Do(func() {
		b.cancelBrowser()
		b.cancelAlloc()
	})
}

// Probe implements Prober.
func (b *BrowserProber) Probe(ctx context.Context, rawURL string) Result {
	target := withScheme(rawURL)

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, b.opts.Timeout)
	defer cancelRun()

	// Stop when the caller gives up, too.
	stop := context.AfterFunc(ctx, cancelRun)
	defer stop()

	var (
		mu     sync.Mutex
		status int64
	)
	loaded := make(chan struct{}, 1)
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument {
				mu.Lock()
				// The last document response wins so redirects report the final page.
				status = e.Response.Status
				mu.Unlock()
			}
		case *page.EventLoadEventFired:
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	start := time.Now()
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(target),
		chromedp.ActionFunc(func(ctx context.Context) error {
			select {
			case <-loaded:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
	)
	elapsed := time.Since(start)
	if err != nil {
		log.Printf("Browser probe failed for %s: %v", target, err)
		return Result{URL: rawURL, Status: core.StatusDown, Err: err}
	}

	mu.Lock()
	code := status
	mu.Unlock()
	if code == 0 || code >= 400 {
		return Result{URL: rawURL, Status: core.StatusDown, Err: fmt.Errorf("HTTP %d", code)}
	}

	return Result{URL: rawURL, Status: core.StatusUp, ResponseTime: elapsed.Seconds()}
}
