package probe

import (
	"context"
	"sync"

	"github.com/seckatie/urlhealth/internal/core"
)

// Pool probes a batch of URLs with a bounded number of goroutines.
type Pool struct {
	prober  Prober
	workers int
}

// NewPool returns a Pool running at most workers probes at once.
func NewPool(prober Prober, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{prober: prober, workers: workers}
}

type job struct {
	index int
	url   string
}

// Run probes every URL and returns the results in input order. URLs not
// reached before ctx is done are reported DOWN with the context's error.
func (p *Pool) Run(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	jobs := make(chan job)

	workers := p.workers
	if workers > len(urls) {
		workers = len(urls)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = p.prober.Probe(ctx, j.url)
			}
		}()
	}

	next := 0
feed:
	for ; next < len(urls); next++ {
		select {
		case jobs <- job{index: next, url: urls[next]}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(urls); i++ {
		results[i] = Result{URL: urls[i], Status: core.StatusDown, Err: ctx.Err()}
	}
	return results
}
