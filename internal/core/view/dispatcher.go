package view

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/seckatie/urlhealth/internal/core"
	"github.com/seckatie/urlhealth/internal/core/remote"
)

// ErrSuperseded is returned by Inflight.Wait when a newer request of the same
// kind was issued before the response arrived. The response was discarded.
var ErrSuperseded = errors.New("request superseded")

// Service is the subset of the monitoring client the Dispatcher needs.
type Service interface {
	FetchAll(ctx context.Context) ([]remote.URLCheckResult, error)
	CheckURLs(ctx context.Context, urls []string) ([]remote.URLCheckResult, error)
	FetchHistory(ctx context.Context, id remote.URLID) ([]remote.HistoryEntry, error)
}

// Outcome is what happened to one dispatched action.
type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeRejected   Outcome = "rejected"
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeFailed     Outcome = "failed"
	OutcomeStale      Outcome = "stale"
)

// Recorder receives one call per dispatch and one per completion.
type Recorder interface {
	Record(op remote.Op, outcome Outcome)
}

// requestKind groups actions that write the same part of State. Fetch all and
// check URLs both replace Results, so they share a kind.
type requestKind struct {
	gen      uint64
	cancel   context.CancelFunc
	flag     LoadingFlag
	inflight bool
}

// Dispatcher runs user actions against a Store.
//
// Each action applies its start event synchronously and then performs the
// remote exchange in a goroutine. Every request gets a generation number for
// its kind; issuing a request cancels the previous one of the same kind, and a
// response is applied only if its generation is still the latest. Superseded
// responses only clear their own loading flag.
//
// Store listeners must not call back into the Dispatcher.
type Dispatcher struct {
	store    *Store
	svc      Service
	recorder Recorder

	mu      sync.Mutex
	results requestKind
	history requestKind
}

// NewDispatcher returns a Dispatcher applying events to store. recorder may be nil.
func NewDispatcher(store *Store, svc Service, recorder Recorder) *Dispatcher {
	return &Dispatcher{store: store, svc: svc, recorder: recorder}
}

// Store returns the store the Dispatcher writes to.
func (d *Dispatcher) Store() *Store { return d.store }

// Inflight is a handle on a dispatched request.
type Inflight struct {
	done chan struct{}
	err  error
}

// Wait blocks until the response has been applied (or discarded) and returns
// the request's error: nil, a *remote.ServiceError, or ErrSuperseded.
func (i *Inflight) Wait() error {
	<-i.done
	return i.err
}

// Done is closed once the response has been handled.
func (i *Inflight) Done() <-chan struct{} { return i.done }

// FetchAll loads every URL the service knows about.
func (d *Dispatcher) FetchAll(ctx context.Context) *Inflight {
	reqCtx, gen := d.begin(ctx, &d.results, FlagFetchAll, FetchAllStarted{})
	d.record(remote.OpFetchAll, OutcomeDispatched)

	return d.run(func() error {
		results, err := d.svc.FetchAll(reqCtx)
		return d.finish(&d.results, gen, FlagFetchAll, remote.OpFetchAll, err, func() Event {
			return FetchAllSucceeded{Results: results}
		}, func(msg string) Event {
			return FetchAllFailed{Message: msg}
		})
	})
}

// CheckURLs validates raw and asks the service to probe the resulting URLs.
// A *core.ValidationError is returned, and nothing is sent, when the input is
// blank or contains no valid URL.
func (d *Dispatcher) CheckURLs(ctx context.Context, raw string) (*Inflight, error) {
	d.store.Apply(InputChanged{Text: raw})

	urls, err := core.NormalizeURLs(raw)
	if err != nil {
		d.store.Apply(CheckRejected{Message: core.UserMessage(err)})
		d.record(remote.OpCheckURLs, OutcomeRejected)
		return nil, err
	}

	reqCtx, gen := d.begin(ctx, &d.results, FlagCheck, CheckStarted{URLs: urls})
	d.record(remote.OpCheckURLs, OutcomeDispatched)

	return d.run(func() error {
		results, err := d.svc.CheckURLs(reqCtx, urls)
		return d.finish(&d.results, gen, FlagCheck, remote.OpCheckURLs, err, func() Event {
			return CheckSucceeded{Results: results}
		}, func(msg string) Event {
			return CheckFailed{Message: msg}
		})
	}), nil
}

// ViewHistory loads the check history of id.
func (d *Dispatcher) ViewHistory(ctx context.Context, id remote.URLID) *Inflight {
	reqCtx, gen := d.begin(ctx, &d.history, FlagHistory, HistoryStarted{ID: id})
	d.record(remote.OpFetchHistory, OutcomeDispatched)

	return d.run(func() error {
		history, err := d.svc.FetchHistory(reqCtx, id)
		return d.finish(&d.history, gen, FlagHistory, remote.OpFetchHistory, err, func() Event {
			return HistorySucceeded{ID: id, History: history}
		}, func(msg string) Event {
			return HistoryFailed{ID: id, Message: msg}
		})
	})
}

// begin supersedes any in-flight request of kind k and applies the start event.
func (d *Dispatcher) begin(parent context.Context, k *requestKind, flag LoadingFlag, started Event) (context.Context, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if k.cancel != nil {
		k.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	k.gen++
	k.cancel = cancel
	k.flag = flag
	k.inflight = true

	d.store.Apply(started)
	return ctx, k.gen
}

// finish applies the outcome of request gen of kind k.
func (d *Dispatcher) finish(k *requestKind, gen uint64, flag LoadingFlag, op remote.Op, err error,
	success func() Event, failure func(string) Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != k.gen {
		// A newer request of this kind owns the state. Clear our flag unless
		// that request is still using it.
		if !(k.inflight && k.flag == flag) {
			d.store.Apply(StaleResponse{Flag: flag})
		}
		d.record(op, OutcomeStale)
		return ErrSuperseded
	}

	k.inflight = false
	if k.cancel != nil {
		k.cancel()
		k.cancel = nil
	}

	if err != nil {
		log.Printf("Failed to %s: %v", op, err)
		d.store.Apply(failure(messageFor(op, err)))
		d.record(op, OutcomeFailed)
		return err
	}

	d.store.Apply(success())
	d.record(op, OutcomeSucceeded)
	return nil
}

func (d *Dispatcher) run(fn func() error) *Inflight {
	in := &Inflight{done: make(chan struct{})}
	go func() {
		defer close(in.done)
		in.err = fn()
	}()
	return in
}

func (d *Dispatcher) record(op remote.Op, outcome Outcome) {
	if d.recorder != nil {
		d.recorder.Record(op, outcome)
	}
}

func messageFor(op remote.Op, err error) string {
	var serr *remote.ServiceError
	if errors.As(err, &serr) {
		return serr.Message()
	}
	return remote.DefaultMessage(op)
}
