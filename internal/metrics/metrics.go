// Package metrics keeps process counters and gauges and exposes them in the
// Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/seckatie/urlhealth/internal/core/remote"
	"github.com/seckatie/urlhealth/internal/core/view"
)

// Registry holds named metrics. Each Registry is independent of the
// process-wide default registry, so servers and tests never collide.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// CounterVec is a counter partitioned by label values.
type CounterVec struct {
	vec *prometheus.CounterVec
}

// NewCounterVec registers a counter with the given label names. It panics if
// name is already registered.
func (r *Registry) NewCounterVec(name, help string, labels ...string) *CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	r.reg.MustRegister(vec)
	return &CounterVec{vec: vec}
}

// Inc adds one to the series identified by values.
func (c *CounterVec) Inc(values ...string) { c.Add(1, values...) }

// Add adds v to the series identified by values. Negative values are
// ignored; a wrong number of values panics.
func (c *CounterVec) Add(v float64, values ...string) {
	counter := c.vec.WithLabelValues(values...)
	if v < 0 {
		return
	}
	counter.Add(v)
}

// Value returns the current value of one series.
func (c *CounterVec) Value(values ...string) float64 {
	counter, err := c.vec.GetMetricWithLabelValues(values...)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// NewGaugeFunc registers a gauge whose value is read from fn at gather time.
func (r *Registry) NewGaugeFunc(name, help string, fn func() float64) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

// Gather returns every family, sorted by name.
func (r *Registry) Gather() []*dto.MetricFamily {
	mfs, err := r.reg.Gather()
	if err != nil {
		log.Printf("Failed to gather metrics: %v", err)
	}
	return mfs
}

// Write encodes all families to w in the text exposition format.
func (r *Registry) Write(w io.Writer) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range r.Gather() {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the registry at a /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	h := promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{ErrorLog: log.Default()})
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, req)
	})
}

// ActionRecorder counts dispatcher actions by operation and outcome.
type ActionRecorder struct {
	actions *CounterVec
}

// NewActionRecorder registers urlhealth_actions_total on r.
func NewActionRecorder(r *Registry) *ActionRecorder {
	return &ActionRecorder{
		actions: r.NewCounterVec("urlhealth_actions_total",
			"Dashboard actions by operation and outcome.", "op", "outcome"),
	}
}

// Record implements view.Recorder.
func (a *ActionRecorder) Record(op remote.Op, outcome view.Outcome) {
	a.actions.Inc(string(op), string(outcome))
}

var _ view.Recorder = (*ActionRecorder)(nil)
