// Package instrumented wraps a provider and records Prometheus metrics for
// every call.
package instrumented

import (
	"context"
	"errors"
	"iter"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"done/backend"
	"done/internal/ratelimit"
)

// Metrics holds the collectors shared by all instrumented providers.
type Metrics struct {
	calls       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	streamItems *prometheus.CounterVec
	registerer  prometheus.Registerer
}

// NewMetrics registers the provider collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "done_provider_calls_total",
				Help: "Total number of provider operations",
			},
			[]string{"service", "op", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "done_provider_call_duration_seconds",
				Help:    "Duration of provider operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "op"},
		),
		streamItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "done_provider_stream_items_total",
				Help: "Total number of items delivered by provider streams",
			},
			[]string{"service", "kind"},
		),
		registerer: reg,
	}
}

// WatchRateLimits exposes the throttled-response counter of a provider's transport.
func (m *Metrics) WatchRateLimits(service backend.Service, stats *ratelimit.Stats) error {
	return m.registerer.Register(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "done_provider_rate_limited_total",
			Help:        "Total number of rate limited provider requests",
			ConstLabels: prometheus.Labels{"service": string(service)},
		},
		func() float64 { return float64(stats.Throttled()) },
	))
}

// result classifies an error for the result label
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, backend.ErrAuth):
		return "auth_error"
	case errors.Is(err, backend.ErrNotFound):
		return "not_found"
	case errors.Is(err, backend.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport_error"
	}
}

// Provider decorates a backend.Provider with metrics
type Provider struct {
	inner   backend.Provider
	service backend.Service
	metrics *Metrics
}

// Wrap returns p instrumented under the given service label.
func Wrap(p backend.Provider, service backend.Service, m *Metrics) *Provider {
	return &Provider{inner: p, service: service, metrics: m}
}

// Unwrap returns the decorated provider.
func (p *Provider) Unwrap() backend.Provider {
	return p.inner
}

func (p *Provider) observe(op string, start time.Time, err error) {
	svc := string(p.service)
	p.metrics.calls.WithLabelValues(svc, op, result(err)).Inc()
	p.metrics.duration.WithLabelValues(svc, op).Observe(time.Since(start).Seconds())
}

func observeCall[T any](p *Provider, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	p.observe(op, start, err)
	return v, err
}

func (p *Provider) observeErr(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.observe(op, start, err)
	return err
}

// countSeq counts items and records the outcome once the stream ends
func countSeq[T any](p *Provider, op, kind string, seq iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		start := time.Now()
		var streamErr error
		defer func() { p.observe(op, start, streamErr) }()

		items := p.metrics.streamItems.WithLabelValues(string(p.service), kind)
		for v, err := range seq {
			if err != nil {
				streamErr = err
			} else {
				items.Inc()
			}
			if !yield(v, err) {
				return
			}
		}
	}
}

func (p *Provider) Login(ctx context.Context) error {
	return p.observeErr("login", func() error { return p.inner.Login(ctx) })
}

func (p *Provider) Logout(ctx context.Context) error {
	return p.observeErr("logout", func() error { return p.inner.Logout(ctx) })
}

func (p *Provider) HandleURIParams(ctx context.Context, uri *url.URL) error {
	return p.observeErr("handle_uri_params", func() error { return p.inner.HandleURIParams(ctx, uri) })
}

func (p *Provider) Available() bool     { return p.inner.Available() }
func (p *Provider) StreamSupport() bool { return p.inner.StreamSupport() }

func (p *Provider) ReadTasks(ctx context.Context) ([]backend.Task, error) {
	return observeCall(p, "read_tasks", func() ([]backend.Task, error) { return p.inner.ReadTasks(ctx) })
}

func (p *Provider) ReadTasksFromList(ctx context.Context, listID string) ([]backend.Task, error) {
	return observeCall(p, "read_tasks_from_list", func() ([]backend.Task, error) {
		return p.inner.ReadTasksFromList(ctx, listID)
	})
}

// GetTasks records the stream as one call lasting until it ends
func (p *Provider) GetTasks(ctx context.Context, listID string) (iter.Seq2[backend.Task, error], error) {
	seq, err := p.inner.GetTasks(ctx, listID)
	if err != nil {
		p.observe("get_tasks", time.Now(), err)
		return nil, err
	}
	return countSeq(p, "get_tasks", "task", seq), nil
}

func (p *Provider) ReadTask(ctx context.Context, listID, taskID string) (*backend.Task, error) {
	return observeCall(p, "read_task", func() (*backend.Task, error) { return p.inner.ReadTask(ctx, listID, taskID) })
}

func (p *Provider) CreateTask(ctx context.Context, task *backend.Task) (*backend.Task, error) {
	return observeCall(p, "create_task", func() (*backend.Task, error) { return p.inner.CreateTask(ctx, task) })
}

func (p *Provider) UpdateTask(ctx context.Context, task *backend.Task) (*backend.Task, error) {
	return observeCall(p, "update_task", func() (*backend.Task, error) { return p.inner.UpdateTask(ctx, task) })
}

func (p *Provider) DeleteTask(ctx context.Context, listID, taskID string) error {
	return p.observeErr("delete_task", func() error { return p.inner.DeleteTask(ctx, listID, taskID) })
}

func (p *Provider) ReadLists(ctx context.Context) ([]backend.List, error) {
	return observeCall(p, "read_lists", func() ([]backend.List, error) { return p.inner.ReadLists(ctx) })
}

func (p *Provider) GetLists(ctx context.Context) (iter.Seq2[backend.List, error], error) {
	seq, err := p.inner.GetLists(ctx)
	if err != nil {
		p.observe("get_lists", time.Now(), err)
		return nil, err
	}
	return countSeq(p, "get_lists", "list", seq), nil
}

func (p *Provider) ReadList(ctx context.Context, listID string) (*backend.List, error) {
	return observeCall(p, "read_list", func() (*backend.List, error) { return p.inner.ReadList(ctx, listID) })
}

func (p *Provider) CreateList(ctx context.Context, list *backend.List) (*backend.List, error) {
	return observeCall(p, "create_list", func() (*backend.List, error) { return p.inner.CreateList(ctx, list) })
}

func (p *Provider) UpdateList(ctx context.Context, list *backend.List) (*backend.List, error) {
	return observeCall(p, "update_list", func() (*backend.List, error) { return p.inner.UpdateList(ctx, list) })
}

func (p *Provider) DeleteList(ctx context.Context, listID string) error {
	return p.observeErr("delete_list", func() error { return p.inner.DeleteList(ctx, listID) })
}

func (p *Provider) Close() error { return p.inner.Close() }

// Verify interface compliance at compile time
var _ backend.Provider = (*Provider)(nil)
