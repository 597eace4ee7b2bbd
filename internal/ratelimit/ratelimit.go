// Package ratelimit retries throttled HTTP requests. Remote providers install
// its Transport underneath their OAuth transport so token refreshes and API
// calls share one backoff policy.
package ratelimit

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"slices"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 32 * time.Second
)

// Config describes how a Transport backs off.
type Config struct {
	// Service names the provider in errors.
	Service string

	// Statuses are the response codes treated as throttling.
	// Default: 429 only.
	Statuses []int

	// MaxRetries caps the retries after the first attempt. Default: 5
	MaxRetries int

	// BaseDelay is the first backoff step, doubled per retry. Default: 1s
	BaseDelay time.Duration

	// MaxDelay caps a single backoff step. Default: 32s
	MaxDelay time.Duration

	// Jitter spreads each step by ±20%.
	Jitter bool

	// Stats, when set, counts every throttled response.
	Stats *Stats

	// Base is the wrapped transport. Default: http.DefaultTransport
	Base http.RoundTripper
}

// Transport is an http.RoundTripper that retries throttled responses with
// exponential backoff, honouring Retry-After.
type Transport struct {
	cfg Config
}

// NewTransport fills in defaults and returns the transport.
func NewTransport(cfg Config) *Transport {
	if len(cfg.Statuses) == 0 {
		cfg.Statuses = []int{http.StatusTooManyRequests}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.Base == nil {
		cfg.Base = http.DefaultTransport
	}
	return &Transport{cfg: cfg}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	ctx := req.Context()
	var status int
	for attempt := 0; ; attempt++ {
		try := req.Clone(ctx)
		if body != nil {
			if try.Body, err = body(); err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
		}

		resp, err := t.cfg.Base.RoundTrip(try)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(t.cfg.Statuses, resp.StatusCode) {
			return resp, nil
		}

		status = resp.StatusCode
		if t.cfg.Stats != nil {
			t.cfg.Stats.Record()
		}
		retryAfter, hasRetryAfter := RetryAfter(resp.Header.Get("Retry-After"), time.Now())
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if attempt == t.cfg.MaxRetries {
			break
		}

		delay := t.backoff(attempt)
		if hasRetryAfter {
			delay = retryAfter
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, &ExhaustedError{Service: t.cfg.Service, Status: status, Retries: t.cfg.MaxRetries}
}

// replayableBody returns a func producing a fresh copy of the request body,
// or nil when there is none.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		_ = req.Body.Close()
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

// backoff is BaseDelay doubled per attempt, capped at MaxDelay.
func (t *Transport) backoff(attempt int) time.Duration {
	delay := t.cfg.MaxDelay
	if attempt < 32 {
		if d := t.cfg.BaseDelay << attempt; d > 0 && d < delay {
			delay = d
		}
	}
	if t.cfg.Jitter {
		delay = time.Duration(float64(delay) * (0.8 + 0.4*rand.Float64()))
	}
	return delay
}

// ExhaustedError is returned once every retry was throttled.
type ExhaustedError struct {
	Service string
	Status  int
	Retries int
}

func (e *ExhaustedError) Error() string {
	service := e.Service
	if service == "" {
		service = "API"
	}
	return fmt.Sprintf("%s still throttled (HTTP %d) after %d retries", service, e.Status, e.Retries)
}

// RetryAfter parses a Retry-After header given as seconds or an HTTP date.
// Dates in the past yield zero.
func RetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	return max(at.Sub(now), 0), true
}

// Stats counts throttled responses. The zero value is ready to use.
type Stats struct {
	throttled atomic.Int64
	last      atomic.Int64
}

// NewStats returns empty Stats.
func NewStats() *Stats {
	return &Stats{}
}

// Record notes one throttled response.
func (s *Stats) Record() {
	s.throttled.Add(1)
	s.last.Store(time.Now().UnixNano())
}

// Throttled returns how many responses were throttled so far.
func (s *Stats) Throttled() int64 {
	return s.throttled.Load()
}

// Last returns when the most recent throttled response arrived.
func (s *Stats) Last() time.Time {
	n := s.last.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
