package webhook

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bloomfeed/core"
)

const (
	maxAttempts = 3
	backoffBase = time.Second
	backoffCap  = 8 * time.Second
)

// Sink posts activities to configured HTTP endpoints.
// It is synchronous for determinism; keep handlers fast or wrap with buffering if needed.
type Sink struct {
	client    *http.Client
	endpoints []string
	sleep     func(time.Duration)
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithSleep overrides the backoff sleep between delivery attempts.
func WithSleep(fn func(time.Duration)) Option {
	return func(s *Sink) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// OnActivity posts the activity JSON to all endpoints. Delivery
// failures are retried with backoff, then logged and dropped so a bad
// endpoint never blocks the bus.
func (s *Sink) OnActivity(ctx context.Context, a core.Activity) {
	if len(s.endpoints) == 0 {
		return
	}
	body, err := core.MarshalActivity(a)
	if err != nil {
		return
	}
	for _, ep := range s.endpoints {
		if err := s.deliver(ctx, ep, body); err != nil {
			slog.Warn("webhook delivery failed", "endpoint", ep, "error", err)
		}
	}
}

func (s *Sink) deliver(ctx context.Context, endpoint string, body []byte) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := backoffBase << (attempt - 2)
			if backoff > backoffCap {
				backoff = backoffCap
			}
			s.sleep(backoff)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		status := resp.StatusCode
		_ = resp.Body.Close()

		if status < 300 {
			return nil
		}
		lastErr = fmt.Errorf("endpoint returned status %d", status)
		// Retry only throttling and server-side failures.
		if status != http.StatusTooManyRequests && status < 500 {
			return lastErr
		}
	}
	return lastErr
}
