package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/wowhead-parser/internal/metrics"
)

// contextTransport binds every outgoing request to the fetch context.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("context transport received nil request")
	}
	resp, err := t.base.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, fmt.Errorf("context transport roundtrip: %w", err)
	}
	return resp, nil
}

// retryTransport repeats GETs that failed with a transient network error.
type retryTransport struct {
	base    http.RoundTripper
	backoff []time.Duration
}

func newRetryTransport(base http.RoundTripper, backoff []time.Duration) *retryTransport {
	return &retryTransport{base: base, backoff: backoff}
}

func retryBackoff(retries int) []time.Duration {
	out := make([]time.Duration, retries)
	delay := 250 * time.Millisecond
	for i := range out {
		out[i] = delay
		delay *= 2
	}
	return out
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("retry transport received nil request")
	}
	maxAttempts := len(t.backoff) + 1
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(cloneRequest(req))
		if err == nil {
			return resp, nil
		}
		if req.Method != http.MethodGet || !isTransientError(err) || req.Context().Err() != nil {
			return nil, fmt.Errorf("roundtrip %s: %w", req.URL, err)
		}
		if attempt == maxAttempts-1 {
			return nil, fmt.Errorf("roundtrip %s after %d attempts: %w", req.URL, maxAttempts, err)
		}
		metrics.ObserveFetchRetry(req.URL.Hostname())
		if err := sleepWithContext(req.Context(), t.backoff[attempt]); err != nil {
			return nil, err
		}
	}
}

func cloneRequest(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	clone.Body = req.Body
	return clone
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry backoff: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "tls: handshake timeout") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "EOF")
}
