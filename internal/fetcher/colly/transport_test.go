package collyfetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func okResponse(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Header:     make(http.Header),
		Request:    req,
	}
}

func TestRetryTransportRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	attempts := 0
	rt := newRetryTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, timeoutErr{}
		}
		return okResponse(r), nil
	}), []time.Duration{time.Millisecond, time.Millisecond})

	req, err := http.NewRequest(http.MethodGet, "http://example.com/npc=1", nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, 3, attempts)
}

func TestRetryTransportGivesUp(t *testing.T) {
	t.Parallel()

	attempts := 0
	rt := newRetryTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		attempts++
		return nil, timeoutErr{}
	}), retryBackoff(1))

	req, err := http.NewRequest(http.MethodGet, "http://example.com/npc=1", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.Error(t, err)
	require.Equal(t, 2, attempts)
}

func TestRetryTransportSkipsPermanentErrors(t *testing.T) {
	t.Parallel()

	attempts := 0
	rt := newRetryTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		attempts++
		return nil, errors.New("no such host")
	}), retryBackoff(3))

	req, err := http.NewRequest(http.MethodGet, "http://example.com/npc=1", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestContextTransportBindsContext(t *testing.T) {
	t.Parallel()

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "run-1")
	rt := &contextTransport{ctx: ctx, base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		require.Equal(t, "run-1", r.Context().Value(key{}))
		return okResponse(r), nil
	})}
	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
}

func TestRetryBackoffDoubles(t *testing.T) {
	t.Parallel()

	require.Empty(t, retryBackoff(0))
	require.Equal(t, []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second}, retryBackoff(3))
}
