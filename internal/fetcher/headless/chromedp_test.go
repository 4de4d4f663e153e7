package headless

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)

	fetcher, err := NewChromedp(Config{MaxParallel: 2, ReadySelector: "h1.heading-size-1"})
	require.NoError(t, err)
	defer func() { require.NoError(t, fetcher.Close()) }()
	require.Equal(t, 2, cap(fetcher.tabs))
	require.Equal(t, "h1.heading-size-1", fetcher.readySelector())
	require.Equal(t, defaultSettle, fetcher.cfg.Settle)
}

func TestFetcherDefaults(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{}
	require.Equal(t, defaultNavTimeout, fetcher.navTimeout())
	require.Equal(t, defaultReadySelector, fetcher.readySelector())
	fetcher.cfg.NavigationTimeout = time.Second
	require.Equal(t, time.Second, fetcher.navTimeout())
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{tabs: make(chan struct{}, 1)}
	require.NoError(t, fetcher.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, fetcher.acquire(ctx), context.Canceled)

	fetcher.release()
	require.NoError(t, fetcher.acquire(context.Background()))
}

func TestNetworkHeaders(t *testing.T) {
	t.Parallel()

	netHeaders := toNetworkHeaders(http.Header{"X-Test": {"a", "b"}, "Accept": {"text/html"}, "Empty": {}})
	require.Equal(t, []string{"a", "b"}, netHeaders["X-Test"])
	require.Equal(t, "text/html", netHeaders["Accept"])
	require.NotContains(t, netHeaders, "Empty")
}

func TestDocumentWatcherKeepsLastDocument(t *testing.T) {
	t.Parallel()

	w := &documentWatcher{}
	w.listen(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 301, URL: "http://wowhead.com/npc=1"},
	})
	w.listen(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 200, URL: "http://wowhead.com/app.js"},
	})
	w.listen(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  404,
			URL:     "https://www.wowhead.com/npc=1",
			Headers: network.Headers{"X-Request-ID": "abc", "Vary": []any{"Accept", "Cookie"}},
		},
	})
	w.listen("not a network event")

	doc := w.last()
	require.Equal(t, 404, doc.statusOr(http.StatusOK))
	require.Equal(t, "https://www.wowhead.com/npc=1", doc.urlOr("https://final", "https://req"))
	require.Equal(t, "abc", doc.header().Get("X-Request-ID"))
	require.Equal(t, []string{"Accept", "Cookie"}, doc.header().Values("Vary"))

	var empty documentResponse
	require.Equal(t, http.StatusOK, empty.statusOr(http.StatusOK))
	require.Equal(t, "https://final", empty.urlOr("", "https://final", "https://req"))
	require.Empty(t, empty.header())
}

func TestNoopFetcherError(t *testing.T) {
	t.Parallel()

	_, err := NewNoop().Fetch(context.Background(), crawler.FetchRequest{})
	require.ErrorIs(t, err, ErrUnavailable)
}

type stubFetcher struct {
	resp  crawler.FetchResponse
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, crawler.FetchRequest) (crawler.FetchResponse, error) {
	s.calls++
	return s.resp, s.err
}

type stubDetector bool

func (d stubDetector) ShouldPromote(crawler.FetchResponse) bool { return bool(d) }

func TestPromotingUsesRendererWhenFlagged(t *testing.T) {
	t.Parallel()

	probe := &stubFetcher{resp: crawler.FetchResponse{StatusCode: 200, Body: []byte("shell"), Duration: time.Second}}
	renderer := &stubFetcher{resp: crawler.FetchResponse{StatusCode: 200, Body: []byte("rendered"), Duration: 2 * time.Second}}

	resp, err := NewPromoting(probe, renderer, stubDetector(true), zap.NewNop()).
		Fetch(context.Background(), crawler.FetchRequest{EntryID: 1, URL: "http://x"})
	require.NoError(t, err)
	require.Equal(t, "rendered", string(resp.Body))
	require.True(t, resp.UsedHeadless)
	require.Equal(t, 3*time.Second, resp.Duration)
}

func TestPromotingFallsBackToProbe(t *testing.T) {
	t.Parallel()

	probe := &stubFetcher{resp: crawler.FetchResponse{StatusCode: 200, Body: []byte("shell")}}
	renderer := &stubFetcher{err: errors.New("chrome missing")}

	resp, err := NewPromoting(probe, renderer, stubDetector(true), nil).
		Fetch(context.Background(), crawler.FetchRequest{URL: "http://x"})
	require.NoError(t, err)
	require.Equal(t, "shell", string(resp.Body))
	require.False(t, resp.UsedHeadless)
}

func TestPromotingSkipsRendererWhenNotFlagged(t *testing.T) {
	t.Parallel()

	probe := &stubFetcher{err: errors.New("dial failed")}
	renderer := &stubFetcher{}
	_, err := NewPromoting(probe, renderer, stubDetector(true), nil).
		Fetch(context.Background(), crawler.FetchRequest{URL: "http://x"})
	require.Error(t, err)
	require.Zero(t, renderer.calls)

	probe = &stubFetcher{resp: crawler.FetchResponse{StatusCode: 200}}
	_, err = NewPromoting(probe, renderer, stubDetector(false), nil).
		Fetch(context.Background(), crawler.FetchRequest{URL: "http://x"})
	require.NoError(t, err)
	require.Zero(t, renderer.calls)
}
