// Package headless fetches entry pages through headless Chrome for sites that
// render their tooltips and headings with JavaScript.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

const (
	defaultNavTimeout    = 30 * time.Second
	defaultReadySelector = "body"
	defaultSettle        = 500 * time.Millisecond
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	// MaxParallel caps concurrent tabs. Zero means unlimited.
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// ReadySelector is awaited before the DOM is captured.
	ReadySelector string
	// Settle is how long scripts may run after ReadySelector appears.
	Settle time.Duration
}

// Fetcher implements crawler.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	tabs        chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// page is what one render yields.
type page struct {
	html     string
	location string
	doc      documentResponse
}

// NewChromedp creates a headless fetcher backed by chromedp. The browser is
// started lazily on the first Fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	if cfg.ReadySelector == "" {
		cfg.ReadySelector = defaultReadySelector
	}
	switch {
	case cfg.Settle < 0:
		cfg.Settle = 0
	case cfg.Settle == 0:
		cfg.Settle = defaultSettle
	}

	f := &Fetcher{cfg: cfg}
	if cfg.MaxParallel > 0 {
		f.tabs = make(chan struct{}, cfg.MaxParallel)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("enable-automation", false),
	)
	f.allocator, f.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return f, nil
}

// Close shuts down the browser process.
func (f *Fetcher) Close() error {
	f.allocCancel()
	return nil
}

// Fetch renders the entry page and returns the resulting DOM. Cancelling ctx
// closes the browser tab.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	if err := f.acquire(ctx); err != nil {
		return crawler.FetchResponse{}, err
	}
	defer f.release()

	start := time.Now()
	p, err := f.render(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return crawler.FetchResponse{}, fmt.Errorf("headless fetch of entry %d canceled: %w", request.EntryID, ctx.Err())
		}
		return crawler.FetchResponse{}, err
	}

	return crawler.FetchResponse{
		URL:          p.doc.urlOr(p.location, request.URL),
		StatusCode:   p.doc.statusOr(http.StatusOK),
		Headers:      p.doc.header(),
		Body:         []byte(p.html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

// render opens a tab, navigates to the entry and captures the DOM once the
// ready selector has appeared and scripts had time to settle.
func (f *Fetcher) render(ctx context.Context, request crawler.FetchRequest) (page, error) {
	tabCtx, closeTab := chromedp.NewContext(f.allocator)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, f.navTimeout())
	defer cancel()

	watcher := &documentWatcher{}
	chromedp.ListenTarget(tabCtx, watcher.listen)

	var p page
	err := chromedp.Run(tabCtx,
		f.prepareTab(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady(f.readySelector(), chromedp.ByQuery),
		chromedp.Sleep(f.cfg.Settle),
		chromedp.Location(&p.location),
		chromedp.OuterHTML("html", &p.html, chromedp.ByQuery),
	)
	if err != nil {
		return page{}, fmt.Errorf("render %s: %w", request.URL, err)
	}
	p.doc = watcher.last()
	return p, nil
}

func (f *Fetcher) prepareTab(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) == 0 {
			return nil
		}
		if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.tabs == nil {
		return nil
	}
	select {
	case f.tabs <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.tabs != nil {
		<-f.tabs
	}
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return defaultNavTimeout
}

func (f *Fetcher) readySelector() string {
	if f.cfg.ReadySelector != "" {
		return f.cfg.ReadySelector
	}
	return defaultReadySelector
}

// documentWatcher remembers the last main-document response of a tab.
// Redirects produce several; the last one is the page that was rendered.
type documentWatcher struct {
	mu  sync.Mutex
	doc documentResponse
}

func (w *documentWatcher) listen(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	w.mu.Lock()
	w.doc = documentResponse{
		status:  int(resp.Response.Status),
		url:     resp.Response.URL,
		headers: resp.Response.Headers,
	}
	w.mu.Unlock()
}

func (w *documentWatcher) last() documentResponse {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc
}

type documentResponse struct {
	status  int
	url     string
	headers network.Headers
}

func (d documentResponse) statusOr(fallback int) int {
	if d.status == 0 {
		return fallback
	}
	return d.status
}

func (d documentResponse) urlOr(candidates ...string) string {
	if d.url != "" {
		return d.url
	}
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// header converts the CDP header map, whose values may be strings or lists.
func (d documentResponse) header() http.Header {
	h := make(http.Header, len(d.headers))
	for key, value := range d.headers {
		switch v := value.(type) {
		case string:
			h.Add(key, v)
		case []string:
			for _, entry := range v {
				h.Add(key, entry)
			}
		case []any:
			for _, entry := range v {
				h.Add(key, fmt.Sprint(entry))
			}
		default:
			h.Add(key, fmt.Sprint(v))
		}
	}
	return h
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
