// Package restyfetcher implements Fetcher with a plain resty HTTP client.
package restyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

// Config controls the client.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Retries is the number of extra attempts on transport errors and 5xx.
	Retries int
}

// Fetcher implements crawler.Fetcher.
type Fetcher struct {
	client *resty.Client
}

// New builds a Fetcher with its own client.
func New(cfg Config) *Fetcher {
	client := resty.New()
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client.SetTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Retries > 0 {
		client.SetRetryCount(cfg.Retries).
			SetRetryWaitTime(250 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(func(res *resty.Response, err error) bool {
				return err != nil || res.StatusCode() >= http.StatusInternalServerError
			})
	}
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &Fetcher{client: client}
}

// NewWithClient wraps an existing client.
func NewWithClient(client *resty.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch performs a GET and returns the body. Non-2xx responses are returned
// together with an error.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	req := f.client.R().SetContext(ctx)
	for key, values := range request.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	start := time.Now()
	res, err := req.Get(request.URL)
	if err != nil {
		return crawler.FetchResponse{URL: request.URL}, fmt.Errorf("resty get %s: %w", request.URL, err)
	}

	resp := crawler.FetchResponse{
		URL:        res.Request.URL,
		StatusCode: res.StatusCode(),
		Headers:    res.Header().Clone(),
		Body:       res.Body(),
		Duration:   time.Since(start),
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		resp.URL = res.RawResponse.Request.URL.String()
	}
	if !resp.OK() {
		return resp, fmt.Errorf("resty get %s: unexpected status %d", request.URL, resp.StatusCode)
	}
	return resp, nil
}
