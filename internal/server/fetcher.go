package server

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/config"
	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	collyfetcher "github.com/JakeFAU/wowhead-parser/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/wowhead-parser/internal/fetcher/headless"
	restyfetcher "github.com/JakeFAU/wowhead-parser/internal/fetcher/resty"
	"github.com/JakeFAU/wowhead-parser/internal/headless/detector"
	"github.com/JakeFAU/wowhead-parser/internal/policy/ratelimit"
)

// setupFetcher assembles the fetch stack: the configured base fetcher,
// optionally promoted to the browser for script-rendered pages, behind the
// per-host rate limiter.
func (a *App) setupFetcher() (crawler.Fetcher, error) {
	cfg := a.cfg
	var base crawler.Fetcher
	switch cfg.Fetcher.Kind {
	case config.FetcherHeadless:
		browser, err := a.newBrowser()
		if err != nil {
			return nil, err
		}
		base = browser
	case config.FetcherResty:
		base = restyfetcher.New(restyfetcher.Config{
			UserAgent: cfg.Fetcher.UserAgent,
			Timeout:   cfg.FetchTimeout(),
			Retries:   cfg.Fetcher.MaxRetries,
		})
	default:
		base = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Fetcher.UserAgent,
			Timeout:   cfg.FetchTimeout(),
			Retries:   cfg.Fetcher.MaxRetries,
		})
	}
	a.logger.Info("fetcher initialized",
		zap.String("kind", cfg.Fetcher.Kind),
		zap.String("user_agent", cfg.Fetcher.UserAgent),
		zap.Int("max_retries", cfg.Fetcher.MaxRetries),
	)

	if cfg.Headless.Promote && cfg.Fetcher.Kind != config.FetcherHeadless {
		var renderer crawler.Fetcher
		browser, err := a.newBrowser()
		if err != nil {
			a.logger.Warn("headless renderer unavailable, promotion disabled", zap.Error(err))
			renderer = headlessfetcher.NewNoop()
		} else {
			renderer = browser
		}
		base = headlessfetcher.NewPromoting(
			base,
			renderer,
			detector.NewHeuristic(cfg.Headless.PromotionThreshold),
			a.logger.Named("promote"),
		)
	}

	if cfg.Fetcher.RequestsPerSecond > 0 {
		a.logger.Info("rate limiter enabled",
			zap.Float64("requests_per_second", cfg.Fetcher.RequestsPerSecond),
			zap.Int("burst", cfg.Fetcher.Burst),
		)
		return ratelimit.Wrap(base, ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.Fetcher.RequestsPerSecond,
			Burst:             cfg.Fetcher.Burst,
		})), nil
	}
	return base, nil
}

func (a *App) newBrowser() (*headlessfetcher.Fetcher, error) {
	browser, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.cfg.Fetcher.UserAgent,
		NavigationTimeout: a.cfg.NavTimeout(),
		ReadySelector:     a.cfg.Headless.ReadySelector,
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	a.onClose("chromedp", browser.Close)
	a.logger.Info("headless fetcher initialized", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
	return browser, nil
}
