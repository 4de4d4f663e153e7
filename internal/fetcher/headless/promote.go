package headless

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/metrics"
)

// Detector decides whether a probe response must be rendered in a browser.
type Detector interface {
	ShouldPromote(resp crawler.FetchResponse) bool
}

// Promoting fetches with a cheap probe first and re-fetches through the
// browser when the detector flags the probe result. A failed promotion falls
// back to the probe response.
type Promoting struct {
	probe    crawler.Fetcher
	renderer crawler.Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewPromoting wires a probe fetcher to a renderer.
func NewPromoting(probe, renderer crawler.Fetcher, detector Detector, logger *zap.Logger) *Promoting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoting{
		probe:    probe,
		renderer: renderer,
		detector: detector,
		logger:   logger.Named("headless"),
	}
}

// Fetch implements crawler.Fetcher.
func (p *Promoting) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	resp, err := p.probe.Fetch(ctx, request)
	if err != nil {
		return resp, err
	}
	if p.renderer == nil || p.detector == nil || !p.detector.ShouldPromote(resp) {
		return resp, nil
	}

	rendered, err := p.renderer.Fetch(ctx, request)
	if err != nil {
		metrics.ObserveHeadlessPromotion("failed")
		p.logger.Warn("headless promotion failed",
			zap.Uint32("entry_id", uint32(request.EntryID)),
			zap.String("url", request.URL),
			zap.Error(err),
		)
		return resp, nil
	}
	metrics.ObserveHeadlessPromotion("rendered")
	rendered.UsedHeadless = true
	rendered.Duration += resp.Duration
	return rendered, nil
}
