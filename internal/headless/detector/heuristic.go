// Package detector decides when a plainly fetched entry page is only a
// script shell and has to be rendered in a browser before it can be parsed.
package detector

import (
	"bytes"
	"strings"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

const defaultBodyLengthThreshold = 2048

// Heuristic promotes pages that are empty, script-heavy, carry a known
// client-rendering marker, or lack every expected content marker.
type Heuristic struct {
	BodyLengthThreshold int
	// ContentMarkers, when set, must appear at least once in a page that is
	// usable without rendering.
	ContentMarkers [][]byte
}

// NewHeuristic creates a new detector. Empty markers disable the content check.
func NewHeuristic(threshold int, contentMarkers ...string) *Heuristic {
	if threshold <= 0 {
		threshold = defaultBodyLengthThreshold
	}
	h := &Heuristic{BodyLengthThreshold: threshold}
	for _, m := range contentMarkers {
		if m = strings.TrimSpace(m); m != "" {
			h.ContentMarkers = append(h.ContentMarkers, []byte(strings.ToLower(m)))
		}
	}
	return h
}

var shellMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("<noscript>please enable javascript"),
}

// ShouldPromote decides whether a headless fetch is required. Only successful
// responses are considered.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	if !resp.OK() {
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range shellMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	if len(h.ContentMarkers) == 0 {
		return false
	}
	for _, marker := range h.ContentMarkers {
		if bytes.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			// unterminated
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	if scriptCoverage == 0 {
		return false
	}
	return scriptCoverage*100/total >= 25
}
