package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/wowhead-parser/internal/progress"
)

// PrometheusSink turns run and fetch events into Prometheus collectors.
type PrometheusSink struct {
	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	runsActive   prometheus.Gauge
	runDuration  *prometheus.HistogramVec

	fetches       *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	active *runSet
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whparser_runs_started_total",
			Help: "Runs started per parser.",
		}, []string{"parser"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whparser_runs_finished_total",
			Help: "Runs finished per parser and terminal state.",
		}, []string{"parser", "state"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whparser_runs_active",
			Help: "Runs currently fetching.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "whparser_run_duration_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"state"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whparser_entry_fetches_total",
			Help: "Entry fetches per parser and status class.",
		}, []string{"parser", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whparser_entry_bytes_total",
			Help: "Entry page bytes downloaded per parser.",
		}, []string{"parser"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "whparser_entry_fetch_seconds",
			Help:    "Entry fetch latency per status class.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status_class"}),
		active: &runSet{ids: make(map[string]struct{})},
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsFinished,
		s.runsActive,
		s.runDuration,
		s.fetches,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		parser := evt.Parser
		if parser == "" {
			parser = "unknown"
		}
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.WithLabelValues(parser).Inc()
			if s.active.add(evt.RunID) {
				s.runsActive.Inc()
			}
		case progress.StageRunDone, progress.StageRunAborted:
			state := "completed"
			if evt.Stage == progress.StageRunAborted {
				state = "aborted"
			}
			s.runsFinished.WithLabelValues(parser, state).Inc()
			if evt.Dur > 0 {
				s.runDuration.WithLabelValues(state).Observe(evt.Dur.Seconds())
			}
			if s.active.remove(evt.RunID) {
				s.runsActive.Dec()
			}
		case progress.StageFetchDone:
			class := string(evt.StatusClass)
			s.fetches.WithLabelValues(parser, class).Inc()
			if evt.Bytes > 0 {
				s.fetchBytes.WithLabelValues(parser).Add(float64(evt.Bytes))
			}
			if evt.Dur > 0 {
				s.fetchDuration.WithLabelValues(class).Observe(evt.Dur.Seconds())
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func (r *runSet) add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

func (r *runSet) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; !ok {
		return false
	}
	delete(r.ids, id)
	return true
}
