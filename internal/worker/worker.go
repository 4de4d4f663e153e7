// Package worker runs one fetch batch on a background goroutine.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/progress"
	"github.com/JakeFAU/wowhead-parser/internal/telemetry"
)

const defaultFetchTimeout = 30 * time.Second

// Config controls Worker behavior.
type Config struct {
	// RunID labels logs, progress events and recorded blocks.
	RunID string
	// Parser is the display name of the parser the run feeds. Informational.
	Parser string
	// FetchTimeout bounds every single fetch.
	FetchTimeout time.Duration
}

// Progress is delivered once per completed target, in target order.
type Progress struct {
	Index int
	Total int
	Block crawler.Block
}

// Completion is the terminal report of a run. Blocks is owned by the receiver.
type Completion struct {
	RunID      string
	State      crawler.RunState
	Blocks     []crawler.Block
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed counts blocks whose fetch did not succeed.
func (c Completion) Failed() int {
	n := 0
	for _, b := range c.Blocks {
		if !b.FetchSucceeded {
			n++
		}
	}
	return n
}

// Worker fetches every entry of a TargetSet in order. A Worker runs at most once.
type Worker struct {
	fetcher  crawler.Fetcher
	address  crawler.AddressFunc
	targets  crawler.TargetSet
	clock    crawler.Clock
	recorder crawler.BlockRecorder
	emitter  progress.Emitter
	cfg      Config
	logger   *zap.Logger

	state    atomic.Int32
	stopping atomic.Bool
	done     atomic.Int64

	progressCh chan Progress
	doneCh     chan Completion

	startOnce sync.Once
}

// Option customizes a Worker.
type Option func(*Worker)

// WithRecorder stores every block after it is fetched. Recording failures are
// logged and never end a run.
func WithRecorder(r crawler.BlockRecorder) Option {
	return func(w *Worker) {
		w.recorder = r
	}
}

// WithEmitter forwards run telemetry to a progress hub.
func WithEmitter(e progress.Emitter) Option {
	return func(w *Worker) {
		if e != nil {
			w.emitter = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// New constructs an idle Worker.
func New(
	fetcher crawler.Fetcher,
	address crawler.AddressFunc,
	targets crawler.TargetSet,
	clock crawler.Clock,
	cfg Config,
	opts ...Option,
) *Worker {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	w := &Worker{
		fetcher:    fetcher,
		address:    address,
		targets:    targets,
		clock:      clock,
		cfg:        cfg,
		emitter:    progress.Nop{},
		logger:     zap.NewNop(),
		progressCh: make(chan Progress, 1),
		doneCh:     make(chan Completion, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("worker").With(zap.String("run_id", cfg.RunID))
	return w
}

// Total is the number of targets in the run.
func (w *Worker) Total() int {
	return w.targets.Len()
}

// Done is the number of targets completed so far.
func (w *Worker) Done() int {
	return int(w.done.Load())
}

// State returns the current lifecycle state.
func (w *Worker) State() crawler.RunState {
	return crawler.RunState(w.state.Load())
}

// Progress yields one notification per completed target. The channel is
// closed before the Completion is delivered. Callers must drain it.
func (w *Worker) Progress() <-chan Progress {
	return w.progressCh
}

// Completion receives exactly one Completion and is then closed.
func (w *Worker) Completion() <-chan Completion {
	return w.doneCh
}

// Start launches the run and returns immediately. Cancelling ctx acts like
// Stop and also interrupts the fetch in flight.
func (w *Worker) Start(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(crawler.StateIdle), int32(crawler.StateRunning)) {
		return fmt.Errorf("%w: state %s", crawler.ErrAlreadyStarted, w.State())
	}
	w.startOnce.Do(func() {
		go w.run(ctx)
	})
	return nil
}

// Stop requests cooperative termination. The fetch in flight finishes and is
// kept; no further target is started. Stop on a worker that is not running is
// a no-op, and repeated calls are harmless.
func (w *Worker) Stop() {
	if w.State() != crawler.StateRunning {
		return
	}
	if w.stopping.CompareAndSwap(false, true) {
		w.logger.Info("stop requested", zap.Int("done", w.Done()), zap.Int("total", w.Total()))
	}
}

func (w *Worker) run(ctx context.Context) {
	total := w.targets.Len()
	startedAt := w.clock.Now()
	blocks := make([]crawler.Block, 0, total)

	ctx, span := telemetry.Tracer().Start(ctx, "worker.run", trace.WithAttributes(
		attribute.String("run_id", w.cfg.RunID),
		attribute.String("parser", w.cfg.Parser),
		attribute.String("mode", w.targets.Mode().String()),
		attribute.Int("total", total),
	))

	w.logger.Info("run started", zap.Stringer("mode", w.targets.Mode()), zap.Int("total", total))
	w.emit(progress.Event{Stage: progress.StageRunStart, Total: total})

	aborted := false
	for i := 0; i < total; i++ {
		if w.stopping.Load() || ctx.Err() != nil {
			aborted = true
			break
		}
		block := w.fetch(ctx, w.targets.At(i))
		blocks = append(blocks, block)
		w.record(ctx, block)
		w.done.Add(1)
		select {
		case w.progressCh <- Progress{Index: i, Total: total, Block: block}:
		case <-ctx.Done():
		}
	}

	state := crawler.StateCompleted
	stage := progress.StageRunDone
	if aborted {
		state = crawler.StateAborted
		stage = progress.StageRunAborted
	}
	finishedAt := w.clock.Now()
	completion := Completion{
		RunID:      w.cfg.RunID,
		State:      state,
		Blocks:     blocks,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	failed := completion.Failed()
	span.SetAttributes(
		attribute.String("state", state.String()),
		attribute.Int("fetched", len(blocks)),
		attribute.Int("failed", failed),
	)
	w.emit(progress.Event{
		Stage:   stage,
		Total:   total,
		Fetched: len(blocks),
		Failed:  failed,
		Dur:     finishedAt.Sub(startedAt),
	})
	w.logger.Info("run finished",
		zap.Stringer("state", state),
		zap.Int("fetched", len(blocks)),
		zap.Int("failed", failed),
		zap.Int("total", total),
	)

	span.End()

	w.state.Store(int32(state))
	close(w.progressCh)
	w.doneCh <- completion
	close(w.doneCh)
}

func (w *Worker) fetch(ctx context.Context, id crawler.EntryID) crawler.Block {
	url := w.address(id)
	block := crawler.Block{ID: id, URL: url}

	ctx, span := telemetry.Tracer().Start(ctx, "worker.fetch", trace.WithAttributes(
		attribute.Int64("entry_id", int64(id)),
		attribute.String("url", url),
	))
	defer span.End()

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	began := w.clock.Now()
	resp, err := w.fetcher.Fetch(fetchCtx, crawler.FetchRequest{
		RunID:   w.cfg.RunID,
		EntryID: id,
		URL:     url,
	})
	block.FetchedAt = w.clock.Now()
	block.Duration = resp.Duration
	if block.Duration <= 0 {
		block.Duration = block.FetchedAt.Sub(began)
	}
	block.StatusCode = resp.StatusCode
	span.SetAttributes(attribute.Int("status_code", resp.StatusCode))

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		w.logger.Warn("entry fetch failed", zap.Uint32("entry_id", uint32(id)), zap.String("url", url), zap.Error(err))
	case !resp.OK():
		span.SetStatus(codes.Error, "non-success status")
		w.logger.Warn("entry fetch returned non-success status",
			zap.Uint32("entry_id", uint32(id)),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
	default:
		block.Content = resp.Body
		block.FetchSucceeded = true
	}

	w.emit(progress.Event{
		Stage:       progress.StageFetchDone,
		Entry:       id,
		URL:         url,
		OK:          block.FetchSucceeded,
		StatusClass: progress.ClassifyStatus(block.StatusCode),
		Bytes:       int64(len(block.Content)),
		Dur:         block.Duration,
	})
	return block
}

func (w *Worker) record(ctx context.Context, block crawler.Block) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.RecordBlock(ctx, w.cfg.RunID, block); err != nil {
		w.logger.Warn("record block failed", zap.Uint32("entry_id", uint32(block.ID)), zap.Error(err))
	}
}

func (w *Worker) emit(evt progress.Event) {
	evt.RunID = w.cfg.RunID
	evt.Parser = w.cfg.Parser
	evt.TS = w.clock.Now()
	w.emitter.Emit(evt)
}
