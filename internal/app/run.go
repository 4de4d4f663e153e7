package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/dump"
	"github.com/JakeFAU/wowhead-parser/internal/entrylist"
	"github.com/JakeFAU/wowhead-parser/internal/metrics"
	"github.com/JakeFAU/wowhead-parser/internal/parser"
	"github.com/JakeFAU/wowhead-parser/internal/worker"
)

const finishTimeout = 2 * time.Minute

// Run is a prepared run: a parser, an idle Worker and its stored snapshot.
type Run struct {
	ID      string
	Request Request
	Parser  parser.Parser
	Worker  *worker.Worker

	record crawler.RunRecord

	mu      sync.Mutex
	started bool
	stopped bool
}

// Stop asks the run to end after the fetch in flight. Unlike Worker.Stop it
// is not lost when it arrives before the worker has started: the request is
// kept and applied as soon as Drive starts the worker.
func (r *Run) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.started {
		r.Worker.Stop()
	}
}

func (r *Run) start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.Worker.Start(ctx); err != nil {
		return err
	}
	r.started = true
	if r.stopped {
		r.Worker.Stop()
	}
	return nil
}

// Record returns the latest snapshot known to the driver of the run.
func (r *Run) Record() crawler.RunRecord {
	return r.record
}

// Prepare resolves the parser and the target set of req and builds an idle
// Worker. Request errors (see IsRequestError) surface here, before anything
// is fetched.
func (s *Service) Prepare(ctx context.Context, req Request) (*Run, error) {
	p, err := s.deps.Registry.New(req.Parser)
	if err != nil {
		return nil, err
	}
	targets, err := s.targets(req)
	if err != nil {
		return nil, err
	}
	id, err := s.deps.IDs.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	opts := []worker.Option{
		worker.WithEmitter(s.deps.Emitter),
		worker.WithLogger(s.deps.Logger),
	}
	if s.deps.Recorder != nil {
		opts = append(opts, worker.WithRecorder(s.deps.Recorder))
	}
	w := worker.New(
		s.deps.Fetcher,
		parser.EntryAddress(p, req.Locale),
		targets,
		s.deps.Clock,
		worker.Config{RunID: id, Parser: req.Parser, FetchTimeout: s.cfg.FetchTimeout},
		opts...,
	)

	run := &Run{
		ID:      id,
		Request: req,
		Parser:  p,
		Worker:  w,
		record: crawler.RunRecord{
			ID:        id,
			Parser:    req.Parser,
			Locale:    req.Locale,
			Mode:      targets.Mode(),
			State:     crawler.StateIdle,
			Total:     targets.Len(),
			CreatedAt: s.deps.Clock.Now(),
		},
	}
	if err := s.deps.Runs.CreateRun(ctx, run.record); err != nil {
		return nil, fmt.Errorf("store run: %w", err)
	}
	s.logger.Info("run prepared",
		zap.String("run_id", id),
		zap.String("parser", req.Parser),
		zap.Stringer("mode", targets.Mode()),
		zap.Int("total", targets.Len()),
	)
	return run, nil
}

func (s *Service) targets(req Request) (crawler.TargetSet, error) {
	switch req.Mode {
	case crawler.ModeSingle:
		return crawler.SingleTarget(req.Value)
	case crawler.ModeList:
		list, err := s.loadList(req.ListFile)
		if err != nil {
			return crawler.TargetSet{}, err
		}
		return crawler.ListTarget(list.IDs())
	case crawler.ModeRange:
		return crawler.RangeTarget(crawler.EntryID(req.Start), crawler.EntryID(req.End))
	default:
		return crawler.TargetSet{}, fmt.Errorf("%w: %d", crawler.ErrInvalidMode, int(req.Mode))
	}
}

func (s *Service) loadList(name string) (*entrylist.List, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: no list file given", ErrListUnavailable)
	}
	resolved := entrylist.Resolve(s.cfg.EntryListDir, name)
	if !s.cfg.AllowExternalLists && !within(s.cfg.EntryListDir, resolved) {
		return nil, fmt.Errorf("%w: %s is outside the entry list directory", ErrListUnavailable, name)
	}
	list, err := entrylist.Load(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListUnavailable, err)
	}
	return list, nil
}

func within(dir, target string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absTarget)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Drive starts the worker, forwards every progress notification to
// onProgress (which may be nil) and finishes the run once the worker
// completes. Cancelling ctx aborts the run; the partial dump is still stored.
func (s *Service) Drive(ctx context.Context, run *Run, onProgress func(worker.Progress)) (crawler.RunRecord, error) {
	started := s.deps.Clock.Now()
	if err := run.start(ctx); err != nil {
		run.record.State = crawler.StateAborted
		run.record.Error = err.Error()
		run.record.FinishedAt = &started
		s.save(context.WithoutCancel(ctx), run.record)
		return run.record, fmt.Errorf("start run %s: %w", run.ID, err)
	}
	run.record.State = crawler.StateRunning
	run.record.StartedAt = &started
	s.save(ctx, run.record)

	lastSave := started
	for p := range run.Worker.Progress() {
		run.record.Done = p.Index + 1
		if !p.Block.FetchSucceeded {
			run.record.Failed++
		}
		if now := s.deps.Clock.Now(); now.Sub(lastSave) >= s.cfg.SaveInterval {
			s.save(ctx, run.record)
			lastSave = now
		}
		if onProgress != nil {
			onProgress(p)
		}
	}
	completion := <-run.Worker.Completion()

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	return s.Finish(finishCtx, run, completion)
}

// Finish writes the dump of a completed or aborted run to the object store,
// records dump metrics, publishes a RunEvent and saves the final snapshot.
// Only a failure to store the dump is returned; publish and snapshot
// failures are logged.
func (s *Service) Finish(ctx context.Context, run *Run, completion worker.Completion) (crawler.RunRecord, error) {
	rec := run.record
	finished := completion.FinishedAt
	rec.State = completion.State
	rec.Done = len(completion.Blocks)
	rec.Failed = completion.Failed()
	rec.FinishedAt = &finished

	objectPath := DumpPath(s.cfg.OutputPrefix, run.Request.Parser, run.ID)
	uri, stats, err := s.storeDump(ctx, objectPath, run.Parser, completion)
	if err != nil {
		rec.Error = err.Error()
		s.logger.Error("store dump failed", zap.String("run_id", run.ID), zap.Error(err))
	} else {
		rec.OutputURI = uri
		rec.OutputPath = objectPath
		metrics.ObserveDump(run.Request.Parser, completion.State.String(), stats.Fragments, stats.Bytes)
		s.logger.Info("dump stored",
			zap.String("run_id", run.ID),
			zap.String("uri", uri),
			zap.Int("fragments", stats.Fragments),
			zap.Int("empty", stats.Empty),
			zap.Int64("bytes", stats.Bytes),
		)
	}
	run.record = rec

	s.publish(ctx, rec)
	s.save(ctx, rec)
	if err != nil {
		return rec, fmt.Errorf("store dump: %w", err)
	}
	return rec, nil
}

func (s *Service) storeDump(
	ctx context.Context,
	objectPath string,
	p parser.Parser,
	completion worker.Completion,
) (string, dump.Stats, error) {
	pr, pw := io.Pipe()
	statsCh := make(chan dump.Stats, 1)
	go func() {
		stats, err := dump.Write(pw, p, completion.Blocks, completion.StartedAt, completion.FinishedAt)
		pw.CloseWithError(err)
		statsCh <- stats
	}()

	uri, err := s.deps.Objects.PutObject(ctx, objectPath, s.cfg.ContentType, pr)
	// Unblocks the writer when the store gave up early.
	pr.CloseWithError(err)
	stats := <-statsCh
	if err != nil {
		return "", stats, err
	}
	return uri, stats, nil
}

func (s *Service) publish(ctx context.Context, rec crawler.RunRecord) {
	if s.deps.Publisher == nil {
		return
	}
	event := RunEvent{
		RunID:  rec.ID,
		Parser: rec.Parser,
		Mode:   rec.Mode,
		State:  rec.State,
		Total:  rec.Total,
		Failed: rec.Failed,
		URI:    rec.OutputURI,
	}
	if _, err := s.deps.Publisher.Publish(ctx, s.cfg.Topic, event); err != nil {
		s.logger.Warn("publish run event failed", zap.String("run_id", rec.ID), zap.Error(err))
	}
}

func (s *Service) save(ctx context.Context, rec crawler.RunRecord) {
	if err := s.deps.Runs.UpdateRun(ctx, rec); err != nil {
		s.logger.Warn("update run snapshot failed", zap.String("run_id", rec.ID), zap.Error(err))
	}
}

// Launch prepares req and drives the run in the background. The returned
// snapshot is the idle run as stored.
func (s *Service) Launch(ctx context.Context, req Request) (crawler.RunRecord, error) {
	run, err := s.Prepare(ctx, req)
	if err != nil {
		return crawler.RunRecord{}, err
	}
	queued := run.Record()
	err = s.dispatch.Go(run.ID, run, func() {
		if _, err := s.Drive(s.ctx, run, nil); err != nil {
			s.logger.Warn("background run ended with error", zap.String("run_id", run.ID), zap.Error(err))
		}
	})
	if err != nil {
		return crawler.RunRecord{}, fmt.Errorf("dispatch run: %w", err)
	}
	return queued, nil
}

// Stop requests a cooperative stop of a background run. Stopping a finished
// run is a no-op.
func (s *Service) Stop(ctx context.Context, id string) error {
	if s.dispatch.Stop(id) {
		s.logger.Info("stop requested", zap.String("run_id", id))
		return nil
	}
	if _, err := s.deps.Runs.GetRun(ctx, id); err != nil {
		return err
	}
	return nil
}

// Get returns the stored snapshot of a run.
func (s *Service) Get(ctx context.Context, id string) (crawler.RunRecord, error) {
	rec, err := s.deps.Runs.GetRun(ctx, id)
	if err != nil {
		return crawler.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	return rec, nil
}

// List returns the newest run snapshots.
func (s *Service) List(ctx context.Context, limit int) ([]crawler.RunRecord, error) {
	runs, err := s.deps.Runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// OpenDump streams the dump of a finished run.
func (s *Service) OpenDump(ctx context.Context, id string) (io.ReadCloser, crawler.RunRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, crawler.RunRecord{}, err
	}
	if !rec.State.Terminal() {
		return nil, rec, fmt.Errorf("%w: %s is %s", ErrRunNotFinished, id, rec.State)
	}
	if rec.OutputPath == "" {
		return nil, rec, fmt.Errorf("%w: %s", ErrNoDump, id)
	}
	rc, err := s.deps.Objects.OpenObject(ctx, rec.OutputPath)
	if err != nil {
		if errors.Is(err, crawler.ErrObjectNotFound) {
			return nil, rec, fmt.Errorf("%w: %v", ErrNoDump, err)
		}
		return nil, rec, fmt.Errorf("open dump: %w", err)
	}
	return rc, rec, nil
}

// DumpPath names the stored dump of a run: <prefix>/<parser-slug>-<run_id>.sql.
func DumpPath(prefix, parserName, runID string) string {
	name := Slug(parserName) + "-" + runID + ".sql"
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Slug lowercases name and collapses every run of other characters than
// letters and digits into a single dash.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "dump"
	}
	return out
}
