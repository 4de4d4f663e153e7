// Package app holds the run service shared by the CLI and the HTTP API: it
// turns a run request into a Worker, drives it and stores the resulting dump.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
	"github.com/JakeFAU/wowhead-parser/internal/dispatcher"
	"github.com/JakeFAU/wowhead-parser/internal/entrylist"
	"github.com/JakeFAU/wowhead-parser/internal/parser"
	"github.com/JakeFAU/wowhead-parser/internal/progress"
)

// Service errors.
var (
	ErrListUnavailable = errors.New("entry list unavailable")
	ErrRunNotFinished  = errors.New("run has not finished")
	ErrNoDump          = errors.New("run has no stored dump")
)

const (
	defaultContentType  = "text/plain; charset=utf-8"
	defaultSaveInterval = time.Second
)

// Config carries the settings of a Service.
type Config struct {
	EntryListDir string
	EntryListExt string
	// AllowExternalLists lets list requests name files outside EntryListDir.
	AllowExternalLists bool
	OutputPrefix       string
	ContentType        string
	// Topic receives run completion events. Empty selects the publisher default.
	Topic        string
	FetchTimeout time.Duration
	// SaveInterval throttles run snapshot updates while a run progresses.
	SaveInterval time.Duration
}

// Deps are the collaborators of a Service. Recorder, Publisher and Emitter
// are optional.
type Deps struct {
	Registry  *parser.Registry
	Fetcher   crawler.Fetcher
	Clock     crawler.Clock
	IDs       crawler.IDGenerator
	Objects   crawler.ObjectStore
	Runs      crawler.RunStore
	Recorder  crawler.BlockRecorder
	Publisher crawler.Publisher
	Emitter   progress.Emitter
	Logger    *zap.Logger
}

// Request describes one run.
type Request struct {
	Parser   string       `json:"parser"`
	Locale   string       `json:"locale,omitempty"`
	Mode     crawler.Mode `json:"mode"`
	Value    int64        `json:"value,omitempty"`
	ListFile string       `json:"list_file,omitempty"`
	Start    uint32       `json:"start,omitempty"`
	End      uint32       `json:"end,omitempty"`
}

// RunEvent is published when a run ends.
type RunEvent struct {
	RunID  string           `json:"run_id"`
	Parser string           `json:"parser"`
	Mode   crawler.Mode     `json:"mode"`
	State  crawler.RunState `json:"state"`
	Total  int              `json:"total"`
	Failed int              `json:"failed"`
	URI    string           `json:"uri,omitempty"`
}

// Service prepares, drives and finishes runs.
type Service struct {
	cfg      Config
	deps     Deps
	logger   *zap.Logger
	dispatch *dispatcher.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
}

// New validates deps and returns a Service.
func New(cfg Config, deps Deps) (*Service, error) {
	switch {
	case deps.Registry == nil:
		return nil, fmt.Errorf("parser registry is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	case deps.Objects == nil:
		return nil, fmt.Errorf("object store is required")
	case deps.Runs == nil:
		return nil, fmt.Errorf("run store is required")
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.EntryListExt == "" {
		cfg.EntryListExt = entrylist.DefaultExtension
	}
	if cfg.ContentType == "" {
		cfg.ContentType = defaultContentType
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = defaultSaveInterval
	}
	cfg.OutputPrefix = strings.Trim(cfg.OutputPrefix, "/")
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.Named("service"),
		dispatch: dispatcher.New(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Parsers lists the registered parser names.
func (s *Service) Parsers() []string {
	return s.deps.Registry.Names()
}

// EntryLists lists WELF files found under the entry list directory.
func (s *Service) EntryLists() ([]string, error) {
	files, err := entrylist.Discover(s.cfg.EntryListDir, s.cfg.EntryListExt)
	if err != nil {
		return nil, fmt.Errorf("discover entry lists: %w", err)
	}
	return files, nil
}

// IsRequestError reports whether err was caused by the request rather than
// by the service.
func IsRequestError(err error) bool {
	for _, target := range []error{
		crawler.ErrInvalidSingle,
		crawler.ErrEmptyList,
		crawler.ErrInvalidRange,
		crawler.ErrDegenerateRange,
		crawler.ErrInvalidMode,
		crawler.ErrNoParser,
		crawler.ErrUnknownParser,
		ErrListUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Close stops background runs and waits for them to store their dumps. When
// ctx ends first the remaining fetches are cancelled.
func (s *Service) Close(ctx context.Context) error {
	err := s.dispatch.Close(ctx)
	s.cancel()
	if err != nil {
		return fmt.Errorf("close run service: %w", err)
	}
	return nil
}
