package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

// RunStore keeps run snapshots in memory.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]crawler.RunRecord
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]crawler.RunRecord)}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run crawler.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("%w: %s", crawler.ErrRunExists, run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// UpdateRun replaces the snapshot of an existing run.
func (s *RunStore) UpdateRun(_ context.Context, run crawler.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("%w: %s", crawler.ErrRunNotFound, run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (crawler.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return crawler.RunRecord{}, fmt.Errorf("%w: %s", crawler.ErrRunNotFound, id)
	}
	return cloneRun(run), nil
}

// ListRuns returns the newest runs first. A non-positive limit returns all.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]crawler.RunRecord, error) {
	s.mu.RLock()
	out := make([]crawler.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, cloneRun(run))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneRun(run crawler.RunRecord) crawler.RunRecord {
	if run.StartedAt != nil {
		ts := *run.StartedAt
		run.StartedAt = &ts
	}
	if run.FinishedAt != nil {
		ts := *run.FinishedAt
		run.FinishedAt = &ts
	}
	return run
}
