package crawler

import (
	"fmt"
	"net/http"
	"time"
)

// EntryID identifies one remotely fetchable page.
type EntryID uint32

// Block is the fetched data for one entry. Blocks are values: a retry builds a
// new Block instead of editing an existing one.
type Block struct {
	ID             EntryID       `json:"id"`
	URL            string        `json:"url"`
	Content        []byte        `json:"-"`
	FetchSucceeded bool          `json:"fetch_succeeded"`
	StatusCode     int           `json:"status_code,omitempty"`
	FetchedAt      time.Time     `json:"fetched_at"`
	Duration       time.Duration `json:"duration"`
}

// Text returns the block content as a string. It is empty for failed fetches.
func (b Block) Text() string {
	if !b.FetchSucceeded {
		return ""
	}
	return string(b.Content)
}

// RunState is the lifecycle state of a Worker run.
type RunState int32

// Run states. A run only ever moves forward: Idle -> Running -> Completed|Aborted.
const (
	StateIdle RunState = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *RunState) UnmarshalText(text []byte) error {
	parsed, err := ParseRunState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseRunState maps a state name back to a RunState.
func ParseRunState(name string) (RunState, error) {
	for _, st := range []RunState{StateIdle, StateRunning, StateCompleted, StateAborted} {
		if st.String() == name {
			return st, nil
		}
	}
	return StateIdle, fmt.Errorf("unknown run state %q", name)
}

// Terminal reports whether the run has ended.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// FetchRequest captures everything needed to fetch one entry page.
type FetchRequest struct {
	RunID   string
	EntryID EntryID
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// OK reports whether the response carries a success status.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RunRecord is the stored snapshot of a run.
type RunRecord struct {
	ID         string     `json:"run_id"`
	Parser     string     `json:"parser"`
	Locale     string     `json:"locale,omitempty"`
	Mode       Mode       `json:"mode"`
	State      RunState   `json:"state"`
	Total      int        `json:"total"`
	Done       int        `json:"done"`
	Failed     int        `json:"failed"`
	OutputURI  string     `json:"output_uri,omitempty"`
	OutputPath string     `json:"-"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
