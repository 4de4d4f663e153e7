package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageFetchDone  Stage = "FETCH_DONE"
	StageRunDone    Stage = "RUN_DONE"
	StageRunAborted Stage = "RUN_ABORTED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Status classes tracked for fetch completions. StatusError marks fetches
// that never produced a response.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusError StatusClass = "error"
	StatusOther StatusClass = "other"
)

// Event captures one milestone of a run.
type Event struct {
	RunID  string
	TS     time.Time
	Stage  Stage
	Parser string
	// Entry and URL are set on fetch events.
	Entry crawler.EntryID
	URL   string
	// OK reports whether the fetch produced a usable block.
	OK          bool
	StatusClass StatusClass
	Bytes       int64
	// Dur is the fetch latency, or the run wall time on RUN_DONE/RUN_ABORTED.
	Dur time.Duration
	// Total is the target count on run events.
	Total int
	// Fetched and Failed summarize the run on RUN_DONE/RUN_ABORTED.
	Fetched int
	Failed  int
	Note    string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunAborted:
	case StageFetchDone:
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for fetch events. A zero code means
// the request failed before a response arrived.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code == 0:
		return StatusError
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
