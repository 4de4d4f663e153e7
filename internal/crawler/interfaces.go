package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. Implementations
// must release any connection they open before returning.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// AddressFunc turns an entry into the URL that is fetched for it.
type AddressFunc func(id EntryID) string

// BlockRecorder persists a record of each fetched block.
type BlockRecorder interface {
	RecordBlock(ctx context.Context, runID string, block Block) error
}

// ObjectStore keeps finished dumps. PutObject returns a URI for the object.
// OpenObject returns ErrObjectNotFound for unknown paths.
type ObjectStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	OpenObject(ctx context.Context, path string) (io.ReadCloser, error)
}

// RunStore persists run snapshots for the control API.
type RunStore interface {
	CreateRun(ctx context.Context, run RunRecord) error
	UpdateRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Publisher pushes run completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests of fetched content.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
