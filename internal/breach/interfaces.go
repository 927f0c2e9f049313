package breach

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound signals that the requested breach does not exist.
var ErrNotFound = errors.New("breach not found")

// Store persists breach rows and answers browse queries.
type Store interface {
	// ReplaceCategory atomically swaps every row of one category for rows.
	ReplaceCategory(ctx context.Context, archive bool, rows []Breach) (int64, error)
	List(ctx context.Context, filter Filter) ([]Breach, error)
	Get(ctx context.Context, id int64) (Breach, error)
	SummarizeStates(ctx context.Context, archive *bool) ([]StateSummary, error)
	Ping(ctx context.Context) error
	Close()
}

// BlobStore writes raw report snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes collection notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes report digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces collection run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
