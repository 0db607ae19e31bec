package store

import (
	"context"
	"errors"

	"github.com/rollgate/rollgate-go/internal/rules"
)

// ErrNotFound is returned when a flag or segment does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for flag and segment persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// ListFlags retrieves all flags for the given environment.
	// Returns an empty slice if no flags are found.
	ListFlags(ctx context.Context, env string) ([]rules.Flag, error)

	// GetFlag retrieves a single flag by its key.
	// Returns ErrNotFound if the flag does not exist.
	GetFlag(ctx context.Context, key string) (*rules.Flag, error)

	// UpsertFlag creates or updates a flag keyed by flag.Key.
	UpsertFlag(ctx context.Context, flag rules.Flag) error

	// DeleteFlag removes a flag by key and environment.
	// Idempotent: no error if the flag doesn't exist.
	DeleteFlag(ctx context.Context, key, env string) error

	// ListSegments retrieves all segments.
	ListSegments(ctx context.Context) ([]rules.Segment, error)

	// UpsertSegment creates or updates a segment keyed by segment.ID.
	UpsertSegment(ctx context.Context, segment rules.Segment) error

	// DeleteSegment removes a segment by id. Idempotent.
	DeleteSegment(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}
