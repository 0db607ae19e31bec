package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rollgate/rollgate-go/internal/rules"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Suitable for development, testing, or single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	flags    map[string]rules.Flag
	segments map[string]rules.Segment
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flags:    make(map[string]rules.Flag),
		segments: make(map[string]rules.Segment),
	}
}

// ListFlags retrieves all flags for the given environment.
func (m *MemoryStore) ListFlags(ctx context.Context, env string) ([]rules.Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]rules.Flag, 0, len(m.flags))
	for _, flag := range m.flags {
		if flag.Env == env {
			result = append(result, flag)
		}
	}
	return result, nil
}

// GetFlag retrieves a single flag by its key.
func (m *MemoryStore) GetFlag(ctx context.Context, key string) (*rules.Flag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[key]
	if !exists {
		return nil, fmt.Errorf("flag %q: %w", key, ErrNotFound)
	}
	return &flag, nil
}

// UpsertFlag creates or updates a flag in memory.
func (m *MemoryStore) UpsertFlag(ctx context.Context, flag rules.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag.UpdatedAt = time.Now().UTC()
	m.flags[flag.Key] = flag
	return nil
}

// DeleteFlag removes a flag from memory.
func (m *MemoryStore) DeleteFlag(ctx context.Context, key, env string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[key]; exists && flag.Env == env {
		delete(m.flags, key)
	}
	return nil
}

// ListSegments retrieves all segments.
func (m *MemoryStore) ListSegments(ctx context.Context) ([]rules.Segment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]rules.Segment, 0, len(m.segments))
	for _, segment := range m.segments {
		result = append(result, segment)
	}
	return result, nil
}

// UpsertSegment creates or updates a segment in memory.
func (m *MemoryStore) UpsertSegment(ctx context.Context, segment rules.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.segments[segment.ID] = segment
	return nil
}

// DeleteSegment removes a segment from memory.
func (m *MemoryStore) DeleteSegment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.segments, id)
	return nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}
