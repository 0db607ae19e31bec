package store

import (
	"context"
	"errors"
	"testing"

	"github.com/rollgate/rollgate-go/internal/rules"
)

func TestMemoryStore_FlagLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	flag := rules.Flag{Key: "checkout_v2", Enabled: true, RolloutPercentage: 25, Env: "production"}
	if err := s.UpsertFlag(ctx, flag); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetFlag(ctx, "checkout_v2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RolloutPercentage != 25 || !got.Enabled {
		t.Errorf("got %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("upsert must stamp UpdatedAt")
	}

	// Upsert overwrites in place.
	flag.RolloutPercentage = 75
	if err := s.UpsertFlag(ctx, flag); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _ = s.GetFlag(ctx, "checkout_v2")
	if got.RolloutPercentage != 75 {
		t.Errorf("rollout after update = %d", got.RolloutPercentage)
	}

	flags, err := s.ListFlags(ctx, "production")
	if err != nil || len(flags) != 1 {
		t.Fatalf("list: %v, %d flags", err, len(flags))
	}
	if flags, _ := s.ListFlags(ctx, "staging"); len(flags) != 0 {
		t.Error("list must filter by environment")
	}

	if err := s.DeleteFlag(ctx, "checkout_v2", "production"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetFlag(ctx, "checkout_v2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting again is fine.
	if err := s.DeleteFlag(ctx, "checkout_v2", "production"); err != nil {
		t.Errorf("delete must be idempotent: %v", err)
	}
}

func TestMemoryStore_DeleteChecksEnv(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.UpsertFlag(ctx, rules.Flag{Key: "k", Env: "production"})

	if err := s.DeleteFlag(ctx, "k", "staging"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetFlag(ctx, "k"); err != nil {
		t.Error("delete with wrong env must not remove the flag")
	}
}

func TestMemoryStore_Segments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	seg := rules.Segment{
		ID:         "beta-testers",
		Conditions: []rules.Condition{{Attribute: "plan", Operator: rules.OpEq, Value: "beta"}},
	}
	if err := s.UpsertSegment(ctx, seg); err != nil {
		t.Fatalf("upsert segment: %v", err)
	}

	segments, err := s.ListSegments(ctx)
	if err != nil || len(segments) != 1 {
		t.Fatalf("list segments: %v, %d", err, len(segments))
	}
	if segments[0].ID != "beta-testers" {
		t.Errorf("segment id = %q", segments[0].ID)
	}

	if err := s.DeleteSegment(ctx, "beta-testers"); err != nil {
		t.Fatalf("delete segment: %v", err)
	}
	if segments, _ := s.ListSegments(ctx); len(segments) != 0 {
		t.Error("segment not deleted")
	}
}

func TestNewStore_UnsupportedType(t *testing.T) {
	if _, err := NewStore(context.Background(), "cassandra", ""); err == nil {
		t.Fatal("expected error for unsupported store type")
	}
}

func TestNewStore_Memory(t *testing.T) {
	s, err := NewStore(context.Background(), "memory", "")
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", s)
	}
}
