package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/rollgate/rollgate-go/internal/rules"
)

// Snapshot is an immutable view of every flag and segment at one point in
// time. Handlers evaluate against a snapshot so a concurrent admin write can
// never produce a torn read.
type Snapshot struct {
	ETag      string                       `json:"etag"`
	Flags     map[string]rules.Flag        `json:"flags"`
	Segments  map[string][]rules.Condition `json:"segments,omitempty"`
	UpdatedAt time.Time                    `json:"updatedAt"`
}

// SegmentConditions implements engine.SegmentSource.
func (s *Snapshot) SegmentConditions(id string) ([]rules.Condition, bool) {
	conds, ok := s.Segments[id]
	return conds, ok
}

// Build assembles a snapshot and computes its ETag from the canonical JSON of
// the flag and segment sets. Equal content always produces an equal ETag, so
// clients can use If-None-Match across server restarts.
func Build(flags []rules.Flag, segments []rules.Segment) *Snapshot {
	flagMap := make(map[string]rules.Flag, len(flags))
	for _, f := range flags {
		flagMap[f.Key] = f
	}
	segMap := make(map[string][]rules.Condition, len(segments))
	for _, s := range segments {
		segMap[s.ID] = s.Conditions
	}

	return &Snapshot{
		ETag:      computeETag(flagMap, segMap),
		Flags:     flagMap,
		Segments:  segMap,
		UpdatedAt: time.Now().UTC(),
	}
}

func computeETag(flags map[string]rules.Flag, segments map[string][]rules.Condition) string {
	digest := xxhash.New()

	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		blob, _ := json.Marshal(flags[k])
		_, _ = digest.WriteString(k)
		_, _ = digest.Write(blob)
	}

	segIDs := make([]string, 0, len(segments))
	for id := range segments {
		segIDs = append(segIDs, id)
	}
	sort.Strings(segIDs)
	for _, id := range segIDs {
		blob, _ := json.Marshal(segments[id])
		_, _ = digest.WriteString(id)
		_, _ = digest.Write(blob)
	}

	sum := digest.Sum(nil)
	return `W/"` + hex.EncodeToString(sum) + `"`
}

// Holder publishes the current snapshot to readers and change notifications
// to subscribers.
type Holder struct {
	current atomic.Pointer[Snapshot]
	hub     hub
}

func NewHolder() *Holder {
	h := &Holder{}
	h.current.Store(Build(nil, nil))
	return h
}

// Load returns the current snapshot. Never nil.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Update swaps in a new snapshot and notifies subscribers with the set of
// flag keys whose definition changed. No-op when the ETag is unchanged.
func (h *Holder) Update(s *Snapshot) {
	prev := h.current.Swap(s)
	if prev != nil && prev.ETag == s.ETag {
		return
	}
	h.hub.publish(Change{ETag: s.ETag, Keys: diffKeys(prev, s)})
}

func diffKeys(prev, next *Snapshot) []string {
	if prev == nil {
		keys := make([]string, 0, len(next.Flags))
		for k := range next.Flags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}

	var keys []string
	for k, f := range next.Flags {
		old, ok := prev.Flags[k]
		if !ok || !flagsEqual(old, f) {
			keys = append(keys, k)
		}
	}
	for k := range prev.Flags {
		if _, ok := next.Flags[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func flagsEqual(a, b rules.Flag) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}
