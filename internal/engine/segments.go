package engine

import (
	"github.com/rollgate/rollgate-go/internal/rules"
)

// SegmentSource resolves a segment id to its condition list.
type SegmentSource interface {
	SegmentConditions(id string) ([]rules.Condition, bool)
}

// NoSegments is a SegmentSource with no segments defined.
var NoSegments SegmentSource = emptySegments{}

type emptySegments struct{}

func (emptySegments) SegmentConditions(string) ([]rules.Condition, bool) { return nil, false }

// SegmentMap adapts a plain map of segment conditions to a SegmentSource.
type SegmentMap map[string][]rules.Condition

func (m SegmentMap) SegmentConditions(id string) ([]rules.Condition, bool) {
	conds, ok := m[id]
	return conds, ok
}

// expandConditions replaces segment references with the referenced segment's
// conditions. The value may be a single segment id or a list of ids. An
// unknown id expands to zero conditions, so the reference neither matches nor
// fails on its own.
func expandConditions(conditions []rules.Condition, segments SegmentSource) []rules.Condition {
	if segments == nil {
		segments = NoSegments
	}

	expanded := make([]rules.Condition, 0, len(conditions))
	for _, cond := range conditions {
		if !cond.IsSegmentRef() {
			expanded = append(expanded, cond)
			continue
		}

		if id, ok := cond.Value.(string); ok {
			if segConds, exists := segments.SegmentConditions(id); exists {
				expanded = append(expanded, segConds...)
			}
			continue
		}
		for _, raw := range toAnySlice(cond.Value) {
			id, ok := raw.(string)
			if !ok {
				continue
			}
			if segConds, exists := segments.SegmentConditions(id); exists {
				expanded = append(expanded, segConds...)
			}
		}
	}
	return expanded
}
