package rules

import "time"

// Operator represents a comparison operator used in targeting conditions.
type Operator string

// Supported targeting operators (string values for clean JSON serialization).
const (
	OpEq          Operator = "eq"
	OpNeq         Operator = "neq"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpRegex       Operator = "regex"
	OpSemverEq    Operator = "semver_eq"
	OpSemverGt    Operator = "semver_gt"
	OpSemverGte   Operator = "semver_gte"
	OpSemverLt    Operator = "semver_lt"
	OpSemverLte   Operator = "semver_lte"
)

// SegmentAttribute is the reserved condition attribute that marks a
// segment reference. A condition {attribute:"segment", operator:"in",
// value:<segment id>} is expanded into the referenced segment's
// conditions at evaluation time.
const SegmentAttribute = "segment"

// Condition represents a single targeting predicate.
// When multiple conditions belong to one Rule, they are evaluated with
// AND semantics: all conditions must match for the rule to apply.
type Condition struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value"`
}

// Rule represents an ordered targeting rule. Rule order on the flag is
// significant: the first enabled rule whose every condition matches
// determines the outcome.
type Rule struct {
	ID                string      `json:"id"`
	Enabled           bool        `json:"enabled"`
	Conditions        []Condition `json:"conditions"`
	RolloutPercentage int         `json:"rolloutPercentage"`
	Variation         string      `json:"variation,omitempty"`
}

// Segment is a named, reusable list of conditions referenced indirectly
// by rules via SegmentAttribute conditions.
type Segment struct {
	ID         string      `json:"id"`
	Conditions []Condition `json:"conditions"`
}

// Flag represents a feature flag with all its attributes.
type Flag struct {
	Key               string         `json:"key"`
	Description       string         `json:"description,omitempty"`
	Enabled           bool           `json:"enabled"`
	RolloutPercentage int            `json:"rolloutPercentage"`
	TargetUsers       []string       `json:"targetUsers,omitempty"`
	Rules             []Rule         `json:"rules,omitempty"`
	Variations        map[string]any `json:"variations,omitempty"`
	DefaultVariation  string         `json:"defaultVariation,omitempty"`
	Env               string         `json:"env"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// IsSegmentRef reports whether the condition is a segment reference.
func (c Condition) IsSegmentRef() bool {
	return c.Attribute == SegmentAttribute && c.Operator == OpIn
}

// ClampPercentage clamps a rollout percentage to the [0,100] range.
func ClampPercentage(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
