package rules

import (
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors returned by ValidateFlag and ValidateSegment.
var (
	ErrInvalidKey       = errors.New("invalid flag key")
	ErrInvalidOperator  = errors.New("invalid operator")
	ErrInvalidCondition = errors.New("invalid condition")
	ErrInvalidRollout   = errors.New("invalid rollout percentage")
	ErrDuplicateRuleID  = errors.New("duplicate rule id")
	ErrInvalidSegment   = errors.New("invalid segment")
	ErrUnknownVariation = errors.New("unknown variation")
)

// keyPattern restricts flag keys to a portable identifier charset so every
// SDK can use them verbatim in URLs and hash inputs.
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,127}$`)

// validOperators is the set of all recognised targeting operators.
var validOperators = map[Operator]struct{}{
	OpEq:          {},
	OpNeq:         {},
	OpContains:    {},
	OpNotContains: {},
	OpStartsWith:  {},
	OpEndsWith:    {},
	OpGt:          {},
	OpGte:         {},
	OpLt:          {},
	OpLte:         {},
	OpIn:          {},
	OpNotIn:       {},
	OpRegex:       {},
	OpSemverEq:    {},
	OpSemverGt:    {},
	OpSemverGte:   {},
	OpSemverLt:    {},
	OpSemverLte:   {},
}

// ValidateFlag performs strict validation of a flag definition.
// It is a pure function: it never mutates f and has no side effects.
func ValidateFlag(f Flag) error {
	if !keyPattern.MatchString(f.Key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, f.Key)
	}

	if f.RolloutPercentage < 0 || f.RolloutPercentage > 100 {
		return fmt.Errorf("%w: %d is outside 0..100", ErrInvalidRollout, f.RolloutPercentage)
	}

	seen := make(map[string]struct{}, len(f.Rules))
	for i, r := range f.Rules {
		if err := validateRule(i, r); err != nil {
			return err
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateRuleID, r.ID)
		}
		seen[r.ID] = struct{}{}

		if r.Variation != "" {
			if _, ok := f.Variations[r.Variation]; !ok {
				return fmt.Errorf("%w: rule[%d] references variation %q", ErrUnknownVariation, i, r.Variation)
			}
		}
	}

	if f.DefaultVariation != "" {
		if _, ok := f.Variations[f.DefaultVariation]; !ok {
			return fmt.Errorf("%w: default variation %q", ErrUnknownVariation, f.DefaultVariation)
		}
	}

	return nil
}

// ValidateSegment checks a segment definition. Segment conditions may not
// themselves be segment references; one level of indirection is the
// contract every SDK implements.
func ValidateSegment(s Segment) error {
	if s.ID == "" {
		return fmt.Errorf("%w: id must not be empty", ErrInvalidSegment)
	}
	if len(s.Conditions) == 0 {
		return fmt.Errorf("%w: segment %q must have at least one condition", ErrInvalidSegment, s.ID)
	}
	for i, c := range s.Conditions {
		if c.IsSegmentRef() {
			return fmt.Errorf("%w: segment %q condition[%d] is a nested segment reference", ErrInvalidSegment, s.ID, i)
		}
		if err := validateCondition(i, c); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(i int, r Rule) error {
	if r.ID == "" {
		return fmt.Errorf("%w: rule[%d] id must not be empty", ErrInvalidCondition, i)
	}
	if r.RolloutPercentage < 0 || r.RolloutPercentage > 100 {
		return fmt.Errorf("%w: rule[%d] rollout %d is outside 0..100", ErrInvalidRollout, i, r.RolloutPercentage)
	}
	for j, c := range r.Conditions {
		if err := validateCondition(j, c); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(i int, c Condition) error {
	if c.Attribute == "" {
		return fmt.Errorf("%w: condition[%d] attribute must not be empty", ErrInvalidCondition, i)
	}
	if _, ok := validOperators[c.Operator]; !ok {
		return fmt.Errorf("%w: condition[%d] operator %q is not supported", ErrInvalidOperator, i, c.Operator)
	}
	if c.Operator == OpRegex {
		pattern, ok := c.Value.(string)
		if !ok {
			return fmt.Errorf("%w: condition[%d] regex value must be a string", ErrInvalidCondition, i)
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w: condition[%d] regex does not compile: %v", ErrInvalidCondition, i, err)
		}
	}
	return nil
}
