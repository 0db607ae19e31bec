package rules

import (
	"errors"
	"testing"
)

func validFlag() Flag {
	return Flag{
		Key:               "checkout_v2",
		Enabled:           true,
		RolloutPercentage: 50,
		Rules: []Rule{
			{
				ID:      "beta-users",
				Enabled: true,
				Conditions: []Condition{
					{Attribute: "plan", Operator: OpEq, Value: "beta"},
				},
				RolloutPercentage: 100,
			},
		},
	}
}

func TestValidateFlag_OK(t *testing.T) {
	if err := ValidateFlag(validFlag()); err != nil {
		t.Fatalf("expected valid flag, got %v", err)
	}
}

func TestValidateFlag_Key(t *testing.T) {
	cases := []struct {
		key string
		ok  bool
	}{
		{"checkout_v2", true},
		{"a", true},
		{"A-b.c_9", true},
		{"", false},
		{"-leading-dash", false},
		{".leading-dot", false},
		{"has space", false},
		{"has/slash", false},
	}
	for _, tc := range cases {
		f := validFlag()
		f.Key = tc.key
		err := ValidateFlag(f)
		if tc.ok && err != nil {
			t.Errorf("key %q: unexpected error %v", tc.key, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: expected ErrInvalidKey, got %v", tc.key, err)
		}
	}
}

func TestValidateFlag_KeyTooLong(t *testing.T) {
	f := validFlag()
	for len(f.Key) <= 128 {
		f.Key += "x"
	}
	if !errors.Is(ValidateFlag(f), ErrInvalidKey) {
		t.Error("expected ErrInvalidKey for key over 128 chars")
	}
}

func TestValidateFlag_Rollout(t *testing.T) {
	f := validFlag()
	f.RolloutPercentage = 101
	if !errors.Is(ValidateFlag(f), ErrInvalidRollout) {
		t.Error("expected ErrInvalidRollout for 101")
	}
	f.RolloutPercentage = -1
	if !errors.Is(ValidateFlag(f), ErrInvalidRollout) {
		t.Error("expected ErrInvalidRollout for -1")
	}
}

func TestValidateFlag_RuleRollout(t *testing.T) {
	f := validFlag()
	f.Rules[0].RolloutPercentage = 200
	if !errors.Is(ValidateFlag(f), ErrInvalidRollout) {
		t.Error("expected ErrInvalidRollout for rule rollout 200")
	}
}

func TestValidateFlag_DuplicateRuleID(t *testing.T) {
	f := validFlag()
	f.Rules = append(f.Rules, f.Rules[0])
	if !errors.Is(ValidateFlag(f), ErrDuplicateRuleID) {
		t.Error("expected ErrDuplicateRuleID")
	}
}

func TestValidateFlag_UnknownOperator(t *testing.T) {
	f := validFlag()
	f.Rules[0].Conditions[0].Operator = "matches_vibe"
	if !errors.Is(ValidateFlag(f), ErrInvalidOperator) {
		t.Error("expected ErrInvalidOperator")
	}
}

func TestValidateFlag_EmptyAttribute(t *testing.T) {
	f := validFlag()
	f.Rules[0].Conditions[0].Attribute = ""
	if !errors.Is(ValidateFlag(f), ErrInvalidCondition) {
		t.Error("expected ErrInvalidCondition for empty attribute")
	}
}

func TestValidateFlag_BadRegex(t *testing.T) {
	f := validFlag()
	f.Rules[0].Conditions[0] = Condition{Attribute: "email", Operator: OpRegex, Value: "([unclosed"}
	if !errors.Is(ValidateFlag(f), ErrInvalidCondition) {
		t.Error("expected ErrInvalidCondition for bad regex")
	}
}

func TestValidateFlag_UnknownVariation(t *testing.T) {
	f := validFlag()
	f.Variations = map[string]any{"on": true, "off": false}
	f.DefaultVariation = "missing"
	if !errors.Is(ValidateFlag(f), ErrUnknownVariation) {
		t.Error("expected ErrUnknownVariation for default variation")
	}

	f = validFlag()
	f.Variations = map[string]any{"on": true}
	f.Rules[0].Variation = "nope"
	if !errors.Is(ValidateFlag(f), ErrUnknownVariation) {
		t.Error("expected ErrUnknownVariation for rule variation")
	}
}

func TestValidateSegment(t *testing.T) {
	s := Segment{
		ID: "beta-testers",
		Conditions: []Condition{
			{Attribute: "plan", Operator: OpIn, Value: []any{"beta", "alpha"}},
		},
	}
	if err := ValidateSegment(s); err != nil {
		t.Fatalf("expected valid segment, got %v", err)
	}

	s.Conditions = append(s.Conditions, Condition{Attribute: SegmentAttribute, Operator: OpIn, Value: "other"})
	if !errors.Is(ValidateSegment(s), ErrInvalidSegment) {
		t.Error("expected ErrInvalidSegment for nested segment reference")
	}

	if !errors.Is(ValidateSegment(Segment{ID: ""}), ErrInvalidSegment) {
		t.Error("expected ErrInvalidSegment for empty id")
	}
}

func TestClampPercentage(t *testing.T) {
	if got := ClampPercentage(-5); got != 0 {
		t.Errorf("ClampPercentage(-5) = %d", got)
	}
	if got := ClampPercentage(150); got != 100 {
		t.Errorf("ClampPercentage(150) = %d", got)
	}
	if got := ClampPercentage(42); got != 42 {
		t.Errorf("ClampPercentage(42) = %d", got)
	}
}

func TestIsSegmentRef(t *testing.T) {
	c := Condition{Attribute: SegmentAttribute, Operator: OpIn, Value: "beta-testers"}
	if !c.IsSegmentRef() {
		t.Error("expected segment reference")
	}
	c.Attribute = "plan"
	if c.IsSegmentRef() {
		t.Error("plan attribute must not be a segment reference")
	}
}
