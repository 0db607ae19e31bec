package engine

import (
	"reflect"
	"testing"

	"github.com/rollgate/rollgate-go/internal/rollout"
	"github.com/rollgate/rollgate-go/internal/rules"
)

func TestOperatorHandlers(t *testing.T) {
	tests := []struct {
		name      string
		op        rules.Operator
		userValue any
		ruleValue any
		want      bool
	}{
		{name: "eq string true", op: rules.OpEq, userValue: "premium", ruleValue: "premium", want: true},
		{name: "eq string false", op: rules.OpEq, userValue: "premium", ruleValue: "free", want: false},
		{name: "eq stringified number", op: rules.OpEq, userValue: 42, ruleValue: "42", want: true},
		{name: "neq true", op: rules.OpNeq, userValue: "premium", ruleValue: "free", want: true},
		{name: "contains true", op: rules.OpContains, userValue: "premium_plan", ruleValue: "premium", want: true},
		{name: "not_contains true", op: rules.OpNotContains, userValue: "basic_plan", ruleValue: "premium", want: true},
		{name: "starts_with true", op: rules.OpStartsWith, userValue: "premium_plan", ruleValue: "premium", want: true},
		{name: "ends_with true", op: rules.OpEndsWith, userValue: "premium_plan", ruleValue: "plan", want: true},
		{name: "regex true", op: rules.OpRegex, userValue: "user@example.com", ruleValue: `^[^@]+@example\.com$`, want: true},
		{name: "regex invalid pattern", op: rules.OpRegex, userValue: "abc", ruleValue: "(", want: false},
		{name: "gt int vs float", op: rules.OpGt, userValue: 10, ruleValue: 9.5, want: true},
		{name: "gt numeric string", op: rules.OpGt, userValue: "10", ruleValue: 9, want: true},
		{name: "gt non-numeric is zero", op: rules.OpGt, userValue: "abc", ruleValue: -1, want: true},
		{name: "gte equal", op: rules.OpGte, userValue: 10, ruleValue: 10, want: true},
		{name: "lt true", op: rules.OpLt, userValue: 3, ruleValue: 5, want: true},
		{name: "lte equal", op: rules.OpLte, userValue: 10.0, ruleValue: 10, want: true},
		{name: "in []string", op: rules.OpIn, userValue: "US", ruleValue: []string{"US", "CA"}, want: true},
		{name: "in []any mixed types", op: rules.OpIn, userValue: 5, ruleValue: []any{"5", "6"}, want: true},
		{name: "in scalar value false", op: rules.OpIn, userValue: "US", ruleValue: "US", want: false},
		{name: "not_in true", op: rules.OpNotIn, userValue: "UK", ruleValue: []any{"US", "CA"}, want: true},
		{name: "not_in scalar value true", op: rules.OpNotIn, userValue: "US", ruleValue: "US", want: true},
		{name: "semver_eq drops prerelease", op: rules.OpSemverEq, userValue: "1.0.0-beta", ruleValue: "1.0.0", want: true},
		{name: "semver_gt true", op: rules.OpSemverGt, userValue: "1.2.0", ruleValue: "1.1.9", want: true},
		{name: "semver_gte short version", op: rules.OpSemverGte, userValue: "2.1", ruleValue: "2.1.0", want: true},
		{name: "semver_lt v prefix", op: rules.OpSemverLt, userValue: "v1.9.0", ruleValue: "1.10.0", want: true},
		{name: "semver_lte true", op: rules.OpSemverLte, userValue: "1.0.0", ruleValue: "1.0.0", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, ok := getOperatorHandler(tt.op)
			if !ok {
				t.Fatalf("handler not found for %q", tt.op)
			}
			if got := handler.Check(tt.userValue, tt.ruleValue); got != tt.want {
				t.Fatalf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_DisabledBeatsTargeting(t *testing.T) {
	flag := &rules.Flag{
		Key:         "checkout_v2",
		Enabled:     false,
		TargetUsers: []string{"user-123"},
	}

	got := Evaluate(flag, &UserContext{ID: "user-123"}, NoSegments)
	if got.Value {
		t.Error("disabled flag must evaluate to false")
	}
	if got.Reason.Kind != ReasonOff {
		t.Errorf("reason = %q, want OFF", got.Reason.Kind)
	}
}

func TestEvaluate_TargetMatch(t *testing.T) {
	flag := &rules.Flag{
		Key:               "checkout_v2",
		Enabled:           true,
		RolloutPercentage: 0,
		TargetUsers:       []string{"vip-1", "vip-2"},
	}

	got := Evaluate(flag, &UserContext{ID: "vip-2"}, NoSegments)
	if !got.Value || got.Reason.Kind != ReasonTargetMatch {
		t.Fatalf("got %+v, want TARGET_MATCH with value true", got)
	}

	// Target membership wins over a 0% rollout but not over other users.
	got = Evaluate(flag, &UserContext{ID: "someone-else"}, NoSegments)
	if got.Value || got.Reason.Kind != ReasonFallthrough {
		t.Fatalf("got %+v, want FALLTHROUGH with value false", got)
	}
}

func TestEvaluate_RuleMatch(t *testing.T) {
	flag := &rules.Flag{
		Key:               "checkout_v2",
		Enabled:           true,
		RolloutPercentage: 0,
		Rules: []rules.Rule{
			{
				ID:      "disabled-rule",
				Enabled: false,
				Conditions: []rules.Condition{
					{Attribute: "plan", Operator: rules.OpEq, Value: "beta"},
				},
				RolloutPercentage: 100,
			},
			{
				ID:      "beta-rule",
				Enabled: true,
				Conditions: []rules.Condition{
					{Attribute: "plan", Operator: rules.OpEq, Value: "beta"},
					{Attribute: "country", Operator: rules.OpIn, Value: []any{"US", "CA"}},
				},
				RolloutPercentage: 100,
				Variation:         "treatment",
			},
		},
	}

	user := &UserContext{ID: "user-1", Attributes: map[string]any{"plan": "beta", "country": "US"}}
	got := Evaluate(flag, user, NoSegments)
	if !got.Value {
		t.Fatal("expected rule match to enroll user at 100%")
	}
	want := RuleMatchReason("beta-rule", 1, true)
	if got.Reason != want {
		t.Errorf("reason = %+v, want %+v", got.Reason, want)
	}
	if got.Variation != "treatment" {
		t.Errorf("variation = %q, want treatment", got.Variation)
	}

	// Disabled rules are skipped entirely, even when their conditions match.
	if got.Reason.RuleID == "disabled-rule" {
		t.Error("disabled rule must not match")
	}
}

func TestEvaluate_MissingAttributeFailsCondition(t *testing.T) {
	flag := &rules.Flag{
		Key:               "checkout_v2",
		Enabled:           true,
		RolloutPercentage: 0,
		Rules: []rules.Rule{
			{
				ID:      "needs-plan",
				Enabled: true,
				Conditions: []rules.Condition{
					{Attribute: "plan", Operator: rules.OpEq, Value: "beta"},
				},
				RolloutPercentage: 100,
			},
		},
	}

	got := Evaluate(flag, &UserContext{ID: "user-1"}, NoSegments)
	if got.Value || got.Reason.Kind != ReasonFallthrough {
		t.Fatalf("missing attribute must fail the rule, got %+v", got)
	}
}

func TestEvaluate_RuleRolloutExcludesUser(t *testing.T) {
	flag := &rules.Flag{
		Key:               "checkout_v2",
		Enabled:           true,
		RolloutPercentage: 100,
		Rules: []rules.Rule{
			{
				ID:      "zero-rollout",
				Enabled: true,
				Conditions: []rules.Condition{
					{Attribute: "plan", Operator: rules.OpEq, Value: "beta"},
				},
				RolloutPercentage: 0,
			},
		},
	}

	// The matched rule decides with its own percentage; the flag's global
	// 100% does not rescue a user excluded by the rule.
	user := &UserContext{ID: "user-1", Attributes: map[string]any{"plan": "beta"}}
	got := Evaluate(flag, user, NoSegments)
	if got.Value {
		t.Error("rule's 0% rollout must exclude the user")
	}
	want := RuleMatchReason("zero-rollout", 0, false)
	if got.Reason != want {
		t.Errorf("reason = %+v, want %+v", got.Reason, want)
	}
}

func TestEvaluate_FallthroughMatchesHash(t *testing.T) {
	flag := &rules.Flag{Key: "checkout_v2", Enabled: true, RolloutPercentage: 40}
	user := &UserContext{ID: "user-77"}

	got := Evaluate(flag, user, NoSegments)
	wantIn := rollout.InRollout(user.ID, flag.Key, 40)
	if got.Value != wantIn || got.Reason.Kind != ReasonFallthrough || got.Reason.InRollout != wantIn {
		t.Fatalf("got %+v, want FALLTHROUGH with inRollout=%v", got, wantIn)
	}
}

func TestEvaluate_ImplicitIDAttribute(t *testing.T) {
	flag := &rules.Flag{
		Key:               "internal_tools",
		Enabled:           true,
		RolloutPercentage: 0,
		Rules: []rules.Rule{
			{
				ID:      "by-id",
				Enabled: true,
				Conditions: []rules.Condition{
					{Attribute: "id", Operator: rules.OpStartsWith, Value: "emp-"},
				},
				RolloutPercentage: 100,
			},
		},
	}

	got := Evaluate(flag, &UserContext{ID: "emp-42"}, NoSegments)
	if !got.Value || got.Reason.Kind != ReasonRuleMatch {
		t.Fatalf("user id must be matchable as the implicit id attribute, got %+v", got)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	flag := &rules.Flag{
		Key:               "checkout_v2",
		Enabled:           true,
		RolloutPercentage: 50,
		Rules: []rules.Rule{
			{
				ID:      "beta",
				Enabled: true,
				Conditions: []rules.Condition{
					{Attribute: "plan", Operator: rules.OpEq, Value: "beta"},
				},
				RolloutPercentage: 30,
			},
		},
	}
	user := &UserContext{ID: "user-9", Attributes: map[string]any{"plan": "beta"}}

	first := Evaluate(flag, user, NoSegments)
	for i := 0; i < 10; i++ {
		if got := Evaluate(flag, user, NoSegments); !reflect.DeepEqual(got, first) {
			t.Fatalf("evaluation not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestEvaluate_NilFlagAndNilUser(t *testing.T) {
	got := Evaluate(nil, &UserContext{ID: "u"}, NoSegments)
	if got.Value || got.Reason.Kind != ReasonError || got.Reason.ErrorKind != ErrorFlagNotFound {
		t.Fatalf("nil flag: got %+v", got)
	}

	// A nil user falls through with the anonymous rollout rule: never
	// enrolled below 100%.
	flag := &rules.Flag{Key: "k", Enabled: true, RolloutPercentage: 99}
	got = Evaluate(flag, nil, NoSegments)
	if got.Value {
		t.Error("anonymous user must not be enrolled at 99%")
	}
	flag.RolloutPercentage = 100
	if got = Evaluate(flag, nil, NoSegments); !got.Value {
		t.Error("100% rollout must include anonymous users")
	}
}

func TestTypedValue(t *testing.T) {
	flag := &rules.Flag{
		Key:               "pricing_page",
		Enabled:           true,
		RolloutPercentage: 100,
		Variations: map[string]any{
			"control":   map[string]any{"layout": "old"},
			"treatment": map[string]any{"layout": "new"},
		},
		DefaultVariation: "control",
	}

	enrolled := Result{Value: true, Reason: FallthroughReason(true)}
	if got := TypedValue(flag, enrolled); !reflect.DeepEqual(got, flag.Variations["control"]) {
		t.Errorf("default variation payload = %v", got)
	}

	ruleMatched := Result{Value: true, Variation: "treatment", Reason: RuleMatchReason("r", 0, true)}
	if got := TypedValue(flag, ruleMatched); !reflect.DeepEqual(got, flag.Variations["treatment"]) {
		t.Errorf("rule variation payload = %v", got)
	}

	excluded := Result{Value: false, Reason: FallthroughReason(false)}
	if got := TypedValue(flag, excluded); got != false {
		t.Errorf("excluded user payload = %v, want false", got)
	}

	bare := &rules.Flag{Key: "plain", Enabled: true}
	if got := TypedValue(bare, enrolled); got != true {
		t.Errorf("flag without variations = %v, want true", got)
	}
}
