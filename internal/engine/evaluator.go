package engine

import (
	"strings"

	"github.com/rollgate/rollgate-go/internal/rollout"
	"github.com/rollgate/rollgate-go/internal/rules"
)

// Evaluate computes the deterministic outcome for a flag and user context.
//
// Precedence: a disabled flag is OFF before targeting is consulted; a target
// user match wins over rules; otherwise the first enabled rule whose every
// condition matches decides via its own rollout percentage; with no matching
// rule the flag's global percentage decides. Two evaluations with the same
// inputs always produce the same Result.
func Evaluate(flag *rules.Flag, user *UserContext, segments SegmentSource) Result {
	if flag == nil {
		return Result{Value: false, Reason: ErrorReason(ErrorFlagNotFound)}
	}

	if !flag.Enabled {
		return Result{Value: false, Reason: OffReason()}
	}

	userID := ""
	if user != nil {
		userID = user.ID
	}

	for _, target := range flag.TargetUsers {
		if target != "" && target == userID {
			return Result{Value: true, Reason: TargetMatchReason()}
		}
	}

	for i, rule := range flag.Rules {
		if !rule.Enabled {
			continue
		}
		if !matchesAllConditions(user, rule.Conditions, segments) {
			continue
		}
		inRollout := rollout.InRollout(userID, flag.Key, rules.ClampPercentage(rule.RolloutPercentage))
		return Result{
			Value:     inRollout,
			Variation: rule.Variation,
			Reason:    RuleMatchReason(rule.ID, i, inRollout),
		}
	}

	inRollout := rollout.InRollout(userID, flag.Key, rules.ClampPercentage(flag.RolloutPercentage))
	return Result{Value: inRollout, Reason: FallthroughReason(inRollout)}
}

// TypedValue resolves the variation payload for a result. A RULE_MATCH with a
// variation id selects that variation's value; an enrolled result without one
// selects the flag's default variation. When no variation applies, the boolean
// result stands in.
func TypedValue(flag *rules.Flag, result Result) any {
	if flag == nil || !result.Value {
		return result.Value
	}

	variation := flag.DefaultVariation
	if result.Variation != "" {
		variation = result.Variation
	}
	if val, ok := flag.Variations[variation]; ok {
		return val
	}
	return result.Value
}

func matchesAllConditions(user *UserContext, conditions []rules.Condition, segments SegmentSource) bool {
	for _, condition := range expandConditions(conditions, segments) {
		userValue, ok := getContextValue(user, condition.Attribute)
		if !ok {
			return false
		}
		handler, ok := getOperatorHandler(condition.Operator)
		if !ok || !handler.Check(userValue, condition.Value) {
			return false
		}
	}
	return true
}

func getContextValue(user *UserContext, attribute string) (any, bool) {
	if user == nil {
		return nil, false
	}

	switch strings.ToLower(attribute) {
	case "id", "user_id", "userid":
		if user.ID == "" {
			return nil, false
		}
		return user.ID, true
	case "email":
		if user.Email == "" {
			return nil, false
		}
		return user.Email, true
	}

	if user.Attributes == nil {
		return nil, false
	}
	v, ok := user.Attributes[attribute]
	return v, ok
}
