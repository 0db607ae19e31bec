package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/rollgate/rollgate-go/internal/rules"
)

// OperatorHandler evaluates one condition operator against a user attribute.
type OperatorHandler interface {
	Check(userValue, ruleValue any) bool
}

var (
	operatorHandlers = map[rules.Operator]OperatorHandler{
		rules.OpEq:          eqHandler{},
		rules.OpNeq:         neqHandler{},
		rules.OpContains:    containsHandler{negate: false},
		rules.OpNotContains: containsHandler{negate: true},
		rules.OpStartsWith:  startsWithHandler{},
		rules.OpEndsWith:    endsWithHandler{},
		rules.OpGt:          numericCompareHandler{cmp: func(a, b float64) bool { return a > b }},
		rules.OpGte:         numericCompareHandler{cmp: func(a, b float64) bool { return a >= b }},
		rules.OpLt:          numericCompareHandler{cmp: func(a, b float64) bool { return a < b }},
		rules.OpLte:         numericCompareHandler{cmp: func(a, b float64) bool { return a <= b }},
		rules.OpIn:          inHandler{},
		rules.OpNotIn:       notInHandler{},
		rules.OpRegex:       regexHandler{},
		rules.OpSemverEq:    semverCompareHandler{cmp: func(c int) bool { return c == 0 }},
		rules.OpSemverGt:    semverCompareHandler{cmp: func(c int) bool { return c > 0 }},
		rules.OpSemverGte:   semverCompareHandler{cmp: func(c int) bool { return c >= 0 }},
		rules.OpSemverLt:    semverCompareHandler{cmp: func(c int) bool { return c < 0 }},
		rules.OpSemverLte:   semverCompareHandler{cmp: func(c int) bool { return c <= 0 }},
	}
	// regexCache keeps compiled regex by pattern for the hot evaluation path.
	// Expected value type is *regexp.Regexp.
	regexCache sync.Map
)

func getOperatorHandler(op rules.Operator) (OperatorHandler, bool) {
	h, ok := operatorHandlers[op]
	return h, ok
}

type eqHandler struct{}

func (eqHandler) Check(userValue, ruleValue any) bool {
	return stringify(userValue) == stringify(ruleValue)
}

type neqHandler struct{}

func (neqHandler) Check(userValue, ruleValue any) bool {
	return stringify(userValue) != stringify(ruleValue)
}

type containsHandler struct {
	negate bool
}

func (h containsHandler) Check(userValue, ruleValue any) bool {
	contains := strings.Contains(stringify(userValue), stringify(ruleValue))
	return contains != h.negate
}

type startsWithHandler struct{}

func (startsWithHandler) Check(userValue, ruleValue any) bool {
	return strings.HasPrefix(stringify(userValue), stringify(ruleValue))
}

type endsWithHandler struct{}

func (endsWithHandler) Check(userValue, ruleValue any) bool {
	return strings.HasSuffix(stringify(userValue), stringify(ruleValue))
}

type numericCompareHandler struct {
	cmp func(a, b float64) bool
}

func (h numericCompareHandler) Check(userValue, ruleValue any) bool {
	return h.cmp(toFloat64(userValue), toFloat64(ruleValue))
}

type inHandler struct{}

func (inHandler) Check(userValue, ruleValue any) bool {
	user := stringify(userValue)
	for _, item := range toAnySlice(ruleValue) {
		if user == stringify(item) {
			return true
		}
	}
	return false
}

type notInHandler struct{}

func (notInHandler) Check(userValue, ruleValue any) bool {
	return !inHandler{}.Check(userValue, ruleValue)
}

type regexHandler struct{}

func (regexHandler) Check(userValue, ruleValue any) bool {
	rx, ok := getCompiledRegex(stringify(ruleValue))
	if !ok {
		return false
	}
	return rx.MatchString(stringify(userValue))
}

type semverCompareHandler struct {
	cmp func(c int) bool
}

func (h semverCompareHandler) Check(userValue, ruleValue any) bool {
	return h.cmp(compareSemver(stringify(userValue), stringify(ruleValue)))
}

func getCompiledRegex(pattern string) (*regexp.Regexp, bool) {
	if cached, ok := regexCache.Load(pattern); ok {
		rx, ok := cached.(*regexp.Regexp)
		return rx, ok
	}

	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	regexCache.Store(pattern, rx)
	return rx, true
}

// stringify is the canonical comparison form for eq/neq, substring and
// membership operators. Every SDK stringifies the same way, so attribute
// values of mixed types still compare predictably.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// toFloat64 coerces a value for numeric comparison. Anything that does not
// parse as a number compares as zero rather than failing the condition.
func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		f, _ := strconv.ParseFloat(stringify(v), 64)
		return f
	}
}

func toAnySlice(v any) []any {
	switch values := v.(type) {
	case []any:
		return values
	case []string:
		result := make([]any, len(values))
		for i, s := range values {
			result[i] = s
		}
		return result
	default:
		return nil
	}
}

// compareSemver orders two version strings by major.minor.patch, dropping any
// pre-release or build suffix. Unparseable versions compare as 0.0.0.
func compareSemver(a, b string) int {
	av := semverParts(a)
	bv := semverParts(b)
	for i := 0; i < 3; i++ {
		if av[i] < bv[i] {
			return -1
		}
		if av[i] > bv[i] {
			return 1
		}
	}
	return 0
}

func semverParts(s string) [3]uint64 {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return [3]uint64{}
	}
	return [3]uint64{v.Major(), v.Minor(), v.Patch()}
}
