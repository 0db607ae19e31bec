package engine

// ReasonKind categorizes why an evaluation produced its value.
type ReasonKind string

const (
	ReasonOff         ReasonKind = "OFF"
	ReasonTargetMatch ReasonKind = "TARGET_MATCH"
	ReasonRuleMatch   ReasonKind = "RULE_MATCH"
	ReasonFallthrough ReasonKind = "FALLTHROUGH"
	ReasonError       ReasonKind = "ERROR"
	ReasonUnknown     ReasonKind = "UNKNOWN"
)

// ErrorKind narrows a ReasonError to a specific failure class.
type ErrorKind string

const (
	ErrorFlagNotFound     ErrorKind = "FLAG_NOT_FOUND"
	ErrorMalformedFlag    ErrorKind = "MALFORMED_FLAG"
	ErrorUserNotSpecified ErrorKind = "USER_NOT_SPECIFIED"
	ErrorClientNotReady   ErrorKind = "CLIENT_NOT_READY"
	ErrorException        ErrorKind = "EXCEPTION"
)

// UserContext carries the identity and attributes a flag is evaluated against.
// The ID is always exposed to conditions as the implicit "id" attribute.
type UserContext struct {
	ID         string         `json:"id"`
	Email      string         `json:"email,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Reason explains why a flag evaluated to a particular value. The JSON field
// set is shared with every SDK, so the shape must stay stable.
type Reason struct {
	Kind      ReasonKind `json:"kind"`
	RuleID    string     `json:"ruleId,omitempty"`
	RuleIndex int        `json:"ruleIndex,omitempty"`
	InRollout bool       `json:"inRollout,omitempty"`
	ErrorKind ErrorKind  `json:"errorKind,omitempty"`
}

// Result is the deterministic output of Evaluate.
type Result struct {
	Value     bool   `json:"value"`
	Variation string `json:"variation,omitempty"`
	Reason    Reason `json:"reason"`
}

func OffReason() Reason {
	return Reason{Kind: ReasonOff}
}

func TargetMatchReason() Reason {
	return Reason{Kind: ReasonTargetMatch}
}

func RuleMatchReason(ruleID string, ruleIndex int, inRollout bool) Reason {
	return Reason{Kind: ReasonRuleMatch, RuleID: ruleID, RuleIndex: ruleIndex, InRollout: inRollout}
}

func FallthroughReason(inRollout bool) Reason {
	return Reason{Kind: ReasonFallthrough, InRollout: inRollout}
}

func ErrorReason(kind ErrorKind) Reason {
	return Reason{Kind: ReasonError, ErrorKind: kind}
}

func UnknownReason() Reason {
	return Reason{Kind: ReasonUnknown}
}
