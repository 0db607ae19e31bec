package rollgate

// ReasonKind identifies why an evaluation produced its value.
type ReasonKind string

const (
	ReasonOff         ReasonKind = "OFF"
	ReasonTargetMatch ReasonKind = "TARGET_MATCH"
	ReasonRuleMatch   ReasonKind = "RULE_MATCH"
	ReasonFallthrough ReasonKind = "FALLTHROUGH"
	ReasonError       ReasonKind = "ERROR"
	ReasonUnknownKind ReasonKind = "UNKNOWN"
)

// EvaluationErrorKind identifies the failure behind an ERROR reason.
type EvaluationErrorKind string

const (
	EvalErrorFlagNotFound     EvaluationErrorKind = "FLAG_NOT_FOUND"
	EvalErrorMalformedFlag    EvaluationErrorKind = "MALFORMED_FLAG"
	EvalErrorUserNotSpecified EvaluationErrorKind = "USER_NOT_SPECIFIED"
	EvalErrorClientNotReady   EvaluationErrorKind = "CLIENT_NOT_READY"
	EvalErrorException        EvaluationErrorKind = "EXCEPTION"
)

// EvaluationReason describes how a flag value was determined. It mirrors
// the reason payload returned by the server when withReasons is requested.
type EvaluationReason struct {
	Kind      ReasonKind          `json:"kind"`
	RuleID    string              `json:"ruleId,omitempty"`
	RuleIndex *int                `json:"ruleIndex,omitempty"`
	InRollout *bool               `json:"inRollout,omitempty"`
	ErrorKind EvaluationErrorKind `json:"errorKind,omitempty"`
}

// BoolEvaluationDetail is a boolean flag value plus the reason behind it.
type BoolEvaluationDetail struct {
	Value  bool
	Reason EvaluationReason
}

func errorReason(kind EvaluationErrorKind) EvaluationReason {
	return EvaluationReason{Kind: ReasonError, ErrorKind: kind}
}

func unknownReason() EvaluationReason {
	return EvaluationReason{Kind: ReasonUnknownKind}
}
