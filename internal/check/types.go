package check

import (
	"context"
	"time"
)

// Outcome classifies the result of one check invocation.
type Outcome string

const (
	// OutcomePass indicates the check succeeded.
	OutcomePass Outcome = "pass"

	// OutcomeFail indicates the check failed. Only failures block a suite.
	OutcomeFail Outcome = "fail"

	// OutcomeWarning indicates a non-blocking issue worth surfacing.
	OutcomeWarning Outcome = "warning"
)

// Severity indicates how serious a verdict is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Verdict is the immutable result of one check invocation.
// A re-run replaces the prior verdict; it is never edited in place.
type Verdict struct {
	// Outcome is the pass/fail/warning classification.
	Outcome Outcome `json:"outcome"`

	// Message is a human-readable summary of the result.
	Message string `json:"message"`

	// ErrorDetail carries the underlying error text on failure.
	ErrorDetail string `json:"error_detail,omitempty"`

	// SuspectedComponent names the component the check believes is at fault.
	SuspectedComponent string `json:"suspected_component,omitempty"`

	// SuggestedRemedy is a free-form hint for operators.
	SuggestedRemedy string `json:"suggested_remedy,omitempty"`

	// Severity tiers the verdict for reporting.
	Severity Severity `json:"severity"`

	// Timestamp is when the verdict was created.
	Timestamp time.Time `json:"timestamp"`
}

// Pass returns a passing verdict with the given message.
func Pass(message string) Verdict {
	return Verdict{
		Outcome:   OutcomePass,
		Message:   message,
		Severity:  SeverityInfo,
		Timestamp: time.Now(),
	}
}

// Warn returns a warning verdict. Warnings do not block the suite.
func Warn(message, remedy string) Verdict {
	return Verdict{
		Outcome:         OutcomeWarning,
		Message:         message,
		SuggestedRemedy: remedy,
		Severity:        SeverityWarning,
		Timestamp:       time.Now(),
	}
}

// Fail returns a failing verdict attributing the failure to a component.
func Fail(message, errorDetail, component string) Verdict {
	return Verdict{
		Outcome:            OutcomeFail,
		Message:            message,
		ErrorDetail:        errorDetail,
		SuspectedComponent: component,
		Severity:           SeverityError,
		Timestamp:          time.Now(),
	}
}

// Blocking reports whether the verdict counts as a suite failure.
// Pass and Warning both count as "did not block".
func (v Verdict) Blocking() bool {
	return v.Outcome == OutcomeFail
}

// Func is a named health check. Implementations must be safe to invoke
// multiple times: re-validation after a fix depends on it. There is no
// side channel for cancellation beyond the context.
type Func func(ctx context.Context) Verdict
