package analysis

import (
	"errors"
	"fmt"

	"github.com/fpang/screen-audit/internal/chat"
)

// Kind is the closed set of failure categories visible at the HTTP boundary.
type Kind int

const (
	// KindValidation means the image was rejected before any model call.
	KindValidation Kind = iota
	// KindUpstreamUnavailable means the model could not be reached or refused
	// to serve the request.
	KindUpstreamUnavailable
	// KindUpstreamMalformed means the model answered with something unusable.
	KindUpstreamMalformed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindUpstreamMalformed:
		return "upstream_malformed_response"
	default:
		return "unknown"
	}
}

// Step identifies which stage of the analysis failed.
type Step string

const (
	StepValidate Step = "validate"
	StepDescribe Step = "describe"
	StepReport   Step = "report"
)

// Error is returned by ProduceReport. Err keeps the underlying cause for
// logging and errors.Is/As; callers branch on Kind.
type Error struct {
	Kind Kind
	Step Step
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis %s failed (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, and false when err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Kind, true
	}
	return 0, false
}

func validationError(err error) *Error {
	return &Error{Kind: KindValidation, Step: StepValidate, Err: err}
}

// upstreamError maps a model client failure onto the boundary kinds.
func upstreamError(step Step, err error) *Error {
	var chatErr *chat.Error
	if errors.As(err, &chatErr) && chatErr.Kind == chat.KindMalformed {
		return &Error{Kind: KindUpstreamMalformed, Step: step, Err: err}
	}
	return &Error{Kind: KindUpstreamUnavailable, Step: step, Err: err}
}
