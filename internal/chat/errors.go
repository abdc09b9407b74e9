package chat

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/genai"
)

// ErrorKind categorizes a failed model call.
type ErrorKind int

const (
	// KindUnavailable covers transport failures, provider outages, quota
	// exhaustion and credential problems: the call could not be served.
	KindUnavailable ErrorKind = iota
	// KindMalformed means the provider answered but the answer is unusable.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a classified model-call failure. Err holds the provider error for
// logs; callers should branch on Kind only.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyError maps a GenerateContent error to an *Error.
func classifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr
	}

	if apiErr, ok := asAPIError(err); ok {
		return classifyAPIError(apiErr, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUnavailable, Message: "request canceled or timed out", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Kind: KindUnavailable, Message: "network error", Err: err}
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "unmarshal") ||
		strings.Contains(errLower, "invalid character") ||
		strings.Contains(errLower, "unexpected end of json"):
		return &Error{Kind: KindMalformed, Message: "invalid response from Gemini API", Err: err}
	default:
		return &Error{Kind: KindUnavailable, Message: "Gemini API call failed", Err: err}
	}
}

// asAPIError unwraps a genai.APIError whether it was returned by value or by
// pointer.
func asAPIError(err error) (genai.APIError, bool) {
	var byValue genai.APIError
	if errors.As(err, &byValue) {
		return byValue, true
	}
	var byPointer *genai.APIError
	if errors.As(err, &byPointer) && byPointer != nil {
		return *byPointer, true
	}
	return genai.APIError{}, false
}

// classifyAPIError categorizes a Google API error by HTTP status.
func classifyAPIError(apiErr genai.APIError, err error) *Error {
	switch {
	case apiErr.Code == 400 || apiErr.Code == 404 || apiErr.Code == 422:
		return &Error{Kind: KindMalformed, Code: apiErr.Code, Message: "request rejected by Gemini API", Err: err}
	case apiErr.Code == 401 || apiErr.Code == 403:
		return &Error{Kind: KindUnavailable, Code: apiErr.Code, Message: "Gemini API credential rejected", Err: err}
	case apiErr.Code == 429:
		return &Error{Kind: KindUnavailable, Code: apiErr.Code, Message: "Gemini API quota exceeded", Err: err}
	case apiErr.Code >= 500:
		return &Error{Kind: KindUnavailable, Code: apiErr.Code, Message: "Gemini API server error", Err: err}
	default:
		return &Error{Kind: KindUnavailable, Code: apiErr.Code, Message: "Gemini API error", Err: err}
	}
}
