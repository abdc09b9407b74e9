package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/screen-audit/internal/metrics"
)

// ValidationError is a failed API key check.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeInvalidKey means the key is invalid, revoked or lacks access.
	ErrTypeInvalidKey ValidationErrorType = iota
	// ErrTypeNetworkError means Gemini could not be reached or failed.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded means the key is valid but out of quota.
	ErrTypeQuotaExceeded
	ErrTypeUnknown
)

func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TextGenerator is the part of chat.Model the key check needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ValidateAPIKey sends a one-word prompt through model and classifies any
// failure. It returns nil when the key works.
func ValidateAPIKey(ctx context.Context, model TextGenerator) error {
	start := time.Now()
	_, err := model.GenerateText(ctx, "hi")
	elapsed := time.Since(start)

	result := "success"
	var valErr *ValidationError
	if err != nil {
		valErr = classifyError(err)
		result = valErr.Type.String()
		log.Error().Err(err).Str("result", result).Msg("API key validation failed")
	}

	if metrics.InLambda() {
		metrics.New(metrics.Namespace).
			Dimension("Result", result).
			Duration("ApiKeyValidationMs", elapsed).
			Count("ApiKeyValidationResult").
			Flush()
	}

	if valErr != nil {
		return valErr
	}
	log.Info().Dur("duration", elapsed).Msg("API key validated")
	return nil
}

// messageRule classifies errors that carry no API status code.
type messageRule struct {
	typ     ValidationErrorType
	message string
	needles []string
}

var messageRules = []messageRule{
	{ErrTypeInvalidKey, "API key is invalid or has been revoked",
		[]string{"api key not valid", "invalid api key", "api_key_invalid", "permission denied"}},
	{ErrTypeQuotaExceeded, "API quota exceeded or rate limited",
		[]string{"quota", "resource exhausted", "rate limit"}},
	{ErrTypeNetworkError, "network error, check your connection",
		[]string{"connection", "network", "timeout", "deadline exceeded", "dial", "no such host", "unreachable"}},
}

func classifyError(err error) *ValidationError {
	if code, ok := apiErrorCode(err); ok {
		return classifyStatus(code, err)
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		for _, needle := range rule.needles {
			if strings.Contains(msg, needle) {
				return &ValidationError{Type: rule.typ, Message: rule.message, Err: err}
			}
		}
	}
	return &ValidationError{Type: ErrTypeUnknown, Message: "failed to validate API key", Err: err}
}

// apiErrorCode digs the HTTP status out of a genai.APIError anywhere in the
// chain. The SDK returns it by value, older releases by pointer.
func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}

func classifyStatus(code int, err error) *ValidationError {
	switch {
	case code == 400 || code == 401 || code == 403:
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid, expired, or lacks permissions", Err: err}
	case code == 429:
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API rate limit exceeded, try again later", Err: err}
	case code >= 500:
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Gemini API server error, try again later", Err: err}
	default:
		return &ValidationError{Type: ErrTypeUnknown, Message: "Gemini API error", Err: err}
	}
}
