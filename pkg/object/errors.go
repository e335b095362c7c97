package object

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/stoewer/go-strcase"

	"xispeech.dev/pkg/utils"
)

type ErrorKind string

const (
	ErrorKindRequest        ErrorKind = "RequestError"
	ErrorKindAPI            ErrorKind = "ApiError"
	ErrorKindParse          ErrorKind = "ParseError"
	ErrorKindAuthentication ErrorKind = "AuthenticationError"
	ErrorKindRateLimit      ErrorKind = "RateLimitError"
	ErrorKindQuotaExceeded  ErrorKind = "QuotaExceededError"
	ErrorKindValidation     ErrorKind = "ValidationError"
)

// ServiceError is implemented by every error that can be rendered to an HTTP
// caller.
type ServiceError interface {
	error

	GetCode() string
	GetMessage() string
	GetStatus() int
}

var _ ServiceError = (*TTSError)(nil)

// TTSError is the single error type returned by the text-to-speech client.
// Exactly one Kind is set; Status and Body are populated for kinds that
// originate from an HTTP response. Body is the response text as received,
// empty when it could not be read, while Message is the readable part of it.
type TTSError struct {
	Kind       ErrorKind
	Status     int
	Message    string
	Body       string
	RetryAfter mo.Option[uint64]
	Cause      error
}

// WithBody records the raw response text.
func (e *TTSError) WithBody(body string) *TTSError {
	e.Body = body

	return e
}

func (e *TTSError) Error() string {
	switch e.Kind {
	case ErrorKindRequest:
		return "Request failed: " + e.causeOrMessage()
	case ErrorKindAPI:
		return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
	case ErrorKindParse:
		return "Failed to parse response: " + e.causeOrMessage()
	case ErrorKindAuthentication:
		return "Authentication failed: " + e.Message
	case ErrorKindRateLimit:
		if seconds, ok := e.RetryAfter.Get(); ok {
			return fmt.Sprintf("Rate limit exceeded (retry in %ds): %s", seconds, e.Message)
		}

		return "Rate limit exceeded: " + e.Message
	case ErrorKindQuotaExceeded:
		return "Quota exceeded: " + e.Message
	case ErrorKindValidation:
		return "Validation error: " + e.Message
	default:
		return e.Message
	}
}

func (e *TTSError) causeOrMessage() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Cause != nil {
		return e.Cause.Error()
	}

	return "unknown error"
}

func (e *TTSError) Unwrap() error {
	return e.Cause
}

// Is reports kind equality so that errors.Is(err, &TTSError{Kind: ...}) works.
func (e *TTSError) Is(target error) bool {
	t, ok := target.(*TTSError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

// GetCode returns the snake_case form of the kind, e.g. rate_limit_error.
func (e *TTSError) GetCode() string {
	return strcase.SnakeCase(string(e.Kind))
}

func (e *TTSError) GetMessage() string {
	return e.causeOrMessage()
}

// GetStatus returns the upstream status, or the status the kind implies when
// the error did not come from an HTTP response.
func (e *TTSError) GetStatus() int {
	if e.Status != 0 {
		return e.Status
	}

	switch e.Kind {
	case ErrorKindAuthentication:
		return http.StatusUnauthorized
	case ErrorKindQuotaExceeded:
		return http.StatusPaymentRequired
	case ErrorKindRateLimit:
		return http.StatusTooManyRequests
	case ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindRequest, ErrorKindParse, ErrorKindAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether the same request may succeed later. The client
// never retries on its own.
func (e *TTSError) IsRetryable() bool {
	switch e.Kind {
	case ErrorKindRequest, ErrorKindRateLimit:
		return true
	case ErrorKindAPI:
		return e.Status >= http.StatusInternalServerError
	default:
		return false
	}
}

func (e *TTSError) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"kind":    e.Kind,
		"code":    e.GetCode(),
		"message": e.GetMessage(),
	}

	if e.Status != 0 {
		body["status"] = e.Status
	}

	if seconds, ok := e.RetryAfter.Get(); ok {
		body["retry_after"] = seconds
	}

	if e.Body != "" {
		body["body"] = e.Body
	}

	return json.Marshal(map[string]any{
		"error": body,
	})
}

func NewRequestError(cause error) *TTSError {
	return &TTSError{
		Kind:  ErrorKindRequest,
		Cause: cause,
	}
}

func NewAPIError(status int, message string) *TTSError {
	return &TTSError{
		Kind:    ErrorKindAPI,
		Status:  status,
		Message: message,
	}
}

func NewParseError(cause error) *TTSError {
	return &TTSError{
		Kind:  ErrorKindParse,
		Cause: cause,
	}
}

func NewAuthenticationError(message string) *TTSError {
	return &TTSError{
		Kind:    ErrorKindAuthentication,
		Status:  http.StatusUnauthorized,
		Message: lo.Ternary(message != "", message, "Invalid API key"),
	}
}

func NewRateLimitError(retryAfter mo.Option[uint64], message string) *TTSError {
	return &TTSError{
		Kind:       ErrorKindRateLimit,
		Status:     http.StatusTooManyRequests,
		Message:    lo.Ternary(message != "", message, "Too many requests"),
		RetryAfter: retryAfter,
	}
}

func NewQuotaExceededError(message string) *TTSError {
	return &TTSError{
		Kind:    ErrorKindQuotaExceeded,
		Status:  http.StatusPaymentRequired,
		Message: lo.Ternary(message != "", message, "Insufficient credits"),
	}
}

func NewValidationError(message string) *TTSError {
	return &TTSError{
		Kind:    ErrorKindValidation,
		Message: message,
	}
}

func NewValidationErrorWithCause(cause error) *TTSError {
	return &TTSError{
		Kind:    ErrorKindValidation,
		Message: cause.Error(),
		Cause:   cause,
	}
}

func AsTTSError(err error) (*TTSError, bool) {
	var ttsErr *TTSError
	if errors.As(err, &ttsErr) {
		return ttsErr, true
	}

	return nil, false
}

func IsKind(err error, kind ErrorKind) bool {
	ttsErr, ok := AsTTSError(err)

	return ok && ttsErr.Kind == kind
}

func AsServiceError(err error) ServiceError {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}

	return nil
}

var _ ServiceError = (*BaseServiceError)(nil)

type BaseServiceError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *BaseServiceError) Error() string {
	return e.Message
}

func (e *BaseServiceError) GetCode() string {
	return e.Code
}

func (e *BaseServiceError) GetMessage() string {
	return e.Message
}

func (e *BaseServiceError) GetStatus() int {
	return e.Status
}

func NewErrorInternalError(internalErrs ...error) *BaseServiceError {
	internalErrs = append(internalErrs, errors.New("internal error"))

	return &BaseServiceError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: lo.Must(lo.Coalesce(internalErrs...)).Error(),
	}
}

// ServiceErrorOrInternalError returns the first ServiceError among errs, or an
// internal error wrapping the first non-nil one.
func ServiceErrorOrInternalError(errs ...error) ServiceError {
	errs = lo.Filter(errs, utils.FilterNonNil)

	for _, err := range errs {
		if serviceErr := AsServiceError(err); serviceErr != nil {
			return serviceErr
		}
	}

	return NewErrorInternalError(errs...)
}
