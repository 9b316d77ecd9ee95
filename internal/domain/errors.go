package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the domain layer.
var (
	ErrUnknownAgent    = fmt.Errorf("unknown agent type")
	ErrInvalidRequest  = fmt.Errorf("invalid request")
	ErrUnknownModel    = fmt.Errorf("unknown model")
	ErrNoCandidate     = fmt.Errorf("no model candidate matches requirements")
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")
	ErrDecryption      = fmt.Errorf("decryption failed")
	ErrStreamClosed    = fmt.Errorf("stream closed")
	ErrRetryExhausted  = fmt.Errorf("retries exhausted")
	ErrRateLimited     = fmt.Errorf("rate limit exceeded")
	ErrCostLimit       = fmt.Errorf("cost limit exceeded")
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrProviderError   = fmt.Errorf("provider error")
	ErrBreakerOpen     = fmt.Errorf("circuit breaker open")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Orchestrator.Execute")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// retryableMarkers is the fixed allow-list of transient-failure markers.
// An upstream error is retryable iff its message contains one of these.
var retryableMarkers = []string{
	"overloaded_error",
	"rate_limit_error",
	"api_error",
	"timeout",
	"ECONNRESET",
	"ETIMEDOUT",
}

// IsRetryable reports whether err is a transient upstream failure that may
// succeed on retry, by substring match against the fixed marker set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

// Error codes. Every sentinel error maps to exactly one code.
const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeUnknownAgent    ErrorCode = "UNKNOWN_AGENT"
	CodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	CodeUnknownModel    ErrorCode = "UNKNOWN_MODEL"
	CodeNoCandidate     ErrorCode = "NO_CANDIDATE"
	CodeConfigLoad      ErrorCode = "CONFIG_LOAD"
	CodeDecryption      ErrorCode = "DECRYPTION"
	CodeStreamClosed    ErrorCode = "STREAM_CLOSED"
	CodeRetryExhausted  ErrorCode = "RETRY_EXHAUSTED"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeCostLimit       ErrorCode = "COST_LIMIT"
	CodeContextOverflow ErrorCode = "CONTEXT_OVERFLOW"
	CodeAuthInvalid     ErrorCode = "AUTH_INVALID"
	CodeProviderError   ErrorCode = "PROVIDER_ERROR"
	CodeBreakerOpen     ErrorCode = "BREAKER_OPEN"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrUnknownAgent:    CodeUnknownAgent,
	ErrInvalidRequest:  CodeInvalidRequest,
	ErrUnknownModel:    CodeUnknownModel,
	ErrNoCandidate:     CodeNoCandidate,
	ErrConfigLoad:      CodeConfigLoad,
	ErrDecryption:      CodeDecryption,
	ErrStreamClosed:    CodeStreamClosed,
	ErrRetryExhausted:  CodeRetryExhausted,
	ErrRateLimited:     CodeRateLimited,
	ErrCostLimit:       CodeCostLimit,
	ErrContextOverflow: CodeContextOverflow,
	ErrAuthInvalid:     CodeAuthInvalid,
	ErrProviderError:   CodeProviderError,
	ErrBreakerOpen:     CodeBreakerOpen,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and walks the chain with errors.Is.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
