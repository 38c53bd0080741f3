package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies completion failures for retry decisions.
type ErrorKind int

const (
	KindFatal ErrorKind = iota
	KindRateLimited
	KindTransient
	KindNotConfigured
	KindRetriesExhausted
)

// String returns a human-readable label for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindNotConfigured:
		return "not_configured"
	case KindRetriesExhausted:
		return "retries_exhausted"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k ErrorKind) Retryable() bool {
	return k == KindRateLimited || k == KindTransient
}

// Sentinels matched by errors.Is against any *CompletionError of the same kind.
var (
	ErrFatal            = errors.New("fatal completion error")
	ErrRateLimited      = errors.New("rate limited")
	ErrTransient        = errors.New("transient api error")
	ErrNotConfigured    = errors.New("completion transport not configured")
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ErrInvalidRequest marks fatal errors raised before any provider call because
// the caller's input cannot be sent.
var ErrInvalidRequest = errors.New("invalid request")

// NewInvalidRequestError returns a fatal error matching both ErrFatal and ErrInvalidRequest.
func NewInvalidRequestError(err error) *CompletionError {
	return NewCompletionError(KindFatal, 0, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
}

// CompletionError is the tagged error returned by transports and the retry coordinator.
type CompletionError struct {
	Kind ErrorKind
	// StatusCode is the provider's HTTP status, 0 when no response was received.
	StatusCode int
	// Attempts is set on RetriesExhausted errors.
	Attempts int
	Err      error
}

// NewCompletionError wraps err with the given kind.
func NewCompletionError(kind ErrorKind, statusCode int, err error) *CompletionError {
	return &CompletionError{
		Kind:       kind,
		StatusCode: statusCode,
		Attempts:   0,
		Err:        err,
	}
}

func (e *CompletionError) Error() string {
	switch {
	case e.Kind == KindRetriesExhausted:
		return fmt.Sprintf("%s after %d attempts: %v", ErrRetriesExhausted, e.Attempts, e.Err)
	case e.Err == nil:
		return e.sentinel().Error()
	default:
		return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
	}
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for this error's kind.
func (e *CompletionError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *CompletionError) sentinel() error {
	switch e.Kind {
	case KindRateLimited:
		return ErrRateLimited
	case KindTransient:
		return ErrTransient
	case KindNotConfigured:
		return ErrNotConfigured
	case KindRetriesExhausted:
		return ErrRetriesExhausted
	default:
		return ErrFatal
	}
}

// KindOf returns the kind of the outermost *CompletionError in err's chain.
// Errors without one are uncategorized and reported as fatal.
func KindOf(err error) ErrorKind {
	var completionErr *CompletionError
	if errors.As(err, &completionErr) {
		return completionErr.Kind
	}
	return KindFatal
}

// RenderError formats err for display in the UI.
func RenderError(err error) string {
	if err == nil {
		return ""
	}
	return "Error: " + err.Error()
}
