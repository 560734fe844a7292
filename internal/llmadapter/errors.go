package llmadapter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// The adapter surfaces exactly these four failure shapes (spec §4.1); it
// never retries internally. A caller (specialist agent loop) may retry
// once on ProviderRateLimited or ProviderUnavailable.
type (
	// ProviderAuthError means the configured credential was rejected.
	ProviderAuthError struct{ inner *ProviderError }
	// ProviderRateLimited means the provider itself throttled the request.
	ProviderRateLimited struct{ inner *ProviderError }
	// ProviderUnavailable means a transient server-side failure or timeout.
	ProviderUnavailable struct{ inner *ProviderError }
	// ProviderInvalidRequest means the request was malformed for this
	// provider (e.g. unsupported tool shape, oversized payload).
	ProviderInvalidRequest struct{ inner *ProviderError }
)

func (e *ProviderAuthError) Error() string        { return e.inner.Error() }
func (e *ProviderRateLimited) Error() string       { return e.inner.Error() }
func (e *ProviderUnavailable) Error() string       { return e.inner.Error() }
func (e *ProviderInvalidRequest) Error() string    { return e.inner.Error() }
func (e *ProviderAuthError) Unwrap() error         { return e.inner }
func (e *ProviderRateLimited) Unwrap() error       { return e.inner }
func (e *ProviderUnavailable) Unwrap() error       { return e.inner }
func (e *ProviderInvalidRequest) Unwrap() error    { return e.inner }

// ProviderError is the structured error every family-specific adapter
// raises internally before it is classified into one of the four public
// shapes above. Grounded on the teacher's providers.ProviderError: the
// classification-by-status-code-or-message idiom is kept, narrowed to the
// four buckets this spec names.
type ProviderError struct {
	Provider string
	Model    string
	Status   int
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	parts := make([]string, 0, 4)
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Classify wraps a raw transport error (or HTTP status) from a provider
// family client into one of the four public error shapes. provider/model
// annotate the wrapped ProviderError for logging.
func Classify(provider, model string, status int, cause error) error {
	pe := &ProviderError{Provider: provider, Model: model, Status: status, Cause: cause}
	if cause != nil {
		pe.Message = cause.Error()
	}

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return &ProviderAuthError{inner: pe}
	case status == http.StatusTooManyRequests:
		return &ProviderRateLimited{inner: pe}
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return &ProviderInvalidRequest{inner: pe}
	case status >= 500:
		return &ProviderUnavailable{inner: pe}
	}

	if cause == nil {
		return nil
	}
	msg := strings.ToLower(cause.Error())
	switch {
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication"):
		return &ProviderAuthError{inner: pe}
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return &ProviderRateLimited{inner: pe}
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "unavailable") || strings.Contains(msg, "connection reset"):
		return &ProviderUnavailable{inner: pe}
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "malformed"):
		return &ProviderInvalidRequest{inner: pe}
	default:
		return &ProviderUnavailable{inner: pe}
	}
}

// IsRetryable reports whether the agent loop's single permitted retry
// applies to err (rate-limited or transiently unavailable).
func IsRetryable(err error) bool {
	var rl *ProviderRateLimited
	var un *ProviderUnavailable
	return errors.As(err, &rl) || errors.As(err, &un)
}
