package payment

import (
	"errors"
	"fmt"

	strutil "remitflow/pkg/platform/strings"
)

// ErrorCode is the user-facing taxonomy carried by Error outcomes.
type ErrorCode string

const (
	CodeCredentialFetchFailed      ErrorCode = "credential_fetch_failed"
	CodeOrderCreationFailed        ErrorCode = "order_creation_failed"
	CodeMissingRedirectTarget      ErrorCode = "missing_redirect_target"
	CodeCaptureCompletionFailed    ErrorCode = "capture_completion_failed"
	CodeUserCancelled              ErrorCode = "user_cancelled"
	CodeNotificationDispatchFailed ErrorCode = "notification_dispatch_failed"
	CodeUnexpectedReturn           ErrorCode = "unexpected_return"
	CodeWidgetError                ErrorCode = "widget_error"
	CodeInternal                   ErrorCode = "internal"
)

// ErrorCategory is the normalized provider failure class.
type ErrorCategory string

const (
	ErrorTimeout          ErrorCategory = "timeout"
	ErrorBadData          ErrorCategory = "bad_data"
	ErrorAuthentication   ErrorCategory = "authentication"
	ErrorProviderOutage   ErrorCategory = "provider_outage"
	ErrorRejected         ErrorCategory = "rejected"
	ErrorRateLimited      ErrorCategory = "rate_limited"
	ErrorContractMismatch ErrorCategory = "contract_mismatch"
	ErrorInternal         ErrorCategory = "internal"
)

// ProviderError wraps a provider failure with the response context needed
// for logging.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Operation  string
	StatusCode int
	Body       string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s %s [%s]", e.ProviderID, e.Operation, e.Category)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// maxBodyExcerpt bounds the response body kept for logs.
const maxBodyExcerpt = 512

// NewProviderError builds a normalized provider error.
func NewProviderError(category ErrorCategory, providerID, operation string, status int, body []byte, underlying error) *ProviderError {
	excerpt := strutil.Truncate(string(body), maxBodyExcerpt)
	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Operation:  operation,
		StatusCode: status,
		Body:       excerpt,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorProviderOutage || category == ErrorRateLimited,
	}
}

// CategoryForStatus classifies an HTTP status returned by a provider.
func CategoryForStatus(status int) ErrorCategory {
	switch {
	case status == 401 || status == 403:
		return ErrorAuthentication
	case status == 408:
		return ErrorTimeout
	case status == 429:
		return ErrorRateLimited
	case status >= 500:
		return ErrorProviderOutage
	case status >= 400:
		return ErrorRejected
	}
	return ErrorContractMismatch
}

// AsProviderError extracts a ProviderError from the chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
