package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies generative backend failures
type ErrorKind string

const (
	// KindConfiguration - credentials absent, the backend is never called
	KindConfiguration ErrorKind = "configuration"

	// KindAuthentication - the backend rejected our credentials (401/403)
	KindAuthentication ErrorKind = "authentication"

	// KindRateLimit - 429 or a quota message in the body
	KindRateLimit ErrorKind = "rate_limit"

	// KindTimeout - deadline exceeded or the backend reported a timeout
	KindTimeout ErrorKind = "timeout"

	// KindUnclassified - anything else
	KindUnclassified ErrorKind = "unclassified"
)

// BackendError wraps a backend failure with its classification
type BackendError struct {
	Kind       ErrorKind
	StatusCode int    // HTTP status code if applicable
	Message    string // raw provider text, for logs and audit only
	Cause      error
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: [%d] %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// ErrNotConfigured is returned by backends that have no credentials
var ErrNotConfigured = &BackendError{
	Kind:    KindConfiguration,
	Message: "generative backend API key not configured",
}

// userSafeMessages never contain provider text
var userSafeMessages = map[ErrorKind]string{
	KindConfiguration:  "The chatbot is not properly configured. Please contact the administrator.",
	KindAuthentication: "The AI service could not verify our credentials. Please contact the administrator.",
	KindRateLimit:      "API rate limit exceeded. Please try again in a moment.",
	KindTimeout:        "Request timed out. The AI service is taking too long to respond.",
	KindUnclassified:   "I'm having trouble processing your request right now. Please try again in a moment.",
}

// UserSafeMessage returns the fixed end-user sentence for a failure kind
func UserSafeMessage(kind ErrorKind) string {
	if msg, ok := userSafeMessages[kind]; ok {
		return msg
	}
	return userSafeMessages[KindUnclassified]
}

// ClassifyHTTPError classifies a non-2xx backend response
func ClassifyHTTPError(statusCode int, body string) *BackendError {
	err := &BackendError{
		StatusCode: statusCode,
		Message:    truncateString(body, 200),
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		err.Kind = KindAuthentication
	case IsQuotaError(statusCode, body):
		err.Kind = KindRateLimit
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		err.Kind = KindTimeout
	default:
		err.Kind = KindUnclassified
	}

	return err
}

// Classify maps any error returned by a backend call to a BackendError
func Classify(err error) *BackendError {
	if err == nil {
		return nil
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &BackendError{Kind: KindTimeout, Message: truncateString(err.Error(), 200), Cause: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		classified := ClassifyHTTPError(apiErr.HTTPStatusCode, apiErr.Message)
		classified.Cause = err
		return classified
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		classified := ClassifyHTTPError(reqErr.HTTPStatusCode, reqErr.Error())
		classified.Cause = err
		return classified
	}

	errStr := strings.ToLower(err.Error())
	kind := KindUnclassified
	switch {
	case containsAny(errStr, "401", "unauthorized", "authentication", "invalid api key"):
		kind = KindAuthentication
	case IsQuotaError(0, errStr):
		kind = KindRateLimit
	case containsAny(errStr, "timeout", "timed out"):
		kind = KindTimeout
	}

	return &BackendError{Kind: kind, Message: truncateString(err.Error(), 200), Cause: err}
}

// IsQuotaError detects if a response is related to quota exhaustion or rate limiting
func IsQuotaError(statusCode int, responseBody string) bool {
	if statusCode == http.StatusTooManyRequests {
		return true
	}

	lowerBody := strings.ToLower(responseBody)
	return containsAny(lowerBody,
		"quota exceeded",
		"rate limit",
		"too many requests",
		"request limit",
		"tokens per minute",
		"requests per minute",
		"insufficient_quota",
		"rate_limit_exceeded",
	)
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// truncateString keeps at most maxLen runes
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
