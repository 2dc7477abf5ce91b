package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for common client failures.
var (
	// ErrNotConfigured indicates a missing or invalid client configuration
	// detected before any network call is made.
	ErrNotConfigured = errors.New("client not configured")

	// ErrMalformedResponse indicates a success status whose body is missing
	// the expected content fields.
	ErrMalformedResponse = errors.New("malformed response")
)

// Category is the user-facing classification of a transport failure.
type Category string

const (
	CategoryAuth      Category = "auth"
	CategoryRateLimit Category = "rate-limit"
	CategoryServer    Category = "server"
	CategoryNetwork   Category = "network"
	CategoryTimeout   Category = "timeout"
	CategoryCancelled Category = "cancelled"
	CategoryUnknown   Category = "unknown"
)

// TransportError represents a non-success HTTP response. It carries the
// status code and raw body so failures can be classified for display.
type TransportError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Status, e.Body)
}

// Classify maps the transport error to a user-facing category, by status
// code first and body substring heuristics as a fallback.
func (e *TransportError) Classify() Category {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return CategoryAuth
	case http.StatusTooManyRequests:
		return CategoryRateLimit
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return CategoryTimeout
	}
	if e.Status >= 500 {
		return CategoryServer
	}

	body := strings.ToLower(e.Body)
	switch {
	case strings.Contains(body, "api key") || strings.Contains(body, "authentication"):
		return CategoryAuth
	case strings.Contains(body, "rate limit") || strings.Contains(body, "quota"):
		return CategoryRateLimit
	case strings.Contains(body, "timeout") || strings.Contains(body, "timed out"):
		return CategoryTimeout
	case strings.Contains(body, "overloaded"):
		return CategoryServer
	}
	return CategoryUnknown
}

// IsCancellation reports whether err is the expected outcome of a superseded
// or timed-out call rather than a real failure. Cancellation is logged, not
// surfaced to the operator as an error.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Classify maps any client error to a user-facing category.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	if errors.Is(err, context.Canceled) {
		return CategoryCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Classify()
	}
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrMalformedResponse) {
		return CategoryUnknown
	}
	// Anything else that reached the wire and failed is a network problem.
	return CategoryNetwork
}

// Summary returns a short operator-facing description of a failed call.
func Summary(err error) string {
	switch Classify(err) {
	case CategoryAuth:
		return "authentication failed: check the configured API key"
	case CategoryRateLimit:
		return "rate limited by the vendor: wait and restart the run"
	case CategoryServer:
		return "vendor server error: try again later"
	case CategoryTimeout:
		return "request timed out"
	case CategoryCancelled:
		return "request cancelled"
	case CategoryNetwork:
		return "network error: check connectivity and endpoint"
	default:
		return "request failed"
	}
}
