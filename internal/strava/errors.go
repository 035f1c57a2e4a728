package strava

import "fmt"

// APIError is the generic failure for Strava API calls: a transport-level
// failure (wrapped cause, Status == 0) or an unexpected HTTP error status.
type APIError struct {
	Status int
	Body   string
	cause  error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("error communicating with Strava: %v", e.cause)
	}
	if e.Body != "" {
		return fmt.Sprintf("Strava API error (HTTP %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("Strava API error (HTTP %d)", e.Status)
}

func (e *APIError) Unwrap() error { return e.cause }

// UnauthorizedError is returned on 401/403 responses: the token is revoked
// or missing a required scope. Callers should trigger reauthorization
// instead of retrying.
type UnauthorizedError struct {
	Status int
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("Strava authorization failed (HTTP %d)", e.Status)
}

// NotFoundError is returned on 404 responses. Non-retryable.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Strava resource not found: %s", e.Path)
}

// RateLimitError is returned on 429 responses and carries the usage
// snapshot parsed from the same response so callers can back off.
type RateLimitError struct {
	Info RateLimitInfo
}

func (e *RateLimitError) Error() string {
	return "Strava API rate limit reached"
}

// ValidationError rejects bad command input before any network call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
