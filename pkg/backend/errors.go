package backend

import "fmt"

// AuthError represents a backend authentication rejection (HTTP 401 or 403).
// It carries the credential that was rejected so the caller can invalidate
// it and retry with a different one.
type AuthError struct {
	// CredentialID identifies the rejected credential
	CredentialID string

	// StatusCode is the HTTP status the backend returned
	StatusCode int

	// Message is the backend's error body
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("backend rejected credential %q (status %d): %s",
		e.CredentialID, e.StatusCode, e.Message)
}

// UpstreamError represents a non-auth error status from the backend.
type UpstreamError struct {
	// StatusCode is the HTTP status the backend returned
	StatusCode int

	// Message is the backend's error body
	Message string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Message)
}

// TransportError represents a network-level failure talking to the backend.
// The client never retries these internally; the caller decides.
type TransportError struct {
	// Op is the operation that failed ("connect", "read stream", "login")
	Op string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("backend %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ParseError represents a malformed backend response.
type ParseError struct {
	// RawResponse is the raw payload that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("backend response parse error: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// AggregationError represents a stream that failed before reaching a finish
// reason. Aggregation never returns a partial completion: the caller gets
// this error instead.
type AggregationError struct {
	// Cause is the stream error that interrupted aggregation
	Cause error
}

// Error implements the error interface.
func (e *AggregationError) Error() string {
	return fmt.Sprintf("stream failed before completion: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *AggregationError) Unwrap() error {
	return e.Cause
}
