package client

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/qualys-api-client/pkg/objects"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the account's call budget is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUsage marks caller mistakes. It is never retried.
	ErrUsage = errors.New("usage error")

	// ErrNoSource is returned by ParseResponse when neither an endpoint nor a
	// reader was given.
	ErrNoSource = fmt.Errorf("%w: no response source", ErrUsage)
)

// Qualys SIMPLE_RETURN codes signalling rate or concurrency limits.
var rateLimitCodes = map[string]bool{
	"1960": true,
	"1965": true,
}

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 409/429 rate and concurrency limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// QualysError represents an HTTP level failure with additional context.
type QualysError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *QualysError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qualys %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("qualys %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *QualysError) Unwrap() error {
	return e.Err
}

// APIError is a failure reported by the server in a SIMPLE_RETURN document.
type APIError struct {
	Code string
	Text string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("qualys api error %s: %s", e.Code, e.Text)
}

// Is lets errors.Is(err, ErrRateLimited) match rate limit codes.
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimited && rateLimitCodes[e.Code]
}

// FrameworkError reports a response that could not be classified at all.
type FrameworkError struct {
	Message string
	Results []objects.Object
}

// Error implements the error interface.
func (e *FrameworkError) Error() string {
	return "qualys framework error: " + e.Message
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors carry a SIMPLE_RETURN and are final
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
