package openaiservice

import (
	"errors"
	"fmt"
)

// Flow errors. Every failure of the personalized-content flow maps onto one
// of these so handlers can translate them to HTTP statuses. Nothing is
// retried automatically; the user may re-trigger the action manually.
var (
	// ErrNoUserLoggedIn is returned when an operation runs without a session.
	ErrNoUserLoggedIn = errors.New("no user is currently logged in")

	// ErrNoProfileData is returned when all three source records (profile,
	// lifestyle, medical history) are absent.
	ErrNoProfileData = errors.New("no user data available to personalize")

	// ErrEmptyMessage is returned when a chat message has no content.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrEmptyResponse is returned when the completion succeeded but the
	// content field is absent or empty after trimming.
	ErrEmptyResponse = errors.New("empty response from completions API")

	// ErrMalformedResponse is returned when the tips completion text cannot
	// be parsed as JSON.
	ErrMalformedResponse = errors.New("completion text is not valid JSON")

	// ErrUnexpectedShape is returned when the tips completion parses but is
	// not an array at the top level.
	ErrUnexpectedShape = errors.New("generated tips are not in the expected array format")
)

// TransportError wraps a network or HTTP-level failure talking to the
// completions endpoint, preserving the upstream status and body.
type TransportError struct {
	Status string
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completions request failed: %v", e.Err)
	}
	return fmt.Sprintf("completions API returned %s: %s", e.Status, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
