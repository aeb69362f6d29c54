package engines

import (
	"errors"
	"fmt"
)

// Common engine errors that can be checked with errors.Is().
var (
	// ErrNotInitialized is returned when Generate or Probe is called before
	// Initialize, or after Dispose.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrBrowserConnect is returned when the headless browser cannot be
	// launched or connected to.
	ErrBrowserConnect = errors.New("failed to connect to browser")

	// ErrPageLoad is returned when the document fails to load in the renderer.
	ErrPageLoad = errors.New("failed to load page")

	// ErrPDFGeneration is returned when the renderer fails to produce a PDF.
	ErrPDFGeneration = errors.New("failed to generate PDF")

	// ErrGenerateTimeout marks a generation attempt that exceeded the task
	// timeout. The manager weighs timeouts differently from engine-reported
	// failures when updating health.
	ErrGenerateTimeout = errors.New("generation timed out")
)

// TimeoutError wraps a timeout with the engine name and the configured limit.
// It matches ErrGenerateTimeout with errors.Is().
type TimeoutError struct {
	// Engine is the name of the engine that timed out.
	Engine string

	// Timeout is the task timeout that was exceeded.
	Timeout string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("engine %q timed out after %s", e.Engine, e.Timeout)
}

// Is implements error matching for errors.Is().
func (e *TimeoutError) Is(target error) bool {
	return target == ErrGenerateTimeout
}

// RemoteStatusError is returned by the remote engine when the render service
// responds with a non-success HTTP status.
type RemoteStatusError struct {
	// Engine is the remote engine name.
	Engine string

	// StatusCode is the HTTP status returned by the service.
	StatusCode int

	// Body is a truncated response body for diagnostics.
	Body string
}

// Error implements the error interface.
func (e *RemoteStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("engine %q: render service returned status %d", e.Engine, e.StatusCode)
	}
	return fmt.Sprintf("engine %q: render service returned status %d: %s", e.Engine, e.StatusCode, e.Body)
}

// IsTimeout reports whether err represents a generation timeout as opposed
// to an engine-reported failure.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrGenerateTimeout)
}
