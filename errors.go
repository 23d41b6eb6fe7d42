package streamvault

import "fmt"

// StreamExistsError is returned when Create is called against a stream
// that already has a registry row and physical table.
type StreamExistsError struct {
	StreamName StreamName
}

func (e *StreamExistsError) Error() string {
	return fmt.Sprintf("streamvault: stream %q already exists", e.StreamName)
}

// StreamNotFoundError is returned when AppendTo, Load, LoadReverse or
// Delete is called against a stream that has no registry row.
type StreamNotFoundError struct {
	StreamName StreamName
}

func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("streamvault: stream %q not found", e.StreamName)
}

// ConcurrencyError is returned when an append violates the persistence
// strategy's uniqueness constraints (duplicate event id, or a second
// writer racing on the same aggregate version).
type ConcurrencyError struct {
	StreamName StreamName
	Cause      error
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("streamvault: concurrent append conflict on stream %q: %s", e.StreamName, e.Cause)
}

// Unwrap allows errors.Is/errors.As to reach the underlying driver error.
func (e *ConcurrencyError) Unwrap() error {
	return e.Cause
}

// ExtensionNotAvailableError is returned when a construction-time
// dependency (a database driver, a strategy) required by the chosen
// configuration was not registered.
type ExtensionNotAvailableError struct {
	Extension string
}

func (e *ExtensionNotAvailableError) Error() string {
	return fmt.Sprintf("streamvault: extension %q is not available", e.Extension)
}

// RuntimeError wraps any other database or serialization failure,
// carrying the underlying driver diagnostic.
type RuntimeError struct {
	Op    string
	Cause error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("streamvault: %s: %s", e.Op, e.Cause)
}

// Unwrap allows errors.Is/errors.As to reach the underlying driver error.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// InvalidArgumentError indicates a required constructor argument was nil
// or zero-valued.
type InvalidArgumentError string

func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("streamvault: invalid argument %q", string(e))
}
