// Package streamvault provides an append-only event store with a
// projection/query engine for folding persisted streams into user state.
package streamvault

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/streamvault/streamvault/metadata"
)

// StreamName identifies a logical event stream. Names beginning with "$"
// are internal streams and are excluded from fromAll/category selectors.
type StreamName string

// IsInternal reports whether the stream name is reserved for internal use.
func (s StreamName) IsInternal() bool {
	return len(s) > 0 && s[0] == '$'
}

// UUID is a textual, globally unique message identifier.
type UUID = uuid.UUID

// GenerateUUID returns a new random UUID.
func GenerateUUID() UUID {
	return uuid.New()
}

// ParseUUID parses a 36-character textual UUID.
func ParseUUID(s string) (UUID, error) {
	return uuid.Parse(s)
}

// Message is a single domain event as seen by the store: an identity, a
// payload, open metadata, and the instant it was created.
type Message interface {
	// UUID returns the identifier of this message.
	UUID() UUID
	// MessageName returns the message's short type tag (at most 100
	// characters).
	MessageName() string
	// Payload returns the domain payload of this message.
	Payload() interface{}
	// Metadata returns the message's metadata.
	Metadata() interface{}
	// CreatedAt returns the time the message was created.
	CreatedAt() time.Time
}

// EventStream is the lazily-paged result of a Load/LoadReverse call. Its
// cursor starts before the first row; call Next to advance.
type EventStream interface {
	// Next prepares the next result for reading. It returns true on success
	// or false when the stream is exhausted or an error occurred; use Err
	// to distinguish between the two.
	Next() bool

	// Err returns the error, if any, encountered during iteration.
	Err() error

	// Close releases the underlying resources. Idempotent.
	Close() error

	// Message returns the current message and its position within the stream.
	Message() (Message, int64, error)
}

// ReadOnlyEventStore describes the read side of an event store.
type ReadOnlyEventStore interface {
	// HasStream returns true if the stream exists.
	HasStream(ctx context.Context, streamName StreamName) bool

	// FetchStreamMetadata returns the metadata stored at stream creation,
	// and false if the stream does not exist.
	FetchStreamMetadata(ctx context.Context, streamName StreamName) (interface{}, bool)

	// Load returns a forward-ordered event stream starting at fromNumber.
	// count == nil means unbounded.
	Load(ctx context.Context, streamName StreamName, fromNumber int64, count *uint, matcher metadata.Matcher) (EventStream, error)

	// LoadReverse returns a reverse-ordered event stream starting at
	// fromNumber, or the stream's current tail when fromNumber < 0 (an
	// extra round-trip to resolve the tail position before paging begins).
	LoadReverse(ctx context.Context, streamName StreamName, fromNumber int64, count *uint, matcher metadata.Matcher) (EventStream, error)
}

// StreamFinder is an optional capability of a ReadOnlyEventStore that can
// enumerate its registered streams. The query engine's fromCategory,
// fromCategories and fromAll selectors need it to compute their selection
// set; a store that does not implement it rejects those selectors with
// ExtensionNotAvailableError.
type StreamFinder interface {
	// StreamsWithPrefix returns every registered, non-internal stream whose
	// name starts with prefix+"-".
	StreamsWithPrefix(ctx context.Context, prefix string) ([]StreamName, error)

	// AllStreams returns every registered stream not beginning with "$".
	AllStreams(ctx context.Context) ([]StreamName, error)
}

// EventStore is an interface describing a transactional event store.
type EventStore interface {
	ReadOnlyEventStore

	// Create creates a stream with the given metadata and initial events.
	// Creation of the registry row, the physical table and the initial
	// batch happens atomically.
	Create(ctx context.Context, streamName StreamName, metadata interface{}, events []Message) error

	// AppendTo appends messages to an existing stream. An empty slice is a
	// no-op success.
	AppendTo(ctx context.Context, streamName StreamName, events []Message) error

	// Delete removes the stream's registry row and drops its physical table.
	Delete(ctx context.Context, streamName StreamName) error
}

// ReadEventStream reads the entire event stream and returns its contents as
// a slice. Intended for testing and debugging; production consumers should
// prefer streaming via EventStream.Next.
func ReadEventStream(stream EventStream) ([]Message, []int64, error) {
	var messages []Message
	var positions []int64

	for stream.Next() {
		msg, pos, err := stream.Message()
		if err != nil {
			return nil, nil, err
		}

		messages = append(messages, msg)
		positions = append(positions, pos)
	}

	if err := stream.Err(); err != nil {
		return nil, nil, err
	}

	return messages, positions, nil
}
