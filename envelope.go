package streamvault

import (
	"time"

	"github.com/streamvault/streamvault/metadata"
)

// EventEnvelope is the immutable, persisted form of a domain event: its
// identity, a type tag, the domain payload, open metadata, the instant it
// was created, and (once appended) its position within the stream.
type EventEnvelope struct {
	id          UUID
	messageName string
	payload     interface{}
	metadata    metadata.Metadata
	createdAt   time.Time
	position    int64
}

// NewEventEnvelope builds an envelope ready to append. Position is left at
// zero until the store assigns it on append.
func NewEventEnvelope(id UUID, messageName string, payload interface{}, meta metadata.Metadata, createdAt time.Time) *EventEnvelope {
	return &EventEnvelope{
		id:          id,
		messageName: messageName,
		payload:     payload,
		metadata:    meta,
		createdAt:   createdAt,
	}
}

// WithPosition returns a copy of e with its stream position set. Used by
// the stream iterator when decoding a row.
func (e *EventEnvelope) WithPosition(position int64) *EventEnvelope {
	clone := *e
	clone.position = position
	return &clone
}

// UUID implements Message.
func (e *EventEnvelope) UUID() UUID { return e.id }

// MessageName returns the envelope's short type tag.
func (e *EventEnvelope) MessageName() string { return e.messageName }

// Payload implements Message.
func (e *EventEnvelope) Payload() interface{} { return e.payload }

// Metadata implements Message.
func (e *EventEnvelope) Metadata() interface{} { return e.metadata }

// CreatedAt implements Message.
func (e *EventEnvelope) CreatedAt() time.Time { return e.createdAt }

// Position returns the envelope's stream position ("no"), valid once the
// envelope has been read back from the store.
func (e *EventEnvelope) Position() int64 { return e.position }
