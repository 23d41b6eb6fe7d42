package mocks

import (
	"time"

	"github.com/streamvault/streamvault"
	"github.com/streamvault/streamvault/metadata"
)

// Regenerate with `go generate ./...` after vendoring golang/mock's mockgen.
//go:generate go run github.com/golang/mock/mockgen -package=mocks -destination event_store.go -mock_names EventStore=EventStore github.com/streamvault/streamvault EventStore
//go:generate go run github.com/golang/mock/mockgen -package=mocks -destination read_only_event_store.go -mock_names ReadOnlyEventStore=ReadOnlyEventStore github.com/streamvault/streamvault ReadOnlyEventStore
//go:generate go run github.com/golang/mock/mockgen -package=mocks -destination event_stream.go -mock_names EventStream=EventStream github.com/streamvault/streamvault EventStream
//go:generate go run github.com/golang/mock/mockgen -package=mocks -destination message.go -mock_names Message=Message github.com/streamvault/streamvault Message
//go:generate go run github.com/golang/mock/mockgen -package=mocks -destination stream_finder.go -mock_names StreamFinder=StreamFinder github.com/streamvault/streamvault StreamFinder
//go:generate go run github.com/golang/mock/mockgen -package=sql -destination ../driver/sql/execer.go -mock_names Execer=Execer github.com/streamvault/streamvault/driver/sql Execer
//go:generate go run github.com/golang/mock/mockgen -package=sql -destination ../driver/sql/queryer.go -mock_names Queryer=Queryer github.com/streamvault/streamvault/driver/sql Queryer
//go:generate go run github.com/golang/mock/mockgen -package=sql -destination ../driver/sql/persistence_strategy.go -mock_names PersistenceStrategy=PersistenceStrategy github.com/streamvault/streamvault/driver/sql PersistenceStrategy

var _ streamvault.Message = &DummyMessage{}

// DummyMessage is a plain streamvault.Message implementation used in tests
// that don't need a real envelope.
type DummyMessage struct {
	uuid        streamvault.UUID
	messageName string
	payload     interface{}
	metadata    metadata.Metadata
	createdAt   time.Time
}

// NewDummyMessage returns a new DummyMessage.
func NewDummyMessage(id streamvault.UUID, messageName string, payload interface{}, meta metadata.Metadata, createdAt time.Time) *DummyMessage {
	return &DummyMessage{
		uuid:        id,
		messageName: messageName,
		payload:     payload,
		metadata:    meta,
		createdAt:   createdAt,
	}
}

// UUID returns the identifier of this message.
func (d *DummyMessage) UUID() streamvault.UUID {
	return d.uuid
}

// MessageName returns the message's short type tag.
func (d *DummyMessage) MessageName() string {
	return d.messageName
}

// Payload returns the payload of the message.
func (d *DummyMessage) Payload() interface{} {
	return d.payload
}

// Metadata returns the message metadata.
func (d *DummyMessage) Metadata() interface{} {
	return d.metadata
}

// CreatedAt returns the created time of the message.
func (d *DummyMessage) CreatedAt() time.Time {
	return d.createdAt
}

// WithMetadata returns a new DummyMessage with key added to its metadata.
func (d *DummyMessage) WithMetadata(key string, value interface{}) *DummyMessage {
	newMessage := *d
	newMessage.metadata = d.metadata.With(key, value)
	return &newMessage
}
