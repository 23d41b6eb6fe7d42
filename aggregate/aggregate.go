// Package aggregate provides the write-side replay pattern the streamvault
// examples are built on: an aggregate root records uncommitted domain
// events against itself, which a caller then hands to EventStore.AppendTo.
package aggregate

import (
	"github.com/google/uuid"
)

// ID identifies a single aggregate instance.
type ID string

// GenerateID returns a new random aggregate ID.
func GenerateID() ID {
	return ID(uuid.New().String())
}

// Root is implemented by any type that wants to record and replay domain
// events via BaseRoot.
type Root interface {
	// AggregateID returns the identity of this aggregate instance.
	AggregateID() ID

	// Apply mutates the aggregate's state in response to change. It is
	// invoked both when a new event is recorded and when prior events are
	// replayed from storage.
	Apply(change *Changed)
}

// Changed wraps a single domain event produced by an aggregate, together
// with the version it was recorded at.
type Changed struct {
	version int
	payload interface{}
}

// Version returns the 1-based sequence number of this change within its
// aggregate's history.
func (c *Changed) Version() int {
	return c.version
}

// Payload returns the domain event carried by this change.
func (c *Changed) Payload() interface{} {
	return c.payload
}

// BaseRoot is embedded by aggregate implementations to track uncommitted
// changes and the current version. It is not safe for concurrent use by
// multiple goroutines, matching the single-writer-per-aggregate model
// described for the event store itself.
type BaseRoot struct {
	version           int
	uncommittedEvents []*Changed
}

// Version returns the aggregate's current version (the number of changes
// applied so far, committed or not).
func (b *BaseRoot) Version() int {
	return b.version
}

// UncommittedEvents returns the changes recorded since the last call to
// ClearUncommittedEvents.
func (b *BaseRoot) UncommittedEvents() []*Changed {
	return b.uncommittedEvents
}

// ClearUncommittedEvents empties the uncommitted-events buffer. Call this
// once the events have been durably appended to the event store.
func (b *BaseRoot) ClearUncommittedEvents() {
	b.uncommittedEvents = nil
}

// ReplayFromHistory reconstructs the aggregate's state by applying a
// sequence of previously-persisted payloads in order, without recording
// them as new uncommitted changes. When root embeds BaseRoot, each replayed
// change advances its version, so changes recorded afterwards continue the
// persisted sequence.
func ReplayFromHistory(root Root, payloads []interface{}) {
	base, _ := rootBase(root)
	for _, p := range payloads {
		change := &Changed{payload: p}
		if base != nil {
			base.version++
			change.version = base.version
		}
		root.Apply(change)
	}
}

// RecordChange records a new domain event against root: it increments the
// root's version, appends a Changed to its uncommitted-events buffer, and
// invokes Apply so the root's in-memory state reflects the change
// immediately.
func RecordChange(root Root, payload interface{}) error {
	base, ok := rootBase(root)
	if !ok {
		return ErrNotBaseRoot
	}

	base.version++
	change := &Changed{version: base.version, payload: payload}
	base.uncommittedEvents = append(base.uncommittedEvents, change)

	root.Apply(change)

	return nil
}

// baseRootHolder is implemented implicitly by any type embedding BaseRoot,
// since Go promotes BaseRoot's methods but we also need the struct itself
// to mutate its fields from RecordChange.
type baseRootHolder interface {
	base() *BaseRoot
}

func (b *BaseRoot) base() *BaseRoot { return b }

func rootBase(root Root) (*BaseRoot, bool) {
	holder, ok := root.(baseRootHolder)
	if !ok {
		return nil, false
	}
	return holder.base(), true
}
