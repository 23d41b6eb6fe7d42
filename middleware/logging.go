// Package middleware provides EventStore-shaped decorators: a structured
// logging wrapper and a Prometheus metrics wrapper. Both compose with a
// plain function call and add per-operation logging and metrics on top of
// the few events a persistence backend logs inline itself.
package middleware

import (
	"context"

	"github.com/streamvault/streamvault"
	"github.com/streamvault/streamvault/metadata"
)

// LoggingEventStore wraps a streamvault.EventStore, logging every Create,
// AppendTo, Delete, Load and LoadReverse call at Debug on success and Warn
// on failure with the operation and stream name as structured fields.
// HasStream, FetchStreamMetadata and the StreamFinder methods pass through
// without logging.
type LoggingEventStore struct {
	next   streamvault.EventStore
	logger streamvault.Logger
}

// NewLoggingEventStore wraps next, logging through logger.
func NewLoggingEventStore(next streamvault.EventStore, logger streamvault.Logger) *LoggingEventStore {
	if logger == nil {
		logger = streamvault.NopLogger
	}
	return &LoggingEventStore{next: next, logger: logger}
}

var _ streamvault.EventStore = &LoggingEventStore{}

func (l *LoggingEventStore) fields(op string, streamName streamvault.StreamName) streamvault.Logger {
	return l.logger.WithField("op", op).WithField("stream", streamName)
}

// Create implements streamvault.EventStore.
func (l *LoggingEventStore) Create(ctx context.Context, streamName streamvault.StreamName, meta interface{}, events []streamvault.Message) error {
	err := l.next.Create(ctx, streamName, meta, events)
	logged := l.fields("create", streamName).WithField("events", len(events))
	if err != nil {
		logged.WithError(err).Warn("create failed")
		return err
	}
	logged.Debug("create succeeded")
	return nil
}

// AppendTo implements streamvault.EventStore.
func (l *LoggingEventStore) AppendTo(ctx context.Context, streamName streamvault.StreamName, events []streamvault.Message) error {
	err := l.next.AppendTo(ctx, streamName, events)
	logged := l.fields("appendTo", streamName).WithField("events", len(events))
	if err != nil {
		logged.WithError(err).Warn("appendTo failed")
		return err
	}
	logged.Debug("appendTo succeeded")
	return nil
}

// Delete implements streamvault.EventStore.
func (l *LoggingEventStore) Delete(ctx context.Context, streamName streamvault.StreamName) error {
	err := l.next.Delete(ctx, streamName)
	logged := l.fields("delete", streamName)
	if err != nil {
		logged.WithError(err).Warn("delete failed")
		return err
	}
	logged.Debug("delete succeeded")
	return nil
}

// HasStream implements streamvault.ReadOnlyEventStore.
func (l *LoggingEventStore) HasStream(ctx context.Context, streamName streamvault.StreamName) bool {
	return l.next.HasStream(ctx, streamName)
}

// FetchStreamMetadata implements streamvault.ReadOnlyEventStore.
func (l *LoggingEventStore) FetchStreamMetadata(ctx context.Context, streamName streamvault.StreamName) (interface{}, bool) {
	return l.next.FetchStreamMetadata(ctx, streamName)
}

// Load implements streamvault.ReadOnlyEventStore.
func (l *LoggingEventStore) Load(ctx context.Context, streamName streamvault.StreamName, fromNumber int64, count *uint, matcher metadata.Matcher) (streamvault.EventStream, error) {
	stream, err := l.next.Load(ctx, streamName, fromNumber, count, matcher)
	logged := l.fields("load", streamName)
	if err != nil {
		logged.WithError(err).Warn("load failed")
		return nil, err
	}
	logged.Debug("load opened")
	return stream, nil
}

// LoadReverse implements streamvault.ReadOnlyEventStore.
func (l *LoggingEventStore) LoadReverse(ctx context.Context, streamName streamvault.StreamName, fromNumber int64, count *uint, matcher metadata.Matcher) (streamvault.EventStream, error) {
	stream, err := l.next.LoadReverse(ctx, streamName, fromNumber, count, matcher)
	logged := l.fields("loadReverse", streamName)
	if err != nil {
		logged.WithError(err).Warn("loadReverse failed")
		return nil, err
	}
	logged.Debug("loadReverse opened")
	return stream, nil
}

// StreamsWithPrefix forwards to next if next implements streamvault.StreamFinder.
func (l *LoggingEventStore) StreamsWithPrefix(ctx context.Context, prefix string) ([]streamvault.StreamName, error) {
	finder, ok := l.next.(streamvault.StreamFinder)
	if !ok {
		return nil, &streamvault.ExtensionNotAvailableError{Extension: "StreamFinder"}
	}
	return finder.StreamsWithPrefix(ctx, prefix)
}

// AllStreams forwards to next if next implements streamvault.StreamFinder.
func (l *LoggingEventStore) AllStreams(ctx context.Context) ([]streamvault.StreamName, error) {
	finder, ok := l.next.(streamvault.StreamFinder)
	if !ok {
		return nil, &streamvault.ExtensionNotAvailableError{Extension: "StreamFinder"}
	}
	return finder.AllStreams(ctx)
}

var _ streamvault.StreamFinder = &LoggingEventStore{}
