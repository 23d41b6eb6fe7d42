// Package query implements the in-memory projection engine that folds one
// or more event streams into a mutable state mapping.
package query

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/streamvault/streamvault"
)

// State is the mutable mapping a query folds its events into.
type State map[string]interface{}

// Handler folds a single event, at the given stream position, into state
// and returns the new state.
type Handler func(state State, event streamvault.Message, position int64) State

// InitHandler produces the query's initial state.
type InitHandler func() State

type selectorKind int

const (
	selectorNone selectorKind = iota
	selectorStreams
	selectorCategories
	selectorAll
)

// Query is a resumable, in-memory projection bound to a single
// streamvault.ReadOnlyEventStore. It is not safe for concurrent Run calls;
// State and Stop may be called from within a running handler.
type Query struct {
	mu sync.Mutex

	store  streamvault.ReadOnlyEventStore
	logger streamvault.Logger

	init       InitHandler
	handlers   map[string]Handler
	anyHandler Handler

	kind     selectorKind
	streams  []streamvault.StreamName
	prefixes []string

	state   State
	cursors map[streamvault.StreamName]int64

	running bool
	stopped bool
}

// Option configures a Query at construction time.
type Option func(*Query)

// WithLogger attaches a Logger; the default is streamvault.NopLogger.
func WithLogger(logger streamvault.Logger) Option {
	return func(q *Query) { q.logger = logger }
}

// New creates a query against store with the given initial-state factory.
// A nil init defaults to an empty State.
func New(store streamvault.ReadOnlyEventStore, init InitHandler, opts ...Option) *Query {
	if init == nil {
		init = func() State { return State{} }
	}

	q := &Query{
		store:   store,
		init:    init,
		logger:  streamvault.NopLogger,
		cursors: make(map[streamvault.StreamName]int64),
	}
	q.state = q.init()

	for _, opt := range opts {
		opt(q)
	}
	return q
}

// FromStream selects a single stream's events in order.
func (q *Query) FromStream(name streamvault.StreamName) *Query {
	q.kind = selectorStreams
	q.streams = []streamvault.StreamName{name}
	return q
}

// FromStreams selects several streams, merged one event at a time per
// non-exhausted stream in round-robin order.
func (q *Query) FromStreams(names ...streamvault.StreamName) *Query {
	q.kind = selectorStreams
	q.streams = append([]streamvault.StreamName(nil), names...)
	return q
}

// FromCategory selects every stream whose real name starts with
// prefix+"-". The selection set is computed fresh at Run.
func (q *Query) FromCategory(prefix string) *Query {
	q.kind = selectorCategories
	q.prefixes = []string{prefix}
	return q
}

// FromCategories selects the union of several categories.
func (q *Query) FromCategories(prefixes ...string) *Query {
	q.kind = selectorCategories
	q.prefixes = append([]string(nil), prefixes...)
	return q
}

// FromAll selects every stream not beginning with "$".
func (q *Query) FromAll() *Query {
	q.kind = selectorAll
	return q
}

// When dispatches by message name; events whose name is not a key of
// handlers are skipped but still advance the stream's cursor.
func (q *Query) When(handlers map[string]Handler) *Query {
	q.handlers = handlers
	q.anyHandler = nil
	return q
}

// WhenAny applies handler to every event, regardless of name.
func (q *Query) WhenAny(handler Handler) *Query {
	q.anyHandler = handler
	q.handlers = nil
	return q
}

// State returns the query's current folded state.
func (q *Query) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Reset drops state and all remembered cursors back to their initial
// values. A subsequent Run re-reads every selected stream from position 0.
func (q *Query) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state = q.init()
	q.cursors = make(map[streamvault.StreamName]int64)
	q.stopped = false
}

// Stop requests cooperative termination. The handler currently executing
// completes; Run returns before the next event is processed. Safe to call
// from within a handler or from another goroutine.
func (q *Query) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
}

func (q *Query) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

func (q *Query) cursorFor(name streamvault.StreamName) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cursors[name]
}

func (q *Query) advanceCursor(name streamvault.StreamName, position int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cursors[name] = position + 1
}

// streamCursor pairs an open iterator with the logical stream it reads.
type streamCursor struct {
	name   streamvault.StreamName
	stream streamvault.EventStream
}

// Run executes the query to completion: it processes every event of every
// selected stream until all iterators are exhausted or a handler calls
// Stop. A handler fault aborts Run immediately; cursors retain the last
// successfully processed position, so a following Run reprocesses the
// failing event.
func (q *Query) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return streamvault.InvalidArgumentError("query is already running")
	}
	q.running = true
	q.stopped = false
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	if q.kind == selectorNone {
		return streamvault.InvalidArgumentError("query has no stream selector")
	}

	names, err := q.resolveStreams(ctx)
	if err != nil {
		return err
	}

	cursors := make([]*streamCursor, 0, len(names))
	defer func() { closeCursors(cursors) }()

	for _, name := range names {
		stream, err := q.store.Load(ctx, name, q.cursorFor(name), nil, nil)
		if err != nil {
			var notFound *streamvault.StreamNotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return &streamvault.RuntimeError{Op: "open projection stream", Cause: err}
		}
		cursors = append(cursors, &streamCursor{name: name, stream: stream})
	}

	idx := 0
	for len(cursors) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if q.isStopped() {
			return nil
		}
		if idx >= len(cursors) {
			idx = 0
		}

		cursor := cursors[idx]
		if !cursor.stream.Next() {
			if err := cursor.stream.Err(); err != nil {
				return &streamvault.RuntimeError{Op: "read projection stream", Cause: err}
			}
			_ = cursor.stream.Close()
			cursors = append(cursors[:idx], cursors[idx+1:]...)
			continue
		}

		msg, position, err := cursor.stream.Message()
		if err != nil {
			return &streamvault.RuntimeError{Op: "decode projection event", Cause: err}
		}

		if err := q.apply(msg, position); err != nil {
			q.logger.WithField("stream", cursor.name).WithError(err).Warn("projection handler failed")
			return err
		}

		q.advanceCursor(cursor.name, position)
		idx++
	}

	return nil
}

func (q *Query) apply(msg streamvault.Message, position int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &streamvault.RuntimeError{Op: "projection handler", Cause: errors.Errorf("%v", r)}
		}
	}()

	q.mu.Lock()
	handler := q.anyHandler
	if handler == nil && q.handlers != nil {
		handler = q.handlers[msg.MessageName()]
	}
	state := q.state
	q.mu.Unlock()

	if handler == nil {
		return nil
	}

	next := handler(state, msg, position)

	q.mu.Lock()
	q.state = next
	q.mu.Unlock()
	return nil
}

func (q *Query) resolveStreams(ctx context.Context) ([]streamvault.StreamName, error) {
	switch q.kind {
	case selectorStreams:
		return q.streams, nil

	case selectorCategories:
		finder, ok := q.store.(streamvault.StreamFinder)
		if !ok {
			return nil, &streamvault.ExtensionNotAvailableError{Extension: "StreamFinder"}
		}

		seen := make(map[streamvault.StreamName]bool)
		var names []streamvault.StreamName
		for _, prefix := range q.prefixes {
			found, err := finder.StreamsWithPrefix(ctx, prefix)
			if err != nil {
				return nil, &streamvault.RuntimeError{Op: "list category streams", Cause: err}
			}
			for _, name := range found {
				if seen[name] {
					continue
				}
				seen[name] = true
				names = append(names, name)
			}
		}
		sortStreamNames(names)
		return names, nil

	case selectorAll:
		finder, ok := q.store.(streamvault.StreamFinder)
		if !ok {
			return nil, &streamvault.ExtensionNotAvailableError{Extension: "StreamFinder"}
		}

		names, err := finder.AllStreams(ctx)
		if err != nil {
			return nil, &streamvault.RuntimeError{Op: "list all streams", Cause: err}
		}
		sortStreamNames(names)
		return names, nil

	default:
		return nil, streamvault.InvalidArgumentError("query has no stream selector")
	}
}

func sortStreamNames(names []streamvault.StreamName) {
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
}

func closeCursors(cursors []*streamCursor) {
	for _, c := range cursors {
		_ = c.stream.Close()
	}
}
