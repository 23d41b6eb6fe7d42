package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/streamvault"
	"github.com/streamvault/streamvault/metadata"
	"github.com/streamvault/streamvault/mocks"
	"github.com/streamvault/streamvault/query"
)

// memoryStore is a minimal in-memory streamvault.ReadOnlyEventStore used to
// exercise the query engine without a database.
type memoryStore struct {
	streams map[streamvault.StreamName][]streamvault.Message
}

func newMemoryStore() *memoryStore {
	return &memoryStore{streams: make(map[streamvault.StreamName][]streamvault.Message)}
}

func (s *memoryStore) seed(name streamvault.StreamName, events ...streamvault.Message) {
	s.streams[name] = append(s.streams[name], events...)
}

func (s *memoryStore) HasStream(_ context.Context, name streamvault.StreamName) bool {
	_, ok := s.streams[name]
	return ok
}

func (s *memoryStore) FetchStreamMetadata(context.Context, streamvault.StreamName) (interface{}, bool) {
	return nil, false
}

func (s *memoryStore) Load(_ context.Context, name streamvault.StreamName, fromNumber int64, count *uint, _ metadata.Matcher) (streamvault.EventStream, error) {
	events, ok := s.streams[name]
	if !ok {
		return nil, &streamvault.StreamNotFoundError{StreamName: name}
	}
	return &memoryStream{events: events, next: fromNumber}, nil
}

func (s *memoryStore) LoadReverse(context.Context, streamvault.StreamName, int64, *uint, metadata.Matcher) (streamvault.EventStream, error) {
	return nil, streamvault.InvalidArgumentError("not implemented")
}

func (s *memoryStore) StreamsWithPrefix(_ context.Context, prefix string) ([]streamvault.StreamName, error) {
	var names []streamvault.StreamName
	for name := range s.streams {
		if len(name) > len(prefix) && string(name)[:len(prefix)+1] == prefix+"-" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *memoryStore) AllStreams(context.Context) ([]streamvault.StreamName, error) {
	var names []streamvault.StreamName
	for name := range s.streams {
		if !name.IsInternal() {
			names = append(names, name)
		}
	}
	return names, nil
}

var _ streamvault.ReadOnlyEventStore = &memoryStore{}
var _ streamvault.StreamFinder = &memoryStore{}

// memoryStream walks a fixed slice of messages starting at position next.
type memoryStream struct {
	events []streamvault.Message
	next   int64
	cur    streamvault.Message
}

func (s *memoryStream) Next() bool {
	if s.next >= int64(len(s.events)) {
		return false
	}
	s.cur = s.events[s.next]
	s.next++
	return true
}

func (s *memoryStream) Err() error   { return nil }
func (s *memoryStream) Close() error { return nil }
func (s *memoryStream) Message() (streamvault.Message, int64, error) {
	return s.cur, s.next - 1, nil
}

func depositedEvent(amount int) *mocks.DummyMessage {
	return mocks.NewDummyMessage(streamvault.GenerateUUID(), "deposited", map[string]interface{}{"amount": amount}, metadata.Metadata{}, time.Now())
}

func TestQuery_FromStream_SumsDeposits(t *testing.T) {
	store := newMemoryStore()
	store.seed("account-1", depositedEvent(10), depositedEvent(5), depositedEvent(25))

	q := query.New(store, func() query.State {
		return query.State{"total": 0}
	}).FromStream("account-1").When(map[string]query.Handler{
		"deposited": func(state query.State, event streamvault.Message, _ int64) query.State {
			amount := event.Payload().(map[string]interface{})["amount"].(int)
			state["total"] = state["total"].(int) + amount
			return state
		},
	})

	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, 40, q.State()["total"])
}

func TestQuery_Run_ResumesFromLastCursor(t *testing.T) {
	store := newMemoryStore()
	store.seed("account-1", depositedEvent(10))

	var seen int
	q := query.New(store, nil).FromStream("account-1").WhenAny(func(state query.State, _ streamvault.Message, _ int64) query.State {
		seen++
		return state
	})

	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, 1, seen)

	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, 1, seen, "second run must not reprocess already-seen events")

	store.seed("account-1", depositedEvent(1))
	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, 2, seen, "third run only processes the newly appended event")
}

func TestQuery_Reset_RereadsFromStart(t *testing.T) {
	store := newMemoryStore()
	store.seed("account-1", depositedEvent(10))

	var seen int
	q := query.New(store, nil).FromStream("account-1").WhenAny(func(state query.State, _ streamvault.Message, _ int64) query.State {
		seen++
		return state
	})

	require.NoError(t, q.Run(context.Background()))
	q.Reset()
	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, 2, seen)
}

func TestQuery_FromStreams_FairRoundRobin(t *testing.T) {
	store := newMemoryStore()
	event := func(name string) streamvault.Message {
		return mocks.NewDummyMessage(streamvault.GenerateUUID(), name, nil, metadata.Metadata{}, time.Now())
	}
	store.seed("account-1", event("from-1"), event("from-1"))
	store.seed("account-2", event("from-2"), event("from-2"), event("from-2"))

	var order []string
	q := query.New(store, nil).FromStreams("account-1", "account-2").WhenAny(func(state query.State, event streamvault.Message, _ int64) query.State {
		order = append(order, event.MessageName())
		return state
	})

	require.NoError(t, q.Run(context.Background()))
	assert.Len(t, order, 5)
	assert.Equal(t, []string{"from-1", "from-2", "from-1", "from-2", "from-2"}, order)
}

func TestQuery_Stop_HaltsBeforeNextEvent(t *testing.T) {
	store := newMemoryStore()
	store.seed("account-1", depositedEvent(1), depositedEvent(1), depositedEvent(1))

	var processed int
	q := query.New(store, nil).FromStream("account-1")
	q = q.WhenAny(func(state query.State, _ streamvault.Message, _ int64) query.State {
		processed++
		if processed == 1 {
			q.Stop()
		}
		return state
	})

	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, 1, processed)
}

func TestQuery_FromCategory_SelectsPrefixedStreams(t *testing.T) {
	store := newMemoryStore()
	store.seed("account-1", depositedEvent(1))
	store.seed("account-2", depositedEvent(1))
	store.seed("widget-1", depositedEvent(1))

	var total int
	q := query.New(store, nil).FromCategory("account").WhenAny(func(state query.State, _ streamvault.Message, _ int64) query.State {
		total++
		return state
	})

	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, 2, total)
}

func TestQuery_FromAll_SkipsInternalStreams(t *testing.T) {
	store := newMemoryStore()
	store.seed("account-1", depositedEvent(1))
	store.seed("$internal", depositedEvent(1))

	var total int
	q := query.New(store, nil).FromAll().WhenAny(func(state query.State, _ streamvault.Message, _ int64) query.State {
		total++
		return state
	})

	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, 1, total)
}

func TestQuery_HandlerPanic_PreservesLastGoodCursor(t *testing.T) {
	store := newMemoryStore()
	store.seed("account-1", depositedEvent(1), depositedEvent(1))

	var processed int
	q := query.New(store, nil).FromStream("account-1").WhenAny(func(state query.State, _ streamvault.Message, _ int64) query.State {
		processed++
		if processed == 2 {
			panic("boom")
		}
		return state
	})

	err := q.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, processed, "the panicking second event was attempted once")

	processed = 0
	require.NoError(t, q.Run(context.Background()), "retrying no longer panics")
	assert.Equal(t, 1, processed, "only the previously-failing event is reprocessed, not the first")
}
