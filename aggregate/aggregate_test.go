package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/streamvault/aggregate"
)

type counter struct {
	aggregate.BaseRoot

	id    aggregate.ID
	total int
}

type incremented struct {
	by int
}

func (c *counter) AggregateID() aggregate.ID {
	return c.id
}

func (c *counter) Apply(change *aggregate.Changed) {
	switch event := change.Payload().(type) {
	case incremented:
		c.total += event.by
	}
}

// notAnAggregate intentionally omits *BaseRoot to exercise ErrNotBaseRoot.
type notAnAggregate struct{}

func (notAnAggregate) AggregateID() aggregate.ID { return "" }
func (notAnAggregate) Apply(*aggregate.Changed)  {}

func TestGenerateID_ProducesDistinctIDs(t *testing.T) {
	assert.NotEqual(t, aggregate.GenerateID(), aggregate.GenerateID())
}

func TestRecordChange_AppliesAndTracksUncommittedEvents(t *testing.T) {
	c := &counter{id: aggregate.GenerateID()}

	require.NoError(t, aggregate.RecordChange(c, incremented{by: 3}))
	require.NoError(t, aggregate.RecordChange(c, incremented{by: 4}))

	assert.Equal(t, 7, c.total)
	assert.Equal(t, 2, c.Version())
	require.Len(t, c.UncommittedEvents(), 2)
	assert.Equal(t, 1, c.UncommittedEvents()[0].Version())
	assert.Equal(t, 2, c.UncommittedEvents()[1].Version())
}

func TestRecordChange_ReturnsErrNotBaseRoot(t *testing.T) {
	err := aggregate.RecordChange(notAnAggregate{}, incremented{by: 1})
	assert.ErrorIs(t, err, aggregate.ErrNotBaseRoot)
}

func TestClearUncommittedEvents_EmptiesBuffer(t *testing.T) {
	c := &counter{id: aggregate.GenerateID()}
	require.NoError(t, aggregate.RecordChange(c, incremented{by: 1}))

	c.ClearUncommittedEvents()

	assert.Empty(t, c.UncommittedEvents())
	assert.Equal(t, 1, c.Version(), "clearing uncommitted events must not roll back the version")
}

func TestReplayFromHistory_RebuildsStateWithoutRecordingChanges(t *testing.T) {
	c := &counter{id: aggregate.GenerateID()}

	aggregate.ReplayFromHistory(c, []interface{}{
		incremented{by: 5},
		incremented{by: 2},
	})

	assert.Equal(t, 7, c.total)
	assert.Equal(t, 2, c.Version())
	assert.Empty(t, c.UncommittedEvents())
}
