package zap_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/streamvault/streamvault"
	streamvaultzap "github.com/streamvault/streamvault/extension/zap"
)

func TestAdapter_EmitsAccumulatedFieldsWithEntry(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	var l streamvault.Logger = streamvaultzap.Wrap(zap.New(core))
	l = l.WithField("stream", "account-1").WithError(errors.New("boom"))
	l.Warn("append failed")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "append failed", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "account-1", fields["stream"])
	assert.Equal(t, "boom", fields["error"])
}

func TestAdapter_BranchedChainsDoNotShareFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	base := streamvaultzap.Wrap(zap.New(core)).WithField("op", "appendTo")
	base.WithField("stream", "account-1").Info("first")
	base.WithField("stream", "account-2").Info("second")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "account-1", entries[0].ContextMap()["stream"])
	assert.Equal(t, "account-2", entries[1].ContextMap()["stream"])
	assert.Equal(t, "appendTo", entries[1].ContextMap()["op"])
}

func TestAdapter_WithFieldsCarriesEveryEntry(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	streamvaultzap.Wrap(zap.New(core)).
		WithFields(streamvault.Fields{"stream": "account-1", "count": 3}).
		Debug("appended events")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "account-1", fields["stream"])
	assert.EqualValues(t, 3, fields["count"])
}
