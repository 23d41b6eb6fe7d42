package middleware_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/streamvault"
	"github.com/streamvault/streamvault/metadata"
	"github.com/streamvault/streamvault/middleware"
)

// stubStore is a minimal streamvault.EventStore double used to verify the
// decorators call through and react to errors correctly.
type stubStore struct {
	createErr error
	deleted   streamvault.StreamName
}

func (s *stubStore) Create(context.Context, streamvault.StreamName, interface{}, []streamvault.Message) error {
	return s.createErr
}
func (s *stubStore) AppendTo(context.Context, streamvault.StreamName, []streamvault.Message) error {
	return nil
}
func (s *stubStore) Delete(_ context.Context, streamName streamvault.StreamName) error {
	s.deleted = streamName
	return nil
}
func (s *stubStore) HasStream(context.Context, streamvault.StreamName) bool { return true }
func (s *stubStore) FetchStreamMetadata(context.Context, streamvault.StreamName) (interface{}, bool) {
	return nil, false
}
func (s *stubStore) Load(context.Context, streamvault.StreamName, int64, *uint, metadata.Matcher) (streamvault.EventStream, error) {
	return nil, nil
}
func (s *stubStore) LoadReverse(context.Context, streamvault.StreamName, int64, *uint, metadata.Matcher) (streamvault.EventStream, error) {
	return nil, nil
}

var _ streamvault.EventStore = &stubStore{}

func TestLoggingEventStore_PassesThroughAndReportsErrors(t *testing.T) {
	stub := &stubStore{createErr: &streamvault.StreamExistsError{StreamName: "account-1"}}
	store := middleware.NewLoggingEventStore(stub, streamvault.NopLogger)

	err := store.Create(context.Background(), "account-1", nil, nil)
	require.Error(t, err)

	require.NoError(t, store.Delete(context.Background(), "account-1"))
	assert.Equal(t, streamvault.StreamName("account-1"), stub.deleted)
}

func TestMetricsEventStore_RecordsConcurrencyErrors(t *testing.T) {
	stub := &stubStore{createErr: &streamvault.ConcurrencyError{StreamName: "account-1"}}
	reg := prometheus.NewRegistry()
	store := middleware.NewMetricsEventStore(stub, reg)

	err := store.Create(context.Background(), "account-1", nil, nil)
	require.Error(t, err)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "streamvault_concurrency_errors_total" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found, "concurrency_errors_total must be registered and incremented")
}
