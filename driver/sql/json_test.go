package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/streamvault/metadata"
)

func TestDecodeJSONValue_ParsesOpenDocuments(t *testing.T) {
	v, err := DecodeJSONValue([]byte(`{"amount":10,"tags":["a","b"]}`))
	require.NoError(t, err)

	m, ok := v.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(10), m["amount"])
	assert.Equal(t, []interface{}{"a", "b"}, m["tags"])
}

func TestDecodeJSONValue_RejectsMalformedInput(t *testing.T) {
	_, err := DecodeJSONValue([]byte(`{"amount":`))
	assert.Error(t, err)
}

func TestDecodeMetadata_ObjectNullAndScalar(t *testing.T) {
	meta, err := DecodeMetadata([]byte(`{"_aggregate_id":"acc-1"}`))
	require.NoError(t, err)
	assert.Equal(t, metadata.Metadata{"_aggregate_id": "acc-1"}, meta)

	meta, err = DecodeMetadata([]byte(`null`))
	require.NoError(t, err)
	assert.Equal(t, metadata.Metadata{}, meta)

	_, err = DecodeMetadata([]byte(`42`))
	assert.Error(t, err)
}
