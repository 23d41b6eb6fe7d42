package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamvault/streamvault/metadata"
)

func TestMetadata_With_ReturnsCopy(t *testing.T) {
	base := metadata.Metadata{"a": 1}

	extended := base.With("b", 2)

	assert.Equal(t, metadata.Metadata{"a": 1}, base)
	assert.Equal(t, metadata.Metadata{"a": 1, "b": 2}, extended)
}

func TestMetadata_With_OverwritesExistingKey(t *testing.T) {
	base := metadata.Metadata{"a": 1}

	extended := base.With("a", 2)

	assert.Equal(t, metadata.Metadata{"a": 2}, extended)
}

func TestValidField(t *testing.T) {
	tests := []struct {
		field string
		valid bool
	}{
		{"_aggregate_id", true},
		{"account.balance", true},
		{"foo-bar", true},
		{"", false},
		{"field = 1", false},
		{"field' OR '1'='1", false},
		{"field;DROP TABLE x", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, metadata.ValidField(tt.field), "field %q", tt.field)
	}
}
