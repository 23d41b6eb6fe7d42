package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/streamvault/metadata"
)

func TestEmpty_HasNoConstraints(t *testing.T) {
	m := metadata.Empty()

	assert.Equal(t, 0, m.Len())
}

func TestWithConstraint_AppendsInOrder(t *testing.T) {
	m, err := metadata.WithConstraint(metadata.Empty(), "_aggregate_type", metadata.OpEquals, "bank_account")
	require.NoError(t, err)
	m, err = metadata.WithConstraint(m, "_aggregate_version", metadata.OpGreaterThan, int64(5))
	require.NoError(t, err)

	require.Equal(t, 2, m.Len())

	var fields []string
	m.Iterate(func(c metadata.Constraint) {
		fields = append(fields, c.Field())
	})
	assert.Equal(t, []string{"_aggregate_type", "_aggregate_version"}, fields)
}

func TestWithConstraint_RejectsInvalidField(t *testing.T) {
	_, err := metadata.WithConstraint(metadata.Empty(), "field; DROP TABLE x", metadata.OpEquals, "v")
	assert.Error(t, err)
}

func TestWithConstraint_AcceptsListAndRegexOperators(t *testing.T) {
	m, err := metadata.WithConstraint(metadata.Empty(), "_aggregate_id", metadata.OpIn, []interface{}{"a", "b"})
	require.NoError(t, err)
	m, err = metadata.WithConstraint(m, "_aggregate_id", metadata.OpNotIn, []interface{}{"c"})
	require.NoError(t, err)
	m, err = metadata.WithConstraint(m, "_aggregate_id", metadata.OpRegex, "^acc-")
	require.NoError(t, err)

	require.Equal(t, 3, m.Len())

	var operators []metadata.Operator
	m.Iterate(func(c metadata.Constraint) {
		operators = append(operators, c.Operator())
	})
	assert.Equal(t, []metadata.Operator{metadata.OpIn, metadata.OpNotIn, metadata.OpRegex}, operators)
}

func TestValuesOf_NormalizesSlicesArraysAndScalars(t *testing.T) {
	assert.Equal(t, []interface{}{"a", "b"}, metadata.ValuesOf([]interface{}{"a", "b"}))
	assert.Equal(t, []interface{}{"a", "b"}, metadata.ValuesOf([]string{"a", "b"}))
	assert.Equal(t, []interface{}{int64(1), int64(2)}, metadata.ValuesOf([2]int64{1, 2}))
	assert.Equal(t, []interface{}{"solo"}, metadata.ValuesOf("solo"))
}

func TestWithConstraint_RejectsUnsupportedOperator(t *testing.T) {
	_, err := metadata.WithConstraint(metadata.Empty(), "_aggregate_id", metadata.Operator("LIKE"), "v")
	assert.Error(t, err)
}

func TestWithConstraint_DoesNotMutateOriginalMatcher(t *testing.T) {
	original := metadata.Empty()

	extended, err := metadata.WithConstraint(original, "_aggregate_id", metadata.OpEquals, "1")
	require.NoError(t, err)

	assert.Equal(t, 0, original.Len())
	assert.Equal(t, 1, extended.Len())
}

func TestNewMatcher_FoldsConstraints(t *testing.T) {
	m, err := metadata.NewMatcher(
		struct {
			Field    string
			Operator metadata.Operator
			Value    interface{}
		}{"_aggregate_type", metadata.OpEquals, "bank_account"},
		struct {
			Field    string
			Operator metadata.Operator
			Value    interface{}
		}{"_aggregate_version", metadata.OpGreaterEqual, int64(1)},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
}

func TestNewMatcher_AbortsOnFirstError(t *testing.T) {
	_, err := metadata.NewMatcher(
		struct {
			Field    string
			Operator metadata.Operator
			Value    interface{}
		}{"_aggregate_type", metadata.OpEquals, "bank_account"},
		struct {
			Field    string
			Operator metadata.Operator
			Value    interface{}
		}{"bad field", metadata.OpEquals, "v"},
	)
	assert.Error(t, err)
}
