// Package metadata implements the open metadata mapping carried by every
// event envelope and the composable predicate matcher used to filter
// streams at load time.
package metadata

import (
	"reflect"
	"regexp"
)

// Well-known metadata keys recognized by the persistence strategies.
const (
	AggregateVersion = "_aggregate_version"
	AggregateID      = "_aggregate_id"
	AggregateType    = "_aggregate_type"
)

// Metadata is the open, JSON-encodable mapping persisted alongside every
// event envelope.
type Metadata map[string]interface{}

// With returns a copy of m with key set to value.
func (m Metadata) With(key string, value interface{}) Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

// fieldPattern is the injection boundary for constraint field names:
// ASCII letters, digits, underscores, dashes and dots only. No operator,
// bracket, quote or whitespace character can appear here.
var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidField reports whether field is safe to interpolate into a SQL
// JSON-accessor expression without further escaping.
func ValidField(field string) bool {
	return field != "" && fieldPattern.MatchString(field)
}

// ValuesOf normalizes the value of an OpIn/OpNotIn constraint into its
// individual elements, so a dialect can bind one placeholder per element
// instead of a single placeholder a driver can't expand into a list. Accepts
// []interface{} directly, any other slice/array type via reflection, and
// falls back to treating a bare scalar as a one-element list.
func ValuesOf(value interface{}) []interface{} {
	if values, ok := value.([]interface{}); ok {
		return values
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{value}
	}

	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
