package metadata

import "fmt"

// Operator is one of the fixed comparison operators a Constraint may use.
// Keeping this a closed enum (rather than accepting an arbitrary string)
// is the matcher's injection boundary: operators never come from
// user-supplied text.
type Operator string

// The supported operators. These map directly onto the dialect-specific
// SQL a persistence strategy renders for a Constraint.
const (
	OpEquals       Operator = "="
	OpNotEquals    Operator = "!="
	OpGreaterThan  Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLessThan     Operator = "<"
	OpLessEqual    Operator = "<="
	OpIn           Operator = "IN"
	OpNotIn        Operator = "NOT IN"
	OpRegex        Operator = "REGEX"
)

// Constraint is a single (field, operator, value) predicate over an
// envelope's metadata.
type Constraint interface {
	Field() string
	Operator() Operator
	Value() interface{}
}

type constraint struct {
	field    string
	operator Operator
	value    interface{}
}

func (c constraint) Field() string      { return c.field }
func (c constraint) Operator() Operator { return c.operator }
func (c constraint) Value() interface{} { return c.value }

// Matcher is an ordered conjunction of Constraints, translated by a
// persistence strategy into a SQL WHERE clause at load time.
type Matcher interface {
	// Iterate calls fn once per constraint, in the order constraints were
	// added.
	Iterate(fn func(Constraint))

	// Len returns the number of constraints held by the matcher.
	Len() int
}

type matcher struct {
	constraints []Constraint
}

// Empty returns a Matcher with no constraints; a load using it is
// unfiltered.
func Empty() Matcher {
	return matcher{}
}

func (m matcher) Iterate(fn func(Constraint)) {
	for _, c := range m.constraints {
		fn(c)
	}
}

func (m matcher) Len() int {
	return len(m.constraints)
}

// WithConstraint returns a new Matcher extending m with an additional
// (field, operator, value) predicate. field must satisfy ValidField;
// callers that build field names from untrusted input must validate
// before calling WithConstraint, since the returned error only reports a
// malformed matcher, never sanitizes the field itself.
func WithConstraint(m Matcher, field string, operator Operator, value interface{}) (Matcher, error) {
	if !ValidField(field) {
		return nil, fmt.Errorf("metadata: invalid constraint field %q", field)
	}

	switch operator {
	case OpEquals, OpNotEquals, OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual, OpIn, OpNotIn, OpRegex:
	default:
		return nil, fmt.Errorf("metadata: unsupported operator %q", operator)
	}

	base, _ := m.(matcher)
	next := make([]Constraint, len(base.constraints), len(base.constraints)+1)
	copy(next, base.constraints)
	next = append(next, constraint{field: field, operator: operator, value: value})

	return matcher{constraints: next}, nil
}

// NewMatcher builds a Matcher from a set of constraints in one call,
// equivalent to folding WithConstraint over Empty(). The first error
// encountered, if any, aborts the build.
func NewMatcher(constraints ...struct {
	Field    string
	Operator Operator
	Value    interface{}
}) (Matcher, error) {
	m := Empty()
	var err error
	for _, c := range constraints {
		m, err = WithConstraint(m, c.Field, c.Operator, c.Value)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}
