// Package sql defines the dialect-neutral contracts the postgres and mysql
// persistence backends implement: the persistence strategy, the message
// factory, and the thin Queryer/Execer seams used to keep the backends
// testable against go-sqlmock without a live database.
package sql

import (
	"context"
	"database/sql"

	"github.com/streamvault/streamvault"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// QueryExecer composes Queryer and Execer, the minimal surface a
// persistence backend needs from its connection.
type QueryExecer interface {
	Queryer
	Execer
}

// PersistenceStrategy is the dialect/layout policy a backend implements:
// DDL, column layout, row flattening, unique-violation codes, and
// deterministic table naming.
type PersistenceStrategy interface {
	// CreateSchema returns the ordered DDL statements needed to create the
	// physical table (and any supporting indexes) for tableName.
	CreateSchema(tableName string) []string

	// ColumnNames returns the ordered column identifiers used for inserts.
	// It includes every column PrepareData supplies a value for, including
	// derived ones (like "no" in the aggregate-stream variant, taken from
	// metadata); columns the database fills itself are left out.
	ColumnNames() []string

	// PrepareData flattens messages into a single positional parameter
	// vector, row-major, matching ColumnNames repeated once per message.
	PrepareData(messages []streamvault.Message) ([]interface{}, error)

	// IsUniqueViolation reports whether err represents a unique-index
	// conflict under this strategy's dialect.
	IsUniqueViolation(err error) bool

	// GenerateTableName returns the deterministic physical table name for
	// streamName: "_" + sha1(streamName).
	GenerateTableName(streamName streamvault.StreamName) (string, error)

	// QuoteIdentifier quotes a table/column identifier for this dialect.
	QuoteIdentifier(identifier string) string

	// Placeholder returns the bound-parameter placeholder for the
	// position'th parameter (1-based) of a statement: "$1", "$2", ... for
	// postgres, "?" for every position under mysql.
	Placeholder(position int) string
}

// Direction selects the ordering of a load query. Each dialect package
// renders its own SELECT using this to pick the comparison operator and
// ORDER BY clause; metadata matcher predicates are built once per call
// regardless of direction.
type Direction int

// The two load directions.
const (
	Forward Direction = iota
	Reverse
)

// CompareOperator returns the "no" comparison operator for the direction:
// ">=" for Forward, "<=" for Reverse.
func (d Direction) CompareOperator() string {
	if d == Reverse {
		return "<="
	}
	return ">="
}

// OrderBy returns the ORDER BY direction keyword: "ASC" for Forward, "DESC"
// for Reverse.
func (d Direction) OrderBy() string {
	if d == Reverse {
		return "DESC"
	}
	return "ASC"
}
