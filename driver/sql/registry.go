package sql

import (
	"context"
	gosql "database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/streamvault/streamvault"
)

// DefaultEventStreamsTable is the registry table name used when a store is
// constructed without an explicit WithEventStreamsTable option.
const DefaultEventStreamsTable = "event_streams"

// Registry manages the single event_streams table mapping a logical stream
// name (real_stream_name, the registry's primary key) to its
// creation-time metadata. The physical table a stream's rows live in is
// never stored: it is always the deterministic "_"+sha1(real_stream_name)
// a PersistenceStrategy computes on demand.
type Registry struct {
	table    string
	strategy PersistenceStrategy
}

// NewRegistry returns a Registry backed by tableName, quoted per strategy's
// dialect.
func NewRegistry(tableName string, strategy PersistenceStrategy) *Registry {
	if tableName == "" {
		tableName = DefaultEventStreamsTable
	}
	return &Registry{table: tableName, strategy: strategy}
}

// TableName returns the registry's own table name, unquoted.
func (r *Registry) TableName() string {
	return r.table
}

// CreateSchema returns the DDL statement creating the registry table, if it
// does not already exist.
func (r *Registry) CreateSchema() string {
	return `CREATE TABLE IF NOT EXISTS ` + r.strategy.QuoteIdentifier(r.table) + ` (
	real_stream_name VARCHAR(255) NOT NULL,
	stream_name VARCHAR(255) NOT NULL,
	metadata JSON,
	PRIMARY KEY (real_stream_name)
)`
}

// Insert registers streamName and its creation metadata. Must run inside
// the same transaction as the physical table's CREATE TABLE and its
// initial insert, so a stream is either fully absent or fully present.
func (r *Registry) Insert(ctx context.Context, exec Execer, streamName streamvault.StreamName, metadata interface{}) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return errors.Wrap(err, "marshal stream metadata")
	}

	query := `INSERT INTO ` + r.strategy.QuoteIdentifier(r.table) +
		` (real_stream_name, stream_name, metadata) VALUES (` +
		r.strategy.Placeholder(1) + `, ` + r.strategy.Placeholder(2) + `, ` + r.strategy.Placeholder(3) + `)`

	_, err = exec.ExecContext(ctx, query, string(streamName), string(streamName), data)
	return err
}

// Delete removes streamName's registry row.
func (r *Registry) Delete(ctx context.Context, exec Execer, streamName streamvault.StreamName) error {
	query := `DELETE FROM ` + r.strategy.QuoteIdentifier(r.table) + ` WHERE real_stream_name = ` + r.strategy.Placeholder(1)
	_, err := exec.ExecContext(ctx, query, string(streamName))
	return err
}

// FetchMetadata returns the metadata JSON stored for streamName, or false
// if no registry row exists.
func (r *Registry) FetchMetadata(ctx context.Context, q Queryer, streamName streamvault.StreamName) (json.RawMessage, bool, error) {
	query := `SELECT metadata FROM ` + r.strategy.QuoteIdentifier(r.table) + ` WHERE real_stream_name = ` + r.strategy.Placeholder(1)

	var raw []byte
	err := q.QueryRowContext(ctx, query, string(streamName)).Scan(&raw)

	if errors.Is(err, gosql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(raw), true, nil
}

// Exists reports whether a registry row for streamName exists.
func (r *Registry) Exists(ctx context.Context, q Queryer, streamName streamvault.StreamName) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM ` + r.strategy.QuoteIdentifier(r.table) + ` WHERE real_stream_name = ` + r.strategy.Placeholder(1) + `)`

	var exists bool
	if err := q.QueryRowContext(ctx, query, string(streamName)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// StreamsWithPrefix returns every registered stream whose name starts with
// prefix+"-", used to compute a fromCategory/fromCategories selection set.
// Internal streams (leading "$") are never returned, since a category
// prefix never starts with "$".
func (r *Registry) StreamsWithPrefix(ctx context.Context, q Queryer, prefix string) ([]streamvault.StreamName, error) {
	query := `SELECT real_stream_name FROM ` + r.strategy.QuoteIdentifier(r.table) + ` WHERE real_stream_name LIKE ` + r.strategy.Placeholder(1)
	return r.queryStreamNames(ctx, q, query, prefix+"-%")
}

// AllStreams returns every registered stream that is not internal
// (leading "$"), used to compute a fromAll selection set.
func (r *Registry) AllStreams(ctx context.Context, q Queryer) ([]streamvault.StreamName, error) {
	query := `SELECT real_stream_name FROM ` + r.strategy.QuoteIdentifier(r.table) + ` WHERE real_stream_name NOT LIKE ` + r.strategy.Placeholder(1)
	return r.queryStreamNames(ctx, q, query, "$%")
}

func (r *Registry) queryStreamNames(ctx context.Context, q Queryer, query string, args ...interface{}) ([]streamvault.StreamName, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []streamvault.StreamName
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, streamvault.StreamName(name))
	}
	return names, rows.Err()
}
