package mysql

import (
	"bytes"
	"context"
	gosql "database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/streamvault/streamvault"
	driversql "github.com/streamvault/streamvault/driver/sql"
	"github.com/streamvault/streamvault/metadata"
)

// Ensure EventStore satisfies the streamvault.EventStore contract.
var _ streamvault.EventStore = &EventStore{}

// Ensure EventStore also satisfies the optional category/all-stream
// listing capability the query engine probes for.
var _ streamvault.StreamFinder = &EventStore{}

// Option configures an EventStore at construction time.
type Option func(*EventStore)

// WithLoadBatchSize overrides the default 10000-row page size used by
// Load/LoadReverse iterators.
func WithLoadBatchSize(size uint) Option {
	return func(e *EventStore) { e.loadBatchSize = size }
}

// WithEventStreamsTable overrides the default "event_streams" registry
// table name.
func WithEventStreamsTable(table string) Option {
	return func(e *EventStore) { e.registry = driversql.NewRegistry(table, e.strategy) }
}

// WithLogger attaches a Logger; the default is streamvault.NopLogger.
func WithLogger(logger streamvault.Logger) Option {
	return func(e *EventStore) { e.logger = logger }
}

// EventStore is the MySQL implementation of streamvault.EventStore.
type EventStore struct {
	db            *gosql.DB
	strategy      driversql.PersistenceStrategy
	factory       *MessageFactory
	registry      *driversql.Registry
	loadBatchSize uint
	logger        streamvault.Logger

	columns            string
	insertPlaceholders map[int]string
}

// NewEventStore constructs a MySQL EventStore. strategy selects
// single-stream or aggregate-stream layout.
func NewEventStore(db *gosql.DB, strategy driversql.PersistenceStrategy, opts ...Option) (*EventStore, error) {
	if db == nil {
		return nil, streamvault.InvalidArgumentError("db")
	}
	if strategy == nil {
		return nil, streamvault.InvalidArgumentError("strategy")
	}

	e := &EventStore{
		db:                 db,
		strategy:           strategy,
		factory:            NewMessageFactory(),
		loadBatchSize:      10000,
		logger:             streamvault.NopLogger,
		columns:            strings.Join(strategy.ColumnNames(), ", "),
		insertPlaceholders: make(map[int]string),
	}
	e.registry = driversql.NewRegistry(driversql.DefaultEventStreamsTable, strategy)

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// EnsureEventStreamsTable creates the registry table if it does not exist.
func (e *EventStore) EnsureEventStreamsTable(ctx context.Context) error {
	_, err := e.db.ExecContext(ctx, e.registry.CreateSchema())
	if err != nil {
		return &streamvault.RuntimeError{Op: "create event_streams table", Cause: err}
	}
	return nil
}

// Create implements streamvault.EventStore.
func (e *EventStore) Create(ctx context.Context, streamName streamvault.StreamName, meta interface{}, events []streamvault.Message) error {
	tableName, err := e.strategy.GenerateTableName(streamName)
	if err != nil {
		return &streamvault.RuntimeError{Op: "generate table name", Cause: err}
	}

	exists, err := e.registry.Exists(ctx, e.db, streamName)
	if err != nil {
		return &streamvault.RuntimeError{Op: "check stream existence", Cause: err}
	}
	if exists {
		return &streamvault.StreamExistsError{StreamName: streamName}
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return &streamvault.RuntimeError{Op: "begin create transaction", Cause: err}
	}

	for _, stmt := range e.strategy.CreateSchema(tableName) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return &streamvault.RuntimeError{Op: "create physical stream table", Cause: err}
		}
	}

	if err := e.registry.Insert(ctx, tx, streamName, meta); err != nil {
		_ = tx.Rollback()
		return &streamvault.RuntimeError{Op: "insert stream registry row", Cause: err}
	}

	if len(events) > 0 {
		if err := e.insert(ctx, tx, tableName, events); err != nil {
			_ = tx.Rollback()
			if e.strategy.IsUniqueViolation(errors.Cause(err)) {
				return &streamvault.ConcurrencyError{StreamName: streamName, Cause: err}
			}
			return &streamvault.RuntimeError{Op: "insert initial events", Cause: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &streamvault.RuntimeError{Op: "commit create transaction", Cause: err}
	}

	e.logger.WithField("stream", streamName).Debug("created stream")
	return nil
}

// AppendTo implements streamvault.EventStore.
func (e *EventStore) AppendTo(ctx context.Context, streamName streamvault.StreamName, events []streamvault.Message) error {
	if len(events) == 0 {
		return nil
	}

	tableName, err := e.strategy.GenerateTableName(streamName)
	if err != nil {
		return &streamvault.RuntimeError{Op: "generate table name", Cause: err}
	}

	exists, err := e.registry.Exists(ctx, e.db, streamName)
	if err != nil {
		return &streamvault.RuntimeError{Op: "check stream existence", Cause: err}
	}
	if !exists {
		return &streamvault.StreamNotFoundError{StreamName: streamName}
	}

	if err := e.insert(ctx, e.db, tableName, events); err != nil {
		if e.strategy.IsUniqueViolation(errors.Cause(err)) {
			e.logger.WithField("stream", streamName).WithError(err).Warn("append conflicted")
			return &streamvault.ConcurrencyError{StreamName: streamName, Cause: err}
		}
		e.logger.WithField("stream", streamName).WithError(err).Warn("append failed")
		return &streamvault.RuntimeError{Op: "append events", Cause: err}
	}

	e.logger.WithField("stream", streamName).WithField("count", len(events)).Debug("appended events")
	return nil
}

func (e *EventStore) insert(ctx context.Context, exec driversql.Execer, tableName string, events []streamvault.Message) error {
	data, err := e.strategy.PrepareData(events)
	if err != nil {
		return errors.Wrap(err, "prepare event rows")
	}

	columnCount := len(e.strategy.ColumnNames())
	values := e.insertValuePlaceholders(len(events), columnCount)

	query := "INSERT INTO " + e.strategy.QuoteIdentifier(tableName) + " (" + e.columns + ") VALUES " + values

	_, err = exec.ExecContext(ctx, query, data...)
	return err
}

func (e *EventStore) insertValuePlaceholders(rowCount, columnCount int) string {
	if v, ok := e.insertPlaceholders[rowCount]; ok {
		return v
	}

	var b bytes.Buffer
	rowPlaceholders := "(" + strings.TrimSuffix(strings.Repeat("?,", columnCount), ",") + ")"
	for row := 0; row < rowCount; row++ {
		if row > 0 {
			b.WriteByte(',')
		}
		b.WriteString(rowPlaceholders)
	}

	placeholder := b.String()
	e.insertPlaceholders[rowCount] = placeholder
	return placeholder
}

// HasStream implements streamvault.ReadOnlyEventStore.
func (e *EventStore) HasStream(ctx context.Context, streamName streamvault.StreamName) bool {
	exists, err := e.registry.Exists(ctx, e.db, streamName)
	if err != nil {
		return false
	}
	return exists
}

// FetchStreamMetadata implements streamvault.ReadOnlyEventStore.
func (e *EventStore) FetchStreamMetadata(ctx context.Context, streamName streamvault.StreamName) (interface{}, bool) {
	raw, ok, err := e.registry.FetchMetadata(ctx, e.db, streamName)
	if err != nil || !ok {
		return nil, false
	}

	var meta interface{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false
	}
	return meta, true
}

// StreamsWithPrefix implements streamvault.StreamFinder.
func (e *EventStore) StreamsWithPrefix(ctx context.Context, prefix string) ([]streamvault.StreamName, error) {
	return e.registry.StreamsWithPrefix(ctx, e.db, prefix)
}

// AllStreams implements streamvault.StreamFinder.
func (e *EventStore) AllStreams(ctx context.Context) ([]streamvault.StreamName, error) {
	return e.registry.AllStreams(ctx, e.db)
}

// Load implements streamvault.ReadOnlyEventStore.
func (e *EventStore) Load(ctx context.Context, streamName streamvault.StreamName, fromNumber int64, count *uint, matcher metadata.Matcher) (streamvault.EventStream, error) {
	return e.load(ctx, streamName, fromNumber, count, matcher, driversql.Forward)
}

// LoadReverse implements streamvault.ReadOnlyEventStore.
func (e *EventStore) LoadReverse(ctx context.Context, streamName streamvault.StreamName, fromNumber int64, count *uint, matcher metadata.Matcher) (streamvault.EventStream, error) {
	return e.load(ctx, streamName, fromNumber, count, matcher, driversql.Reverse)
}

func (e *EventStore) load(ctx context.Context, streamName streamvault.StreamName, fromNumber int64, count *uint, matcher metadata.Matcher, direction driversql.Direction) (streamvault.EventStream, error) {
	tableName, err := e.strategy.GenerateTableName(streamName)
	if err != nil {
		return nil, &streamvault.RuntimeError{Op: "generate table name", Cause: err}
	}

	exists, err := e.registry.Exists(ctx, e.db, streamName)
	if err != nil {
		return nil, &streamvault.RuntimeError{Op: "check stream existence", Cause: err}
	}
	if !exists {
		return nil, &streamvault.StreamNotFoundError{StreamName: streamName}
	}

	if direction == driversql.Reverse && fromNumber < 0 {
		fromNumber, err = e.tailPosition(ctx, tableName)
		if err != nil {
			return nil, &streamvault.RuntimeError{Op: "resolve stream tail position", Cause: err}
		}
	}

	queryFn := func(ctx context.Context, from int64, limit uint) (*gosql.Rows, error) {
		query, args := e.buildLoadQuery(tableName, from, limit, matcher, direction)
		return e.db.QueryContext(ctx, query, args...)
	}

	iterator := driversql.NewStreamIterator(ctx, queryFn, e.factory.DecodeRow, fromNumber, count, e.loadBatchSize, direction)
	return iterator, nil
}

// tailPosition resolves the stream's current last "no", used to satisfy a
// LoadReverse call with a negative fromNumber ("read from the tail").
// An empty table has no tail; 0 is returned so the "no <= 0"
// comparison the iterator builds from it yields zero rows, matching the
// empty-stream convention every other boundary case follows.
func (e *EventStore) tailPosition(ctx context.Context, tableName string) (int64, error) {
	query := "SELECT COALESCE(MAX(no), 0) FROM " + e.strategy.QuoteIdentifier(tableName)

	var tail int64
	if err := e.db.QueryRowContext(ctx, query).Scan(&tail); err != nil {
		return 0, err
	}
	return tail, nil
}

func (e *EventStore) buildLoadQuery(tableName string, from int64, limit uint, matcher metadata.Matcher, direction driversql.Direction) (string, []interface{}) {
	table := e.strategy.QuoteIdentifier(tableName)

	var conditions []string
	var args []interface{}

	if matcher != nil {
		matcher.Iterate(func(c metadata.Constraint) {
			clause, values := renderConstraint(c)
			conditions = append(conditions, clause)
			args = append(args, values...)
		})
	}

	conditions = append(conditions, "no "+direction.CompareOperator()+" ?")
	args = append(args, from)

	query := "SELECT * FROM " + table + " WHERE " + strings.Join(conditions, " AND ") + " ORDER BY no " + direction.OrderBy()
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return query, args
}

// renderConstraint renders a single metadata constraint as a MySQL SQL
// clause and its bound values. OpIn/OpNotIn expand their value into one "?"
// per element, since a single bound parameter can't stand in for a
// parenthesized list; OpRegex uses MySQL's REGEXP operator, since neither
// dialect has a literal infix operator named REGEX.
func renderConstraint(c metadata.Constraint) (string, []interface{}) {
	accessor := "JSON_UNQUOTE(JSON_EXTRACT(metadata, CONCAT('$.', ?)))"
	args := []interface{}{c.Field()}

	switch c.Operator() {
	case metadata.OpIn, metadata.OpNotIn:
		values := metadata.ValuesOf(c.Value())
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			args = append(args, v)
		}

		op := "IN"
		if c.Operator() == metadata.OpNotIn {
			op = "NOT IN"
		}
		return accessor + " " + op + " (" + strings.Join(placeholders, ", ") + ")", args

	case metadata.OpRegex:
		args = append(args, c.Value())
		return accessor + " REGEXP ?", args

	default:
		args = append(args, c.Value())
		return accessor + " " + string(c.Operator()) + " ?", args
	}
}

// Delete implements streamvault.EventStore.
func (e *EventStore) Delete(ctx context.Context, streamName streamvault.StreamName) error {
	tableName, err := e.strategy.GenerateTableName(streamName)
	if err != nil {
		return &streamvault.RuntimeError{Op: "generate table name", Cause: err}
	}

	exists, err := e.registry.Exists(ctx, e.db, streamName)
	if err != nil {
		return &streamvault.RuntimeError{Op: "check stream existence", Cause: err}
	}
	if !exists {
		return &streamvault.StreamNotFoundError{StreamName: streamName}
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return &streamvault.RuntimeError{Op: "begin delete transaction", Cause: err}
	}

	if err := e.registry.Delete(ctx, tx, streamName); err != nil {
		_ = tx.Rollback()
		return &streamvault.RuntimeError{Op: "delete stream registry row", Cause: err}
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+e.strategy.QuoteIdentifier(tableName)); err != nil {
		_ = tx.Rollback()
		return &streamvault.RuntimeError{Op: "drop physical stream table", Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return &streamvault.RuntimeError{Op: "commit delete transaction", Cause: err}
	}

	e.logger.WithField("stream", streamName).Debug("deleted stream")
	return nil
}
