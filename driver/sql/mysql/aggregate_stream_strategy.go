package mysql

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/streamvault/streamvault"
	"github.com/streamvault/streamvault/metadata"
)

// ErrMissingAggregateVersion is returned by PrepareData when a message has
// no _aggregate_version metadata entry.
var ErrMissingAggregateVersion = errors.New("streamvault/mysql: message is missing _aggregate_version metadata")

// AggregateStreamStrategy mirrors postgres.AggregateStreamStrategy: one
// physical table per aggregate instance, "no" supplied explicitly from
// _aggregate_version metadata.
type AggregateStreamStrategy struct{}

// NewAggregateStreamStrategy returns the MySQL aggregate-stream
// PersistenceStrategy.
func NewAggregateStreamStrategy() *AggregateStreamStrategy {
	return &AggregateStreamStrategy{}
}

// CreateSchema implements sql.PersistenceStrategy.
func (s *AggregateStreamStrategy) CreateSchema(tableName string) []string {
	quoted := quoteIdentifier(tableName)

	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
	no BIGINT UNSIGNED NOT NULL,
	event_id CHAR(36) NOT NULL,
	event_name VARCHAR(100) NOT NULL,
	payload JSON NOT NULL,
	metadata JSON NOT NULL,
	created_at DATETIME(6) NOT NULL,
	PRIMARY KEY (no),
	UNIQUE KEY (event_id)
) ENGINE=InnoDB`, quoted),
	}
}

// ColumnNames implements sql.PersistenceStrategy.
func (s *AggregateStreamStrategy) ColumnNames() []string {
	return []string{"no", "event_id", "event_name", "payload", "metadata", "created_at"}
}

// PrepareData implements sql.PersistenceStrategy, prepending "no" read from
// each message's _aggregate_version metadata.
func (s *AggregateStreamStrategy) PrepareData(messages []streamvault.Message) ([]interface{}, error) {
	rows, err := prepareRowData(messages)
	if err != nil {
		return nil, err
	}

	const cols = 5
	out := make([]interface{}, 0, len(messages)*6)
	for i, msg := range messages {
		version, err := aggregateVersion(msg)
		if err != nil {
			return nil, err
		}

		out = append(out, version)
		out = append(out, rows[i*cols:(i+1)*cols]...)
	}
	return out, nil
}

// IsUniqueViolation implements sql.PersistenceStrategy.
func (s *AggregateStreamStrategy) IsUniqueViolation(err error) bool {
	return isUniqueViolation(err)
}

// GenerateTableName implements sql.PersistenceStrategy.
func (s *AggregateStreamStrategy) GenerateTableName(streamName streamvault.StreamName) (string, error) {
	return generateTableName(streamName)
}

// QuoteIdentifier implements sql.PersistenceStrategy.
func (s *AggregateStreamStrategy) QuoteIdentifier(identifier string) string {
	return quoteIdentifier(identifier)
}

// Placeholder implements sql.PersistenceStrategy.
func (s *AggregateStreamStrategy) Placeholder(int) string {
	return "?"
}

func aggregateVersion(msg streamvault.Message) (int64, error) {
	meta, ok := msg.Metadata().(metadata.Metadata)
	if !ok {
		return 0, ErrMissingAggregateVersion
	}

	raw, ok := meta[metadata.AggregateVersion]
	if !ok {
		return 0, ErrMissingAggregateVersion
	}

	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, ErrMissingAggregateVersion
	}
}
