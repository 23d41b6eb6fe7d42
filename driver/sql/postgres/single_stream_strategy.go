package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/streamvault/streamvault"
	"github.com/streamvault/streamvault/metadata"
)

// uniqueViolationCodes are the Postgres SQLSTATE codes signaling a
// unique-index conflict.
var uniqueViolationCodes = map[pq.ErrorCode]bool{
	"23000": true,
	"23505": true,
}

// SingleStreamStrategy lays out one physical table per logical stream,
// with an auto-incrementing "no" and a uniqueness constraint over
// (aggregate_type, aggregate_id, aggregate_version) in addition to the
// per-event_id uniqueness every strategy enforces.
type SingleStreamStrategy struct{}

// NewSingleStreamStrategy returns the postgres single-stream
// PersistenceStrategy.
func NewSingleStreamStrategy() *SingleStreamStrategy {
	return &SingleStreamStrategy{}
}

// CreateSchema implements sql.PersistenceStrategy.
func (s *SingleStreamStrategy) CreateSchema(tableName string) []string {
	quoted := quoteIdentifier(tableName)
	uniqueIndex := quoteIdentifier(tableName + "_unique_aggregate_version")
	orderIndex := quoteIdentifier(tableName + "_aggregate_order")

	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
	no BIGSERIAL,
	event_id UUID NOT NULL,
	event_name VARCHAR(100) NOT NULL,
	payload JSON NOT NULL,
	metadata JSONB NOT NULL,
	created_at TIMESTAMP(6) NOT NULL,
	PRIMARY KEY (no),
	UNIQUE (event_id)
)`, quoted),
		fmt.Sprintf(
			`CREATE UNIQUE INDEX %s ON %s ((metadata->>'%s'), (metadata->>'%s'), (metadata->>'%s')) WHERE (metadata->>'%s') IS NOT NULL`,
			uniqueIndex, quoted, metadata.AggregateType, metadata.AggregateID, metadata.AggregateVersion, metadata.AggregateVersion,
		),
		fmt.Sprintf(
			`CREATE INDEX %s ON %s ((metadata->>'%s'), (metadata->>'%s'), no)`,
			orderIndex, quoted, metadata.AggregateType, metadata.AggregateID,
		),
	}
}

// ColumnNames implements sql.PersistenceStrategy.
func (s *SingleStreamStrategy) ColumnNames() []string {
	return []string{"event_id", "event_name", "payload", "metadata", "created_at"}
}

// PrepareData implements sql.PersistenceStrategy.
func (s *SingleStreamStrategy) PrepareData(messages []streamvault.Message) ([]interface{}, error) {
	return prepareRowData(messages)
}

// IsUniqueViolation implements sql.PersistenceStrategy.
func (s *SingleStreamStrategy) IsUniqueViolation(err error) bool {
	return isUniqueViolation(err)
}

// GenerateTableName implements sql.PersistenceStrategy.
func (s *SingleStreamStrategy) GenerateTableName(streamName streamvault.StreamName) (string, error) {
	return generateTableName(streamName)
}

// QuoteIdentifier implements sql.PersistenceStrategy.
func (s *SingleStreamStrategy) QuoteIdentifier(identifier string) string {
	return quoteIdentifier(identifier)
}

// Placeholder implements sql.PersistenceStrategy.
func (s *SingleStreamStrategy) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

func prepareRowData(messages []streamvault.Message) ([]interface{}, error) {
	out := make([]interface{}, 0, len(messages)*5)
	for _, msg := range messages {
		payload, err := json.Marshal(msg.Payload())
		if err != nil {
			return nil, errors.Wrap(err, "marshal event payload")
		}

		meta, err := json.Marshal(msg.Metadata())
		if err != nil {
			return nil, errors.Wrap(err, "marshal event metadata")
		}

		out = append(out,
			msg.UUID(),
			msg.MessageName(),
			payload,
			meta,
			msg.CreatedAt().UTC(),
		)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return uniqueViolationCodes[pqErr.Code]
	}
	return false
}
