package mysql

import (
	"encoding/json"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/streamvault/streamvault"
	"github.com/streamvault/streamvault/metadata"
)

// uniqueViolationCodes are the MySQL error numbers signaling a
// unique-index conflict (ER_DUP_ENTRY == 1062, reported under SQLSTATE
// 23000).
var uniqueViolationCodes = map[uint16]bool{
	1062: true,
}

// SingleStreamStrategy mirrors postgres.SingleStreamStrategy for MySQL:
// one physical table per logical stream, auto-incrementing "no", and a
// uniqueness constraint over the aggregate triple exposed via generated
// stored columns (MySQL cannot index a JSON expression directly).
type SingleStreamStrategy struct{}

// NewSingleStreamStrategy returns the MySQL single-stream
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
	no BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	event_id CHAR(36) NOT NULL,
	event_name VARCHAR(100) NOT NULL,
	payload JSON NOT NULL,
	metadata JSON NOT NULL,
	created_at DATETIME(6) NOT NULL,
	aggregate_type VARCHAR(100) AS (metadata->>'$.%s') STORED,
	aggregate_id VARCHAR(36) AS (metadata->>'$.%s') STORED,
	aggregate_version BIGINT AS (metadata->>'$.%s') STORED,
	PRIMARY KEY (no),
	UNIQUE KEY (event_id)
) ENGINE=InnoDB`, quoted, metadata.AggregateType, metadata.AggregateID, metadata.AggregateVersion),
		fmt.Sprintf(
			`CREATE UNIQUE INDEX %s ON %s (aggregate_type, aggregate_id, aggregate_version)`,
			uniqueIndex, quoted,
		),
		fmt.Sprintf(
			`CREATE INDEX %s ON %s (aggregate_type, aggregate_id, no)`,
			orderIndex, quoted,
		),
	}
}

// ColumnNames implements sql.PersistenceStrategy. The generated columns
// are derived from metadata and are never written to directly.
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

// Placeholder implements sql.PersistenceStrategy. MySQL's driver uses "?"
// for every bound-parameter position.
func (s *SingleStreamStrategy) Placeholder(int) string {
	return "?"
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
			msg.UUID().String(),
			msg.MessageName(),
			payload,
			meta,
			msg.CreatedAt().UTC(),
		)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return uniqueViolationCodes[mysqlErr.Number]
	}
	return false
}
