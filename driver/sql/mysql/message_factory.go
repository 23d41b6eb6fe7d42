package mysql

import (
	gosql "database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/streamvault/streamvault"
	driversql "github.com/streamvault/streamvault/driver/sql"
)

// createdAtLayout is the microsecond-precision layout created_at is stored in;
// unlike lib/pq, go-sql-driver/mysql returns DATETIME columns as text
// unless the DSN carries parseTime=true, so this store always parses it
// explicitly rather than depending on that driver option.
const createdAtLayout = "2006-01-02 15:04:05.000000"

// MessageFactory reconstructs streamvault.EventEnvelope values from rows
// returned by a SELECT * against a single-stream or aggregate-stream
// physical table. Both layouts share the column order
// (no, event_id, event_name, payload, metadata, created_at); the
// generated aggregate_* columns a single-stream table also carries are
// never selected individually, since SELECT * still returns them after
// created_at — DecodeRow only scans the first six.
type MessageFactory struct{}

// NewMessageFactory returns the MySQL MessageFactory.
func NewMessageFactory() *MessageFactory {
	return &MessageFactory{}
}

// DecodeRow decodes a single positioned row into an envelope.
func (f *MessageFactory) DecodeRow(rows *gosql.Rows) (*streamvault.EventEnvelope, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read event row columns")
	}

	var (
		no          int64
		eventID     string
		eventName   string
		payloadRaw  []byte
		metadataRaw []byte
		createdAt   []byte
	)

	dest := []interface{}{&no, &eventID, &eventName, &payloadRaw, &metadataRaw, &createdAt}
	for range cols[len(dest):] {
		var discard interface{}
		dest = append(dest, &discard)
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, errors.Wrap(err, "scan event row")
	}

	id, err := streamvault.ParseUUID(eventID)
	if err != nil {
		return nil, errors.Wrap(err, "parse event_id")
	}

	payload, err := driversql.DecodeJSONValue(payloadRaw)
	if err != nil {
		return nil, errors.Wrap(err, "decode event payload")
	}

	meta, err := driversql.DecodeMetadata(metadataRaw)
	if err != nil {
		return nil, errors.Wrap(err, "decode event metadata")
	}

	ts, err := time.Parse(createdAtLayout, string(createdAt))
	if err != nil {
		return nil, errors.Wrap(err, "parse created_at")
	}

	env := streamvault.NewEventEnvelope(id, eventName, payload, meta, ts)
	return env.WithPosition(no), nil
}
