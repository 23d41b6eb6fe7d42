package postgres

import (
	gosql "database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/streamvault/streamvault"
	driversql "github.com/streamvault/streamvault/driver/sql"
)

// createdAtLayout is the microsecond-precision form created_at is stored
// in. lib/pq returns the TIMESTAMP column as a time.Time, which DecodeRow
// scans directly; the layout is documentation only and no code path
// parses created_at as text.
const createdAtLayout = "2006-01-02T15:04:05.000000"

// MessageFactory reconstructs streamvault.EventEnvelope values from rows
// returned by a SELECT * against a single-stream or aggregate-stream
// physical table. Both layouts share the same column order:
// (no, event_id, event_name, payload, metadata, created_at).
type MessageFactory struct{}

// NewMessageFactory returns the postgres MessageFactory.
func NewMessageFactory() *MessageFactory {
	return &MessageFactory{}
}

// DecodeRow decodes a single positioned row into an envelope.
func (f *MessageFactory) DecodeRow(rows *gosql.Rows) (*streamvault.EventEnvelope, error) {
	var (
		no          int64
		eventID     string
		eventName   string
		payloadRaw  []byte
		metadataRaw []byte
		createdAt   time.Time
	)

	if err := rows.Scan(&no, &eventID, &eventName, &payloadRaw, &metadataRaw, &createdAt); err != nil {
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

	env := streamvault.NewEventEnvelope(id, eventName, payload, meta, createdAt)
	return env.WithPosition(no), nil
}
