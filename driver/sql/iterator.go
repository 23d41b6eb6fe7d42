package sql

import (
	"context"
	gosql "database/sql"

	"github.com/pkg/errors"

	"github.com/streamvault/streamvault"
)

// QueryFunc builds and issues a single page of a Load/LoadReverse query,
// for the range starting at from and bounded by limit (0 means
// unbounded). It is supplied by the dialect package, which knows how to
// quote the table, render the matcher and choose the direction.
type QueryFunc func(ctx context.Context, from int64, limit uint) (*gosql.Rows, error)

// DecodeFunc decodes a single row into an envelope. Supplied by the
// dialect package's MessageFactory.
type DecodeFunc func(rows *gosql.Rows) (*streamvault.EventEnvelope, error)

// StreamIterator is a restartable-only-by-reopening cursor that pages rows
// from the database into a lazy sequence of envelopes.
type StreamIterator struct {
	ctx       context.Context
	query     QueryFunc
	decode    DecodeFunc
	batchSize uint
	direction Direction

	from      int64
	remaining *uint // nil means unbounded
	produced  uint

	rows    *gosql.Rows
	current *streamvault.EventEnvelope
	lastNo  int64
	err     error
	closed  bool
}

// NewStreamIterator constructs an iterator starting at fromNumber, paging
// batchSize rows at a time, up to count total envelopes (nil: unbounded).
func NewStreamIterator(ctx context.Context, query QueryFunc, decode DecodeFunc, fromNumber int64, count *uint, batchSize uint, direction Direction) *StreamIterator {
	if batchSize == 0 {
		batchSize = 10000
	}

	var remaining *uint
	if count != nil {
		c := *count
		remaining = &c
	}

	return &StreamIterator{
		ctx:       ctx,
		query:     query,
		decode:    decode,
		batchSize: batchSize,
		direction: direction,
		from:      fromNumber,
		remaining: remaining,
	}
}

// Next advances the cursor. See streamvault.EventStream for the contract.
func (it *StreamIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}

	if it.remaining != nil && it.produced >= *it.remaining {
		return false
	}

	for {
		if it.rows == nil {
			if !it.fetchPage() {
				return false
			}

			if !it.rows.Next() {
				if err := it.rows.Err(); err != nil {
					it.err = err
					return false
				}
				_ = it.rows.Close()
				it.rows = nil
				return false
			}

			return it.decodeCurrent()
		}

		if it.rows.Next() {
			return it.decodeCurrent()
		}

		if err := it.rows.Err(); err != nil {
			it.err = err
			return false
		}

		_ = it.rows.Close()
		it.rows = nil

		// Page exhausted: advance "from" past the last position we saw and
		// loop around to fetch the next page. Zero rows on that fetch
		// terminates the stream.
		if it.direction == Reverse {
			it.from = it.lastNo - 1
		} else {
			it.from = it.lastNo + 1
		}
	}
}

func (it *StreamIterator) decodeCurrent() bool {
	env, err := it.decode(it.rows)
	if err != nil {
		it.err = err
		return false
	}

	it.current = env
	it.lastNo = env.Position()
	it.produced++

	return true
}

func (it *StreamIterator) fetchPage() bool {
	limit := it.batchSize
	if it.remaining != nil {
		left := *it.remaining - it.produced
		if left < limit {
			limit = left
		}
	}

	rows, err := it.query(it.ctx, it.from, limit)
	if err != nil {
		it.err = errors.Wrap(err, "fetch event stream page")
		return false
	}

	it.rows = rows
	return true
}

// Err returns the error, if any, encountered during iteration.
func (it *StreamIterator) Err() error {
	return it.err
}

// Close releases the iterator's prepared statement/rows. Idempotent.
func (it *StreamIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.rows != nil {
		err := it.rows.Close()
		it.rows = nil
		return err
	}
	return nil
}

// Message returns the current envelope and its stream position.
func (it *StreamIterator) Message() (streamvault.Message, int64, error) {
	if it.current == nil {
		return nil, 0, errors.New("streamvault: Message called before a successful Next")
	}
	return it.current, it.current.Position(), nil
}

var _ streamvault.EventStream = &StreamIterator{}
