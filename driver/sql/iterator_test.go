package sql

import (
	"context"
	gosql "database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamvault/streamvault"
)

func decodePosition(rows *gosql.Rows) (*streamvault.EventEnvelope, error) {
	var no int64
	if err := rows.Scan(&no); err != nil {
		return nil, err
	}

	env := streamvault.NewEventEnvelope(streamvault.GenerateUUID(), "tick", nil, nil, time.Now())
	return env.WithPosition(no), nil
}

func positionRows(nos ...int64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"no"})
	for _, no := range nos {
		rows.AddRow(no)
	}
	return rows
}

func newMockDB(t *testing.T) (*gosql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, func() { db.Close() }
}

func TestStreamIterator_PagesForwardAcrossMultipleBatches(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	queryFn := func(ctx context.Context, from int64, limit uint) (*gosql.Rows, error) {
		return db.QueryContext(ctx, "SELECT no", from, limit)
	}

	mock.ExpectQuery("SELECT no").WithArgs(int64(0), int64(2)).WillReturnRows(positionRows(1, 2))
	mock.ExpectQuery("SELECT no").WithArgs(int64(3), int64(2)).WillReturnRows(positionRows(3))
	mock.ExpectQuery("SELECT no").WithArgs(int64(4), int64(2)).WillReturnRows(positionRows())

	it := NewStreamIterator(context.Background(), queryFn, decodePosition, 0, nil, 2, Forward)
	defer it.Close()

	var positions []int64
	for it.Next() {
		_, pos, err := it.Message()
		require.NoError(t, err)
		positions = append(positions, pos)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []int64{1, 2, 3}, positions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamIterator_PagesReverseDecrementingFromByLastPosition(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	queryFn := func(ctx context.Context, from int64, limit uint) (*gosql.Rows, error) {
		return db.QueryContext(ctx, "SELECT no", from, limit)
	}

	mock.ExpectQuery("SELECT no").WithArgs(int64(5), int64(2)).WillReturnRows(positionRows(5, 4))
	mock.ExpectQuery("SELECT no").WithArgs(int64(3), int64(2)).WillReturnRows(positionRows(3))
	mock.ExpectQuery("SELECT no").WithArgs(int64(2), int64(2)).WillReturnRows(positionRows())

	it := NewStreamIterator(context.Background(), queryFn, decodePosition, 5, nil, 2, Reverse)
	defer it.Close()

	var positions []int64
	for it.Next() {
		_, pos, err := it.Message()
		require.NoError(t, err)
		positions = append(positions, pos)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []int64{5, 4, 3}, positions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamIterator_StopsAtCountWithoutFurtherQueries(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	queryFn := func(ctx context.Context, from int64, limit uint) (*gosql.Rows, error) {
		return db.QueryContext(ctx, "SELECT no", from, limit)
	}

	count := uint(2)
	mock.ExpectQuery("SELECT no").WithArgs(int64(0), int64(2)).WillReturnRows(positionRows(1, 2, 3))

	it := NewStreamIterator(context.Background(), queryFn, decodePosition, 0, &count, 10, Forward)
	defer it.Close()

	var positions []int64
	for it.Next() {
		_, pos, err := it.Message()
		require.NoError(t, err)
		positions = append(positions, pos)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []int64{1, 2}, positions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamIterator_PropagatesQueryError(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	queryFn := func(ctx context.Context, from int64, limit uint) (*gosql.Rows, error) {
		return db.QueryContext(ctx, "SELECT no", from, limit)
	}

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT no").WithArgs(int64(0), int64(10)).WillReturnError(boom)

	it := NewStreamIterator(context.Background(), queryFn, decodePosition, 0, nil, 10, Forward)
	defer it.Close()

	assert.False(t, it.Next())
	require.Error(t, it.Err())
	assert.Contains(t, it.Err().Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamIterator_PropagatesRowsIterationError(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	queryFn := func(ctx context.Context, from int64, limit uint) (*gosql.Rows, error) {
		return db.QueryContext(ctx, "SELECT no", from, limit)
	}

	boom := errors.New("row decode failed")
	rows := positionRows(1, 2).RowError(1, boom)
	mock.ExpectQuery("SELECT no").WithArgs(int64(0), int64(10)).WillReturnRows(rows)

	it := NewStreamIterator(context.Background(), queryFn, decodePosition, 0, nil, 10, Forward)
	defer it.Close()

	require.True(t, it.Next())
	assert.False(t, it.Next())
	require.Error(t, it.Err())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamIterator_CloseIsIdempotent(t *testing.T) {
	db, mock, closeDB := newMockDB(t)
	defer closeDB()

	queryFn := func(ctx context.Context, from int64, limit uint) (*gosql.Rows, error) {
		return db.QueryContext(ctx, "SELECT no", from, limit)
	}

	mock.ExpectQuery("SELECT no").WithArgs(int64(0), int64(10)).WillReturnRows(positionRows(1))

	it := NewStreamIterator(context.Background(), queryFn, decodePosition, 0, nil, 10, Forward)
	require.True(t, it.Next())
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
}

func TestStreamIterator_MessageBeforeNextIsError(t *testing.T) {
	db, _, closeDB := newMockDB(t)
	defer closeDB()

	queryFn := func(ctx context.Context, from int64, limit uint) (*gosql.Rows, error) {
		return db.QueryContext(ctx, "SELECT no", from, limit)
	}

	it := NewStreamIterator(context.Background(), queryFn, decodePosition, 0, nil, 10, Forward)
	_, _, err := it.Message()
	assert.Error(t, err)
}
