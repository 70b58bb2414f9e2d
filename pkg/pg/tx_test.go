package pg_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/pg"
)

func TestTransactorCommits(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscriptions").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	tr := pg.NewTransactor(mock)
	err = tr.WithTx(context.Background(), func(ctx context.Context) error {
		assert.True(t, pg.InTx(ctx))
		_, err := pg.Conn(ctx, mock).Exec(ctx, "UPDATE subscriptions SET status = 'active'")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorRollsBackOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	tr := pg.NewTransactor(mock)
	err = tr.WithTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorNestedJoinsOuter(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	tr := pg.NewTransactor(mock)
	calls := 0
	err = tr.WithTx(context.Background(), func(ctx context.Context) error {
		return tr.WithTx(ctx, func(ctx context.Context) error {
			calls++
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorBeginFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	tr := pg.NewTransactor(mock)
	err = tr.WithTx(context.Background(), func(ctx context.Context) error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.ErrorIs(t, err, pg.ErrTxFailed)
}

func TestConnWithoutTx(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	assert.False(t, pg.InTx(context.Background()))
	assert.Equal(t, pg.Querier(mock), pg.Conn(context.Background(), mock))
}
