package users

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"user_id", "firstname", "username", "wallet", "balance", "referrals", "step", "verified", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresGet(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE user_id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(42, "Ann", "alice", "", 0, 0, "wallet", false, now, now))

	r, err := s.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "alice", r.Handle)
	assert.Equal(t, StepWallet, r.Step)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE user_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := s.Get(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresCreateIsIdempotent(t *testing.T) {
	s, mock := newMockStore(t)
	insert := regexp.QuoteMeta("INSERT INTO users (user_id, firstname) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING")
	mock.ExpectExec(insert).WithArgs(int64(42), "Ann").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WithArgs(int64(42), "Ann").WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := s.Create(context.Background(), 42, "Ann")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Create(context.Background(), 42, "Ann")
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplySingleStatement(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE users SET wallet = $1, balance = $2, step = $3, updated_at = now() WHERE user_id = $4 RETURNING")).
		WithArgs("0xABCDEF0123456789ABCDEF0123456789ABCDEF01", int64(1000), "done", int64(42)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(42, "Ann", "alice", "0xABCDEF0123456789ABCDEF0123456789ABCDEF01", 1000, 0, "done", false, now, now))

	r, err := s.Apply(context.Background(), 42,
		SetWallet("0xABCDEF0123456789ABCDEF0123456789ABCDEF01"),
		SetBalance(1000),
		SetStep(StepDone),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), r.Balance)
	assert.Equal(t, StepDone, r.Step)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyCreditMissingReferrer(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE users SET balance = balance + $1, referrals = referrals + $2, updated_at = now() WHERE user_id = $3")).
		WithArgs(int64(200), int64(1), int64(99)).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := s.Apply(context.Background(), 99, CreditBalance(200), IncrementReferrals(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresApplyRejectsBadInput(t *testing.T) {
	s, _ := newMockStore(t)
	_, err := s.Apply(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoMutations)

	_, err = s.Apply(context.Background(), 1, SetBalance(1), CreditBalance(2))
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestPostgresApplyWrapsDriverErrors(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("UPDATE users").WillReturnError(errors.New("conn reset"))

	_, err := s.Apply(context.Background(), 1, SetVerified(true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update user 1")
}

func TestPostgresListAndAggregate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM users ORDER BY user_id")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS users")).
		WillReturnRows(sqlmock.NewRows([]string{"users", "referrals", "balance"}).AddRow(2, 3, 2600))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT step, COUNT(*) AS count FROM users GROUP BY step")).
		WillReturnRows(sqlmock.NewRows([]string{"step", "count"}).AddRow("done", 2))

	ids, err := s.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	st, err := s.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Users: 2, Referrals: 3, Balance: 2600}, st)

	byStep, err := s.CountByStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), byStep[StepDone])
	assert.Equal(t, int64(0), byStep[StepVerify])
	require.NoError(t, mock.ExpectationsWereMet())
}
