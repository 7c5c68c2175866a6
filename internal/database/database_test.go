package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := NewGorm(sqlDB)
	require.NoError(t, err)
	return gdb, mock
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorClass
	}{
		{nil, ErrorClassPermanent},
		{&pq.Error{Code: "40001"}, ErrorClassSerialization},
		{&pq.Error{Code: "40P01"}, ErrorClassDeadlock},
		{fmt.Errorf("wrapped: %w", &pq.Error{Code: "55P03"}), ErrorClassTransient},
		{&pq.Error{Code: "23505"}, ErrorClassPermanent},
		{errors.New("boom"), ErrorClassPermanent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyError(tc.err), "%v", tc.err)
	}
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, TranslateError(nil))
	assert.ErrorIs(t, TranslateError(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, TranslateError(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, TranslateError(&pq.Error{Code: "23505", Constraint: "clients_email_key"}), ErrDuplicate)
	assert.ErrorIs(t, TranslateError(&pq.Error{Code: "23514"}), ErrCheckFailed)
	assert.ErrorIs(t, TranslateError(&pq.Error{Code: "23503"}), ErrNotFound)
	assert.ErrorIs(t, TranslateError(ErrInsufficientStock), ErrCheckFailed)

	other := errors.New("connection reset")
	assert.Equal(t, other, TranslateError(other))
}

func TestTranslateDeleteError(t *testing.T) {
	err := TranslateDeleteError(&pq.Error{Code: "23503", Constraint: "orders_client_id_fkey"})
	assert.ErrorIs(t, err, ErrReferenced)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, TranslateDeleteError(gorm.ErrRecordNotFound), ErrNotFound)
	assert.NoError(t, TranslateDeleteError(nil))
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	gdb, mock := newMockGorm(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	want := errors.New("fail")
	err := WithTransaction(context.Background(), gdb, DefaultTxOptions(), func(tx *gorm.DB) error {
		return want
	})
	assert.ErrorIs(t, err, want)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetryRetriesSerializationFailures(t *testing.T) {
	gdb, mock := newMockGorm(t)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err := WithRetry(context.Background(), gdb, TxOptions{IsolationLevel: sql.LevelSerializable, MaxRetries: 2}, func(tx *gorm.DB) error {
		attempts++
		if attempts == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	gdb, mock := newMockGorm(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := WithRetry(context.Background(), gdb, DefaultTxOptions(), func(tx *gorm.DB) error {
		attempts++
		return ErrInsufficientStock
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
