package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const accountLockQuery = "SELECT \\* FROM `affiliate_accounts` WHERE user_id = \\? .*FOR UPDATE"

// newMySQLMock returns a gorm handle speaking the MySQL dialect against sqlmock,
// so the locking statements can be asserted.
func newMySQLMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func expectAccountLock(mock sqlmock.Sqlmock, userID uint, exists bool) {
	if !exists {
		mock.ExpectQuery(accountLockQuery).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}))
		mock.ExpectExec("INSERT INTO `affiliate_accounts`").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectQuery(accountLockQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow(1, userID))
}

func expectBalanceSums(mock sqlmock.Sqlmock, earned, reserved int64) {
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(commission_amount\\), 0\\) FROM `commissions`").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(earned))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM `withdrawals`").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(reserved))
}

// Expectations are matched in order: the balance sums must come after the
// account row is locked, and the insert after the sums.
func TestRequestWithdrawalLocksAccount(t *testing.T) {
	t.Run("successful reservation", func(t *testing.T) {
		db, mock := newMySQLMock(t)
		svc := NewWithdrawalService(db, nil, nil, nil, testMinimum)

		mock.ExpectBegin()
		expectAccountLock(mock, 7, true)
		expectBalanceSums(mock, 70000, 0)
		mock.ExpectExec("INSERT INTO `withdrawals`").
			WillReturnResult(sqlmock.NewResult(15, 1))
		mock.ExpectCommit()

		withdrawal, err := svc.RequestWithdrawal(context.Background(), 7, bankDetails(50000))
		require.NoError(t, err)
		assert.Equal(t, uint(15), withdrawal.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("first withdrawal creates the account row", func(t *testing.T) {
		db, mock := newMySQLMock(t)
		svc := NewWithdrawalService(db, nil, nil, nil, testMinimum)

		mock.ExpectBegin()
		expectAccountLock(mock, 8, false)
		expectBalanceSums(mock, 50000, 0)
		mock.ExpectExec("INSERT INTO `withdrawals`").
			WillReturnResult(sqlmock.NewResult(16, 1))
		mock.ExpectCommit()

		_, err := svc.RequestWithdrawal(context.Background(), 8, bankDetails(50000))
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		db, mock := newMySQLMock(t)
		svc := NewWithdrawalService(db, nil, nil, nil, testMinimum)

		mock.ExpectBegin()
		expectAccountLock(mock, 7, true)
		expectBalanceSums(mock, 70000, 50000)
		mock.ExpectRollback()

		_, err := svc.RequestWithdrawal(context.Background(), 7, bankDetails(50000))
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
