package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"affiliate-service/internal/database"
	"affiliate-service/internal/models"
)

var testRate = decimal.RequireFromString("0.10")

const testMinimum = int64(50000)

// newTestDB opens an isolated in-memory database. A single connection keeps
// concurrent transactions serialized the way row locks do on MySQL.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func seedCommission(t *testing.T, db *gorm.DB, referrerID, purchaseID uint, amount int64, status string, createdAt time.Time) models.Commission {
	t.Helper()
	c := models.Commission{
		ReferrerId:         referrerID,
		ReferredUserId:     purchaseID + 1000,
		PurchaseId:         purchaseID,
		SubscriptionAmount: amount * 10,
		CommissionAmount:   amount,
		Rate:               testRate,
		Status:             status,
		CreatedAt:          createdAt,
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func commissionStatus(t *testing.T, db *gorm.DB, id uint) models.Commission {
	t.Helper()
	var c models.Commission
	require.NoError(t, db.First(&c, id).Error)
	return c
}

type fakeGateway struct {
	mu        sync.Mutex
	reference string
	initErr   error
	status    string
	statusErr error
	requests  []DisbursementRequest
	// onInitiate runs while the gateway call is in flight.
	onInitiate func()
}

func (g *fakeGateway) InitiateDisbursement(ctx context.Context, req DisbursementRequest) (string, error) {
	if g.onInitiate != nil {
		g.onInitiate()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.initErr != nil {
		return "", g.initErr
	}
	return g.reference, nil
}

func (g *fakeGateway) GetDisbursementStatus(ctx context.Context, reference string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.status, nil
}

type fakeTasks struct {
	mu            sync.Mutex
	err           error
	disbursements []uint
	purchases     []uint
}

func (f *fakeTasks) EnqueueDisbursement(ctx context.Context, withdrawalID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disbursements = append(f.disbursements, withdrawalID)
	return f.err
}

func (f *fakeTasks) EnqueuePurchaseConfirmed(ctx context.Context, purchaseID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purchases = append(f.purchases, purchaseID)
	return f.err
}

var errGatewayDown = errors.New("gateway unavailable")

type testStack struct {
	db          *gorm.DB
	referrals   *ReferralService
	purchases   *PurchaseService
	ledger      *CommissionService
	withdrawals *WithdrawalService
	gateway     *fakeGateway
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := newTestDB(t)
	referrals := NewReferralService(db, nil, time.Minute, 1)
	purchases := NewPurchaseService(db)
	ledger := NewCommissionService(db, purchases, referrals, testRate, testMinimum)
	gateway := &fakeGateway{reference: "SP-REF-1", status: OutcomePending}
	withdrawals := NewWithdrawalService(db, ledger, gateway, nil, testMinimum)
	return &testStack{
		db:          db,
		referrals:   referrals,
		purchases:   purchases,
		ledger:      ledger,
		withdrawals: withdrawals,
		gateway:     gateway,
	}
}

func bankDetails(amount int64) WithdrawRequestDTO {
	return WithdrawRequestDTO{
		Amount:        amount,
		BankName:      "BCA",
		AccountNumber: "1234567890",
		AccountName:   "Budi Santoso",
	}
}
