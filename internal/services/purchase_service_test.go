package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPurchase(t *testing.T) {
	svc := NewPurchaseService(newTestDB(t))
	ctx := context.Background()
	paidAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	purchase, err := svc.RecordPurchase(ctx, PurchaseConfirmedDTO{PurchaseID: 1, BuyerID: 2, PackageID: "pro-monthly", Amount: 299000, PaidAt: &paidAt})
	require.NoError(t, err)
	assert.Equal(t, uint(1), purchase.ID)
	assert.Equal(t, "pro-monthly", purchase.PackageId)

	confirmed, err := svc.GetConfirmedPurchase(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(299000), confirmed.Amount)
	require.NotNil(t, confirmed.PaidAt)
	assert.True(t, paidAt.Equal(*confirmed.PaidAt))

	t.Run("replay keeps first payment time", func(t *testing.T) {
		later := paidAt.Add(time.Hour)
		again, err := svc.RecordPurchase(ctx, PurchaseConfirmedDTO{PurchaseID: 1, BuyerID: 2, Amount: 299000, PaidAt: &later})
		require.NoError(t, err)
		assert.True(t, paidAt.Equal(*again.PaidAt))
	})

	t.Run("mismatched replay", func(t *testing.T) {
		_, err := svc.RecordPurchase(ctx, PurchaseConfirmedDTO{PurchaseID: 1, BuyerID: 3, Amount: 299000})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.RecordPurchase(ctx, PurchaseConfirmedDTO{PurchaseID: 5, Amount: 0})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "buyer_id")
		assert.Contains(t, verr.Fields, "amount")
	})

	t.Run("unknown purchase", func(t *testing.T) {
		_, err := svc.GetConfirmedPurchase(ctx, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
