package services

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"affiliate-service/internal/models"
)

// PurchaseSource exposes confirmed purchases to the ledger.
type PurchaseSource interface {
	GetConfirmedPurchase(ctx context.Context, purchaseID uint) (*models.Purchase, error)
}

// ReferralResolver maps a registered user to the affiliate who referred them.
type ReferralResolver interface {
	ResolveReferrerForUser(ctx context.Context, userID uint) (uint, error)
}

// TaskEnqueuer hands work to the background worker.
type TaskEnqueuer interface {
	EnqueueDisbursement(ctx context.Context, withdrawalID uint) error
	EnqueuePurchaseConfirmed(ctx context.Context, purchaseID uint) error
}

// lockAffiliateAccount serializes balance-changing operations for one user.
// Must be called inside a transaction.
func lockAffiliateAccount(tx *gorm.DB, userID uint) error {
	locked := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&models.AffiliateAccount{})
	if locked.Error != nil {
		return locked.Error
	}
	if locked.RowsAffected == 1 {
		return nil
	}

	// First balance operation for this user.
	account := models.AffiliateAccount{UserId: userID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&account).Error; err != nil {
		return err
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&models.AffiliateAccount{}).Error
}

// withdrawableBalance is earned (approved + paid) minus reserved (pending + paid withdrawals).
// The raw value is returned so callers can detect a would-be negative balance.
func withdrawableBalance(tx *gorm.DB, userID uint) (int64, error) {
	var earned int64
	err := tx.Model(&models.Commission{}).
		Select("COALESCE(SUM(commission_amount), 0)").
		Where("referrer_id = ? AND status IN ?", userID, []string{models.CommissionApproved, models.CommissionPaid}).
		Scan(&earned).Error
	if err != nil {
		return 0, err
	}

	var reserved int64
	err = tx.Model(&models.Withdrawal{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND status IN ?", userID, []string{models.WithdrawalPending, models.WithdrawalPaid}).
		Scan(&reserved).Error
	if err != nil {
		return 0, err
	}

	return earned - reserved, nil
}
