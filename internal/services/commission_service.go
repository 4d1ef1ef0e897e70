package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"affiliate-service/internal/models"
	"affiliate-service/internal/monitoring"
	"affiliate-service/pkg/common"
)

type CommissionService struct {
	DB                *gorm.DB
	Purchases         PurchaseSource
	Referrals         ReferralResolver
	Rate              decimal.Decimal
	MinimumWithdrawal int64
}

func NewCommissionService(db *gorm.DB, purchases PurchaseSource, referrals ReferralResolver, rate decimal.Decimal, minimumWithdrawal int64) *CommissionService {
	return &CommissionService{
		DB:                db,
		Purchases:         purchases,
		Referrals:         referrals,
		Rate:              rate,
		MinimumWithdrawal: minimumWithdrawal,
	}
}

type BalanceDTO struct {
	Balance           int64 `json:"balance"`
	MinimumWithdrawal int64 `json:"minimum_withdrawal"`
	CanWithdraw       bool  `json:"can_withdraw"`
}

type StatisticsDTO struct {
	TotalEarnings  int64 `json:"total_earnings"`
	PaidTotal      int64 `json:"paid_total"`
	PendingTotal   int64 `json:"pending_total"`
	TotalReferrals int64 `json:"total_referrals"`
}

// CommissionAmount applies rate to amount, rounding half away from zero to the unit.
func CommissionAmount(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

// RecordCommission creates the pending commission for a confirmed purchase.
// Calling it again for the same purchase returns the existing commission.
func (s *CommissionService) RecordCommission(ctx context.Context, purchaseID uint) (*models.Commission, error) {
	existing, err := s.findByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	purchase, err := s.Purchases.GetConfirmedPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.Amount <= 0 {
		return nil, NewValidationError("amount", "must be positive")
	}

	referrerID, err := s.Referrals.ResolveReferrerForUser(ctx, purchase.BuyerId)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: purchase %d", ErrNotReferred, purchaseID)
	}
	if err != nil {
		return nil, err
	}

	// Withdrawals lock this row; creating it here keeps them off the insert path.
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.AffiliateAccount{UserId: referrerID}).Error
	if err != nil {
		return nil, err
	}

	commission := models.Commission{
		ReferrerId:         referrerID,
		ReferredUserId:     purchase.BuyerId,
		PurchaseId:         purchase.ID,
		SubscriptionAmount: purchase.Amount,
		CommissionAmount:   CommissionAmount(purchase.Amount, s.Rate),
		Rate:               s.Rate,
		Status:             models.CommissionPending,
	}

	if err := s.DB.WithContext(ctx).Create(&commission).Error; err != nil {
		// A concurrent delivery may have inserted the same purchase first.
		if winner, findErr := s.findByPurchase(ctx, purchaseID); findErr == nil && winner != nil {
			return winner, nil
		}
		return nil, err
	}

	monitoring.CommissionsRecorded.Inc()
	log.WithFields(log.Fields{
		"commission_id": commission.ID,
		"purchase_id":   purchaseID,
		"referrer_id":   referrerID,
		"amount":        commission.CommissionAmount,
	}).Info("Commission recorded")

	return &commission, nil
}

func (s *CommissionService) findByPurchase(ctx context.Context, purchaseID uint) (*models.Commission, error) {
	var commission models.Commission
	err := s.DB.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&commission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

func (s *CommissionService) Approve(ctx context.Context, commissionID uint) (*models.Commission, error) {
	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&models.Commission{}).
		Where("id = ? AND status = ?", commissionID, models.CommissionPending).
		Updates(map[string]interface{}{"status": models.CommissionApproved, "approved_at": now})
	if res.Error != nil {
		return nil, res.Error
	}

	commission, err := s.Get(ctx, commissionID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: commission %d is %s", ErrInvalidState, commissionID, commission.Status)
	}

	monitoring.CommissionTransitions.WithLabelValues(models.CommissionApproved).Inc()
	return commission, nil
}

// Reject moves a pending or approved commission to rejected. An approved
// commission already backing a withdrawal cannot be rejected.
func (s *CommissionService) Reject(ctx context.Context, commissionID uint, reason string) (*models.Commission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, NewValidationError("reason", "is required")
	}

	var commission models.Commission
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Locking reads keep the balance snapshot from being taken before the account lock.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&commission, commissionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: commission %d", ErrNotFound, commissionID)
			}
			return err
		}

		switch commission.Status {
		case models.CommissionPending:
		case models.CommissionApproved:
			if err := lockAffiliateAccount(tx, commission.ReferrerId); err != nil {
				return err
			}
			balance, err := withdrawableBalance(tx, commission.ReferrerId)
			if err != nil {
				return err
			}
			if balance-commission.CommissionAmount < 0 {
				return fmt.Errorf("%w: commission %d is reserved by a withdrawal", ErrInvalidState, commissionID)
			}
		default:
			return fmt.Errorf("%w: commission %d is %s", ErrInvalidState, commissionID, commission.Status)
		}

		res := tx.Model(&models.Commission{}).
			Where("id = ? AND status = ?", commissionID, commission.Status).
			Updates(map[string]interface{}{"status": models.CommissionRejected, "reject_reason": reason})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: commission %d changed concurrently", ErrInvalidState, commissionID)
		}
		commission.Status = models.CommissionRejected
		commission.RejectReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.CommissionTransitions.WithLabelValues(models.CommissionRejected).Inc()
	return &commission, nil
}

// MarkPaid settles an approved commission against a withdrawal. It runs on the
// caller's transaction.
func (s *CommissionService) MarkPaid(tx *gorm.DB, commissionID, withdrawalID uint) error {
	res := tx.Model(&models.Commission{}).
		Where("id = ? AND status = ?", commissionID, models.CommissionApproved).
		Updates(map[string]interface{}{
			"status":        models.CommissionPaid,
			"withdrawal_id": withdrawalID,
			"paid_at":       time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: commission %d is not approved", ErrInvalidState, commissionID)
	}
	monitoring.CommissionTransitions.WithLabelValues(models.CommissionPaid).Inc()
	return nil
}

// markPaidFIFO consumes the user's oldest approved commissions until amount is
// covered. The last commission is paid in full even when it over-covers.
func (s *CommissionService) markPaidFIFO(tx *gorm.DB, userID, withdrawalID uint, amount int64) ([]uint, error) {
	var approved []models.Commission
	err := tx.Where("referrer_id = ? AND status = ?", userID, models.CommissionApproved).
		Order("created_at ASC, id ASC").
		Find(&approved).Error
	if err != nil {
		return nil, err
	}

	var covered int64
	var paid []uint
	for _, c := range approved {
		if covered >= amount {
			break
		}
		if err := s.MarkPaid(tx, c.ID, withdrawalID); err != nil {
			return nil, err
		}
		covered += c.CommissionAmount
		paid = append(paid, c.ID)
	}
	return paid, nil
}

func (s *CommissionService) Get(ctx context.Context, commissionID uint) (*models.Commission, error) {
	var commission models.Commission
	if err := s.DB.WithContext(ctx).First(&commission, commissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: commission %d", ErrNotFound, commissionID)
		}
		return nil, err
	}
	return &commission, nil
}

func (s *CommissionService) GetWithdrawableBalance(ctx context.Context, userID uint) (BalanceDTO, error) {
	balance, err := withdrawableBalance(s.DB.WithContext(ctx), userID)
	if err != nil {
		return BalanceDTO{}, err
	}
	if balance < 0 {
		log.WithFields(log.Fields{"user_id": userID, "balance": balance}).Error("Negative withdrawable balance")
		balance = 0
	}
	return BalanceDTO{
		Balance:           balance,
		MinimumWithdrawal: s.MinimumWithdrawal,
		CanWithdraw:       balance >= s.MinimumWithdrawal,
	}, nil
}

func (s *CommissionService) GetStatistics(ctx context.Context, userID uint) (StatisticsDTO, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := s.DB.WithContext(ctx).Model(&models.Commission{}).
		Select("status, COALESCE(SUM(commission_amount), 0) AS total").
		Where("referrer_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return StatisticsDTO{}, err
	}

	var stats StatisticsDTO
	for _, r := range rows {
		switch r.Status {
		case models.CommissionApproved:
			stats.TotalEarnings += r.Total
		case models.CommissionPaid:
			stats.TotalEarnings += r.Total
			stats.PaidTotal += r.Total
		case models.CommissionPending:
			stats.PendingTotal += r.Total
		}
	}

	err = s.DB.WithContext(ctx).Model(&models.Commission{}).
		Where("referrer_id = ?", userID).
		Distinct("referred_user_id").
		Count(&stats.TotalReferrals).Error
	if err != nil {
		return StatisticsDTO{}, err
	}
	return stats, nil
}

func (s *CommissionService) GetHistory(ctx context.Context, userID uint, page, perPage int) (common.PaginationResult, error) {
	query := s.DB.WithContext(ctx).Model(&models.Commission{}).Where("referrer_id = ?", userID)
	return common.Paginate[models.Commission](query, page, perPage, "created_at DESC, id DESC", "Commission history fetched successfully")
}

// AutoApprove approves pending commissions older than holdPeriod and returns how many changed.
func (s *CommissionService) AutoApprove(ctx context.Context, holdPeriod time.Duration) (int64, error) {
	cutoff := time.Now().Add(-holdPeriod)
	res := s.DB.WithContext(ctx).Model(&models.Commission{}).
		Where("status = ? AND created_at <= ?", models.CommissionPending, cutoff).
		Updates(map[string]interface{}{"status": models.CommissionApproved, "approved_at": time.Now()})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		monitoring.CommissionTransitions.WithLabelValues(models.CommissionApproved).Add(float64(res.RowsAffected))
	}
	return res.RowsAffected, nil
}
