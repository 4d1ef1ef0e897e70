package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"affiliate-service/internal/models"
	"affiliate-service/internal/monitoring"
	"affiliate-service/pkg/common"
)

type WithdrawalService struct {
	DB                *gorm.DB
	Ledger            *CommissionService
	Gateway           DisbursementGateway
	Tasks             TaskEnqueuer
	MinimumWithdrawal int64
}

// NewWithdrawalService wires the processor. tasks may be nil, in which case
// pending withdrawals are picked up by ReconcilePending.
func NewWithdrawalService(db *gorm.DB, ledger *CommissionService, gateway DisbursementGateway, tasks TaskEnqueuer, minimumWithdrawal int64) *WithdrawalService {
	return &WithdrawalService{
		DB:                db,
		Ledger:            ledger,
		Gateway:           gateway,
		Tasks:             tasks,
		MinimumWithdrawal: minimumWithdrawal,
	}
}

type WithdrawRequestDTO struct {
	Amount        int64  `json:"amount"`
	BankName      string `json:"bank_name" validate:"required,max=100"`
	AccountNumber string `json:"account_number" validate:"required,number,min=6,max=20"`
	AccountName   string `json:"account_name" validate:"required,max=150"`
	Notes         string `json:"notes" validate:"max=500"`
}

func (d *WithdrawRequestDTO) normalize() {
	d.BankName = strings.TrimSpace(d.BankName)
	d.AccountNumber = strings.ReplaceAll(strings.TrimSpace(d.AccountNumber), " ", "")
	d.AccountName = strings.TrimSpace(d.AccountName)
	d.Notes = strings.TrimSpace(d.Notes)
}

// RequestWithdrawal reserves amount from the user's balance by creating a
// pending withdrawal. The balance check and the insert share one locked transaction.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID uint, data WithdrawRequestDTO) (*models.Withdrawal, error) {
	data.normalize()
	if err := validateStruct(data); err != nil {
		return nil, err
	}
	if data.Amount < s.MinimumWithdrawal {
		return nil, fmt.Errorf("%w: minimum withdrawal is %d", ErrBelowMinimum, s.MinimumWithdrawal)
	}

	withdrawal := models.Withdrawal{
		Code:          common.GenerateWithdrawalCode(),
		UserId:        userID,
		Amount:        data.Amount,
		BankName:      data.BankName,
		AccountNumber: data.AccountNumber,
		AccountName:   data.AccountName,
		Notes:         data.Notes,
		Status:        models.WithdrawalPending,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockAffiliateAccount(tx, userID); err != nil {
			return err
		}
		balance, err := withdrawableBalance(tx, userID)
		if err != nil {
			return err
		}
		if data.Amount > balance {
			return fmt.Errorf("%w: available balance is %d", ErrInsufficientBalance, max(balance, 0))
		}
		return tx.Create(&withdrawal).Error
	})
	if err != nil {
		return nil, err
	}

	monitoring.WithdrawalTransitions.WithLabelValues(models.WithdrawalPending).Inc()
	log.WithFields(log.Fields{
		"withdrawal_id": withdrawal.ID,
		"user_id":       userID,
		"amount":        withdrawal.Amount,
	}).Info("Withdrawal requested")

	if s.Tasks != nil {
		if err := s.Tasks.EnqueueDisbursement(ctx, withdrawal.ID); err != nil {
			log.WithError(err).WithField("withdrawal_id", withdrawal.ID).Warn("Failed to enqueue disbursement, reconciler will retry")
		}
	}
	return &withdrawal, nil
}

// InitiateDisbursement hands a pending withdrawal to the gateway and stores
// the returned reference. Safe to retry: the withdrawal code is the idempotency key.
func (s *WithdrawalService) InitiateDisbursement(ctx context.Context, withdrawalID uint) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := s.DB.WithContext(ctx).First(&withdrawal, withdrawalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: withdrawal %d", ErrNotFound, withdrawalID)
		}
		return nil, err
	}
	if withdrawal.IsTerminal() || withdrawal.SingapayReference != nil {
		return &withdrawal, nil
	}

	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", withdrawalID, models.WithdrawalPending).
		Update("submitted_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return s.reload(ctx, withdrawalID)
	}

	reference, err := s.Gateway.InitiateDisbursement(ctx, DisbursementRequest{
		IdempotencyKey: withdrawal.Code,
		Amount:         withdrawal.Amount,
		BankName:       withdrawal.BankName,
		AccountNumber:  withdrawal.AccountNumber,
		AccountName:    withdrawal.AccountName,
		Description:    "Affiliate commission withdrawal " + withdrawal.Code,
	})
	if err != nil {
		log.WithError(err).WithField("withdrawal_id", withdrawalID).Error("Disbursement initiation failed")
		return nil, err
	}

	res = s.DB.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ? AND singapay_reference IS NULL", withdrawalID, models.WithdrawalPending).
		Update("singapay_reference", reference)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// The gateway accepted the payout but the row moved on underneath us.
		log.WithFields(log.Fields{"withdrawal_id": withdrawalID, "reference": reference}).
			Error("Disbursement reference not stored, withdrawal needs manual review")
		return s.reload(ctx, withdrawalID)
	}

	log.WithFields(log.Fields{"withdrawal_id": withdrawalID, "reference": reference}).Info("Disbursement initiated")
	return s.reload(ctx, withdrawalID)
}

// ConfirmDisbursement applies the gateway outcome for reference. A repeated
// delivery of the same outcome returns the stored withdrawal with ErrDuplicateEvent.
func (s *WithdrawalService) ConfirmDisbursement(ctx context.Context, reference, outcome string) (*models.Withdrawal, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, NewValidationError("externalReference", "is required")
	}
	outcome = ParseOutcome(outcome)
	if outcome == OutcomePending {
		return nil, NewValidationError("status", "must be success or failed")
	}

	target := models.WithdrawalPaid
	if outcome == OutcomeFailed {
		target = models.WithdrawalFailed
	}

	var withdrawal models.Withdrawal
	var duplicate bool
	var paidCommissions []uint

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("singapay_reference = ?", reference).
			First(&withdrawal).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: disbursement %s", ErrNotFound, reference)
			}
			return err
		}

		if !withdrawal.IsTerminal() {
			updates := map[string]interface{}{"status": target, "processed_at": time.Now()}
			if target == models.WithdrawalFailed {
				updates["failure_reason"] = "disbursement failed"
			}
			res := tx.Model(&models.Withdrawal{}).
				Where("id = ? AND status = ?", withdrawal.ID, models.WithdrawalPending).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				if target == models.WithdrawalPaid {
					if err := lockAffiliateAccount(tx, withdrawal.UserId); err != nil {
						return err
					}
					paid, err := s.Ledger.markPaidFIFO(tx, withdrawal.UserId, withdrawal.ID, withdrawal.Amount)
					if err != nil {
						return err
					}
					paidCommissions = paid
				}
				return tx.First(&withdrawal, withdrawal.ID).Error
			}
			// Lost the race to another delivery; judge against the winner's result.
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&withdrawal, withdrawal.ID).Error; err != nil {
				return err
			}
		}

		if withdrawal.Status != target {
			return fmt.Errorf("%w: withdrawal %d is already %s", ErrInvalidState, withdrawal.ID, withdrawal.Status)
		}
		duplicate = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			log.WithError(err).WithField("reference", reference).Warn("Conflicting disbursement outcome")
		}
		return nil, err
	}

	if duplicate {
		return &withdrawal, ErrDuplicateEvent
	}

	monitoring.WithdrawalTransitions.WithLabelValues(target).Inc()
	log.WithFields(log.Fields{
		"withdrawal_id":    withdrawal.ID,
		"reference":        reference,
		"status":           target,
		"paid_commissions": paidCommissions,
	}).Info("Disbursement confirmed")
	return &withdrawal, nil
}

// CancelWithdrawal lets the owner withdraw a request the gateway has not seen yet.
func (s *WithdrawalService) CancelWithdrawal(ctx context.Context, userID, withdrawalID uint) (*models.Withdrawal, error) {
	res := s.DB.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND user_id = ? AND status = ? AND submitted_at IS NULL", withdrawalID, userID, models.WithdrawalPending).
		Updates(map[string]interface{}{
			"status":         models.WithdrawalRejected,
			"failure_reason": "cancelled by user",
			"processed_at":   time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	withdrawal, err := s.Get(ctx, userID, withdrawalID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: withdrawal %d can no longer be cancelled", ErrInvalidState, withdrawalID)
	}

	monitoring.WithdrawalTransitions.WithLabelValues(models.WithdrawalRejected).Inc()
	return withdrawal, nil
}

// RejectWithdrawal is the operator path. Only withdrawals not yet handed to
// the gateway can be rejected.
func (s *WithdrawalService) RejectWithdrawal(ctx context.Context, withdrawalID uint, reason string) (*models.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, NewValidationError("reason", "is required")
	}

	res := s.DB.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status = ? AND submitted_at IS NULL", withdrawalID, models.WithdrawalPending).
		Updates(map[string]interface{}{
			"status":         models.WithdrawalRejected,
			"failure_reason": reason,
			"processed_at":   time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	withdrawal, err := s.reload(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: withdrawal %d cannot be rejected", ErrInvalidState, withdrawalID)
	}

	monitoring.WithdrawalTransitions.WithLabelValues(models.WithdrawalRejected).Inc()
	return withdrawal, nil
}

func (s *WithdrawalService) Get(ctx context.Context, userID, withdrawalID uint) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", withdrawalID, userID).First(&withdrawal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: withdrawal %d", ErrNotFound, withdrawalID)
	}
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

func (s *WithdrawalService) reload(ctx context.Context, withdrawalID uint) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := s.DB.WithContext(ctx).First(&withdrawal, withdrawalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: withdrawal %d", ErrNotFound, withdrawalID)
		}
		return nil, err
	}
	return &withdrawal, nil
}

// RefreshStatus polls the gateway for a pending withdrawal and applies a
// terminal result. Gateway errors leave the stored record untouched.
func (s *WithdrawalService) RefreshStatus(ctx context.Context, userID, withdrawalID uint) (*models.Withdrawal, error) {
	withdrawal, err := s.Get(ctx, userID, withdrawalID)
	if err != nil {
		return nil, err
	}
	if withdrawal.IsTerminal() || withdrawal.SingapayReference == nil || s.Gateway == nil {
		return withdrawal, nil
	}

	if err := s.pollGateway(ctx, *withdrawal.SingapayReference); err != nil {
		log.WithError(err).WithField("withdrawal_id", withdrawalID).Warn("Disbursement status poll failed")
		return withdrawal, nil
	}
	return s.Get(ctx, userID, withdrawalID)
}

func (s *WithdrawalService) pollGateway(ctx context.Context, reference string) error {
	outcome, err := s.Gateway.GetDisbursementStatus(ctx, reference)
	if err != nil {
		return err
	}
	if outcome == OutcomePending {
		return nil
	}
	_, err = s.ConfirmDisbursement(ctx, reference, outcome)
	if errors.Is(err, ErrDuplicateEvent) {
		return nil
	}
	return err
}

func (s *WithdrawalService) GetHistory(ctx context.Context, userID uint, page, perPage int) (common.PaginationResult, error) {
	query := s.DB.WithContext(ctx).Model(&models.Withdrawal{}).Where("user_id = ?", userID)
	return common.Paginate[models.Withdrawal](query, page, perPage, "created_at DESC, id DESC", "Withdrawals fetched successfully")
}

// ReconcilePending revisits withdrawals that have been pending longer than
// staleAfter: unsent ones are re-submitted, sent ones are polled.
func (s *WithdrawalService) ReconcilePending(ctx context.Context, staleAfter time.Duration) (int, error) {
	var stale []models.Withdrawal
	err := s.DB.WithContext(ctx).
		Where("status = ? AND created_at <= ?", models.WithdrawalPending, time.Now().Add(-staleAfter)).
		Order("created_at ASC").
		Limit(100).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, w := range stale {
		entry := log.WithField("withdrawal_id", w.ID)
		if w.SingapayReference == nil {
			if s.Tasks != nil {
				err = s.Tasks.EnqueueDisbursement(ctx, w.ID)
			} else {
				_, err = s.InitiateDisbursement(ctx, w.ID)
			}
		} else {
			err = s.pollGateway(ctx, *w.SingapayReference)
		}
		if err != nil {
			entry.WithError(err).Warn("Reconcile failed")
			continue
		}
		handled++
	}
	return handled, nil
}
