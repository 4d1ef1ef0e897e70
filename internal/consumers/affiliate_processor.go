package consumers

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"affiliate-service/internal/services"
)

type AffiliateProcessor struct {
	Withdrawals *services.WithdrawalService
	Ledger      *services.CommissionService
}

func NewAffiliateProcessor(withdrawals *services.WithdrawalService, ledger *services.CommissionService) *AffiliateProcessor {
	return &AffiliateProcessor{
		Withdrawals: withdrawals,
		Ledger:      ledger,
	}
}

// --- DTOs ---

type DisbursementJobDTO struct {
	WithdrawalId uint `json:"withdrawal_id"`
}

type PurchaseConfirmedJobDTO struct {
	PurchaseId uint `json:"purchase_id"`
}

// ErrPermanent marks job failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent job failure")

// ProcessDisbursement submits a pending withdrawal to the gateway. Gateway
// errors are returned so the job is retried.
func (p *AffiliateProcessor) ProcessDisbursement(ctx context.Context, data DisbursementJobDTO) error {
	entry := log.WithField("withdrawal_id", data.WithdrawalId)

	withdrawal, err := p.Withdrawals.InitiateDisbursement(ctx, data.WithdrawalId)
	if errors.Is(err, services.ErrNotFound) {
		entry.Warn("Disbursement job for unknown withdrawal")
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	if err != nil {
		return err
	}

	entry.WithField("status", withdrawal.Status).Info("Disbursement job done")
	return nil
}

// ProcessPurchaseConfirmed records the commission for a paid purchase. A purchase
// whose buyer was not referred is not an error; one that is not stored yet is retried.
func (p *AffiliateProcessor) ProcessPurchaseConfirmed(ctx context.Context, data PurchaseConfirmedJobDTO) error {
	entry := log.WithField("purchase_id", data.PurchaseId)

	commission, err := p.Ledger.RecordCommission(ctx, data.PurchaseId)
	switch {
	case errors.Is(err, services.ErrNotReferred):
		entry.Debug("No commission for purchase")
		return nil
	case errors.Is(err, services.ErrNotFound):
		entry.WithError(err).Warn("Purchase not stored yet")
		return err
	case errors.Is(err, services.ErrValidation):
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	case err != nil:
		return err
	}

	entry.WithField("commission_id", commission.ID).Info("Purchase commission job done")
	return nil
}
