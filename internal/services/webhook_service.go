package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"affiliate-service/internal/models"
	"affiliate-service/internal/monitoring"
)

const (
	SourceSingaPay = "singapay"
	SourcePayment  = "payment"
)

type WebhookService struct {
	DB                 *gorm.DB
	Withdrawals        *WithdrawalService
	Purchases          *PurchaseService
	Ledger             *CommissionService
	Tasks              TaskEnqueuer
	DisbursementSecret string
	PaymentSecret      string
}

func NewWebhookService(db *gorm.DB, withdrawals *WithdrawalService, purchases *PurchaseService, ledger *CommissionService, tasks TaskEnqueuer, disbursementSecret, paymentSecret string) *WebhookService {
	if disbursementSecret == "" || paymentSecret == "" {
		log.Warn("Webhook secret not configured, signatures will not be verified")
	}
	return &WebhookService{
		DB:                 db,
		Withdrawals:        withdrawals,
		Purchases:          purchases,
		Ledger:             ledger,
		Tasks:              tasks,
		DisbursementSecret: disbursementSecret,
		PaymentSecret:      paymentSecret,
	}
}

type DisbursementWebhookDTO struct {
	ExternalReference string `json:"externalReference"`
	Status            string `json:"status"`
}

// Sign returns the hex HMAC-SHA512 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature rejects every delivery when no secret is configured.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

func (s *WebhookService) logCallback(ctx context.Context, source, requestType, reference string, body []byte, response interface{}, status int) {
	respBytes, _ := json.Marshal(response)
	entry := models.CallbackLog{
		Source:      source,
		RequestType: requestType,
		Reference:   reference,
		Request:     string(body),
		Response:    string(respBytes),
		Status:      status,
	}
	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		log.WithError(err).Warn("Failed to store callback log")
	}
}

func webhookResult(err error) (string, int) {
	switch {
	case err == nil:
		return "processed", 1
	case errors.Is(err, ErrDuplicateEvent):
		return "duplicate", 1
	}
	return "failed", 0
}

// HandleDisbursementWebhook verifies and applies a gateway payout notification.
func (s *WebhookService) HandleDisbursementWebhook(ctx context.Context, body []byte, signature string) (*models.Withdrawal, error) {
	if !VerifySignature(s.DisbursementSecret, body, signature) {
		monitoring.WebhookDeliveries.WithLabelValues(SourceSingaPay, "bad_signature").Inc()
		s.logCallback(ctx, SourceSingaPay, "disbursement", "", body, "invalid signature", 0)
		return nil, ErrInvalidSignature
	}

	var dto DisbursementWebhookDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		monitoring.WebhookDeliveries.WithLabelValues(SourceSingaPay, "failed").Inc()
		return nil, NewValidationError("body", "must be valid JSON")
	}

	withdrawal, err := s.Withdrawals.ConfirmDisbursement(ctx, dto.ExternalReference, dto.Status)

	result, status := webhookResult(err)
	monitoring.WebhookDeliveries.WithLabelValues(SourceSingaPay, result).Inc()
	var response interface{} = result
	if err != nil && result == "failed" {
		response = err.Error()
	}
	s.logCallback(ctx, SourceSingaPay, "disbursement", dto.ExternalReference, body, response, status)

	return withdrawal, err
}

// HandlePurchaseWebhook stores a paid purchase and schedules its commission.
func (s *WebhookService) HandlePurchaseWebhook(ctx context.Context, body []byte, signature string) (*models.Purchase, error) {
	if !VerifySignature(s.PaymentSecret, body, signature) {
		monitoring.WebhookDeliveries.WithLabelValues(SourcePayment, "bad_signature").Inc()
		s.logCallback(ctx, SourcePayment, "purchase", "", body, "invalid signature", 0)
		return nil, ErrInvalidSignature
	}

	var dto PurchaseConfirmedDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		monitoring.WebhookDeliveries.WithLabelValues(SourcePayment, "failed").Inc()
		return nil, NewValidationError("body", "must be valid JSON")
	}
	reference := strconv.FormatUint(uint64(dto.PurchaseID), 10)

	purchase, err := s.Purchases.RecordPurchase(ctx, dto)
	if err != nil {
		monitoring.WebhookDeliveries.WithLabelValues(SourcePayment, "failed").Inc()
		s.logCallback(ctx, SourcePayment, "purchase", reference, body, err.Error(), 0)
		return nil, err
	}

	if s.Tasks != nil {
		err = s.Tasks.EnqueuePurchaseConfirmed(ctx, purchase.ID)
	} else {
		_, err = s.Ledger.RecordCommission(ctx, purchase.ID)
		if errors.Is(err, ErrNotReferred) {
			// Purchases without a referrer earn no commission.
			err = nil
		}
	}

	result, status := webhookResult(err)
	monitoring.WebhookDeliveries.WithLabelValues(SourcePayment, result).Inc()
	var response interface{} = result
	if err != nil {
		response = err.Error()
	}
	s.logCallback(ctx, SourcePayment, "purchase", reference, body, response, status)

	return purchase, err
}
