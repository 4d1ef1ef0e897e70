package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"affiliate-service/pkg/common"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomePending = "pending"
)

// DisbursementGateway sends payouts to the payment provider.
type DisbursementGateway interface {
	InitiateDisbursement(ctx context.Context, req DisbursementRequest) (string, error)
	GetDisbursementStatus(ctx context.Context, reference string) (string, error)
}

type DisbursementRequest struct {
	IdempotencyKey string
	Amount         int64
	BankName       string
	AccountNumber  string
	AccountName    string
	Description    string
}

// ParseOutcome maps provider status strings onto success, failed or pending.
func ParseOutcome(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "succeeded", "successful", "completed", "paid":
		return OutcomeSuccess
	case "failed", "failure", "rejected", "reversed", "cancelled":
		return OutcomeFailed
	}
	return OutcomePending
}

type SingaPayService struct {
	BaseURL string
	APIKey  string
	HTTP    *common.HTTPClient
}

func NewSingaPayService(baseURL, apiKey string, http *common.HTTPClient) *SingaPayService {
	return &SingaPayService{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    http,
	}
}

type singaPayDisbursement struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type singaPayResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Data    singaPayDisbursement `json:"data"`
}

func (s *SingaPayService) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + s.APIKey,
	}
}

func (s *SingaPayService) InitiateDisbursement(ctx context.Context, req DisbursementRequest) (string, error) {
	params := map[string]interface{}{
		"reference_no":   req.IdempotencyKey,
		"amount":         req.Amount,
		"currency":       "IDR",
		"bank_name":      req.BankName,
		"account_number": req.AccountNumber,
		"account_name":   req.AccountName,
		"description":    req.Description,
	}

	headers := s.headers()
	headers["Idempotency-Key"] = req.IdempotencyKey

	var resp singaPayResponse
	if err := s.HTTP.PostJSON(ctx, s.BaseURL+"/disbursements", params, headers, &resp); err != nil {
		return "", fmt.Errorf("singapay disbursement: %w", err)
	}
	if !resp.Success || resp.Data.Reference == "" {
		return "", fmt.Errorf("singapay disbursement rejected: %s", resp.Message)
	}
	return resp.Data.Reference, nil
}

func (s *SingaPayService) GetDisbursementStatus(ctx context.Context, reference string) (string, error) {
	var resp singaPayResponse
	endpoint := fmt.Sprintf("%s/disbursements/%s", s.BaseURL, url.PathEscape(reference))
	if err := s.HTTP.GetJSON(ctx, endpoint, s.headers(), &resp); err != nil {
		return "", fmt.Errorf("singapay status: %w", err)
	}
	return ParseOutcome(resp.Data.Status), nil
}
