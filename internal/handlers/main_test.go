package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"affiliate-service/internal/database"
	"affiliate-service/internal/middleware"
	"affiliate-service/internal/services"
)

const (
	testJWTSecret     = "handler-secret"
	testWebhookSecret = "webhook-secret"
)

type stubGateway struct {
	reference string
	status    string
}

func (g *stubGateway) InitiateDisbursement(ctx context.Context, req services.DisbursementRequest) (string, error) {
	return g.reference, nil
}

func (g *stubGateway) GetDisbursementStatus(ctx context.Context, reference string) (string, error) {
	return g.status, nil
}

type testServer struct {
	db          *gorm.DB
	router      *gin.Engine
	withdrawals *services.WithdrawalService
	gateway     *stubGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	gateway := &stubGateway{reference: "SP-HANDLER-1", status: services.OutcomePending}
	referrals := services.NewReferralService(db, nil, time.Minute, 1)
	leads := services.NewLeadService(db, referrals)
	purchases := services.NewPurchaseService(db)
	ledger := services.NewCommissionService(db, purchases, referrals, decimal.RequireFromString("0.10"), 50000)
	withdrawals := services.NewWithdrawalService(db, ledger, gateway, nil, 50000)
	webhooks := services.NewWebhookService(db, withdrawals, purchases, ledger, nil, testWebhookSecret, testWebhookSecret)

	router := NewRouter(testJWTSecret, nil, Handlers{
		Commissions: NewCommissionHandler(ledger),
		Withdrawals: NewWithdrawalHandler(withdrawals),
		Referrals:   NewReferralHandler(referrals, leads, "https://aff.example.com"),
		Webhooks:    NewWebhookHandler(webhooks),
	})

	return &testServer{db: db, router: router, withdrawals: withdrawals, gateway: gateway}
}

func bearer(t *testing.T, userID uint, role string) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   int64           `json:"count"`
}

func (s *testServer) do(t *testing.T, method, path, auth string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}
