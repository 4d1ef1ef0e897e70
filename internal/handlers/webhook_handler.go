package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"affiliate-service/internal/services"
	"affiliate-service/pkg/common"
)

const (
	signatureHeader = "X-Signature"
	maxWebhookBody  = 1 << 20
)

type WebhookHandler struct {
	service *services.WebhookService
}

func NewWebhookHandler(service *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "unable to read request body")
		return nil, false
	}
	return body, true
}

// Disbursement receives payout results from SingaPay. Redeliveries of an
// applied result are acknowledged with 200 so the gateway stops retrying.
func (h *WebhookHandler) Disbursement(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	withdrawal, err := h.service.HandleDisbursementWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader))
	if errors.Is(err, services.ErrDuplicateEvent) {
		c.JSON(http.StatusOK, common.NewSuccessResponse(withdrawal, "Event already processed"))
		return
	}
	if err != nil {
		log.WithError(err).Warn("Disbursement webhook rejected")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(withdrawal, "Event processed"))
}

func (h *WebhookHandler) Purchase(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	purchase, err := h.service.HandlePurchaseWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader))
	if err != nil {
		log.WithError(err).Warn("Purchase webhook rejected")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(purchase, "Event processed"))
}
