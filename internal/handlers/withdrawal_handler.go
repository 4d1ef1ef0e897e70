package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliate-service/internal/middleware"
	"affiliate-service/internal/services"
	"affiliate-service/pkg/common"
)

type WithdrawalHandler struct {
	service *services.WithdrawalService
}

func NewWithdrawalHandler(service *services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{service: service}
}

func (h *WithdrawalHandler) Request(c *gin.Context) {
	var req services.WithdrawRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	withdrawal, err := h.service.RequestWithdrawal(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(withdrawal, "Withdrawal request submitted"))
}

func (h *WithdrawalHandler) List(c *gin.Context) {
	page, perPage := pageParams(c)
	result, err := h.service.GetHistory(c.Request.Context(), middleware.UserID(c), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get returns one withdrawal. With ?refresh=true a pending one is checked
// against the gateway first.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	get := h.service.Get
	if c.Query("refresh") == "true" {
		get = h.service.RefreshStatus
	}
	withdrawal, err := get(ctx, userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(withdrawal, "Withdrawal fetched successfully"))
}

func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	withdrawal, err := h.service.CancelWithdrawal(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(withdrawal, "Withdrawal cancelled"))
}

func (h *WithdrawalHandler) Reject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	withdrawal, err := h.service.RejectWithdrawal(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(withdrawal, "Withdrawal rejected"))
}
