package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliate-service/internal/middleware"
	"affiliate-service/internal/services"
	"affiliate-service/pkg/common"
)

type CommissionHandler struct {
	service *services.CommissionService
}

func NewCommissionHandler(service *services.CommissionService) *CommissionHandler {
	return &CommissionHandler{service: service}
}

func (h *CommissionHandler) GetStatistics(c *gin.Context) {
	stats, err := h.service.GetStatistics(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(stats, "Commission statistics fetched successfully"))
}

func (h *CommissionHandler) GetBalance(c *gin.Context) {
	balance, err := h.service.GetWithdrawableBalance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(balance, "Balance fetched successfully"))
}

func (h *CommissionHandler) GetHistory(c *gin.Context) {
	page, perPage := pageParams(c)
	result, err := h.service.GetHistory(c.Request.Context(), middleware.UserID(c), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *CommissionHandler) Approve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	commission, err := h.service.Approve(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(commission, "Commission approved"))
}

func (h *CommissionHandler) Reject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	commission, err := h.service.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(commission, "Commission rejected"))
}
