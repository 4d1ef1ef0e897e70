package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"affiliate-service/internal/middleware"
)

type Handlers struct {
	Commissions *CommissionHandler
	Withdrawals *WithdrawalHandler
	Referrals   *ReferralHandler
	Webhooks    *WebhookHandler
}

func NewRouter(jwtSecret string, corsOrigins []string, h Handlers) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.SetupCORS(corsOrigins))
	r.Use(middleware.Metrics())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome To Affiliate service",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public referral landing endpoints
	public := r.Group("/r/:slug")
	public.GET("", h.Referrals.Resolve)
	public.GET("/qr", h.Referrals.QRCode)
	public.POST("/leads", h.Referrals.SubmitLead)

	// Signed provider callbacks
	webhooks := r.Group("/webhook")
	webhooks.POST("/disbursement", h.Webhooks.Disbursement)
	webhooks.POST("/purchase", h.Webhooks.Purchase)

	affiliate := r.Group("/affiliate", middleware.AuthMiddleware(jwtSecret))
	{
		affiliate.GET("/commissions/statistics", h.Commissions.GetStatistics)
		affiliate.GET("/commissions/history", h.Commissions.GetHistory)
		affiliate.GET("/commissions/balance", h.Commissions.GetBalance)

		affiliate.POST("/withdrawals", h.Withdrawals.Request)
		affiliate.GET("/withdrawals", h.Withdrawals.List)
		affiliate.GET("/withdrawals/:id", h.Withdrawals.Get)
		affiliate.POST("/withdrawals/:id/cancel", h.Withdrawals.Cancel)

		affiliate.POST("/links", h.Referrals.CreateLink)
		affiliate.GET("/links", h.Referrals.ListLinks)
		affiliate.PUT("/links/:id/slug", h.Referrals.ChangeSlug)
		affiliate.GET("/leads", h.Referrals.ListLeads)
		affiliate.PATCH("/leads/:id/status", h.Referrals.UpdateLeadStatus)
	}

	admin := r.Group("/admin", middleware.AuthMiddleware(jwtSecret), middleware.AdminMiddleware())
	{
		admin.POST("/commissions/:id/approve", h.Commissions.Approve)
		admin.POST("/commissions/:id/reject", h.Commissions.Reject)
		admin.POST("/withdrawals/:id/reject", h.Withdrawals.Reject)
		admin.POST("/referrals", h.Referrals.Attribute)
	}

	return r
}
