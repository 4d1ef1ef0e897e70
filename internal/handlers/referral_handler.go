package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"affiliate-service/internal/middleware"
	"affiliate-service/internal/services"
	"affiliate-service/pkg/common"
)

type ReferralHandler struct {
	referrals     *services.ReferralService
	leads         *services.LeadService
	publicBaseURL string
}

func NewReferralHandler(referrals *services.ReferralService, leads *services.LeadService, publicBaseURL string) *ReferralHandler {
	return &ReferralHandler{referrals: referrals, leads: leads, publicBaseURL: publicBaseURL}
}

func (h *ReferralHandler) CreateLink(c *gin.Context) {
	link, err := h.referrals.CreateLink(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(link, "Referral link created"))
}

func (h *ReferralHandler) ListLinks(c *gin.Context) {
	links, err := h.referrals.ListLinks(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(links, "Referral links fetched successfully"))
}

type changeSlugRequest struct {
	Slug string `json:"slug"`
}

func (h *ReferralHandler) ChangeSlug(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req changeSlugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	link, err := h.referrals.ChangeSlug(c.Request.Context(), middleware.UserID(c), id, req.Slug)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(link, "Referral slug updated"))
}

func (h *ReferralHandler) ListLeads(c *gin.Context) {
	page, perPage := pageParams(c)
	result, err := h.leads.ListLeads(c.Request.Context(), middleware.UserID(c), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type leadStatusRequest struct {
	Status string `json:"status"`
}

func (h *ReferralHandler) UpdateLeadStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req leadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	lead, err := h.leads.UpdateLeadStatus(c.Request.Context(), middleware.UserID(c), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(lead, "Lead updated"))
}

// Resolve is public: the landing page uses it to confirm a slug before registration.
func (h *ReferralHandler) Resolve(c *gin.Context) {
	slug := services.NormalizeSlug(c.Param("slug"))
	ownerID, err := h.referrals.ResolveSlug(c.Request.Context(), slug)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{
		"slug":        slug,
		"referrer_id": ownerID,
	}, "Referral link is active"))
}

func (h *ReferralHandler) QRCode(c *gin.Context) {
	png, err := h.referrals.QRCode(c.Request.Context(), c.Param("slug"), h.publicBaseURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *ReferralHandler) SubmitLead(c *gin.Context) {
	var req services.LeadContactDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	lead, err := h.leads.RecordLead(c.Request.Context(), c.Param("slug"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.NewCreatedResponse(gin.H{"id": lead.ID}, "Thank you, we will be in touch"))
}

type attributeRequest struct {
	Slug   string `json:"slug"`
	UserID uint   `json:"user_id"`
}

// Attribute is called by the registration flow once a referred user signs up.
func (h *ReferralHandler) Attribute(c *gin.Context) {
	var req attributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	referral, err := h.referrals.AttributeRegistration(c.Request.Context(), req.Slug, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(referral, "Referral recorded"))
}
