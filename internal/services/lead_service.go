package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"affiliate-service/internal/models"
	"affiliate-service/pkg/common"
)

type LeadService struct {
	DB        *gorm.DB
	Referrals *ReferralService
}

func NewLeadService(db *gorm.DB, referrals *ReferralService) *LeadService {
	return &LeadService{DB: db, Referrals: referrals}
}

type LeadContactDTO struct {
	Name  string `json:"name" validate:"required,max=150"`
	Email string `json:"email" validate:"required_without=Phone,omitempty,email,max=150"`
	Phone string `json:"phone" validate:"required_without=Email,omitempty,min=6,max=30"`
	Notes string `json:"notes" validate:"max=2000"`
}

func (s *LeadService) RecordLead(ctx context.Context, slug string, contact LeadContactDTO) (*models.Lead, error) {
	contact.Name = strings.TrimSpace(contact.Name)
	contact.Email = strings.TrimSpace(contact.Email)
	contact.Phone = strings.TrimSpace(contact.Phone)
	if err := validateStruct(contact); err != nil {
		return nil, err
	}

	link, err := s.Referrals.activeLink(ctx, slug)
	if err != nil {
		return nil, err
	}

	lead := models.Lead{
		ReferralLinkId: link.ID,
		Name:           contact.Name,
		Email:          contact.Email,
		Phone:          contact.Phone,
		Notes:          contact.Notes,
		Status:         models.LeadNew,
	}
	if err := s.DB.WithContext(ctx).Create(&lead).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

func validLeadStatus(status string) bool {
	switch status {
	case models.LeadNew, models.LeadContacted, models.LeadClosing:
		return true
	}
	return false
}

// UpdateLeadStatus sets any of the lead statuses. Only the owner of the lead's link may update it.
func (s *LeadService) UpdateLeadStatus(ctx context.Context, ownerID, leadID uint, status string) (*models.Lead, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validLeadStatus(status) {
		return nil, NewValidationError("status", "must be one of new contacted closing")
	}

	var lead models.Lead
	err := s.DB.WithContext(ctx).
		Joins("JOIN referral_links ON referral_links.id = leads.referral_link_id").
		Where("leads.id = ? AND referral_links.owner_id = ?", leadID, ownerID).
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: lead %d", ErrNotFound, leadID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Model(&lead).Update("status", status).Error; err != nil {
		return nil, err
	}
	lead.Status = status
	return &lead, nil
}

func (s *LeadService) ListLeads(ctx context.Context, ownerID uint, page, perPage int) (common.PaginationResult, error) {
	owned := s.DB.WithContext(ctx).Model(&models.ReferralLink{}).Select("id").Where("owner_id = ?", ownerID)
	query := s.DB.WithContext(ctx).Model(&models.Lead{}).Where("referral_link_id IN (?)", owned)
	return common.Paginate[models.Lead](query, page, perPage, "submitted_at DESC, id DESC", "Leads fetched successfully")
}
