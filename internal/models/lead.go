package models

import (
	"time"
)

const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadClosing   = "closing"
)

type Lead struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferralLinkId uint      `gorm:"column:referral_link_id;not null;index" json:"referral_link_id"`
	Name           string    `gorm:"column:name;size:150;not null" json:"name"`
	Email          string    `gorm:"column:email;size:150" json:"email"`
	Phone          string    `gorm:"column:phone;size:30" json:"phone"`
	Notes          string    `gorm:"column:notes;type:text" json:"notes"`
	Status         string    `gorm:"column:status;size:20;not null;default:new" json:"status"`
	SubmittedAt    time.Time `gorm:"column:submitted_at;autoCreateTime" json:"submitted_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}
