package models

import (
	"time"
)

type ReferralLink struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerId     uint      `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Slug        string    `gorm:"column:slug;size:32;not null;uniqueIndex:uniq_referral_link_slug" json:"slug"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	SlugChanges int       `gorm:"column:slug_changes;not null;default:0" json:"slug_changes"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ReferralLink) TableName() string {
	return "referral_links"
}

// Referral attributes a registered user to the link that brought them in.
type Referral struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferredUserId uint      `gorm:"column:referred_user_id;not null;uniqueIndex:uniq_referral_referred_user" json:"referred_user_id"`
	ReferrerId     uint      `gorm:"column:referrer_id;not null;index" json:"referrer_id"`
	ReferralLinkId uint      `gorm:"column:referral_link_id;not null;index" json:"referral_link_id"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Referral) TableName() string {
	return "referrals"
}
