package models

import (
	"time"
)

// AffiliateAccount is the per-user row locked while a balance is checked and reserved.
type AffiliateAccount struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId    uint      `gorm:"column:user_id;not null;uniqueIndex:uniq_affiliate_account_user" json:"user_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AffiliateAccount) TableName() string {
	return "affiliate_accounts"
}
