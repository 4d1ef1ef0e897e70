package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CommissionPending  = "pending"
	CommissionApproved = "approved"
	CommissionPaid     = "paid"
	CommissionRejected = "rejected"
)

type Commission struct {
	ID                 uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferrerId         uint            `gorm:"column:referrer_id;not null;index:idx_commission_referrer_status" json:"referrer_id"`
	ReferredUserId     uint            `gorm:"column:referred_user_id;not null;index" json:"referred_user_id"`
	PurchaseId         uint            `gorm:"column:purchase_id;not null;uniqueIndex:uniq_commission_purchase" json:"purchase_id"`
	SubscriptionAmount int64           `gorm:"column:subscription_amount;not null" json:"subscription_amount"`
	CommissionAmount   int64           `gorm:"column:commission_amount;not null" json:"commission_amount"`
	Rate               decimal.Decimal `gorm:"column:rate;type:decimal(5,4);not null" json:"rate"`
	Status             string          `gorm:"column:status;size:20;not null;default:pending;index:idx_commission_referrer_status" json:"status"`
	RejectReason       string          `gorm:"column:reject_reason;size:255" json:"reject_reason,omitempty"`
	WithdrawalId       *uint           `gorm:"column:withdrawal_id;index" json:"withdrawal_id"`
	ApprovedAt         *time.Time      `gorm:"column:approved_at" json:"approved_at"`
	PaidAt             *time.Time      `gorm:"column:paid_at" json:"paid_at"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Commission) TableName() string {
	return "commissions"
}
