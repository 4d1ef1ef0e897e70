package models

import (
	"time"
)

// Purchase is owned by the payment flow. The ledger only reads it.
type Purchase struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	BuyerId   uint       `gorm:"column:buyer_id;not null;index" json:"buyer_id"`
	PackageId string     `gorm:"column:package_id;size:64" json:"package_id"`
	Amount    int64      `gorm:"column:amount;not null" json:"amount"`
	PaidAt    *time.Time `gorm:"column:paid_at" json:"paid_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}
