package models

import (
	"time"
)

const (
	WithdrawalPending  = "pending"
	WithdrawalPaid     = "paid"
	WithdrawalFailed   = "failed"
	WithdrawalRejected = "rejected"
)

type Withdrawal struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Code              string     `gorm:"column:code;size:40;not null;uniqueIndex:uniq_withdrawal_code" json:"code"`
	UserId            uint       `gorm:"column:user_id;not null;index:idx_withdrawal_user_status" json:"user_id"`
	Amount            int64      `gorm:"column:amount;not null" json:"amount"`
	BankName          string     `gorm:"column:bank_name;size:100;not null" json:"bank_name"`
	AccountNumber     string     `gorm:"column:account_number;size:32;not null" json:"account_number"`
	AccountName       string     `gorm:"column:account_name;size:150;not null" json:"account_name"`
	Notes             string     `gorm:"column:notes;type:text" json:"notes"`
	Status            string     `gorm:"column:status;size:20;not null;default:pending;index:idx_withdrawal_user_status" json:"status"`
	SingapayReference *string    `gorm:"column:singapay_reference;size:100;uniqueIndex:uniq_withdrawal_singapay_ref" json:"singapay_reference"`
	FailureReason     string     `gorm:"column:failure_reason;size:255" json:"failure_reason,omitempty"`
	SubmittedAt       *time.Time `gorm:"column:submitted_at" json:"submitted_at"`
	ProcessedAt       *time.Time `gorm:"column:processed_at" json:"processed_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

// IsTerminal reports whether the withdrawal can no longer change state.
func (w Withdrawal) IsTerminal() bool {
	return w.Status != WithdrawalPending
}
