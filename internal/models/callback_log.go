package models

import (
	"time"
)

type CallbackLog struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Source      string    `gorm:"column:source;size:50;not null" json:"source"`
	RequestType string    `gorm:"column:request_type;size:50" json:"request_type"`
	Reference   string    `gorm:"column:reference;size:100;index" json:"reference"`
	Request     string    `gorm:"column:request;type:text" json:"request"`
	Response    string    `gorm:"column:response;type:text" json:"response"`
	Status      int       `gorm:"column:status;default:0" json:"status"` // 0: failed, 1: processed
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (CallbackLog) TableName() string {
	return "callback_logs"
}
