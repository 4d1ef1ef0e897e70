package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"affiliate-service/internal/models"
)

type PurchaseService struct {
	DB *gorm.DB
}

func NewPurchaseService(db *gorm.DB) *PurchaseService {
	return &PurchaseService{DB: db}
}

type PurchaseConfirmedDTO struct {
	PurchaseID uint       `json:"purchase_id" validate:"required"`
	BuyerID    uint       `json:"buyer_id" validate:"required"`
	PackageID  string     `json:"package_id" validate:"max=64"`
	Amount     int64      `json:"amount" validate:"required,gt=0"`
	PaidAt     *time.Time `json:"paid_at"`
}

// GetConfirmedPurchase returns the purchase only once it has been paid.
func (s *PurchaseService) GetConfirmedPurchase(ctx context.Context, purchaseID uint) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.DB.WithContext(ctx).Where("id = ? AND paid_at IS NOT NULL", purchaseID).First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: confirmed purchase %d", ErrNotFound, purchaseID)
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// RecordPurchase stores a payment confirmation. Replays keep the first paid_at.
func (s *PurchaseService) RecordPurchase(ctx context.Context, data PurchaseConfirmedDTO) (*models.Purchase, error) {
	if err := validateStruct(data); err != nil {
		return nil, err
	}

	paidAt := time.Now()
	if data.PaidAt != nil {
		paidAt = *data.PaidAt
	}

	var purchase models.Purchase
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&purchase, data.PurchaseID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			purchase = models.Purchase{
				ID:        data.PurchaseID,
				BuyerId:   data.BuyerID,
				PackageId: data.PackageID,
				Amount:    data.Amount,
				PaidAt:    &paidAt,
			}
			return tx.Create(&purchase).Error
		}
		if err != nil {
			return err
		}

		if purchase.BuyerId != data.BuyerID || purchase.Amount != data.Amount {
			return NewValidationError("purchase_id", "does not match the stored purchase")
		}
		if purchase.PaidAt == nil {
			purchase.PaidAt = &paidAt
			return tx.Model(&purchase).Update("paid_at", paidAt).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}
