package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"github.com/shopspring/decimal"
)

// PaymentHistory rows only modulate forecast confidence; amounts are not
// re-projected.
type PaymentHistory struct {
	ID          int             `gorm:"primary_key" json:"id"`
	UserId      string          `gorm:"index;not null" json:"user_id" binding:"required"`
	ClientId    int             `gorm:"index" json:"client_id"`
	PaymentDate time.Time       `gorm:"not null" json:"payment_date" binding:"required"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (obj PaymentHistory) GetId() int {
	return obj.ID
}

// GetPaymentHistory returns payments recorded in the trailing `months` months.
func GetPaymentHistory(ctx context.Context, userId string, since time.Time) ([]*PaymentHistory, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()
	var results []*PaymentHistory
	err := db.WithContext(ctx).
		Where("user_id = ? AND payment_date >= ?", userId, since).
		Order("payment_date ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
