package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CashBalance is the user's current cash position, maintained by the banking
// sync. One row per user.
type CashBalance struct {
	ID        int             `gorm:"primary_key" json:"id"`
	UserId    string          `gorm:"uniqueIndex;not null" json:"user_id" binding:"required"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	AsOfDate  time.Time       `gorm:"not null" json:"as_of_date"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj CashBalance) GetId() int {
	return obj.ID
}

// GetCurrentCash returns the user's cash position, or the injected default
// when no balance row exists yet.
func GetCurrentCash(ctx context.Context, userId string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if userId == "" {
		return fallback, errors.New("user id is required")
	}
	db := config.GetDB()
	var row CashBalance
	err := db.WithContext(ctx).Where("user_id = ?", userId).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fallback, nil
		}
		return fallback, err
	}
	return row.Balance, nil
}
