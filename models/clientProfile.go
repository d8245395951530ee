package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
)

// ClientProfile is aggregated externally from payment behavior.
// ReliabilityScore is 0-100; AvgPaymentDays is days from issue to payment.
type ClientProfile struct {
	ID               int       `gorm:"primary_key" json:"id"`
	UserId           string    `gorm:"index;not null" json:"user_id" binding:"required"`
	ClientId         int       `gorm:"index;not null" json:"client_id" binding:"required"`
	Name             string    `gorm:"size:255" json:"name"`
	AvgPaymentDays   int       `gorm:"not null;default:30" json:"avg_payment_days"`
	ReliabilityScore int       `gorm:"not null;default:50" json:"reliability_score"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj ClientProfile) GetId() int {
	return obj.ID
}

// GetClientProfileMap returns the user's profiles keyed by client id.
func GetClientProfileMap(ctx context.Context, userId string) (map[int]*ClientProfile, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()
	var results []*ClientProfile
	if err := db.WithContext(ctx).Where("user_id = ?", userId).Find(&results).Error; err != nil {
		return nil, err
	}
	m := make(map[int]*ClientProfile, len(results))
	for _, p := range results {
		m[p.ClientId] = p
	}
	return m, nil
}
