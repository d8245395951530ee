package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AlertSettings is per-user monitor configuration, created lazily with
// defaults on first use.
type AlertSettings struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	UserId                string          `gorm:"uniqueIndex;not null" json:"user_id" binding:"required"`
	MinimumCashBuffer     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"minimum_cash_buffer"`
	WarningThresholdDays  int             `gorm:"not null;default:30" json:"warning_threshold_days"`
	CriticalThresholdDays int             `gorm:"not null;default:14" json:"critical_threshold_days"`
	NotificationChannels  []string        `gorm:"serializer:json" json:"notification_channels"`
	NotificationTiming    string          `gorm:"size:50;default:'immediate'" json:"notification_timing"`
	CustomRules           map[string]any  `gorm:"serializer:json" json:"custom_rules"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj AlertSettings) GetId() int {
	return obj.ID
}

func DefaultAlertSettings(userId string) *AlertSettings {
	return &AlertSettings{
		UserId:                userId,
		MinimumCashBuffer:     decimal.NewFromInt(25000),
		WarningThresholdDays:  30,
		CriticalThresholdDays: 14,
		NotificationChannels:  []string{"log"},
		NotificationTiming:    "immediate",
	}
}

// GetOrCreateAlertSettings loads the user's settings, inserting defaults when
// absent.
func GetOrCreateAlertSettings(ctx context.Context, userId string) (*AlertSettings, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()
	var settings AlertSettings
	err := db.WithContext(ctx).Where("user_id = ?", userId).Take(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	defaults := DefaultAlertSettings(userId)
	if err := db.WithContext(ctx).Create(defaults).Error; err != nil {
		// Lost a create race: re-read.
		var again AlertSettings
		if rerr := db.WithContext(ctx).Where("user_id = ?", userId).Take(&again).Error; rerr == nil {
			return &again, nil
		}
		return nil, err
	}
	return defaults, nil
}

type UpdateAlertSettingsInput struct {
	MinimumCashBuffer     *decimal.Decimal `json:"minimum_cash_buffer"`
	WarningThresholdDays  *int             `json:"warning_threshold_days"`
	CriticalThresholdDays *int             `json:"critical_threshold_days"`
	NotificationChannels  []string         `json:"notification_channels"`
	NotificationTiming    *string          `json:"notification_timing"`
	CustomRules           map[string]any   `json:"custom_rules"`
}

func UpdateAlertSettings(ctx context.Context, userId string, input *UpdateAlertSettingsInput) (*AlertSettings, error) {
	settings, err := GetOrCreateAlertSettings(ctx, userId)
	if err != nil {
		return nil, err
	}
	settings.MinimumCashBuffer = utils.DereferencePtr(input.MinimumCashBuffer, settings.MinimumCashBuffer)
	if input.WarningThresholdDays != nil {
		if *input.WarningThresholdDays <= 0 {
			return nil, errors.New("warning_threshold_days must be positive")
		}
		settings.WarningThresholdDays = *input.WarningThresholdDays
	}
	if input.CriticalThresholdDays != nil {
		if *input.CriticalThresholdDays <= 0 {
			return nil, errors.New("critical_threshold_days must be positive")
		}
		settings.CriticalThresholdDays = *input.CriticalThresholdDays
	}
	if settings.CriticalThresholdDays > settings.WarningThresholdDays {
		return nil, errors.New("critical threshold must not exceed warning threshold")
	}
	if input.NotificationChannels != nil {
		settings.NotificationChannels = input.NotificationChannels
	}
	settings.NotificationTiming = utils.DereferencePtr(input.NotificationTiming, settings.NotificationTiming)
	if input.CustomRules != nil {
		settings.CustomRules = input.CustomRules
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}
