package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"github.com/shopspring/decimal"
)

// AlertTrigger records the condition that fired, with the threshold and the
// observed value, so the alert explains itself.
type AlertTrigger struct {
	Type        AlertType       `json:"type"`
	Threshold   decimal.Decimal `json:"threshold"`
	ActualValue decimal.Decimal `json:"actual_value"`
	Description string          `json:"description"`
}

// Recommendation is one ranked remediation action attached to an alert.
type Recommendation struct {
	Type                 string          `json:"type"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	Impact               string          `json:"impact"`
	Urgency              Urgency         `json:"urgency"`
	EstimatedImprovement decimal.Decimal `json:"estimated_improvement"`
	TimeToImplement      string          `json:"time_to_implement"`
	Difficulty           string          `json:"difficulty"`
}

// CashGapAlert identity key for dedup/reconciliation is
// (user_id, alert_type, projected_date); the unique index makes racing writes
// safe even when the redis lock is unavailable.
type CashGapAlert struct {
	ID                 int               `gorm:"primary_key" json:"id"`
	UserId             string            `gorm:"uniqueIndex:idx_alert_identity;not null" json:"user_id"`
	AlertType          AlertType         `gorm:"uniqueIndex:idx_alert_identity;type:enum('BufferBreach','CashGap','ExpenseSpike','RevenueDrop');not null" json:"alert_type"`
	ProjectedDate      time.Time         `gorm:"uniqueIndex:idx_alert_identity;not null" json:"projected_date"`
	Severity           AlertSeverity     `gorm:"type:enum('Low','Medium','High','Critical');default:'Medium'" json:"severity"`
	Title              string            `gorm:"size:255" json:"title"`
	Description        string            `gorm:"type:text" json:"description"`
	ProjectedShortfall decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"projected_shortfall"`
	WeekNumber         int               `gorm:"default:0" json:"week_number"`
	Triggers           []AlertTrigger    `gorm:"serializer:json" json:"triggers"`
	Recommendations    []*Recommendation `gorm:"serializer:json" json:"recommendations"`
	CurrentStatus      AlertStatus       `gorm:"type:enum('Active','Acknowledged','Resolved','Dismissed','Expired');default:'Active'" json:"current_status"`
	Metadata           map[string]any    `gorm:"serializer:json" json:"metadata"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj CashGapAlert) GetId() int {
	return obj.ID
}

// IdentityKey builds the dedup/reconciliation key.
func (a *CashGapAlert) IdentityKey() string {
	return a.UserId + "|" + string(a.AlertType) + "|" + a.ProjectedDate.UTC().Format("2006-01-02")
}

// GetActiveAlerts returns the user's alerts still in Active status.
func GetActiveAlerts(ctx context.Context, userId string) ([]*CashGapAlert, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()
	var results []*CashGapAlert
	err := db.WithContext(ctx).
		Where("user_id = ? AND current_status = ?", userId, AlertStatusActive).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetReconcilableAlerts returns the rows a detection pass reconciles against:
// every Active alert, plus non-active rows whose projected date is still
// ahead. A re-detected condition shares the identity index slot with those
// rows, so the reconciler has to see them to reopen or suppress correctly.
func GetReconcilableAlerts(ctx context.Context, userId string, from time.Time) ([]*CashGapAlert, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()
	var results []*CashGapAlert
	err := db.WithContext(ctx).
		Where("user_id = ? AND (current_status = ? OR projected_date >= ?)", userId, AlertStatusActive, from).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListAlerts returns alerts optionally filtered by status.
func ListAlerts(ctx context.Context, userId string, status *AlertStatus) ([]*CashGapAlert, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("user_id = ?", userId)
	if status != nil {
		dbCtx = dbCtx.Where("current_status = ?", *status)
	}
	var results []*CashGapAlert
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateAlertStatus applies a consumer transition (acknowledge/resolve/dismiss).
func UpdateAlertStatus(ctx context.Context, userId string, id int, next AlertStatus) (*CashGapAlert, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()
	var alert CashGapAlert
	if err := db.WithContext(ctx).Where("user_id = ?", userId).First(&alert, id).Error; err != nil {
		return nil, errors.New("alert not found")
	}
	if err := alert.CurrentStatus.ValidateTransition(next); err != nil {
		return nil, err
	}
	alert.CurrentStatus = next
	if err := db.WithContext(ctx).Model(&alert).Update("current_status", next).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}
