package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// WeeklyForecast is one projected week of one scenario. Rows are snapshots:
// every run rewrites the (user_id, week_ending, scenario_type) slot.
type WeeklyForecast struct {
	ID                 int             `gorm:"primary_key" json:"id"`
	UserId             string          `gorm:"uniqueIndex:idx_forecast_slot;not null" json:"user_id"`
	WeekEnding         time.Time       `gorm:"uniqueIndex:idx_forecast_slot;not null" json:"week_ending"`
	ScenarioType       ScenarioType    `gorm:"uniqueIndex:idx_forecast_slot;type:enum('Conservative','Realistic','Optimistic');not null" json:"scenario_type"`
	WeekNumber         int             `gorm:"not null" json:"week_number"`
	ProjectedInflow    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"projected_inflow"`
	ProjectedOutflow   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"projected_outflow"`
	NetPosition        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_position"`
	CumulativePosition decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cumulative_position"`
	ConfidenceScore    float64         `gorm:"type:decimal(5,2);default:0" json:"confidence_score"`
	RiskLevel          RiskLevel       `gorm:"type:enum('Low','Medium','High','Critical');default:'Low'" json:"risk_level"`
	CashRunwayDays     int             `gorm:"default:0" json:"cash_runway_days"`
	SeasonalFactor     float64         `gorm:"type:decimal(5,4);default:1" json:"seasonal_factor"`
	MarketFactor       float64         `gorm:"type:decimal(5,4);default:1" json:"market_factor"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj WeeklyForecast) GetId() int {
	return obj.ID
}

// ScenarioForecast aggregates the 13 weeks of one scenario. Not persisted as a
// row; only its weeks are.
type ScenarioForecast struct {
	Type                ScenarioType      `json:"type"`
	Weeks               []*WeeklyForecast `json:"weeks"`
	TotalProjectedCash  decimal.Decimal   `json:"total_projected_cash"`
	MinimumCashPosition decimal.Decimal   `json:"minimum_cash_position"`
	WorstWeek           int               `json:"worst_week"`
	AverageWeeklyBurn   decimal.Decimal   `json:"average_weekly_burn"`
}

// Insight is a qualitative finding derived from the realistic scenario.
type Insight struct {
	Type               InsightType     `json:"type"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	ImpactAmount       decimal.Decimal `json:"impact_amount"`
	ConfidenceLevel    float64         `json:"confidence_level"`
	Actionable         bool            `json:"actionable"`
	RecommendedActions []string        `json:"recommended_actions"`
	Timeframe          string          `json:"timeframe"`
}

// SummaryMetrics condenses the analysis for dashboards.
type SummaryMetrics struct {
	CurrentCash         decimal.Decimal `json:"current_cash"`
	ProjectedCash13Week decimal.Decimal `json:"projected_cash_13_week"`
	MinimumCashPosition decimal.Decimal `json:"minimum_cash_position"`
	WorstWeek           int             `json:"worst_week"`
	AverageWeeklyBurn   decimal.Decimal `json:"average_weekly_burn"`
	CashRunwayDays      int             `json:"cash_runway_days"`
	OpenInvoiceCount    int             `json:"open_invoice_count"`
	OpenInvoiceValue    decimal.Decimal `json:"open_invoice_value"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// CashFlowAnalysis is the full result of one forecast run.
type CashFlowAnalysis struct {
	UserId          string              `json:"user_id"`
	Scenarios       []*ScenarioForecast `json:"scenarios"`
	KeyInsights     []*Insight          `json:"key_insights"`
	CriticalAlerts  []*CashGapAlert     `json:"critical_alerts"`
	Recommendations []*Recommendation   `json:"recommendations"`
	SummaryMetrics  *SummaryMetrics     `json:"summary_metrics"`
	Degraded        []string            `json:"degraded,omitempty"`
}

// Scenario returns the scenario of the given type, or nil.
func (a *CashFlowAnalysis) Scenario(t ScenarioType) *ScenarioForecast {
	for _, s := range a.Scenarios {
		if s != nil && s.Type == t {
			return s
		}
	}
	return nil
}

// UpsertWeeklyForecasts persists a run's weekly rows, replacing previous
// values in each (user_id, week_ending, scenario_type) slot.
func UpsertWeeklyForecasts(ctx context.Context, userId string, weeks []*WeeklyForecast) error {
	if userId == "" {
		return errors.New("user id is required")
	}
	if len(weeks) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "week_ending"}, {Name: "scenario_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"week_number", "projected_inflow", "projected_outflow", "net_position",
			"cumulative_position", "confidence_score", "risk_level",
			"cash_runway_days", "seasonal_factor", "market_factor", "updated_at",
		}),
	}).Create(&weeks).Error
}
