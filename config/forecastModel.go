package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ForecastModel holds every tunable constant of the forecasting and alerting
// math. Benchmark values ship as defaults; each can be overridden per
// deployment via env so tests and tenants can pin their own numbers.
type ForecastModel struct {
	HorizonWeeks int

	// Payment probability estimator.
	DefaultBaseProbability float64
	// Weight of the client reliability score when blending with the invoice's
	// own base probability. 0.5 means an even blend.
	ReliabilityBlendWeight float64
	PaymentWindowBonus     float64
	PaymentWindowSlackDays int
	OverduePenaltyPerDay   float64
	OverduePenaltyCap      float64
	WeeklyDecayRate        float64
	ConservativeMultiplier float64
	OptimisticMultiplier   float64

	// Expense buffers per scenario.
	ConservativeExpenseBuffer float64
	OptimisticExpenseBuffer   float64

	// Inflow adjustments.
	SlowSeasonFactor   float64 // Q4 + Q1
	SummerSeasonFactor float64 // Jun-Aug
	MarketFactor       float64 // external signal, neutral by default

	// Confidence score.
	BaseConfidence          float64
	ConfidenceDecayPerWeek  float64
	ConfidencePerHistoryRow float64
	MinConfidence           float64
	MaxConfidence           float64

	// Week-level risk thresholds.
	HighRiskCumulative   decimal.Decimal
	MediumRiskCumulative decimal.Decimal
	HighRiskWeeklyNet    decimal.Decimal
	MediumRiskWeeklyNet  decimal.Decimal

	// Runway cap when burn is zero or cash never runs out.
	MaxRunwayDays int

	// Insight thresholds.
	CriticalMinimumCash  decimal.Decimal
	SlowPayerDays        int
	AccelerationFraction float64
	MaterialOutstanding  decimal.Decimal

	// Fallback when a user has no cash balance row.
	DefaultCashPosition decimal.Decimal
}

// GetForecastModel builds the model constants from env with benchmark defaults.
// Called per run; cheap enough and keeps overrides test-friendly.
func GetForecastModel() ForecastModel {
	return ForecastModel{
		HorizonWeeks: intFromEnv("FORECAST_HORIZON_WEEKS", 13),

		DefaultBaseProbability: floatFromEnv("FORECAST_DEFAULT_BASE_PROBABILITY", 0.5),
		ReliabilityBlendWeight: floatFromEnv("FORECAST_RELIABILITY_BLEND_WEIGHT", 0.5),
		PaymentWindowBonus:     floatFromEnv("FORECAST_PAYMENT_WINDOW_BONUS", 0.20),
		PaymentWindowSlackDays: intFromEnv("FORECAST_PAYMENT_WINDOW_SLACK_DAYS", 3),
		OverduePenaltyPerDay:   floatFromEnv("FORECAST_OVERDUE_PENALTY_PER_DAY", 0.02),
		OverduePenaltyCap:      floatFromEnv("FORECAST_OVERDUE_PENALTY_CAP", 0.40),
		WeeklyDecayRate:        floatFromEnv("FORECAST_WEEKLY_DECAY_RATE", 0.95),
		ConservativeMultiplier: floatFromEnv("FORECAST_CONSERVATIVE_MULTIPLIER", 0.7),
		OptimisticMultiplier:   floatFromEnv("FORECAST_OPTIMISTIC_MULTIPLIER", 1.2),

		ConservativeExpenseBuffer: floatFromEnv("FORECAST_CONSERVATIVE_EXPENSE_BUFFER", 1.1),
		OptimisticExpenseBuffer:   floatFromEnv("FORECAST_OPTIMISTIC_EXPENSE_BUFFER", 0.95),

		SlowSeasonFactor:   floatFromEnv("FORECAST_SLOW_SEASON_FACTOR", 0.85),
		SummerSeasonFactor: floatFromEnv("FORECAST_SUMMER_SEASON_FACTOR", 0.95),
		MarketFactor:       floatFromEnv("FORECAST_MARKET_FACTOR", 1.0),

		BaseConfidence:          floatFromEnv("FORECAST_BASE_CONFIDENCE", 85),
		ConfidenceDecayPerWeek:  floatFromEnv("FORECAST_CONFIDENCE_DECAY_PER_WEEK", 3),
		ConfidencePerHistoryRow: floatFromEnv("FORECAST_CONFIDENCE_PER_HISTORY_ROW", 0.5),
		MinConfidence:           floatFromEnv("FORECAST_MIN_CONFIDENCE", 20),
		MaxConfidence:           floatFromEnv("FORECAST_MAX_CONFIDENCE", 95),

		HighRiskCumulative:   decimalFromEnv("FORECAST_HIGH_RISK_CUMULATIVE", "5000"),
		MediumRiskCumulative: decimalFromEnv("FORECAST_MEDIUM_RISK_CUMULATIVE", "25000"),
		HighRiskWeeklyNet:    decimalFromEnv("FORECAST_HIGH_RISK_WEEKLY_NET", "-10000"),
		MediumRiskWeeklyNet:  decimalFromEnv("FORECAST_MEDIUM_RISK_WEEKLY_NET", "-5000"),

		MaxRunwayDays: intFromEnv("FORECAST_MAX_RUNWAY_DAYS", 999),

		CriticalMinimumCash:  decimalFromEnv("FORECAST_CRITICAL_MINIMUM_CASH", "10000"),
		SlowPayerDays:        intFromEnv("FORECAST_SLOW_PAYER_DAYS", 45),
		AccelerationFraction: floatFromEnv("FORECAST_ACCELERATION_FRACTION", 0.7),
		MaterialOutstanding:  decimalFromEnv("FORECAST_MATERIAL_OUTSTANDING", "1000"),

		DefaultCashPosition: decimalFromEnv("FORECAST_DEFAULT_CASH_POSITION", "0"),
	}
}

func floatFromEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func decimalFromEnv(key string, def string) decimal.Decimal {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		d, _ = decimal.NewFromString(def)
	}
	return d
}
