package forecast

import (
	"fmt"
	"time"

	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/shopspring/decimal"
)

// GenerateInsights derives qualitative findings from the realistic scenario
// plus the raw invoice/client data. Descriptions carry the literal computed
// numbers so the caller can surface them without re-deriving anything.
func (e *Engine) GenerateInsights(ds *DataSet, realistic *models.ScenarioForecast, now time.Time) []*models.Insight {
	insights := []*models.Insight{}

	if risk := e.criticalCashInsight(realistic); risk != nil {
		insights = append(insights, risk)
	}
	if opp := e.accelerationInsight(ds); opp != nil {
		insights = append(insights, opp)
	}
	if pattern := e.seasonalInsight(now); pattern != nil {
		insights = append(insights, pattern)
	}

	return insights
}

// criticalCashInsight fires when the projected minimum drops below the
// configured floor, naming the exact week and amount.
func (e *Engine) criticalCashInsight(realistic *models.ScenarioForecast) *models.Insight {
	if realistic == nil || len(realistic.Weeks) == 0 {
		return nil
	}
	if !realistic.MinimumCashPosition.LessThan(e.cfg.CriticalMinimumCash) {
		return nil
	}
	return &models.Insight{
		Type:  models.InsightRisk,
		Title: "Cash position approaching critical level",
		Description: fmt.Sprintf(
			"Projected cash drops to $%s in week %d, below the $%s safety floor.",
			realistic.MinimumCashPosition.StringFixed(2),
			realistic.WorstWeek,
			e.cfg.CriticalMinimumCash.StringFixed(2),
		),
		ImpactAmount:    e.cfg.CriticalMinimumCash.Sub(realistic.MinimumCashPosition),
		ConfidenceLevel: 80,
		Actionable:      true,
		RecommendedActions: []string{
			"Accelerate collection of outstanding invoices",
			"Defer non-essential expenses",
			"Review credit options before the gap week",
		},
		Timeframe: fmt.Sprintf("week %d", realistic.WorstWeek),
	}
}

// accelerationInsight sizes the opportunity of chasing clients who routinely
// pay late. The impact is a fraction of the outstanding value, since not all
// of it can realistically be pulled forward.
func (e *Engine) accelerationInsight(ds *DataSet) *models.Insight {
	outstanding := decimal.Zero
	slowClients := 0
	seen := map[int]bool{}
	for _, inv := range ds.Invoices {
		profile := ds.Profiles[inv.ClientId]
		if profile == nil || profile.AvgPaymentDays <= e.cfg.SlowPayerDays {
			continue
		}
		outstanding = outstanding.Add(inv.Amount)
		if !seen[inv.ClientId] {
			seen[inv.ClientId] = true
			slowClients++
		}
	}
	if !outstanding.GreaterThan(e.cfg.MaterialOutstanding) {
		return nil
	}

	impact := utils.DecimalMulFloat(outstanding, e.cfg.AccelerationFraction).Round(2)
	return &models.Insight{
		Type:  models.InsightOpportunity,
		Title: "Payment acceleration opportunity",
		Description: fmt.Sprintf(
			"%d client(s) averaging over %d payment days hold $%s in open invoices; early-payment incentives could pull roughly $%s forward.",
			slowClients,
			e.cfg.SlowPayerDays,
			outstanding.StringFixed(2),
			impact.StringFixed(2),
		),
		ImpactAmount:    impact,
		ConfidenceLevel: 70,
		Actionable:      true,
		RecommendedActions: []string{
			"Offer early-payment discounts to slow-paying clients",
			"Tighten payment terms on new engagements",
			"Automate payment reminders before due dates",
		},
		Timeframe: "next 30 days",
	}
}

// seasonalInsight reminds the user that Q4/Q1 collections typically slow down.
func (e *Engine) seasonalInsight(now time.Time) *models.Insight {
	switch now.Month() {
	case time.October, time.November, time.December, time.January, time.February, time.March:
	default:
		return nil
	}
	return &models.Insight{
		Type:  models.InsightPattern,
		Title: "Seasonal slowdown in collections",
		Description: fmt.Sprintf(
			"It is %s: collections typically slow during Q4 and Q1. The forecast already discounts inflows by %.0f%% for these weeks.",
			now.Month(),
			(1-e.cfg.SlowSeasonFactor)*100,
		),
		ImpactAmount:    decimal.Zero,
		ConfidenceLevel: 65,
		Actionable:      false,
		RecommendedActions: []string{
			"Build extra buffer ahead of the seasonal dip",
			"Invoice earlier in the billing cycle during slow months",
		},
		Timeframe: "current quarter",
	}
}
