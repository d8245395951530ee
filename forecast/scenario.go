package forecast

import (
	"time"

	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/shopspring/decimal"
)

// BuildScenario folds the data set into the 13-week projection for one
// scenario. Pure given (ds, now): identical inputs reproduce identical output.
// The fold is sequential because each week's cumulative position depends on
// the previous week.
func (e *Engine) BuildScenario(ds *DataSet, scenario models.ScenarioType, now time.Time) *models.ScenarioForecast {
	cfg := e.cfg
	start := utils.StartOfDayUTC(now)

	weeks := make([]*models.WeeklyForecast, 0, cfg.HorizonWeeks)
	cumulative := ds.CurrentCash

	for i := 1; i <= cfg.HorizonWeeks; i++ {
		weekEnding := start.AddDate(0, 0, 7*i)
		weekStart := weekEnding.AddDate(0, 0, -7)

		inflow := decimal.Zero
		for _, inv := range ds.Invoices {
			p := e.PaymentProbability(inv, ds.Profiles[inv.ClientId], i, weekEnding, now, scenario)
			inflow = inflow.Add(utils.DecimalMulFloat(inv.Amount, p))
		}

		outflow := decimal.Zero
		for _, exp := range ds.Expenses {
			n := exp.OccurrencesWithin(weekStart, weekEnding)
			if n == 0 {
				continue
			}
			outflow = outflow.Add(exp.Amount.Mul(decimal.NewFromInt(int64(n))))
		}
		outflow = utils.DecimalMulFloat(outflow, e.expenseBuffer(scenario))

		seasonal := e.seasonalFactor(weekEnding)
		adjustedInflow := utils.DecimalMulFloat(inflow, seasonal*ds.MarketFactor)

		net := adjustedInflow.Sub(outflow)
		cumulative = cumulative.Add(net)

		weeks = append(weeks, &models.WeeklyForecast{
			UserId:             ds.UserId,
			WeekEnding:         weekEnding,
			ScenarioType:       scenario,
			WeekNumber:         i,
			ProjectedInflow:    adjustedInflow.Round(4),
			ProjectedOutflow:   outflow.Round(4),
			NetPosition:        net.Round(4),
			CumulativePosition: cumulative.Round(4),
			ConfidenceScore:    e.confidenceScore(i, len(ds.History)),
			RiskLevel:          e.riskLevel(cumulative, net),
			SeasonalFactor:     seasonal,
			MarketFactor:       ds.MarketFactor,
		})
	}

	result := &models.ScenarioForecast{
		Type:  scenario,
		Weeks: weeks,
	}
	e.fillAggregates(result)
	return result
}

func (e *Engine) expenseBuffer(scenario models.ScenarioType) float64 {
	switch scenario {
	case models.ScenarioConservative:
		return e.cfg.ConservativeExpenseBuffer
	case models.ScenarioOptimistic:
		return e.cfg.OptimisticExpenseBuffer
	default:
		return 1.0
	}
}

// seasonalFactor discounts collections in the Q4/Q1 slowdown and the summer
// lull.
func (e *Engine) seasonalFactor(weekEnding time.Time) float64 {
	switch weekEnding.Month() {
	case time.October, time.November, time.December, time.January, time.February, time.March:
		return e.cfg.SlowSeasonFactor
	case time.June, time.July, time.August:
		return e.cfg.SummerSeasonFactor
	default:
		return 1.0
	}
}

// confidenceScore starts near the base, decays with distance, and improves
// with the depth of payment history available.
func (e *Engine) confidenceScore(weekNumber int, historyRows int) float64 {
	cfg := e.cfg
	score := cfg.BaseConfidence -
		cfg.ConfidenceDecayPerWeek*float64(weekNumber) +
		cfg.ConfidencePerHistoryRow*float64(historyRows)
	return utils.ClampFloat(score, cfg.MinConfidence, cfg.MaxConfidence)
}

func (e *Engine) riskLevel(cumulative, net decimal.Decimal) models.RiskLevel {
	cfg := e.cfg
	switch {
	case cumulative.IsNegative():
		return models.RiskCritical
	case cumulative.LessThan(cfg.HighRiskCumulative) || net.LessThan(cfg.HighRiskWeeklyNet):
		return models.RiskHigh
	case cumulative.LessThan(cfg.MediumRiskCumulative) || net.LessThan(cfg.MediumRiskWeeklyNet):
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// fillAggregates computes the scenario-level rollups and per-week runway.
func (e *Engine) fillAggregates(s *models.ScenarioForecast) {
	if len(s.Weeks) == 0 {
		return
	}

	totalOutflow := decimal.Zero
	minCash := s.Weeks[0].CumulativePosition
	worstWeek := s.Weeks[0].WeekNumber
	for _, w := range s.Weeks {
		totalOutflow = totalOutflow.Add(w.ProjectedOutflow)
		if w.CumulativePosition.LessThan(minCash) {
			minCash = w.CumulativePosition
			worstWeek = w.WeekNumber
		}
	}

	s.TotalProjectedCash = s.Weeks[len(s.Weeks)-1].CumulativePosition
	s.MinimumCashPosition = minCash
	s.WorstWeek = worstWeek
	s.AverageWeeklyBurn = totalOutflow.Div(decimal.NewFromInt(int64(len(s.Weeks)))).Round(4)

	for _, w := range s.Weeks {
		w.CashRunwayDays = e.runwayDays(w.CumulativePosition, s.AverageWeeklyBurn)
	}
}

// runwayDays estimates days until cash reaches zero at the scenario's average
// burn rate. Zero or negative burn means cash never runs out here; the value
// is capped instead of dividing by zero.
func (e *Engine) runwayDays(cash, weeklyBurn decimal.Decimal) int {
	if e.RunwayFn != nil {
		return e.RunwayFn(cash, weeklyBurn)
	}
	if cash.IsNegative() {
		return 0
	}
	if !weeklyBurn.IsPositive() {
		return e.cfg.MaxRunwayDays
	}
	dailyBurn := weeklyBurn.Div(decimal.NewFromInt(7))
	days := int(cash.Div(dailyBurn).IntPart())
	if days > e.cfg.MaxRunwayDays {
		return e.cfg.MaxRunwayDays
	}
	return days
}
