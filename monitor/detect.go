package monitor

import (
	"fmt"
	"sort"
	"time"

	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/shopspring/decimal"
)

// DetectionInput carries everything one detection pass reads. Pure data: the
// detector itself never touches the database.
type DetectionInput struct {
	UserId       string
	Realistic    *models.ScenarioForecast
	Settings     *models.AlertSettings
	OverdueTotal decimal.Decimal
	Now          time.Time
}

// DetectCandidates evaluates the four triggers against every week of the
// realistic scenario, attaches recommendations, then dedupes by
// (type, projectedDate) keeping the highest severity and sorts by severity
// weight. Running it twice over the same input yields the same candidates.
func (m *Monitor) DetectCandidates(in DetectionInput) []*models.CashGapAlert {
	if in.Realistic == nil || in.Settings == nil || len(in.Realistic.Weeks) == 0 {
		return nil
	}

	avgOutflow, avgInflow := scenarioAverages(in.Realistic)

	var candidates []*models.CashGapAlert
	for _, week := range in.Realistic.Weeks {
		if a := m.bufferBreach(in, week); a != nil {
			candidates = append(candidates, a)
		}
		if a := m.negativeCash(in, week); a != nil {
			candidates = append(candidates, a)
		}
		if a := m.expenseSpike(in, week, avgOutflow); a != nil {
			candidates = append(candidates, a)
		}
		if a := m.revenueDrop(in, week, avgInflow); a != nil {
			candidates = append(candidates, a)
		}
	}

	return prioritize(dedupe(candidates))
}

func scenarioAverages(s *models.ScenarioForecast) (avgOutflow, avgInflow decimal.Decimal) {
	if len(s.Weeks) == 0 {
		return decimal.Zero, decimal.Zero
	}
	totalOut := decimal.Zero
	totalIn := decimal.Zero
	for _, w := range s.Weeks {
		totalOut = totalOut.Add(w.ProjectedOutflow)
		totalIn = totalIn.Add(w.ProjectedInflow)
	}
	n := decimal.NewFromInt(int64(len(s.Weeks)))
	return totalOut.Div(n), totalIn.Div(n)
}

// bufferBreach fires when week-end cash falls below the configured safety
// buffer; severity scales with how soon the breach lands.
func (m *Monitor) bufferBreach(in DetectionInput, week *models.WeeklyForecast) *models.CashGapAlert {
	buffer := in.Settings.MinimumCashBuffer
	if !week.CumulativePosition.LessThan(buffer) {
		return nil
	}

	shortfall := buffer.Sub(week.CumulativePosition)
	daysUntil := utils.DaysBetween(in.Now, week.WeekEnding)

	severity := models.SeverityMedium
	switch {
	case daysUntil <= in.Settings.CriticalThresholdDays:
		severity = models.SeverityCritical
	case daysUntil <= in.Settings.WarningThresholdDays:
		severity = models.SeverityHigh
	}

	return m.newCandidate(in, week, models.AlertTypeBufferBreach, severity, shortfall,
		"Cash buffer breach projected",
		fmt.Sprintf("Week %d cash of $%s falls $%s below the $%s minimum buffer (%d days out).",
			week.WeekNumber, week.CumulativePosition.StringFixed(2), shortfall.StringFixed(2), buffer.StringFixed(2), daysUntil),
		models.AlertTrigger{
			Type:        models.AlertTypeBufferBreach,
			Threshold:   buffer,
			ActualValue: week.CumulativePosition,
			Description: fmt.Sprintf("projected cash below minimum buffer in week %d", week.WeekNumber),
		})
}

// negativeCash is always critical regardless of buffer settings.
func (m *Monitor) negativeCash(in DetectionInput, week *models.WeeklyForecast) *models.CashGapAlert {
	if !week.CumulativePosition.IsNegative() {
		return nil
	}
	shortfall := week.CumulativePosition.Abs()
	return m.newCandidate(in, week, models.AlertTypeCashGap, models.SeverityCritical, shortfall,
		"Negative cash position projected",
		fmt.Sprintf("Week %d cash goes negative by $%s.", week.WeekNumber, shortfall.StringFixed(2)),
		models.AlertTrigger{
			Type:        models.AlertTypeCashGap,
			Threshold:   decimal.Zero,
			ActualValue: week.CumulativePosition,
			Description: fmt.Sprintf("projected cash below zero in week %d", week.WeekNumber),
		})
}

func (m *Monitor) expenseSpike(in DetectionInput, week *models.WeeklyForecast, avgOutflow decimal.Decimal) *models.CashGapAlert {
	if !avgOutflow.IsPositive() {
		return nil
	}
	threshold := avgOutflow.Mul(decimal.NewFromInt(2))
	if !week.ProjectedOutflow.GreaterThan(threshold) {
		return nil
	}
	excess := week.ProjectedOutflow.Sub(avgOutflow)
	return m.newCandidate(in, week, models.AlertTypeExpenseSpike, models.SeverityMedium, excess,
		"Expense spike projected",
		fmt.Sprintf("Week %d outflow of $%s is more than double the $%s weekly average.",
			week.WeekNumber, week.ProjectedOutflow.StringFixed(2), avgOutflow.StringFixed(2)),
		models.AlertTrigger{
			Type:        models.AlertTypeExpenseSpike,
			Threshold:   threshold,
			ActualValue: week.ProjectedOutflow,
			Description: fmt.Sprintf("outflow above 2x weekly average in week %d", week.WeekNumber),
		})
}

func (m *Monitor) revenueDrop(in DetectionInput, week *models.WeeklyForecast, avgInflow decimal.Decimal) *models.CashGapAlert {
	if !avgInflow.IsPositive() {
		return nil
	}
	threshold := utils.DecimalMulFloat(avgInflow, 0.7)
	if !week.ProjectedInflow.LessThan(threshold) {
		return nil
	}
	shortfall := avgInflow.Sub(week.ProjectedInflow)
	return m.newCandidate(in, week, models.AlertTypeRevenueDrop, models.SeverityMedium, shortfall,
		"Revenue drop projected",
		fmt.Sprintf("Week %d inflow of $%s is below 70%% of the $%s weekly average.",
			week.WeekNumber, week.ProjectedInflow.StringFixed(2), avgInflow.StringFixed(2)),
		models.AlertTrigger{
			Type:        models.AlertTypeRevenueDrop,
			Threshold:   threshold,
			ActualValue: week.ProjectedInflow,
			Description: fmt.Sprintf("inflow below 70%% of weekly average in week %d", week.WeekNumber),
		})
}

func (m *Monitor) newCandidate(in DetectionInput, week *models.WeeklyForecast, alertType models.AlertType, severity models.AlertSeverity, shortfall decimal.Decimal, title, description string, trigger models.AlertTrigger) *models.CashGapAlert {
	alert := &models.CashGapAlert{
		UserId:             in.UserId,
		AlertType:          alertType,
		ProjectedDate:      utils.StartOfDayUTC(week.WeekEnding),
		Severity:           severity,
		Title:              title,
		Description:        description,
		ProjectedShortfall: shortfall.Round(4),
		WeekNumber:         week.WeekNumber,
		Triggers:           []models.AlertTrigger{trigger},
		CurrentStatus:      models.AlertStatusActive,
		Metadata: map[string]any{
			"week_end_cash":    week.CumulativePosition.String(),
			"week_inflow":      week.ProjectedInflow.String(),
			"week_outflow":     week.ProjectedOutflow.String(),
			"confidence_score": week.ConfidenceScore,
		},
	}
	alert.Recommendations = m.RecommendationsFor(alertType, RecommendationInput{
		Shortfall:    shortfall,
		OverdueTotal: in.OverdueTotal,
		WeekOutflow:  week.ProjectedOutflow,
	})
	return alert
}

// dedupe groups candidates by (type, projectedDate) keeping the
// highest-severity one; a week that trips both the buffer and the gap trigger
// still produces two alerts, because their types differ.
func dedupe(candidates []*models.CashGapAlert) []*models.CashGapAlert {
	byKey := map[string]*models.CashGapAlert{}
	order := []string{}
	for _, c := range candidates {
		key := c.IdentityKey()
		current, ok := byKey[key]
		if !ok {
			byKey[key] = c
			order = append(order, key)
			continue
		}
		if c.Severity.Weight() > current.Severity.Weight() {
			byKey[key] = c
		}
	}
	out := make([]*models.CashGapAlert, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

// prioritize sorts by severity weight (critical first), then by how soon the
// condition lands.
func prioritize(candidates []*models.CashGapAlert) []*models.CashGapAlert {
	sort.SliceStable(candidates, func(i, j int) bool {
		wi, wj := candidates[i].Severity.Weight(), candidates[j].Severity.Weight()
		if wi != wj {
			return wi > wj
		}
		return candidates[i].WeekNumber < candidates[j].WeekNumber
	})
	return candidates
}
