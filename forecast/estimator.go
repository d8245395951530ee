package forecast

import (
	"time"

	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/utils"
)

// PaymentProbability estimates the likelihood that one invoice is collected by
// the week ending at weekEnding, under the given scenario. Never errors: a
// missing client profile degrades to an invoice-only heuristic.
//
// The decay step measures distance beyond the invoice's due week, not distance
// from now, so an invoice evaluated at its own due week keeps its full blended
// probability.
func (e *Engine) PaymentProbability(inv *models.Invoice, profile *models.ClientProfile, weekNumber int, weekEnding time.Time, now time.Time, scenario models.ScenarioType) float64 {
	cfg := e.cfg

	base := cfg.DefaultBaseProbability
	if inv.BaseProbability != nil {
		base = utils.Clamp01(*inv.BaseProbability)
	}

	p := base
	if profile != nil {
		reliability := utils.ClampFloat(float64(profile.ReliabilityScore), 0, 100) / 100
		w := utils.Clamp01(cfg.ReliabilityBlendWeight)
		p = (1-w)*base + w*reliability

		if e.inPaymentWindow(inv, profile, weekEnding) {
			p += cfg.PaymentWindowBonus
		}
	}

	// Already-overdue invoices get harder to collect.
	daysOverdue := utils.DaysBetween(inv.DueDate, now)
	if daysOverdue > 0 {
		penalty := cfg.OverduePenaltyPerDay * float64(daysOverdue)
		if penalty > cfg.OverduePenaltyCap {
			penalty = cfg.OverduePenaltyCap
		}
		p -= penalty
	}

	for i := 0; i < e.decayWeeks(inv, weekNumber, now); i++ {
		p *= cfg.WeeklyDecayRate
	}

	switch scenario {
	case models.ScenarioConservative:
		p *= cfg.ConservativeMultiplier
	case models.ScenarioOptimistic:
		p *= cfg.OptimisticMultiplier
	}

	return utils.Clamp01(p)
}

// inPaymentWindow reports whether the client's typical payment date
// (issue + avgPaymentDays, with slack) lands in the 7-day window ending at
// weekEnding.
func (e *Engine) inPaymentWindow(inv *models.Invoice, profile *models.ClientProfile, weekEnding time.Time) bool {
	expected := inv.IssueDate.AddDate(0, 0, profile.AvgPaymentDays)
	lo := weekEnding.AddDate(0, 0, -7-e.cfg.PaymentWindowSlackDays)
	hi := weekEnding.AddDate(0, 0, e.cfg.PaymentWindowSlackDays)
	return expected.After(lo) && !expected.After(hi)
}

// decayWeeks is how many weeks the target week sits beyond the invoice's due
// week; zero when the invoice is due in or after the target week.
func (e *Engine) decayWeeks(inv *models.Invoice, weekNumber int, now time.Time) int {
	daysUntilDue := utils.DaysBetween(utils.StartOfDayUTC(now), utils.StartOfDayUTC(inv.DueDate))
	dueWeek := 0
	if daysUntilDue > 0 {
		dueWeek = (daysUntilDue + 6) / 7
	}
	if weekNumber <= dueWeek {
		return 0
	}
	return weekNumber - dueWeek
}
