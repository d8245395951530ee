package monitor

import (
	"fmt"
	"sort"

	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/shopspring/decimal"
)

// RecommendationInput is the financial context a recommendation list is built
// from. Shortfall is the amount the triggering condition is short (or the
// excess, for expense spikes).
type RecommendationInput struct {
	Shortfall    decimal.Decimal
	OverdueTotal decimal.Decimal
	WeekOutflow  decimal.Decimal
}

// RecommendationsFor builds the ranked action list for one alert type. The
// result is sorted by urgency, most urgent first.
func (m *Monitor) RecommendationsFor(alertType models.AlertType, in RecommendationInput) []*models.Recommendation {
	var recs []*models.Recommendation
	switch alertType {
	case models.AlertTypeBufferBreach:
		recs = m.bufferBreachRecommendations(in)
	case models.AlertTypeCashGap:
		recs = m.emergencyRecommendations(in)
	case models.AlertTypeExpenseSpike:
		recs = m.expenseSpikeRecommendations(in)
	case models.AlertTypeRevenueDrop:
		recs = m.revenueDropRecommendations(in)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Urgency.Weight() > recs[j].Urgency.Weight()
	})
	return recs
}

func (m *Monitor) bufferBreachRecommendations(in RecommendationInput) []*models.Recommendation {
	var recs []*models.Recommendation

	// Collection acceleration only helps when the overdue book can cover a
	// meaningful slice of the gap.
	halfShortfall := utils.DecimalMulFloat(in.Shortfall, 0.5)
	if in.OverdueTotal.GreaterThanOrEqual(halfShortfall) && in.OverdueTotal.IsPositive() {
		recoverable := decimal.Min(in.OverdueTotal, in.Shortfall)
		recs = append(recs, &models.Recommendation{
			Type:                 "accelerate_collections",
			Title:                "Accelerate overdue collections",
			Description:          fmt.Sprintf("Chase $%s of overdue invoices to close the projected gap.", in.OverdueTotal.StringFixed(2)),
			Impact:               fmt.Sprintf("Recovers up to $%s", recoverable.StringFixed(2)),
			Urgency:              models.UrgencyHigh,
			EstimatedImprovement: recoverable.Round(4),
			TimeToImplement:      "1-2 weeks",
			Difficulty:           "medium",
		})
	}

	deferrable := utils.DecimalMulFloat(in.WeekOutflow, 0.3)
	recs = append(recs, &models.Recommendation{
		Type:                 "defer_expenses",
		Title:                "Defer non-essential expenses",
		Description:          "Push discretionary spend in the breach week into later weeks.",
		Impact:               fmt.Sprintf("Frees roughly $%s", deferrable.StringFixed(2)),
		Urgency:              models.UrgencyHigh,
		EstimatedImprovement: deferrable.Round(4),
		TimeToImplement:      "immediate",
		Difficulty:           "low",
	})

	if in.Shortfall.GreaterThan(decimal.NewFromInt(10000)) {
		recs = append(recs, &models.Recommendation{
			Type:                 "bridge_financing",
			Title:                "Arrange bridge financing",
			Description:          "The gap is large enough to warrant a short-term credit facility.",
			Impact:               fmt.Sprintf("Covers the $%s shortfall", in.Shortfall.StringFixed(2)),
			Urgency:              models.UrgencyMedium,
			EstimatedImprovement: in.Shortfall.Round(4),
			TimeToImplement:      "2-4 weeks",
			Difficulty:           "high",
		})
	}

	recs = append(recs, &models.Recommendation{
		Type:                 "renegotiate_terms",
		Title:                "Renegotiate payment terms",
		Description:          "Ask key clients for deposits or shorter terms on new work.",
		Impact:               "Structurally improves inflow timing",
		Urgency:              models.UrgencyMedium,
		EstimatedImprovement: decimal.Zero,
		TimeToImplement:      "2-4 weeks",
		Difficulty:           "medium",
	})

	return recs
}

func (m *Monitor) emergencyRecommendations(in RecommendationInput) []*models.Recommendation {
	return []*models.Recommendation{
		{
			Type:                 "collection_blitz",
			Title:                "Run an immediate collection blitz",
			Description:          "Call every client with an open balance today; offer small settlement discounts if needed.",
			Impact:               fmt.Sprintf("Targets $%s of open receivables", in.OverdueTotal.StringFixed(2)),
			Urgency:              models.UrgencyCritical,
			EstimatedImprovement: in.OverdueTotal.Round(4),
			TimeToImplement:      "immediate",
			Difficulty:           "medium",
		},
		{
			Type:                 "emergency_credit",
			Title:                "Draw on an emergency credit line",
			Description:          "Activate existing credit facilities before the position goes negative.",
			Impact:               fmt.Sprintf("Covers the $%s projected gap", in.Shortfall.StringFixed(2)),
			Urgency:              models.UrgencyCritical,
			EstimatedImprovement: in.Shortfall.Round(4),
			TimeToImplement:      "days",
			Difficulty:           "medium",
		},
		{
			Type:                 "cost_cuts",
			Title:                "Make immediate cost cuts",
			Description:          "Freeze discretionary spend and pause non-critical subscriptions and contractors.",
			Impact:               fmt.Sprintf("Reduces weekly burn from $%s", in.WeekOutflow.StringFixed(2)),
			Urgency:              models.UrgencyCritical,
			EstimatedImprovement: utils.DecimalMulFloat(in.WeekOutflow, 0.3).Round(4),
			TimeToImplement:      "immediate",
			Difficulty:           "high",
		},
	}
}

func (m *Monitor) expenseSpikeRecommendations(in RecommendationInput) []*models.Recommendation {
	return []*models.Recommendation{
		{
			Type:                 "defer_expenses",
			Title:                "Spread the spike across weeks",
			Description:          "Defer around half of the unusual spend into adjacent weeks.",
			Impact:               fmt.Sprintf("Smooths $%s of the spike", utils.DecimalMulFloat(in.Shortfall, 0.5).StringFixed(2)),
			Urgency:              models.UrgencyHigh,
			EstimatedImprovement: utils.DecimalMulFloat(in.Shortfall, 0.5).Round(4),
			TimeToImplement:      "immediate",
			Difficulty:           "low",
		},
		{
			Type:                 "vendor_terms",
			Title:                "Negotiate vendor payment terms",
			Description:          "Ask the vendors behind the spike for extended terms or installments.",
			Impact:               fmt.Sprintf("Defers up to $%s", utils.DecimalMulFloat(in.Shortfall, 0.7).StringFixed(2)),
			Urgency:              models.UrgencyMedium,
			EstimatedImprovement: utils.DecimalMulFloat(in.Shortfall, 0.7).Round(4),
			TimeToImplement:      "1-2 weeks",
			Difficulty:           "medium",
		},
	}
}

func (m *Monitor) revenueDropRecommendations(in RecommendationInput) []*models.Recommendation {
	return []*models.Recommendation{
		{
			Type:                 "accelerate_collections",
			Title:                "Pull collections forward",
			Description:          "Offer early-payment incentives to bring receipts into the weak week.",
			Impact:               fmt.Sprintf("Could recover $%s of the dip", utils.DecimalMulFloat(in.Shortfall, 0.8).StringFixed(2)),
			Urgency:              models.UrgencyHigh,
			EstimatedImprovement: utils.DecimalMulFloat(in.Shortfall, 0.8).Round(4),
			TimeToImplement:      "1-2 weeks",
			Difficulty:           "medium",
		},
		{
			Type:                 "promotions",
			Title:                "Run a short-term promotion",
			Description:          "A limited offer can partially backfill the projected revenue dip.",
			Impact:               fmt.Sprintf("Could add $%s of inflow", utils.DecimalMulFloat(in.Shortfall, 0.4).StringFixed(2)),
			Urgency:              models.UrgencyMedium,
			EstimatedImprovement: utils.DecimalMulFloat(in.Shortfall, 0.4).Round(4),
			TimeToImplement:      "1-2 weeks",
			Difficulty:           "medium",
		},
	}
}
