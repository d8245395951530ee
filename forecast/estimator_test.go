package forecast_test

import (
	"math"
	"testing"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"bitbucket.org/cashlens/forecast_backend/forecast"
	"bitbucket.org/cashlens/forecast_backend/models"
)

func testEngine(now time.Time) *forecast.Engine {
	return forecast.NewEngineWith(config.GetForecastModel(), nil, func() time.Time { return now })
}

func floatPtr(f float64) *float64 { return &f }

func approx(t *testing.T, got, want, tol float64, label string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s: expected %v, got %v", label, want, got)
	}
}

// An invoice due inside the target week keeps its blended probability with no
// decay; the scenario multipliers then scale it.
func TestPaymentProbability_ScenarioMultipliers(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)

	inv := &models.Invoice{
		ClientId:        1,
		IssueDate:       time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		DueDate:         time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC),
		BaseProbability: floatPtr(0.8),
	}
	// Same reliability as the base, so the blend stays at 0.8. Long average
	// payment days keep the expected payment date out of the bonus window.
	profile := &models.ClientProfile{ClientId: 1, AvgPaymentDays: 50, ReliabilityScore: 80}

	weekEnding := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)

	realistic := e.PaymentProbability(inv, profile, 2, weekEnding, now, models.ScenarioRealistic)
	conservative := e.PaymentProbability(inv, profile, 2, weekEnding, now, models.ScenarioConservative)
	optimistic := e.PaymentProbability(inv, profile, 2, weekEnding, now, models.ScenarioOptimistic)

	approx(t, realistic, 0.8, 1e-9, "realistic")
	approx(t, conservative, 0.56, 1e-9, "conservative")
	approx(t, optimistic, 0.96, 1e-9, "optimistic")
}

func TestPaymentProbability_MissingProfileUsesInvoiceBase(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)

	inv := &models.Invoice{
		ClientId:        7,
		IssueDate:       now.AddDate(0, 0, -5),
		DueDate:         now.AddDate(0, 0, 10),
		BaseProbability: floatPtr(0.6),
	}
	weekEnding := now.AddDate(0, 0, 14)

	got := e.PaymentProbability(inv, nil, 2, weekEnding, now, models.ScenarioRealistic)
	approx(t, got, 0.6, 1e-9, "no profile")
}

func TestPaymentProbability_MissingBaseUsesDefault(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)

	inv := &models.Invoice{
		ClientId:  7,
		IssueDate: now.AddDate(0, 0, -5),
		DueDate:   now.AddDate(0, 0, 10),
	}
	got := e.PaymentProbability(inv, nil, 2, now.AddDate(0, 0, 14), now, models.ScenarioRealistic)
	approx(t, got, e.Config().DefaultBaseProbability, 1e-9, "default base")
}

func TestPaymentProbability_OverduePenaltyIsCapped(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)

	// 60 days overdue: 60 * 0.02 = 1.2 raw, capped at 0.40.
	inv := &models.Invoice{
		ClientId:        7,
		IssueDate:       now.AddDate(0, 0, -90),
		DueDate:         now.AddDate(0, 0, -60),
		BaseProbability: floatPtr(0.9),
	}
	got := e.PaymentProbability(inv, nil, 1, now.AddDate(0, 0, 7), now, models.ScenarioRealistic)
	// Week 1 sits one week past the (already passed) due week, so one decay
	// step applies on top of the capped penalty.
	want := (0.9 - e.Config().OverduePenaltyCap) * e.Config().WeeklyDecayRate
	approx(t, got, want, 1e-9, "capped penalty")
}

func TestPaymentProbability_DecaysBeyondDueWeek(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)

	// Due in 3 days: due week 1. Evaluated at week 4, three decay steps apply.
	inv := &models.Invoice{
		ClientId:        7,
		IssueDate:       now.AddDate(0, 0, -10),
		DueDate:         now.AddDate(0, 0, 3),
		BaseProbability: floatPtr(0.8),
	}
	got := e.PaymentProbability(inv, nil, 4, now.AddDate(0, 0, 28), now, models.ScenarioRealistic)
	want := 0.8 * math.Pow(e.Config().WeeklyDecayRate, 3)
	approx(t, got, want, 1e-9, "decayed")
}

func TestPaymentProbability_StaysWithinBounds(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)

	// High base, perfect reliability, payment window bonus, optimistic
	// multiplier: still clamped to 1.
	inv := &models.Invoice{
		ClientId:        1,
		IssueDate:       now.AddDate(0, 0, -20),
		DueDate:         now.AddDate(0, 0, 10),
		BaseProbability: floatPtr(0.95),
	}
	profile := &models.ClientProfile{ClientId: 1, AvgPaymentDays: 30, ReliabilityScore: 100}
	weekEnding := now.AddDate(0, 0, 14)

	hi := e.PaymentProbability(inv, profile, 2, weekEnding, now, models.ScenarioOptimistic)
	if hi > 1 || hi < 0 {
		t.Fatalf("probability out of bounds: %v", hi)
	}

	// Deeply overdue, zero reliability, conservative: clamped to 0 at worst.
	badInv := &models.Invoice{
		ClientId:        2,
		IssueDate:       now.AddDate(0, 0, -200),
		DueDate:         now.AddDate(0, 0, -170),
		BaseProbability: floatPtr(0.05),
	}
	badProfile := &models.ClientProfile{ClientId: 2, AvgPaymentDays: 90, ReliabilityScore: 0}
	lo := e.PaymentProbability(badInv, badProfile, 13, now.AddDate(0, 0, 91), now, models.ScenarioConservative)
	if lo < 0 || lo > 1 {
		t.Fatalf("probability out of bounds: %v", lo)
	}
}
