package forecast_test

import (
	"testing"
	"time"

	"bitbucket.org/cashlens/forecast_backend/forecast"
	"bitbucket.org/cashlens/forecast_backend/models"
	"github.com/shopspring/decimal"
)

func findInsight(insights []*models.Insight, typ models.InsightType) *models.Insight {
	for _, in := range insights {
		if in.Type == typ {
			return in
		}
	}
	return nil
}

func TestGenerateInsights_CriticalCashRisk(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)

	// Only cash and a weekly expense: the position erodes below the $10k floor.
	ds := testDataSet(now)
	ds.Invoices = nil
	ds.CurrentCash = decimal.NewFromInt(12000)

	realistic := e.BuildScenario(ds, models.ScenarioRealistic, now)
	insights := e.GenerateInsights(ds, realistic, now)

	risk := findInsight(insights, models.InsightRisk)
	if risk == nil {
		t.Fatalf("expected a risk insight, got %v", insights)
	}
	if !risk.Actionable {
		t.Fatal("risk insight should be actionable")
	}
	wantImpact := e.Config().CriticalMinimumCash.Sub(realistic.MinimumCashPosition)
	if !risk.ImpactAmount.Equal(wantImpact) {
		t.Fatalf("impact expected %s, got %s", wantImpact, risk.ImpactAmount)
	}
}

func TestGenerateInsights_NoRiskWhenCashHealthy(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)

	ds := testDataSet(now)
	ds.CurrentCash = decimal.NewFromInt(500000)

	realistic := e.BuildScenario(ds, models.ScenarioRealistic, now)
	insights := e.GenerateInsights(ds, realistic, now)

	if risk := findInsight(insights, models.InsightRisk); risk != nil {
		t.Fatalf("unexpected risk insight: %+v", risk)
	}
}

func TestGenerateInsights_PaymentAcceleration(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)

	ds := &forecast.DataSet{
		UserId:      "user-1",
		CurrentCash: decimal.NewFromInt(500000),
		Invoices: []*models.Invoice{
			{ID: 1, ClientId: 1, Amount: decimal.NewFromInt(20000), IssueDate: now.AddDate(0, 0, -30), DueDate: now.AddDate(0, 0, 30)},
			{ID: 2, ClientId: 2, Amount: decimal.NewFromInt(5000), IssueDate: now.AddDate(0, 0, -10), DueDate: now.AddDate(0, 0, 20)},
		},
		Profiles: map[int]*models.ClientProfile{
			1: {ClientId: 1, AvgPaymentDays: 60, ReliabilityScore: 70},
			2: {ClientId: 2, AvgPaymentDays: 20, ReliabilityScore: 90},
		},
		MarketFactor: 1.0,
	}

	realistic := e.BuildScenario(ds, models.ScenarioRealistic, now)
	insights := e.GenerateInsights(ds, realistic, now)

	opp := findInsight(insights, models.InsightOpportunity)
	if opp == nil {
		t.Fatalf("expected an opportunity insight, got %v", insights)
	}
	// Only the slow payer's $20k counts; impact is the acceleration fraction.
	wantImpact := decimal.NewFromInt(14000)
	if !opp.ImpactAmount.Equal(wantImpact) {
		t.Fatalf("impact expected %s, got %s", wantImpact, opp.ImpactAmount)
	}
}

func TestGenerateInsights_SeasonalPattern(t *testing.T) {
	e := testEngine(time.Now())

	november := time.Date(2026, 11, 5, 9, 0, 0, 0, time.UTC)
	ds := &forecast.DataSet{UserId: "user-1", MarketFactor: 1.0}

	insights := e.GenerateInsights(ds, nil, november)
	pattern := findInsight(insights, models.InsightPattern)
	if pattern == nil {
		t.Fatalf("expected a seasonal insight in November, got %v", insights)
	}
	if pattern.Actionable {
		t.Fatal("seasonal insight is informational, not actionable")
	}

	may := time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)
	insights = e.GenerateInsights(ds, nil, may)
	if pattern := findInsight(insights, models.InsightPattern); pattern != nil {
		t.Fatalf("unexpected seasonal insight in May: %+v", pattern)
	}
}
