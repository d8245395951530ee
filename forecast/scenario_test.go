package forecast_test

import (
	"testing"
	"time"

	"bitbucket.org/cashlens/forecast_backend/forecast"
	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/shopspring/decimal"
)

func testDataSet(now time.Time) *forecast.DataSet {
	return &forecast.DataSet{
		UserId:      "user-1",
		CurrentCash: decimal.NewFromInt(10000),
		Invoices: []*models.Invoice{
			{
				ID:              1,
				ClientId:        1,
				Amount:          decimal.NewFromInt(10000),
				IssueDate:       now.AddDate(0, 0, -14),
				DueDate:         now.AddDate(0, 0, 14),
				BaseProbability: floatPtr(0.8),
			},
		},
		Profiles: map[int]*models.ClientProfile{},
		Expenses: []*models.RecurringExpense{
			{
				ID:          1,
				Name:        "payroll",
				Amount:      decimal.NewFromInt(1000),
				NextDueDate: now.AddDate(0, 0, 3),
				RepeatTerms: models.RecurringWeekly,
				IsActive:    utils.NewTrue(),
			},
		},
		MarketFactor: 1.0,
	}
}

func TestBuildScenario_ThirteenWeeks(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)
	ds := testDataSet(now)

	s := e.BuildScenario(ds, models.ScenarioRealistic, now)

	if len(s.Weeks) != 13 {
		t.Fatalf("expected 13 weeks, got %d", len(s.Weeks))
	}
	start := utils.StartOfDayUTC(now)
	for i, w := range s.Weeks {
		if w.WeekNumber != i+1 {
			t.Fatalf("week %d has WeekNumber %d", i, w.WeekNumber)
		}
		wantEnding := start.AddDate(0, 0, 7*(i+1))
		if !w.WeekEnding.Equal(wantEnding) {
			t.Fatalf("week %d ending expected %v, got %v", i+1, wantEnding, w.WeekEnding)
		}
		if w.ScenarioType != models.ScenarioRealistic {
			t.Fatalf("week %d scenario type %s", i+1, w.ScenarioType)
		}
	}
}

// The cumulative position of each week must equal the previous week's
// cumulative plus this week's net.
func TestBuildScenario_CumulativeInvariant(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)
	ds := testDataSet(now)

	for _, scenario := range models.AllScenarioTypes() {
		s := e.BuildScenario(ds, scenario, now)
		prev := ds.CurrentCash
		for _, w := range s.Weeks {
			want := prev.Add(w.NetPosition)
			if !w.CumulativePosition.Equal(want) {
				t.Fatalf("%s week %d: cumulative %s, expected %s",
					scenario, w.WeekNumber, w.CumulativePosition, want)
			}
			prev = w.CumulativePosition
		}
	}
}

// A $10,000 invoice at 0.8 probability contributes $8,000 of expected inflow
// in its due week.
func TestBuildScenario_ExpectedValueInflow(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)
	ds := testDataSet(now)
	ds.Expenses = nil

	s := e.BuildScenario(ds, models.ScenarioRealistic, now)

	week2 := s.Weeks[1]
	if !week2.ProjectedInflow.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("week 2 inflow expected 8000, got %s", week2.ProjectedInflow)
	}
}

func TestBuildScenario_ScenarioOrdering(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)
	ds := testDataSet(now)

	conservative := e.BuildScenario(ds, models.ScenarioConservative, now)
	realistic := e.BuildScenario(ds, models.ScenarioRealistic, now)
	optimistic := e.BuildScenario(ds, models.ScenarioOptimistic, now)

	for i := range realistic.Weeks {
		c, r, o := conservative.Weeks[i], realistic.Weeks[i], optimistic.Weeks[i]
		if c.ProjectedInflow.GreaterThan(r.ProjectedInflow) || r.ProjectedInflow.GreaterThan(o.ProjectedInflow) {
			t.Fatalf("week %d inflow ordering violated: %s / %s / %s",
				r.WeekNumber, c.ProjectedInflow, r.ProjectedInflow, o.ProjectedInflow)
		}
		if c.ProjectedOutflow.LessThan(r.ProjectedOutflow) || r.ProjectedOutflow.LessThan(o.ProjectedOutflow) {
			t.Fatalf("week %d outflow ordering violated: %s / %s / %s",
				r.WeekNumber, c.ProjectedOutflow, r.ProjectedOutflow, o.ProjectedOutflow)
		}
	}
	if conservative.TotalProjectedCash.GreaterThan(realistic.TotalProjectedCash) ||
		realistic.TotalProjectedCash.GreaterThan(optimistic.TotalProjectedCash) {
		t.Fatalf("total cash ordering violated: %s / %s / %s",
			conservative.TotalProjectedCash, realistic.TotalProjectedCash, optimistic.TotalProjectedCash)
	}
}

func TestBuildScenario_Deterministic(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)
	ds := testDataSet(now)

	a := e.BuildScenario(ds, models.ScenarioRealistic, now)
	b := e.BuildScenario(ds, models.ScenarioRealistic, now)

	for i := range a.Weeks {
		if !a.Weeks[i].CumulativePosition.Equal(b.Weeks[i].CumulativePosition) {
			t.Fatalf("week %d not deterministic: %s vs %s",
				i+1, a.Weeks[i].CumulativePosition, b.Weeks[i].CumulativePosition)
		}
	}
}

func TestBuildScenario_Aggregates(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)
	ds := testDataSet(now)

	s := e.BuildScenario(ds, models.ScenarioRealistic, now)

	last := s.Weeks[len(s.Weeks)-1]
	if !s.TotalProjectedCash.Equal(last.CumulativePosition) {
		t.Fatalf("total projected cash %s != last cumulative %s", s.TotalProjectedCash, last.CumulativePosition)
	}

	minCash := s.Weeks[0].CumulativePosition
	totalOut := decimal.Zero
	for _, w := range s.Weeks {
		if w.CumulativePosition.LessThan(minCash) {
			minCash = w.CumulativePosition
		}
		totalOut = totalOut.Add(w.ProjectedOutflow)
	}
	if !s.MinimumCashPosition.Equal(minCash) {
		t.Fatalf("minimum cash %s != %s", s.MinimumCashPosition, minCash)
	}
	wantBurn := totalOut.Div(decimal.NewFromInt(13)).Round(4)
	if !s.AverageWeeklyBurn.Equal(wantBurn) {
		t.Fatalf("average burn %s != %s", s.AverageWeeklyBurn, wantBurn)
	}
}

func TestBuildScenario_RunwayFnOverride(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)
	e.RunwayFn = func(cash, weeklyBurn decimal.Decimal) int { return 42 }
	ds := testDataSet(now)

	s := e.BuildScenario(ds, models.ScenarioRealistic, now)
	for _, w := range s.Weeks {
		if w.CashRunwayDays != 42 {
			t.Fatalf("week %d runway %d, expected injected 42", w.WeekNumber, w.CashRunwayDays)
		}
	}
}

// Zero burn caps the runway rather than dividing by zero.
func TestBuildScenario_ZeroBurnRunwayCapped(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	e := testEngine(now)
	ds := testDataSet(now)
	ds.Expenses = nil

	s := e.BuildScenario(ds, models.ScenarioRealistic, now)
	for _, w := range s.Weeks {
		if w.CashRunwayDays != e.Config().MaxRunwayDays {
			t.Fatalf("week %d runway %d, expected cap %d", w.WeekNumber, w.CashRunwayDays, e.Config().MaxRunwayDays)
		}
	}
}

func TestRecurringExpense_WeeklyOccurrences(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	exp := &models.RecurringExpense{
		Amount:      decimal.NewFromInt(500),
		NextDueDate: now.AddDate(0, 0, 3),
		RepeatTerms: models.RecurringWeekly,
		IsActive:    utils.NewTrue(),
	}

	// Every 7-day window holds exactly one weekly occurrence.
	for i := 0; i < 13; i++ {
		from := now.AddDate(0, 0, 7*i)
		to := now.AddDate(0, 0, 7*(i+1))
		if n := exp.OccurrencesWithin(from, to); n != 1 {
			t.Fatalf("window %d: expected 1 occurrence, got %d", i, n)
		}
	}

	monthly := &models.RecurringExpense{
		Amount:      decimal.NewFromInt(2000),
		NextDueDate: now.AddDate(0, 0, 10),
		RepeatTerms: models.RecurringMonthly,
		IsActive:    utils.NewTrue(),
	}
	total := 0
	for i := 0; i < 13; i++ {
		total += monthly.OccurrencesWithin(now.AddDate(0, 0, 7*i), now.AddDate(0, 0, 7*(i+1)))
	}
	if total != 3 {
		t.Fatalf("monthly expense should land 3 times in 13 weeks, got %d", total)
	}
}

func TestRecurringExpense_InactiveNeverRecurs(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	exp := &models.RecurringExpense{
		Amount:      decimal.NewFromInt(500),
		NextDueDate: now.AddDate(0, 0, 3),
		RepeatTerms: models.RecurringWeekly,
		IsActive:    utils.NewFalse(),
	}

	if n := exp.OccurrencesWithin(now, now.AddDate(0, 0, 91)); n != 0 {
		t.Fatalf("inactive expense must not recur, got %d occurrences", n)
	}

	// A scenario fed a deactivated expense projects zero outflow.
	e := testEngine(now)
	ds := testDataSet(now)
	ds.Expenses = []*models.RecurringExpense{exp}
	s := e.BuildScenario(ds, models.ScenarioRealistic, now)
	for _, w := range s.Weeks {
		if !w.ProjectedOutflow.IsZero() {
			t.Fatalf("week %d carries outflow %s from an inactive expense", w.WeekNumber, w.ProjectedOutflow)
		}
	}
}
