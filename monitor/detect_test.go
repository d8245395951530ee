package monitor_test

import (
	"reflect"
	"testing"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"bitbucket.org/cashlens/forecast_backend/forecast"
	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/monitor"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func testMonitor() *monitor.Monitor {
	engine := forecast.NewEngineWith(config.GetForecastModel(), nil, func() time.Time { return testNow })
	return monitor.NewMonitorWith(engine, nil, func() time.Time { return testNow })
}

func testSettings() *models.AlertSettings {
	s := models.DefaultAlertSettings("user-1")
	return s
}

// week builds one realistic forecast row; daysOut positions its week ending
// relative to testNow.
func week(number, daysOut int, inflow, outflow, cumulative int64) *models.WeeklyForecast {
	return &models.WeeklyForecast{
		UserId:             "user-1",
		WeekNumber:         number,
		WeekEnding:         testNow.AddDate(0, 0, daysOut),
		ScenarioType:       models.ScenarioRealistic,
		ProjectedInflow:    decimal.NewFromInt(inflow),
		ProjectedOutflow:   decimal.NewFromInt(outflow),
		CumulativePosition: decimal.NewFromInt(cumulative),
	}
}

func scenario(weeks ...*models.WeeklyForecast) *models.ScenarioForecast {
	return &models.ScenarioForecast{Type: models.ScenarioRealistic, Weeks: weeks}
}

func detect(m *monitor.Monitor, s *models.ScenarioForecast, settings *models.AlertSettings, overdue int64) []*models.CashGapAlert {
	return m.DetectCandidates(monitor.DetectionInput{
		UserId:       "user-1",
		Realistic:    s,
		Settings:     settings,
		OverdueTotal: decimal.NewFromInt(overdue),
		Now:          testNow,
	})
}

func findAlert(alerts []*models.CashGapAlert, typ models.AlertType) *models.CashGapAlert {
	for _, a := range alerts {
		if a.AlertType == typ {
			return a
		}
	}
	return nil
}

// Cash of $20,000 against a $25,000 buffer 10 days out (inside the 14-day
// critical window) is a critical buffer breach with a $5,000 shortfall.
func TestDetectCandidates_BufferBreachSeverity(t *testing.T) {
	m := testMonitor()
	s := scenario(
		week(1, 7, 5000, 5000, 30000),
		week(2, 10, 5000, 5000, 20000),
		week(5, 35, 5000, 5000, 21000),
	)

	alerts := detect(m, s, testSettings(), 0)

	breach := findAlert(alerts, models.AlertTypeBufferBreach)
	if breach == nil {
		t.Fatalf("expected a buffer breach alert, got %v", alerts)
	}
	if breach.Severity != models.SeverityCritical {
		t.Fatalf("expected Critical severity 10 days out, got %s", breach.Severity)
	}
	if !breach.ProjectedShortfall.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("shortfall expected 5000, got %s", breach.ProjectedShortfall)
	}
	if breach.WeekNumber != 2 {
		t.Fatalf("expected the nearest breach week 2, got week %d", breach.WeekNumber)
	}
	if len(breach.Recommendations) == 0 {
		t.Fatal("buffer breach should carry recommendations")
	}

	// The week-5 breach (35 days out, past the 30-day warning window) surfaces
	// as its own Medium alert on a different projected date.
	var distant *models.CashGapAlert
	for _, a := range alerts {
		if a.AlertType == models.AlertTypeBufferBreach && a.WeekNumber == 5 {
			distant = a
		}
	}
	if distant == nil {
		t.Fatal("expected a second buffer breach alert for week 5")
	}
	if distant.Severity != models.SeverityMedium {
		t.Fatalf("expected Medium severity 35 days out, got %s", distant.Severity)
	}
}

// A negative projection always yields a critical cash gap alert regardless of
// thresholds, alongside the buffer breach for the same week.
func TestDetectCandidates_NegativeCashIsAlwaysCritical(t *testing.T) {
	m := testMonitor()
	settings := testSettings()
	settings.CriticalThresholdDays = 1 // even outside the critical window

	s := scenario(
		week(1, 7, 4000, 4000, 40000),
		week(6, 42, 4000, 4000, -3000),
	)

	alerts := detect(m, s, settings, 0)

	gap := findAlert(alerts, models.AlertTypeCashGap)
	if gap == nil {
		t.Fatalf("expected a cash gap alert, got %v", alerts)
	}
	if gap.Severity != models.SeverityCritical {
		t.Fatalf("negative cash must be Critical, got %s", gap.Severity)
	}
	if !gap.ProjectedShortfall.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("shortfall expected 3000, got %s", gap.ProjectedShortfall)
	}

	if breach := findAlert(alerts, models.AlertTypeBufferBreach); breach == nil {
		t.Fatal("the same week should also breach the buffer")
	}
}

func TestDetectCandidates_ExpenseSpike(t *testing.T) {
	m := testMonitor()
	s := scenario(
		week(1, 7, 5000, 1000, 50000),
		week(2, 14, 5000, 1000, 54000),
		week(3, 21, 5000, 7000, 52000),
	)

	alerts := detect(m, s, testSettings(), 0)

	spike := findAlert(alerts, models.AlertTypeExpenseSpike)
	if spike == nil {
		t.Fatalf("expected an expense spike alert, got %v", alerts)
	}
	// Average outflow is 3000; the spike's shortfall is the excess above it.
	if !spike.ProjectedShortfall.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("excess expected 4000, got %s", spike.ProjectedShortfall)
	}
	if spike.Severity != models.SeverityMedium {
		t.Fatalf("expected Medium severity, got %s", spike.Severity)
	}
}

func TestDetectCandidates_RevenueDrop(t *testing.T) {
	m := testMonitor()
	s := scenario(
		week(1, 7, 6000, 2000, 50000),
		week(2, 14, 6000, 2000, 54000),
		week(3, 21, 600, 2000, 52000),
	)

	alerts := detect(m, s, testSettings(), 0)

	drop := findAlert(alerts, models.AlertTypeRevenueDrop)
	if drop == nil {
		t.Fatalf("expected a revenue drop alert, got %v", alerts)
	}
	// Average inflow is 4200; week 3's 600 is well under the 70% line.
	want := decimal.NewFromInt(4200).Sub(decimal.NewFromInt(600))
	if !drop.ProjectedShortfall.Equal(want) {
		t.Fatalf("shortfall expected %s, got %s", want, drop.ProjectedShortfall)
	}
}

func TestDetectCandidates_SortedBySeverity(t *testing.T) {
	m := testMonitor()
	s := scenario(
		week(1, 21, 4000, 4000, 24000), // High breach (inside warning window)
		week(6, 42, 4000, 4000, -500), // Critical gap + Medium breach
	)

	alerts := detect(m, s, testSettings(), 0)
	if len(alerts) < 3 {
		t.Fatalf("expected at least 3 alerts, got %d", len(alerts))
	}
	for i := 1; i < len(alerts); i++ {
		if alerts[i].Severity.Weight() > alerts[i-1].Severity.Weight() {
			t.Fatalf("alerts not sorted by severity: %s before %s",
				alerts[i-1].Severity, alerts[i].Severity)
		}
	}
	if alerts[0].AlertType != models.AlertTypeCashGap {
		t.Fatalf("critical cash gap should rank first, got %s", alerts[0].AlertType)
	}
}

// Detection is a pure function of its input: repeated runs agree exactly,
// which is what makes reconciliation-based dedup safe.
func TestDetectCandidates_Deterministic(t *testing.T) {
	m := testMonitor()
	s := scenario(
		week(1, 7, 5000, 1000, 20000),
		week(2, 14, 5000, 1000, -1000),
		week(3, 21, 500, 7000, -8000),
	)

	a := detect(m, s, testSettings(), 12000)
	b := detect(m, s, testSettings(), 12000)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("detection is not deterministic")
	}
}

func TestDetectCandidates_QuietForecast(t *testing.T) {
	m := testMonitor()
	s := scenario(
		week(1, 7, 5000, 3000, 60000),
		week(2, 14, 5000, 3000, 62000),
	)

	if alerts := detect(m, s, testSettings(), 0); len(alerts) != 0 {
		t.Fatalf("healthy forecast should produce no alerts, got %v", alerts)
	}
}
