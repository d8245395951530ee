package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const fetchTimeout = 5 * time.Second

// Engine bundles the payment-probability estimator, scenario generator and
// insight generator behind one type. The clock and runway helper are injected
// so forecasts stay a pure function of (inputs, now).
type Engine struct {
	cfg config.ForecastModel
	log *logrus.Logger
	now func() time.Time

	// RunwayFn overrides the default burn-rate runway estimate when set.
	RunwayFn func(cash, weeklyBurn decimal.Decimal) int
}

func NewEngine() *Engine {
	return NewEngineWith(config.GetForecastModel(), config.GetLogger(), time.Now)
}

func NewEngineWith(cfg config.ForecastModel, log *logrus.Logger, now func() time.Time) *Engine {
	if log == nil {
		log = logrus.New()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, log: log, now: now}
}

func (e *Engine) Config() config.ForecastModel { return e.cfg }

// DataSet is everything one forecast run reads, fetched up front so the math
// below stays pure. Degraded lists input categories that failed to load and
// were substituted with defaults.
type DataSet struct {
	UserId       string
	CurrentCash  decimal.Decimal
	Invoices     []*models.Invoice
	Profiles     map[int]*models.ClientProfile
	Expenses     []*models.RecurringExpense
	History      []*models.PaymentHistory
	MarketFactor float64
	Degraded     []string
}

// ForecastOptions tweaks a single run.
type ForecastOptions struct {
	// MarketFactor overrides the configured external market signal.
	MarketFactor *float64 `json:"market_factor"`
	// SkipPersist computes the analysis without writing forecast snapshots.
	SkipPersist bool `json:"skip_persist"`
}

// LoadDataSet fetches all inputs with a bounded timeout per source. Each
// source fails independently: on error the category is logged, recorded in
// Degraded and replaced with an empty/default value rather than aborting the
// run.
func (e *Engine) LoadDataSet(ctx context.Context, userId string) *DataSet {
	ds := &DataSet{
		UserId:       userId,
		CurrentCash:  e.cfg.DefaultCashPosition,
		Profiles:     map[int]*models.ClientProfile{},
		MarketFactor: e.cfg.MarketFactor,
	}

	fetch := func(name string, fn func(context.Context) error) {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		if err := fn(fetchCtx); err != nil {
			config.LogError(e.log, "forecast", "LoadDataSet", name, userId, err)
			ds.Degraded = append(ds.Degraded, name)
		}
	}

	fetch("current_cash", func(c context.Context) error {
		cash, err := models.GetCurrentCash(c, userId, e.cfg.DefaultCashPosition)
		if err != nil {
			return err
		}
		ds.CurrentCash = cash
		return nil
	})
	fetch("invoices", func(c context.Context) error {
		invoices, err := models.GetOpenInvoices(c, userId)
		if err != nil {
			return err
		}
		ds.Invoices = invoices
		return nil
	})
	fetch("client_profiles", func(c context.Context) error {
		profiles, err := models.GetClientProfileMap(c, userId)
		if err != nil {
			return err
		}
		ds.Profiles = profiles
		return nil
	})
	fetch("recurring_expenses", func(c context.Context) error {
		expenses, err := models.GetActiveRecurringExpenses(c, userId)
		if err != nil {
			return err
		}
		ds.Expenses = expenses
		return nil
	})
	fetch("payment_history", func(c context.Context) error {
		since := e.now().AddDate(0, -6, 0)
		history, err := models.GetPaymentHistory(c, userId, since)
		if err != nil {
			return err
		}
		ds.History = history
		return nil
	})

	return ds
}

// GenerateForecast runs the full analysis for one user: all three scenarios
// (computed concurrently; they share no mutable state), insights from the
// realistic scenario, and summary metrics. Snapshot persistence and caching
// are best-effort; the in-memory analysis is returned even when they fail.
func (e *Engine) GenerateForecast(ctx context.Context, userId string, opts *ForecastOptions) (analysis *models.CashFlowAnalysis, err error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}

	defer func() {
		if r := recover(); r != nil {
			config.LogError(e.log, "forecast", "GenerateForecast", "panic recovered", userId, fmt.Errorf("%v", r))
			analysis = &models.CashFlowAnalysis{UserId: userId, Scenarios: []*models.ScenarioForecast{}}
			err = fmt.Errorf("forecast generation failed for user %s", userId)
		}
	}()

	now := e.now()
	ds := e.LoadDataSet(ctx, userId)
	if opts != nil && opts.MarketFactor != nil {
		ds.MarketFactor = *opts.MarketFactor
	}

	scenarioTypes := models.AllScenarioTypes()
	scenarios := make([]*models.ScenarioForecast, len(scenarioTypes))
	var wg sync.WaitGroup
	for i, st := range scenarioTypes {
		wg.Add(1)
		go func(i int, st models.ScenarioType) {
			defer wg.Done()
			scenarios[i] = e.BuildScenario(ds, st, now)
		}(i, st)
	}
	wg.Wait()

	analysis = &models.CashFlowAnalysis{
		UserId:    userId,
		Scenarios: scenarios,
		Degraded:  ds.Degraded,
	}

	realistic := analysis.Scenario(models.ScenarioRealistic)
	analysis.KeyInsights = e.GenerateInsights(ds, realistic, now)
	analysis.SummaryMetrics = e.summaryMetrics(ds, realistic, now)
	e.attachActiveAlerts(ctx, analysis)

	if opts == nil || !opts.SkipPersist {
		e.persistSnapshots(ctx, userId, scenarios)
	}
	e.cacheAnalysis(userId, analysis)

	return analysis, nil
}

func (e *Engine) summaryMetrics(ds *DataSet, realistic *models.ScenarioForecast, now time.Time) *models.SummaryMetrics {
	metrics := &models.SummaryMetrics{
		CurrentCash: ds.CurrentCash,
		GeneratedAt: now,
	}
	for _, inv := range ds.Invoices {
		metrics.OpenInvoiceCount++
		metrics.OpenInvoiceValue = metrics.OpenInvoiceValue.Add(inv.Amount)
	}
	if realistic != nil && len(realistic.Weeks) > 0 {
		metrics.ProjectedCash13Week = realistic.TotalProjectedCash
		metrics.MinimumCashPosition = realistic.MinimumCashPosition
		metrics.WorstWeek = realistic.WorstWeek
		metrics.AverageWeeklyBurn = realistic.AverageWeeklyBurn
		metrics.CashRunwayDays = e.runwayDays(ds.CurrentCash, realistic.AverageWeeklyBurn)
	}
	return metrics
}

// attachActiveAlerts folds the user's open cash-gap alerts into the analysis:
// critical ones verbatim, plus the most urgent recommendation of every open
// alert. Read failures degrade to an analysis without the alert section.
func (e *Engine) attachActiveAlerts(ctx context.Context, analysis *models.CashFlowAnalysis) {
	alerts, err := models.GetActiveAlerts(ctx, analysis.UserId)
	if err != nil {
		config.LogError(e.log, "forecast", "attachActiveAlerts", "load active alerts", analysis.UserId, err)
		return
	}
	for _, alert := range alerts {
		if alert.Severity == models.SeverityCritical {
			analysis.CriticalAlerts = append(analysis.CriticalAlerts, alert)
		}
		if len(alert.Recommendations) > 0 {
			analysis.Recommendations = append(analysis.Recommendations, alert.Recommendations[0])
		}
	}
}

// persistSnapshots upserts the weekly rows of every scenario. Failures are
// logged; persistence is not a precondition for returning the analysis.
func (e *Engine) persistSnapshots(ctx context.Context, userId string, scenarios []*models.ScenarioForecast) {
	var weeks []*models.WeeklyForecast
	for _, s := range scenarios {
		if s == nil {
			continue
		}
		weeks = append(weeks, s.Weeks...)
	}
	if err := models.UpsertWeeklyForecasts(ctx, userId, weeks); err != nil {
		config.LogError(e.log, "forecast", "persistSnapshots", "upsert weekly forecasts", userId, err)
	}
}

func (e *Engine) cacheAnalysis(userId string, analysis *models.CashFlowAnalysis) {
	if err := utils.StoreRedis[models.CashFlowAnalysis](analysis, userId); err != nil {
		config.LogError(e.log, "forecast", "cacheAnalysis", "store analysis", userId, err)
	}
}

// GetCachedAnalysis returns the last generated analysis, if still cached.
func GetCachedAnalysis(userId string) (*models.CashFlowAnalysis, error) {
	return utils.RetrieveRedis[models.CashFlowAnalysis](userId)
}
