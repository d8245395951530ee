package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"bitbucket.org/cashlens/forecast_backend/forecast"
	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"
)

// Monitor runs the cash-gap detection cycle: project the realistic scenario,
// evaluate triggers, reconcile against stored alerts, and dispatch
// notifications for critical ones.
type Monitor struct {
	engine *forecast.Engine
	log    *logrus.Logger
	now    func() time.Time
}

func NewMonitor() *Monitor {
	return NewMonitorWith(forecast.NewEngine(), config.GetLogger(), time.Now)
}

func NewMonitorWith(engine *forecast.Engine, log *logrus.Logger, now func() time.Time) *Monitor {
	if engine == nil {
		engine = forecast.NewEngine()
	}
	if log == nil {
		log = logrus.New()
	}
	if now == nil {
		now = time.Now
	}
	return &Monitor{engine: engine, log: log, now: now}
}

// MonitorResult summarizes one monitor run.
type MonitorResult struct {
	Created  int                    `json:"created"`
	Updated  int                    `json:"updated"`
	Resolved int                    `json:"resolved"`
	Notified int                    `json:"notified"`
	Alerts   []*models.CashGapAlert `json:"alerts"`
	Plan     *ReconcilePlan         `json:"-"`
}

// MonitorCashGaps runs one full detection cycle for a user. Concurrent runs
// for the same user are serialized with a redis lock when redis is up; the
// unique alert index keeps racing writers safe when it is not.
func (m *Monitor) MonitorCashGaps(ctx context.Context, userId string) (*MonitorResult, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "lock:monitor:"+userId, 30*time.Second, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, errors.New("monitor already running for this user")
			}
			config.LogError(m.log, "monitor", "MonitorCashGaps", "obtain lock", userId, err)
			// Proceed without the lock; the unique index backstops races.
		} else {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	settings, err := models.GetOrCreateAlertSettings(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("load alert settings: %w", err)
	}

	now := m.now()
	ds := m.engine.LoadDataSet(ctx, userId)
	realistic := m.engine.BuildScenario(ds, models.ScenarioRealistic, now)

	candidates := m.DetectCandidates(DetectionInput{
		UserId:       userId,
		Realistic:    realistic,
		Settings:     settings,
		OverdueTotal: models.GetOverdueTotal(ds.Invoices, now),
		Now:          now,
	})

	existing, err := models.GetReconcilableAlerts(ctx, userId, utils.StartOfDayUTC(now))
	if err != nil {
		return nil, fmt.Errorf("load stored alerts: %w", err)
	}

	plan := PlanReconciliation(existing, candidates)
	if err := m.applyPlan(ctx, plan); err != nil {
		return nil, err
	}

	result := &MonitorResult{
		Created:  len(plan.ToInsert),
		Updated:  len(plan.ToUpdate),
		Resolved: len(plan.ToResolve),
		Plan:     plan,
	}
	result.Alerts = append(result.Alerts, plan.ToInsert...)
	result.Alerts = append(result.Alerts, plan.ToUpdate...)

	// The cached analysis embeds the open alerts; drop it once they changed.
	if result.Created+result.Updated+result.Resolved > 0 {
		if err := utils.RemoveRedisItem[models.CashFlowAnalysis](userId); err != nil {
			config.LogError(m.log, "monitor", "MonitorCashGaps", "drop cached analysis", userId, err)
		}
	}

	result.Notified = m.dispatchNotifications(ctx, result.Alerts, settings)
	return result, nil
}

func (m *Monitor) applyPlan(ctx context.Context, plan *ReconcilePlan) error {
	db := config.GetDB()

	for _, alert := range plan.ToInsert {
		// The conflict branch covers a racing writer that slipped a row into
		// the identity slot after reconciliation read it; resetting
		// current_status keeps a re-triggered condition from staying stuck in
		// a terminal status.
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "alert_type"}, {Name: "projected_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"current_status", "severity", "title", "description",
				"projected_shortfall", "week_number", "triggers",
				"recommendations", "metadata",
			}),
		}).Create(alert).Error
		if err != nil {
			return fmt.Errorf("insert alert %s: %w", alert.IdentityKey(), err)
		}
	}

	for _, alert := range plan.ToUpdate {
		err := db.WithContext(ctx).Model(&models.CashGapAlert{}).
			Where("id = ? AND user_id = ?", alert.ID, alert.UserId).
			Updates(map[string]any{
				"current_status":      alert.CurrentStatus,
				"severity":            alert.Severity,
				"title":               alert.Title,
				"description":         alert.Description,
				"projected_shortfall": alert.ProjectedShortfall,
				"week_number":         alert.WeekNumber,
				"triggers":            alert.Triggers,
				"recommendations":     alert.Recommendations,
				"metadata":            alert.Metadata,
			}).Error
		if err != nil {
			return fmt.Errorf("update alert %d: %w", alert.ID, err)
		}
	}

	for _, alert := range plan.ToResolve {
		err := db.WithContext(ctx).Model(&models.CashGapAlert{}).
			Where("id = ? AND user_id = ? AND current_status = ?", alert.ID, alert.UserId, models.AlertStatusActive).
			Updates(map[string]any{
				"current_status": models.AlertStatusResolved,
				"metadata":       alert.Metadata,
			}).Error
		if err != nil {
			return fmt.Errorf("resolve alert %d: %w", alert.ID, err)
		}
	}

	return nil
}
