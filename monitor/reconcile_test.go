package monitor_test

import (
	"testing"
	"time"

	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/monitor"
	"github.com/shopspring/decimal"
)

func candidate(typ models.AlertType, daysOut int, severity models.AlertSeverity, shortfall int64) *models.CashGapAlert {
	return &models.CashGapAlert{
		UserId:             "user-1",
		AlertType:          typ,
		ProjectedDate:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, daysOut),
		Severity:           severity,
		ProjectedShortfall: decimal.NewFromInt(shortfall),
		CurrentStatus:      models.AlertStatusActive,
	}
}

func TestPlanReconciliation_InsertsNewConditions(t *testing.T) {
	fresh := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)

	plan := monitor.PlanReconciliation(nil, []*models.CashGapAlert{fresh})

	if len(plan.ToInsert) != 1 || plan.ToInsert[0] != fresh {
		t.Fatalf("expected one insert, got %+v", plan)
	}
	if len(plan.ToUpdate) != 0 || len(plan.ToResolve) != 0 {
		t.Fatalf("expected no updates or resolves, got %+v", plan)
	}
}

func TestPlanReconciliation_SkipsUnchanged(t *testing.T) {
	existing := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)
	existing.ID = 7
	same := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)

	plan := monitor.PlanReconciliation(
		[]*models.CashGapAlert{existing},
		[]*models.CashGapAlert{same},
	)

	if len(plan.ToInsert)+len(plan.ToUpdate)+len(plan.ToResolve) != 0 {
		t.Fatalf("identical condition should be a no-op, got %+v", plan)
	}
}

func TestPlanReconciliation_UpdatesChangedSeverity(t *testing.T) {
	existing := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)
	existing.ID = 7
	worse := candidate(models.AlertTypeBufferBreach, 14, models.SeverityCritical, 9000)

	plan := monitor.PlanReconciliation(
		[]*models.CashGapAlert{existing},
		[]*models.CashGapAlert{worse},
	)

	if len(plan.ToUpdate) != 1 {
		t.Fatalf("expected one update, got %+v", plan)
	}
	updated := plan.ToUpdate[0]
	if updated.ID != 7 {
		t.Fatalf("update must keep the stored row id, got %d", updated.ID)
	}
	if updated.Severity != models.SeverityCritical {
		t.Fatalf("severity not carried over: %s", updated.Severity)
	}
	if !updated.ProjectedShortfall.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("shortfall not carried over: %s", updated.ProjectedShortfall)
	}
	if len(plan.ToInsert) != 0 || len(plan.ToResolve) != 0 {
		t.Fatalf("expected only an update, got %+v", plan)
	}
}

// An active alert whose condition no longer appears is auto-resolved with a
// reason recorded in its metadata.
func TestPlanReconciliation_ResolvesStaleActives(t *testing.T) {
	stale := candidate(models.AlertTypeCashGap, 21, models.SeverityCritical, 3000)
	stale.ID = 9

	plan := monitor.PlanReconciliation([]*models.CashGapAlert{stale}, nil)

	if len(plan.ToResolve) != 1 {
		t.Fatalf("expected one resolve, got %+v", plan)
	}
	resolved := plan.ToResolve[0]
	if resolved.ID != 9 {
		t.Fatalf("resolve must target the stored row, got id %d", resolved.ID)
	}
	if resolved.CurrentStatus != models.AlertStatusResolved {
		t.Fatalf("expected Resolved status, got %s", resolved.CurrentStatus)
	}
	if resolved.Metadata["resolved_reason"] != "condition_cleared" {
		t.Fatalf("resolved_reason missing, metadata: %v", resolved.Metadata)
	}
	// The stored row itself is untouched; the plan carries a copy.
	if stale.CurrentStatus != models.AlertStatusActive {
		t.Fatal("reconciliation must not mutate its input")
	}
}

// Acknowledged and dismissed alerts are consumer-owned; reconciliation leaves
// them alone even when the condition cleared.
func TestPlanReconciliation_IgnoresNonActiveAlerts(t *testing.T) {
	acked := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)
	acked.ID = 3
	acked.CurrentStatus = models.AlertStatusAcknowledged

	plan := monitor.PlanReconciliation([]*models.CashGapAlert{acked}, nil)

	if len(plan.ToInsert)+len(plan.ToUpdate)+len(plan.ToResolve) != 0 {
		t.Fatalf("non-active alerts must not be touched, got %+v", plan)
	}
}

// A condition that re-appears after its alert was auto-resolved must alert
// again: the stored row is reopened in place rather than re-inserted, which
// would collide with it on the identity index and leave it Resolved.
func TestPlanReconciliation_ReopensResolvedOnRetrigger(t *testing.T) {
	resolved := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)
	resolved.ID = 4
	resolved.CurrentStatus = models.AlertStatusResolved
	back := candidate(models.AlertTypeBufferBreach, 14, models.SeverityCritical, 8000)

	plan := monitor.PlanReconciliation(
		[]*models.CashGapAlert{resolved},
		[]*models.CashGapAlert{back},
	)

	if len(plan.ToInsert) != 0 {
		t.Fatalf("retrigger must reuse the stored row, got inserts %+v", plan.ToInsert)
	}
	if len(plan.ToUpdate) != 1 {
		t.Fatalf("expected one reopen, got %+v", plan)
	}
	reopened := plan.ToUpdate[0]
	if reopened.ID != 4 {
		t.Fatalf("reopen must target the stored row, got id %d", reopened.ID)
	}
	if reopened.CurrentStatus != models.AlertStatusActive {
		t.Fatalf("retriggered alert must be Active again, got %s", reopened.CurrentStatus)
	}
	if reopened.Severity != models.SeverityCritical {
		t.Fatalf("reopen must carry the new severity, got %s", reopened.Severity)
	}
	if !reopened.ProjectedShortfall.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("reopen must carry the new shortfall, got %s", reopened.ProjectedShortfall)
	}
	if resolved.CurrentStatus != models.AlertStatusResolved {
		t.Fatal("reconciliation must not mutate its input")
	}
}

// A dismissal keeps suppressing the condition for that projected date; the
// candidate produces neither an insert nor an update.
func TestPlanReconciliation_DismissedStaysSuppressed(t *testing.T) {
	dismissed := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)
	dismissed.ID = 6
	dismissed.CurrentStatus = models.AlertStatusDismissed
	again := candidate(models.AlertTypeBufferBreach, 14, models.SeverityCritical, 9000)

	plan := monitor.PlanReconciliation(
		[]*models.CashGapAlert{dismissed},
		[]*models.CashGapAlert{again},
	)

	if len(plan.ToInsert)+len(plan.ToUpdate)+len(plan.ToResolve) != 0 {
		t.Fatalf("dismissed condition must stay suppressed, got %+v", plan)
	}
}

// Decimals that are equal but carry different exponents (as after a JSON
// round trip through the row serializer) must not read as a change.
func TestPlanReconciliation_EqualDecimalsAreNotAChange(t *testing.T) {
	rec := func(improvement decimal.Decimal) []*models.Recommendation {
		return []*models.Recommendation{{
			Type:                 "accelerate_collections",
			Title:                "Collect overdue invoices",
			Urgency:              models.UrgencyHigh,
			EstimatedImprovement: improvement,
		}}
	}

	stored := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)
	stored.ID = 7
	stored.ProjectedShortfall = decimal.New(50000, -1) // 5000
	stored.Recommendations = rec(decimal.New(30000, -1))

	fresh := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)
	fresh.Recommendations = rec(decimal.NewFromInt(3000))

	plan := monitor.PlanReconciliation(
		[]*models.CashGapAlert{stored},
		[]*models.CashGapAlert{fresh},
	)

	if len(plan.ToUpdate) != 0 {
		t.Fatalf("equal values must not trigger a rewrite, got %+v", plan.ToUpdate)
	}
}

func TestPlanReconciliation_MixedPlan(t *testing.T) {
	keep := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)
	keep.ID = 1
	stale := candidate(models.AlertTypeRevenueDrop, 28, models.SeverityMedium, 2000)
	stale.ID = 2

	sameKeep := candidate(models.AlertTypeBufferBreach, 14, models.SeverityHigh, 5000)
	fresh := candidate(models.AlertTypeCashGap, 35, models.SeverityCritical, 1200)

	plan := monitor.PlanReconciliation(
		[]*models.CashGapAlert{keep, stale},
		[]*models.CashGapAlert{sameKeep, fresh},
	)

	if len(plan.ToInsert) != 1 || plan.ToInsert[0].AlertType != models.AlertTypeCashGap {
		t.Fatalf("expected the cash gap insert, got %+v", plan.ToInsert)
	}
	if len(plan.ToUpdate) != 0 {
		t.Fatalf("unchanged alert must not update, got %+v", plan.ToUpdate)
	}
	if len(plan.ToResolve) != 1 || plan.ToResolve[0].AlertType != models.AlertTypeRevenueDrop {
		t.Fatalf("expected the revenue drop resolve, got %+v", plan.ToResolve)
	}
}
