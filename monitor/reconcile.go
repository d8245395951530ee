package monitor

import (
	"bitbucket.org/cashlens/forecast_backend/models"
)

// ReconcilePlan is the diff between the stored alerts and the candidates of
// the current detection pass.
type ReconcilePlan struct {
	ToInsert  []*models.CashGapAlert
	ToUpdate  []*models.CashGapAlert
	ToResolve []*models.CashGapAlert
}

// PlanReconciliation matches candidates against stored alerts by identity
// key. New conditions are inserted. Active and Acknowledged matches are
// updated in place when their content changed, keeping their status. Resolved
// and Expired matches are reopened as Active: the condition came back for the
// same projected date and must alert again. Dismissed matches are dropped, a
// dismissal keeps suppressing that condition for that date. Active alerts
// whose condition no longer holds are auto-resolved.
func PlanReconciliation(existing, candidates []*models.CashGapAlert) *ReconcilePlan {
	plan := &ReconcilePlan{}

	byKey := map[string]*models.CashGapAlert{}
	for _, alert := range existing {
		byKey[alert.IdentityKey()] = alert
	}

	matched := map[string]bool{}
	for _, candidate := range candidates {
		key := candidate.IdentityKey()
		current, exists := byKey[key]
		if !exists {
			plan.ToInsert = append(plan.ToInsert, candidate)
			continue
		}
		matched[key] = true

		switch current.CurrentStatus {
		case models.AlertStatusDismissed:
			// Consumer said no; stay quiet for this projected date.
		case models.AlertStatusActive, models.AlertStatusAcknowledged:
			if alertChanged(current, candidate) {
				plan.ToUpdate = append(plan.ToUpdate, refreshed(current, candidate, current.CurrentStatus))
			}
		default:
			// Resolved or Expired: the condition re-appeared, reopen the row.
			plan.ToUpdate = append(plan.ToUpdate, refreshed(current, candidate, models.AlertStatusActive))
		}
	}

	for _, alert := range existing {
		if alert.CurrentStatus != models.AlertStatusActive {
			continue
		}
		if matched[alert.IdentityKey()] {
			continue
		}
		resolved := *alert
		resolved.CurrentStatus = models.AlertStatusResolved
		if resolved.Metadata == nil {
			resolved.Metadata = map[string]any{}
		}
		resolved.Metadata["resolved_reason"] = "condition_cleared"
		plan.ToResolve = append(plan.ToResolve, &resolved)
	}

	return plan
}

// refreshed copies the stored row (keeping id and timestamps) and overwrites
// its content with the candidate's.
func refreshed(current, candidate *models.CashGapAlert, status models.AlertStatus) *models.CashGapAlert {
	updated := *current
	updated.CurrentStatus = status
	updated.Severity = candidate.Severity
	updated.Title = candidate.Title
	updated.Description = candidate.Description
	updated.ProjectedShortfall = candidate.ProjectedShortfall
	updated.WeekNumber = candidate.WeekNumber
	updated.Triggers = candidate.Triggers
	updated.Recommendations = candidate.Recommendations
	updated.Metadata = candidate.Metadata
	return &updated
}

func alertChanged(current, candidate *models.CashGapAlert) bool {
	if current.Severity != candidate.Severity {
		return true
	}
	if !current.ProjectedShortfall.Equal(candidate.ProjectedShortfall) {
		return true
	}
	return recommendationsChanged(current.Recommendations, candidate.Recommendations)
}

// recommendationsChanged compares field by field. EstimatedImprovement goes
// through decimal Equal: a stored row read back through the JSON serializer
// can carry an equal value with a different exponent, and that must not read
// as a change.
func recommendationsChanged(a, b []*models.Recommendation) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		x, y := a[i], b[i]
		if x == nil || y == nil {
			if x != y {
				return true
			}
			continue
		}
		if x.Type != y.Type ||
			x.Title != y.Title ||
			x.Description != y.Description ||
			x.Impact != y.Impact ||
			x.Urgency != y.Urgency ||
			x.TimeToImplement != y.TimeToImplement ||
			x.Difficulty != y.Difficulty {
			return true
		}
		if !x.EstimatedImprovement.Equal(y.EstimatedImprovement) {
			return true
		}
	}
	return false
}
