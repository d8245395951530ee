package models

import "errors"

type ScenarioType string

const (
	ScenarioConservative ScenarioType = "Conservative"
	ScenarioRealistic    ScenarioType = "Realistic"
	ScenarioOptimistic   ScenarioType = "Optimistic"
)

func AllScenarioTypes() []ScenarioType {
	return []ScenarioType{ScenarioConservative, ScenarioRealistic, ScenarioOptimistic}
}

type InvoiceStatus string

const (
	InvoiceStatusDraft       InvoiceStatus = "Draft"
	InvoiceStatusSent        InvoiceStatus = "Sent"
	InvoiceStatusPartialPaid InvoiceStatus = "Partial Paid"
	InvoiceStatusPaid        InvoiceStatus = "Paid"
	InvoiceStatusVoid        InvoiceStatus = "Void"
)

// OpenInvoiceStatuses are statuses that still expect money in.
func OpenInvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusSent, InvoiceStatusPartialPaid}
}

type RecurringTerms string

const (
	RecurringDaily   RecurringTerms = "D"
	RecurringWeekly  RecurringTerms = "W"
	RecurringMonthly RecurringTerms = "M"
	RecurringYearly  RecurringTerms = "Y"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

type AlertType string

const (
	AlertTypeBufferBreach AlertType = "BufferBreach"
	AlertTypeCashGap      AlertType = "CashGap"
	AlertTypeExpenseSpike AlertType = "ExpenseSpike"
	AlertTypeRevenueDrop  AlertType = "RevenueDrop"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "Low"
	SeverityMedium   AlertSeverity = "Medium"
	SeverityHigh     AlertSeverity = "High"
	SeverityCritical AlertSeverity = "Critical"
)

// SeverityWeight orders alerts for prioritization (critical first).
func (s AlertSeverity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "Active"
	AlertStatusAcknowledged AlertStatus = "Acknowledged"
	AlertStatusResolved     AlertStatus = "Resolved"
	AlertStatusDismissed    AlertStatus = "Dismissed"
	AlertStatusExpired      AlertStatus = "Expired"
)

// ValidateTransition enforces the consumer-driven alert state machine:
// only Active alerts move, and only to Acknowledged/Resolved/Dismissed.
func (s AlertStatus) ValidateTransition(next AlertStatus) error {
	if s != AlertStatusActive {
		return errors.New("only active alerts can change status")
	}
	switch next {
	case AlertStatusAcknowledged, AlertStatusResolved, AlertStatusDismissed:
		return nil
	default:
		return errors.New("invalid alert status transition")
	}
}

type InsightType string

const (
	InsightOpportunity  InsightType = "Opportunity"
	InsightRisk         InsightType = "Risk"
	InsightPattern      InsightType = "Pattern"
	InsightOptimization InsightType = "Optimization"
)

type Urgency string

const (
	UrgencyLow      Urgency = "Low"
	UrgencyMedium   Urgency = "Medium"
	UrgencyHigh     Urgency = "High"
	UrgencyCritical Urgency = "Critical"
)

func (u Urgency) Weight() int {
	switch u {
	case UrgencyCritical:
		return 4
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	default:
		return 0
	}
}
