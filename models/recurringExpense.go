package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"github.com/shopspring/decimal"
)

type RecurringExpense struct {
	ID          int             `gorm:"primary_key" json:"id"`
	UserId      string          `gorm:"index;not null" json:"user_id" binding:"required"`
	Name        string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	NextDueDate time.Time       `gorm:"not null" json:"next_due_date" binding:"required"`
	RepeatTerms RecurringTerms  `gorm:"type:enum('D', 'W', 'M', 'Y');default:'M'" json:"repeat_terms"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj RecurringExpense) GetId() int {
	return obj.ID
}

// GetActiveRecurringExpenses returns the user's active recurring expenses.
func GetActiveRecurringExpenses(ctx context.Context, userId string) ([]*RecurringExpense, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()
	var results []*RecurringExpense
	err := db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userId, true).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// OccurrencesWithin counts how many times the expense recurs inside [from, to).
// The stored NextDueDate anchors the cycle; an inactive expense never recurs.
func (e *RecurringExpense) OccurrencesWithin(from, to time.Time) int {
	if e.IsActive != nil && !*e.IsActive {
		return 0
	}
	if !to.After(from) {
		return 0
	}
	count := 0
	due := e.NextDueDate
	// Walk past occurrences that predate the window.
	for due.Before(from) {
		due = e.nextAfter(due)
	}
	for !due.Before(from) && due.Before(to) {
		count++
		due = e.nextAfter(due)
	}
	return count
}

func (e *RecurringExpense) nextAfter(t time.Time) time.Time {
	switch e.RepeatTerms {
	case RecurringDaily:
		return t.AddDate(0, 0, 1)
	case RecurringWeekly:
		return t.AddDate(0, 0, 7)
	case RecurringYearly:
		return t.AddDate(1, 0, 0)
	default: // monthly
		return t.AddDate(0, 1, 0)
	}
}
