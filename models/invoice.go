package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/shopspring/decimal"
)

// Invoice is owned by the billing subsystem; this service only reads it.
// BaseProbability is an optional prior in [0,1] set by the issuer.
type Invoice struct {
	ID              int             `gorm:"primary_key" json:"id"`
	UserId          string          `gorm:"index;not null" json:"user_id" binding:"required"`
	ClientId        int             `gorm:"index;not null" json:"client_id" binding:"required"`
	InvoiceNumber   string          `gorm:"size:255" json:"invoice_number"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	IssueDate       time.Time       `gorm:"not null" json:"issue_date" binding:"required"`
	DueDate         time.Time       `gorm:"not null" json:"due_date" binding:"required"`
	CurrentStatus   InvoiceStatus   `gorm:"type:enum('Draft','Sent','Partial Paid','Paid','Void');default:'Draft'" json:"current_status"`
	BaseProbability *float64        `gorm:"type:decimal(5,4)" json:"base_probability"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Invoice) GetId() int {
	return obj.ID
}

// GetOpenInvoices returns unpaid (Sent / Partial Paid) invoices for the user.
func GetOpenInvoices(ctx context.Context, userId string) ([]*Invoice, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	db := config.GetDB()
	var results []*Invoice
	err := db.WithContext(ctx).
		Where("user_id = ? AND current_status IN ?", userId, OpenInvoiceStatuses()).
		Order("due_date ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetOverdueTotal sums the open invoice value already past due at `now`.
func GetOverdueTotal(invoices []*Invoice, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		if inv.DueDate.Before(now) {
			total = total.Add(inv.Amount)
		}
	}
	return total
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}
	return utils.FetchModel[Invoice](ctx, userId, id)
}

// ListInvoices returns every invoice of the user, any status.
func ListInvoices(ctx context.Context, userId string) ([]*Invoice, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	return utils.FetchAllModels[Invoice](ctx, userId)
}
