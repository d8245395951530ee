package models

import (
	"context"
	"time"

	"bitbucket.org/cashlens/forecast_backend/config"
)

type UserRole string

const (
	UserRoleAdmin  UserRole = "Admin"
	UserRoleMember UserRole = "Member"
)

// User exists here only for session resolution and the monitor sweep; account
// management lives in the auth service.
type User struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:255;not null" json:"username"`
	Role      UserRole  `gorm:"type:enum('Admin','Member');default:'Member'" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListActiveUserIds returns ids of users the monitor sweep should visit.
func ListActiveUserIds(ctx context.Context) ([]string, error) {
	db := config.GetDB()
	var ids []string
	err := db.WithContext(ctx).Model(&User{}).
		Where("is_active = ?", true).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
