package model

import (
	"time"

	"gorm.io/gorm"
)

// User roles within a tenant.
const (
	RoleOwner   = "OWNER"
	RoleManager = "MANAGER"
)

// User represents an authenticated principal. A user belongs to exactly one
// tenant; the foreign key is not nullable so an orphan principal cannot
// exist.
type User struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name" gorm:"type:varchar(255);not null"`
	Email        string         `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string         `json:"-" gorm:"type:varchar(255);not null"`
	TenantID     uint           `json:"tenant_id" gorm:"index;not null"`
	Role         string         `json:"role" gorm:"type:varchar(50);default:'OWNER'"`
	Plan         string         `json:"plan" gorm:"type:varchar(50);default:'BASIC'"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	Tenant Tenant `json:"-" gorm:"foreignKey:TenantID"`
}

// EffectivePlan prefers the user's own plan tag and falls back to the
// tenant's subscription.
func (u *User) EffectivePlan() string {
	if u.Plan != "" {
		return u.Plan
	}
	if u.Tenant.Plan != "" {
		return u.Tenant.Plan
	}
	return PlanBasic
}
