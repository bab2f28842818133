package model

import (
	"time"

	"gorm.io/gorm"
)

// Subscription plans. The plan travels inside every token so downstream
// services can gate features without a lookup.
const (
	PlanBasic      = "BASIC"
	PlanPro        = "PRO"
	PlanEnterprise = "ENTERPRISE"
)

// Tenant represents one isolated workshop account. Every business row in the
// system is partitioned by tenant id; a tenant is never created without its
// first owner user (see the registration flow).
type Tenant struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(255);not null"`
	Plan      string         `json:"plan" gorm:"type:varchar(50);default:'BASIC'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
