package model

import "time"

// RevokedToken is an append-only blocklist entry keyed by jti. A matching
// record makes the token permanently unusable regardless of its remaining
// validity window; there is no unrevoke.
type RevokedToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	JTI       string    `json:"jti" gorm:"type:varchar(255);uniqueIndex;not null"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	TokenKind string    `json:"token_kind" gorm:"type:varchar(20);not null"`
	Reason    string    `json:"reason,omitempty" gorm:"type:varchar(255)"`
	RevokedAt time.Time `json:"revoked_at" gorm:"autoCreateTime"`
}

// UserRevocation stamps a principal with a bulk-logout cutoff: any token
// issued at or before RevokedBefore is treated as revoked even though its
// jti was never individually recorded. One row per user, moved forward on
// each logout-all.
type UserRevocation struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	RevokedBefore time.Time `json:"revoked_before" gorm:"not null"`
	Reason        string    `json:"reason,omitempty" gorm:"type:varchar(255)"`
	UpdatedAt     time.Time `json:"updated_at"`
}
