// Package revocation persists token revocations. Single-token logout writes
// an append-only jti blocklist entry; logout-all stamps the principal with a
// cutoff so every token issued before it is dead without ever having been
// tracked individually.
package revocation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/garagehub/gomicro/database"
	"github.com/garagehub/gomicro/model"
)

// Store is the gorm-backed revocation store. An optional Cache sits in front
// of the blocklist lookup; the database stays authoritative.
type Store struct {
	db    *gorm.DB
	cache *Cache
	now   func() time.Time
}

// NewStore creates a revocation store. cache may be nil.
func NewStore(db *gorm.DB, cache *Cache) *Store {
	return &Store{db: db, cache: cache, now: time.Now}
}

// handle resolves the database handle for one call. Inside a scoped request
// the store must ride the request transaction: revocation lookups and writes
// then share the connection lease (and the tenant scope variable) with the
// business queries that follow.
func (s *Store) handle(ctx context.Context) *gorm.DB {
	if tx, ok := database.TxFromContext(ctx); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// Revoke blocklists a single jti. Revoking an already revoked token is a
// no-op, not an error. A write failure is returned to the caller: a logout
// that cannot persist its record must fail loudly rather than claim success.
func (s *Store) Revoke(ctx context.Context, jti string, userID uint, kind, reason string) error {
	if jti == "" {
		return errors.New("revocation: empty jti")
	}
	record := model.RevokedToken{
		JTI:       jti,
		UserID:    userID,
		TokenKind: kind,
		Reason:    reason,
	}
	err := s.handle(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(&record).Error
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.MarkRevoked(ctx, jti)
	}
	return nil
}

// RevokeAllForUser invalidates every outstanding session for a principal by
// moving the per-user cutoff to now. Tokens are not enumerated; any token
// whose issued-at is not after the cutoff verifies as revoked. Returns the
// number of cutoff rows written (always 1 on success).
func (s *Store) RevokeAllForUser(ctx context.Context, userID uint, reason string) (int64, error) {
	cutoff := s.now()
	stamp := model.UserRevocation{
		UserID:        userID,
		RevokedBefore: cutoff,
		Reason:        reason,
	}
	err := s.handle(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"revoked_before", "reason", "updated_at"}),
		}).
		Create(&stamp).Error
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// IsRevoked implements jwtutil.RevocationChecker. A token is revoked when
// its jti is blocklisted or when it was issued at or before the principal's
// bulk-logout cutoff.
func (s *Store) IsRevoked(ctx context.Context, jti string, userID uint, issuedAt time.Time) (bool, error) {
	if s.cache != nil {
		if hit, ok := s.cache.IsRevoked(ctx, jti); ok && hit {
			return true, nil
		}
	}

	db := s.handle(ctx)

	var count int64
	if err := db.
		Model(&model.RevokedToken{}).
		Where("jti = ?", jti).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		if s.cache != nil {
			s.cache.MarkRevoked(ctx, jti)
		}
		return true, nil
	}

	var stamp model.UserRevocation
	err := db.
		Where("user_id = ?", userID).
		First(&stamp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if !issuedAt.After(stamp.RevokedBefore) {
		return true, nil
	}
	return false, nil
}
