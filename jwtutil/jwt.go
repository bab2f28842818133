package jwtutil

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/garagehub/gomicro/config"
	"github.com/garagehub/gomicro/model"
)

// Token kinds carried in the "kind" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims is the tenant-aware JWT payload shared by every service. The claims
// are a snapshot taken at mint time: tenant id and plan are not re-read until
// the token is refreshed or re-issued.
type Claims struct {
	TenantID   int    `json:"tenant_id"`
	Plan       string `json:"plan"`
	TenantName string `json:"tenant_name,omitempty"`
	TokenKind  string `json:"kind"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim decoded back to the principal id. The
// subject is stored stringified because signing libraries require a string
// subject.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return uint(id), nil
}

// Issuer mints signed access and refresh tokens embedding tenant identity.
type Issuer struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates an issuer from the shared JWT configuration.
func NewIssuer(cfg *config.JWTConfig) *Issuer {
	return &Issuer{
		signingKey: []byte(cfg.SigningKey),
		accessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

// AccessToken mints a short-lived access token for the given principal and
// tenant. An empty plan is normalized to BASIC.
func (i *Issuer) AccessToken(userID uint, tenantID int, plan, tenantName string) (string, error) {
	return i.mint(userID, tenantID, plan, tenantName, KindAccess, i.accessTTL)
}

// RefreshToken mints a long-lived refresh token carrying the same tenant
// claims as the access token it pairs with.
func (i *Issuer) RefreshToken(userID uint, tenantID int, plan, tenantName string) (string, error) {
	return i.mint(userID, tenantID, plan, tenantName, KindRefresh, i.refreshTTL)
}

func (i *Issuer) mint(userID uint, tenantID int, plan, tenantName, kind string, ttl time.Duration) (string, error) {
	if plan == "" {
		plan = model.PlanBasic
	}
	now := i.now()
	claims := Claims{
		TenantID:   tenantID,
		Plan:       plan,
		TenantName: tenantName,
		TokenKind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.signingKey)
}
