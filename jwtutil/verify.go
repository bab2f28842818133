package jwtutil

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/garagehub/gomicro/config"
)

// RevocationChecker answers whether a token is revoked, either by an exact
// jti blocklist entry or by a principal-level bulk cutoff stamped at
// logout-all time.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string, userID uint, issuedAt time.Time) (bool, error)
}

// Verifier validates signature, expiry, token kind and revocation status.
// Every service holds one, built from the same shared signing key the issuer
// uses.
type Verifier struct {
	signingKey []byte
	revocation RevocationChecker
}

// NewVerifier creates a verifier. revocation may be nil for services that
// have no revocation store; those services then accept tokens until natural
// expiry, which is a documented reduced-guarantee mode.
func NewVerifier(cfg *config.JWTConfig, revocation RevocationChecker) *Verifier {
	return &Verifier{
		signingKey: []byte(cfg.SigningKey),
		revocation: revocation,
	}
}

// Verify decodes and validates a token. kind is KindAccess or KindRefresh;
// an empty kind accepts either. Revocation is authoritative: a revoked token
// fails even inside its validity window.
func (v *Verifier) Verify(ctx context.Context, tokenString, kind string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if kind != "" && claims.TokenKind != kind {
		return nil, ErrWrongTokenKind
	}

	if v.revocation != nil {
		userID, err := claims.UserID()
		if err != nil {
			return nil, ErrTokenInvalid
		}
		issuedAt := time.Time{}
		if claims.IssuedAt != nil {
			issuedAt = claims.IssuedAt.Time
		}
		revoked, err := v.revocation.IsRevoked(ctx, claims.ID, userID, issuedAt)
		if err != nil {
			// A store failure must not let a possibly revoked token through.
			return nil, fmt.Errorf("revocation lookup: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}
