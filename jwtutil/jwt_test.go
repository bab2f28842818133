package jwtutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagehub/gomicro/config"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{
		SigningKey:       "test-signing-key",
		AccessTTLMinutes: 15,
		RefreshTTLDays:   30,
	}
}

type stubChecker struct {
	revoked map[string]bool
	cutoff  time.Time
}

func (s *stubChecker) IsRevoked(_ context.Context, jti string, _ uint, issuedAt time.Time) (bool, error) {
	if s.revoked[jti] {
		return true, nil
	}
	if !s.cutoff.IsZero() && !issuedAt.After(s.cutoff) {
		return true, nil
	}
	return false, nil
}

func TestIssueAndVerifyCarriesTenant(t *testing.T) {
	cfg := testConfig()
	issuer := NewIssuer(cfg)
	verifier := NewVerifier(cfg, nil)

	access, err := issuer.AccessToken(42, 7, "PRO", "Moto Mania")
	require.NoError(t, err)

	claims, err := verifier.Verify(context.Background(), access, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.TenantID)
	assert.Equal(t, "PRO", claims.Plan)
	assert.Equal(t, "Moto Mania", claims.TenantName)
	assert.Equal(t, KindAccess, claims.TokenKind)
	assert.NotEmpty(t, claims.ID)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)

	refresh, err := issuer.RefreshToken(42, 7, "PRO", "Moto Mania")
	require.NoError(t, err)

	claims, err = verifier.Verify(context.Background(), refresh, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.TenantID)
	assert.Equal(t, "PRO", claims.Plan)
}

func TestEmptyPlanDefaultsToBasic(t *testing.T) {
	cfg := testConfig()
	issuer := NewIssuer(cfg)
	verifier := NewVerifier(cfg, nil)

	token, err := issuer.AccessToken(1, 3, "", "")
	require.NoError(t, err)

	claims, err := verifier.Verify(context.Background(), token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "BASIC", claims.Plan)
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	cfg := testConfig()
	issuer := NewIssuer(cfg)
	verifier := NewVerifier(cfg, nil)

	access, err := issuer.AccessToken(1, 1, "BASIC", "")
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), access, KindRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenKind)

	refresh, err := issuer.RefreshToken(1, 1, "BASIC", "")
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), refresh, KindAccess)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTTLMinutes = -1
	issuer := NewIssuer(cfg)
	verifier := NewVerifier(testConfig(), nil)

	token, err := issuer.AccessToken(1, 1, "BASIC", "")
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token, KindAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsWrongSignature(t *testing.T) {
	issuer := NewIssuer(&config.JWTConfig{SigningKey: "other-key", AccessTTLMinutes: 15, RefreshTTLDays: 30})
	verifier := NewVerifier(testConfig(), nil)

	token, err := issuer.AccessToken(1, 1, "BASIC", "")
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token, KindAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	verifier := NewVerifier(testConfig(), nil)

	_, err := verifier.Verify(context.Background(), "not-a-token", "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyHonorsRevocation(t *testing.T) {
	cfg := testConfig()
	issuer := NewIssuer(cfg)
	checker := &stubChecker{revoked: map[string]bool{}}
	verifier := NewVerifier(cfg, checker)

	token, err := issuer.AccessToken(5, 2, "BASIC", "")
	require.NoError(t, err)

	claims, err := verifier.Verify(context.Background(), token, KindAccess)
	require.NoError(t, err)

	// Revocation overrides the still-valid expiry window.
	checker.revoked[claims.ID] = true
	_, err = verifier.Verify(context.Background(), token, KindAccess)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestVerifyHonorsBulkCutoff(t *testing.T) {
	cfg := testConfig()
	issuer := NewIssuer(cfg)
	checker := &stubChecker{cutoff: time.Now().Add(time.Minute)}
	verifier := NewVerifier(cfg, checker)

	token, err := issuer.AccessToken(5, 2, "BASIC", "")
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token, KindAccess)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, IsAuthError(ErrTokenInvalid))
	assert.True(t, IsAuthError(ErrTokenRevoked))
	assert.True(t, IsAuthError(ErrWrongTokenKind))
	assert.False(t, IsAuthError(context.Canceled))
}
