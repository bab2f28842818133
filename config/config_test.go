package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSigningKeyOutsideDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "")

	_, err := Load("users-service")
	assert.Error(t, err, "the shared secret is the trust root and may not be defaulted in production")
}

func TestLoadAcceptsSigningKey(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "super-secret")

	cfg, err := Load("users-service")
	require.NoError(t, err)
	assert.Equal(t, "super-secret", cfg.JWT.SigningKey)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SIGNING_KEY", "")

	cfg, err := Load("users-service")
	require.NoError(t, err)

	assert.Equal(t, "users-service", cfg.ServiceName)
	assert.NotEmpty(t, cfg.JWT.SigningKey, "development gets a placeholder key")
	assert.Equal(t, 15, cfg.JWT.AccessTTLMinutes)
	assert.Equal(t, 30, cfg.JWT.RefreshTTLDays)
	assert.Empty(t, cfg.Redis.Addr, "revocation cache is opt-in")
}

func TestDSNFormat(t *testing.T) {
	db := DBConfig{
		Host: "db", Port: "5432", User: "app", Password: "pw", DBName: "users", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=app password=pw dbname=users sslmode=disable", db.GetDSN())
}
