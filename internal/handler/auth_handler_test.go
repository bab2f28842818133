package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/garagehub/gomicro/config"
	"github.com/garagehub/gomicro/database"
	"github.com/garagehub/gomicro/jwtutil"
	"github.com/garagehub/gomicro/middleware"
	"github.com/garagehub/gomicro/model"
	"github.com/garagehub/gomicro/revocation"
	"github.com/garagehub/gomicro/tenant"
)

type testServer struct {
	e        *echo.Echo
	db       *gorm.DB
	issuer   *jwtutil.Issuer
	verifier *jwtutil.Verifier
}

// newTestServer assembles the users service against an in-memory store, the
// same wiring the binary uses minus PostgreSQL.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Tenant{}, &model.User{}, &model.RevokedToken{}, &model.UserRevocation{},
	))

	cfg := &config.JWTConfig{
		SigningKey:       "handler-test-key",
		AccessTTLMinutes: 15,
		RefreshTTLDays:   30,
	}
	store := revocation.NewStore(db, nil)
	issuer := jwtutil.NewIssuer(cfg)
	verifier := jwtutil.NewVerifier(cfg, store)
	scope := database.NewTenantScope(db)

	authHandler := NewAuthHandler(issuer, store)
	userHandler := NewUserHandler()

	e := echo.New()
	e.Use(scope.Middleware())
	e.Use(middleware.TenantContext(verifier, scope))

	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh, middleware.RefreshAuth(verifier))
	auth.POST("/logout", authHandler.Logout, middleware.Auth(verifier))
	auth.POST("/logout_all", authHandler.LogoutAll, middleware.Auth(verifier))
	auth.GET("/me", authHandler.Me, middleware.Auth(verifier))

	users := e.Group("/users", middleware.Auth(verifier))
	users.GET("", userHandler.List)

	tenantHandler := NewTenantHandler()
	tenants := e.Group("/tenants", middleware.Auth(verifier))
	guarded := middleware.TenantGuard(verifier, scope, "tenant_id")
	tenants.GET("/:tenant_id", tenantHandler.Get, guarded)
	tenants.PUT("/:tenant_id", tenantHandler.Update, guarded)

	return &testServer{e: e, db: db, issuer: issuer, verifier: verifier}
}

func (s *testServer) request(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) registerAndLogin(t *testing.T, email string) (access, refresh string, body map[string]interface{}) {
	t.Helper()

	rec := s.request(http.MethodPost, "/auth/register", "",
		`{"name":"Ana","email":"`+email+`","password":"secret123","tenant_name":"Ana Motos"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.request(http.MethodPost, "/auth/login", "",
		`{"email":"`+email+`","password":"secret123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	access, _ = body["access_token"].(string)
	refresh, _ = body["refresh_token"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	return access, refresh, body
}

func TestRegisterCreatesTenantWithOwner(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodPost, "/auth/register", "",
		`{"name":"Ana","email":"ana@shop.test","password":"secret123","tenant_name":"Ana Motos"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var user model.User
	require.NoError(t, s.db.Where("email = ?", "ana@shop.test").First(&user).Error)
	assert.NotZero(t, user.TenantID)
	assert.Equal(t, model.RoleOwner, user.Role)

	var tenantRow model.Tenant
	require.NoError(t, s.db.First(&tenantRow, user.TenantID).Error)
	assert.Equal(t, "Ana Motos", tenantRow.Name)
	assert.Equal(t, model.PlanBasic, tenantRow.Plan)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	s := newTestServer(t)

	payload := `{"name":"Ana","email":"dup@shop.test","password":"secret123"}`
	rec := s.request(http.MethodPost, "/auth/register", "", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.request(http.MethodPost, "/auth/register", "", payload)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterValidatesRequiredFields(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodPost, "/auth/register", "", `{"email":"x@y.test"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginTokenCarriesTenant(t *testing.T) {
	s := newTestServer(t)
	access, refresh, body := s.registerAndLogin(t, "ana@shop.test")

	var user model.User
	require.NoError(t, s.db.Where("email = ?", "ana@shop.test").First(&user).Error)

	claims, err := s.verifier.Verify(context.Background(), access, jwtutil.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, int(user.TenantID), claims.TenantID)
	assert.Equal(t, model.PlanBasic, claims.Plan)

	claims, err = s.verifier.Verify(context.Background(), refresh, jwtutil.KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, int(user.TenantID), claims.TenantID)

	userInfo, ok := body["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Ana Motos", userInfo["tenant_name"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "ana@shop.test")

	rec := s.request(http.MethodPost, "/auth/login", "",
		`{"email":"ana@shop.test","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.request(http.MethodPost, "/auth/login", "",
		`{"email":"ghost@shop.test","password":"secret123"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshMintsAccessWithSameTenant(t *testing.T) {
	s := newTestServer(t)
	_, refresh, _ := s.registerAndLogin(t, "ana@shop.test")

	rec := s.request(http.MethodPost, "/auth/refresh", refresh, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	claims, err := s.verifier.Verify(context.Background(), resp["access_token"], jwtutil.KindAccess)
	require.NoError(t, err)

	old, err := s.verifier.Verify(context.Background(), refresh, jwtutil.KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, old.TenantID, claims.TenantID)
	assert.Equal(t, old.Plan, claims.Plan)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	s := newTestServer(t)
	access, _, _ := s.registerAndLogin(t, "ana@shop.test")

	rec := s.request(http.MethodPost, "/auth/refresh", access, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	access, _, _ := s.registerAndLogin(t, "ana@shop.test")

	rec := s.request(http.MethodGet, "/auth/me", access, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.request(http.MethodPost, "/auth/logout", access, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The just-revoked token is dead on every authenticated route.
	rec = s.request(http.MethodGet, "/auth/me", access, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.request(http.MethodGet, "/users", access, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutIsIdempotentAcrossSessions(t *testing.T) {
	s := newTestServer(t)
	access, _, _ := s.registerAndLogin(t, "ana@shop.test")

	rec := s.request(http.MethodPost, "/auth/logout", access, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Re-presenting the revoked token fails authentication, it does not
	// error out of the revocation store.
	rec = s.request(http.MethodPost, "/auth/logout", access, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutFailsLoudlyWhenStoreIsBroken(t *testing.T) {
	s := newTestServer(t)

	// A store whose table is gone cannot persist the revocation; the
	// handler must report failure instead of claiming a successful logout.
	require.NoError(t, s.db.Migrator().DropTable(&model.RevokedToken{}))

	store := revocation.NewStore(s.db, nil)
	h := NewAuthHandler(s.issuer, store)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	id := &tenant.Identity{UserID: 1, TenantID: 1, JTI: "jti-broken", TokenKind: jwtutil.KindAccess}
	c.SetRequest(req.WithContext(tenant.WithIdentity(req.Context(), id)))

	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRegisterReportsBrokenDuplicateLookup(t *testing.T) {
	s := newTestServer(t)

	// When the duplicate-email check itself fails, registration must stop
	// and report the lookup failure instead of blundering into the insert.
	require.NoError(t, s.db.Migrator().DropTable(&model.User{}))

	h := NewAuthHandler(s.issuer, revocation.NewStore(s.db, nil))

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"name":"Ana","email":"ana@shop.test","password":"secret123"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.SetRequest(req.WithContext(database.WithTx(req.Context(), s.db)))

	require.NoError(t, h.Register(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "lookup failed")
}

func TestLogoutAllKillsExistingSession(t *testing.T) {
	s := newTestServer(t)
	access, refresh, _ := s.registerAndLogin(t, "ana@shop.test")

	rec := s.request(http.MethodPost, "/auth/logout_all", access, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The session's access token was never individually recorded but the
	// principal cutoff still invalidates it.
	rec = s.request(http.MethodGet, "/auth/me", access, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The refresh token from the same session is dead too.
	rec = s.request(http.MethodPost, "/auth/refresh", refresh, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeReturnsProfileWithTenant(t *testing.T) {
	s := newTestServer(t)
	access, _, _ := s.registerAndLogin(t, "ana@shop.test")

	rec := s.request(http.MethodGet, "/auth/me", access, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ana@shop.test", resp["email"])
	assert.Equal(t, "Ana Motos", resp["tenant_name"])
	assert.Equal(t, model.PlanBasic, resp["plan"])
	assert.Equal(t, model.RoleOwner, resp["role"])
}

func TestUserListIsTenantScoped(t *testing.T) {
	s := newTestServer(t)
	accessA, _, _ := s.registerAndLogin(t, "ana@shop.test")
	accessB, _, _ := s.registerAndLogin(t, "bia@other.test")

	rec := s.request(http.MethodGet, "/users", accessA, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ana@shop.test")
	assert.NotContains(t, rec.Body.String(), "bia@other.test")

	rec = s.request(http.MethodGet, "/users", accessB, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bia@other.test")
	assert.NotContains(t, rec.Body.String(), "ana@shop.test")
}

func TestUserListRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(http.MethodGet, "/users", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
