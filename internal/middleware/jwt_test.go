package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feeledger/internal/tenant"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims JWTCustomClaims) string {
	t.Helper()
	claims.RegisteredClaims = jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestScopeFromClaims(t *testing.T) {
	userID, tenantID := uuid.New(), uuid.New()

	scope, err := ScopeFromClaims(&JWTCustomClaims{UserID: userID.String(), TenantID: tenantID.String(), Role: "accountant"})
	require.NoError(t, err)
	assert.Equal(t, tenant.For(tenantID, userID), scope)

	scope, err = ScopeFromClaims(&JWTCustomClaims{UserID: userID.String(), Role: RoleSuperAdmin})
	require.NoError(t, err)
	assert.True(t, scope.IsPlatform())

	_, err = ScopeFromClaims(&JWTCustomClaims{UserID: userID.String(), Role: "admin"})
	assert.Error(t, err, "only super_admin may run without a tenant")

	_, err = ScopeFromClaims(&JWTCustomClaims{UserID: "nope", TenantID: tenantID.String()})
	assert.Error(t, err)

	_, err = ScopeFromClaims(&JWTCustomClaims{UserID: userID.String(), TenantID: uuid.Nil.String(), Role: "admin"})
	assert.Error(t, err)
}

func newProtectedEcho(roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("", echojwt.WithConfig(JWTConfig(testSecret, nil)), TenantScope())
	g.GET("/whoami", func(c echo.Context) error {
		scope, err := ScopeFrom(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"tenant": scope.CacheKey(), "user": scope.UserID.String()})
	}, RequireRole(roles...))
	return e
}

func request(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTenantScopeMiddleware(t *testing.T) {
	e := newProtectedEcho("accountant")
	userID, tenantID := uuid.New(), uuid.New()

	rec := request(e, signToken(t, JWTCustomClaims{UserID: userID.String(), TenantID: tenantID.String(), Role: "accountant"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), tenantID.String())

	rec = request(e, signToken(t, JWTCustomClaims{UserID: userID.String(), Role: RoleSuperAdmin}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tenant":"platform"`)

	rec = request(e, signToken(t, JWTCustomClaims{UserID: userID.String(), Role: "accountant"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(e, "not.a.token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	e := newProtectedEcho("admin")
	tenantID := uuid.New().String()

	rec := request(e, signToken(t, JWTCustomClaims{UserID: uuid.NewString(), TenantID: tenantID, Role: "accountant"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")

	rec = request(e, signToken(t, JWTCustomClaims{UserID: uuid.NewString(), TenantID: tenantID, Role: "admin"}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(e, signToken(t, JWTCustomClaims{UserID: uuid.NewString(), TenantID: tenantID, Role: RoleSuperAdmin}))
	assert.Equal(t, http.StatusOK, rec.Code)
}
