package middleware

import (
	"net/http"
	"time"

	"feeledger/internal/common"
	"feeledger/internal/tenant"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
)

const (
	RoleSuperAdmin = "super_admin"

	tokenContextKey = "user"
	roleContextKey  = "role"
)

// JWTCustomClaims carries the caller identity. TenantID is empty only for
// platform operators.
type JWTCustomClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ScopeFromClaims turns verified claims into a tenant scope. A token without
// a tenant is accepted only for the super_admin role.
func ScopeFromClaims(claims *JWTCustomClaims) (tenant.Context, error) {
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return tenant.Context{}, errors.New("invalid user_id in token")
	}
	if claims.TenantID == "" {
		if claims.Role != RoleSuperAdmin {
			return tenant.Context{}, errors.New("token has no tenant")
		}
		return tenant.Platform(userID), nil
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil || tenantID == uuid.Nil {
		return tenant.Context{}, errors.New("invalid tenant_id in token")
	}
	return tenant.For(tenantID, userID), nil
}

// NewJWKS fetches signing keys from url and keeps them refreshed.
func NewJWKS(url string) (*keyfunc.JWKS, error) {
	return keyfunc.Get(url, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warnf("jwks refresh failed: %v", err)
		},
	})
}

// JWTConfig verifies HS256 tokens with secret, or tokens signed by any key in
// jwks when it is non-nil.
func JWTConfig(secret string, jwks *keyfunc.JWKS) echojwt.Config {
	cfg := echojwt.Config{
		ContextKey: tokenContextKey,
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return new(JWTCustomClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return common.SendUnauthorizedError(c, "Invalid or missing token")
		},
	}
	if jwks != nil {
		cfg.KeyFunc = jwks.Keyfunc
	} else {
		cfg.SigningKey = []byte(secret)
	}
	return cfg
}

// TenantScope must run after the JWT middleware. It stores the caller's
// tenant.Context on the request context.
func TenantScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get(tokenContextKey).(*jwt.Token)
			if !ok {
				return common.SendUnauthorizedError(c, "Missing token")
			}
			claims, ok := token.Claims.(*JWTCustomClaims)
			if !ok {
				return common.SendUnauthorizedError(c, "Invalid claims")
			}
			scope, err := ScopeFromClaims(claims)
			if err != nil {
				return common.SendUnauthorizedError(c, err.Error())
			}

			c.Set(roleContextKey, claims.Role)
			c.SetRequest(c.Request().WithContext(tenant.WithContext(c.Request().Context(), scope)))
			return next(c)
		}
	}
}

// ScopeFrom returns the scope set by TenantScope.
func ScopeFrom(c echo.Context) (tenant.Context, error) {
	scope, ok := tenant.FromContext(c.Request().Context())
	if !ok {
		return tenant.Context{}, echo.NewHTTPError(http.StatusUnauthorized, "tenant scope not resolved")
	}
	return scope, nil
}
