package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feeledger/internal/middleware"
	"feeledger/internal/models"
	inmemdb "feeledger/internal/repositories/inmem"
	"feeledger/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobs struct {
	refreshed int
	err       error
}

func (f *fakeJobs) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{"total_jobs": 1}
}

func (f *fakeJobs) RefreshOverdueSummaries(context.Context) error {
	f.refreshed++
	return f.err
}

type adminFixture struct {
	e    *echo.Echo
	db   *inmemdb.DB
	jobs *fakeJobs
}

func newAdminFixture(t *testing.T) *adminFixture {
	db := inmemdb.NewDB()
	jobs := &fakeJobs{}
	e := echo.New()
	v1 := e.Group("/v1", echojwt.WithConfig(middleware.JWTConfig(handlerTestSecret, nil)), middleware.TenantScope())
	RegisterAdminRoutes(v1,
		NewTenantHandlers(services.NewTenantService(inmemdb.NewTenantRepository(db))),
		NewAuditLogsHandlers(services.NewAuditLogsService(inmemdb.NewAuditLogsRepository(db))),
		NewJobHandlers(jobs))
	return &adminFixture{e: e, db: db, jobs: jobs}
}

func adminToken(t *testing.T, tenantID uuid.UUID, role string) string {
	claims := middleware.JWTCustomClaims{
		UserID: uuid.NewString(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	if tenantID != uuid.Nil {
		claims.TenantID = tenantID.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(handlerTestSecret))
	require.NoError(t, err)
	return signed
}

func (f *adminFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	raw := []byte(nil)
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func TestTenantHandlers(t *testing.T) {
	f := newAdminFixture(t)
	platform := adminToken(t, uuid.Nil, middleware.RoleSuperAdmin)

	rec := f.do(t, http.MethodPost, "/v1/tenants", platform, map[string]string{"name": "Oakridge", "subdomain": "oakridge"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Tenant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.do(t, http.MethodPost, "/v1/tenants", platform, map[string]string{"name": "Again", "subdomain": "oakridge"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	school := adminToken(t, created.ID, RoleAdmin)
	rec = f.do(t, http.MethodGet, "/v1/tenants/current", school, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subdomain":"oakridge"`)

	rec = f.do(t, http.MethodGet, "/v1/tenants", school, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	other := adminToken(t, uuid.New(), RoleAdmin)
	rec = f.do(t, http.MethodGet, "/v1/tenants/"+created.ID.String(), other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, "/v1/tenants/"+created.ID.String(), platform, map[string]string{
		"name": "Oakridge School", "subdomain": "oakridge", "status": "suspended",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"suspended"`)

	rec = f.do(t, http.MethodGet, "/v1/tenants/current", platform, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditLogsHandlers(t *testing.T) {
	f := newAdminFixture(t)
	tenantID := uuid.New()
	entry := models.AuditLog{
		ID:        uuid.New(),
		TenantID:  tenantID,
		TableName: "fee_payments",
		RecordID:  uuid.NewString(),
		Action:    models.ActionInsert,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	f.db.ImportAuditLog(entry)

	admin := adminToken(t, tenantID, RoleAdmin)
	rec := f.do(t, http.MethodGet, "/v1/audit-logs?table=fee_payments", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), entry.ID.String())

	rec = f.do(t, http.MethodGet, "/v1/audit-logs/history/fee_payments/"+entry.RecordID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), entry.ID.String())

	rec = f.do(t, http.MethodGet, "/v1/audit-logs/summary", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_logs":1`)

	rec = f.do(t, http.MethodGet, "/v1/audit-logs/summary?start_date=2024-06-01&end_date=2024-01-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/audit-logs/"+entry.ID.String(), adminToken(t, uuid.New(), RoleAdmin), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/audit-logs", adminToken(t, tenantID, RoleAccountant), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestJobHandlers(t *testing.T) {
	f := newAdminFixture(t)
	platform := adminToken(t, uuid.Nil, middleware.RoleSuperAdmin)

	rec := f.do(t, http.MethodGet, "/v1/jobs", platform, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_jobs":1`)

	rec = f.do(t, http.MethodPost, "/v1/jobs/overdue-refresh", platform, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.jobs.refreshed)

	f.jobs.err = errors.New("redis down")
	rec = f.do(t, http.MethodPost, "/v1/jobs/overdue-refresh", platform, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/jobs/overdue-refresh", adminToken(t, uuid.New(), RoleAdmin), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
