package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feeledger/internal/middleware"
	inmemdb "feeledger/internal/repositories/inmem"
	"feeledger/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"
)

const handlerTestSecret = "handler-secret"

type FeeLedgerHandlersTestSuite struct {
	suite.Suite
	e *echo.Echo

	tenantA    uuid.UUID
	tenantB    uuid.UUID
	adminA     string
	cashierA   string
	adminB     string
	superAdmin string
}

func (suite *FeeLedgerHandlersTestSuite) token(tenantID uuid.UUID, role string) string {
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
	suite.Require().NoError(err)
	return signed
}

func (suite *FeeLedgerHandlersTestSuite) SetupTest() {
	db := inmemdb.NewDB()
	categoryRepo := inmemdb.NewFeeCategoryRepository(db)
	structureRepo := inmemdb.NewFeeStructureRepository(db)
	allocationRepo := inmemdb.NewAllocationRepository(db)
	paymentRepo := inmemdb.NewPaymentRepository(db)

	ledger := services.NewFeeLedgerService(inmemdb.NewPaymentStore(db), allocationRepo, structureRepo, paymentRepo, nil, nil, services.LedgerOptions{})
	reports := services.NewReportService(paymentRepo)
	setup := NewFeeSetupHandlers(services.NewFeeCategoryService(categoryRepo), services.NewFeeStructureService(structureRepo, categoryRepo, allocationRepo))

	suite.e = echo.New()
	v1 := suite.e.Group("/v1", echojwt.WithConfig(middleware.JWTConfig(handlerTestSecret, nil)), middleware.TenantScope())
	RegisterRoutes(v1, NewFeeLedgerHandlers(ledger, reports, nil, nil), setup)

	suite.tenantA = uuid.New()
	suite.tenantB = uuid.New()
	suite.adminA = suite.token(suite.tenantA, RoleAdmin)
	suite.cashierA = suite.token(suite.tenantA, RoleAccountant)
	suite.adminB = suite.token(suite.tenantB, RoleAdmin)
	suite.superAdmin = suite.token(uuid.Nil, middleware.RoleSuperAdmin)
}

func TestFeeLedgerHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(FeeLedgerHandlersTestSuite))
}

func (suite *FeeLedgerHandlersTestSuite) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	suite.e.ServeHTTP(rec, req)
	return rec
}

func (suite *FeeLedgerHandlersTestSuite) decode(rec *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seedAllocation creates a category, a structure due 2024-01-10 and one
// allocation for tenant A, returning the allocation and structure ids.
func (suite *FeeLedgerHandlersTestSuite) seedAllocation() (string, string) {
	rec := suite.do(http.MethodPost, "/v1/fee-categories", suite.adminA, map[string]interface{}{
		"name": "Tuition", "frequency": "yearly", "is_mandatory": true,
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	categoryID := suite.decode(rec)["id"].(string)

	rec = suite.do(http.MethodPost, "/v1/fee-structures", suite.adminA, map[string]interface{}{
		"fee_category_id":     categoryID,
		"academic_year_id":    uuid.NewString(),
		"amount":              "1000",
		"due_date":            "2024-01-10T00:00:00Z",
		"late_fee":            "50",
		"late_fee_grace_days": 3,
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	structureID := suite.decode(rec)["id"].(string)

	rec = suite.do(http.MethodPost, "/v1/fee-structures/"+structureID+"/allocations", suite.adminA, map[string]interface{}{
		"student_ids": []string{uuid.NewString()},
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	allocations := suite.decode(rec)["allocations"].([]interface{})
	suite.Require().Len(allocations, 1)
	return allocations[0].(map[string]interface{})["id"].(string), structureID
}

func (suite *FeeLedgerHandlersTestSuite) TestRecordPaymentFlow() {
	allocationID, _ := suite.seedAllocation()

	rec := suite.do(http.MethodPost, "/v1/payments", suite.cashierA, map[string]interface{}{
		"allocation_id":  allocationID,
		"amount":         "600",
		"payment_method": "cash",
		"paid_at":        "2024-01-09T10:00:00Z",
	})
	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	result := suite.decode(rec)
	payment := result["payment"].(map[string]interface{})
	suite.Equal("RCP-2024-000001", payment["receipt_number"])
	suite.Equal("400", result["allocation"].(map[string]interface{})["due_amount"])

	rec = suite.do(http.MethodGet, "/v1/receipts/RCP-2024-000001", suite.adminA, nil)
	suite.Equal(http.StatusOK, rec.Code)

	rec = suite.do(http.MethodGet, "/v1/receipts/RCP-2024-000001", suite.adminB, nil)
	suite.Equal(http.StatusNotFound, rec.Code)

	rec = suite.do(http.MethodGet, "/v1/allocations/"+allocationID+"/payments", suite.adminA, nil)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Len(suite.decode(rec)["payments"], 1)

	rec = suite.do(http.MethodPost, "/v1/payments", suite.cashierA, map[string]interface{}{
		"allocation_id":  allocationID,
		"amount":         "450",
		"payment_method": "card",
	})
	suite.Equal(http.StatusUnprocessableEntity, rec.Code)
	suite.Contains(rec.Body.String(), "OVERPAYMENT")

	rec = suite.do(http.MethodPost, "/v1/payments", suite.cashierA, map[string]interface{}{
		"allocation_id":  allocationID,
		"amount":         "-1",
		"payment_method": "cash",
	})
	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Contains(rec.Body.String(), "amount")
}

func (suite *FeeLedgerHandlersTestSuite) TestCrossTenantAllocationIsNotFound() {
	allocationID, _ := suite.seedAllocation()

	rec := suite.do(http.MethodGet, "/v1/allocations/"+allocationID, suite.adminB, nil)
	suite.Equal(http.StatusNotFound, rec.Code)

	rec = suite.do(http.MethodPost, "/v1/payments", suite.adminB, map[string]interface{}{
		"allocation_id": allocationID, "amount": "10", "payment_method": "cash",
	})
	suite.Equal(http.StatusNotFound, rec.Code)

	rec = suite.do(http.MethodGet, "/v1/allocations/"+allocationID, suite.superAdmin, nil)
	suite.Equal(http.StatusOK, rec.Code)
}

func (suite *FeeLedgerHandlersTestSuite) TestListPendingAllocations() {
	suite.seedAllocation()

	rec := suite.do(http.MethodGet, "/v1/allocations/pending?limit=10", suite.cashierA, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)
	body := suite.decode(rec)
	suite.Len(body["allocations"], 1)
	suite.EqualValues(10, body["limit"])

	rec = suite.do(http.MethodGet, "/v1/allocations/pending?as_of=2024-01-10", suite.cashierA, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Len(suite.decode(rec)["allocations"], 0, "not overdue on its due date")

	rec = suite.do(http.MethodGet, "/v1/allocations/pending?as_of=2024-01-11", suite.cashierA, nil)
	suite.Len(suite.decode(rec)["allocations"], 1)

	rec = suite.do(http.MethodGet, "/v1/allocations/pending", suite.adminB, nil)
	suite.Len(suite.decode(rec)["allocations"], 0)

	rec = suite.do(http.MethodGet, "/v1/allocations/pending?as_of=yesterday", suite.cashierA, nil)
	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *FeeLedgerHandlersTestSuite) TestRoleChecks() {
	rec := suite.do(http.MethodPost, "/v1/fee-categories", suite.cashierA, map[string]interface{}{"name": "Lab", "frequency": "yearly"})
	suite.Equal(http.StatusForbidden, rec.Code)

	viewer := suite.token(suite.tenantA, "librarian")
	rec = suite.do(http.MethodPost, "/v1/payments", viewer, map[string]interface{}{})
	suite.Equal(http.StatusForbidden, rec.Code)

	rec = suite.do(http.MethodGet, "/v1/fee-categories", viewer, nil)
	suite.Equal(http.StatusOK, rec.Code)
}

func (suite *FeeLedgerHandlersTestSuite) TestDeleteStructureInUse() {
	_, structureID := suite.seedAllocation()
	rec := suite.do(http.MethodDelete, "/v1/fee-structures/"+structureID, suite.adminA, nil)
	suite.Equal(http.StatusConflict, rec.Code)
	suite.Contains(rec.Body.String(), "IN_USE")
}

func (suite *FeeLedgerHandlersTestSuite) TestAssignFromRoster() {
	_, structureID := suite.seedAllocation()

	f := excelize.NewFile()
	suite.Require().NoError(f.SetCellValue("Sheet1", "A1", "student_id"))
	suite.Require().NoError(f.SetCellValue("Sheet1", "A2", uuid.NewString()))
	suite.Require().NoError(f.SetCellValue("Sheet1", "A3", uuid.NewString()))
	workbook, err := f.WriteToBuffer()
	suite.Require().NoError(err)
	suite.Require().NoError(f.Close())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "roster.xlsx")
	suite.Require().NoError(err)
	_, err = part.Write(workbook.Bytes())
	suite.Require().NoError(err)
	suite.Require().NoError(writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/fee-structures/"+structureID+"/allocations/roster", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+suite.adminA)
	rec := httptest.NewRecorder()
	suite.e.ServeHTTP(rec, req)

	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	suite.Len(suite.decode(rec)["allocations"], 2)
}

func (suite *FeeLedgerHandlersTestSuite) TestExportCollections() {
	allocationID, _ := suite.seedAllocation()
	rec := suite.do(http.MethodPost, "/v1/payments", suite.cashierA, map[string]interface{}{
		"allocation_id": allocationID, "amount": "250", "payment_method": "online", "paid_at": "2024-03-05T08:00:00Z",
	})
	suite.Require().Equal(http.StatusCreated, rec.Code)

	rec = suite.do(http.MethodGet, "/v1/reports/collections?from=2024-03-01&to=2024-03-05", suite.cashierA, nil)
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Equal(xlsxContentType, rec.Header().Get(echo.HeaderContentType))
	suite.Contains(rec.Header().Get(echo.HeaderContentDisposition), "collections_20240301_20240305.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	suite.Require().NoError(err)
	defer f.Close()
	rows, err := f.GetRows("Collections")
	suite.Require().NoError(err)
	suite.Len(rows, 3)

	rec = suite.do(http.MethodGet, "/v1/reports/collections?from=2024-03-01", suite.cashierA, nil)
	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *FeeLedgerHandlersTestSuite) TestUnconfiguredOptionalFeatures() {
	rec := suite.do(http.MethodGet, "/v1/reports/overdue", suite.cashierA, nil)
	suite.Equal(http.StatusNotImplemented, rec.Code)

	rec = suite.do(http.MethodGet, "/v1/reports/overdue", suite.superAdmin, nil)
	suite.Equal(http.StatusBadRequest, rec.Code)

	rec = suite.do(http.MethodGet, "/v1/payments/"+uuid.NewString()+"/receipt-url", suite.adminA, nil)
	suite.Equal(http.StatusNotImplemented, rec.Code)
}

func TestHealthHandlers(t *testing.T) {
	h := NewHealthHandlers("test", nil)
	h.AddCheck("database", true, func(context.Context) error { return nil })
	h.AddCheck("cache", false, func(context.Context) error { return context.DeadlineExceeded })

	e := echo.New()
	e.GET("/ready", h.ReadinessCheck)
	e.GET("/health", h.HealthCheck)
	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/ready").Code, "non-critical failures keep the service ready")
	assert.Contains(t, get("/health").Body.String(), `"degraded"`)

	h.AddCheck("database", true, func(context.Context) error { return context.Canceled })
	assert.Equal(t, http.StatusServiceUnavailable, get("/ready").Code)
}
