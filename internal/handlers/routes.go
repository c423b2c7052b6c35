package handlers

import (
	"feeledger/internal/middleware"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
)

// RegisterRoutes mounts the fee API on a group that already runs the JWT and
// tenant scope middleware.
func RegisterRoutes(g *echo.Group, ledger *FeeLedgerHandlers, setup *FeeSetupHandlers) {
	admin := middleware.RequireRole(RoleAdmin)
	cashier := middleware.RequireRole(RoleAdmin, RoleAccountant)

	g.GET("/fee-categories", setup.ListCategories)
	g.POST("/fee-categories", setup.CreateCategory, admin)
	g.GET("/fee-categories/:id", setup.GetCategory)
	g.PUT("/fee-categories/:id", setup.UpdateCategory, admin)
	g.DELETE("/fee-categories/:id", setup.DeleteCategory, admin)

	g.GET("/fee-structures", setup.ListStructures)
	g.POST("/fee-structures", setup.CreateStructure, admin)
	g.GET("/fee-structures/:id", setup.GetStructure)
	g.PUT("/fee-structures/:id", setup.UpdateStructure, admin)
	g.DELETE("/fee-structures/:id", setup.DeleteStructure, admin)
	g.POST("/fee-structures/:id/allocations", ledger.AssignStructure, admin)
	g.POST("/fee-structures/:id/allocations/roster", ledger.AssignStructureFromRoster, admin)

	g.GET("/allocations/pending", ledger.ListPendingAllocations)
	g.GET("/allocations/:id", ledger.GetAllocation)
	g.GET("/allocations/:id/payments", ledger.ListAllocationPayments)

	g.POST("/payments", ledger.RecordPayment, cashier)
	g.GET("/payments/:id", ledger.GetPayment)
	g.GET("/payments/:id/receipt-url", ledger.GetReceiptURL)
	g.GET("/receipts/:number", ledger.GetPaymentByReceipt)

	g.GET("/students/:id/balance", ledger.StudentBalance)

	g.GET("/reports/collections", ledger.ExportCollections, cashier)
	g.GET("/reports/overdue", ledger.OverdueSummary, cashier)
}

// RegisterAdminRoutes mounts tenant provisioning, the audit trail and job
// controls on the same authenticated group.
func RegisterAdminRoutes(g *echo.Group, tenants *TenantHandlers, audit *AuditLogsHandlers, jobs *JobHandlers) {
	platform := middleware.RequireRole(middleware.RoleSuperAdmin)
	admin := middleware.RequireRole(RoleAdmin)

	g.GET("/tenants", tenants.ListTenants, platform)
	g.POST("/tenants", tenants.CreateTenant, platform)
	g.GET("/tenants/current", tenants.GetCurrentTenant)
	g.GET("/tenants/:id", tenants.GetTenant)
	g.PUT("/tenants/:id", tenants.UpdateTenant, platform)

	g.GET("/audit-logs", audit.ListAuditLogs, admin)
	g.GET("/audit-logs/summary", audit.GetAuditSummary, admin)
	g.GET("/audit-logs/history/:table/:record_id", audit.GetEntityHistory, admin)
	g.GET("/audit-logs/:id", audit.GetAuditLog, admin)

	if jobs != nil {
		g.GET("/jobs", jobs.GetJobStatus, platform)
		g.POST("/jobs/overdue-refresh", jobs.TriggerOverdueRefresh, platform)
	}
}
