// Package inmemdb keeps every table in process memory behind one mutex. It
// implements the same repository interfaces as the Postgres layer and is used
// by tests and local demos.
package inmemdb

import (
	"sort"
	"sync"

	"feeledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type sequenceKey struct {
	tenantID uuid.UUID
	year     int
}

type receiptKey struct {
	tenantID uuid.UUID
	number   string
}

type DB struct {
	mutex sync.RWMutex

	tenants     map[uuid.UUID]*models.Tenant
	categories  map[uuid.UUID]*models.FeeCategory
	structures  map[uuid.UUID]*models.FeeStructure
	allocations map[uuid.UUID]*models.StudentFeeAllocation
	payments    map[uuid.UUID]*models.FeePayment
	sequences   map[sequenceKey]int64
	receipts    map[receiptKey]struct{}
	auditLogs   []*models.AuditLog
}

func NewDB() *DB {
	return &DB{
		tenants:     make(map[uuid.UUID]*models.Tenant),
		categories:  make(map[uuid.UUID]*models.FeeCategory),
		structures:  make(map[uuid.UUID]*models.FeeStructure),
		allocations: make(map[uuid.UUID]*models.StudentFeeAllocation),
		payments:    make(map[uuid.UUID]*models.FeePayment),
		sequences:   make(map[sequenceKey]int64),
		receipts:    make(map[receiptKey]struct{}),
	}
}

// PutTenant registers a tenant. Tenants are provisioned outside the ledger.
func (db *DB) PutTenant(t models.Tenant) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tenants[t.ID] = &t
}

// SetReceiptSequence seeds a tenant's counter, e.g. after importing legacy receipts.
func (db *DB) SetReceiptSequence(tenantID uuid.UUID, year int, last int64) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.sequences[sequenceKey{tenantID, year}] = last
}

// ImportPayment stores a payment as-is, bypassing the ledger.
func (db *DB) ImportPayment(p models.FeePayment) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.payments[p.ID] = &p
	db.receipts[receiptKey{p.TenantID, p.ReceiptNumber}] = struct{}{}
}

// AuditLogs returns a copy of the audit trail.
func (db *DB) AuditLogs() []models.AuditLog {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	logs := make([]models.AuditLog, 0, len(db.auditLogs))
	for _, l := range db.auditLogs {
		logs = append(logs, *l)
	}
	return logs
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// sortByDueDate orders nil due dates last, ties by id.
func sortByDueDate(allocations []*models.StudentFeeAllocation) {
	sort.Slice(allocations, func(i, j int) bool {
		a, b := allocations[i], allocations[j]
		switch {
		case a.DueDate == nil && b.DueDate == nil:
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		return a.ID.String() < b.ID.String()
	})
}

// SettleAllocation clears an allocation's balance outside any payment.
func (db *DB) SettleAllocation(id uuid.UUID) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if a, ok := db.allocations[id]; ok {
		a.DueAmount = decimal.Zero
		a.Version++
	}
}

// ImportAuditLog appends an entry to the audit trail as-is.
func (db *DB) ImportAuditLog(l models.AuditLog) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.auditLogs = append(db.auditLogs, &l)
}
