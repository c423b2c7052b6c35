package inmemdb

import (
	"context"
	"strconv"
	"strings"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type paymentStore struct {
	db *DB
}

// NewPaymentStore serializes payment transactions on the database mutex.
// Writes are staged and applied only when fn succeeds.
func NewPaymentStore(db *DB) repositories.PaymentStore {
	return &paymentStore{db: db}
}

func (s *paymentStore) WithPaymentTx(_ context.Context, scope tenant.Context, fn func(tx repositories.PaymentTx) error) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()

	tx := &paymentTx{
		db:        s.db,
		scope:     scope,
		sequences: make(map[sequenceKey]int64),
		balances:  make(map[uuid.UUID]*models.StudentFeeAllocation),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

type paymentTx struct {
	db    *DB
	scope tenant.Context

	sequences map[sequenceKey]int64
	payments  []*models.FeePayment
	balances  map[uuid.UUID]*models.StudentFeeAllocation
	audit     []*models.AuditLog
}

func (t *paymentTx) apply() {
	for k, v := range t.sequences {
		t.db.sequences[k] = v
	}
	for _, p := range t.payments {
		t.db.payments[p.ID] = p
		t.db.receipts[receiptKey{p.TenantID, p.ReceiptNumber}] = struct{}{}
	}
	for id, a := range t.balances {
		t.db.allocations[id] = a
	}
	t.db.auditLogs = append(t.db.auditLogs, t.audit...)
}

func (t *paymentTx) LockAllocation(_ context.Context, id uuid.UUID) (*models.StudentFeeAllocation, error) {
	if staged, ok := t.balances[id]; ok {
		cp := *staged
		return &cp, nil
	}
	a, ok := t.db.allocations[id]
	if !ok || !t.scope.Allows(a.TenantID) {
		return nil, common.NewNotFound("allocation", id)
	}
	cp := *a
	return &cp, nil
}

func (t *paymentTx) GetStructure(_ context.Context, tenantID, id uuid.UUID) (*models.FeeStructure, error) {
	s, ok := t.db.structures[id]
	if !ok || s.TenantID != tenantID {
		return nil, common.NewNotFound("fee structure", id)
	}
	cp := *s
	return &cp, nil
}

func (t *paymentTx) NextReceiptSequence(_ context.Context, tenantID uuid.UUID, year int, floor int64) (int64, error) {
	key := sequenceKey{tenantID, year}
	last, ok := t.sequences[key]
	if !ok {
		last = t.db.sequences[key]
	}
	if floor > last {
		last = floor
	}
	t.sequences[key] = last + 1
	return last + 1, nil
}

func (t *paymentTx) MaxReceiptSequence(_ context.Context, tenantID uuid.UUID, series string) (int64, error) {
	var highest int64
	consider := func(number string) {
		if !strings.HasPrefix(number, series) {
			return
		}
		seq, err := strconv.ParseInt(strings.TrimPrefix(number, series), 10, 64)
		if err == nil && seq > highest {
			highest = seq
		}
	}
	for k := range t.db.receipts {
		if k.tenantID == tenantID {
			consider(k.number)
		}
	}
	for _, p := range t.payments {
		if p.TenantID == tenantID {
			consider(p.ReceiptNumber)
		}
	}
	return highest, nil
}

func (t *paymentTx) ReceiptExists(_ context.Context, tenantID uuid.UUID, receiptNumber string) (bool, error) {
	if _, ok := t.db.receipts[receiptKey{tenantID, receiptNumber}]; ok {
		return true, nil
	}
	for _, p := range t.payments {
		if p.TenantID == tenantID && p.ReceiptNumber == receiptNumber {
			return true, nil
		}
	}
	return false, nil
}

func (t *paymentTx) InsertPayment(ctx context.Context, p *models.FeePayment) error {
	exists, _ := t.ReceiptExists(ctx, p.TenantID, p.ReceiptNumber)
	if exists {
		return errors.Errorf("duplicate receipt number %s", p.ReceiptNumber)
	}
	cp := *p
	t.payments = append(t.payments, &cp)
	return nil
}

func (t *paymentTx) UpdateAllocationBalance(ctx context.Context, a *models.StudentFeeAllocation, expectedVersion int64) error {
	current, err := t.LockAllocation(ctx, a.ID)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return errors.Wrapf(common.ErrConcurrencyConflict, "allocation %s", a.ID)
	}
	a.Version = expectedVersion + 1
	cp := *a
	t.balances[a.ID] = &cp
	return nil
}

func (t *paymentTx) InsertAuditLog(_ context.Context, entry *models.AuditLog) error {
	cp := *entry
	t.audit = append(t.audit, &cp)
	return nil
}
