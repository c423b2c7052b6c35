package inmemdb

import (
	"context"
	"sort"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
)

type paymentRepository struct {
	db *DB
}

func NewPaymentRepository(db *DB) repositories.PaymentRepository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) GetByID(_ context.Context, scope tenant.Context, id uuid.UUID) (*models.FeePayment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	p, ok := repo.db.payments[id]
	if !ok || !scope.Allows(p.TenantID) {
		return nil, common.NewNotFound("payment", id)
	}
	cp := *p
	return &cp, nil
}

func (repo *paymentRepository) GetByReceipt(_ context.Context, scope tenant.Context, receiptNumber string) (*models.FeePayment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, p := range repo.db.payments {
		if p.ReceiptNumber == receiptNumber && scope.Allows(p.TenantID) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, &common.NotFoundError{Resource: "receipt", ID: receiptNumber}
}

func (repo *paymentRepository) List(_ context.Context, scope tenant.Context, f *models.PaymentFilter) ([]*models.FeePayment, error) {
	if f == nil {
		f = &models.PaymentFilter{}
	}
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var out []*models.FeePayment
	for _, p := range repo.db.payments {
		if !scope.Allows(p.TenantID) {
			continue
		}
		if f.AllocationID != nil && p.AllocationID != *f.AllocationID {
			continue
		}
		if f.StudentID != nil && p.StudentID != *f.StudentID {
			continue
		}
		if f.From != nil && p.PaidAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !p.PaidAt.Before(*f.To) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaidAt.Equal(out[j].PaidAt) {
			return out[i].PaidAt.Before(out[j].PaidAt)
		}
		return out[i].ReceiptNumber < out[j].ReceiptNumber
	})
	return page(out, f.Limit, f.Offset), nil
}
