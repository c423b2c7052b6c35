package repositories

import (
	"context"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// PaymentRepository is read-only; payments are written through PaymentStore.
type PaymentRepository interface {
	GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeePayment, error)
	GetByReceipt(ctx context.Context, scope tenant.Context, receiptNumber string) (*models.FeePayment, error)
	List(ctx context.Context, scope tenant.Context, filter *models.PaymentFilter) ([]*models.FeePayment, error)
}

const paymentColumns = `id, tenant_id, student_id, allocation_id, receipt_number, amount, late_fee, total_amount, payment_method, status, collected_by, paid_at, created_at`

type paymentRepo struct {
	db DBTX
}

func NewPaymentRepo(db DBTX) PaymentRepository {
	return &paymentRepo{db: db}
}

func scanPayment(row pgx.Row) (*models.FeePayment, error) {
	p := &models.FeePayment{}
	err := row.Scan(&p.ID, &p.TenantID, &p.StudentID, &p.AllocationID, &p.ReceiptNumber, &p.Amount, &p.LateFee, &p.TotalAmount, &p.PaymentMethod, &p.Status, &p.CollectedBy, &p.PaidAt, &p.CreatedAt)
	return p, err
}

func (r *paymentRepo) GetByID(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeePayment, error) {
	args := []interface{}{id}
	filter, args := scope.Filter("tenant_id", args)
	query := `SELECT ` + paymentColumns + ` FROM fee_payments WHERE id = $1` + filter
	p, err := scanPayment(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return p, nil
}

func (r *paymentRepo) GetByReceipt(ctx context.Context, scope tenant.Context, receiptNumber string) (*models.FeePayment, error) {
	args := []interface{}{receiptNumber}
	filter, args := scope.Filter("tenant_id", args)
	query := `SELECT ` + paymentColumns + ` FROM fee_payments WHERE receipt_number = $1` + filter
	p, err := scanPayment(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &common.NotFoundError{Resource: "receipt", ID: receiptNumber}
	}
	if err != nil {
		return nil, errors.Wrap(err, "load receipt")
	}
	return p, nil
}

func (r *paymentRepo) List(ctx context.Context, scope tenant.Context, f *models.PaymentFilter) ([]*models.FeePayment, error) {
	if f == nil {
		f = &models.PaymentFilter{}
	}
	filter, args := scope.Filter("tenant_id", nil)
	query := `SELECT ` + paymentColumns + ` FROM fee_payments WHERE 1 = 1` + filter
	var p string
	if f.AllocationID != nil {
		p, args = placeholder(args, *f.AllocationID)
		query += ` AND allocation_id = ` + p
	}
	if f.StudentID != nil {
		p, args = placeholder(args, *f.StudentID)
		query += ` AND student_id = ` + p
	}
	if f.From != nil {
		p, args = placeholder(args, *f.From)
		query += ` AND paid_at >= ` + p
	}
	if f.To != nil {
		p, args = placeholder(args, *f.To)
		query += ` AND paid_at < ` + p
	}
	query, args = paginate(query+` ORDER BY paid_at, receipt_number`, args, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	defer rows.Close()

	var payments []*models.FeePayment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}
