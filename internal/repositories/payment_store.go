package repositories

import (
	"context"
	"encoding/json"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// PaymentTx is the set of writes a payment performs atomically.
type PaymentTx interface {
	// LockAllocation reads the allocation and holds it until the transaction ends.
	LockAllocation(ctx context.Context, id uuid.UUID) (*models.StudentFeeAllocation, error)
	GetStructure(ctx context.Context, tenantID, id uuid.UUID) (*models.FeeStructure, error)
	// NextReceiptSequence advances the (tenant, year) counter to
	// max(counter, floor) + 1 and returns it.
	NextReceiptSequence(ctx context.Context, tenantID uuid.UUID, year int, floor int64) (int64, error)
	// MaxReceiptSequence returns the highest numeric suffix among the
	// tenant's receipt numbers that start with series, or 0.
	MaxReceiptSequence(ctx context.Context, tenantID uuid.UUID, series string) (int64, error)
	ReceiptExists(ctx context.Context, tenantID uuid.UUID, receiptNumber string) (bool, error)
	InsertPayment(ctx context.Context, payment *models.FeePayment) error
	// UpdateAllocationBalance writes DueAmount if the stored version still
	// equals expectedVersion, and bumps the version.
	UpdateAllocationBalance(ctx context.Context, allocation *models.StudentFeeAllocation, expectedVersion int64) error
	InsertAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type PaymentStore interface {
	WithPaymentTx(ctx context.Context, scope tenant.Context, fn func(tx PaymentTx) error) error
}

type paymentStore struct {
	db TxDB
}

func NewPaymentStore(db TxDB) PaymentStore {
	return &paymentStore{db: db}
}

func (s *paymentStore) WithPaymentTx(ctx context.Context, scope tenant.Context, fn func(tx PaymentTx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin payment transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&pgPaymentTx{tx: tx, scope: scope}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit payment transaction")
}

type pgPaymentTx struct {
	tx    pgx.Tx
	scope tenant.Context
}

func (t *pgPaymentTx) LockAllocation(ctx context.Context, id uuid.UUID) (*models.StudentFeeAllocation, error) {
	args := []interface{}{id}
	filter, args := t.scope.Filter("tenant_id", args)
	query := `SELECT ` + allocationColumns + ` FROM student_fee_allocations WHERE id = $1` + filter + ` FOR UPDATE`
	a, err := scanAllocation(t.tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "allocation", id)
	}
	return a, nil
}

func (t *pgPaymentTx) GetStructure(ctx context.Context, tenantID, id uuid.UUID) (*models.FeeStructure, error) {
	query := `SELECT ` + feeStructureColumns + ` FROM fee_structures WHERE id = $1 AND tenant_id = $2`
	s, err := scanFeeStructure(t.tx.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		return nil, notFound(err, "fee structure", id)
	}
	return s, nil
}

func (t *pgPaymentTx) NextReceiptSequence(ctx context.Context, tenantID uuid.UUID, year int, floor int64) (int64, error) {
	query := `INSERT INTO receipt_sequences (tenant_id, year, last_number, updated_at) VALUES ($1, $2, $3::BIGINT + 1, NOW()) ON CONFLICT (tenant_id, year) DO UPDATE SET last_number = GREATEST(receipt_sequences.last_number, $3::BIGINT) + 1, updated_at = NOW() RETURNING last_number`
	var next int64
	if err := t.tx.QueryRow(ctx, query, tenantID, year, floor).Scan(&next); err != nil {
		return 0, errors.Wrap(err, "advance receipt sequence")
	}
	return next, nil
}

func (t *pgPaymentTx) MaxReceiptSequence(ctx context.Context, tenantID uuid.UUID, series string) (int64, error) {
	query := `SELECT COALESCE(MAX(SUBSTRING(receipt_number FROM char_length($2) + 1)::BIGINT), 0) FROM fee_payments WHERE tenant_id = $1 AND LEFT(receipt_number, char_length($2)) = $2 AND SUBSTRING(receipt_number FROM char_length($2) + 1) ~ '^[0-9]{1,18}$'`
	var highest int64
	if err := t.tx.QueryRow(ctx, query, tenantID, series).Scan(&highest); err != nil {
		return 0, errors.Wrap(err, "find highest receipt number")
	}
	return highest, nil
}

func (t *pgPaymentTx) ReceiptExists(ctx context.Context, tenantID uuid.UUID, receiptNumber string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM fee_payments WHERE tenant_id = $1 AND receipt_number = $2)`
	if err := t.tx.QueryRow(ctx, query, tenantID, receiptNumber).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check receipt number")
	}
	return exists, nil
}

func (t *pgPaymentTx) InsertPayment(ctx context.Context, p *models.FeePayment) error {
	query := `INSERT INTO fee_payments (` + paymentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := t.tx.Exec(ctx, query, p.ID, p.TenantID, p.StudentID, p.AllocationID, p.ReceiptNumber, p.Amount, p.LateFee, p.TotalAmount, p.PaymentMethod, p.Status, p.CollectedBy, p.PaidAt, p.CreatedAt)
	return errors.Wrap(err, "insert payment")
}

func (t *pgPaymentTx) UpdateAllocationBalance(ctx context.Context, a *models.StudentFeeAllocation, expectedVersion int64) error {
	query := `UPDATE student_fee_allocations SET due_amount = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND tenant_id = $4 AND version = $5`
	tag, err := t.tx.Exec(ctx, query, a.DueAmount, a.UpdatedAt, a.ID, a.TenantID, expectedVersion)
	if err != nil {
		return errors.Wrap(err, "update allocation balance")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(common.ErrConcurrencyConflict, "allocation %s", a.ID)
	}
	a.Version = expectedVersion + 1
	return nil
}

func (t *pgPaymentTx) InsertAuditLog(ctx context.Context, entry *models.AuditLog) error {
	newValues, err := json.Marshal(entry.NewValues)
	if err != nil {
		return errors.Wrap(err, "marshal audit values")
	}
	query := `INSERT INTO audit_logs (id, tenant_id, table_name, record_id, action, new_values, changed_by, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = t.tx.Exec(ctx, query, entry.ID, entry.TenantID, entry.TableName, entry.RecordID, entry.Action, newValues, entry.ChangedBy, entry.CreatedAt)
	return errors.Wrap(err, "insert audit log")
}
