package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentStoreTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	store   PaymentStore
	ctx     context.Context
	scope   tenant.Context
	tenant  uuid.UUID
	alloc   uuid.UUID
	student uuid.UUID
	fs      uuid.UUID
	due     time.Time
	now     time.Time
}

func (suite *PaymentStoreTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	suite.Require().NoError(err)
	suite.mock = mock
	suite.store = NewPaymentStore(mock)
	suite.ctx = context.Background()
	suite.tenant = uuid.New()
	suite.scope = tenant.For(suite.tenant, uuid.New())
	suite.alloc = uuid.New()
	suite.student = uuid.New()
	suite.fs = uuid.New()
	suite.due = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	suite.now = time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
}

func (suite *PaymentStoreTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestPaymentStoreTestSuite(t *testing.T) {
	suite.Run(t, new(PaymentStoreTestSuite))
}

func (suite *PaymentStoreTestSuite) allocationRows(due string, version int64) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "tenant_id", "student_id", "fee_structure_id", "academic_year_id", "due_amount", "due_date", "version", "created_at", "updated_at"}).
		AddRow(suite.alloc.String(), suite.tenant.String(), suite.student.String(), suite.fs.String(), uuid.NewString(), due, &suite.due, version, suite.now, suite.now)
}

func (suite *PaymentStoreTestSuite) expectLock(due string, version int64) {
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM student_fee_allocations WHERE id = $1 AND tenant_id = $2 FOR UPDATE`)).
		WithArgs(suite.alloc, suite.tenant).
		WillReturnRows(suite.allocationRows(due, version))
}

func (suite *PaymentStoreTestSuite) TestWithPaymentTx_Commit() {
	payment := &models.FeePayment{
		ID:            uuid.New(),
		TenantID:      suite.tenant,
		StudentID:     suite.student,
		AllocationID:  suite.alloc,
		ReceiptNumber: "RCP-2024-000001",
		Amount:        decimal.RequireFromString("400"),
		LateFee:       decimal.RequireFromString("50"),
		TotalAmount:   decimal.RequireFromString("450"),
		PaymentMethod: models.PaymentCash,
		Status:        models.PaymentCompleted,
		CollectedBy:   suite.scope.UserID,
		PaidAt:        suite.now,
		CreatedAt:     suite.now,
	}

	suite.mock.ExpectBegin()
	suite.expectLock("400.00", 1)
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM fee_structures WHERE id = $1 AND tenant_id = $2`)).
		WithArgs(suite.fs, suite.tenant).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "fee_category_id", "academic_year_id", "class_id", "amount", "due_date", "late_fee", "late_fee_grace_days", "created_at", "updated_at"}).
			AddRow(suite.fs.String(), suite.tenant.String(), uuid.NewString(), uuid.NewString(), nil, "1000.00", &suite.due, "50.00", 3, suite.now, suite.now))
	suite.mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO receipt_sequences`)).
		WithArgs(suite.tenant, 2024, int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"last_number"}).AddRow(int64(1)))
	suite.mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM fee_payments WHERE tenant_id = $1 AND receipt_number = $2)`)).
		WithArgs(suite.tenant, "RCP-2024-000001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	suite.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO fee_payments`)).
		WithArgs(payment.ID, suite.tenant, suite.student, suite.alloc, "RCP-2024-000001",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), models.PaymentCash, models.PaymentCompleted, suite.scope.UserID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectExec(regexp.QuoteMeta(`UPDATE student_fee_allocations SET due_amount = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND tenant_id = $4 AND version = $5`)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), suite.alloc, suite.tenant, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_logs`)).
		WithArgs(pgxmock.AnyArg(), suite.tenant, "fee_payments", payment.ID.String(), models.ActionInsert, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectCommit()

	var updated *models.StudentFeeAllocation
	err := suite.store.WithPaymentTx(suite.ctx, suite.scope, func(tx PaymentTx) error {
		a, err := tx.LockAllocation(suite.ctx, suite.alloc)
		if err != nil {
			return err
		}
		suite.True(a.DueAmount.Equal(decimal.RequireFromString("400")))
		s, err := tx.GetStructure(suite.ctx, a.TenantID, a.FeeStructureID)
		if err != nil {
			return err
		}
		suite.Equal(3, s.LateFeeGraceDays)
		seq, err := tx.NextReceiptSequence(suite.ctx, a.TenantID, 2024, 0)
		if err != nil {
			return err
		}
		suite.Equal(int64(1), seq)
		exists, err := tx.ReceiptExists(suite.ctx, a.TenantID, "RCP-2024-000001")
		if err != nil {
			return err
		}
		suite.False(exists)
		if err := tx.InsertPayment(suite.ctx, payment); err != nil {
			return err
		}
		expected := a.Version
		a.DueAmount = decimal.Zero
		a.UpdatedAt = suite.now
		if err := tx.UpdateAllocationBalance(suite.ctx, a, expected); err != nil {
			return err
		}
		updated = a
		changedBy := suite.scope.UserID
		return tx.InsertAuditLog(suite.ctx, &models.AuditLog{
			ID:        uuid.New(),
			TenantID:  a.TenantID,
			TableName: "fee_payments",
			RecordID:  payment.ID.String(),
			Action:    models.ActionInsert,
			NewValues: models.JSONB{"amount": "400.00"},
			ChangedBy: &changedBy,
			CreatedAt: suite.now,
		})
	})
	suite.Require().NoError(err)
	suite.Equal(int64(2), updated.Version)
	suite.NoError(suite.mock.ExpectationsWereMet())
}

func (suite *PaymentStoreTestSuite) TestWithPaymentTx_VersionConflictRollsBack() {
	suite.mock.ExpectBegin()
	suite.expectLock("1000.00", 4)
	suite.mock.ExpectExec(regexp.QuoteMeta(`UPDATE student_fee_allocations`)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), suite.alloc, suite.tenant, int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	suite.mock.ExpectRollback()

	err := suite.store.WithPaymentTx(suite.ctx, suite.scope, func(tx PaymentTx) error {
		a, err := tx.LockAllocation(suite.ctx, suite.alloc)
		if err != nil {
			return err
		}
		a.DueAmount = decimal.RequireFromString("900")
		return tx.UpdateAllocationBalance(suite.ctx, a, a.Version)
	})
	suite.True(errors.Is(err, common.ErrConcurrencyConflict))
	suite.NoError(suite.mock.ExpectationsWereMet())
}

func (suite *PaymentStoreTestSuite) TestWithPaymentTx_OtherTenantIsNotFound() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs(suite.alloc, suite.tenant).
		WillReturnError(pgx.ErrNoRows)
	suite.mock.ExpectRollback()

	err := suite.store.WithPaymentTx(suite.ctx, suite.scope, func(tx PaymentTx) error {
		_, err := tx.LockAllocation(suite.ctx, suite.alloc)
		return err
	})
	suite.True(errors.Is(err, common.ErrNotFound))
	suite.NoError(suite.mock.ExpectationsWereMet())
}

func (suite *PaymentStoreTestSuite) TestWithPaymentTx_PlatformLockHasNoTenantFilter() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(regexp.QuoteMeta(`FROM student_fee_allocations WHERE id = $1 FOR UPDATE`)).
		WithArgs(suite.alloc).
		WillReturnRows(suite.allocationRows("10.00", 0))
	suite.mock.ExpectCommit()

	err := suite.store.WithPaymentTx(suite.ctx, tenant.Platform(uuid.New()), func(tx PaymentTx) error {
		a, err := tx.LockAllocation(suite.ctx, suite.alloc)
		if err == nil {
			suite.Equal(suite.tenant, a.TenantID)
		}
		return err
	})
	suite.Require().NoError(err)
	suite.NoError(suite.mock.ExpectationsWereMet())
}

func (suite *PaymentStoreTestSuite) TestWithPaymentTx_ReceiptCounterJumpsPastHighest() {
	suite.mock.ExpectBegin()
	suite.mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(SUBSTRING(receipt_number FROM char_length($2) + 1)::BIGINT), 0) FROM fee_payments WHERE tenant_id = $1 AND LEFT(receipt_number, char_length($2)) = $2`)).
		WithArgs(suite.tenant, "RCP-2024-").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(5)))
	suite.mock.ExpectQuery(regexp.QuoteMeta(`DO UPDATE SET last_number = GREATEST(receipt_sequences.last_number, $3::BIGINT) + 1`)).
		WithArgs(suite.tenant, 2024, int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"last_number"}).AddRow(int64(6)))
	suite.mock.ExpectCommit()

	err := suite.store.WithPaymentTx(suite.ctx, suite.scope, func(tx PaymentTx) error {
		highest, err := tx.MaxReceiptSequence(suite.ctx, suite.tenant, "RCP-2024-")
		if err != nil {
			return err
		}
		seq, err := tx.NextReceiptSequence(suite.ctx, suite.tenant, 2024, highest)
		suite.Equal(int64(6), seq)
		return err
	})
	suite.Require().NoError(err)
	suite.NoError(suite.mock.ExpectationsWereMet())
}
