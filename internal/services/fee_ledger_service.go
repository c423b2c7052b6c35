package services

import (
	"context"
	"fmt"
	"time"

	"feeledger/internal/caching"
	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// RecordPaymentCommand is one collection against an allocation. PaidAt
// defaults to the current time and CollectedBy to the acting user.
type RecordPaymentCommand struct {
	AllocationID  uuid.UUID            `json:"allocation_id" validate:"required"`
	Amount        decimal.Decimal      `json:"amount" validate:"gt=0"`
	PaymentMethod models.PaymentMethod `json:"payment_method" validate:"required,payment_method"`
	CollectedBy   uuid.UUID            `json:"collected_by"`
	PaidAt        time.Time            `json:"paid_at"`
}

type PaymentResult struct {
	Payment    *models.FeePayment           `json:"payment"`
	Allocation *models.StudentFeeAllocation `json:"allocation"`
}

// AssignStructureCommand allocates a fee structure to a set of students.
type AssignStructureCommand struct {
	FeeStructureID uuid.UUID   `json:"fee_structure_id" validate:"required"`
	StudentIDs     []uuid.UUID `json:"student_ids" validate:"required,min=1,max=1000,dive,required"`
}

type FeeLedgerService interface {
	RecordPayment(ctx context.Context, scope tenant.Context, cmd *RecordPaymentCommand) (*PaymentResult, error)
	ListPendingAllocations(ctx context.Context, scope tenant.Context, filter *models.PendingFilter) ([]*models.StudentFeeAllocation, error)

	AssignStructure(ctx context.Context, scope tenant.Context, cmd *AssignStructureCommand) ([]*models.StudentFeeAllocation, error)
	GetAllocation(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.StudentFeeAllocation, error)
	GetPayment(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeePayment, error)
	GetPaymentByReceipt(ctx context.Context, scope tenant.Context, receiptNumber string) (*models.FeePayment, error)
	ListPaymentsForAllocation(ctx context.Context, scope tenant.Context, allocationID uuid.UUID, limit, offset int) ([]*models.FeePayment, error)
	StudentBalance(ctx context.Context, scope tenant.Context, studentID uuid.UUID, asOf time.Time) (*models.StudentBalance, error)
}

type LedgerOptions struct {
	ReceiptPrefix   string
	PendingCacheTTL time.Duration
	Now             func() time.Time
}

type feeLedgerService struct {
	store          repositories.PaymentStore
	allocationRepo repositories.AllocationRepository
	structureRepo  repositories.FeeStructureRepository
	paymentRepo    repositories.PaymentRepository
	cache          caching.CacheService
	archiver       ReceiptArchiver

	receiptPrefix string
	cacheTTL      time.Duration
	now           func() time.Time
}

// NewFeeLedgerService wires the ledger. cache and archiver may be nil.
func NewFeeLedgerService(
	store repositories.PaymentStore,
	allocationRepo repositories.AllocationRepository,
	structureRepo repositories.FeeStructureRepository,
	paymentRepo repositories.PaymentRepository,
	cache caching.CacheService,
	archiver ReceiptArchiver,
	opts LedgerOptions,
) FeeLedgerService {
	if opts.ReceiptPrefix == "" {
		opts.ReceiptPrefix = DefaultReceiptPrefix
	}
	if opts.PendingCacheTTL <= 0 {
		opts.PendingCacheTTL = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &feeLedgerService{
		store:          store,
		allocationRepo: allocationRepo,
		structureRepo:  structureRepo,
		paymentRepo:    paymentRepo,
		cache:          cache,
		archiver:       archiver,
		receiptPrefix:  opts.ReceiptPrefix,
		cacheTTL:       opts.PendingCacheTTL,
		now:            opts.Now,
	}
}

func (s *feeLedgerService) RecordPayment(ctx context.Context, scope tenant.Context, cmd *RecordPaymentCommand) (*PaymentResult, error) {
	if cmd == nil {
		return nil, common.NewValidationError(common.FieldError{Field: "allocation_id", Message: "allocation_id is required"})
	}
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	if !cmd.Amount.Equal(cmd.Amount.Round(2)) {
		return nil, common.NewValidationError(common.FieldError{Field: "amount", Message: "amount must have at most 2 decimal places"})
	}

	now := s.now().UTC()
	paidAt := cmd.PaidAt.UTC()
	if cmd.PaidAt.IsZero() {
		paidAt = now
	}
	collectedBy := cmd.CollectedBy
	if collectedBy == uuid.Nil {
		collectedBy = scope.UserID
	}

	var result *PaymentResult
	err := s.store.WithPaymentTx(ctx, scope, func(tx repositories.PaymentTx) error {
		allocation, err := tx.LockAllocation(ctx, cmd.AllocationID)
		if err != nil {
			return err
		}
		structure, err := tx.GetStructure(ctx, allocation.TenantID, allocation.FeeStructureID)
		if err != nil {
			return err
		}
		if cmd.Amount.GreaterThan(allocation.DueAmount) {
			return &common.OverpaymentError{Amount: cmd.Amount, Due: allocation.DueAmount}
		}

		lateFee := LateFee(structure, allocation.DueDate, paidAt)
		receiptNumber, err := s.nextReceiptNumber(ctx, tx, allocation.TenantID, paidAt.Year())
		if err != nil {
			return err
		}

		payment := &models.FeePayment{
			ID:            uuid.New(),
			TenantID:      allocation.TenantID,
			StudentID:     allocation.StudentID,
			AllocationID:  allocation.ID,
			ReceiptNumber: receiptNumber,
			Amount:        cmd.Amount,
			LateFee:       lateFee,
			TotalAmount:   cmd.Amount.Add(lateFee),
			PaymentMethod: cmd.PaymentMethod,
			Status:        models.PaymentCompleted,
			CollectedBy:   collectedBy,
			PaidAt:        paidAt,
			CreatedAt:     now,
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}

		expectedVersion := allocation.Version
		allocation.DueAmount = decimal.Max(allocation.DueAmount.Sub(cmd.Amount), decimal.Zero)
		allocation.UpdatedAt = now
		if err := tx.UpdateAllocationBalance(ctx, allocation, expectedVersion); err != nil {
			return err
		}

		entry := &models.AuditLog{
			ID:        uuid.New(),
			TenantID:  allocation.TenantID,
			TableName: "fee_payments",
			RecordID:  payment.ID.String(),
			Action:    models.ActionInsert,
			NewValues: models.JSONB{
				"receipt_number": payment.ReceiptNumber,
				"allocation_id":  allocation.ID.String(),
				"amount":         payment.Amount.StringFixed(2),
				"late_fee":       payment.LateFee.StringFixed(2),
				"due_amount":     allocation.DueAmount.StringFixed(2),
			},
			CreatedAt: now,
		}
		if collectedBy != uuid.Nil {
			entry.ChangedBy = &collectedBy
		}
		if err := tx.InsertAuditLog(ctx, entry); err != nil {
			return err
		}

		result = &PaymentResult{Payment: payment, Allocation: allocation}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("recorded payment %s for allocation %s (amount %s, late fee %s)",
		result.Payment.ReceiptNumber, result.Allocation.ID, result.Payment.Amount.StringFixed(2), result.Payment.LateFee.StringFixed(2))
	s.invalidatePending(ctx, result.Allocation.TenantID)
	if s.archiver != nil {
		if _, err := s.archiver.Archive(ctx, result.Payment); err != nil {
			log.Warnf("failed to archive receipt %s: %v", result.Payment.ReceiptNumber, err)
		}
	}
	return result, nil
}

// nextReceiptNumber draws from the tenant's yearly counter. A number already
// taken by an imported receipt moves the counter past the highest number in
// the series in one step.
func (s *feeLedgerService) nextReceiptNumber(ctx context.Context, tx repositories.PaymentTx, tenantID uuid.UUID, year int) (string, error) {
	var (
		candidate string
		floor     int64
	)
	series := ReceiptSeries(s.receiptPrefix, year)
	for attempt := 1; attempt <= maxReceiptAttempts; attempt++ {
		seq, err := tx.NextReceiptSequence(ctx, tenantID, year, floor)
		if err != nil {
			return "", err
		}
		candidate = FormatReceiptNumber(s.receiptPrefix, year, seq)
		exists, err := tx.ReceiptExists(ctx, tenantID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		if floor, err = tx.MaxReceiptSequence(ctx, tenantID, series); err != nil {
			return "", err
		}
		log.Warnf("receipt number %s already in use for tenant %s, continuing after %s%06d", candidate, tenantID, series, floor)
	}
	return "", &common.ReceiptGenerationError{Attempts: maxReceiptAttempts, Last: candidate}
}

func pendingFilterKey(f *models.PendingFilter) string {
	key := fmt.Sprintf("l%d:o%d", f.Limit, f.Offset)
	if f.AsOf != nil {
		key += ":asof" + f.AsOf.UTC().Format(time.RFC3339)
	}
	if f.StudentID != nil {
		key += ":s" + f.StudentID.String()
	}
	if f.AcademicYearID != nil {
		key += ":y" + f.AcademicYearID.String()
	}
	if f.After != nil {
		key += ":after" + f.After.DueDate.UTC().Format(time.RFC3339) + "/" + f.After.ID.String()
	}
	return key
}

func (s *feeLedgerService) ListPendingAllocations(ctx context.Context, scope tenant.Context, filter *models.PendingFilter) ([]*models.StudentFeeAllocation, error) {
	f := models.PendingFilter{}
	if filter != nil {
		f = *filter
	}
	f.Limit, f.Offset = common.ValidatePaginationParams(f.Limit, f.Offset)

	key := pendingFilterKey(&f)
	if s.cache != nil {
		cached, ok, err := s.cache.GetPending(ctx, scope.CacheKey(), key)
		if err != nil {
			log.Warnf("pending cache read failed: %v", err)
		} else if ok {
			return cached, nil
		}
	}

	allocations, err := s.allocationRepo.ListPending(ctx, scope, &f)
	if err != nil {
		return nil, err
	}
	if allocations == nil {
		allocations = []*models.StudentFeeAllocation{}
	}
	if s.cache != nil {
		if err := s.cache.SetPending(ctx, scope.CacheKey(), key, allocations, s.cacheTTL); err != nil {
			log.Warnf("pending cache write failed: %v", err)
		}
	}
	return allocations, nil
}

func (s *feeLedgerService) invalidatePending(ctx context.Context, tenantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTenant(ctx, tenantID); err != nil {
		log.Warnf("failed to invalidate pending cache for tenant %s: %v", tenantID, err)
	}
}

// AssignStructure creates one allocation per distinct student and returns
// only the allocations it created. Students already allocated to the
// structure are left untouched.
func (s *feeLedgerService) AssignStructure(ctx context.Context, scope tenant.Context, cmd *AssignStructureCommand) ([]*models.StudentFeeAllocation, error) {
	if cmd == nil {
		return nil, common.NewValidationError(common.FieldError{Field: "fee_structure_id", Message: "fee_structure_id is required"})
	}
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	structure, err := s.structureRepo.GetByID(ctx, scope, cmd.FeeStructureID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	seen := make(map[uuid.UUID]bool, len(cmd.StudentIDs))
	allocations := make([]*models.StudentFeeAllocation, 0, len(cmd.StudentIDs))
	for _, studentID := range cmd.StudentIDs {
		if seen[studentID] {
			continue
		}
		seen[studentID] = true
		allocations = append(allocations, &models.StudentFeeAllocation{
			ID:             uuid.New(),
			TenantID:       structure.TenantID,
			StudentID:      studentID,
			FeeStructureID: structure.ID,
			AcademicYearID: structure.AcademicYearID,
			DueAmount:      structure.Amount,
			DueDate:        structure.DueDate,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	created, err := s.allocationRepo.CreateMany(ctx, allocations)
	if err != nil {
		return nil, errors.Wrap(err, "assign fee structure")
	}
	if len(created) > 0 {
		s.invalidatePending(ctx, structure.TenantID)
	}
	return created, nil
}

func (s *feeLedgerService) GetAllocation(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.StudentFeeAllocation, error) {
	return s.allocationRepo.GetByID(ctx, scope, id)
}

func (s *feeLedgerService) GetPayment(ctx context.Context, scope tenant.Context, id uuid.UUID) (*models.FeePayment, error) {
	return s.paymentRepo.GetByID(ctx, scope, id)
}

func (s *feeLedgerService) GetPaymentByReceipt(ctx context.Context, scope tenant.Context, receiptNumber string) (*models.FeePayment, error) {
	if receiptNumber == "" {
		return nil, common.NewValidationError(common.FieldError{Field: "receipt_number", Message: "receipt_number is required"})
	}
	return s.paymentRepo.GetByReceipt(ctx, scope, receiptNumber)
}

func (s *feeLedgerService) ListPaymentsForAllocation(ctx context.Context, scope tenant.Context, allocationID uuid.UUID, limit, offset int) ([]*models.FeePayment, error) {
	if _, err := s.allocationRepo.GetByID(ctx, scope, allocationID); err != nil {
		return nil, err
	}
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.paymentRepo.List(ctx, scope, &models.PaymentFilter{AllocationID: &allocationID, Limit: limit, Offset: offset})
}

// StudentBalance totals a student's allocations and completed payments.
func (s *feeLedgerService) StudentBalance(ctx context.Context, scope tenant.Context, studentID uuid.UUID, asOf time.Time) (*models.StudentBalance, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	allocations, err := s.allocationRepo.ListByStudent(ctx, scope, studentID)
	if err != nil {
		return nil, err
	}

	balance := &models.StudentBalance{
		StudentID:    studentID,
		TotalDue:     decimal.Zero,
		TotalPaid:    decimal.Zero,
		TotalLateFee: decimal.Zero,
	}
	for _, a := range allocations {
		balance.TotalDue = balance.TotalDue.Add(a.DueAmount)
		if a.Status() == models.AllocationPending {
			balance.Pending++
		}
		if a.IsOverdue(asOf) {
			balance.Overdue++
		}
	}

	const pageSize = 1000
	for offset := 0; ; offset += pageSize {
		payments, err := s.paymentRepo.List(ctx, scope, &models.PaymentFilter{StudentID: &studentID, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			if p.Status != models.PaymentCompleted {
				continue
			}
			balance.TotalPaid = balance.TotalPaid.Add(p.Amount)
			balance.TotalLateFee = balance.TotalLateFee.Add(p.LateFee)
		}
		if len(payments) < pageSize {
			break
		}
	}
	return balance, nil
}
