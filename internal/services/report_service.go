package services

import (
	"context"
	"io"
	"strings"
	"time"

	"feeledger/internal/common"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const collectionsSheet = "Collections"

var collectionsHeader = []interface{}{
	"Receipt", "Paid At", "Student", "Allocation", "Method", "Amount", "Late Fee", "Total", "Collected By",
}

type ReportService interface {
	// ExportCollections builds an xlsx workbook of completed payments with
	// paid_at in [from, to).
	ExportCollections(ctx context.Context, scope tenant.Context, from, to time.Time) ([]byte, error)
	// ParseStudentRoster reads student ids from the first column of the first
	// sheet, skipping the header row and blank cells.
	ParseStudentRoster(r io.Reader) ([]uuid.UUID, error)
}

type reportService struct {
	paymentRepo repositories.PaymentRepository
}

func NewReportService(paymentRepo repositories.PaymentRepository) ReportService {
	return &reportService{paymentRepo: paymentRepo}
}

func (s *reportService) ExportCollections(ctx context.Context, scope tenant.Context, from, to time.Time) ([]byte, error) {
	if !to.After(from) {
		return nil, common.NewValidationError(common.FieldError{Field: "to", Message: "to must be after from"})
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnf("error closing workbook: %v", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", collectionsSheet); err != nil {
		return nil, errors.Wrap(err, "rename sheet")
	}
	if err := f.SetSheetRow(collectionsSheet, "A1", &collectionsHeader); err != nil {
		return nil, errors.Wrap(err, "write header")
	}

	row := 2
	amount, lateFee, total := decimal.Zero, decimal.Zero, decimal.Zero
	const pageSize = 1000
	for offset := 0; ; offset += pageSize {
		payments, err := s.paymentRepo.List(ctx, scope, &models.PaymentFilter{From: &from, To: &to, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, p := range payments {
			if p.Status != models.PaymentCompleted {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return nil, err
			}
			values := []interface{}{
				p.ReceiptNumber,
				p.PaidAt.UTC().Format(time.RFC3339),
				p.StudentID.String(),
				p.AllocationID.String(),
				string(p.PaymentMethod),
				p.Amount.InexactFloat64(),
				p.LateFee.InexactFloat64(),
				p.TotalAmount.InexactFloat64(),
				p.CollectedBy.String(),
			}
			if err := f.SetSheetRow(collectionsSheet, cell, &values); err != nil {
				return nil, errors.Wrapf(err, "write row %d", row)
			}
			amount = amount.Add(p.Amount)
			lateFee = lateFee.Add(p.LateFee)
			total = total.Add(p.TotalAmount)
			row++
		}
		if len(payments) < pageSize {
			break
		}
	}

	totals := []interface{}{"TOTAL", "", "", "", "", amount.InexactFloat64(), lateFee.InexactFloat64(), total.InexactFloat64(), ""}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(collectionsSheet, cell, &totals); err != nil {
		return nil, errors.Wrap(err, "write totals")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "write workbook")
	}
	log.Infof("exported %d payments for %s", row-2, scope.CacheKey())
	return buf.Bytes(), nil
}

func (s *reportService) ParseStudentRoster(r io.Reader) ([]uuid.UUID, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, common.NewValidationError(common.FieldError{Field: "file", Message: "file is not a valid xlsx workbook"})
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnf("error closing roster workbook: %v", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, common.NewValidationError(common.FieldError{Field: "file", Message: "workbook has no sheets"})
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, errors.Wrapf(err, "read rows from sheet %s", sheetName)
	}

	var ids []uuid.UUID
	var fieldErrs []common.FieldError
	for i, row := range rows {
		if i == 0 || len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		id, err := uuid.Parse(strings.TrimSpace(row[0]))
		if err != nil {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			fieldErrs = append(fieldErrs, common.FieldError{Field: cell, Message: "not a valid student id"})
			continue
		}
		ids = append(ids, id)
	}
	if len(fieldErrs) > 0 {
		return nil, common.NewValidationError(fieldErrs...)
	}
	return ids, nil
}
