package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"feeledger/internal/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
)

const receiptURLExpiry = 15 * time.Minute

// ReceiptArchiver stores a printable copy of every recorded payment.
type ReceiptArchiver interface {
	Archive(ctx context.Context, payment *models.FeePayment) (string, error)
	PresignedURL(ctx context.Context, payment *models.FeePayment) (string, error)
}

type receiptArchiver struct {
	storage MinioService
	bucket  string
}

func NewReceiptArchiver(storage MinioService, bucket string) ReceiptArchiver {
	return &receiptArchiver{storage: storage, bucket: bucket}
}

// ReceiptObjectKey is the object path of a receipt PDF.
func ReceiptObjectKey(payment *models.FeePayment) string {
	return fmt.Sprintf("receipts/%s/%s.pdf", payment.TenantID, payment.ReceiptNumber)
}

func (a *receiptArchiver) Archive(ctx context.Context, payment *models.FeePayment) (string, error) {
	data, err := RenderReceiptPDF(payment)
	if err != nil {
		return "", err
	}
	key := ReceiptObjectKey(payment)
	upload := ObjectUpload{
		Bucket:      a.bucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
		ContentType: "application/pdf",
		Metadata: map[string]string{
			"tenant-id":  payment.TenantID.String(),
			"payment-id": payment.ID.String(),
			"receipt":    payment.ReceiptNumber,
		},
	}
	if err := a.storage.PutObject(ctx, upload); err != nil {
		return "", errors.Wrapf(err, "upload receipt %s", payment.ReceiptNumber)
	}
	return key, nil
}

func (a *receiptArchiver) PresignedURL(ctx context.Context, payment *models.FeePayment) (string, error) {
	return a.storage.PresignedDownloadURL(ctx, a.bucket, ReceiptObjectKey(payment), payment.ReceiptNumber+".pdf", receiptURLExpiry)
}

// RenderReceiptPDF lays out a single A5 receipt page.
func RenderReceiptPDF(payment *models.FeePayment) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)
	pdf.Cell(0, 10, "FEE RECEIPT")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 10)
	rows := [][2]string{
		{"Receipt Number", payment.ReceiptNumber},
		{"Date", payment.PaidAt.Format("02-Jan-2006 15:04")},
		{"Student", payment.StudentID.String()},
		{"Allocation", payment.AllocationID.String()},
		{"Payment Method", string(payment.PaymentMethod)},
	}
	for _, row := range rows {
		pdf.CellFormat(40, 7, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(84, 8, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 8, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(84, 8, "Fee payment", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, payment.Amount.StringFixed(2), "1", 1, "R", false, 0, "")
	if payment.LateFee.Sign() > 0 {
		pdf.CellFormat(84, 8, "Late fee", "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 8, payment.LateFee.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(84, 8, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, payment.TotalAmount.StringFixed(2), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "render receipt pdf")
	}
	return buf.Bytes(), nil
}
