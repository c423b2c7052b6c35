package services

import (
	"context"
	"time"

	"feeledger/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetPending(ctx context.Context, scopeKey, filterKey string) ([]*models.StudentFeeAllocation, bool, error) {
	args := m.Called(ctx, scopeKey, filterKey)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]*models.StudentFeeAllocation), args.Bool(1), args.Error(2)
}

func (m *MockCacheService) SetPending(ctx context.Context, scopeKey, filterKey string, allocations []*models.StudentFeeAllocation, ttl time.Duration) error {
	args := m.Called(ctx, scopeKey, filterKey, allocations, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockCacheService) GetOverdueSummary(ctx context.Context, tenantID uuid.UUID) (*models.OverdueSummary, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OverdueSummary), args.Error(1)
}

func (m *MockCacheService) SetOverdueSummary(ctx context.Context, summary *models.OverdueSummary, ttl time.Duration) error {
	args := m.Called(ctx, summary, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockReceiptArchiver struct {
	mock.Mock
}

func (m *MockReceiptArchiver) Archive(ctx context.Context, payment *models.FeePayment) (string, error) {
	args := m.Called(ctx, payment)
	return args.String(0), args.Error(1)
}

func (m *MockReceiptArchiver) PresignedURL(ctx context.Context, payment *models.FeePayment) (string, error) {
	args := m.Called(ctx, payment)
	return args.String(0), args.Error(1)
}

type MockMinioService struct {
	mock.Mock
}

func (m *MockMinioService) PutObject(ctx context.Context, upload ObjectUpload) error {
	args := m.Called(ctx, upload)
	return args.Error(0)
}

func (m *MockMinioService) PresignedDownloadURL(ctx context.Context, bucket, key, filename string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, filename, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockMinioService) EnsureBucketExists(ctx context.Context, bucket string) error {
	args := m.Called(ctx, bucket)
	return args.Error(0)
}
