package caching

import (
	"context"
	"os"
	"testing"
	"time"

	"feeledger/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeys(t *testing.T) {
	id := uuid.MustParse("0b3c6f0e-5d2a-4c1e-9d8e-7a6b5c4d3e2f")
	assert.Equal(t, "feeledger:pending:platform:l50:o0", pendingKey("platform", "l50:o0"))
	assert.Equal(t, "feeledger:overdue:0b3c6f0e-5d2a-4c1e-9d8e-7a6b5c4d3e2f", overdueKey(id))
}

// Requires a disposable Redis; set REDIS_TEST_ADDR to run.
func newTestCache(t *testing.T) CacheService {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheServiceWithClient(client)
}

func TestRedisCache_PendingRoundTripAndInvalidate(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	allocations := []*models.StudentFeeAllocation{{ID: uuid.New(), TenantID: tenantA, DueAmount: decimal.RequireFromString("400.50"), DueDate: &due}}

	require.NoError(t, cache.SetPending(ctx, tenantA.String(), "l50:o0", allocations, time.Minute))
	require.NoError(t, cache.SetPending(ctx, tenantB.String(), "l50:o0", allocations, time.Minute))
	require.NoError(t, cache.SetPending(ctx, "platform", "l50:o0", allocations, time.Minute))

	got, ok, err := cache.GetPending(ctx, tenantA.String(), "l50:o0")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.True(t, got[0].DueAmount.Equal(decimal.RequireFromString("400.50")))

	require.NoError(t, cache.InvalidateTenant(ctx, tenantA))

	_, ok, err = cache.GetPending(ctx, tenantA.String(), "l50:o0")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = cache.GetPending(ctx, "platform", "l50:o0")
	assert.False(t, ok, "platform listings include every tenant")
	_, ok, _ = cache.GetPending(ctx, tenantB.String(), "l50:o0")
	assert.True(t, ok)
}

func TestRedisCache_OverdueSummary(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	tenantID := uuid.New()

	summary, err := cache.GetOverdueSummary(ctx, tenantID)
	require.NoError(t, err)
	assert.Nil(t, summary)

	require.NoError(t, cache.SetOverdueSummary(ctx, &models.OverdueSummary{
		TenantID:      tenantID,
		OverdueCount:  3,
		OverdueAmount: decimal.RequireFromString("1250"),
		RefreshedAt:   time.Now().UTC(),
	}, time.Minute))

	summary, err = cache.GetOverdueSummary(ctx, tenantID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.OverdueCount)
	assert.NoError(t, cache.Ping(ctx))
}
