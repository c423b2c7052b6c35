package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"feeledger/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "feeledger"

type CacheService interface {
	// Pending allocation listings, keyed by scope and filter.
	GetPending(ctx context.Context, scopeKey, filterKey string) ([]*models.StudentFeeAllocation, bool, error)
	SetPending(ctx context.Context, scopeKey, filterKey string, allocations []*models.StudentFeeAllocation, ttl time.Duration) error
	// InvalidateTenant drops the tenant's listings and every platform listing.
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error

	GetOverdueSummary(ctx context.Context, tenantID uuid.UUID) (*models.OverdueSummary, error)
	SetOverdueSummary(ctx context.Context, summary *models.OverdueSummary, ttl time.Duration) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client redis.UniversalClient
}

// NewRedisCacheService accepts either host:port or a redis:// URL.
func NewRedisCacheService(addr, password string, db int) CacheService {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			log.Warnf("invalid redis url %q, falling back to plain address: %v", addr, err)
		} else {
			opts = parsed
			if password != "" {
				opts.Password = password
			}
		}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warnf("redis ping failed on initialization: %v (address: %s)", err, opts.Addr)
	}
	return NewCacheServiceWithClient(client)
}

func NewCacheServiceWithClient(client redis.UniversalClient) CacheService {
	return &redisCacheService{client: client}
}

func pendingKey(scopeKey, filterKey string) string {
	return fmt.Sprintf("%s:pending:%s:%s", keyPrefix, scopeKey, filterKey)
}

func overdueKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("%s:overdue:%s", keyPrefix, tenantID)
}

func (r *redisCacheService) GetPending(ctx context.Context, scopeKey, filterKey string) ([]*models.StudentFeeAllocation, bool, error) {
	data, err := r.client.Get(ctx, pendingKey(scopeKey, filterKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var allocations []*models.StudentFeeAllocation
	if err := json.Unmarshal(data, &allocations); err != nil {
		return nil, false, err
	}
	return allocations, true, nil
}

func (r *redisCacheService) SetPending(ctx context.Context, scopeKey, filterKey string, allocations []*models.StudentFeeAllocation, ttl time.Duration) error {
	if allocations == nil {
		allocations = []*models.StudentFeeAllocation{}
	}
	data, err := json.Marshal(allocations)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, pendingKey(scopeKey, filterKey), data, ttl).Err()
}

func (r *redisCacheService) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	for _, scopeKey := range []string{tenantID.String(), "platform"} {
		if err := r.deleteMatching(ctx, pendingKey(scopeKey, "*")); err != nil {
			return err
		}
	}
	return nil
}

func (r *redisCacheService) deleteMatching(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (r *redisCacheService) GetOverdueSummary(ctx context.Context, tenantID uuid.UUID) (*models.OverdueSummary, error) {
	data, err := r.client.Get(ctx, overdueKey(tenantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var summary models.OverdueSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *redisCacheService) SetOverdueSummary(ctx context.Context, summary *models.OverdueSummary, ttl time.Duration) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, overdueKey(summary.TenantID), data, ttl).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
