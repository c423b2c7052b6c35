package background

import (
	"context"
	"sync"
	"time"

	"feeledger/internal/caching"
	"feeledger/internal/models"
	"feeledger/internal/repositories"
	"feeledger/internal/tenant"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
)

const (
	overdueJobName = "overdue-summary-refresh"
	tenantPageSize = 500
	scanPageSize   = 1000
	maxConcurrent  = 5
)

// JobScheduler runs read-only maintenance jobs. It never writes ledger rows.
type JobScheduler struct {
	scheduler      gocron.Scheduler
	cacheSvc       caching.CacheService
	allocationRepo repositories.AllocationRepository
	tenantRepo     repositories.TenantRepository
	interval       time.Duration
	now            func() time.Time

	jobs map[string]gocron.Job
	mu   sync.RWMutex
}

func NewJobScheduler(cacheSvc caching.CacheService, allocationRepo repositories.AllocationRepository,
	tenantRepo repositories.TenantRepository, interval time.Duration) (*JobScheduler, error) {

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler:      scheduler,
		cacheSvc:       cacheSvc,
		allocationRepo: allocationRepo,
		tenantRepo:     tenantRepo,
		interval:       interval,
		now:            time.Now,
		jobs:           make(map[string]gocron.Job),
	}
	if err := js.AddJob(overdueJobName, interval, js.RefreshOverdueSummaries, context.Background()); err != nil {
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	log.Infof("Starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	log.Infof("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// RefreshOverdueSummaries recomputes the overdue snapshot of every active
// tenant and stores it in the cache.
func (js *JobScheduler) RefreshOverdueSummaries(ctx context.Context) error {
	var tenants []*models.Tenant
	for offset := 0; ; offset += tenantPageSize {
		page, err := js.tenantRepo.ListActive(ctx, tenantPageSize, offset)
		if err != nil {
			log.Errorf("Failed to list tenants for overdue refresh: %v", err)
			return err
		}
		tenants = append(tenants, page...)
		if len(page) < tenantPageSize {
			break
		}
	}

	semaphore := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for _, t := range tenants {
		wg.Add(1)
		go func(tenantID uuid.UUID) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			summary, err := js.OverdueSummary(ctx, tenantID)
			if err != nil {
				log.Errorf("Failed to compute overdue summary for tenant %s: %v", tenantID, err)
				return
			}
			if js.cacheSvc == nil {
				return
			}
			if err := js.cacheSvc.SetOverdueSummary(ctx, summary, 2*js.interval); err != nil {
				log.Warnf("Failed to cache overdue summary for tenant %s: %v", tenantID, err)
			}
		}(t.ID)
	}
	wg.Wait()

	log.Infof("Refreshed overdue summaries for %d tenants", len(tenants))
	return nil
}

// OverdueSummary counts allocations of one tenant still owing after their due date.
func (js *JobScheduler) OverdueSummary(ctx context.Context, tenantID uuid.UUID) (*models.OverdueSummary, error) {
	now := js.now().UTC()
	scope := tenant.For(tenantID, uuid.Nil)
	summary := &models.OverdueSummary{TenantID: tenantID, OverdueAmount: decimal.Zero, RefreshedAt: now}

	filter := &models.PendingFilter{AsOf: &now, Limit: scanPageSize}
	for {
		page, err := js.allocationRepo.ListPending(ctx, scope, filter)
		if err != nil {
			return nil, err
		}
		for _, a := range page {
			summary.OverdueCount++
			summary.OverdueAmount = summary.OverdueAmount.Add(a.DueAmount)
		}
		if len(page) < scanPageSize {
			break
		}
		// Overdue rows always carry a due date.
		last := page[len(page)-1]
		filter.After = &models.AllocationCursor{DueDate: *last.DueDate, ID: last.ID}
	}
	return summary, nil
}

// AddJob adds a singleton interval job to the scheduler.
func (js *JobScheduler) AddJob(name string, interval time.Duration, taskFn interface{}, params ...interface{}) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(taskFn, params...),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	js.jobs[name] = job
	log.Infof("Added job: %s (every %s)", name, interval)
	return nil
}

// GetJobStatus returns the names of scheduled jobs and their next run.
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	js.mu.RLock()
	defer js.mu.RUnlock()

	jobs := make(map[string]string, len(js.jobs))
	for name, job := range js.jobs {
		next, err := job.NextRun()
		if err != nil || next.IsZero() {
			jobs[name] = ""
			continue
		}
		jobs[name] = next.UTC().Format(time.RFC3339)
	}
	return map[string]interface{}{
		"total_jobs": len(js.jobs),
		"jobs":       jobs,
	}
}
