package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthCheckFunc reports whether one dependency is reachable.
type HealthCheckFunc func(ctx context.Context) error

// JobStatusProvider exposes scheduler state for the detailed health view.
type JobStatusProvider interface {
	GetJobStatus() map[string]interface{}
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	version   string
	startedAt time.Time
	checks    map[string]HealthCheckFunc
	critical  map[string]bool
	jobs      JobStatusProvider
}

func NewHealthHandlers(version string, jobs JobStatusProvider) *HealthHandlers {
	return &HealthHandlers{
		version:   version,
		startedAt: time.Now(),
		checks:    make(map[string]HealthCheckFunc),
		critical:  make(map[string]bool),
		jobs:      jobs,
	}
}

// AddCheck registers a dependency. A failing critical check makes the
// service not ready.
func (h *HealthHandlers) AddCheck(name string, critical bool, check HealthCheckFunc) {
	h.checks[name] = check
	h.critical[name] = critical
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

func (h *HealthHandlers) runChecks(ctx context.Context) (map[string]error, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	results := make(map[string]error, len(h.checks))
	ready := true
	for name, check := range h.checks {
		err := check(ctx)
		results[name] = err
		if err != nil && h.critical[name] {
			ready = false
		}
	}
	return results, ready
}

// HealthCheck reports every dependency; degraded dependencies still return 200.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	results, _ := h.runChecks(c.Request().Context())
	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string, len(results)),
		Version:   h.version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	}
	for name, err := range results {
		if err != nil {
			health.Services[name] = "unhealthy"
			health.Status = "degraded"
			continue
		}
		health.Services[name] = "healthy"
	}
	return c.JSON(http.StatusOK, health)
}

// ReadinessCheck determines if the application is ready to serve traffic
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	if _, ready := h.runChecks(c.Request().Context()); !ready {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "Critical services unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// DetailedHealthCheck adds error messages, runtime and scheduler state.
func (h *HealthHandlers) DetailedHealthCheck(c echo.Context) error {
	results, ready := h.runChecks(c.Request().Context())
	checks := make(map[string]interface{}, len(results))
	overall := "healthy"
	for name, err := range results {
		check := map[string]interface{}{"status": "healthy", "critical": h.critical[name]}
		if err != nil {
			check["status"] = "unhealthy"
			check["message"] = err.Error()
			overall = "degraded"
		}
		checks[name] = check
	}
	if !ready {
		overall = "unhealthy"
	}

	detailed := map[string]interface{}{
		"overall_status": overall,
		"checks":         checks,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"version":        h.version,
		"goroutines":     runtime.NumGoroutine(),
	}
	if h.jobs != nil {
		detailed["jobs"] = h.jobs.GetJobStatus()
	}
	return c.JSON(http.StatusOK, detailed)
}
