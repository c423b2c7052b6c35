package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"feeledger/internal/caching"
	"feeledger/internal/config"
	"feeledger/internal/handlers"
	"feeledger/internal/jobs/background"
	"feeledger/internal/middleware"
	"feeledger/internal/repositories"
	"feeledger/internal/services"
	"feeledger/pkg/database"
)

const version = "1.0.0"

func main() {
	log.SetLevel(log.INFO)

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
	}

	// Repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	categoryRepo := repositories.NewFeeCategoryRepo(pool)
	structureRepo := repositories.NewFeeStructureRepo(pool)
	allocationRepo := repositories.NewAllocationRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)
	paymentStore := repositories.NewPaymentStore(pool)
	auditLogsRepo := repositories.NewAuditLogsRepo(pool)

	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	var (
		minioSvc services.MinioService
		archiver services.ReceiptArchiver
	)
	if cfg.MinioEnabled() {
		minioSvc, err = services.NewMinioService(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("Failed to initialize MinIO service: %v", err)
		}
		if err := minioSvc.EnsureBucketExists(ctx, cfg.MinioBucket); err != nil {
			log.Warnf("Could not ensure bucket %s exists: %v", cfg.MinioBucket, err)
		}
		archiver = services.NewReceiptArchiver(minioSvc, cfg.MinioBucket)
	} else {
		log.Warn("MinIO not configured, receipt PDFs will not be archived")
	}

	// Services
	ledgerSvc := services.NewFeeLedgerService(paymentStore, allocationRepo, structureRepo, paymentRepo, cacheSvc, archiver, services.LedgerOptions{
		ReceiptPrefix:   cfg.ReceiptPrefix,
		PendingCacheTTL: cfg.PendingCacheTTL,
	})
	categorySvc := services.NewFeeCategoryService(categoryRepo)
	structureSvc := services.NewFeeStructureService(structureRepo, categoryRepo, allocationRepo)
	reportSvc := services.NewReportService(paymentRepo)
	tenantSvc := services.NewTenantService(tenantRepo)
	auditLogsSvc := services.NewAuditLogsService(auditLogsRepo)

	scheduler, err := background.NewJobScheduler(cacheSvc, allocationRepo, tenantRepo, cfg.OverdueScanInterval)
	if err != nil {
		log.Fatalf("Failed to create job scheduler: %v", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Errorf("Failed to stop scheduler: %v", err)
		}
	}()

	var jwks *keyfunc.JWKS
	if cfg.JWKSURL != "" {
		jwks, err = middleware.NewJWKS(cfg.JWKSURL)
		if err != nil {
			log.Fatalf("Failed to load JWKS from %s: %v", cfg.JWKSURL, err)
		}
		defer jwks.EndBackground()
	}

	// Handlers
	healthHandlers := handlers.NewHealthHandlers(version, scheduler)
	healthHandlers.AddCheck("database", true, pool.Ping)
	healthHandlers.AddCheck("redis", false, cacheSvc.Ping)
	if minioSvc != nil {
		healthHandlers.AddCheck("storage", false, func(ctx context.Context) error {
			return minioSvc.EnsureBucketExists(ctx, cfg.MinioBucket)
		})
	}
	ledgerHandlers := handlers.NewFeeLedgerHandlers(ledgerSvc, reportSvc, archiver, cacheSvc)
	setupHandlers := handlers.NewFeeSetupHandlers(categorySvc, structureSvc)
	tenantHandlers := handlers.NewTenantHandlers(tenantSvc)
	auditLogsHandlers := handlers.NewAuditLogsHandlers(auditLogsSvc)
	jobHandlers := handlers.NewJobHandlers(scheduler)

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.BodyLimit("10M"))

	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/health/detailed", healthHandlers.DetailedHealthCheck)

	v1 := e.Group("/v1")
	v1.Use(echojwt.WithConfig(middleware.JWTConfig(cfg.JWTSecret, jwks)))
	v1.Use(middleware.TenantScope())
	handlers.RegisterRoutes(v1, ledgerHandlers, setupHandlers)
	handlers.RegisterAdminRoutes(v1, tenantHandlers, auditLogsHandlers, jobHandlers)

	go func() {
		log.Infof("Fee ledger server v%s starting on port %s", version, cfg.Port)
		if err := e.Start(fmt.Sprintf(":%s", cfg.Port)); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Graceful shutdown failed: %v", err)
	}
}
