package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tripoptimizer/invoice-engine/internal/application/service"
	"github.com/tripoptimizer/invoice-engine/internal/config"
	"github.com/tripoptimizer/invoice-engine/internal/infrastructure/persistence/repository"
	"github.com/tripoptimizer/invoice-engine/internal/infrastructure/persistence/sqlite"
	httpiface "github.com/tripoptimizer/invoice-engine/internal/interfaces/http"
	"github.com/tripoptimizer/invoice-engine/migrations"
	"github.com/tripoptimizer/invoice-engine/pkg/database"
	"github.com/tripoptimizer/invoice-engine/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Invoice Processing Engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(migrations.FS); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	txManager := sqlite.NewDB(db.DB, logger)
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)
	analyticsRepo := repository.NewAnalyticsRepository(db.DB, logger)
	queueRepo := repository.NewQueueRepository(db.DB, logger)

	// Initialize services
	invoiceService := service.NewInvoiceService(invoiceRepo, auditRepo, txManager, logger)
	workflowEngine := service.NewWorkflowEngine(invoiceRepo, auditRepo, txManager, logger)
	bulkService := service.NewBulkService(invoiceRepo, txManager, logger)
	queueService := service.NewQueueService(queueRepo, logger)
	analyticsService := service.NewAnalyticsService(analyticsRepo, logger)
	exportService := service.NewExportService(invoiceRepo, logger)

	// Initialize HTTP layer
	handlers := httpiface.NewHandlers(
		invoiceService,
		workflowEngine,
		bulkService,
		queueService,
		analyticsService,
		exportService,
		logger,
	)
	router := httpiface.NewRouter(handlers, logger, cfg.Server.AllowedOrigin)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
