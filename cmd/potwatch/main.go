package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"potwatch/internal/config"
	"potwatch/internal/database"
	"potwatch/internal/handlers"
	"potwatch/internal/notify"
	"potwatch/internal/provider"
	"potwatch/internal/repositories"
	"potwatch/internal/services"
)

func main() {
	configPath := flag.String("config", "", "Path to config directory (defaults to the working directory)")
	migrateCmd := flag.String("migrate", "", "Migration command (up/down/version)")
	steps := flag.Int("steps", 0, "Number of migration steps (0 means all)")
	doSync := flag.Bool("sync", false, "Refresh accounts, pots, and transactions from the provider first")
	serve := flag.Bool("serve", false, "Run the HTTP server instead of printing a report")
	jsonOut := flag.Bool("json", false, "Print the report as JSON instead of a table")
	auto := flag.Bool("auto", false, "Reconcile without prompting, following auto_deposit/auto_withdraw")
	quiet := flag.Bool("quiet", false, "Suppress the report output")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	if *migrateCmd != "" {
		handleMigration(cfg, logger, *migrateCmd, *steps)
		return
	}

	db, err := database.NewConnection(cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	accountRepo := repositories.NewAccountRepository(db)
	potRepo := repositories.NewPotRepository(db)
	txRepo := repositories.NewTransactionRepository(db)

	notifier := notify.NewNotifier(cfg.Notify, logger)
	interactive := !*auto && !*serve

	client, err := provider.NewClient(cfg.Provider, logger, notifier, interactive)
	if err != nil {
		logger.Fatal("failed to create provider client", zap.Error(err))
	}

	syncService := services.NewSyncService(db, client, accountRepo, potRepo, txRepo, logger)
	reportService := services.NewReportService(cfg, accountRepo, potRepo, txRepo, logger)
	reconcileService := services.NewReconcileService(cfg, client, notifier, syncService, logger)

	if *serve {
		runServer(cfg, logger, reportService, client)
		return
	}

	if *doSync {
		result, err := syncService.Sync()
		if err != nil {
			logger.Fatal("sync failed", zap.Error(err))
		}
		logger.Info("sync complete",
			zap.String("batch_id", result.BatchID),
			zap.Int("accounts", result.Accounts),
			zap.Int("pots", result.Pots),
			zap.Int("transactions", result.Transactions),
			zap.Int("errors", len(result.Errors)))
	}

	report, err := reportService.BuildReport(time.Now())
	if err != nil {
		logger.Fatal("failed to build report", zap.Error(err))
	}

	if !*quiet {
		if *jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				logger.Fatal("failed to encode report", zap.Error(err))
			}
		} else {
			report.RenderTable(os.Stdout)
		}
	}

	if err := reconcileService.Reconcile(report, interactive); err != nil {
		logger.Fatal("reconciliation failed", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfigFrom(path)
	}
	return config.LoadConfig()
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func runServer(cfg *config.Config, logger *zap.Logger, reportService *services.ReportService, client *provider.Client) {
	router := handlers.SetupRouter(reportService, client, logger)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server is running", zap.String("address", cfg.ServerAddress))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server shutdown failed", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}

func handleMigration(cfg *config.Config, logger *zap.Logger, command string, steps int) {
	db, err := database.NewConnection(cfg, logger)
	if err != nil {
		logger.Fatal("failed to ensure database exists", zap.Error(err))
	}
	db.Close()

	m, err := migrate.New(
		fmt.Sprintf("file://%s", cfg.Migration.Dir),
		cfg.GetMigrationDBURL(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "no change") {
			logger.Info("no migration changes to apply")
			return
		}
		logger.Fatal("failed to initialize migrate", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verErr := m.Version()
		if verErr != nil {
			if verErr == migrate.ErrNilVersion {
				logger.Info("no migrations have been applied yet")
				return
			}
			logger.Fatal("failed to get version", zap.Error(verErr))
		}
		fmt.Printf("Current migration version: %d (dirty: %v)\n", version, dirty)
		return
	default:
		logger.Fatal("invalid migration command", zap.String("command", command))
	}

	if err != nil {
		if err == migrate.ErrNoChange {
			logger.Info("no migration changes to apply")
			return
		}
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migration completed successfully")
}
