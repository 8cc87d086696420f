package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/grubermed/totenschein/internal"
	"github.com/grubermed/totenschein/internal/address"
	"github.com/grubermed/totenschein/internal/distance"
	"github.com/grubermed/totenschein/internal/document"
	"github.com/grubermed/totenschein/internal/email"
	"github.com/grubermed/totenschein/internal/fees"
	"github.com/grubermed/totenschein/internal/handler"
	"github.com/grubermed/totenschein/internal/ledger"
	"github.com/grubermed/totenschein/internal/middleware"
	"github.com/grubermed/totenschein/internal/repository"
	"github.com/grubermed/totenschein/internal/router"
	"github.com/grubermed/totenschein/internal/service"
	"github.com/grubermed/totenschein/internal/storage"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize repository
	repo := repository.New(pool)

	// Document storage and renderer
	documents, err := storage.NewLocalStorage(cfg.Storage.DocumentPath)
	if err != nil {
		return fmt.Errorf("failed to initialize document storage: %w", err)
	}
	mailArchive, err := storage.NewLocalStorage(cfg.Storage.MailPath)
	if err != nil {
		return fmt.Errorf("failed to initialize mail archive: %w", err)
	}
	renderer, err := document.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to initialize document renderer: %w", err)
	}

	// Email dispatch
	sender := email.NewSMTPSender(logger, &email.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     int(cfg.Email.Port),
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		FromName: cfg.Email.FromName,
	})
	mailer, err := email.NewService(sender, mailArchive, logger,
		cfg.Email.From, cfg.Email.FromName, cfg.Practice.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	// Routing and address verification
	dist := distance.NewORSProvider(logger,
		cfg.Routing.NominatimURL, cfg.Routing.ORSBaseURL, cfg.Routing.ORSAPIKey, cfg.Routing.StartAddress)
	verifier := address.NewNominatimVerifier(logger, cfg.Routing.NominatimURL)

	// External ledger
	var ledgerProvider ledger.Provider = &ledger.Noop{}
	if cfg.Ledger.Enabled {
		ledgerProvider = ledger.NewYNABProvider(logger, ledger.YNABConfig{
			APIToken:          cfg.Ledger.APIToken,
			BudgetID:          cfg.Ledger.BudgetID,
			AccountID:         cfg.Ledger.AccountID,
			TaxCategoryID:     cfg.Ledger.TaxCategoryID,
			PensionCategoryID: cfg.Ledger.PensionCategoryID,
			ChamberCategoryID: cfg.Ledger.ChamberCategoryID,
			ReadyCategoryID:   cfg.Ledger.ReadyCategoryID,
		})
		logger.Info("Ledger posting enabled", "budget_id", cfg.Ledger.BudgetID)
	} else {
		logger.Info("Ledger posting disabled")
	}

	letterhead := document.Letterhead{
		Name:     cfg.Practice.Name,
		Street:   cfg.Practice.Street,
		City:     cfg.Practice.City,
		Phone:    cfg.Practice.Phone,
		Email:    cfg.Practice.Email,
		IBAN:     cfg.Practice.IBAN,
		BIC:      cfg.Practice.BIC,
		BankName: cfg.Practice.BankName,
		TaxID:    cfg.Practice.TaxID,
	}

	// Initialize services
	invoiceService := service.NewInvoiceService(repo, fees.NewCalculator(), dist,
		renderer, documents, letterhead, logger)
	orderService := service.NewOrderService(repo, invoiceService, mailer, ledgerProvider, logger)
	intakeService := service.NewIntakeService(repo, verifier, logger)

	// HTTP surface
	metrics := middleware.NewMetrics("totenschein")
	h := handler.New(orderService, invoiceService, intakeService, verifier, logger)
	e := router.New(h, metrics, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "address", addr, "env", cfg.Env)
	if err := e.Start(addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
