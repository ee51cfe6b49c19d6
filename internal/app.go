// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "github.com/Uyoxy/NexaFx-backend/internal/api"
	"github.com/Uyoxy/NexaFx-backend/internal/api/handler"
	"github.com/Uyoxy/NexaFx-backend/internal/config"
	"github.com/Uyoxy/NexaFx-backend/internal/notifier"
	"github.com/Uyoxy/NexaFx-backend/internal/repository"
	"github.com/Uyoxy/NexaFx-backend/internal/repository/postgres"
	"github.com/Uyoxy/NexaFx-backend/internal/service"
	"github.com/Uyoxy/NexaFx-backend/internal/stellar"
	"github.com/Uyoxy/NexaFx-backend/internal/util"
	"github.com/Uyoxy/NexaFx-backend/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB

	// Repositories
	TransactionRepository repository.TransactionRepository
	CurrencyRepository    repository.CurrencyRepository

	// Settlement
	StellarClient *stellar.Client
	Coordinator   *stellar.Coordinator

	// Services
	TransactionService service.TransactionService
	Notifier           notifier.Notifier

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	util.InitLogger()
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	app.TransactionRepository = postgres.NewTransactionRepository(app.DB)
	app.CurrencyRepository = postgres.NewCurrencyRepository(app.DB)
	app.Logger.Info("Repositories initialized.")

	app.StellarClient, err = stellar.NewClient(stellar.Config{
		HorizonURL:        cfg.Stellar.HorizonURL,
		NetworkPassphrase: cfg.Stellar.NetworkPassphrase,
		SourceSecretSeed:  cfg.Stellar.SecretSeed,
		RequestTimeout:    cfg.Stellar.RequestTimeout,
	}, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize settlement client: %w", err)
	}
	app.Coordinator = stellar.NewCoordinator(
		app.StellarClient,
		app.StellarClient.SourceAddress(),
		app.Logger,
		stellar.WithMaxAttempts(cfg.Stellar.MaxRetries),
		stellar.WithBackoffBase(cfg.Stellar.RetryBackoff),
	)
	app.Logger.Info("Settlement client initialized.", "source", app.StellarClient.SourceAddress())

	if cfg.NATSURL != "" {
		natsNotifier, err := notifier.NewNATSNotifier(cfg.NATSURL, "nexafx-backend", app.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect outcome notifier: %w", err)
		}
		app.Notifier = natsNotifier
		app.Logger.Info("Outcome notifier connected.", "url", cfg.NATSURL)
	} else {
		app.Notifier = notifier.Noop{}
		app.Logger.Warn("NATS_URL not set, outcome events are discarded.")
	}

	feeBuilder := service.NewFeeBuilder(app.CurrencyRepository, app.DB)
	references := service.NewReferenceRegistry(app.TransactionRepository, app.DB)
	app.TransactionService = service.NewTransactionService(
		app.DB, // DBTxBeginner
		app.DB, // DBExecutor
		app.TransactionRepository,
		app.CurrencyRepository,
		feeBuilder,
		references,
		app.Coordinator,
		app.Notifier,
		app.Logger,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.Logger.Info("Services initialized.")

	transactionHandler := handler.NewTransactionHandler(app.TransactionService, app.Logger)
	blockchainHandler := handler.NewBlockchainHandler(app.StellarClient, app.Logger)
	app.HTTPHandler = router.NewRouter(transactionHandler, blockchainHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Notifier != nil {
		app.Notifier.Close()
		app.Logger.Info("Outcome notifier closed.")
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
