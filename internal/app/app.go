// Package app wires configuration, storage and the aggregation services into
// a single App shared by the HTTP server and the MCP tools.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/breakdown"
	"github.com/bobmcallan/tally/internal/services/exchange"
	"github.com/bobmcallan/tally/internal/services/history"
	"github.com/bobmcallan/tally/internal/services/ledger"
	"github.com/bobmcallan/tally/internal/services/report"
	"github.com/bobmcallan/tally/internal/services/stats"
	"github.com/bobmcallan/tally/internal/storage"
)

// App holds all initialized services, the report session and the MCP server.
type App struct {
	Config  *common.Config
	Logger  *common.Logger
	Storage interfaces.StorageManager

	ExchangeService  *exchange.Service
	StatsService     *stats.Service
	HistoryService   *history.Service
	BreakdownService *breakdown.Service
	LedgerService    *ledger.Service

	// Session is the report session behind the REST report endpoints.
	Session *report.Session

	MCPServer   *server.MCPServer
	StartupTime time.Time

	logCloser io.Closer
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp loads configuration and initializes the App. configPath may be
// empty, in which case TALLY_CONFIG, then tally.toml next to the binary,
// then config/tally.toml are tried.
func NewApp(configPath string) (*App, error) {
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("TALLY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tally.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tally.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative paths against the binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	return NewAppWithConfig(config)
}

// NewAppWithConfig initializes the App from an already loaded config.
func NewAppWithConfig(config *common.Config) (*App, error) {
	startupStart := time.Now()

	logger, logCloser, err := common.NewLoggerFromConfig(config.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	storageManager, err := storage.NewStorageManager(ctx, logger, config)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	store := storageManager.LedgerStore()

	workers := config.Aggregation.GetWorkers()
	exchangeService := exchange.NewService(store, logger,
		exchange.WithBaseCurrencyResolver(func(ctx context.Context) string {
			base, err := store.BaseCurrency(ctx)
			if err != nil || base == "" {
				return config.BaseCurrency
			}
			return base
		}),
		exchange.WithLookupTimeout(config.Aggregation.GetLookupTimeout()),
	)
	statsService := stats.NewService(exchangeService, store, config.BaseCurrency, logger)
	historyService := history.NewService(statsService, workers, logger)
	breakdownService := breakdown.NewService(statsService, store, workers, logger)
	ledgerService := ledger.NewService(store, logger)

	mcpServer := server.NewMCPServer(
		"tally",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		ExchangeService:  exchangeService,
		StatsService:     statsService,
		HistoryService:   historyService,
		BreakdownService: breakdownService,
		LedgerService:    ledgerService,
		MCPServer:        mcpServer,
		StartupTime:      startupStart,
		logCloser:        logCloser,
	}
	a.Session = a.NewSession()

	a.registerTools()

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// NewSession creates a report session over the App's services.
func (a *App) NewSession() *report.Session {
	return report.NewSession(
		a.LedgerService,
		a.ExchangeService,
		a.StatsService,
		a.HistoryService,
		a.BreakdownService,
		a.Logger,
	)
}

// CompleteFilter fills empty type, account and category selections with
// everything known, and applies the configured transfer treatment when the
// caller did not ask for it.
func (a *App) CompleteFilter(ctx context.Context, f *report.Filter) error {
	if len(f.Types) == 0 {
		f.Types = []models.TransactionType{models.TxIncome, models.TxExpense, models.TxTransfer}
	}

	store := a.Storage.LedgerStore()
	if len(f.AccountIDs) == 0 {
		accounts, err := store.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		for _, acct := range accounts {
			f.AccountIDs = append(f.AccountIDs, acct.ID)
		}
	}
	if len(f.CategoryIDs) == 0 {
		categories, err := store.ListCategories(ctx)
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}
		f.CategoryIDs = make([]uuid.UUID, 0, len(categories)+1)
		for _, c := range categories {
			f.CategoryIDs = append(f.CategoryIDs, c.ID)
		}
		f.CategoryIDs = append(f.CategoryIDs, models.UnspecifiedCategoryID)
	}

	if a.Config.Aggregation.TreatTransfersAsIncomeExpense {
		f.TreatTransfersAsIncomeExpense = true
	}
	return nil
}

// Close releases all resources held by the App. It is safe to call twice.
func (a *App) Close() {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Storage = nil
	}
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}
