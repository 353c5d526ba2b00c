// Package app wires configuration, storage, clients and services into a
// running folio instance shared by the server binary and tests.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/folio/internal/clients/gemini"
	"github.com/bobmcallan/folio/internal/clients/prices"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/services/advisory"
	"github.com/bobmcallan/folio/internal/services/jobmanager"
	"github.com/bobmcallan/folio/internal/services/ledger"
	"github.com/bobmcallan/folio/internal/services/portfolio"
	"github.com/bobmcallan/folio/internal/services/quote"
	"github.com/bobmcallan/folio/internal/services/suggestion"
	"github.com/bobmcallan/folio/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config            *common.Config
	Logger            *common.Logger
	Storage           interfaces.StorageManager
	Locks             *common.PortfolioLocks
	PriceClient       interfaces.PriceClient
	Generator         interfaces.SuggestionGenerator
	LedgerService     interfaces.LedgerService
	PortfolioService  interfaces.PortfolioService
	QuoteService      interfaces.QuoteService
	SuggestionService interfaces.SuggestionService
	AdvisoryService   interfaces.AdvisoryService
	JobManager        *jobmanager.JobManager
	Scheduler         *Scheduler
	StartupTime       time.Time

	geminiClient *gemini.Client
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: the given path, FOLIO_CONFIG,
// folio.toml next to the binary, then config/folio.toml.
func resolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("FOLIO_CONFIG"); env != "" {
		return env
	}
	path := filepath.Join(getBinaryDir(), "folio.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return "config/folio.toml"
}

// NewApp loads configuration and initializes storage, clients and services.
// Background work is not started; call Start.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(getBinaryDir(), config.Logging.FilePath)
	}
	logger := common.NewLoggerFromConfig(config.Logging)

	return newApp(config, logger, startupStart)
}

// NewAppWithConfig initializes an App from an already loaded config.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	return newApp(config, logger, time.Now())
}

func newApp(config *common.Config, logger *common.Logger, startupStart time.Time) (*App, error) {
	ctx := context.Background()

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	for _, name := range config.ValidateRequired() {
		logger.Warn().Str("setting", name).Msg("Setting not configured - dependent features may be limited")
	}

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Locks:       common.NewPortfolioLocks(),
		StartupTime: startupStart,
	}

	if url := config.Clients.Prices.BaseURL; url != "" {
		a.PriceClient = prices.NewClient(url,
			prices.WithAPIKey(config.Clients.Prices.APIKey),
			prices.WithLogger(logger.WithComponent("prices")),
			prices.WithRateLimit(config.Clients.Prices.RateLimit),
			prices.WithTimeout(config.Clients.Prices.GetTimeout()),
		)
	}

	if key := config.Clients.Gemini.APIKey; key != "" {
		client, err := gemini.NewClient(ctx, key,
			gemini.WithLogger(logger.WithComponent("gemini")),
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithTimeout(config.Clients.Gemini.GetTimeout()),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			a.geminiClient = client
			a.Generator = client
		}
	}

	a.LedgerService = ledger.NewService(storageManager, a.Locks, logger.WithComponent("ledger"),
		ledger.WithOperationTimeout(config.Ledger.GetOperationTimeout()),
	)
	a.QuoteService = quote.NewService(a.PriceClient, storageManager, logger.WithComponent("quote"),
		quote.WithCacheTTL(config.Clients.Prices.GetCacheTTL()),
	)
	a.PortfolioService = portfolio.NewService(storageManager, a.QuoteService, a.Locks, logger.WithComponent("portfolio"),
		portfolio.WithOperationTimeout(config.Ledger.GetOperationTimeout()),
	)

	suggestionOpts := []suggestion.Option{
		suggestion.WithQuotes(a.QuoteService),
		suggestion.WithDefaultInvestment(config.Ledger.DefaultInvestment),
		suggestion.WithOperationTimeout(config.Ledger.GetOperationTimeout()),
	}
	if a.Generator != nil {
		suggestionOpts = append(suggestionOpts, suggestion.WithGenerator(a.Generator))
	}
	a.SuggestionService = suggestion.NewService(storageManager, a.LedgerService, a.PortfolioService, a.Locks,
		logger.WithComponent("suggestion"), suggestionOpts...)
	a.AdvisoryService = advisory.NewService(storageManager, a.PortfolioService, a.Generator, logger.WithComponent("advisory"))

	a.JobManager = jobmanager.NewJobManager(a.LedgerService, a.SuggestionService, a.QuoteService,
		storageManager, logger.WithComponent("jobs"), config.Jobs)

	a.Scheduler, err = newScheduler(a)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to configure scheduler: %w", err)
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// Start launches the job processors and the scheduler, and queues
// reconciliation for any portfolio left with unfinished journal entries.
func (a *App) Start() {
	if !a.Config.Jobs.Enabled {
		a.Logger.Info().Msg("Background jobs disabled")
		a.Scheduler.Start()
		return
	}
	a.JobManager.Start()
	if n, err := a.JobManager.SweepIncomplete(context.Background()); err != nil {
		a.Logger.Warn().Err(err).Msg("Startup recovery sweep failed")
	} else if n > 0 {
		a.Logger.Info().Int("portfolios", n).Msg("Startup recovery queued")
	}
	a.Scheduler.Start()
}

// Close stops background work and releases resources. Safe to call more
// than once.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
		a.Scheduler = nil
	}
	if a.JobManager != nil {
		a.JobManager.Stop()
		a.JobManager.Events().Close()
		a.JobManager = nil
	}
	if a.geminiClient != nil {
		a.geminiClient.Close()
		a.geminiClient = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
