// Package app wires configuration, storage, the price provider and the
// portfolio service into one runnable unit.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/tally/internal/cache"
	"github.com/bobmcallan/tally/internal/clients/eodhd"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/ledger"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/services/portfolio"
	"github.com/bobmcallan/tally/internal/storage"
)

// App holds the initialized ledger, stores, clients and service.
// It is shared by every cmd/tally subcommand.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Store            interfaces.LedgerStore
	Cache            interfaces.CacheStore
	Provider         interfaces.PriceSeriesProvider
	Ledger           *ledger.Ledger
	PortfolioService interfaces.PortfolioService
	DefaultPeriod    models.Period
	StartupTime      time.Time

	worker    *ReportWorker
	scheduler *Scheduler
	warmStop  context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the explicit path, then TALLY_CONFIG, then
// tally.toml beside the binary, then config/tally.toml.
func resolveConfigPath(configPath, binDir string) string {
	if configPath == "" {
		configPath = os.Getenv("TALLY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tally.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tally.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes every component.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	config, err := common.LoadConfig(resolveConfigPath(configPath, binDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.ResolvePaths(binDir)

	return NewAppWithConfig(context.Background(), config, common.NewLoggerFromConfig(config.Logging))
}

// NewAppWithConfig initializes every component from an already loaded config.
func NewAppWithConfig(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	period, err := models.ParsePeriod(config.Report.DefaultPeriod)
	if err != nil {
		return nil, fmt.Errorf("report.default_period: %w", err)
	}

	store, err := storage.NewLedgerStore(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cacheStore, err := cache.NewStore(ctx, config.Cache, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	if config.Clients.EODHD.APIKey == "" {
		logger.Warn().Msg("EODHD API key not configured - every ticker will be reported unavailable")
	}
	var provider interfaces.PriceSeriesProvider = eodhd.NewClientFromConfig(config.Clients.EODHD, logger)
	if cacheStore != nil {
		provider = cache.NewProvider(provider, cacheStore, config.Cache.GetTTL(), logger)
	}

	policy := ledger.RemoveMissingIgnore
	if config.Ledger.StrictRemove {
		policy = ledger.RemoveMissingError
	}
	l := ledger.New(
		ledger.WithStore(store),
		ledger.WithRemovePolicy(policy),
		ledger.WithLogger(logger),
	)
	if err := l.Load(ctx); err != nil {
		store.Close()
		if cacheStore != nil {
			cacheStore.Close()
		}
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	a := &App{
		Config:           config,
		Logger:           logger,
		Store:            store,
		Cache:            cacheStore,
		Provider:         provider,
		Ledger:           l,
		PortfolioService: portfolio.NewService(l, provider, logger),
		DefaultPeriod:    period,
		StartupTime:      startupStart,
	}

	logger.Info().
		Str("storage", config.Storage.Backend).
		Str("cache", config.Cache.Backend).
		Int("positions", l.Len()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// ReportWorker returns the app's report worker, starting it on first use.
// Each request is bounded by the HTTP client timeouts, not by the worker.
func (a *App) ReportWorker() *ReportWorker {
	if a.worker == nil {
		a.worker = NewReportWorker(a.PortfolioService, 0, a.Logger)
	}
	return a.worker
}

// StartRefreshScheduler requests a fresh report on report.refresh_schedule.
// An empty schedule leaves the scheduler off.
func (a *App) StartRefreshScheduler(ctx context.Context) error {
	spec := a.Config.Report.RefreshSchedule
	if spec == "" {
		return nil
	}

	worker := a.ReportWorker()
	s := NewScheduler(ctx, a.Logger)
	if _, err := s.Add(spec, func(context.Context) {
		worker.Request(a.DefaultPeriod)
	}); err != nil {
		return err
	}
	s.Start()
	a.scheduler = s
	return nil
}

// RefreshPrices drops cached series for tickers, or for every held ticker
// when none are given. Without a cache it does nothing.
func (a *App) RefreshPrices(ctx context.Context, tickers ...string) error {
	cached, ok := a.Provider.(*cache.Provider)
	if !ok {
		return nil
	}
	if len(tickers) == 0 {
		for _, p := range a.PortfolioService.GetPositions() {
			tickers = append(tickers, p.Ticker)
		}
	}
	for _, t := range tickers {
		if err := cached.Invalidate(ctx, t); err != nil {
			return fmt.Errorf("invalidate %s: %w", t, err)
		}
	}
	a.Logger.Debug().Int("tickers", len(tickers)).Msg("Price cache invalidated")
	return nil
}

// StartWarmCache builds one report in the background to fill the price cache.
func (a *App) StartWarmCache() {
	if a.Cache == nil {
		return
	}
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	a.warmStop = warmCancel
	go func() {
		defer warmCancel()
		warmCache(warmCtx, a.PortfolioService, a.DefaultPeriod, a.Logger)
	}()
}

// Close releases all resources held by the App.
// Shutdown order: scheduler, worker, warm cache, cache, store.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	if a.worker != nil {
		a.worker.Close()
		a.worker = nil
	}
	if a.warmStop != nil {
		a.warmStop()
		a.warmStop = nil
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Cache close failed")
		}
		a.Cache = nil
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Store close failed")
		}
		a.Store = nil
	}
}
