package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"goldchecker/internal/alerting"
	"goldchecker/internal/backend"
	"goldchecker/internal/config"
	"goldchecker/internal/fetcher"
	"goldchecker/internal/gold"
	"goldchecker/internal/scheduler"
	"goldchecker/internal/server"
	"goldchecker/internal/service"
	"goldchecker/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// runtime bundles the wired rates layer and what must be released with it.
type runtime struct {
	rates      *service.Rates
	backend    *backend.Client
	store      *storage.Store
	dispatcher *service.Dispatcher
}

func (rt *runtime) close(ctx context.Context) {
	if rt.dispatcher != nil {
		_ = rt.dispatcher.Close(ctx)
	}
	if rt.store != nil {
		rt.store.Close()
	}
}

func (a *App) newSource() fetcher.RateSource {
	cfg := a.Config.Provider
	return fetcher.NewDCOG(fetcher.DCOGOptions{
		Endpoint:      cfg.Endpoint,
		VendorKey:     cfg.VendorKey,
		Timeout:       cfg.Timeout,
		UserAgent:     cfg.UserAgent,
		RatePerSecond: cfg.RatePerSecond,
	}, a.Logger)
}

func (a *App) newBackend() *backend.Client {
	cfg := a.Config.Backend
	return backend.NewClient(
		backend.WithBaseURL(cfg.BaseURL),
		backend.WithContentURL(cfg.ContentURL),
		backend.WithAPIKey(cfg.APIKey),
		backend.WithTimeout(cfg.Timeout),
		backend.WithRateLimit(cfg.RateLimit),
		backend.WithLogger(a.Logger),
	)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	telegram := alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	return alerting.NewThrottled(telegram, a.Config.Alerting.Cooldown)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, error) {
	if !a.Config.ArchiveEnabled() {
		return nil, nil
	}
	return storage.Open(ctx, a.Config.Database)
}

// wire builds the rates layer. The dispatcher keeps running past ctx so queued
// writes can drain; callers must release the runtime with drain.
func (a *App) wire(ctx context.Context) (*runtime, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; snapshot archive disabled")
	}

	rc := a.Config.Reconcile
	dispatcher := service.NewDispatcher(service.DispatcherOptions{
		QueueSize:    rc.QueueSize,
		MaxAttempts:  rc.MaxAttempts,
		RetryBackoff: rc.RetryBackoff,
	}, a.Logger)
	dispatcher.Start(context.WithoutCancel(ctx))

	client := a.newBackend()
	deps := service.Deps{
		Source:   a.newSource(),
		Backend:  client,
		Jobs:     dispatcher,
		Notifier: a.newNotifier(),
	}
	if store != nil {
		deps.Archive = store
	}

	rates := service.NewRates(deps, service.Options{
		LiveTTL:       a.Config.Cache.LiveTTL,
		ComparisonTTL: a.Config.Cache.ComparisonTTL,
		ChartTTL:      a.Config.Cache.ChartTTL,
		Tolerance:     rc.Tolerance,
		LockKey:       a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)

	return &runtime{rates: rates, backend: client, store: store, dispatcher: dispatcher}, nil
}

func (a *App) drain(rt *runtime) {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Reconcile.DrainTimeout)
	defer cancel()
	rt.close(ctx)
}

// Serve runs the HTTP API and, when enabled, the daily scheduler until
// SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer a.drain(rt)

	srv := server.NewServer(rt.rates, rt.backend, server.Options{
		Addr:           a.Config.Server.Addr,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		RequestTimeout: a.Config.Server.RequestTimeout,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		SyncAPIKey:     a.Config.Sync.APIKey,
		CronSecret:     a.Config.Sync.CronSecret,
		BackendURL:     rt.backend.BaseURL(),
	}, a.Logger)

	var svc *service.Service
	if a.Config.Scheduler.Enabled {
		hour, minute, err := a.Config.Scheduler.SyncClock()
		if err != nil {
			return err
		}
		sched := scheduler.New(scheduler.Options{
			SyncHour:     hour,
			SyncMinute:   minute,
			Location:     gold.Dubai(),
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, a.Logger)
		svc = service.New(rt.rates, sched, a.Logger)
	} else {
		a.Logger.Info().Msg("scheduler disabled; relying on external cron for daily sync")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if svc != nil {
		g.Go(func() error {
			if err := svc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	a.Logger.Info().Str("addr", a.Config.Server.Addr).Msg("goldchecker service started")
	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}
	a.Logger.Info().Msg("goldchecker service stopped")
	return nil
}

// ExportOptions hold parameters for exporting rate history.
type ExportOptions struct {
	Karat     string
	Period    string
	From      string
	To        string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SyncOptions configure the sync command.
type SyncOptions struct {
	DryRun bool
}

// CalcOptions carry the raw calculator input.
type CalcOptions struct {
	Karat     string
	Weight    string
	ShopPrice string
}

// BackfillOptions configure importing backend history into the archive.
type BackfillOptions struct {
	From        string
	To          string
	PruneBefore string
	DryRun      bool
	Workers     int
}
