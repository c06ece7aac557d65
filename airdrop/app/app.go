// Package app wires the airdrop bot: storage, engine, admin tools, Telegram
// routes, metrics and maintenance jobs.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/time/rate"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/admin"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/bot"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/config"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/engine"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/jobs"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/metrics"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/referral"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/texts"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/users"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/withdraw"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/bootstrap"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/logger"
	tg "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/middleware"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/router"
	tgsender "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/sender"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/state"
)

const (
	limiterIdle      = 10 * time.Minute
	limiterPruneTick = 5 * time.Minute
	sessionPruneTick = 10 * time.Minute
	stopTimeout      = 5 * time.Second
)

// Options override infrastructure for tests.
type Options struct {
	Config *config.Config
	// Store replaces the Postgres store; when set no database is opened.
	Store users.Store
	Now   func() time.Time
}

// App owns the long-lived components of the bot.
type App struct {
	cfg *config.Config
	db  *sqlx.DB

	store    users.Store
	sessions *state.MemoryManager
	catalog  *texts.Catalog
	metrics  *metrics.Metrics
	// pace is the Bot API budget shared by the dispatcher and sender.
	pace     *rate.Limiter
	sender   *bot.Sender
	handlers *bot.Handlers
	registry *tg.Registry
	limiter  *middleware.RateLimiter

	bgMu      sync.Mutex
	scheduler *jobs.Scheduler
	server    *metrics.Server

	closeOnce sync.Once
}

// New bootstraps logging and the database, then builds the application.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	a, err := Build(Options{Config: cfg, Store: users.NewPostgresStore(res.DB)})
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	a.db = res.DB
	return a, nil
}

// Build assembles the application around an existing store.
func Build(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("app: nil store")
	}
	ad := cfg.Airdrop
	adminID := cfg.Telegram.AdminID

	pace := tgsender.NewLimiter(tgsender.DefaultRatePerSecond)
	a := &App{
		cfg:      cfg,
		store:    opts.Store,
		sessions: state.NewMemoryManager(cfg.SessionTTL),
		metrics:  metrics.New(),
		pace:     pace,
		sender:   bot.NewSender(pace),
		registry: tg.NewRegistry(),
	}
	a.catalog = texts.New(texts.Options{
		TokenSymbol:          ad.TokenSymbol,
		AirdropBonus:         ad.Bonus,
		ReferralBonus:        ad.ReferralBonus,
		RequiredReferrals:    ad.RequiredReferrals,
		WithdrawOpen:         ad.WithdrawOpen,
		GroupLink:            ad.GroupLink,
		ChannelLink:          ad.ChannelLink,
		SupportLink:          ad.SupportLink,
		WithdrawInstructions: ad.WithdrawInstructions,
	})

	window := withdraw.Window{Open: ad.WithdrawOpen, GraceDays: ad.GraceDays, Location: ad.Location}
	eng := engine.New(engine.Options{
		Store:        a.store,
		Referrals:    referral.NewLedger(a.store, ad.ReferralBonus),
		Withdrawals:  withdraw.NewWorkflow(window, a.sessions),
		Texts:        a.catalog,
		AdminID:      adminID,
		AirdropBonus: ad.Bonus,
		Observer:     a.metrics,
		Now:          opts.Now,
	})
	adm := admin.New(admin.Options{
		Store:         a.store,
		Sender:        a.sender,
		Texts:         a.catalog,
		AdminID:       adminID,
		BroadcastRate: ad.BroadcastRate,
		Observer:      a.metrics,
	})
	a.handlers = bot.New(bot.Options{Engine: eng, Admin: adm, Texts: a.catalog})
	if err := a.handlers.Register(a.registry); err != nil {
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}
	a.limiter = tg.NewRateLimiter(cfg.CoreConfig(), a.handlers.OnRateLimited)

	if adminID == 0 {
		logger.Warn(context.Background(), "app", "admin.missing",
			slog.String("hint", "set TELEGRAM_ADMIN_ID to receive withdrawal requests"),
		)
	}
	return a, nil
}

// Registry exposes the command and callback registry.
func (a *App) Registry() *tg.Registry { return a.registry }

// Metrics exposes the Prometheus collectors.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// TelegramRunOptions describes how the core runtime should drive the bot.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.handlers.OnAdminReject,
	})
	routes = append(routes,
		router.CallbackRoute(a.registry, router.CallbackOptions{}),
		router.TextRoute(a.registry, router.TextOptions{}),
	)
	return tg.RunOptions{
		Config:   core,
		Registry: a.registry,
		DispatcherOptions: tgsender.Options{
			Limiter:  a.pace,
			OnResult: a.metrics.JobResult,
		},
		Middlewares: tg.DefaultMiddlewares(a.limiter, tg.MiddlewareOptions{
			Metrics: a.metrics.Updates,
			OnPanic: a.handlers.OnPanic,
		}),
		Routes:  routes,
		OnStart: a.onStart,
		OnStop:  a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		if rt.Bot.Me != nil {
			a.catalog.SetBotUsername(rt.Bot.Me.Username)
		}
		a.sender.Bind(rt.Bot)
	}
	return a.startBackground(ctx)
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	return a.stopBackground(ctx)
}

func (a *App) startBackground(ctx context.Context) error {
	a.bgMu.Lock()
	defer a.bgMu.Unlock()

	list := []jobs.Job{
		jobs.RefreshMetrics(a.metrics, a.store, time.Duration(a.cfg.Metrics.RefreshSeconds)*time.Second),
		jobs.PruneSessions(a.sessions, sessionPruneTick),
	}
	if a.limiter != nil {
		list = append(list, jobs.PruneRateLimiter(a.limiter, limiterIdle, limiterPruneTick))
	}
	sch, err := jobs.New(list...)
	if err != nil {
		return err
	}
	if addr := a.cfg.Metrics.Listen; addr != "" {
		srv, err := a.metrics.Listen(addr)
		if err != nil {
			_ = sch.Shutdown()
			return fmt.Errorf("app: metrics listen: %w", err)
		}
		a.server = srv
	}
	sch.Start()
	a.scheduler = sch

	logger.Info(ctx, "app", "background.started",
		slog.Int("jobs", len(list)),
		slog.Bool("metrics_http", a.server != nil),
	)
	return nil
}

func (a *App) stopBackground(ctx context.Context) error {
	a.bgMu.Lock()
	defer a.bgMu.Unlock()

	var errs []error
	if a.scheduler != nil {
		errs = append(errs, a.scheduler.Shutdown())
		a.scheduler = nil
	}
	if a.server != nil {
		sctx, cancel := context.WithTimeout(ctx, stopTimeout)
		errs = append(errs, a.server.Shutdown(sctx))
		cancel()
		a.server = nil
	}
	return errors.Join(errs...)
}

// Close stops background work and releases the database.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.stopBackground(context.Background())
		if a.db != nil {
			err = errors.Join(err, a.db.Close())
		}
	})
	return err
}
