package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/Diamond001cloud/webhook-ape-airdrop1/core/config"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions customises DefaultMiddlewares.
type MiddlewareOptions struct {
	// Metrics, when set, replaces the plain message counters with Prometheus instrumentation.
	Metrics *middleware.UpdateMetrics
	// OnPanic answers the user after a recovered handler panic.
	OnPanic tele.HandlerFunc
}

// NewRateLimiter builds the per-user limiter described by cfg, or nil when limiting is off.
func NewRateLimiter(cfg *coreconfig.Config, onLimited tele.HandlerFunc) *middleware.RateLimiter {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return nil
	}
	ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, t := range cfg.RateLimit.ExcludeUpdates {
		ex[strings.ToLower(t)] = struct{}{}
	}
	return middleware.NewRateLimiter(middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Burst:     cfg.RateLimit.Burst,
		Exclude:   ex,
		OnLimited: onLimited,
	})
}

// DefaultMiddlewares builds the shared middleware chain: recover, rate limit,
// logging and metrics. limiter may be nil.
func DefaultMiddlewares(limiter *middleware.RateLimiter, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.Recover(middleware.RecoverOptions{OnPanic: opts.OnPanic})},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if limiter != nil {
		mws = append(mws, Middleware{Name: "rate_limit", Use: limiter.Middleware})
	}
	if opts.Metrics != nil {
		mws = append(mws, Middleware{Name: "metrics", Use: opts.Metrics.Middleware})
	} else {
		mws = append(mws, Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware})
	}
	return mws
}
