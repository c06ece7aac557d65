package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/logger"
	tghelpers "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
// Each user gets a token bucket refilled once per Interval holding Burst tokens.
type RateLimitOptions struct {
	Interval  time.Duration
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles updates per sender.
type RateLimiter struct {
	opts  RateLimitOptions
	mu    sync.Mutex
	users map[int64]*userLimiter
	now   func() time.Time
}

// NewRateLimiter creates a limiter; Burst below one is raised to one.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	return &RateLimiter{
		opts:  opts,
		users: make(map[int64]*userLimiter),
		now:   time.Now,
	}
}

// Allow reports whether userID may proceed now and consumes a token if so.
func (l *RateLimiter) Allow(userID int64) bool {
	if l.opts.Interval <= 0 {
		return true
	}
	now := l.now()
	l.mu.Lock()
	u, ok := l.users[userID]
	if !ok {
		u = &userLimiter{lim: rate.NewLimiter(rate.Every(l.opts.Interval), l.opts.Burst)}
		l.users[userID] = u
	}
	u.lastSeen = now
	l.mu.Unlock()
	return u.lim.AllowN(now, 1)
}

// Prune forgets users idle for longer than idle and returns how many were dropped.
func (l *RateLimiter) Prune(idle time.Duration) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, u := range l.users {
		if now.Sub(u.lastSeen) > idle {
			delete(l.users, id)
			removed++
		}
	}
	return removed
}

// Tracked returns the number of users with a live bucket.
func (l *RateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

// Middleware returns the telebot middleware enforcing the limiter.
func (l *RateLimiter) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		user := c.Sender()
		if user == nil || l.opts.Interval <= 0 {
			return next(c)
		}
		if _, skip := l.opts.Exclude[UpdateKind(c.Update())]; skip {
			return next(c)
		}
		if l.Allow(user.ID) {
			return next(c)
		}

		logger.TG.WarnContext(tghelpers.BuildContext(c), "rate limit",
			slog.String("event", "tg.rate_limit"),
			slog.Int64("user_id", user.ID),
		)
		if l.opts.OnLimited != nil {
			_ = l.opts.OnLimited(c)
		}
		return nil
	}
}
