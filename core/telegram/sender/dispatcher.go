package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/logger"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// DefaultRatePerSecond stays under the Bot API global limit of 30 messages per second.
const DefaultRatePerSecond = 25

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
	// RatePerSecond paces attempts across all workers; zero means
	// DefaultRatePerSecond, negative disables pacing.
	RatePerSecond float64
	// Limiter, when set, replaces the bucket built from RatePerSecond.
	Limiter *rate.Limiter
	// OnResult observes the final outcome of every job.
	OnResult func(action string, err error)
}

// Stats counts finished jobs.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Retried uint64
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Attempts from all workers share one token bucket.
type Dispatcher struct {
	opts    Options
	pace    *rate.Limiter
	jobs    chan job
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	sent    atomic.Uint64
	errs    atomic.Uint64
	retried atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts: opts,
		pace: opts.Limiter,
		jobs: make(chan job, opts.QueueSize),
		stop: make(chan struct{}),
	}
	if d.pace == nil {
		d.pace = NewLimiter(opts.RatePerSecond)
	}

	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// NewLimiter returns the token bucket used to pace Bot API calls. Zero means
// DefaultRatePerSecond; a negative rate returns nil, which disables pacing.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond < 0 {
		return nil
	}
	if perSecond == 0 {
		perSecond = DefaultRatePerSecond
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
}

// Enqueue schedules run for asynchronous execution.
// The run closure must be idempotent if retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}

	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats returns a snapshot of the job counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.errs.Load(), Retried: d.retried.Load()}
}

// Close stops workers and waits for them to finish processing queued jobs.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		close(d.jobs)
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	deadlineCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, "tg.sender", "send.start", sendLogAttrs(ctx, j)...)

	attempts := d.opts.MaxRetries + 1
	attempt, err := d.attempt(deadlineCtx, j, attempts)
	elapsed := time.Since(start)

	if err != nil {
		d.errs.Add(1)
		logSendFailure(ctx, j, err, attempt, elapsed)
		d.report(j.action, err)
		return
	}
	d.sent.Add(1)
	if attempt > 1 {
		d.retried.Add(1)
		logger.Info(ctx, "tg.sender", "send.retry.success",
			append(sendLogAttrs(ctx, j),
				slog.Int("attempt", attempt),
				slog.Int("elapsed_ms", durationToMS(elapsed)),
			)...,
		)
	}
	logSendSuccess(ctx, j, attempt, elapsed)
	d.report(j.action, nil)
}

// attempt runs j until it succeeds, fails permanently, exhausts attempts or
// ctx expires. It returns the number of the last attempt made.
func (d *Dispatcher) attempt(ctx context.Context, j job, attempts int) (int, error) {
	var lastErr error
	for n := 1; n <= attempts; n++ {
		if d.pace != nil {
			if err := d.pace.Wait(ctx); err != nil {
				return n, firstErr(lastErr, err)
			}
		} else if err := ctx.Err(); err != nil {
			return n, firstErr(lastErr, err)
		}

		lastErr = j.run()
		if lastErr == nil {
			return n, nil
		}
		if !netutil.ShouldRetry(lastErr) || n == attempts {
			return n, lastErr
		}

		delay := d.opts.RetryBackoff * time.Duration(n)
		if wait, ok := netutil.RetryAfter(lastErr); ok {
			delay = wait
		}
		logger.Debug(ctx, "tg.sender", "send.retry.backoff",
			append(sendLogAttrs(ctx, j),
				slog.Int("attempt", n),
				slog.Duration("delay", delay),
				slog.String("error_kind", classifyError(lastErr)),
			)...,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, ctx.Err()
		case <-timer.C:
		}
	}
	return attempts, lastErr
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) report(action string, err error) {
	if d.opts.OnResult != nil {
		d.opts.OnResult(action, err)
	}
}

func sendLogAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", j.action),
	}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	if userID := logger.UserIDFrom(ctx); userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
	}
	return attrs
}

func logSendSuccess(ctx context.Context, j job, attempt int, elapsed time.Duration) {
	attrs := sendLogAttrs(ctx, j)
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempt", attempt))
	}
	attrs = append(attrs, slog.Int("elapsed_ms", durationToMS(elapsed)))
	logger.Debug(ctx, "tg.sender", "send.success", attrs...)
}

func logSendFailure(ctx context.Context, j job, err error, attempts int, elapsed time.Duration) {
	kind := classifyError(err)
	attrs := append(sendLogAttrs(ctx, j),
		slog.String("error", sanitizeErrorMessage(err)),
		slog.String("error_kind", kind),
		slog.Int("attempts", attempts),
		slog.Int("elapsed_ms", durationToMS(elapsed)),
	)
	// A user blocking the bot is routine during broadcasts.
	level := slog.LevelError
	if kind == KindBlocked {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.Component("tg.sender"), level, "send.fail", attrs...)
}

func durationToMS(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(logger.RoundMS(d) / time.Millisecond)
}
