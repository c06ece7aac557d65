package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/logger"
	tghelpers "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverOptions customises Recover.
type RecoverOptions struct {
	// OnPanic answers the user after a recovered panic. Its error is logged only.
	OnPanic tele.HandlerFunc
}

// Recover turns handler panics into errors so the bot keeps running.
func Recover(opts RecoverOptions) func(tele.HandlerFunc) tele.HandlerFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				ctx := tghelpers.BuildContext(c)
				logger.TG.ErrorContext(ctx, "panic recovered",
					slog.String("event", "tg.panic"),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("handler panic: %v", r)
				if opts.OnPanic == nil {
					return
				}
				if replyErr := opts.OnPanic(c); replyErr != nil {
					logger.Warn(ctx, "tg", "panic.reply_failed", slog.String("err", replyErr.Error()))
				}
			}()
			return next(c)
		}
	}
}

// RecoverMiddleware is Recover without a user-facing reply.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return Recover(RecoverOptions{})(next)
}
