package helpers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/logger"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends text to the current chat through the dispatcher.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return enqueue(BuildContext(c), "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// editOrSend edits the message behind a callback, or sends a new one when
// there is nothing to edit or the edit fails.
func editOrSend(c tele.Context, text string, opts *tele.SendOptions) error {
	if c.Callback() != nil && c.Callback().Message != nil {
		if err := c.Edit(text, opts); err == nil || errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
	}
	return c.Send(text, opts)
}

// Reply is one message of an ordered batch.
type Reply struct {
	Text string
	Opts *tele.SendOptions
}

// SendBatch delivers replies to the current chat in order as a single
// dispatcher job. With edit set the first reply replaces the callback message.
// A retried job resumes after the last delivered reply.
func SendBatch(c tele.Context, edit bool, replies []Reply) error {
	if len(replies) == 0 {
		return nil
	}
	next := 0
	return enqueue(BuildContext(c), "send.batch", "sendMessage", func() error {
		for next < len(replies) {
			r := replies[next]
			opts := r.Opts
			if opts == nil {
				opts = &tele.SendOptions{}
			}
			var err error
			if edit && next == 0 {
				err = editOrSend(c, r.Text, opts)
			} else {
				err = c.Send(r.Text, opts)
			}
			if err != nil {
				return err
			}
			next++
		}
		return nil
	})
}

// NotifyAsync enqueues a message to an arbitrary chat and returns without waiting for delivery.
func NotifyAsync(ctx context.Context, api tele.API, to int64, text string, opts *tele.SendOptions) error {
	if api == nil {
		return errors.New("telegram helpers: nil bot api")
	}
	if opts == nil {
		opts = &tele.SendOptions{}
	}
	return enqueue(ctx, "notify", "sendMessage:"+strconv.FormatInt(to, 10), func() error {
		_, err := api.Send(tele.ChatID(to), text, opts)
		return err
	})
}
