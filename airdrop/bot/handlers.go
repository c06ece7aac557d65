// Package bot connects the airdrop services to telebot: command and callback
// registration, text routing and delivery of transition effects.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/admin"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/engine"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/outbound"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/texts"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/logger"
	tg "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/commands"
	tghelpers "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Options wires the handlers.
type Options struct {
	Engine *engine.Engine
	Admin  *admin.Service
	Texts  *texts.Catalog
}

// Handlers adapts telebot updates to engine and admin calls.
type Handlers struct {
	eng   *engine.Engine
	adm   *admin.Service
	texts *texts.Catalog
	log   *slog.Logger
}

// New builds Handlers.
func New(opts Options) *Handlers {
	return &Handlers{
		eng:   opts.Engine,
		adm:   opts.Admin,
		texts: opts.Texts,
		log:   logger.Component("tg"),
	}
}

// Register adds commands, menu callbacks and the text fallback to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start":     {Handler: h.onStart, Description: "Join the airdrop"},
		"/stats":     {Handler: h.onStats, Description: "Show bot statistics", AdminOnly: true},
		"/broadcast": {Handler: h.onBroadcast, Description: "Send a message to every user", AdminOnly: true},
		"/send":      {Handler: h.onSend, Description: "Send a message to one user", AdminOnly: true},
		"/verify":    {Handler: h.onVerify, Description: "Mark a withdrawal verified", AdminOnly: true},
	}
	var errs []error
	for name, cmd := range cmds {
		errs = append(errs, reg.RegisterCommand(name, cmd))
	}
	for _, action := range outbound.Actions {
		errs = append(errs, reg.RegisterCallback(string(action), h.onAction(action)))
	}
	reg.SetTextFallback(h.onText)
	return errors.Join(errs...)
}

// OnAdminReject answers non-admin callers of admin commands.
func (h *Handlers) OnAdminReject(c tele.Context) error {
	return h.reply(c, h.texts.NotAuthorized())
}

// OnPanic apologises after a recovered handler panic.
func (h *Handlers) OnPanic(c tele.Context) error {
	return h.reply(c, h.texts.Unavailable())
}

// OnRateLimited answers updates dropped by the rate limiter.
func (h *Handlers) OnRateLimited(c tele.Context) error {
	msg := h.texts.RateLimited()
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msg.Text})
	}
	return h.reply(c, msg)
}

func (h *Handlers) onStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	var payload string
	if m := c.Message(); m != nil {
		payload = m.Payload
	}
	id := tghelpers.IdentityFrom(c)
	effects, err := h.eng.Start(ctx, id.UserID, id.Name, payload)
	return h.deliver(c, effects, err)
}

func (h *Handlers) onText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	id := tghelpers.IdentityFrom(c)
	effects, err := h.eng.HandleText(ctx, id.UserID, id.Name, c.Text())
	return h.deliver(c, effects, err)
}

func (h *Handlers) onAction(action outbound.Action) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		id := tghelpers.IdentityFrom(c)
		effects, err := h.eng.HandleAction(ctx, id.UserID, id.Name, action)
		return h.deliver(c, effects, err)
	}
}

func (h *Handlers) onStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	st, err := h.adm.Stats(ctx, tghelpers.IdentityFrom(c).UserID)
	if err != nil {
		return h.adminFailure(c, err)
	}
	return h.reply(c, h.texts.Stats(st))
}

func (h *Handlers) onBroadcast(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text := strings.TrimSpace(c.Message().Payload)
	if text == "" {
		return h.reply(c, h.texts.Usage("/broadcast <message>"))
	}
	res, err := h.adm.Broadcast(ctx, tghelpers.IdentityFrom(c).UserID, text)
	if err != nil && !errors.Is(err, context.Canceled) {
		return h.adminFailure(c, err)
	}
	return h.reply(c, h.texts.BroadcastDone(res.Delivered, res.Total))
}

func (h *Handlers) onSend(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	parts := strings.SplitN(strings.TrimSpace(c.Message().Payload), " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return h.reply(c, h.texts.Usage("/send <user_id> <message>"))
	}
	to, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return h.reply(c, h.texts.InvalidUserID())
	}
	if err := h.adm.SendTo(ctx, tghelpers.IdentityFrom(c).UserID, to, strings.TrimSpace(parts[1])); err != nil {
		if errors.Is(err, admin.ErrUnauthorized) {
			return h.reply(c, h.texts.NotAuthorized())
		}
		return h.reply(c, h.texts.SendFailed(err))
	}
	return h.reply(c, h.texts.SendDone(to))
}

func (h *Handlers) onVerify(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	args := c.Args()
	if len(args) == 0 {
		return h.reply(c, h.texts.Usage("/verify <user_id>"))
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return h.reply(c, h.texts.InvalidUserID())
	}
	if err := h.adm.Verify(ctx, tghelpers.IdentityFrom(c).UserID, id); err != nil {
		if errors.Is(err, admin.ErrUnauthorized) {
			return h.reply(c, h.texts.NotAuthorized())
		}
		return h.reply(c, h.texts.VerifyFailed(err))
	}
	return h.reply(c, h.texts.VerifyDone(id))
}

func (h *Handlers) adminFailure(c tele.Context, err error) error {
	if errors.Is(err, admin.ErrUnauthorized) {
		return h.reply(c, h.texts.NotAuthorized())
	}
	logger.LogEvent(tghelpers.BuildContext(c), h.log, slog.LevelError, "admin.failed", slog.Any("err", err))
	return h.reply(c, h.texts.Unavailable())
}

func (h *Handlers) reply(c tele.Context, msg outbound.Message) error {
	return tghelpers.SendText(c, msg.Text, SendOptions(msg))
}

// deliver sends replies to the current chat in order and queues notifications.
// Engine failures are logged and answered with a generic message.
func (h *Handlers) deliver(c tele.Context, effects []outbound.Effect, err error) error {
	ctx := tghelpers.BuildContext(c)
	if err != nil {
		logger.LogEvent(ctx, h.log, slog.LevelError, "engine.failed", slog.Any("err", err))
		effects = []outbound.Effect{outbound.Reply{Message: h.texts.Unavailable()}}
	}

	var replies []tghelpers.Reply
	for _, eff := range effects {
		switch e := eff.(type) {
		case outbound.Reply:
			replies = append(replies, tghelpers.Reply{Text: e.Text, Opts: SendOptions(e.Message)})
		case outbound.Notify:
			if nerr := tghelpers.NotifyAsync(ctx, c.Bot(), e.To, e.Text, SendOptions(e.Message)); nerr != nil {
				logger.LogEvent(ctx, h.log, slog.LevelWarn, "notify.failed",
					slog.Int64("to", e.To),
					slog.Any("err", nerr),
				)
			}
		}
	}
	return tghelpers.SendBatch(c, c.Callback() != nil, replies)
}
