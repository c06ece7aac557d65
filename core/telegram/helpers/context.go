package helpers

import (
	"context"
	"strings"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "logger_ctx"

// Identity is who sent an update and where it came from.
type Identity struct {
	UserID int64
	ChatID int64
	// Name is the first name, falling back to @username.
	Name string
}

// IdentityFrom extracts the sender identity of the current update.
func IdentityFrom(c tele.Context) Identity {
	var id Identity
	if c == nil {
		return id
	}
	if chat := c.Chat(); chat != nil {
		id.ChatID = chat.ID
	}
	u := c.Sender()
	if u == nil {
		return id
	}
	id.UserID = u.ID
	id.Name = strings.TrimSpace(u.FirstName)
	if id.Name == "" && u.Username != "" {
		id.Name = "@" + u.Username
	}
	return id
}

// StoreContext attaches ctx to c for downstream helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext returns the per-update context carrying rid and
// update/user/chat ids. The first call caches it on c.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	id := IdentityFrom(c)
	updateID := c.Update().ID
	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, id.ChatID, id.UserID)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, id.UserID, id.ChatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the stored context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
