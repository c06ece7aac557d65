package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/admin"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/engine"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/outbound"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/referral"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/texts"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/users"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/withdraw"
	tg "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

const (
	adminID   = 999
	validAddr = "0xABCDEF0123456789ABCDEF0123456789ABCDEF01"
)

type apiCall struct {
	Method string
	Params map[string]any
}

// fakeAPI records Bot API calls. Chats listed in blocked fail with 403.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	blocked map[string]bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	params := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&params)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Params: params})
	blocked := f.blocked[toString(params["chat_id"])]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case blocked:
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	case strings.HasPrefix(method, "send"), strings.HasPrefix(method, "edit"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (f *fakeAPI) block(chat string) {
	f.mu.Lock()
	f.blocked[chat] = true
	f.mu.Unlock()
}

func (f *fakeAPI) byMethod(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

type harness struct {
	bot   *tele.Bot
	api   *fakeAPI
	reg   *tg.Registry
	h     *Handlers
	store *users.MemoryStore
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := &fakeAPI{blocked: map[string]bool{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	bot, err := tele.NewBot(tele.Settings{Token: "test", URL: srv.URL, Offline: true})
	require.NoError(t, err)

	open := time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC)
	hs := &harness{bot: bot, api: api, reg: tg.NewRegistry(), store: users.NewMemoryStore(), now: open.AddDate(0, 0, 1)}
	catalog := texts.New(texts.Options{TokenSymbol: "$ApeCoin", AirdropBonus: 1000, ReferralBonus: 200, WithdrawOpen: open})
	catalog.SetBotUsername("ape_bot")

	sender := NewSender(nil)
	sender.Bind(bot)
	eng := engine.New(engine.Options{
		Store:        hs.store,
		Referrals:    referral.NewLedger(hs.store, 200),
		Withdrawals:  withdraw.NewWorkflow(withdraw.Window{Open: open, GraceDays: 3}, state.NewMemoryManager(0)),
		Texts:        catalog,
		AdminID:      adminID,
		AirdropBonus: 1000,
		Now:          func() time.Time { return hs.now },
	})
	adm := admin.New(admin.Options{Store: hs.store, Sender: sender, Texts: catalog, AdminID: adminID, BroadcastRate: 1000})
	hs.h = New(Options{Engine: eng, Admin: adm, Texts: catalog})
	require.NoError(t, hs.h.Register(hs.reg))
	return hs
}

func (hs *harness) message(from int64, text, payload string) tele.Context {
	return hs.bot.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		ID:      5,
		Text:    text,
		Payload: payload,
		Sender:  &tele.User{ID: from, FirstName: "Ann"},
		Chat:    &tele.Chat{ID: from},
	}})
}

func (hs *harness) command(t *testing.T, from int64, text string) {
	t.Helper()
	name, cmd, ok := hs.reg.LookupCommand(text)
	require.True(t, ok, text)
	payload := strings.TrimSpace(strings.TrimPrefix(text, name))
	require.NoError(t, cmd.Handler(hs.message(from, text, payload)))
}

func (hs *harness) text(t *testing.T, from int64, text string) {
	t.Helper()
	require.NoError(t, hs.reg.TextFallback()(hs.message(from, text, "")))
}

func (hs *harness) press(t *testing.T, from int64, action outbound.Action) {
	t.Helper()
	h, ok := hs.reg.GetCallback(string(action))
	require.True(t, ok)
	c := hs.bot.NewContext(tele.Update{ID: 2, Callback: &tele.Callback{
		ID:      "cb",
		Unique:  string(action),
		Sender:  &tele.User{ID: from, FirstName: "Ann"},
		Message: &tele.Message{ID: 10, Chat: &tele.Chat{ID: from}},
	}})
	require.NoError(t, h(c))
}

func TestRegisterWiresEverything(t *testing.T) {
	hs := newHarness(t)
	assert.Len(t, hs.reg.Commands(), 5)
	assert.Len(t, hs.reg.ListCallbacks(), len(outbound.Actions))
	assert.NotNil(t, hs.reg.TextFallback())

	visible := hs.reg.ListCommands(true)
	require.Len(t, visible, 1)
	assert.Equal(t, "start", visible[0].Text)
}

func TestOnboardingOverTelegram(t *testing.T) {
	hs := newHarness(t)

	hs.command(t, 42, "/start")
	sent := hs.api.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Params["text"], "Hello Ann")

	hs.text(t, 42, "@alice")
	hs.text(t, 42, validAddr)
	sent = hs.api.byMethod("sendMessage")
	require.Len(t, sent, 3)
	assert.Equal(t, "Markdown", sent[1].Params["parse_mode"])
	assert.Contains(t, sent[2].Params["text"], "1000 $ApeCoin")
	assert.Contains(t, sent[2].Params["reply_markup"], string(outbound.ActionWithdraw))

	rec, err := hs.store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, users.StepDone, rec.Step)
}

func TestMenuActionEditsMessage(t *testing.T) {
	hs := newHarness(t)
	hs.command(t, 42, "/start")
	hs.api.reset()

	hs.press(t, 42, outbound.ActionBalance)
	edits := hs.api.byMethod("editMessageText")
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Params["text"], "Referral Balance")
	assert.Equal(t, "Markdown", edits[0].Params["parse_mode"])
	assert.Contains(t, edits[0].Params["reply_markup"], string(outbound.ActionMainMenu))
}

func TestWithdrawNotifiesAdmin(t *testing.T) {
	hs := newHarness(t)
	hs.command(t, 42, "/start")
	hs.text(t, 42, "alice")
	hs.text(t, 42, validAddr)
	hs.press(t, 42, outbound.ActionWithdraw)
	hs.text(t, 42, "150")
	hs.api.reset()

	hs.text(t, 42, validAddr)

	sent := hs.api.byMethod("sendMessage")
	require.Len(t, sent, 3)
	var toAdmin, toUser []string
	for _, c := range sent {
		if toString(c.Params["chat_id"]) == "999" {
			toAdmin = append(toAdmin, c.Params["text"].(string))
		} else {
			toUser = append(toUser, c.Params["text"].(string))
		}
	}
	require.Len(t, toAdmin, 1)
	assert.Contains(t, toAdmin[0], "/verify 42")
	require.Len(t, toUser, 2)
	assert.Equal(t, texts.DefaultWithdrawInstructions, toUser[0])
	assert.Contains(t, toUser[1], "submitted successfully")
}

func TestAdminCommands(t *testing.T) {
	hs := newHarness(t)
	hs.command(t, 42, "/start")
	hs.api.reset()

	hs.command(t, adminID, "/send")
	hs.command(t, adminID, "/send abc hello")
	hs.command(t, adminID, "/send 42 hello there")
	sent := hs.api.byMethod("sendMessage")
	require.Len(t, sent, 4)
	assert.Equal(t, "Usage: /send <user_id> <message>", sent[0].Params["text"])
	assert.Contains(t, sent[1].Params["text"], "Invalid user ID")
	assert.Equal(t, "hello there", sent[2].Params["text"])
	assert.Equal(t, "✅ Message sent to user 42.", sent[3].Params["text"])

	hs.api.reset()
	hs.command(t, adminID, "/verify 42")
	sent = hs.api.byMethod("sendMessage")
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Params["text"], "verified and processed")
	assert.Equal(t, "✅ User 42 notified of verification.", sent[1].Params["text"])
	rec, _ := hs.store.Get(context.Background(), 42)
	assert.True(t, rec.Verified)

	hs.api.reset()
	hs.command(t, adminID, "/stats")
	sent = hs.api.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Params["text"], "Total Users: 1")
}

func TestSendFailureIsEchoedToAdmin(t *testing.T) {
	hs := newHarness(t)
	hs.api.block("77")

	hs.command(t, adminID, "/send 77 hi")
	sent := hs.api.byMethod("sendMessage")
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Params["text"], "Failed to send message")
}

func TestBroadcastCountsDeliveries(t *testing.T) {
	hs := newHarness(t)
	hs.command(t, 1, "/start")
	hs.command(t, 2, "/start")
	hs.api.block("2")
	hs.api.reset()

	hs.command(t, adminID, "/broadcast big news")
	sent := hs.api.byMethod("sendMessage")
	require.Len(t, sent, 3)
	assert.Equal(t, "✅ Broadcast sent to 1 of 2 users.", sent[2].Params["text"])
}

func TestNonAdminIsRefused(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.h.OnAdminReject(hs.message(5, "/stats", "")))
	sent := hs.api.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Params["text"], "not authorized")
}

func TestOnPanicApologises(t *testing.T) {
	hs := newHarness(t)
	require.NoError(t, hs.h.OnPanic(hs.message(5, "hi", "")))
	sent := hs.api.byMethod("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Params["text"], "Something went wrong")
}

func TestSenderRequiresBinding(t *testing.T) {
	err := NewSender(nil).Send(context.Background(), 1, outbound.Message{Text: "x"})
	assert.ErrorIs(t, err, ErrNotBound)
}

func TestSenderWaitsOnSharedLimiter(t *testing.T) {
	hs := newHarness(t)
	pace := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, pace.Allow())

	sender := NewSender(pace)
	sender.Bind(hs.bot)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sender.Send(ctx, 7, outbound.Message{Text: "x"})
	require.Error(t, err)
	assert.Empty(t, hs.api.byMethod("sendMessage"))

	pace.SetLimit(rate.Inf)
	require.NoError(t, sender.Send(context.Background(), 7, outbound.Message{Text: "x"}))
	assert.Len(t, hs.api.byMethod("sendMessage"), 1)
}

func TestSendOptions(t *testing.T) {
	opts := SendOptions(outbound.Message{Format: outbound.Markdown, Menu: outbound.MenuMain, DisablePreview: true})
	assert.Equal(t, tele.ModeMarkdown, opts.ParseMode)
	assert.True(t, opts.DisableWebPagePreview)
	require.NotNil(t, opts.ReplyMarkup)
	require.Len(t, opts.ReplyMarkup.InlineKeyboard, 3)
	assert.Len(t, opts.ReplyMarkup.InlineKeyboard[0], 2)
	assert.Len(t, opts.ReplyMarkup.InlineKeyboard[2], 1)

	back := SendOptions(outbound.Message{Menu: outbound.MenuBack})
	require.NotNil(t, back.ReplyMarkup)
	require.Len(t, back.ReplyMarkup.InlineKeyboard, 1)
	assert.Equal(t, string(outbound.ActionMainMenu), back.ReplyMarkup.InlineKeyboard[0][0].Unique)

	plain := SendOptions(outbound.Message{})
	assert.Empty(t, plain.ParseMode)
	assert.Nil(t, plain.ReplyMarkup)
}
