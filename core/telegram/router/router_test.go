package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/callbacks"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// fakeAPI answers every Bot API call with ok and records the method names.
type fakeAPI struct {
	mu      sync.Mutex
	methods []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.methods = append(f.methods, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
}

func testBot(t *testing.T) (*tele.Bot, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	bot, err := tele.NewBot(tele.Settings{Token: "test", URL: srv.URL, Offline: true})
	require.NoError(t, err)
	return bot, api
}

func callback(bot *tele.Bot, data string) tele.Context {
	return bot.NewContext(tele.Update{ID: 3, Callback: &tele.Callback{
		ID:     "cb1",
		Sender: &tele.User{ID: 9},
		Data:   data,
	}})
}

func text(bot *tele.Bot, userID int64, s string) tele.Context {
	return bot.NewContext(tele.Update{ID: 4, Message: &tele.Message{
		Text:   s,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
	}})
}

func TestCallbackRouteDispatchesByKey(t *testing.T) {
	bot, api := testBot(t)
	reg := tg.NewRegistry()
	var got string
	require.NoError(t, reg.RegisterCallback("balance", func(c tele.Context) error {
		got = "balance"
		return nil
	}))

	route := CallbackRoute(reg, CallbackOptions{})
	require.NoError(t, route.Handler(callback(bot, "\fbalance|")))
	assert.Equal(t, "balance", got)
	assert.Contains(t, api.methods, "answerCallbackQuery")
}

func TestCallbackRouteKeepsPayload(t *testing.T) {
	bot, _ := testBot(t)
	reg := tg.NewRegistry()
	var payload string
	require.NoError(t, reg.RegisterCallback("withdraw", func(c tele.Context) error {
		payload = callbacks.CallbackPayload(c)
		return nil
	}))

	route := CallbackRoute(reg, CallbackOptions{})
	require.NoError(t, route.Handler(callback(bot, "\fwithdraw|now")))
	assert.Equal(t, "now", payload)
}

func TestCallbackRouteNotFound(t *testing.T) {
	bot, _ := testBot(t)
	reg := tg.NewRegistry()
	missed := false
	route := CallbackRoute(reg, CallbackOptions{NotFound: func(tele.Context) error {
		missed = true
		return nil
	}})
	require.NoError(t, route.Handler(callback(bot, "\fnope|")))
	assert.True(t, missed)
}

func TestTextRoutePrefersSlashAliases(t *testing.T) {
	bot, _ := testBot(t)
	reg := tg.NewRegistry()
	var calls []string
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{
		Description: "Start",
		Handler:     func(tele.Context) error { calls = append(calls, "start"); return nil },
	}))
	reg.SetTextFallback(func(tele.Context) error { calls = append(calls, "fallback"); return nil })

	route := TextRoute(reg, TextOptions{})
	require.NoError(t, route.Handler(text(bot, 1, "/start@airdrop_bot")))
	require.NoError(t, route.Handler(text(bot, 1, "start")))
	assert.Equal(t, []string{"start", "fallback"}, calls)
}

func TestCommandRoutesGuardAdmin(t *testing.T) {
	bot, _ := testBot(t)
	reg := tg.NewRegistry()
	ran := 0
	require.NoError(t, reg.RegisterCommand("/stats", commands.Command{
		Description: "Stats",
		AdminOnly:   true,
		Handler:     func(tele.Context) error { ran++; return nil },
	}))

	routes := CommandRoutes(reg, CommandRouteOptions{AdminID: 100})
	require.Len(t, routes, 1)
	assert.Equal(t, "/stats", routes[0].Endpoint)

	require.NoError(t, routes[0].Handler(text(bot, 5, "/stats")))
	require.NoError(t, routes[0].Handler(text(bot, 100, "/stats")))
	assert.Equal(t, 1, ran)
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "start", normalizeHandlerName("/Start"))
	assert.Equal(t, "unknown", normalizeHandlerName(" "))
	assert.Equal(t, "a_b", normalizeHandlerName("a b"))
}
