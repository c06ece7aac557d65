package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/config"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/users"
	coreconfig "github.com/Diamond001cloud/webhook-ape-airdrop1/core/config"
	coredatabase "github.com/Diamond001cloud/webhook-ape-airdrop1/core/database"
	tg "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram"

	tele "gopkg.in/telebot.v4"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Config = coreconfig.Config{
		Telegram:  coreconfig.TelegramConfig{Token: "test", AdminID: 999},
		RateLimit: coreconfig.RateLimitConfig{IntervalMS: 200},
	}
	cfg.Database = coredatabase.Config{Name: "airdrop"}
	cfg.Metrics = config.MetricsConfig{Listen: "127.0.0.1:0"}
	require.NoError(t, config.Normalize(&cfg))
	return &cfg
}

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/send") {
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	t.Cleanup(srv.Close)
	b, err := tele.NewBot(tele.Settings{Token: "test", URL: srv.URL, Offline: true})
	require.NoError(t, err)
	b.Me.Username = "ape_bot"
	return b
}

func TestBuildValidatesOptions(t *testing.T) {
	_, err := Build(Options{Store: users.NewMemoryStore()})
	assert.Error(t, err)

	_, err = Build(Options{Config: testConfig(t)})
	assert.Error(t, err)
}

func TestTelegramRunOptions(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(Options{Config: cfg, Store: users.NewMemoryStore()})
	require.NoError(t, err)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, cfg.CoreConfig(), opts.Config)
	assert.Same(t, a.Registry(), opts.Registry)
	assert.NotNil(t, opts.DispatcherOptions.OnResult)
	require.NotNil(t, opts.DispatcherOptions.Limiter)
	assert.Same(t, a.pace, opts.DispatcherOptions.Limiter)
	assert.NotNil(t, opts.OnStart)
	assert.NotNil(t, opts.OnStop)

	var names []string
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	assert.Equal(t, []string{"recover", "logger", "rate_limit", "metrics"}, names)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, e := range []any{"/start", "/stats", "/broadcast", "/send", "/verify", tele.OnCallback, tele.OnText} {
		assert.True(t, endpoints[e], "missing route %v", e)
	}
	assert.Len(t, opts.Routes, 7)
}

func TestLifecycle(t *testing.T) {
	cfg := testConfig(t)
	store := users.NewMemoryStore()
	a, err := Build(Options{Config: cfg, Store: store})
	require.NoError(t, err)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)

	b := offlineBot(t)
	ctx := context.Background()
	require.NoError(t, opts.OnStart(ctx, tg.Runtime{Bot: b, Registry: a.Registry()}))
	t.Cleanup(func() { _ = a.Close() })

	assert.Contains(t, a.catalog.ReferralLink(5), "https://t.me/ape_bot?start=5")
	require.NotNil(t, a.server)

	_, cmd, ok := a.Registry().LookupCommand("/start")
	require.True(t, ok)
	c := b.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		ID:     1,
		Sender: &tele.User{ID: 5, FirstName: "Ann"},
		Chat:   &tele.Chat{ID: 5, Type: tele.ChatPrivate},
		Text:   "/start",
	}})
	require.NoError(t, cmd.Handler(c))

	rec, err := store.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, users.StepVerify, rec.Step)

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + a.server.Addr() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), `airdrop_contacts_total{result="created"} 1`)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, opts.OnStop(ctx, tg.Runtime{Bot: b}))
	assert.Nil(t, a.server)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
