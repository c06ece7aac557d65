package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/Diamond001cloud/webhook-ape-airdrop1/core/config"
	coredatabase "github.com/Diamond001cloud/webhook-ape-airdrop1/core/database"
)

func minimal() *Config {
	cfg := Defaults()
	cfg.Telegram = coreconfig.TelegramConfig{Token: "t"}
	cfg.Database = coredatabase.Config{Name: "airdrop"}
	return &cfg
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := minimal()
	require.NoError(t, Normalize(cfg))

	a := cfg.Airdrop
	assert.Equal(t, "$ApeCoin", a.TokenSymbol)
	assert.Equal(t, int64(1000), a.Bonus)
	assert.Equal(t, int64(200), a.ReferralBonus)
	assert.Equal(t, 7, a.RequiredReferrals)
	assert.Equal(t, 3, a.GraceDays)
	assert.Equal(t, "https://t.me/Apecoingroupchat", a.GroupLink)
	assert.Equal(t, time.UTC, a.Location)
	assert.Equal(t, time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC), a.WithdrawOpen)
	assert.Equal(t, 60, cfg.Metrics.RefreshSeconds)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestNormalizeParsesDateInTimezone(t *testing.T) {
	cfg := minimal()
	cfg.Airdrop.Timezone = "Europe/Berlin"
	cfg.Airdrop.WithdrawDate = "01.12.2025"
	require.NoError(t, Normalize(cfg))

	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	assert.True(t, cfg.Airdrop.WithdrawOpen.Equal(time.Date(2025, 12, 1, 0, 0, 0, 0, loc)))
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"date":     func(c *Config) { c.Airdrop.WithdrawDate = "soon" },
		"timezone": func(c *Config) { c.Airdrop.Timezone = "Mars/Olympus" },
		"bonus":    func(c *Config) { c.Airdrop.Bonus = -1 },
		"grace":    func(c *Config) { c.Airdrop.GraceDays = -2 },
		"rate":     func(c *Config) { c.Airdrop.BroadcastRate = -5 },
		"database": func(c *Config) { c.Database.Name = "" },
		"token":    func(c *Config) { c.Telegram.Token = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := minimal()
			mutate(cfg)
			assert.Error(t, Normalize(cfg))
		})
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `telegram:
  token: from-file
  admin_id: 5
database:
  name: airdrop
airdrop:
  bonus: 500
  group_link: https://t.me/file_group
metrics:
  listen: 127.0.0.1:9100
session_ttl: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("REF_BONUS", "50")
	t.Setenv("WITHDRAW_DATE", "2026-01-15")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Telegram.Token)
	assert.Equal(t, int64(5), cfg.Telegram.AdminID)
	assert.Equal(t, "airdrop", cfg.Database.Name)
	assert.Equal(t, int64(500), cfg.Airdrop.Bonus)
	assert.Equal(t, int64(50), cfg.Airdrop.ReferralBonus)
	assert.Equal(t, "https://t.me/file_group", cfg.Airdrop.GroupLink)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), cfg.Airdrop.WithdrawOpen)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Listen)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadKeepsExplicitZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `telegram:
  token: t
database:
  name: airdrop
airdrop:
  grace_days: 0
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("AIRDROP_BONUS", "0")
	t.Setenv("REF_BONUS", "0")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Airdrop.Bonus)
	assert.Zero(t, cfg.Airdrop.ReferralBonus)
	assert.Zero(t, cfg.Airdrop.GraceDays)
}

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	t.Setenv("DB_NAME", "airdrop")
	t.Setenv("BOT_TOKEN", "t")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cfg.Airdrop.Bonus)
	assert.Equal(t, int64(200), cfg.Airdrop.ReferralBonus)
	assert.Equal(t, 3, cfg.Airdrop.GraceDays)
}

func TestNormalizeKeepsZeroBonuses(t *testing.T) {
	cfg := minimal()
	cfg.Airdrop.Bonus = 0
	cfg.Airdrop.ReferralBonus = 0
	cfg.Airdrop.GraceDays = 0
	require.NoError(t, Normalize(cfg))
	assert.Zero(t, cfg.Airdrop.Bonus)
	assert.Zero(t, cfg.Airdrop.ReferralBonus)
	assert.Zero(t, cfg.Airdrop.GraceDays)
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Setenv("DB_NAME", "airdrop")
	t.Setenv("APECOIN_BOT_TOKEN", "legacy-token")
	t.Setenv("APECOIN_ADMIN_ID", "42")
	t.Setenv("APECOIN_SUPPORT_LINK", "https://t.me/legacy_support")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.Equal(t, "https://t.me/legacy_support", cfg.Airdrop.SupportLink)
}

func TestLoadPrefersCurrentEnvOverLegacy(t *testing.T) {
	t.Setenv("DB_NAME", "airdrop")
	t.Setenv("BOT_TOKEN", "current")
	t.Setenv("APECOIN_BOT_TOKEN", "legacy")
	t.Setenv("TELEGRAM_ADMIN_ID", "7")
	t.Setenv("APECOIN_ADMIN_ID", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "current", cfg.Telegram.Token)
	assert.Equal(t, int64(7), cfg.Telegram.AdminID)
}

func TestLoadRejectsBadLegacyAdminID(t *testing.T) {
	t.Setenv("DB_NAME", "airdrop")
	t.Setenv("BOT_TOKEN", "t")
	t.Setenv("APECOIN_ADMIN_ID", "admin")

	_, err := Load("")
	assert.Error(t, err)
}
