// Package config loads the airdrop bot configuration on top of the core config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	coreconfig "github.com/Diamond001cloud/webhook-ape-airdrop1/core/config"
	coredatabase "github.com/Diamond001cloud/webhook-ape-airdrop1/core/database"
	tghelpers "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/helpers"
)

// AirdropConfig holds the promotion parameters.
type AirdropConfig struct {
	TokenSymbol       string `yaml:"token_symbol" envconfig:"TOKEN_SYMBOL"`
	Bonus             int64  `yaml:"bonus" envconfig:"AIRDROP_BONUS"`
	ReferralBonus     int64  `yaml:"referral_bonus" envconfig:"REF_BONUS"`
	RequiredReferrals int    `yaml:"required_referrals" envconfig:"REQUIRED_REFERRALS"`
	// WithdrawDate accepts 2006-01-02, 02.01.2006 and 02/01/2006 forms.
	WithdrawDate string `yaml:"withdraw_date" envconfig:"WITHDRAW_DATE"`
	GraceDays    int    `yaml:"grace_days" envconfig:"WITHDRAW_GRACE_DAYS"`
	Timezone     string `yaml:"timezone" envconfig:"AIRDROP_TIMEZONE"`
	GroupLink    string `yaml:"group_link" envconfig:"GROUP_LINK"`
	ChannelLink  string `yaml:"channel_link" envconfig:"CHANNEL_LINK"`
	SupportLink  string `yaml:"support_link" envconfig:"SUPPORT_LINK"`
	// WithdrawInstructions replaces the default text sent after a withdrawal request.
	WithdrawInstructions string `yaml:"withdraw_instructions" envconfig:"WITHDRAW_INSTRUCTIONS"`
	// BroadcastRate is admin broadcast messages per second.
	BroadcastRate float64 `yaml:"broadcast_rate" envconfig:"BROADCAST_RATE"`

	// Resolved by Normalize.
	WithdrawOpen time.Time      `yaml:"-" ignored:"true"`
	Location     *time.Location `yaml:"-" ignored:"true"`
}

// MetricsConfig controls the Prometheus endpoint and maintenance jobs.
type MetricsConfig struct {
	// Listen is the metrics HTTP address; empty disables the endpoint.
	Listen         string `yaml:"listen" envconfig:"METRICS_LISTEN"`
	RefreshSeconds int    `yaml:"refresh_seconds" envconfig:"METRICS_REFRESH_SECONDS"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Airdrop  AirdropConfig       `yaml:"airdrop"`
	Metrics  MetricsConfig       `yaml:"metrics"`

	// SessionTTL bounds how long a claimed withdrawal amount is remembered.
	SessionTTL time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// legacyEnv maps the variable names used by earlier deployments.
var legacyEnv = []struct {
	name string
	set  func(c *Config, v string) error
}{
	{"APECOIN_BOT_TOKEN", func(c *Config, v string) error {
		if c.Telegram.Token == "" {
			c.Telegram.Token = v
		}
		return nil
	}},
	{"TOKEN", func(c *Config, v string) error {
		if c.Telegram.Token == "" {
			c.Telegram.Token = v
		}
		return nil
	}},
	{"APECOIN_ADMIN_ID", func(c *Config, v string) error {
		if c.Telegram.AdminID != 0 {
			return nil
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("APECOIN_ADMIN_ID: %w", err)
		}
		c.Telegram.AdminID = id
		return nil
	}},
	{"APECOIN_GROUP_LINK", func(c *Config, v string) error {
		if c.Airdrop.GroupLink == "" {
			c.Airdrop.GroupLink = v
		}
		return nil
	}},
	{"APECOIN_CHANNEL_LINK", func(c *Config, v string) error {
		if c.Airdrop.ChannelLink == "" {
			c.Airdrop.ChannelLink = v
		}
		return nil
	}},
	{"APECOIN_SUPPORT_LINK", func(c *Config, v string) error {
		if c.Airdrop.SupportLink == "" {
			c.Airdrop.SupportLink = v
		}
		return nil
	}},
}

// Defaults returns the promotion values used when neither the file nor the
// environment sets them. Zero is a valid setting for each of them.
func Defaults() Config {
	return Config{
		Airdrop: AirdropConfig{
			Bonus:         1000,
			ReferralBonus: 200,
			GraceDays:     3,
		},
	}
}

// Load reads YAML from path, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	for _, l := range legacyEnv {
		if v := strings.TrimSpace(os.Getenv(l.name)); v != "" {
			if err := l.set(&cfg, v); err != nil {
				return nil, err
			}
		}
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}
	if err := cfg.Airdrop.normalize(); err != nil {
		return err
	}
	if cfg.Metrics.RefreshSeconds <= 0 {
		cfg.Metrics.RefreshSeconds = 60
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return nil
}

func (a *AirdropConfig) normalize() error {
	if a.TokenSymbol == "" {
		a.TokenSymbol = "$ApeCoin"
	}
	if a.GroupLink == "" {
		a.GroupLink = "https://t.me/Apecoingroupchat"
	}
	if a.ChannelLink == "" {
		a.ChannelLink = "https://t.me/Apetelegramchannel"
	}
	if a.SupportLink == "" {
		a.SupportLink = "https://t.me/MillionairevaultAi"
	}
	if a.Bonus < 0 || a.ReferralBonus < 0 {
		return fmt.Errorf("airdrop.bonus and airdrop.referral_bonus must be >= 0")
	}
	if a.RequiredReferrals <= 0 {
		a.RequiredReferrals = 7
	}
	if a.GraceDays < 0 {
		return fmt.Errorf("airdrop.grace_days must be >= 0")
	}
	if a.BroadcastRate < 0 {
		return fmt.Errorf("airdrop.broadcast_rate must be >= 0")
	}

	loc := time.UTC
	if tz := strings.TrimSpace(a.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid airdrop.timezone %q: %w", tz, err)
		}
		loc = l
	}
	a.Location = loc

	if strings.TrimSpace(a.WithdrawDate) == "" {
		a.WithdrawDate = "2025-11-30"
	}
	open, ok := tghelpers.ParseFlexibleDate(a.WithdrawDate, loc)
	if !ok {
		return fmt.Errorf("invalid airdrop.withdraw_date %q", a.WithdrawDate)
	}
	a.WithdrawOpen = open
	return nil
}
