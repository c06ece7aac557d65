package texts

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/outbound"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/users"
)

func catalog() *Catalog {
	c := New(Options{
		TokenSymbol:       "$ApeCoin",
		AirdropBonus:      1000,
		ReferralBonus:     200,
		RequiredReferrals: 7,
		WithdrawOpen:      time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC),
		SupportLink:       "https://t.me/support",
	})
	c.SetBotUsername("@ape_airdrop_bot")
	return c
}

func TestReferralLink(t *testing.T) {
	assert.Equal(t, "https://t.me/ape_airdrop_bot?start=42", catalog().ReferralLink(42))
}

func TestBalanceSplitsReferralPart(t *testing.T) {
	c := catalog()
	msg := c.Balance(users.Record{ID: 42, DisplayName: "Ann_B", Balance: 1400, Referrals: 2})

	assert.Equal(t, outbound.Markdown, msg.Format)
	assert.Equal(t, outbound.MenuBack, msg.Menu)
	assert.True(t, msg.DisablePreview)
	assert.Contains(t, msg.Text, `Hello Ann\_B`)
	assert.Contains(t, msg.Text, "Referral Balance: 400")
	assert.Contains(t, msg.Text, "Full Balance: 1400")
	assert.Contains(t, msg.Text, "30 November 2025")
	assert.Contains(t, msg.Text, "Need 7 referrals")
	assert.Contains(t, msg.Text, "start=42")
}

func TestReferralBalanceNeverNegative(t *testing.T) {
	assert.Equal(t, int64(0), catalog().ReferralBalance(users.Record{Balance: 200}))
}

func TestSupportBranches(t *testing.T) {
	c := catalog()
	r := users.Record{DisplayName: "Ann", Balance: 1000}
	assert.Contains(t, c.Support(r, true).Text, "Withdrawals will open after 30 November 2025")
	assert.Contains(t, c.Support(r, false).Text, "Support Center")
}

func TestWithdrawalRequestCarriesDetails(t *testing.T) {
	msg := catalog().WithdrawalRequest("req-1", 42, decimal.RequireFromString("150.5"), "0x614d8bdc87607ed477b14f8d69ff02259bb435cb")
	assert.Contains(t, msg.Text, "req-1")
	assert.Contains(t, msg.Text, "tg://user?id=42")
	assert.Contains(t, msg.Text, "150.5")
	assert.Contains(t, msg.Text, "0x614d8bdc87607ed477b14f8d69ff02259bb435cb")
	assert.Contains(t, msg.Text, "/verify 42")
}

func TestDefaultInstructionsDoNotSolicitPayment(t *testing.T) {
	msg := catalog().WithdrawInstructions()
	assert.Equal(t, DefaultWithdrawInstructions, msg.Text)

	custom := New(Options{WithdrawInstructions: "Processing takes 48h."})
	assert.Equal(t, "Processing takes 48h.", custom.WithdrawInstructions().Text)
}

func TestLockedNamesOpenDate(t *testing.T) {
	assert.Equal(t, "⚠️ Withdrawals locked until 30 November 2025", catalog().WithdrawLocked().Text)
}
