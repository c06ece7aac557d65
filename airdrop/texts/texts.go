// Package texts renders every user and admin facing message.
package texts

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/outbound"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/users"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/format"
)

const dateLayout = "02 January 2006"

// DefaultWithdrawInstructions is sent after a withdrawal request when no operator text is configured.
const DefaultWithdrawInstructions = "⏳ Your withdrawal is queued for manual review.\n\n" +
	"Tokens are sent to the wallet you provided once the team approves the request. " +
	"We will never ask you to send coins or pay a fee to receive your tokens."

// Options holds the values interpolated into messages.
type Options struct {
	TokenSymbol          string
	AirdropBonus         int64
	ReferralBonus        int64
	RequiredReferrals    int
	WithdrawOpen         time.Time
	GroupLink            string
	ChannelLink          string
	SupportLink          string
	WithdrawInstructions string
}

// Catalog renders messages. It is safe for concurrent use.
type Catalog struct {
	opts        Options
	symbolMD    string
	botUsername atomic.Value
}

// New builds a Catalog.
func New(opts Options) *Catalog {
	if strings.TrimSpace(opts.WithdrawInstructions) == "" {
		opts.WithdrawInstructions = DefaultWithdrawInstructions
	}
	c := &Catalog{opts: opts, symbolMD: format.EscapeMD(opts.TokenSymbol)}
	c.botUsername.Store("")
	return c
}

// SetBotUsername records the bot username used in referral links.
func (c *Catalog) SetBotUsername(name string) {
	c.botUsername.Store(strings.TrimPrefix(name, "@"))
}

// ReferralLink returns the deep link that attributes new users to id.
func (c *Catalog) ReferralLink(id int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", c.botUsername.Load().(string), id)
}

func (c *Catalog) date() string {
	return c.opts.WithdrawOpen.Format(dateLayout)
}

func md(text string, menu outbound.Menu) outbound.Message {
	return outbound.Message{Text: text, Format: outbound.Markdown, Menu: menu}
}

func plain(text string, menu outbound.Menu) outbound.Message {
	return outbound.Message{Text: text, Format: outbound.Plain, Menu: menu}
}

func name(r users.Record) string {
	if r.DisplayName == "" {
		return "there"
	}
	return r.DisplayName
}

// Welcome greets a user on /start.
func (c *Catalog) Welcome(r users.Record) outbound.Message {
	return outbound.Message{
		Text: fmt.Sprintf("👋 Hello %s!\n\nTo join the airdrop:\n1️⃣ Join our group: %s\n2️⃣ Join our channel: %s\n\n"+
			"Send a message to our group, then send me your Telegram username (e.g. @yourname).",
			name(r), c.opts.GroupLink, c.opts.ChannelLink),
		DisablePreview: true,
	}
}

// PleaseStart asks an unknown identity to begin onboarding.
func (c *Catalog) PleaseStart() outbound.Message {
	return plain("👋 Welcome! Send /start to join the airdrop.", outbound.MenuNone)
}

// AskWallet follows handle capture.
func (c *Catalog) AskWallet() outbound.Message {
	return md("✅ Thanks! Now send your *Ethereum wallet address* (0x followed by 40 hex characters):", outbound.MenuNone)
}

// InvalidWallet rejects a malformed address.
func (c *Catalog) InvalidWallet() outbound.Message {
	return md("❌ That does not look like a wallet address.\nPlease send an address like `0x` followed by 40 hex characters.", outbound.MenuNone)
}

// WalletAccepted confirms the airdrop credit.
func (c *Catalog) WalletAccepted() outbound.Message {
	return plain(fmt.Sprintf("🎉 Welcome! You received %d %s.\n\nUse the menu below:", c.opts.AirdropBonus, c.opts.TokenSymbol), outbound.MenuMain)
}

// MainMenu greets the user above the main keyboard.
func (c *Catalog) MainMenu(r users.Record) outbound.Message {
	return md(fmt.Sprintf("👋 %s! Use the menu below:", format.EscapeMD(name(r))), outbound.MenuMain)
}

// ReferralBalance is the part of the balance earned through referrals.
func (c *Catalog) ReferralBalance(r users.Record) int64 {
	return max(r.Balance-c.opts.AirdropBonus, 0)
}

// Balance renders the balance summary.
func (c *Catalog) Balance(r users.Record) outbound.Message {
	ref := c.ReferralBalance(r)
	msg := md(fmt.Sprintf("👤 Hello %s\n\n"+
		"🏆 Airdrop Balance: %d %s\n"+
		"🎁 Referral Balance: %d %s\n"+
		"👩‍👦‍👦 Referrals: %d\n\n"+
		"💰 Full Balance: %d %s\n\n"+
		"🗓️ Withdrawals open: %s\n"+
		"⚠️ Need %d referrals to withdraw.\n\n"+
		"🔗 Referral link:\n[Click here to invite friends](%s)",
		format.EscapeMD(name(r)),
		c.opts.AirdropBonus, c.symbolMD,
		ref, c.symbolMD,
		r.Referrals,
		c.opts.AirdropBonus+ref, c.symbolMD,
		c.date(),
		c.opts.RequiredReferrals,
		c.ReferralLink(r.ID),
	), outbound.MenuBack)
	msg.DisablePreview = true
	return msg
}

// Info renders the programme summary.
func (c *Catalog) Info() outbound.Message {
	return md(fmt.Sprintf("ℹ️ *Airdrop Info*\n\n"+
		"✅ Signup Bonus: %d %s\n"+
		"👥 Referral Reward: %d %s\n"+
		"💸 Withdrawals: %s\n\n"+
		"🚀 Keep inviting friends!",
		c.opts.AirdropBonus, c.symbolMD,
		c.opts.ReferralBonus, c.symbolMD,
		c.date(),
	), outbound.MenuBack)
}

// Referral renders the invite link.
func (c *Catalog) Referral(r users.Record) outbound.Message {
	msg := md(fmt.Sprintf("👥 Your referral link:\n[Click here to invite friends](%s)\n\nEarn %d %s per friend!",
		c.ReferralLink(r.ID), c.opts.ReferralBonus, c.symbolMD), outbound.MenuBack)
	msg.DisablePreview = true
	return msg
}

// Support renders the support screen. Within the grace window it reminds the
// user of the balance and open date.
func (c *Catalog) Support(r users.Record, inGrace bool) outbound.Message {
	var text string
	if inGrace {
		text = fmt.Sprintf("👋 Hello %s, we're excited to have you here!\n\n"+
			"💰 Your current balance: %d %s\n\n"+
			"🗓️ Withdrawals will open after %s.\n\n"+
			"👉 [Message Support](%s)",
			format.EscapeMD(name(r)), c.opts.AirdropBonus+c.ReferralBalance(r), c.symbolMD, c.date(), c.opts.SupportLink)
	} else {
		text = "👤 *Support Center*\n\n" +
			"If you have any problem with:\n\n" +
			"- Receiving airdrop tokens\n" +
			"- Your withdrawal request\n" +
			"- Transferring tokens\n\n" +
			fmt.Sprintf("👉 [Message Support](%s)", c.opts.SupportLink)
	}
	msg := md(text, outbound.MenuBack)
	msg.DisablePreview = true
	return msg
}

// WithdrawLocked is shown before the open date.
func (c *Catalog) WithdrawLocked() outbound.Message {
	return plain(fmt.Sprintf("⚠️ Withdrawals locked until %s", c.date()), outbound.MenuBack)
}

// AskAmount opens the withdrawal flow.
func (c *Catalog) AskAmount() outbound.Message {
	return md(fmt.Sprintf("💸 Enter the *amount of %s* to withdraw:", c.symbolMD), outbound.MenuBack)
}

// InvalidAmount asks for a positive number again.
func (c *Catalog) InvalidAmount() outbound.Message {
	return plain("Please send a valid positive amount to withdraw.", outbound.MenuNone)
}

// AskPayoutWallet follows amount capture.
func (c *Catalog) AskPayoutWallet() outbound.Message {
	return md("✅ Now send your *Ethereum wallet address* again:", outbound.MenuNone)
}

// WithdrawInstructions is the operator-defined text sent after a withdrawal request.
func (c *Catalog) WithdrawInstructions() outbound.Message {
	return plain(c.opts.WithdrawInstructions, outbound.MenuNone)
}

// WithdrawSubmitted acknowledges the request.
func (c *Catalog) WithdrawSubmitted() outbound.Message {
	return plain("✅ Withdrawal request submitted successfully!\nOur team will review and verify your request soon.", outbound.MenuMain)
}

// WithdrawalRequest is the admin notification for a new request.
func (c *Catalog) WithdrawalRequest(requestID string, userID int64, amount decimal.Decimal, wallet string) outbound.Message {
	return md(fmt.Sprintf("⚠️ *Withdrawal Request*\n\n"+
		"🆔 Request: `%s`\n"+
		"👤 User: [%d](tg://user?id=%d)\n"+
		"💰 Amount: %s %s\n"+
		"🏦 Wallet: `%s`\n\n"+
		"Use /verify %d to mark verified and notify user.",
		requestID, userID, userID, amount.String(), c.symbolMD, wallet, userID,
	), outbound.MenuNone)
}

// Verified tells a user the admin verified the withdrawal.
func (c *Catalog) Verified() outbound.Message {
	return plain("✅ Your withdrawal has been verified and processed successfully!", outbound.MenuNone)
}

// NotAuthorized refuses admin commands from other identities.
func (c *Catalog) NotAuthorized() outbound.Message {
	return plain("🚫 You are not authorized to use this command.", outbound.MenuNone)
}

// Stats renders aggregate counters for the admin.
func (c *Catalog) Stats(st users.Stats) outbound.Message {
	return plain(fmt.Sprintf("📊 Bot Stats:\n👥 Total Users: %d\n👥 Total Referrals: %d\n💰 Total Distributed: %d %s",
		st.Users, st.Referrals, st.Balance, c.opts.TokenSymbol), outbound.MenuNone)
}

// Usage explains the arguments of an admin command.
func (c *Catalog) Usage(usage string) outbound.Message {
	return plain("Usage: "+usage, outbound.MenuNone)
}

// InvalidUserID rejects a non-numeric identity argument.
func (c *Catalog) InvalidUserID() outbound.Message {
	return plain("Invalid user ID. Please provide a numeric ID.", outbound.MenuNone)
}

// BroadcastDone reports how many recipients received a broadcast.
func (c *Catalog) BroadcastDone(delivered, total int) outbound.Message {
	return plain(fmt.Sprintf("✅ Broadcast sent to %d of %d users.", delivered, total), outbound.MenuNone)
}

// SendDone confirms a direct message.
func (c *Catalog) SendDone(to int64) outbound.Message {
	return plain(fmt.Sprintf("✅ Message sent to user %d.", to), outbound.MenuNone)
}

// SendFailed echoes a delivery diagnostic to the admin.
func (c *Catalog) SendFailed(err error) outbound.Message {
	return plain(fmt.Sprintf("⚠️ Failed to send message: %v", err), outbound.MenuNone)
}

// VerifyDone confirms the verification.
func (c *Catalog) VerifyDone(id int64) outbound.Message {
	return plain(fmt.Sprintf("✅ User %d notified of verification.", id), outbound.MenuNone)
}

// VerifyFailed reports a verification problem to the admin.
func (c *Catalog) VerifyFailed(err error) outbound.Message {
	return plain(fmt.Sprintf("⚠️ Error verifying user: %v", err), outbound.MenuNone)
}

// Unavailable is the generic reply when a request could not be processed.
func (c *Catalog) Unavailable() outbound.Message {
	return plain("⚠️ Something went wrong, please try again in a moment.", outbound.MenuNone)
}

// RateLimited is shown when a user sends updates too quickly.
func (c *Catalog) RateLimited() outbound.Message {
	return plain("⏳ Too many requests, slow down a little.", outbound.MenuNone)
}
