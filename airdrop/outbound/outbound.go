// Package outbound describes messages the airdrop services want delivered,
// independent of the Telegram transport.
package outbound

import "context"

// Format selects how Text is parsed by the client.
type Format int

const (
	Plain Format = iota
	Markdown
)

// Menu names the keyboard attached to a message.
type Menu int

const (
	MenuNone Menu = iota
	// MenuMain shows balance, info, referral, withdraw and support.
	MenuMain
	// MenuBack shows a single return-to-menu button.
	MenuBack
)

// Action is a discrete menu action token.
type Action string

const (
	ActionBalance  Action = "balance"
	ActionInfo     Action = "info"
	ActionReferral Action = "referral"
	ActionWithdraw Action = "withdraw"
	ActionSupport  Action = "support"
	ActionMainMenu Action = "main_menu"
)

// Actions lists every menu action.
var Actions = []Action{ActionBalance, ActionInfo, ActionReferral, ActionWithdraw, ActionSupport, ActionMainMenu}

// Message is a single outbound text.
type Message struct {
	Text           string
	Format         Format
	Menu           Menu
	DisablePreview bool
}

// Sender delivers a message to an arbitrary identity and waits for the result.
type Sender interface {
	Send(ctx context.Context, to int64, msg Message) error
}

// Effect is produced by a transition. The set is closed: Reply or Notify.
type Effect interface {
	effect()
}

// Reply answers the identity that triggered the transition.
type Reply struct {
	Message
}

// Notify sends to another identity on a best-effort basis.
type Notify struct {
	To int64
	Message
}

func (Reply) effect()  {}
func (Notify) effect() {}
