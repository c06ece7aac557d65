// Package withdraw holds the withdrawal window rules and the transient state
// collected between the amount and wallet prompts.
package withdraw

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	tghelpers "github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/helpers"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/state"
)

// ErrInvalidAmount is returned for amounts that are not positive decimals.
var ErrInvalidAmount = errors.New("withdraw: invalid amount")

const amountKey = "withdraw_amount"

// Window decides whether withdrawals are open. Days are compared in Location.
type Window struct {
	Open      time.Time
	GraceDays int
	Location  *time.Location
}

func (w Window) day(t time.Time) time.Time {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	return tghelpers.StartOfDay(t.In(loc))
}

// IsOpen reports whether now falls on or after the open date.
func (w Window) IsOpen(now time.Time) bool {
	return !w.day(now).Before(w.day(w.Open))
}

// InGrace reports whether now is no later than GraceDays after the open date.
func (w Window) InGrace(now time.Time) bool {
	return !w.day(now).After(w.day(w.Open).AddDate(0, 0, w.GraceDays))
}

// ParseAmount parses a positive decimal. Thousands separators and a leading
// currency sign are not accepted.
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Request is a submitted withdrawal awaiting admin review.
type Request struct {
	ID     string
	UserID int64
	Amount decimal.Decimal
	Wallet string
	// FromBalance is set when no amount was remembered and the balance was reported instead.
	FromBalance bool
	CreatedAt   time.Time
}

// Workflow keeps the claimed amount between prompts and builds requests.
type Workflow struct {
	Window  Window
	session state.Manager
	newID   func() string
}

// NewWorkflow creates a Workflow backed by session storage.
func NewWorkflow(window Window, session state.Manager) *Workflow {
	return &Workflow{
		Window:  window,
		session: session,
		newID:   func() string { return uuid.NewString() },
	}
}

// RememberAmount stores the claimed amount for userID.
func (w *Workflow) RememberAmount(userID int64, amount decimal.Decimal) {
	w.session.SetTemp(userID, amountKey, amount)
}

// Forget drops any remembered amount.
func (w *Workflow) Forget(userID int64) {
	w.session.ClearTemp(userID, amountKey)
}

// Submit consumes the remembered amount and returns the request. When the
// amount is gone the current balance is used.
func (w *Workflow) Submit(userID int64, wallet string, balance int64, now time.Time) Request {
	req := Request{
		ID:        w.newID(),
		UserID:    userID,
		Wallet:    wallet,
		CreatedAt: now,
	}
	if v, ok := w.session.TakeTemp(userID, amountKey); ok {
		if amt, ok := v.(decimal.Decimal); ok {
			req.Amount = amt
			return req
		}
	}
	req.Amount = decimal.NewFromInt(balance)
	req.FromBalance = true
	return req
}
