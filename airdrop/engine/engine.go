// Package engine drives the per-user conversation: first contact, free text
// in each step and the menu actions. Transitions return outbound effects
// instead of sending anything themselves.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/outbound"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/referral"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/texts"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/users"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/withdraw"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/logger"
)

// ErrUnknownAction is returned by HandleAction for tokens outside outbound.Actions.
var ErrUnknownAction = errors.New("engine: unknown action")

// Observer receives domain events. Implementations must not block.
type Observer interface {
	Contact(created bool)
	Referral(res referral.Result)
	Onboarded()
	WithdrawalRequested(req withdraw.Request)
}

type nopObserver struct{}

func (nopObserver) Contact(bool)                         {}
func (nopObserver) Referral(referral.Result)             {}
func (nopObserver) Onboarded()                           {}
func (nopObserver) WithdrawalRequested(withdraw.Request) {}

// Options wires the engine collaborators.
type Options struct {
	Store        users.Store
	Referrals    *referral.Ledger
	Withdrawals  *withdraw.Workflow
	Texts        *texts.Catalog
	AdminID      int64
	AirdropBonus int64
	Observer     Observer
	Now          func() time.Time
}

// Engine is the conversation state machine.
type Engine struct {
	store   users.Store
	refs    *referral.Ledger
	wd      *withdraw.Workflow
	texts   *texts.Catalog
	adminID int64
	bonus   int64
	obs     Observer
	now     func() time.Time
	locks   *keyedMutex
	log     *slog.Logger
}

// New builds an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		store:   opts.Store,
		refs:    opts.Referrals,
		wd:      opts.Withdrawals,
		texts:   opts.Texts,
		adminID: opts.AdminID,
		bonus:   opts.AirdropBonus,
		obs:     opts.Observer,
		now:     opts.Now,
		locks:   newKeyedMutex(),
		log:     logger.Component("service.engine"),
	}
	if e.obs == nil {
		e.obs = nopObserver{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func reply(msg outbound.Message) outbound.Effect {
	return outbound.Reply{Message: msg}
}

// Start handles first contact. The record is created when missing and the
// referral token is honoured only for that creating call. Existing records
// are left untouched and receive the welcome again.
func (e *Engine) Start(ctx context.Context, id int64, displayName, token string) ([]outbound.Effect, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	created, err := e.store.Create(ctx, id, displayName)
	if err != nil {
		return nil, fmt.Errorf("start %d: %w", id, err)
	}
	e.obs.Contact(created)

	if created && e.refs != nil {
		res, err := e.refs.Credit(ctx, id, token)
		if err != nil {
			logger.LogEvent(ctx, e.log, slog.LevelError, "referral.failed",
				slog.Int64("user_id", id),
				slog.Any("err", err),
			)
		} else {
			e.obs.Referral(res)
		}
	}

	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("start %d: %w", id, err)
	}
	logger.LogEvent(ctx, e.log, slog.LevelInfo, "contact",
		slog.Int64("user_id", id),
		slog.Bool("created", created),
		slog.String("step", string(rec.Step)),
	)
	return []outbound.Effect{reply(e.texts.Welcome(rec))}, nil
}

// HandleText routes free text according to the current step.
func (e *Engine) HandleText(ctx context.Context, id int64, displayName, text string) ([]outbound.Effect, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	rec, ok, err := e.load(ctx, id, displayName)
	if err != nil || !ok {
		return e.unknown(err)
	}

	text = strings.TrimSpace(text)
	switch rec.Step {
	case users.StepVerify:
		return e.captureHandle(ctx, rec, text)
	case users.StepWallet:
		return e.captureWallet(ctx, rec, text)
	case users.StepWithdrawAmount:
		return e.captureAmount(ctx, rec, text)
	case users.StepWithdrawWallet:
		return e.capturePayoutWallet(ctx, rec, text)
	default:
		return nil, nil
	}
}

// HandleAction renders a menu action. Only ActionWithdraw changes the record.
func (e *Engine) HandleAction(ctx context.Context, id int64, displayName string, action outbound.Action) ([]outbound.Effect, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	rec, ok, err := e.load(ctx, id, displayName)
	if err != nil || !ok {
		return e.unknown(err)
	}

	switch action {
	case outbound.ActionBalance:
		return []outbound.Effect{reply(e.texts.Balance(rec))}, nil
	case outbound.ActionInfo:
		return []outbound.Effect{reply(e.texts.Info())}, nil
	case outbound.ActionReferral:
		return []outbound.Effect{reply(e.texts.Referral(rec))}, nil
	case outbound.ActionSupport:
		return []outbound.Effect{reply(e.texts.Support(rec, e.wd.Window.InGrace(e.now())))}, nil
	case outbound.ActionMainMenu:
		return []outbound.Effect{reply(e.texts.MainMenu(rec))}, nil
	case outbound.ActionWithdraw:
		return e.enterWithdraw(ctx, rec)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// load returns the record, creating it when missing. ok is false for a
// record created by this call.
func (e *Engine) load(ctx context.Context, id int64, displayName string) (users.Record, bool, error) {
	rec, err := e.store.Get(ctx, id)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return users.Record{}, false, fmt.Errorf("load %d: %w", id, err)
	}
	created, err := e.store.Create(ctx, id, displayName)
	if err != nil {
		return users.Record{}, false, fmt.Errorf("create %d: %w", id, err)
	}
	e.obs.Contact(created)
	logger.LogEvent(ctx, e.log, slog.LevelInfo, "contact.implicit",
		slog.Int64("user_id", id),
		slog.Bool("created", created),
	)
	return users.Record{}, false, nil
}

func (e *Engine) unknown(err error) ([]outbound.Effect, error) {
	if err != nil {
		return nil, err
	}
	return []outbound.Effect{reply(e.texts.PleaseStart())}, nil
}

func (e *Engine) captureHandle(ctx context.Context, rec users.Record, text string) ([]outbound.Effect, error) {
	if _, err := e.store.Apply(ctx, rec.ID, users.SetHandle(text), users.SetStep(users.StepWallet)); err != nil {
		return nil, fmt.Errorf("capture handle %d: %w", rec.ID, err)
	}
	e.transition(ctx, rec.ID, users.StepVerify, users.StepWallet)
	return []outbound.Effect{reply(e.texts.AskWallet())}, nil
}

func (e *Engine) captureWallet(ctx context.Context, rec users.Record, text string) ([]outbound.Effect, error) {
	wallet, err := users.NormalizeWallet(text)
	if err != nil {
		return []outbound.Effect{reply(e.texts.InvalidWallet())}, nil
	}
	if _, err := e.store.Apply(ctx, rec.ID,
		users.SetWallet(wallet),
		users.CreditBalance(e.bonus),
		users.SetStep(users.StepDone),
	); err != nil {
		return nil, fmt.Errorf("capture wallet %d: %w", rec.ID, err)
	}
	e.transition(ctx, rec.ID, users.StepWallet, users.StepDone)
	e.obs.Onboarded()
	return []outbound.Effect{reply(e.texts.WalletAccepted())}, nil
}

func (e *Engine) enterWithdraw(ctx context.Context, rec users.Record) ([]outbound.Effect, error) {
	switch rec.Step {
	case users.StepVerify:
		return []outbound.Effect{reply(e.texts.Welcome(rec))}, nil
	case users.StepWallet:
		return []outbound.Effect{reply(e.texts.AskWallet())}, nil
	}
	if !e.wd.Window.IsOpen(e.now()) {
		return []outbound.Effect{reply(e.texts.WithdrawLocked())}, nil
	}
	e.wd.Forget(rec.ID)
	if rec.Step != users.StepWithdrawAmount {
		if _, err := e.store.Apply(ctx, rec.ID, users.SetStep(users.StepWithdrawAmount)); err != nil {
			return nil, fmt.Errorf("enter withdraw %d: %w", rec.ID, err)
		}
		e.transition(ctx, rec.ID, rec.Step, users.StepWithdrawAmount)
	}
	return []outbound.Effect{reply(e.texts.AskAmount())}, nil
}

func (e *Engine) captureAmount(ctx context.Context, rec users.Record, text string) ([]outbound.Effect, error) {
	amount, err := withdraw.ParseAmount(text)
	if err != nil {
		return []outbound.Effect{reply(e.texts.InvalidAmount())}, nil
	}
	if _, err := e.store.Apply(ctx, rec.ID, users.SetStep(users.StepWithdrawWallet)); err != nil {
		return nil, fmt.Errorf("capture amount %d: %w", rec.ID, err)
	}
	e.wd.RememberAmount(rec.ID, amount)
	e.transition(ctx, rec.ID, users.StepWithdrawAmount, users.StepWithdrawWallet)
	return []outbound.Effect{reply(e.texts.AskPayoutWallet())}, nil
}

func (e *Engine) capturePayoutWallet(ctx context.Context, rec users.Record, text string) ([]outbound.Effect, error) {
	wallet, err := users.NormalizeWallet(text)
	if err != nil {
		return []outbound.Effect{reply(e.texts.InvalidWallet())}, nil
	}
	updated, err := e.store.Apply(ctx, rec.ID, users.SetWallet(wallet), users.SetStep(users.StepDone))
	if err != nil {
		return nil, fmt.Errorf("capture payout wallet %d: %w", rec.ID, err)
	}
	e.transition(ctx, rec.ID, users.StepWithdrawWallet, users.StepDone)

	req := e.wd.Submit(rec.ID, wallet, updated.Balance, e.now())
	e.obs.WithdrawalRequested(req)
	logger.LogEvent(ctx, logger.Component("service.withdrawals"), slog.LevelInfo, "withdrawal.requested",
		slog.String("request_id", req.ID),
		slog.Int64("user_id", req.UserID),
		slog.String("amount", req.Amount.String()),
		slog.Bool("from_balance", req.FromBalance),
	)

	effects := []outbound.Effect{reply(e.texts.WithdrawInstructions())}
	if e.adminID != 0 {
		effects = append(effects, outbound.Notify{
			To:      e.adminID,
			Message: e.texts.WithdrawalRequest(req.ID, req.UserID, req.Amount, req.Wallet),
		})
	} else {
		logger.LogEvent(ctx, e.log, slog.LevelWarn, "withdrawal.no_admin",
			slog.String("request_id", req.ID),
		)
	}
	return append(effects, reply(e.texts.WithdrawSubmitted())), nil
}

func (e *Engine) transition(ctx context.Context, id int64, from, to users.Step) {
	logger.LogEvent(ctx, e.log, slog.LevelDebug, "step",
		slog.Int64("user_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}
