// Package referral credits referrers when a new user arrives through their link.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/users"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/logger"
)

// Skip reasons reported by Credit.
const (
	SkipNoToken         = "no_token"
	SkipInvalidToken    = "invalid_token"
	SkipSelf            = "self"
	SkipUnknownReferrer = "unknown_referrer"
)

// Result describes what Credit did.
type Result struct {
	Credited bool
	Referrer users.Record
	// Reason is set when nothing was credited.
	Reason string
}

// Ledger applies referral bonuses.
type Ledger struct {
	store users.Store
	bonus int64
	log   *slog.Logger
}

// NewLedger creates a Ledger paying bonus per referral.
func NewLedger(store users.Store, bonus int64) *Ledger {
	return &Ledger{store: store, bonus: bonus, log: logger.Component("service.referrals")}
}

// ParseToken extracts the referrer id from a /start payload.
func ParseToken(token string) (int64, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Credit pays the referrer named by token for newUserID. Invalid, self and
// unknown referrals are skipped without error. Callers invoke it only when the
// new user's record was just created.
func (l *Ledger) Credit(ctx context.Context, newUserID int64, token string) (Result, error) {
	if strings.TrimSpace(token) == "" {
		return Result{Reason: SkipNoToken}, nil
	}
	refID, ok := ParseToken(token)
	if !ok {
		l.skip(ctx, newUserID, SkipInvalidToken)
		return Result{Reason: SkipInvalidToken}, nil
	}
	if refID == newUserID {
		l.skip(ctx, newUserID, SkipSelf)
		return Result{Reason: SkipSelf}, nil
	}

	rec, err := l.store.Apply(ctx, refID, users.CreditBalance(l.bonus), users.IncrementReferrals(1))
	if errors.Is(err, users.ErrNotFound) {
		l.skip(ctx, newUserID, SkipUnknownReferrer)
		return Result{Reason: SkipUnknownReferrer}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("credit referrer %d: %w", refID, err)
	}

	logger.LogEvent(ctx, l.log, slog.LevelInfo, "referral.credited",
		slog.Int64("referrer_id", refID),
		slog.Int64("referred_id", newUserID),
		slog.Int64("bonus", l.bonus),
		slog.Int64("referrals", rec.Referrals),
	)
	return Result{Credited: true, Referrer: rec}, nil
}

func (l *Ledger) skip(ctx context.Context, newUserID int64, reason string) {
	logger.LogEvent(ctx, l.log, slog.LevelDebug, "referral.skip",
		slog.Int64("referred_id", newUserID),
		slog.String("reason", reason),
	)
}
