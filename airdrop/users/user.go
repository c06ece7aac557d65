// Package users persists one record per Telegram identity and exposes the
// mutations the conversation is allowed to apply to it.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotFound is returned when no record exists for an identity.
	ErrNotFound = errors.New("users: not found")
	// ErrInvalidWallet is returned for addresses that are not 0x followed by 40 hex characters.
	ErrInvalidWallet = errors.New("users: invalid wallet address")
	// ErrNoMutations is returned by Apply when called without mutations.
	ErrNoMutations = errors.New("users: no mutations")
	// ErrDuplicateColumn is returned by Apply when two mutations touch the same column.
	ErrDuplicateColumn = errors.New("users: column mutated twice")
)

// Step is the position of a user in the onboarding and withdrawal sequence.
type Step string

const (
	StepVerify         Step = "verify"
	StepWallet         Step = "wallet"
	StepDone           Step = "done"
	StepWithdrawAmount Step = "withdraw_amount"
	StepWithdrawWallet Step = "withdraw_wallet"
)

// Steps lists every step in sequence order.
var Steps = []Step{StepVerify, StepWallet, StepDone, StepWithdrawAmount, StepWithdrawWallet}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	for _, known := range Steps {
		if s == known {
			return true
		}
	}
	return false
}

// Record is the persisted state of one user.
type Record struct {
	ID          int64     `db:"user_id"`
	DisplayName string    `db:"firstname"`
	Handle      string    `db:"username"`
	Wallet      string    `db:"wallet"`
	Balance     int64     `db:"balance"`
	Referrals   int64     `db:"referrals"`
	Step        Step      `db:"step"`
	Verified    bool      `db:"verified"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Stats aggregates all records.
type Stats struct {
	Users     int64 `db:"users"`
	Referrals int64 `db:"referrals"`
	Balance   int64 `db:"balance"`
}

// Store is the persistence contract for user records.
type Store interface {
	// Get returns ErrNotFound when the record does not exist; it never creates one.
	Get(ctx context.Context, id int64) (Record, error)
	// Create inserts a default record unless one exists and reports whether it inserted.
	Create(ctx context.Context, id int64, displayName string) (bool, error)
	// Apply performs all mutations atomically and returns the updated record.
	Apply(ctx context.Context, id int64, muts ...Mutation) (Record, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Aggregate(ctx context.Context) (Stats, error)
	CountByStep(ctx context.Context) (map[Step]int64, error)
}

// ValidWallet reports whether s is "0x" followed by exactly 40 hex characters.
func ValidWallet(s string) bool {
	return len(s) == 42 && strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// NormalizeWallet trims s and validates it.
func NormalizeWallet(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !ValidWallet(s) {
		return "", ErrInvalidWallet
	}
	return s, nil
}
