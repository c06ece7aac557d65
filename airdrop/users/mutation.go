package users

import (
	"fmt"
	"strings"
)

// Mutation is a single change to a Record. The set of mutations is closed:
// only this package can implement it.
type Mutation interface {
	apply(r *Record)
	// clause returns the SQL assignment with a single ? placeholder and its argument.
	clause() (string, any)
}

// SetHandle stores the handle captured in the verify step.
type SetHandle string

// SetWallet stores a wallet address.
type SetWallet string

// SetBalance overwrites the balance.
type SetBalance int64

// CreditBalance adds to the balance.
type CreditBalance int64

// IncrementReferrals adds to the referral count.
type IncrementReferrals int64

// SetStep moves the record to another step.
type SetStep Step

// SetVerified sets the verified flag.
type SetVerified bool

func (m SetHandle) apply(r *Record)          { r.Handle = string(m) }
func (m SetWallet) apply(r *Record)          { r.Wallet = string(m) }
func (m SetBalance) apply(r *Record)         { r.Balance = int64(m) }
func (m CreditBalance) apply(r *Record)      { r.Balance += int64(m) }
func (m IncrementReferrals) apply(r *Record) { r.Referrals += int64(m) }
func (m SetStep) apply(r *Record)            { r.Step = Step(m) }
func (m SetVerified) apply(r *Record)        { r.Verified = bool(m) }

func (m SetHandle) clause() (string, any)          { return "username = ?", string(m) }
func (m SetWallet) clause() (string, any)          { return "wallet = ?", string(m) }
func (m SetBalance) clause() (string, any)         { return "balance = ?", int64(m) }
func (m CreditBalance) clause() (string, any)      { return "balance = balance + ?", int64(m) }
func (m IncrementReferrals) clause() (string, any) { return "referrals = referrals + ?", int64(m) }
func (m SetStep) clause() (string, any)            { return "step = ?", string(m) }
func (m SetVerified) clause() (string, any)        { return "verified = ?", bool(m) }

// checkMutations rejects an empty batch and batches that touch one column twice.
func checkMutations(muts []Mutation) error {
	if len(muts) == 0 {
		return ErrNoMutations
	}
	seen := make(map[string]struct{}, len(muts))
	for _, m := range muts {
		col := column(m)
		if _, dup := seen[col]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateColumn, col)
		}
		seen[col] = struct{}{}
	}
	return nil
}

func column(m Mutation) string {
	expr, _ := m.clause()
	col, _, _ := strings.Cut(expr, " ")
	return col
}
