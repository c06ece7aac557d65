package withdraw

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/state"
)

func window() Window {
	loc := time.FixedZone("UTC+3", 3*3600)
	return Window{
		Open:      time.Date(2025, 11, 30, 0, 0, 0, 0, loc),
		GraceDays: 3,
		Location:  loc,
	}
}

func TestWindowIsOpen(t *testing.T) {
	w := window()
	loc := w.Location

	assert.False(t, w.IsOpen(time.Date(2025, 11, 29, 23, 59, 0, 0, loc)))
	assert.True(t, w.IsOpen(time.Date(2025, 11, 30, 0, 0, 0, 0, loc)))
	assert.True(t, w.IsOpen(time.Date(2026, 1, 1, 0, 0, 0, 0, loc)))
	// 21:30 UTC on the 29th is already the 30th in UTC+3.
	assert.True(t, w.IsOpen(time.Date(2025, 11, 29, 21, 30, 0, 0, time.UTC)))
}

func TestWindowInGrace(t *testing.T) {
	w := window()
	loc := w.Location

	assert.True(t, w.InGrace(time.Date(2025, 11, 1, 12, 0, 0, 0, loc)))
	assert.True(t, w.InGrace(time.Date(2025, 12, 3, 23, 0, 0, 0, loc)))
	assert.False(t, w.InGrace(time.Date(2025, 12, 4, 0, 0, 0, 0, loc)))
}

func TestParseAmount(t *testing.T) {
	for _, in := range []string{"150", " 0.5 ", "1e3", "1000.25"} {
		_, err := ParseAmount(in)
		assert.NoError(t, err, in)
	}
	for _, in := range []string{"", "abc", "-5", "0", "1,000", "$10"} {
		_, err := ParseAmount(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
	d, err := ParseAmount("150.50")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("150.5")))
}

func TestSubmitConsumesRememberedAmount(t *testing.T) {
	wf := NewWorkflow(window(), state.NewMemoryManager(0))
	wf.newID = func() string { return "req-1" }
	now := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)

	wf.RememberAmount(42, decimal.NewFromInt(150))
	req := wf.Submit(42, "0xabc", 1400, now)
	assert.Equal(t, "req-1", req.ID)
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(150)))
	assert.False(t, req.FromBalance)
	assert.Equal(t, now, req.CreatedAt)

	req = wf.Submit(42, "0xabc", 1400, now)
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(1400)))
	assert.True(t, req.FromBalance)
}

func TestForget(t *testing.T) {
	wf := NewWorkflow(window(), state.NewMemoryManager(0))
	wf.RememberAmount(1, decimal.NewFromInt(5))
	wf.Forget(1)
	req := wf.Submit(1, "0xabc", 0, time.Now())
	assert.True(t, req.FromBalance)
	assert.NotEmpty(t, req.ID)
}
