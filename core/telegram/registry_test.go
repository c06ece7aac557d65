package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "d"}))
	assert.Error(t, reg.RegisterCommand("/start", commands.Command{Description: "d"}))
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "d"}))
	assert.Error(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "d"}))
}

func TestListCommandsHidesAdmin(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"}))
	require.NoError(t, reg.RegisterCommand("/stats", commands.Command{Handler: noop, Description: "Stats", AdminOnly: true}))

	visible := reg.ListCommands(true)
	require.Len(t, visible, 1)
	assert.Equal(t, "start", visible[0].Text)
	assert.Len(t, reg.ListCommands(false), 2)
}

func TestLookupCommand(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start", Aliases: []string{"begin"}}))

	for _, in := range []string{"/start", "start", "/start 123", "/start@airdrop_bot", "/begin"} {
		key, _, ok := reg.LookupCommand(in)
		assert.True(t, ok, in)
		assert.Equal(t, "/start", key, in)
	}
	_, _, ok := reg.LookupCommand("hello")
	assert.False(t, ok)
	_, _, ok = reg.LookupCommand("   ")
	assert.False(t, ok)
}

func TestRegisterCallbackDuplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("verify", noop))
	assert.Error(t, reg.RegisterCallback("verify", noop))
	assert.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.GetCallback("verify")
	assert.True(t, ok)
	assert.Equal(t, []string{"verify"}, reg.ListCallbacks())
}
