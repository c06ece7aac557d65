package bot

import (
	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/outbound"
	"github.com/Diamond001cloud/webhook-ape-airdrop1/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

var (
	mainMenuButtons = []keyboard.InlineBtn{
		{Text: "💰 Balance", Unique: string(outbound.ActionBalance)},
		{Text: "ℹ️ Info", Unique: string(outbound.ActionInfo)},
		{Text: "👥 Referral", Unique: string(outbound.ActionReferral)},
		{Text: "💸 Withdraw", Unique: string(outbound.ActionWithdraw)},
		{Text: "👤 Support", Unique: string(outbound.ActionSupport)},
	}
	backButtons = []keyboard.InlineBtn{
		{Text: "🔙 MAIN MENU", Unique: string(outbound.ActionMainMenu)},
	}
)

// MainMenu is the five-action keyboard, two buttons per row.
func MainMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsNPerRow(mainMenuButtons, 2)
}

// BackMenu holds the single return-to-menu button.
func BackMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtons(backButtons)
}

func markup(m outbound.Menu) *tele.ReplyMarkup {
	switch m {
	case outbound.MenuMain:
		return MainMenu()
	case outbound.MenuBack:
		return BackMenu()
	default:
		return nil
	}
}

// SendOptions maps a message's format, menu and preview flag to telebot options.
func SendOptions(msg outbound.Message) *tele.SendOptions {
	opts := &tele.SendOptions{
		ReplyMarkup:           markup(msg.Menu),
		DisableWebPagePreview: msg.DisablePreview,
	}
	if msg.Format == outbound.Markdown {
		opts.ParseMode = tele.ModeMarkdown
	}
	return opts
}
