package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "chat_id", chatID, "user_id", msg.From.ID)

	switch cmd {
	case "start", "help":
		b.handleHelp(chatID)
	case "ping":
		b.reply(chatID, "pong")
	case "stats":
		b.handleStats(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `News forwarding bot.

Commands:
/stats — forwarding statistics
/ping — check the bot is alive
/help — this message

Sources and filters are configured via environment variables.`)
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	stats, err := b.store.Stats(ctx)
	if err != nil {
		b.log.Error("load stats", "error", err)
		b.reply(chatID, "Failed to load statistics.")
		return
	}
	b.reply(chatID, FormatStats(stats, b.cfg.MaxPostsPerDay))
}
