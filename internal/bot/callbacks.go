package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleCallback processes the review-channel buttons: approve publishes the
// reviewed post to the target chat, reject deletes it.
func (b *Bot) handleCallback(_ context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	ack := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Request(ack); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	b.log.Info("review callback",
		"action", cb.Data,
		"chat_id", chatID,
		"user_id", cb.From.ID,
	)

	switch cb.Data {
	case "approve":
		b.publishReviewed(cb.Message)
	case "reject":
		del := tgbotapi.NewDeleteMessage(chatID, messageID)
		if _, err := b.api.Request(del); err != nil {
			b.log.Error("delete rejected message", "error", err)
		}
	}
}

func (b *Bot) publishReviewed(reviewed *tgbotapi.Message) {
	text := reviewed.Text
	var media string
	if text == "" {
		text = reviewed.Caption
	}
	if len(reviewed.Photo) > 0 {
		media = reviewed.Photo[len(reviewed.Photo)-1].FileID
	}

	if err := b.Send(context.Background(), b.cfg.TargetChat, text, media); err != nil {
		b.log.Error("publish approved message", "error", err)
		return
	}

	published := "✅ PASKELBTA\n\n" + text
	edit := tgbotapi.NewEditMessageText(reviewed.Chat.ID, reviewed.MessageID, published)
	if _, err := b.api.Send(edit); err != nil {
		b.log.Error("edit reviewed message", "error", err)
	}
}
