// Package bot implements the Telegram transport: live intake from source
// channels, delivery to the target channel, and the review workflow.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsbot/internal/config"
	"newsbot/internal/model"
	"newsbot/internal/pipeline"
	"newsbot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// IntakeObserver is notified whenever an item arrives from a source.
type IntakeObserver interface {
	RecordIntake()
}

// Bot bridges Telegram and the intake pipeline.
type Bot struct {
	api      telegramAPI
	cfg      *config.Config
	store    storage.Ledger
	pipe     *pipeline.Pipeline
	observer IntakeObserver
	log      *slog.Logger
}

// New creates a Bot with the given Telegram token, ledger, and config.
// The pipeline is attached separately because it needs the bot as its sender.
func New(token string, store storage.Ledger, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:   api,
		cfg:   cfg,
		store: store,
		log:   log,
	}, nil
}

// SetPipeline attaches the intake pipeline. Must be called before Run.
func (b *Bot) SetPipeline(p *pipeline.Pipeline) {
	b.pipe = p
}

// SetIntakeObserver attaches an observer for intake liveness tracking.
func (b *Bot) SetIntakeObserver(o IntakeObserver) {
	b.observer = o
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.ChannelPost != nil:
		b.handleInbound(ctx, update.ChannelPost)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.handleInbound(ctx, update.Message)
	}
}

// handleInbound feeds a source-channel message into the pipeline.
func (b *Bot) handleInbound(ctx context.Context, msg *tgbotapi.Message) {
	if !b.cfg.IsSourceChat(msg.Chat.ID) {
		return
	}
	if b.observer != nil {
		b.observer.RecordIntake()
	}

	item := itemFromMessage(msg)
	outcome, err := b.pipe.Handle(ctx, item)
	if err != nil {
		b.log.Error("intake failed", "item_id", item.ID, "error", err)
		return
	}
	b.log.Debug("intake handled", "item_id", item.ID, "outcome", string(outcome))
}

// itemFromMessage converts a Telegram message into a pipeline item.
// The item id combines chat and message id so it is unique across sources.
func itemFromMessage(msg *tgbotapi.Message) model.Item {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	var media string
	if len(msg.Photo) > 0 {
		// The last photo size is the largest.
		media = msg.Photo[len(msg.Photo)-1].FileID
	}

	return model.Item{
		ID:         fmt.Sprintf("%d_%d", msg.Chat.ID, msg.MessageID),
		GroupID:    msg.MediaGroupID,
		Source:     sourceName(msg.Chat),
		Text:       text,
		Media:      media,
		ReceivedAt: time.Unix(int64(msg.Date), 0),
	}
}

func sourceName(chat *tgbotapi.Chat) string {
	if chat == nil {
		return "unknown"
	}
	if chat.Title != "" {
		return chat.Title
	}
	if chat.UserName != "" {
		return chat.UserName
	}
	return fmt.Sprintf("%d", chat.ID)
}

// Send publishes a post to the chat, as a photo with caption when media is
// set. Provider flood control maps to pipeline.ThrottledError.
func (b *Bot) Send(_ context.Context, chatID int64, text, media string) error {
	var msg tgbotapi.Chattable
	if media != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(media))
		photo.Caption = text
		msg = photo
	} else {
		m := tgbotapi.NewMessage(chatID, text)
		m.DisableWebPagePreview = true
		msg = m
	}

	if _, err := b.api.Send(msg); err != nil {
		return mapSendError(err)
	}
	return nil
}

// SendForReview posts to the review chat with approve/reject buttons.
func (b *Bot) SendForReview(_ context.Context, chatID int64, text, media string) error {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Skelbti", "approve"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Ištrinti", "reject"),
		),
	)

	var msg tgbotapi.Chattable
	if media != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(media))
		photo.Caption = text
		photo.ReplyMarkup = markup
		msg = photo
	} else {
		m := tgbotapi.NewMessage(chatID, text)
		m.DisableWebPagePreview = true
		m.ReplyMarkup = markup
		msg = m
	}

	if _, err := b.api.Send(msg); err != nil {
		return mapSendError(err)
	}
	return nil
}

func mapSendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return &pipeline.ThrottledError{RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
	}
	return fmt.Errorf("telegram send: %w", err)
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send reply", "chat_id", chatID, "error", err)
	}
}
