// Package bot is the Telegram front end: free text becomes reminder
// requests, commands manage what is already scheduled.
package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *Handlers
	logger   *slog.Logger
}

func New(api *tgbotapi.BotAPI, handlers *Handlers, logger *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		handlers: handlers,
		logger:   logger,
	}
}

// Start consumes the update long-poll until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("telegram bot started", "account", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}

	if update.Message.IsCommand() {
		b.handlers.HandleCommand(ctx, update.Message)
		return
	}

	b.handlers.HandleMessage(ctx, update.Message)
}
