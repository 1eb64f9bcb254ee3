package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"ytsummarizer/internal/domain"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *models.CallbackQuery) error {
	data := strings.TrimSpace(callback.Data)
	chatID := callbackChatID(callback)
	userID := callback.From.ID

	if chatID == 0 {
		return b.answerCallback(ctx, callback, "")
	}

	switch data {
	case callbackMenu:
		return b.withEmptyCallbackAnswer(ctx, callback, func() error {
			return b.handleMenuCommand(ctx, chatID)
		})
	case callbackSettings:
		return b.withEmptyCallbackAnswer(ctx, callback, func() error {
			return b.handleSettingsCommand(ctx, chatID, userID)
		})
	case callbackProviders:
		return b.withEmptyCallbackAnswer(ctx, callback, func() error {
			return b.handleProviderCommand(ctx, chatID, userID, "")
		})
	case callbackClear:
		return b.withEmptyCallbackAnswer(ctx, callback, func() error {
			return b.handleClearCommand(ctx, chatID, userID)
		})
	case callbackSummarizeCurrent:
		return b.withEmptyCallbackAnswer(ctx, callback, func() error {
			return b.handleSummarizeCommand(ctx, chatID, userID, "")
		})
	}

	if raw, ok := strings.CutPrefix(data, callbackProviderPrefix); ok {
		return b.handleProviderQuery(ctx, raw, chatID, callback)
	}

	return b.answerCallback(ctx, callback, "")
}

func (b *Bot) handleProviderQuery(
	ctx context.Context,
	raw string,
	chatID int64,
	callback *models.CallbackQuery,
) error {
	provider, err := domain.ParseProvider(raw)
	if err != nil {
		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("parse provider: %w", err))
	}

	if err = b.setProvider(ctx, callback.From.ID, provider); err != nil {
		return b.errorCallbackAnswer(ctx, callback, err)
	}

	if err = b.answerCallback(ctx, callback, "✅ Provider is updated."); err != nil {
		return err
	}

	return b.handleSettingsCommand(ctx, chatID, callback.From.ID)
}

func (b *Bot) withEmptyCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if err := b.answerCallback(ctx, callback, ""); err != nil {
		errs = append(errs, b.errorCallbackAnswer(ctx, callback, err))
	}

	if err := fn(); err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) answerCallback(ctx context.Context, callback *models.CallbackQuery, text string) error {
	err := b.rateLimiter.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            text,
	})
	if err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	return nil
}

func (b *Bot) errorCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	err error,
) error {
	if sendErr := b.answerCallback(ctx, callback, "❌ Failed."); sendErr != nil {
		return errors.Join(err, sendErr)
	}

	return err
}
