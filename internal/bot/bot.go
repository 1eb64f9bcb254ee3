package bot

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"ytsummarizer/internal/domain"
	"ytsummarizer/internal/ratelimiter"
	"ytsummarizer/internal/session"
)

const updateProcessingTimeout = 3 * time.Minute

// SettingsStore persists provider settings per user.
type SettingsStore interface {
	ProviderSettings(ctx context.Context, userID int64) (domain.ProviderSettings, error)
	UpsertProviderSettings(ctx context.Context, settings domain.ProviderSettings) error
	ClearProviderSettings(ctx context.Context, userID int64) error
}

type Bot struct {
	api              *bot.Bot
	rateLimiter      *ratelimiter.RateLimiter
	settings         SettingsStore
	sessions         *session.Manager
	allowedUsers     []int64
	menuKeyboard     *models.InlineKeyboardMarkup
	providerKeyboard *models.InlineKeyboardMarkup
	returnKeyboard   *models.InlineKeyboardMarkup
	log              *slog.Logger
}

func New(
	token string,
	settings SettingsStore,
	sessions *session.Manager,
	allowedUsers []int64,
	log *slog.Logger,
	opts ...bot.Option,
) (*Bot, error) {
	b := &Bot{
		settings:         settings,
		sessions:         sessions,
		allowedUsers:     allowedUsers,
		menuKeyboard:     getMenuKeyboard(),
		providerKeyboard: getProviderKeyboard(),
		returnKeyboard:   getReturnKeyboard(),
		log:              log,
	}

	botOpts := append([]bot.Option{bot.WithDefaultHandler(b.handleUpdate)}, opts...)

	api, err := bot.New(strings.TrimSpace(token), botOpts...)
	if err != nil {
		return nil, err
	}

	b.api = api
	b.rateLimiter = ratelimiter.New(api, log)

	return b, nil
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Bot is polling for updates")
	b.api.Start(ctx)
	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := update.Message
		if message.From == nil {
			return
		}

		userID := message.From.ID
		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", message.Chat.ID,
				"username", message.From.Username,
				"chatType", message.Chat.Type)

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", message.Chat.ID,
				"userID", userID,
				"chatType", message.Chat.Type,
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery
		chatID := callbackChatID(callback)

		if !b.userAllowed(callback.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", callback.From.ID,
				"chatID", chatID,
				"username", callback.From.Username,
				"data", callback.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", callback.From.ID,
				"data", callback.Data)
		}
	}
}

// userAllowed lets everyone in when no allow list is configured.
func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func callbackChatID(cb *models.CallbackQuery) int64 {
	if cb == nil {
		return 0
	}

	if cb.Message.Message != nil {
		return cb.Message.Message.Chat.ID
	}

	if cb.Message.InaccessibleMessage != nil {
		return cb.Message.InaccessibleMessage.Chat.ID
	}

	return 0
}
