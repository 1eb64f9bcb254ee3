package bot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"ytsummarizer/internal/domain"
	"ytsummarizer/internal/innertube"
	"ytsummarizer/internal/markdown"
	"ytsummarizer/internal/summarizer"
)

const welcomeText = `🤖 *Welcome to YT Summarizer\!*

Send me a YouTube link and I will reply with a summary of the video\.

– Choose a provider with /provider \(Anthropic or OpenAI\-compatible\)
– Set your API key with /key \(the message is deleted right away\)
– Pick a model with /model and an endpoint with /baseurl
– Review everything with /settings
– Summarize the last video again with /summarize`

const settingsText = `*⚙️ Settings*

Provider: %s
Model: %s
API key: %s
Base URL: %s`

const (
	failedText            = "❌ Failed\\."
	chooseProviderText    = "🤖 *Choose a provider:*"
	providerFirstText     = "⚙️ Choose a provider first with /provider\\."
	keyUsageText          = "Usage: `/key <api-key>`"
	baseURLUsageText      = "Usage: `/baseurl https://api.example.com/v1`"
	baseURLOnlyOpenAIText = "✖️ Base URL applies to OpenAI\\-compatible providers only\\."
	summarizeUsageText    = "✖️ No video yet\\. Send a YouTube link or use `/summarize <link>`\\."
	keyMaskVisibleRunes   = 4
)

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, "❔ *Choose an option:*", b.menuKeyboard)
}

func (b *Bot) handleSettingsCommand(ctx context.Context, chatID int64, userID int64) error {
	settings, err := b.settings.ProviderSettings(ctx, userID)
	if err != nil {
		return b.failWith(ctx, chatID, fmt.Errorf("get provider settings: %w", err))
	}

	provider := "not set"
	model := "default"
	baseURL := "not set"

	if settings.Provider != "" {
		provider = settings.Provider.Label()
	}

	switch {
	case settings.Model != "":
		model = settings.Model
	case settings.Provider == domain.ProviderAnthropic:
		model = summarizer.DefaultAnthropicModel + " (default)"
	case settings.Provider == domain.ProviderOpenAI:
		model = summarizer.DefaultOpenAIModel + " (default)"
	}

	if settings.BaseURL != "" {
		baseURL = settings.BaseURL
	}

	text := fmt.Sprintf(settingsText,
		markdown.EscapeV2(provider),
		markdown.EscapeV2(model),
		markdown.EscapeV2(maskKey(settings.APIKey)),
		markdown.EscapeV2(baseURL),
	)

	return b.sendMessageWithKeyboard(ctx, chatID, text, b.providerKeyboard)
}

func (b *Bot) handleProviderCommand(ctx context.Context, chatID int64, userID int64, args string) error {
	if args == "" {
		return b.sendMessageWithKeyboard(ctx, chatID, chooseProviderText, b.providerKeyboard)
	}

	provider, err := domain.ParseProvider(args)
	if err != nil {
		return b.sendMessageWithKeyboard(ctx, chatID, chooseProviderText, b.providerKeyboard)
	}

	if err = b.setProvider(ctx, userID, provider); err != nil {
		return b.failWith(ctx, chatID, err)
	}

	return b.sendMessageWithKeyboard(ctx, chatID,
		fmt.Sprintf("✅ Provider is set to %s\\. Now set a key with /key\\.", markdown.EscapeV2(provider.Label())),
		b.returnKeyboard)
}

// setProvider switches the provider; the model is reset so the new
// provider's default applies.
func (b *Bot) setProvider(ctx context.Context, userID int64, provider domain.Provider) error {
	settings, err := b.settings.ProviderSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("get provider settings: %w", err)
	}

	if settings.Provider != provider {
		settings.Model = ""
		settings.APIKey = ""
	}

	settings.UserID = userID
	settings.Provider = provider

	if err = b.settings.UpsertProviderSettings(ctx, settings); err != nil {
		return fmt.Errorf("upsert provider settings: %w", err)
	}

	return nil
}

func (b *Bot) handleModelCommand(ctx context.Context, chatID int64, userID int64, args string) error {
	settings, err := b.settings.ProviderSettings(ctx, userID)
	if err != nil {
		return b.failWith(ctx, chatID, fmt.Errorf("get provider settings: %w", err))
	}

	if settings.Provider == "" {
		return b.sendMessageWithKeyboard(ctx, chatID, providerFirstText, b.providerKeyboard)
	}

	settings.Model = args

	if err = b.settings.UpsertProviderSettings(ctx, settings); err != nil {
		return b.failWith(ctx, chatID, fmt.Errorf("upsert provider settings: %w", err))
	}

	text := "✅ Model is reset to the provider default\\."
	if args != "" {
		text = fmt.Sprintf("✅ Model is set to %s\\.", markdown.EscapeV2(args))
	}

	return b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard)
}

func (b *Bot) handleKeyCommand(ctx context.Context, message *models.Message, args string) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	if args == "" {
		return b.sendMessageWithKeyboard(ctx, chatID, keyUsageText, b.returnKeyboard)
	}

	var errs []error

	if err := b.rateLimiter.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: message.ID,
	}); err != nil {
		errs = append(errs, fmt.Errorf("delete key message: %w", err))
	}

	settings, err := b.settings.ProviderSettings(ctx, userID)
	if err != nil {
		return errors.Join(append(errs, b.failWith(ctx, chatID, fmt.Errorf("get provider settings: %w", err)))...)
	}

	if settings.Provider == "" {
		if err = b.sendMessageWithKeyboard(ctx, chatID, providerFirstText, b.providerKeyboard); err != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
		}

		return errors.Join(errs...)
	}

	settings.APIKey = args

	if err = b.settings.UpsertProviderSettings(ctx, settings); err != nil {
		return errors.Join(append(errs, b.failWith(ctx, chatID, fmt.Errorf("upsert provider settings: %w", err)))...)
	}

	if err = b.sendMessageWithKeyboard(ctx, chatID,
		fmt.Sprintf("✅ API key %s is saved\\.", markdown.EscapeV2(maskKey(args))),
		b.returnKeyboard); err != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) handleBaseURLCommand(ctx context.Context, chatID int64, userID int64, args string) error {
	if !validBaseURL(args) {
		return b.sendMessageWithKeyboard(ctx, chatID, baseURLUsageText, b.returnKeyboard)
	}

	settings, err := b.settings.ProviderSettings(ctx, userID)
	if err != nil {
		return b.failWith(ctx, chatID, fmt.Errorf("get provider settings: %w", err))
	}

	if settings.Provider != domain.ProviderOpenAI {
		return b.sendMessageWithKeyboard(ctx, chatID, baseURLOnlyOpenAIText, b.providerKeyboard)
	}

	settings.BaseURL = args

	if err = b.settings.UpsertProviderSettings(ctx, settings); err != nil {
		return b.failWith(ctx, chatID, fmt.Errorf("upsert provider settings: %w", err))
	}

	return b.sendMessageWithKeyboard(ctx, chatID, "✅ Base URL is saved\\.", b.returnKeyboard)
}

func (b *Bot) handleClearCommand(ctx context.Context, chatID int64, userID int64) error {
	if err := b.settings.ClearProviderSettings(ctx, userID); err != nil {
		return b.failWith(ctx, chatID, fmt.Errorf("clear provider settings: %w", err))
	}

	return b.sendMessageWithKeyboard(ctx, chatID, "✅ Settings are cleared\\.", b.menuKeyboard)
}

func (b *Bot) handleSummarizeCommand(ctx context.Context, chatID int64, userID int64, args string) error {
	videoID, ok := findVideoID(args)
	if !ok {
		videoID, ok = innertube.ParseVideoID(args)
	}

	if !ok && args == "" {
		videoID = b.sessions.Session(userID).Current()
		ok = videoID != ""
	}

	if !ok {
		return b.sendMessageWithKeyboard(ctx, chatID, summarizeUsageText, b.menuKeyboard)
	}

	return b.summarizeVideo(ctx, chatID, userID, videoID)
}

// failWith tells the user the action failed and returns err joined with any
// send failure.
func (b *Bot) failWith(ctx context.Context, chatID int64, err error) error {
	if sendErr := b.sendMessageWithKeyboard(ctx, chatID, failedText, b.returnKeyboard); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send message with keyboard: %w", sendErr))
	}

	return err
}

func maskKey(key string) string {
	runes := []rune(strings.TrimSpace(key))

	switch {
	case len(runes) == 0:
		return "not set"
	case len(runes) <= 2*keyMaskVisibleRunes:
		return "••••"
	default:
		return "••••" + string(runes[len(runes)-keyMaskVisibleRunes:])
	}
}

func validBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
