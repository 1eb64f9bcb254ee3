package bot

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"
	"mvdan.cc/xurls/v2"

	"ytsummarizer/internal/innertube"
)

const noLinkText = "✖️ Send me a YouTube link and I will summarize the video\\."

//nolint:gochecknoglobals // Compiled once, read-only.
var linkRe = xurls.Relaxed()

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	text := strings.TrimSpace(message.Text)
	chatID := message.Chat.ID
	userID := message.From.ID

	command, args := parseCommand(text)

	switch command {
	case "":
		return b.handleRandomText(ctx, chatID, userID, text)
	case "/start", "/help":
		return b.handleStartCommand(ctx, chatID)
	case "/menu":
		return b.handleMenuCommand(ctx, chatID)
	case "/settings":
		return b.handleSettingsCommand(ctx, chatID, userID)
	case "/provider":
		return b.handleProviderCommand(ctx, chatID, userID, args)
	case "/model":
		return b.handleModelCommand(ctx, chatID, userID, args)
	case "/key":
		return b.handleKeyCommand(ctx, message, args)
	case "/baseurl":
		return b.handleBaseURLCommand(ctx, chatID, userID, args)
	case "/clear":
		return b.handleClearCommand(ctx, chatID, userID)
	case "/summarize":
		return b.handleSummarizeCommand(ctx, chatID, userID, args)
	default:
		return b.handleStartCommand(ctx, chatID)
	}
}

func (b *Bot) handleRandomText(ctx context.Context, chatID int64, userID int64, text string) error {
	videoID, ok := findVideoID(text)
	if !ok {
		return b.sendMessageWithKeyboard(ctx, chatID, noLinkText, b.menuKeyboard)
	}

	return b.summarizeVideo(ctx, chatID, userID, videoID)
}

// parseCommand splits "/cmd@bot args" into "/cmd" and "args". Text that is
// not a command yields an empty command.
func parseCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	command, args, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")

	return strings.ToLower(command), strings.TrimSpace(args)
}

// findVideoID returns the first YouTube video referenced in text.
func findVideoID(text string) (string, bool) {
	for _, link := range linkRe.FindAllString(text, -1) {
		if id, ok := innertube.ParseVideoID(link); ok {
			return id, true
		}
	}

	return "", false
}
