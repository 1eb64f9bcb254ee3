package bot

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const maxMessageLength = 4096

const (
	callbackMenu             = "menu"
	callbackSettings         = "menu_settings"
	callbackProviders        = "menu_provider"
	callbackClear            = "settings_clear"
	callbackSummarizeCurrent = "summarize_current"
	callbackProviderPrefix   = "provider_"
)

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard *models.InlineKeyboardMarkup,
) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   normalizedText,
		// See https://core.telegram.org/bots/api#markdownv2-style.
		ParseMode:          models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	_, err := b.rateLimiter.SendMessage(ctx, params)

	return err
}

// sendLongMessage splits text at Telegram's length limit and attaches the
// keyboard to the last part only.
func (b *Bot) sendLongMessage(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard *models.InlineKeyboardMarkup,
) error {
	parts := splitMessage(text, maxMessageLength)

	for i, part := range parts {
		var kb *models.InlineKeyboardMarkup
		if i == len(parts)-1 {
			kb = keyboard
		}

		if err := b.sendMessageWithKeyboard(ctx, chatID, part, kb); err != nil {
			return err
		}
	}

	return nil
}

// splitMessage cuts text into parts of at most limit runes, preferring line
// breaks and never leaving a dangling escape backslash at a cut.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current strings.Builder
		count   int
	)

	flush := func() {
		if part := strings.TrimRight(current.String(), "\n"); part != "" {
			parts = append(parts, part)
		}
		current.Reset()
		count = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)

		if count+n <= limit {
			current.WriteString(line)
			count += n

			continue
		}

		flush()

		for utf8.RuneCountInString(line) > limit {
			head, tail := cutRunes(line, limit)
			parts = append(parts, head)
			line = tail
		}

		current.WriteString(line)
		count = utf8.RuneCountInString(line)
	}

	flush()

	return parts
}

func cutRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			head := s[:pos]
			for trailingBackslashes(head)%2 == 1 {
				head = head[:len(head)-1]
			}

			return head, s[len(head):]
		}
		i++
	}

	return s, ""
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}

	return n
}

func getReturnKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "⬅️ Return to menu", CallbackData: callbackMenu}},
		},
	}
}

func getMenuKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "⚙️ Settings", CallbackData: callbackSettings},
				{Text: "🤖 Provider", CallbackData: callbackProviders},
			},
			{
				{Text: "🔁 Summarize current video", CallbackData: callbackSummarizeCurrent},
			},
		},
	}
}

func getProviderKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Anthropic", CallbackData: callbackProviderPrefix + "anthropic"},
				{Text: "OpenAI-compatible", CallbackData: callbackProviderPrefix + "openai"},
			},
			{
				{Text: "🗑 Clear settings", CallbackData: callbackClear},
			},
			{
				{Text: "⬅️ Return to menu", CallbackData: callbackMenu},
			},
		},
	}
}
