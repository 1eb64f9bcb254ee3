package bot

import (
	"context"
	"errors"
	"fmt"

	"ytsummarizer/internal/bus"
	"ytsummarizer/internal/markdown"
	"ytsummarizer/internal/session"
)

const (
	watchURLPrefix = "https://www.youtube.com/watch?v="

	notConfiguredText = "⚙️ Provider is not configured\\. Choose one with /provider and set a key with /key\\."
	timeoutText       = "⏱ The transcript request timed out\\. Try again in a moment\\."
)

func (b *Bot) summarizeVideo(ctx context.Context, chatID int64, userID int64, videoID string) error {
	s := b.sessions.Session(userID)

	if s.Navigate(videoID) {
		b.log.DebugContext(ctx, "Session moved to a new video",
			"userID", userID,
			"videoID", videoID)
	}

	var result session.Result

	err := b.withSpinner(ctx, chatID, func() error {
		var err error
		result, err = s.Summarize(ctx, videoID)

		return err
	})
	if err != nil {
		var errs []error
		if !errors.Is(err, session.ErrNotConfigured) {
			errs = append(errs, fmt.Errorf("summarize video %s: %w", videoID, err))
		}

		if sendErr := b.sendMessageWithKeyboard(ctx, chatID, failureText(err), b.returnKeyboard); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	if err = b.sendLongMessage(ctx, chatID, formatSummary(result), b.menuKeyboard); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}

	return nil
}

func failureText(err error) string {
	switch {
	case errors.Is(err, session.ErrNotConfigured):
		return notConfiguredText
	case errors.Is(err, bus.ErrTimeout):
		return timeoutText
	default:
		return "❌ " + markdown.EscapeV2(err.Error())
	}
}

func formatSummary(result session.Result) string {
	header := fmt.Sprintf("🎬 [Watch on YouTube](%s%s)", watchURLPrefix, result.VideoID)

	footer := result.Provider.Label()
	if result.Cached {
		footer += " · cached"
	}

	return header + "\n\n" + markdown.Render(result.Summary) + "\n\n_" + markdown.EscapeV2(footer) + "_"
}
