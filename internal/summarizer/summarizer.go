package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"ytsummarizer/internal/domain"
)

const (
	MaxTranscriptChars = 100_000
	TruncationNotice   = "\n\n[Transcript truncated due to length]"

	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "kimi-k2-0905-preview"

	maxOutputTokens int64 = 1024
	temperature           = 1.0

	SystemPrompt = `You are a helpful assistant that summarizes YouTube video transcripts. Provide a clear, well-structured summary with the following sections:
1. **Overview** - A 2-3 sentence summary of the video.
2. **Key Points** - Bullet points of the main ideas.
3. **Takeaways** - 2-3 actionable or notable takeaways.

Be concise and informative. Use markdown formatting.`

	userPromptPrefix = "Please summarize the following YouTube video transcript:\n\n"
)

var (
	ErrMissingAPIKey  = errors.New("API key is not set")
	ErrMissingBaseURL = errors.New("base URL is required for OpenAI-compatible providers")
	ErrEmptyReply     = errors.New("provider returned no text")
)

// Provider sends one system+user exchange to a model and returns its text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Summarizer produces a markdown summary of a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, settings domain.ProviderSettings, transcript string) (string, error)
}

type Factory func(settings domain.ProviderSettings) (Provider, error)

type providerOptions struct {
	httpClient       *http.Client
	anthropicBaseURL string
}

type Option func(*providerOptions)

func WithHTTPClient(c *http.Client) Option {
	return func(o *providerOptions) {
		o.httpClient = c
	}
}

// WithAnthropicBaseURL overrides https://api.anthropic.com.
func WithAnthropicBaseURL(u string) Option {
	return func(o *providerOptions) {
		o.anthropicBaseURL = u
	}
}

// NewProvider picks the provider implementation for settings.
func NewProvider(settings domain.ProviderSettings, opts ...Option) (Provider, error) {
	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	switch settings.Provider {
	case domain.ProviderAnthropic:
		return NewAnthropicProvider(settings.APIKey, settings.Model, o), nil
	case domain.ProviderOpenAI:
		if strings.TrimSpace(settings.BaseURL) == "" {
			return nil, ErrMissingBaseURL
		}

		return NewOpenAIProvider(settings.APIKey, settings.BaseURL, settings.Model, o), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", settings.Provider)
	}
}

// PrepareTranscript cuts transcripts longer than MaxTranscriptChars runes
// and appends TruncationNotice. Shorter input is returned unchanged.
func PrepareTranscript(text string) string {
	if utf8.RuneCountInString(text) <= MaxTranscriptChars {
		return text
	}

	n := 0
	for i := range text {
		if n == MaxTranscriptChars {
			return text[:i] + TruncationNotice
		}
		n++
	}

	return text
}

func BuildUserMessage(transcript string) string {
	return userPromptPrefix + PrepareTranscript(transcript)
}

// Client resolves a provider per call, so settings changes apply to the
// next request without restarting anything.
type Client struct {
	factory Factory
	log     *slog.Logger
}

func NewClient(factory Factory, log *slog.Logger) *Client {
	if factory == nil {
		factory = func(settings domain.ProviderSettings) (Provider, error) {
			return NewProvider(settings)
		}
	}

	return &Client{
		factory: factory,
		log:     log,
	}
}

func (c *Client) Summarize(
	ctx context.Context,
	settings domain.ProviderSettings,
	transcript string,
) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", errors.New("transcript is empty")
	}

	provider, err := c.factory(settings)
	if err != nil {
		return "", fmt.Errorf("create provider: %w", err)
	}

	c.log.InfoContext(ctx, "Requesting summary",
		"provider", provider.Name(),
		"userID", settings.UserID,
		"transcriptLength", utf8.RuneCountInString(transcript))

	summary, err := provider.Complete(ctx, SystemPrompt, BuildUserMessage(transcript))
	if err != nil {
		return "", err
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", ErrEmptyReply
	}

	return summary, nil
}
