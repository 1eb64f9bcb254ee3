package summarizer

import (
	"context"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls the Messages API. The SDK sets the x-api-key and
// anthropic-version headers.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey, model string, o providerOptions) *AnthropicProvider {
	if model == "" {
		model = DefaultAnthropicModel
	}

	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(0),
		anthropicoption.WithMiddleware(
			func(req *http.Request, next anthropicoption.MiddlewareNext) (*http.Response, error) {
				return normalizeErrors(req, next)
			},
		),
	}
	if o.anthropicBaseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(o.anthropicBaseURL))
	}
	if o.httpClient != nil {
		opts = append(opts, anthropicoption.WithHTTPClient(o.httpClient))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Complete(ctx context.Context, system, user string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   maxOutputTokens,
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", providerError("create message", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", ErrEmptyReply
}
