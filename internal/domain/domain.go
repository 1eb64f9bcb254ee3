package domain

import (
	"fmt"
	"strings"
)

type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// ParseProvider accepts the stored provider names plus the "openai-compatible"
// alias used by the settings UI.
func ParseProvider(raw string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ProviderAnthropic):
		return ProviderAnthropic, nil
	case string(ProviderOpenAI), "openai-compatible":
		return ProviderOpenAI, nil
	default:
		return "", fmt.Errorf("unknown provider %q", raw)
	}
}

func (p Provider) Label() string {
	switch p {
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderOpenAI:
		return "OpenAI-compatible"
	default:
		return string(p)
	}
}

type ProviderSettings struct {
	UserID   int64
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string
}

func (s ProviderSettings) Configured() bool {
	return s.Provider != "" && strings.TrimSpace(s.APIKey) != ""
}

type TranscriptMethod string

const (
	MethodLegacyXML      TranscriptMethod = "legacy-xml"
	MethodStructuredJSON TranscriptMethod = "structured-json"
)

func ParseTranscriptMethod(raw string) (TranscriptMethod, error) {
	switch m := TranscriptMethod(strings.TrimSpace(raw)); m {
	case MethodLegacyXML, MethodStructuredJSON:
		return m, nil
	default:
		return "", fmt.Errorf("unknown transcript method %q", raw)
	}
}

type Transcript struct {
	Method TranscriptMethod
	Text   string
}
