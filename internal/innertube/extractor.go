package innertube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ytsummarizer/internal/domain"
)

var DefaultMethods = []domain.TranscriptMethod{domain.MethodStructuredJSON}

var DefaultLanguages = []string{"en", "en-US", "en-GB"}

// Extractor runs the configured transcript methods in order until one
// produces text.
type Extractor struct {
	pages   PageSource
	client  *Client
	methods []domain.TranscriptMethod
	langs   []string
	log     *slog.Logger
}

func NewExtractor(
	pages PageSource,
	client *Client,
	methods []domain.TranscriptMethod,
	log *slog.Logger,
) *Extractor {
	if len(methods) == 0 {
		methods = DefaultMethods
	}

	return &Extractor{
		pages:   pages,
		client:  client,
		methods: methods,
		langs:   DefaultLanguages,
		log:     log,
	}
}

// Extract has the shape of bus.Handler.
func (e *Extractor) Extract(ctx context.Context, videoID string) (domain.Transcript, error) {
	if !ValidVideoID(videoID) {
		return domain.Transcript{}, fmt.Errorf("invalid video id %q", videoID)
	}

	page, err := e.pages.Page(ctx, videoID)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("load watch page: %w", err)
	}

	errs := make([]error, 0, len(e.methods))

	for i, method := range e.methods {
		text, err := e.extractWith(ctx, method, page)
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyTranscript
		}

		if err == nil {
			e.log.DebugContext(ctx, "Transcript extracted",
				"videoID", videoID,
				"method", method,
				"length", len(text))

			return domain.Transcript{Method: method, Text: text}, nil
		}

		errs = append(errs, err)

		if i < len(e.methods)-1 {
			e.log.WarnContext(ctx, "Transcript method failed, falling back",
				"error", err,
				"videoID", videoID,
				"method", method,
				"next", e.methods[i+1])
		}
	}

	return domain.Transcript{}, errors.Join(errs...)
}

func (e *Extractor) extractWith(
	ctx context.Context,
	method domain.TranscriptMethod,
	page *Page,
) (string, error) {
	switch method {
	case domain.MethodStructuredJSON:
		token, ok := LocateToken(page.InitialData)
		if !ok {
			return "", ErrTranscriptUnavailable
		}

		return e.client.FetchSegments(ctx, token)
	case domain.MethodLegacyXML:
		track, ok := PickTrack(CaptionTracks(page.PlayerResponse), e.langs)
		if !ok {
			return "", ErrNoCaptionTracks
		}

		return e.client.FetchTimedText(ctx, track.BaseURL)
	default:
		return "", fmt.Errorf("unknown transcript method %q", method)
	}
}
