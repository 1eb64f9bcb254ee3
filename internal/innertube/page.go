package innertube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	initialDataMarkers = []string{
		"var ytInitialData = ",
		`window["ytInitialData"] = `,
		"ytInitialData = ",
	}
	playerResponseMarkers = []string{
		"var ytInitialPlayerResponse = ",
		"ytInitialPlayerResponse = ",
	}
)

// Page is the host page state the extractor works from.
type Page struct {
	VideoID        string
	InitialData    []byte
	PlayerResponse []byte
}

type PageSource interface {
	Page(ctx context.Context, videoID string) (*Page, error)
}

// WatchPageSource reads page state from the inline scripts of the watch page.
type WatchPageSource struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

func NewWatchPageSource(httpClient *http.Client, baseURL string, log *slog.Logger) *WatchPageSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &WatchPageSource{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		log:        log,
	}
}

func (s *WatchPageSource) Page(ctx context.Context, videoID string) (*Page, error) {
	watchURL := s.baseURL + "/watch?" + url.Values{"v": {videoID}, "hl": {"en"}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.httpClient.Do(req) //nolint:gosec // YouTube URL
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"videoID", videoID,
				"operation", "Page")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetBytes))
		return nil, &StatusError{Endpoint: "watch", StatusCode: resp.StatusCode, Snippet: string(snippet)}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}

	page := ParsePageScripts(doc)
	page.VideoID = videoID

	if page.InitialData == nil && page.PlayerResponse == nil {
		return nil, ErrPageStateMissing
	}

	return page, nil
}

// ParsePageScripts scans inline scripts for the initial data and player
// response assignments.
func ParsePageScripts(doc *goquery.Document) *Page {
	page := &Page{}

	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()

		if page.InitialData == nil {
			page.InitialData = extractAssigned(text, initialDataMarkers)
		}
		if page.PlayerResponse == nil {
			page.PlayerResponse = extractAssigned(text, playerResponseMarkers)
		}

		return page.InitialData == nil || page.PlayerResponse == nil
	})

	return page
}

func extractAssigned(script string, markers []string) []byte {
	for _, marker := range markers {
		idx := strings.Index(script, marker)
		if idx < 0 {
			continue
		}

		if obj := extractJSONObject([]byte(script[idx+len(marker):])); obj != nil {
			return obj
		}
	}

	return nil
}

// extractJSONObject returns the leading balanced JSON object of b.
func extractJSONObject(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}

	depth := 0
	inString := false
	escaped := false

	for i, c := range b {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}

			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}

	return nil
}
