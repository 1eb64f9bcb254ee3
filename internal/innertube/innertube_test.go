package innertube_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"ytsummarizer/internal/domain"
	"ytsummarizer/internal/innertube"
)

const currentShapeResponse = `{"actions":[{"elementsCommand":{"transformEntityCommand":{"arguments":{
"transformTranscriptSegmentListArguments":{"overwrite":{"initialSegments":[
{"transcriptSegmentRenderer":{"snippet":{"elementsAttributedString":{"content":"hello"}}}},
{"transcriptSectionHeaderRenderer":{"title":"Chapter"}},
{"transcriptSegmentRenderer":{"snippet":{"elementsAttributedString":{"content":"world"}}}}
]}}}}}}]}`

const legacyShapeResponse = `{"actions":[{"updateEngagementPanelAction":{"content":{"transcriptRenderer":{
"content":{"transcriptSearchPanelRenderer":{"body":{"transcriptSegmentListRenderer":{"initialSegments":[
{"transcriptSegmentRenderer":{"snippet":{"runs":[{"text":"old "},{"text":"style"}]}}},
{"transcriptSegmentRenderer":{"snippet":{"runs":[{"text":"text"}]}}}
]}}}}}}}}]}`

var bothMethods = []domain.TranscriptMethod{domain.MethodStructuredJSON, domain.MethodLegacyXML}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocateToken(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		want   string
		wantOK bool
	}{
		{
			"first panel with token wins",
			`{"engagementPanels":[
				{"engagementPanelSectionListRenderer":{"content":{"structuredDescriptionContentRenderer":{}}}},
				{"engagementPanelSectionListRenderer":{"content":{"continuationItemRenderer":{"continuationEndpoint":{"getTranscriptEndpoint":{"params":"TOKEN_A"}}}}}},
				{"engagementPanelSectionListRenderer":{"content":{"continuationItemRenderer":{"continuationEndpoint":{"getTranscriptEndpoint":{"params":"TOKEN_B"}}}}}}
			]}`,
			"TOKEN_A",
			true,
		},
		{"no panels", `{"contents":{}}`, "", false},
		{"panels without token", `{"engagementPanels":[{"engagementPanelSectionListRenderer":{}}]}`, "", false},
		{"empty token ignored", `{"engagementPanels":[{"engagementPanelSectionListRenderer":{"content":{"continuationItemRenderer":{"continuationEndpoint":{"getTranscriptEndpoint":{"params":""}}}}}}]}`, "", false},
		{"not json", `nope`, "", false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := innertube.LocateToken([]byte(test.data))
			if got != test.want || ok != test.wantOK {
				t.Fatalf("LocateToken() = %q, %v; want %q, %v", got, ok, test.want, test.wantOK)
			}
		})
	}
}

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=10", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/live/dQw4w9WgXcQ?feature=share", "dQw4w9WgXcQ"},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=short", ""},
		{"https://example.com/watch?v=dQw4w9WgXcQ", ""},
		{"https://www.youtube.com/@channel", ""},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			got, ok := innertube.ParseVideoID(test.in)
			if got != test.want || ok != (test.want != "") {
				t.Fatalf("ParseVideoID(%q) = %q, %v; want %q", test.in, got, ok, test.want)
			}
		})
	}
}

func newTranscriptServer(t *testing.T, status int, body string, seen *atomic.Value) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/youtubei/v1/get_transcript" {
			http.NotFound(w, r)
			return
		}

		raw, _ := io.ReadAll(r.Body)
		if seen != nil {
			seen.Store(string(raw))
		}

		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestFetchSegmentsCurrentShape(t *testing.T) {
	var seen atomic.Value
	srv := newTranscriptServer(t, http.StatusOK, currentShapeResponse, &seen)

	client := innertube.NewClient(srv.Client(), testLogger(), innertube.WithBaseURL(srv.URL))

	text, err := client.FetchSegments(context.Background(), "abc%3D%3D")
	if err != nil {
		t.Fatalf("FetchSegments() error: %v", err)
	}

	if text != "hello world" {
		t.Fatalf("unexpected text %q", text)
	}

	var req struct {
		Context struct {
			Client struct {
				ClientName    string `json:"clientName"`
				ClientVersion string `json:"clientVersion"`
			} `json:"client"`
		} `json:"context"`
		Params string `json:"params"`
	}
	if err := json.Unmarshal([]byte(seen.Load().(string)), &req); err != nil {
		t.Fatalf("decode request body: %v", err)
	}

	if req.Params != "abc==" {
		t.Fatalf("expected decoded token, got %q", req.Params)
	}

	if req.Context.Client.ClientName != "ANDROID" || req.Context.Client.ClientVersion == "" {
		t.Fatalf("unexpected client descriptor %+v", req.Context.Client)
	}
}

func TestFetchSegmentsLegacyShape(t *testing.T) {
	srv := newTranscriptServer(t, http.StatusOK, legacyShapeResponse, nil)
	client := innertube.NewClient(srv.Client(), testLogger(), innertube.WithBaseURL(srv.URL))

	text, err := client.FetchSegments(context.Background(), "tok")
	if err != nil {
		t.Fatalf("FetchSegments() error: %v", err)
	}

	if text != "old style text" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestFetchSegmentsErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		srv := newTranscriptServer(t, http.StatusForbidden, `{"error":"denied"}`, nil)
		client := innertube.NewClient(srv.Client(), testLogger(), innertube.WithBaseURL(srv.URL))

		_, err := client.FetchSegments(context.Background(), "tok")

		var statusErr *innertube.StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403 status error, got %v", err)
		}

		if err.Error() != "get_transcript API failed: HTTP 403" {
			t.Fatalf("unexpected message %q", err.Error())
		}
	})

	t.Run("no segments", func(t *testing.T) {
		srv := newTranscriptServer(t, http.StatusOK, `{"actions":[{"somethingElse":{}}]}`, nil)
		client := innertube.NewClient(srv.Client(), testLogger(), innertube.WithBaseURL(srv.URL))

		if _, err := client.FetchSegments(context.Background(), "tok"); !errors.Is(err, innertube.ErrNoSegments) {
			t.Fatalf("expected ErrNoSegments, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		srv := newTranscriptServer(t, http.StatusOK, `<html>`, nil)
		client := innertube.NewClient(srv.Client(), testLogger(), innertube.WithBaseURL(srv.URL))

		if _, err := client.FetchSegments(context.Background(), "tok"); err == nil {
			t.Fatalf("expected error for invalid JSON")
		}
	})
}

type stubPages struct {
	page *innertube.Page
	err  error
}

func (s stubPages) Page(_ context.Context, videoID string) (*innertube.Page, error) {
	if s.err != nil {
		return nil, s.err
	}

	page := *s.page
	page.VideoID = videoID

	return &page, nil
}

func TestExtractorFallsBackToTimedText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/youtubei/v1/get_transcript", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<transcript><text start="0">Hello &amp; welcome</text><text start="1">back</text></transcript>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	initialData := `{"engagementPanels":[{"engagementPanelSectionListRenderer":{"content":{"continuationItemRenderer":{"continuationEndpoint":{"getTranscriptEndpoint":{"params":"tok"}}}}}}]}`
	playerResponse := `{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"` +
		srv.URL + `/api/timedtext?v=x","languageCode":"en"}]}}}`

	pages := stubPages{page: &innertube.Page{
		InitialData:    []byte(initialData),
		PlayerResponse: []byte(playerResponse),
	}}

	client := innertube.NewClient(srv.Client(), testLogger(), innertube.WithBaseURL(srv.URL))
	extractor := innertube.NewExtractor(pages, client, bothMethods, testLogger())

	transcript, err := extractor.Extract(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if transcript.Method != domain.MethodLegacyXML {
		t.Fatalf("expected legacy method, got %q", transcript.Method)
	}

	if transcript.Text != "Hello & welcome back" {
		t.Fatalf("unexpected text %q", transcript.Text)
	}
}

func TestExtractorSuccessLogsAtDebug(t *testing.T) {
	srv := newTranscriptServer(t, http.StatusOK, currentShapeResponse, nil)

	initialData := `{"engagementPanels":[{"engagementPanelSectionListRenderer":{"content":{"continuationItemRenderer":{"continuationEndpoint":{"getTranscriptEndpoint":{"params":"tok"}}}}}}]}`
	pages := stubPages{page: &innertube.Page{InitialData: []byte(initialData)}}

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	client := innertube.NewClient(srv.Client(), testLogger(), innertube.WithBaseURL(srv.URL))
	extractor := innertube.NewExtractor(pages, client, nil, log)

	if _, err := extractor.Extract(context.Background(), "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if strings.Contains(buf.String(), "Transcript extracted") {
		t.Fatalf("expected the success record below info level, got %s", buf.String())
	}
}

func TestExtractorReportsEveryFailure(t *testing.T) {
	pages := stubPages{page: &innertube.Page{InitialData: []byte(`{}`), PlayerResponse: []byte(`{}`)}}
	client := innertube.NewClient(nil, testLogger())
	extractor := innertube.NewExtractor(pages, client, bothMethods, testLogger())

	_, err := extractor.Extract(context.Background(), "dQw4w9WgXcQ")

	if !errors.Is(err, innertube.ErrTranscriptUnavailable) {
		t.Fatalf("expected ErrTranscriptUnavailable in %v", err)
	}

	if !errors.Is(err, innertube.ErrNoCaptionTracks) {
		t.Fatalf("expected ErrNoCaptionTracks in %v", err)
	}
}

func TestExtractorSingleMethodMessageIsVerbatim(t *testing.T) {
	pages := stubPages{page: &innertube.Page{InitialData: []byte(`{}`)}}
	client := innertube.NewClient(nil, testLogger())
	extractor := innertube.NewExtractor(pages, client, nil, testLogger())

	_, err := extractor.Extract(context.Background(), "dQw4w9WgXcQ")
	if err == nil || err.Error() != innertube.ErrTranscriptUnavailable.Error() {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestExtractorRejectsInvalidID(t *testing.T) {
	extractor := innertube.NewExtractor(stubPages{err: errors.New("must not be called")},
		innertube.NewClient(nil, testLogger()), nil, testLogger())

	if _, err := extractor.Extract(context.Background(), "not-an-id"); err == nil ||
		!strings.Contains(err.Error(), "invalid video id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestWatchPageSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/watch" || r.URL.Query().Get("v") != "dQw4w9WgXcQ" {
			http.NotFound(w, r)
			return
		}

		_, _ = io.WriteString(w, `<html><body><script>var ytInitialData = {"engagementPanels":[]};</script></body></html>`)
	}))
	t.Cleanup(srv.Close)

	source := innertube.NewWatchPageSource(srv.Client(), srv.URL, testLogger())

	page, err := source.Page(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Page() error: %v", err)
	}

	if string(page.InitialData) != `{"engagementPanels":[]}` || page.PlayerResponse != nil {
		t.Fatalf("unexpected page %+v", page)
	}

	if _, err := source.Page(context.Background(), "zzzzzzzzzzz"); err == nil {
		t.Fatalf("expected error for missing page")
	}
}
