// Package innertube extracts transcripts from YouTube's private web API.
//
// The schema behind these endpoints is owned by YouTube and changes without
// notice, so every lookup goes through lookup(): absent values are reported
// as absent and the caller turns them into a fatal error instead of an empty
// transcript.
package innertube

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://www.youtube.com"

	getTranscriptPath = "/youtubei/v1/get_transcript?prettyPrint=false"

	androidClientName    = "ANDROID"
	androidClientVersion = "19.09.37"
	androidUserAgent     = "com.google.android.youtube/" + androidClientVersion + " (Linux; U; Android 11) gzip"
	browserUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	defaultHTTPTimeout = 20 * time.Second

	maxResponseBytes = 8 << 20
	snippetBytes     = 256
)

var (
	ErrTranscriptUnavailable = errors.New("transcript not available for this video")
	ErrNoSegments            = errors.New("no transcript segments returned")
	ErrNoCaptionTracks       = errors.New("no caption tracks for this video")
	ErrPageStateMissing      = errors.New("watch page has no player state")
	ErrEmptyTranscript       = errors.New("transcript data was empty")
)

// StatusError is returned for any non-2xx response from a YouTube endpoint.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API failed: HTTP %d", e.Endpoint, e.StatusCode)
}

type clientContext struct {
	Client clientDescriptor `json:"client"`
}

type clientDescriptor struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	Hl            string `json:"hl,omitempty"`
	Gl            string `json:"gl,omitempty"`
}

type getTranscriptRequest struct {
	Context clientContext `json:"context"`
	Params  string        `json:"params"`
}

func androidContext() clientContext {
	return clientContext{
		Client: clientDescriptor{
			ClientName:    androidClientName,
			ClientVersion: androidClientVersion,
			Hl:            "en",
			Gl:            "US",
		},
	}
}

// Client calls the private transcript and timed-text endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func NewClient(httpClient *http.Client, log *slog.Logger, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    DefaultBaseURL,
		log:        log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// lookup is the only way this package reads host-owned JSON.
func lookup(doc []byte, path string) (gjson.Result, bool) {
	r := gjson.GetBytes(doc, path)
	return r, r.Exists()
}

func lookupString(v gjson.Result, path string) (string, bool) {
	r := v.Get(path)
	if !r.Exists() || r.Type != gjson.String || r.String() == "" {
		return "", false
	}

	return r.String(), true
}
