package innertube

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ytsummarizer/internal/captions"
)

const captionTracksPath = "captions.playerCaptionsTracklistRenderer.captionTracks"

type CaptionTrack struct {
	BaseURL      string
	LanguageCode string
	Kind         string
}

func (t CaptionTrack) autoGenerated() bool {
	return t.Kind == "asr"
}

// needsPoToken reports tracks that only serve with a proof-of-origin token.
func (t CaptionTrack) needsPoToken() bool {
	return strings.Contains(t.BaseURL, "&exp=xpe")
}

// CaptionTracks lists the caption tracks advertised by the player response.
func CaptionTracks(playerResponse []byte) []CaptionTrack {
	list, ok := lookup(playerResponse, captionTracksPath)
	if !ok || !list.IsArray() {
		return nil
	}

	var tracks []CaptionTrack
	for _, item := range list.Array() {
		baseURL, found := lookupString(item, "baseUrl")
		if !found {
			continue
		}

		tracks = append(tracks, CaptionTrack{
			BaseURL:      baseURL,
			LanguageCode: item.Get("languageCode").String(),
			Kind:         item.Get("kind").String(),
		})
	}

	return tracks
}

// PickTrack prefers a manual track in a preferred language, then an
// auto-generated one in a preferred language, then any usable track.
func PickTrack(tracks []CaptionTrack, langs []string) (CaptionTrack, bool) {
	usable := make([]CaptionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !t.needsPoToken() {
			usable = append(usable, t)
		}
	}

	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && !t.autoGenerated() {
				return t, true
			}
		}
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}

	for _, t := range usable {
		if !t.autoGenerated() {
			return t, true
		}
	}

	if len(usable) > 0 {
		return usable[0], true
	}

	return CaptionTrack{}, false
}

// FetchTimedText downloads a caption track and returns its joined text.
func (c *Client) FetchTimedText(ctx context.Context, trackURL string) (string, error) {
	data, err := c.do(ctx, "timedtext", http.MethodGet, trackURL, nil)
	if err != nil {
		return "", err
	}

	text, err := captions.ParseTimedText(data)
	if err != nil {
		return "", fmt.Errorf("parse timed text: %w", err)
	}

	return text, nil
}
