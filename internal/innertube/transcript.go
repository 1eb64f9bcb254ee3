package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"ytsummarizer/internal/captions"
)

type segmentShape struct {
	name string
	path string
	text captions.SegmentText
}

// Paths are tried in order; the first one that holds a non-empty list wins.
var segmentShapes = []segmentShape{
	{
		name: "elementsCommand",
		path: "actions.0.elementsCommand.transformEntityCommand.arguments." +
			"transformTranscriptSegmentListArguments.overwrite.initialSegments",
		text: captions.FieldText("transcriptSegmentRenderer.snippet.elementsAttributedString.content"),
	},
	{
		name: "updateEngagementPanelAction",
		path: "actions.0.updateEngagementPanelAction.content.transcriptRenderer.content." +
			"transcriptSearchPanelRenderer.body.transcriptSegmentListRenderer.initialSegments",
		text: captions.RunsText("transcriptSegmentRenderer.snippet.runs"),
	},
}

// FetchSegments exchanges a continuation token for the transcript text.
func (c *Client) FetchSegments(ctx context.Context, token string) (string, error) {
	body, err := json.Marshal(getTranscriptRequest{
		Context: androidContext(),
		Params:  decodeToken(token),
	})
	if err != nil {
		return "", fmt.Errorf("marshal get_transcript request: %w", err)
	}

	data, err := c.do(ctx, "get_transcript", http.MethodPost, c.baseURL+getTranscriptPath, body)
	if err != nil {
		return "", err
	}

	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("decode get_transcript response: invalid JSON (%s)",
			captions.Preview(string(data), snippetBytes))
	}

	segments, shape, ok := findSegments(data)
	if !ok {
		return "", ErrNoSegments
	}

	c.log.DebugContext(ctx, "Transcript segments located",
		"shape", shape.name,
		"count", len(segments))

	text, err := captions.ParseSegments(segments, shape.text)
	if err != nil {
		return "", fmt.Errorf("parse segments: %w", err)
	}

	return text, nil
}

func findSegments(data []byte) ([]gjson.Result, segmentShape, bool) {
	for _, shape := range segmentShapes {
		list, ok := lookup(data, shape.path)
		if !ok || !list.IsArray() {
			continue
		}

		if items := list.Array(); len(items) > 0 {
			return items, shape, true
		}
	}

	return nil, segmentShape{}, false
}

// decodeToken undoes the percent-encoding some pages apply to the token.
// A token that does not decode is sent as is.
func decodeToken(token string) string {
	decoded, err := url.PathUnescape(token)
	if err != nil {
		return token
	}

	return decoded
}

func (c *Client) do(
	ctx context.Context,
	endpoint string,
	method string,
	target string,
	body []byte,
) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", androidUserAgent)
	} else {
		req.Header.Set("User-Agent", browserUserAgent)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // YouTube URL
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"endpoint", endpoint)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetBytes))
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Snippet: string(snippet)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	return data, nil
}
