package captions

import (
	"strings"

	"github.com/tidwall/gjson"
)

// SegmentText reads the text of one segment. Missing fields yield "".
type SegmentText func(segment gjson.Result) string

// FieldText reads a single nested string field.
func FieldText(path string) SegmentText {
	return func(segment gjson.Result) string {
		v := segment.Get(path)
		if !v.Exists() || v.Type != gjson.String {
			return ""
		}

		return v.String()
	}
}

// RunsText concatenates the text of every run in a runs array, the shape
// older segment renderers used.
func RunsText(runsPath string) SegmentText {
	return func(segment gjson.Result) string {
		runs := segment.Get(runsPath)
		if !runs.IsArray() {
			return ""
		}

		var b strings.Builder
		for _, run := range runs.Array() {
			b.WriteString(run.Get("text").String())
		}

		return b.String()
	}
}

func ParseSegments(segments []gjson.Result, text SegmentText) (string, error) {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, text(s))
	}

	joined := joinNonEmpty(parts)
	if joined == "" {
		raw := make([]string, 0, len(segments))
		for _, s := range segments {
			raw = append(raw, s.Raw)
		}

		return "", newParseError(FormatSegments, "["+strings.Join(raw, ",")+"]", nil)
	}

	return joined, nil
}
