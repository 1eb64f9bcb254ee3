package captions

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	numericRefRe = regexp.MustCompile(`&#(?:(\d+)|[xX]([0-9a-fA-F]+));`)
	markupTagRe  = regexp.MustCompile(`<[^>]*>`)
)

// Caption text nodes: <text> in the classic format, <p> in format 3.
var captionNodeNames = map[string]struct{}{
	"text": {},
	"p":    {},
}

func ParseTimedText(raw []byte) (string, error) {
	nodes, err := captionNodes(raw)
	if err != nil {
		return "", newParseError(FormatTimedText, string(raw), err)
	}

	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		parts = append(parts, CleanCaption(n))
	}

	joined := joinNonEmpty(parts)
	if joined == "" {
		return "", newParseError(FormatTimedText, string(raw), nil)
	}

	return joined, nil
}

// CleanCaption decodes numeric character references left in a caption node,
// strips inline markup and trims the result.
func CleanCaption(s string) string {
	s = DecodeNumericRefs(s)
	s = markupTagRe.ReplaceAllString(s, "")

	return strings.TrimSpace(s)
}

func DecodeNumericRefs(s string) string {
	if !strings.Contains(s, "&#") {
		return s
	}

	return numericRefRe.ReplaceAllStringFunc(s, func(ref string) string {
		m := numericRefRe.FindStringSubmatch(ref)

		var (
			code int64
			err  error
		)
		if m[1] != "" {
			code, err = strconv.ParseInt(m[1], 10, 32)
		} else {
			code, err = strconv.ParseInt(m[2], 16, 32)
		}

		if err != nil || code <= 0 || !utf8.ValidRune(rune(code)) {
			return ref
		}

		return string(rune(code))
	})
}

func captionNodes(raw []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Entity = xml.HTMLEntity

	var (
		nodes   []string
		current strings.Builder
		depth   int
		inside  int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if inside == 0 {
				if _, ok := captionNodeNames[t.Name.Local]; ok {
					inside = depth
					current.Reset()
				}
			}
		case xml.EndElement:
			if inside == depth {
				nodes = append(nodes, current.String())
				inside = 0
			}
			depth--
		case xml.CharData:
			if inside > 0 {
				current.Write(t)
			}
		}
	}

	return nodes, nil
}
