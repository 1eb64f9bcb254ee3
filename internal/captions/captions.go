// Package captions turns raw transcript payloads into plain text.
//
// Two payload shapes exist: the structured segment list returned by the
// private transcript endpoint and the legacy timed-text XML served for
// caption tracks. Both produce the same output: non-empty text nodes in
// document order joined with single spaces.
package captions

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const previewMaxBytes = 300

const (
	FormatSegments  = "segments"
	FormatTimedText = "timedtext"
)

var ErrUnparsable = errors.New("could not parse captions")

type ParseError struct {
	Format  string
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s (%s)", ErrUnparsable, e.Format)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg + ". Preview: " + e.Preview
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnparsable}
	}

	return []error{ErrUnparsable, e.Err}
}

func newParseError(format string, raw string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		Preview: Preview(raw, previewMaxBytes),
		Err:     err,
	}
}

// Preview cuts s to at most maxBytes without splitting a rune.
func Preview(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}

	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}

func joinNonEmpty(parts []string) string {
	var b strings.Builder

	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}

	return b.String()
}
