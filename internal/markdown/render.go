package markdown

import (
	"regexp"
	"strings"
)

var (
	headingRe  = regexp.MustCompile(`^\s*#{1,6}\s+(.+?)\s*#*\s*$`)
	bulletRe   = regexp.MustCompile(`^\s*[-*+]\s+(.+)$`)
	numberedRe = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+)$`)
	ruleRe     = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)

	// Order matters: bold before italic so ** is never read as two *.
	inlineRe = regexp.MustCompile("\\*\\*(.+?)\\*\\*|__(.+?)__|`([^`]+)`|\\*([^*\\s](?:[^*]*[^*\\s])?)\\*")
)

// Render converts the model's markdown into Telegram MarkdownV2. Headings
// become bold lines, list items become bullets or numbered lines, and
// everything else is escaped.
func Render(md string) string {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
			out = append(out, "")
		case ruleRe.MatchString(line):
			out = append(out, "")
		case headingRe.MatchString(line):
			text := headingRe.FindStringSubmatch(line)[1]
			text = strings.ReplaceAll(text, "**", "")
			out = append(out, "*"+EscapeV2(text)+"*")
		case bulletRe.MatchString(line):
			text := bulletRe.FindStringSubmatch(line)[1]
			out = append(out, "• "+renderInline(text))
		case numberedRe.MatchString(line):
			m := numberedRe.FindStringSubmatch(line)
			out = append(out, m[1]+"\\. "+renderInline(m[2]))
		default:
			out = append(out, renderInline(strings.TrimSpace(line)))
		}
	}

	return strings.TrimSpace(collapseBlankLines(out))
}

func renderInline(text string) string {
	matches := inlineRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return EscapeV2(text)
	}

	var b strings.Builder
	prev := 0

	for _, m := range matches {
		b.WriteString(EscapeV2(text[prev:m[0]]))

		switch {
		case m[2] >= 0:
			b.WriteString("*" + EscapeV2(text[m[2]:m[3]]) + "*")
		case m[4] >= 0:
			b.WriteString("*" + EscapeV2(text[m[4]:m[5]]) + "*")
		case m[6] >= 0:
			b.WriteString("`" + escapeCode(text[m[6]:m[7]]) + "`")
		case m[8] >= 0:
			b.WriteString("_" + EscapeV2(text[m[8]:m[9]]) + "_")
		}

		prev = m[1]
	}

	b.WriteString(EscapeV2(text[prev:]))

	return b.String()
}

// escapeCode escapes the two characters MarkdownV2 reserves inside code.
func escapeCode(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "`", "\\`")
}

func collapseBlankLines(lines []string) string {
	var b strings.Builder
	blank := false

	for _, line := range lines {
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}

		b.WriteString(line)
		b.WriteByte('\n')
	}

	return b.String()
}
