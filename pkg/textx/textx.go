// Package textx provides small text utilities for extracted documents.
package textx

import (
	"strings"
)

// SanitizeText drops control characters other than tab, newline and CR,
// removes byte-order marks, and trims surrounding space.
func SanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\ufeff' {
			continue
		}
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// CollapseBlankLines normalizes CRLF to LF, trims trailing space on each
// line and keeps at most one empty line between paragraphs.
func CollapseBlankLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, ln := range lines {
		ln = strings.TrimRight(ln, " \t\r")
		if ln == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, ln)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Clean applies SanitizeText then CollapseBlankLines.
func Clean(s string) string { return CollapseBlankLines(SanitizeText(s)) }
