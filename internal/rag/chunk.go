package rag

import (
	"strings"
	"unicode/utf8"
)

// SplitIntoChunks packs whole lines into chunks of at most maxLen bytes.
// Lines longer than maxLen are cut on rune boundaries.
func SplitIntoChunks(content string, maxLen int) []string {
	content = SanitizeUTF8(strings.TrimSpace(content))
	if content == "" || maxLen <= 0 {
		return nil
	}
	if len(content) <= maxLen {
		return []string{content}
	}

	var chunks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		if chunk := strings.TrimSpace(buf.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		buf.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for len(line) > maxLen {
			cut := runeCut(line, maxLen)
			flush()
			buf.WriteString(line[:cut])
			flush()
			line = strings.TrimSpace(line[cut:])
		}
		if line == "" {
			continue
		}

		if buf.Len()+len(line)+1 > maxLen {
			flush()
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	flush()
	return chunks
}

// runeCut returns the largest index <= max that does not split a rune.
func runeCut(s string, max int) int {
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return cut
}

// SanitizeUTF8 drops invalid bytes and NULs; Postgres rejects both in TEXT columns.
func SanitizeUTF8(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			s = s[1:]
			continue
		}
		b.WriteRune(r)
		s = s[size:]
	}
	return b.String()
}
