package rag

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    []string
	}{
		{name: "empty", content: "  \n ", maxLen: 10, want: nil},
		{name: "fits", content: "hello world", maxLen: 50, want: []string{"hello world"}},
		{name: "packs lines", content: "aaaa\nbbbb\ncccc", maxLen: 10, want: []string{"aaaa\nbbbb", "cccc"}},
		{name: "skips blank lines", content: "aaaa\n\n\nbbbb\ncccccccc", maxLen: 10, want: []string{"aaaa\nbbbb", "cccccccc"}},
		{name: "cuts long line", content: strings.Repeat("x", 25), maxLen: 10, want: []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitIntoChunks(tc.content, tc.maxLen)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d chunks, got %d: %q", len(tc.want), len(got), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("chunk %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSplitIntoChunksKeepsRunesWhole(t *testing.T) {
	content := strings.Repeat("ção", 20)
	for _, c := range SplitIntoChunks(content, 7) {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk split a rune: %q", c)
		}
		if len(c) > 7 {
			t.Fatalf("chunk too long: %d bytes", len(c))
		}
	}
}

func TestSanitizeUTF8(t *testing.T) {
	in := "ok\xffvalue\x00!"
	if got := SanitizeUTF8(in); got != "okvalue!" {
		t.Fatalf("unexpected sanitized string %q", got)
	}
}
