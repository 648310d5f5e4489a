package rag

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

// letterEmbedder maps text to normalized letter frequencies, so texts sharing
// words land close to each other.
type letterEmbedder struct {
	calls int
	fail  bool
}

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embedder down")
	}
	return letterVector(text), nil
}

func (e *letterEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func letterVector(text string) []float32 {
	vec := make([]float32, 26)
	var total float32
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' && unicode.IsLetter(r) {
			vec[r-'a']++
			total++
		}
	}
	if total > 0 {
		for i := range vec {
			vec[i] /= total
		}
	}
	return vec
}

type recordingLLM struct {
	answer string
	last   ReplyRequest
	calls  int
}

func (l *recordingLLM) Reply(_ context.Context, req ReplyRequest) (string, error) {
	l.calls++
	l.last = req
	return l.answer, nil
}
