package rag

import "context"

type EmbeddingsClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMClient interface {
	Reply(ctx context.Context, req ReplyRequest) (string, error)
}
