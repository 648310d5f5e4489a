package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/josinaldojr/pdf-chat-rag/internal/rag"
	"google.golang.org/genai"
)

const (
	embeddingModel = "models/text-embedding-004"
	chatModel      = "gemini-2.5-flash"
	embedDim       = 768

	// EmbedContent accepts at most this many inputs per request.
	maxEmbedBatch = 100
)

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY or GOOGLE_API_KEY")
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: c}, nil
}

func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in request-sized batches, preserving order.
func (g *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			clean := normalizeWhitespace(t)
			if clean == "" {
				return nil, fmt.Errorf("empty text for embedding")
			}
			contents = append(contents, genai.NewContentFromText(clean, genai.RoleUser))
		}

		resp, err := g.client.Models.EmbedContent(ctx, embeddingModel, contents, &genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(embedDim)),
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embed error: %w", err)
		}
		if len(resp.Embeddings) != len(contents) {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(contents))
		}

		for _, e := range resp.Embeddings {
			if len(e.Values) != embedDim {
				return nil, fmt.Errorf("unexpected embedding size %d (expected %d)", len(e.Values), embedDim)
			}
			out = append(out, e.Values)
		}
	}

	return out, nil
}

func (g *GeminiClient) Reply(ctx context.Context, req rag.ReplyRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buildSystemPrompt(req), genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, chatModel, buildContents(req), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generateContent error: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("empty response from gemini")
	}

	txt := strings.TrimSpace(resp.Text())
	if txt == "" {
		return "", fmt.Errorf("model returned empty text")
	}
	return txt, nil
}

// -------- helpers --------

const (
	maxHistory      = 20
	maxExcerptChars = 1500
)

func buildSystemPrompt(req rag.ReplyRequest) string {
	var sys strings.Builder

	lang := req.Language
	if lang == "" {
		lang = "English"
	}

	sys.WriteString("You are a helpful assistant. ")
	sys.WriteString("Answer in ")
	sys.WriteString(lang)
	sys.WriteString(" unless the user asks for another language. ")

	if req.DocumentName == "" && len(req.Excerpts) == 0 {
		sys.WriteString("Keep answers concise and accurate.")
		return sys.String()
	}

	sys.WriteString("The user is asking about the document ")
	sys.WriteString(oneLine(req.DocumentName))
	sys.WriteString(". Answer ONLY from the excerpts below. ")
	sys.WriteString("If the answer is not in the excerpts, say the document does not cover it. ")
	sys.WriteString("Do not invent facts, figures or quotes.\n")

	for i, c := range req.Excerpts {
		fmt.Fprintf(&sys, "\n[EXCERPT %d] position=%d\n", i+1, c.Position)
		sys.WriteString(trimBody(c.Content, maxExcerptChars))
		sys.WriteString("\n----\n")
	}

	return sys.String()
}

// buildContents turns the stored history plus the new question into the
// alternating user/model turns Gemini expects.
func buildContents(req rag.ReplyRequest) []*genai.Content {
	history := req.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == rag.RoleAssistant {
			role = genai.RoleModel
		}
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}

	return append(contents, genai.NewContentFromText(strings.TrimSpace(req.Question), genai.RoleUser))
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func oneLine(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if s == "" {
		return "provided by the user"
	}
	return trimBody(s, 160)
}

func trimBody(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

var _ rag.EmbeddingsClient = (*GeminiClient)(nil)
var _ rag.LLMClient = (*GeminiClient)(nil)
