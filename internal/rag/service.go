package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	wl "github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

const defaultSessionName = "New chat"

type Options struct {
	ChunkSize int
	TopK      int
}

type Service struct {
	repo       Repository
	embeddings EmbeddingsClient
	llm        LLMClient
	opts       Options

	now   func() time.Time
	newID func() string
}

func NewService(repo Repository, embeddings EmbeddingsClient, llm LLMClient, opts Options) *Service {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	return &Service{
		repo:       repo,
		embeddings: embeddings,
		llm:        llm,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// UploadPDF extracts the text of a PDF and indexes it as a new document.
func (s *Service) UploadPDF(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if !IsPDF(data) {
		return nil, fmt.Errorf("%w: %s is not a PDF", ErrInvalidPDF, filename)
	}

	text, err := ExtractPDFText(data)
	if err != nil {
		return nil, err
	}
	return s.IngestText(ctx, filename, text)
}

// IngestText chunks, embeds and stores already extracted text as a document.
func (s *Service) IngestText(ctx context.Context, filename, text string) (*UploadResult, error) {
	contents := SplitIntoChunks(text, s.opts.ChunkSize)
	if len(contents) == 0 {
		return nil, ErrEmptyDocument
	}

	embeddings, err := s.embeddings.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(contents) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(embeddings), len(contents))
	}

	doc := &Document{
		ID:        s.newID(),
		Filename:  strings.TrimSpace(filename),
		NumChunks: len(contents),
		CreatedAt: s.now(),
	}
	chunks := make([]Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = Chunk{PDFID: doc.ID, Position: i, Content: c}
	}

	if err := s.repo.InsertDocument(ctx, doc, chunks, embeddings); err != nil {
		return nil, err
	}

	return &UploadResult{
		PDFID:          doc.ID,
		Filename:       doc.Filename,
		NumberOfChunks: doc.NumChunks,
	}, nil
}

// Retrieve returns the chunks of pdfID closest to query, best match first.
func (s *Service) Retrieve(ctx context.Context, query, pdfID string) ([]Chunk, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if strings.TrimSpace(pdfID) == "" {
		return nil, fmt.Errorf("%w: pdf_id is required", ErrInvalidInput)
	}

	if _, err := s.repo.GetDocument(ctx, pdfID); err != nil {
		return nil, err
	}

	vec, err := s.embeddings.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return s.repo.SearchSimilarChunks(ctx, pdfID, vec, s.opts.TopK)
}

// Chat answers query inside a session and stores the assistant reply.
// The user turn is expected to be saved by the caller through SaveMessage.
func (s *Service) Chat(ctx context.Context, query, sessionID string) (*ChatReply, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListMessages(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if n := len(history); n > 0 && history[n-1].Role == RoleUser && strings.TrimSpace(history[n-1].Content) == q {
		history = history[:n-1]
	}

	req := ReplyRequest{
		Question: q,
		History:  history,
		Language: detectLanguage(q),
	}

	if sess.Mode == ModePDF && sess.PDFID != "" {
		doc, err := s.repo.GetDocument(ctx, sess.PDFID)
		if err != nil {
			return nil, err
		}
		excerpts, err := s.Retrieve(ctx, q, sess.PDFID)
		if err != nil {
			return nil, err
		}
		req.Excerpts = excerpts
		req.DocumentName = doc.Filename
	}

	answer, err := s.llm.Reply(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	msg, err := s.SaveMessage(ctx, sess.ID, RoleAssistant, answer)
	if err != nil {
		return nil, err
	}

	return &ChatReply{Response: answer, MessageID: msg.ID}, nil
}

func (s *Service) CreateSession(ctx context.Context, name string, mode Mode, pdfID string) (*Session, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: mode must be %q or %q", ErrInvalidInput, ModeChat, ModePDF)
	}
	pdfID = strings.TrimSpace(pdfID)
	if mode == ModePDF {
		if pdfID == "" {
			return nil, fmt.Errorf("%w: pdf_id is required for pdf sessions", ErrInvalidInput)
		}
		if _, err := s.repo.GetDocument(ctx, pdfID); err != nil {
			return nil, err
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultSessionName
	}

	now := s.now()
	sess := &Session{
		ID:        s.newID(),
		Name:      name,
		Mode:      mode,
		PDFID:     pdfID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mode == ModeChat {
		sess.PDFID = ""
	}

	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) ListSessions(ctx context.Context) ([]Session, error) {
	return s.repo.ListSessions(ctx)
}

// History returns the session's messages, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]Message, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, sessionID)
}

func (s *Service) SaveMessage(ctx context.Context, sessionID string, role Role, content string) (*Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role must be %q or %q", ErrInvalidInput, RoleUser, RoleAssistant)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidInput)
	}

	msg := &Message{
		ID:        s.newID(),
		SessionID: sessionID,
		Role:      role,
		Content:   SanitizeUTF8(content),
		CreatedAt: s.now(),
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	return s.repo.DeleteSession(ctx, sessionID)
}

var languageNames = map[string]string{
	"eng": "English",
	"por": "Portuguese",
	"spa": "Spanish",
	"fra": "French",
	"deu": "German",
	"ita": "Italian",
	"nld": "Dutch",
	"rus": "Russian",
	"hin": "Hindi",
}

// detectLanguage names the language of s, falling back to English for
// short or ambiguous input.
func detectLanguage(s string) string {
	info := wl.Detect(s)
	if info.Confidence < 0.5 {
		return "English"
	}
	if name, ok := languageNames[strings.ToLower(wl.LangToString(info.Lang))]; ok {
		return name
	}
	return "English"
}
