package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryRepository keeps everything in process memory. It backs the API when
// no DATABASE_URL is configured and is used by tests.
type MemoryRepository struct {
	mu sync.RWMutex

	docs     map[string]Document
	chunks   map[string][]memChunk
	sessions map[string]memSession
	messages map[string][]Message

	nextChunkID int64
	nextSeq     int64
}

type memChunk struct {
	Chunk
	embedding []float32
}

type memSession struct {
	Session
	seq int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs:     make(map[string]Document),
		chunks:   make(map[string][]memChunk),
		sessions: make(map[string]memSession),
		messages: make(map[string][]Message),
	}
}

func (r *MemoryRepository) InsertDocument(_ context.Context, doc *Document, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("insert document: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[doc.ID]; ok {
		return fmt.Errorf("insert document: duplicate id %s", doc.ID)
	}

	stored := make([]memChunk, len(chunks))
	for i, c := range chunks {
		r.nextChunkID++
		c.ID = r.nextChunkID
		c.PDFID = doc.ID
		vec := make([]float32, len(embeddings[i]))
		copy(vec, embeddings[i])
		stored[i] = memChunk{Chunk: c, embedding: vec}
	}

	r.docs[doc.ID] = *doc
	r.chunks[doc.ID] = stored
	return nil
}

func (r *MemoryRepository) GetDocument(_ context.Context, id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) SearchSimilarChunks(_ context.Context, pdfID string, embedding []float32, limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 4
	}

	r.mu.RLock()
	stored := r.chunks[pdfID]
	out := make([]Chunk, 0, len(stored))
	for _, c := range stored {
		ch := c.Chunk
		ch.Distance = l2Distance(c.embedding, embedding)
		out = append(out, ch)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) CreateSession(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("create session: duplicate id %s", s.ID)
	}
	r.nextSeq++
	r.sessions[s.ID] = memSession{Session: *s, seq: r.nextSeq}
	return nil
}

func (r *MemoryRepository) GetSession(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := s.Session
	return &out, nil
}

func (r *MemoryRepository) ListSessions(_ context.Context) ([]Session, error) {
	r.mu.RLock()
	all := make([]memSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].seq > all[j].seq
	})

	out := make([]Session, len(all))
	for i, s := range all {
		out[i] = s.Session
	}
	return out, nil
}

func (r *MemoryRepository) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	delete(r.messages, id)
	return nil
}

func (r *MemoryRepository) InsertMessage(_ context.Context, m *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[m.SessionID]
	if !ok {
		return ErrSessionNotFound
	}
	r.nextSeq++
	s.UpdatedAt = m.CreatedAt
	s.seq = r.nextSeq
	r.sessions[m.SessionID] = s
	r.messages[m.SessionID] = append(r.messages[m.SessionID], *m)
	return nil
}

func (r *MemoryRepository) ListMessages(_ context.Context, sessionID string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func l2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

var _ Repository = (*MemoryRepository)(nil)
