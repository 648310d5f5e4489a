package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type Repository interface {
	InsertDocument(ctx context.Context, doc *Document, chunks []Chunk, embeddings [][]float32) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	SearchSimilarChunks(ctx context.Context, pdfID string, embedding []float32, limit int) ([]Chunk, error)

	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error

	InsertMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
}

type PgRepository struct {
	db *pgxpool.Pool
}

func NewPgRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

// InsertDocument stores the document row and all of its chunks in one transaction.
func (r *PgRepository) InsertDocument(ctx context.Context, doc *Document, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("insert document: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO pdf_document (id, filename, num_chunks, created_at)
		VALUES ($1, $2, $3, $4)
	`, doc.ID, doc.Filename, doc.NumChunks, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(`
			INSERT INTO pdf_chunk (pdf_id, position, content, embedding)
			VALUES ($1, $2, $3, $4)
		`, doc.ID, c.Position, c.Content, pgvector.NewVector(embeddings[i]))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) GetDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	err := r.db.QueryRow(ctx, `
		SELECT id, filename, num_chunks, created_at
		FROM pdf_document
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Filename, &d.NumChunks, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

// SearchSimilarChunks orders the document's chunks by L2 distance to embedding.
func (r *PgRepository) SearchSimilarChunks(ctx context.Context, pdfID string, embedding []float32, limit int) ([]Chunk, error) {
	if limit <= 0 {
		limit = 4
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, pdf_id, position, content, embedding <-> $2 AS distance
		FROM pdf_chunk
		WHERE pdf_id = $1
		ORDER BY distance
		LIMIT $3
	`, pdfID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.PDFID, &c.Position, &c.Content, &c.Distance); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

func (r *PgRepository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chat_session (id, name, mode, pdf_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`, s.ID, s.Name, string(s.Mode), s.PDFID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *PgRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, mode, pdf_id, created_at, updated_at
		FROM chat_session
		WHERE id = $1
	`, id)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *PgRepository) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, mode, pdf_id, created_at, updated_at
		FROM chat_session
		ORDER BY updated_at DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes the session; its messages go with it through ON DELETE CASCADE.
func (r *PgRepository) DeleteSession(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM chat_session WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// InsertMessage stores m and bumps the session's updated_at to m.CreatedAt.
func (r *PgRepository) InsertMessage(ctx context.Context, m *Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE chat_session SET updated_at = $2 WHERE id = $1
	`, m.SessionID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_message (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.SessionID, string(m.Role), m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM chat_message
		WHERE session_id = $1
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var mode string
	var pdfID *string
	if err := row.Scan(&s.ID, &s.Name, &mode, &pdfID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Mode = Mode(mode)
	if pdfID != nil {
		s.PDFID = *pdfID
	}
	return &s, nil
}

var _ Repository = (*PgRepository)(nil)
