package rag

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepositorySearchOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	doc := &Document{ID: "doc-1", Filename: "a.pdf", NumChunks: 3}
	chunks := []Chunk{{Position: 0, Content: "far"}, {Position: 1, Content: "near"}, {Position: 2, Content: "middle"}}
	vecs := [][]float32{{10, 0}, {1, 0}, {5, 0}}
	if err := repo.InsertDocument(ctx, doc, chunks, vecs); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.SearchSimilarChunks(ctx, "doc-1", []float32{0, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].Content != "near" || got[1].Content != "middle" {
		t.Fatalf("unexpected order %+v", got)
	}
	if got[0].PDFID != "doc-1" || got[0].ID == 0 {
		t.Fatalf("expected stored chunk ids, got %+v", got[0])
	}
}

func TestMemoryRepositoryRejectsMismatchedEmbeddings(t *testing.T) {
	repo := NewMemoryRepository()
	err := repo.InsertDocument(context.Background(), &Document{ID: "d"}, []Chunk{{}}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestMemoryRepositorySessions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"s1", "s2"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		if err := repo.CreateSession(ctx, &Session{ID: id, Mode: ModeChat, CreatedAt: ts, UpdatedAt: ts}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	if err := repo.InsertMessage(ctx, &Message{ID: "m1", SessionID: "s1", Role: RoleUser, Content: "hi", CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("insert message: %v", err)
	}

	list, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "s1" {
		t.Fatalf("expected s1 first after new message, got %+v", list)
	}

	if err := repo.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteSession(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	msgs, _ := repo.ListMessages(ctx, "s1")
	if len(msgs) != 0 {
		t.Fatalf("messages should be removed with session")
	}
	if err := repo.InsertMessage(ctx, &Message{ID: "m2", SessionID: "s1"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
