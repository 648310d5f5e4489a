package chatapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Mode string

const (
	ModeChat Mode = "chat"
	ModePDF  Mode = "pdf"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UploadResponse is returned by POST /upload-pdf.
type UploadResponse struct {
	PDFID          string `json:"pdf_id"`
	NumberOfChunks int    `json:"number_of_chunks"`
}

type ChatSession struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mode      Mode      `json:"mode"`
	PDFID     string    `json:"pdf_id,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

type GeneralChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type GeneralChatResponse struct {
	Response  string `json:"response"`
	MessageID string `json:"message_id"`
}

type RetrieveRequest struct {
	Query string `json:"query"`
	PDFID string `json:"pdf_id"`
}

type RetrieveResponse struct {
	Chunks []string `json:"chunks"`
}

type CreateSessionRequest struct {
	Name  string `json:"name"`
	Mode  Mode   `json:"mode"`
	PDFID string `json:"pdf_id,omitempty"`
}

type SessionList struct {
	Sessions []ChatSession `json:"sessions"`
}

type MessageList struct {
	Messages []ChatMessage `json:"messages"`
}

type SaveMessageRequest struct {
	SessionID string `json:"session_id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
}

// ErrorBody is the JSON body returned with non-2xx statuses.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// Timestamp accepts RFC 3339 values as well as ISO-8601 timestamps without a
// zone offset, which are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", s)
}
