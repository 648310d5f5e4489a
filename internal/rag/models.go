package rag

import "time"

// Mode tells whether a session chats freely or against one uploaded PDF.
type Mode string

const (
	ModeChat Mode = "chat"
	ModePDF  Mode = "pdf"
)

func (m Mode) Valid() bool {
	return m == ModeChat || m == ModePDF
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Document is an uploaded PDF (or imported file) split into chunks.
type Document struct {
	ID        string
	Filename  string
	NumChunks int
	CreatedAt time.Time
}

// Chunk is one retrievable piece of a document.
type Chunk struct {
	ID       int64
	PDFID    string
	Position int
	Content  string
	Distance float64
}

type Session struct {
	ID        string
	Name      string
	Mode      Mode
	PDFID     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
}

type UploadResult struct {
	PDFID          string
	Filename       string
	NumberOfChunks int
}

type ChatReply struct {
	Response  string
	MessageID string
}

// ReplyRequest is everything the chat model needs to answer one turn.
type ReplyRequest struct {
	Question string
	History  []Message
	// Excerpts are set for pdf sessions only.
	Excerpts     []Chunk
	DocumentName string
	Language     string
}
