package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/josinaldojr/pdf-chat-rag/internal/rag"
	"github.com/josinaldojr/pdf-chat-rag/pkg/chatapi"
)

type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type Handler struct {
	ragService *rag.Service
	log        *slog.Logger
	opts       Options
}

func NewHandler(ragService *rag.Service, log *slog.Logger, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Handler{ragService: ragService, log: log, opts: opts}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if header.Size > h.opts.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	res, err := h.ragService.UploadPDF(ctx, header.Filename, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.log.Info("pdf indexed", "pdf_id", res.PDFID, "filename", res.Filename, "chunks", res.NumberOfChunks)
	writeJSON(w, http.StatusOK, chatapi.UploadResponse{
		PDFID:          res.PDFID,
		NumberOfChunks: res.NumberOfChunks,
	})
}

func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req chatapi.RetrieveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	chunks, err := h.ragService.Retrieve(ctx, req.Query, req.PDFID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := chatapi.RetrieveResponse{Chunks: make([]string, 0, len(chunks))}
	for _, c := range chunks {
		out.Chunks = append(out.Chunks, c.Content)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatapi.GeneralChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	reply, err := h.ragService.Chat(ctx, req.Query, req.SessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatapi.GeneralChatResponse{
		Response:  reply.Response,
		MessageID: reply.MessageID,
	})
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req chatapi.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.ragService.CreateSession(r.Context(), req.Name, rag.Mode(req.Mode), req.PDFID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWireSession(*sess))
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.ragService.ListSessions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := chatapi.SessionList{Sessions: make([]chatapi.ChatSession, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, toWireSession(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) SessionMessages(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	msgs, err := h.ragService.History(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := chatapi.MessageList{Messages: make([]chatapi.ChatMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, toWireMessage(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) SaveMessage(w http.ResponseWriter, r *http.Request) {
	var req chatapi.SaveMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.ragService.SaveMessage(r.Context(), req.SessionID, rag.Role(req.Role), req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWireMessage(*msg))
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.ragService.DeleteSession(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionID decodes the {id} route variable; the router matches on the
// escaped path so ids may contain "/".
func sessionID(r *http.Request) (string, error) {
	id, err := url.PathUnescape(mux.Vars(r)["id"])
	if err != nil {
		return "", fmt.Errorf("%w: malformed session id", rag.ErrInvalidInput)
	}
	return id, nil
}

func (h *Handler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.opts.RequestTimeout)
}

// fail maps service errors to statuses; unexpected errors are logged and hidden.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rag.ErrInvalidInput),
		errors.Is(err, rag.ErrInvalidPDF),
		errors.Is(err, rag.ErrEmptyDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, rag.ErrSessionNotFound),
		errors.Is(err, rag.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.log.Warn("request timed out", "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, chatapi.ErrorBody{Detail: detail})
}

func toWireSession(s rag.Session) chatapi.ChatSession {
	return chatapi.ChatSession{
		ID:        s.ID,
		Name:      s.Name,
		Mode:      chatapi.Mode(s.Mode),
		PDFID:     s.PDFID,
		CreatedAt: chatapi.NewTimestamp(s.CreatedAt),
		UpdatedAt: chatapi.NewTimestamp(s.UpdatedAt),
	}
}

func toWireMessage(m rag.Message) chatapi.ChatMessage {
	return chatapi.ChatMessage{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      chatapi.Role(m.Role),
		Content:   m.Content,
		Timestamp: chatapi.NewTimestamp(m.CreatedAt),
	}
}
