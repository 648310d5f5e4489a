package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

func NewRouter(h *Handler, log *slog.Logger, allowedOrigins []string) http.Handler {
	r := mux.NewRouter().UseEncodedPath()

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/upload-pdf", h.UploadPDF).Methods(http.MethodPost)
	r.HandleFunc("/retrieve", h.Retrieve).Methods(http.MethodPost)
	r.HandleFunc("/chat", h.Chat).Methods(http.MethodPost)

	r.HandleFunc("/sessions", h.CreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions", h.ListSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/messages", h.SessionMessages).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", h.DeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/messages", h.SaveMessage).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Use(recoverMiddleware(log), loggingMiddleware(log))

	// CORS wraps the router so preflight requests never hit method matching.
	return corsMiddleware(allowedOrigins)(r)
}
