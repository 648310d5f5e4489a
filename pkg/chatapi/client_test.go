package chatapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

type recorded struct {
	method      string
	path        string
	contentType string
	body        []byte
}

func newTestServer(t *testing.T, status int, response string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.EscapedPath()
		rec.contentType = r.Header.Get("Content-Type")
		rec.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	cl, err := New(srv.URL + "/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return cl, rec
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid json body %q: %v", body, err)
	}
	return payload
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty baseURL")
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	cl, err := New("http://example.test/api/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cl.BaseURL() != "http://example.test/api" {
		t.Fatalf("unexpected base url %q", cl.BaseURL())
	}
}

func TestUploadPDF(t *testing.T) {
	cl, rec := newTestServer(t, http.StatusOK, `{"pdf_id":"doc-1","number_of_chunks":7}`)

	out, err := cl.UploadPDF(context.Background(), "/tmp/report.pdf", strings.NewReader("%PDF-1.4 data"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if out.PDFID != "doc-1" || out.NumberOfChunks != 7 {
		t.Fatalf("unexpected response %+v", out)
	}
	if rec.method != http.MethodPost || rec.path != "/upload-pdf" {
		t.Fatalf("unexpected request %s %s", rec.method, rec.path)
	}
	if !strings.HasPrefix(rec.contentType, "multipart/form-data") {
		t.Fatalf("expected multipart content type, got %q", rec.contentType)
	}
	if !strings.Contains(string(rec.body), `name="file"; filename="report.pdf"`) {
		t.Fatalf("multipart body missing file part: %s", rec.body)
	}
	if !strings.Contains(string(rec.body), "%PDF-1.4 data") {
		t.Fatalf("multipart body missing file content")
	}
}

func TestRetrieveChunks(t *testing.T) {
	cl, rec := newTestServer(t, http.StatusOK, `{"chunks":["a","b"]}`)

	chunks, err := cl.RetrieveChunks(context.Background(), "what is it?", "doc-1")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(chunks) != 2 || chunks[0] != "a" || chunks[1] != "b" {
		t.Fatalf("unexpected chunks %v", chunks)
	}
	if rec.method != http.MethodPost || rec.path != "/retrieve" {
		t.Fatalf("unexpected request %s %s", rec.method, rec.path)
	}
	if rec.contentType != "application/json" {
		t.Fatalf("expected json content type, got %q", rec.contentType)
	}
	payload := decodeBody(t, rec.body)
	if payload["query"] != "what is it?" || payload["pdf_id"] != "doc-1" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestSendGeneralChat(t *testing.T) {
	cl, rec := newTestServer(t, http.StatusOK, `{"response":"hello","message_id":"m-9"}`)

	out, err := cl.SendGeneralChat(context.Background(), "hi", "s-1")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out.Response != "hello" || out.MessageID != "m-9" {
		t.Fatalf("unexpected response %+v", out)
	}
	if rec.method != http.MethodPost || rec.path != "/chat" {
		t.Fatalf("unexpected request %s %s", rec.method, rec.path)
	}
	payload := decodeBody(t, rec.body)
	if payload["query"] != "hi" || payload["session_id"] != "s-1" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name     string
		mode     Mode
		pdfID    string
		wantPDF  bool
		response string
	}{
		{
			name:     "chat mode omits pdf id",
			mode:     ModeChat,
			response: `{"id":"s-1","name":"n","mode":"chat","created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-01T10:00:00Z"}`,
		},
		{
			name:     "pdf mode sends pdf id",
			mode:     ModePDF,
			pdfID:    "doc-1",
			wantPDF:  true,
			response: `{"id":"s-1","name":"n","mode":"pdf","pdf_id":"doc-1","created_at":"2024-05-01T10:00:00.123456","updated_at":"2024-05-01T10:00:00.123456"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cl, rec := newTestServer(t, http.StatusOK, tc.response)

			out, err := cl.CreateSession(context.Background(), "n", tc.mode, tc.pdfID)
			if err != nil {
				t.Fatalf("create session: %v", err)
			}
			if out.ID != "s-1" || out.Mode != tc.mode || out.PDFID != tc.pdfID {
				t.Fatalf("unexpected session %+v", out)
			}
			if out.CreatedAt.IsZero() {
				t.Fatalf("expected created_at to be parsed")
			}
			if rec.method != http.MethodPost || rec.path != "/sessions" {
				t.Fatalf("unexpected request %s %s", rec.method, rec.path)
			}
			payload := decodeBody(t, rec.body)
			_, hasPDF := payload["pdf_id"]
			if hasPDF != tc.wantPDF {
				t.Fatalf("pdf_id presence = %v, want %v (payload %v)", hasPDF, tc.wantPDF, payload)
			}
			if payload["name"] != "n" || payload["mode"] != string(tc.mode) {
				t.Fatalf("unexpected payload %v", payload)
			}
		})
	}
}

func TestGetSessions(t *testing.T) {
	cl, rec := newTestServer(t, http.StatusOK, `{"sessions":[{"id":"s-1","name":"a","mode":"chat","created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-02T10:00:00Z"}]}`)

	sessions, err := cl.GetSessions(context.Background())
	if err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s-1" {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
	want := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	if !sessions[0].UpdatedAt.Equal(want) {
		t.Fatalf("updated_at = %v, want %v", sessions[0].UpdatedAt, want)
	}
	if rec.method != http.MethodGet || rec.path != "/sessions" {
		t.Fatalf("unexpected request %s %s", rec.method, rec.path)
	}
}

func TestGetChatHistoryEscapesID(t *testing.T) {
	cl, rec := newTestServer(t, http.StatusOK, `{"messages":[{"id":"m-1","session_id":"a/b","role":"user","content":"hi","timestamp":"2024-05-01T10:00:00+02:00"}]}`)

	msgs, err := cl.GetChatHistory(context.Background(), "a/b")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != RoleUser || msgs[0].Content != "hi" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if rec.method != http.MethodGet || rec.path != "/sessions/a%2Fb/messages" {
		t.Fatalf("unexpected request %s %s", rec.method, rec.path)
	}
}

func TestSaveMessage(t *testing.T) {
	cl, rec := newTestServer(t, http.StatusOK, `{"id":"m-1","session_id":"s-1","role":"assistant","content":"ok","timestamp":"2024-05-01T10:00:00Z"}`)

	msg, err := cl.SaveMessage(context.Background(), "s-1", RoleAssistant, "ok")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if msg.ID != "m-1" || msg.Role != RoleAssistant {
		t.Fatalf("unexpected message %+v", msg)
	}
	if rec.method != http.MethodPost || rec.path != "/messages" {
		t.Fatalf("unexpected request %s %s", rec.method, rec.path)
	}
	payload := decodeBody(t, rec.body)
	if payload["session_id"] != "s-1" || payload["role"] != "assistant" || payload["content"] != "ok" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestDeleteSessionIgnoresBody(t *testing.T) {
	cl, rec := newTestServer(t, http.StatusOK, `{"message":"deleted"}`)

	if err := cl.DeleteSession(context.Background(), "s-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.method != http.MethodDelete || rec.path != "/sessions/s-1" {
		t.Fatalf("unexpected request %s %s", rec.method, rec.path)
	}
}

func TestErrorStatusPropagates(t *testing.T) {
	cl, _ := newTestServer(t, http.StatusNotFound, `{"detail":"Session not found"}`)

	_, err := cl.GetChatHistory(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.Detail != "Session not found" || se.Method != http.MethodGet {
		t.Fatalf("unexpected status error %+v", se)
	}
}

func TestErrorWithPlainBody(t *testing.T) {
	cl, _ := newTestServer(t, http.StatusInternalServerError, "boom")

	err := cl.DeleteSession(context.Background(), "s-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if IsNotFound(err) {
		t.Fatalf("500 must not be reported as not found")
	}
	if !strings.Contains(err.Error(), "status 500: boom") {
		t.Fatalf("unexpected error text %q", err.Error())
	}
}

func TestNetworkErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	cl, err := New(base)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := cl.GetSessions(context.Background()); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestWithHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"sessions":[]}`)
	}))
	defer srv.Close()

	cl, err := New(srv.URL, WithHeader("Authorization", "Bearer t"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := cl.GetSessions(context.Background()); err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	if got != "Bearer t" {
		t.Fatalf("expected auth header, got %q", got)
	}
}

func TestTimestampNull(t *testing.T) {
	var msg ChatMessage
	if err := json.Unmarshal([]byte(`{"id":"m","timestamp":null}`), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !msg.Timestamp.IsZero() {
		t.Fatalf("expected zero timestamp")
	}
	if err := json.Unmarshal([]byte(`{"timestamp":"yesterday"}`), &msg); err == nil {
		t.Fatalf("expected error for bad timestamp")
	}
}

func TestWithTimeoutLeavesCallerClientAlone(t *testing.T) {
	shared := &http.Client{}

	for _, opts := range [][]Option{
		{WithHTTPClient(shared), WithTimeout(2 * time.Second)},
		{WithTimeout(2 * time.Second), WithHTTPClient(shared)},
	} {
		cl, err := New("http://example.invalid", opts...)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if cl.http == shared {
			t.Fatalf("expected a copy of the caller client")
		}
		if cl.http.Timeout != 2*time.Second {
			t.Fatalf("expected 2s timeout, got %v", cl.http.Timeout)
		}
	}
	if shared.Timeout != 0 {
		t.Fatalf("caller client timeout changed to %v", shared.Timeout)
	}
}

func TestWithHTTPClientWithoutTimeoutIsUsedAsIs(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	cl, err := New("http://example.invalid", WithHTTPClient(shared))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cl.http != shared {
		t.Fatalf("expected the caller client to be used")
	}
}

func TestErrorDetailTruncatedOnRuneBoundary(t *testing.T) {
	body := []byte(strings.Repeat("ü", 400)) // 800 bytes

	se := newStatusError(http.MethodGet, "/sessions", http.StatusBadGateway, body)
	if !utf8.ValidString(se.Detail) {
		t.Fatalf("detail is not valid UTF-8")
	}
	if !strings.HasSuffix(se.Detail, "...") || len(se.Detail) > maxDetail+3 {
		t.Fatalf("unexpected detail length %d", len(se.Detail))
	}
}
