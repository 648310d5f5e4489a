// Package chatapi is a typed client for the PDF chat service REST API.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultBaseURL = "https://ai-bot-lac-three.vercel.app"

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	header  http.Header
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the request timeout. A client passed through
// WithHTTPClient is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(cl *Client) {
		cl.header.Set(key, value)
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("baseURL must not be empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cl := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		header: make(http.Header),
	}
	for _, o := range opts {
		o(cl)
	}
	if cl.timeout > 0 {
		hc := *cl.http
		hc.Timeout = cl.timeout
		cl.http = &hc
	}
	return cl, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadPDF sends the document as the "file" field of a multipart form.
func (c *Client) UploadPDF(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var out UploadResponse
	if err := c.do(ctx, http.MethodPost, "/upload-pdf", mw.FormDataContentType(), &body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UploadPDFFile(ctx context.Context, path string) (*UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return c.UploadPDF(ctx, filepath.Base(path), f)
}

// RetrieveChunks returns the document chunks most relevant to query.
func (c *Client) RetrieveChunks(ctx context.Context, query, pdfID string) ([]string, error) {
	var out RetrieveResponse
	in := RetrieveRequest{Query: query, PDFID: pdfID}
	if err := c.postJSON(ctx, "/retrieve", in, &out); err != nil {
		return nil, err
	}
	return out.Chunks, nil
}

func (c *Client) SendGeneralChat(ctx context.Context, query, sessionID string) (*GeneralChatResponse, error) {
	var out GeneralChatResponse
	in := GeneralChatRequest{Query: query, SessionID: sessionID}
	if err := c.postJSON(ctx, "/chat", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession creates a session. pdfID is only sent when non-empty.
func (c *Client) CreateSession(ctx context.Context, name string, mode Mode, pdfID string) (*ChatSession, error) {
	var out ChatSession
	in := CreateSessionRequest{Name: name, Mode: mode, PDFID: pdfID}
	if err := c.postJSON(ctx, "/sessions", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSessions(ctx context.Context) ([]ChatSession, error) {
	var out SessionList
	if err := c.getJSON(ctx, "/sessions", &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) GetChatHistory(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	var out MessageList
	if err := c.getJSON(ctx, "/sessions/"+url.PathEscape(sessionID)+"/messages", &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) SaveMessage(ctx context.Context, sessionID string, role Role, content string) (*ChatMessage, error) {
	var out ChatMessage
	in := SaveMessageRequest{SessionID: sessionID, Role: role, Content: content}
	if err := c.postJSON(ctx, "/messages", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession removes a session. The response body is ignored.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), "", nil, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(payload), out)
}

// do issues a single request. out may be nil, in which case the body is discarded.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return newStatusError(method, path, resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
