package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/attachment"
)

const (
	DefaultBaseURL = "http://localhost:5000"

	queryPath      = "/api/chatbot/query"
	uploadPath     = "/api/chatbot/upload"
	unansweredPath = "/api/chatbot/unanswer-questions"

	// maxBodyBytes caps how much of a reply body is read.
	maxBodyBytes = 4 << 20
)

// ErrMalformedResponse covers bodies that are not the JSON shape the backend documents.
var ErrMalformedResponse = errors.New("chatbot: malformed response")

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("chatbot: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("chatbot: %s", e.Status)
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

type replyResponse struct {
	Response *string `json:"response"`
}

type Option func(*Client)

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithUploadField sets the multipart field name that carries the file.
func WithUploadField(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.uploadField = name
		}
	}
}

// Client talks to the chatbot backend.
type Client struct {
	baseURL     string
	uploadField string
	httpClient  *http.Client
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		uploadField: "file",
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Query sends a text-only message.
func (c *Client) Query(ctx context.Context, query, sessionID string) (string, error) {
	body, err := json.Marshal(queryRequest{Query: query, SessionID: sessionID})
	if err != nil {
		return "", fmt.Errorf("chatbot: marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queryPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chatbot: build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doReply(req)
}

// Upload sends a message with a file as multipart/form-data.
func (c *Client) Upload(ctx context.Context, a *attachment.Attachment, query, sessionID string) (string, error) {
	if a == nil {
		return "", fmt.Errorf("chatbot: upload without attachment")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, c.uploadField, a.Name))
	h.Set("Content-Type", a.MIMEType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("chatbot: create file part: %w", err)
	}
	if _, err := part.Write(a.Data); err != nil {
		return "", fmt.Errorf("chatbot: write file part: %w", err)
	}
	if err := mw.WriteField("query", query); err != nil {
		return "", fmt.Errorf("chatbot: write query field: %w", err)
	}
	if err := mw.WriteField("sessionId", sessionID); err != nil {
		return "", fmt.Errorf("chatbot: write sessionId field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("chatbot: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &buf)
	if err != nil {
		return "", fmt.Errorf("chatbot: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.doReply(req)
}

func (c *Client) doReply(req *http.Request) (string, error) {
	data, err := c.do(req)
	if err != nil {
		return "", err
	}

	var out replyResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Response == nil || strings.TrimSpace(*out.Response) == "" {
		return "", fmt.Errorf("%w: missing response field", ErrMalformedResponse)
	}
	return *out.Response, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatbot: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("chatbot: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   truncate(strings.TrimSpace(string(data)), 200),
		}
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
