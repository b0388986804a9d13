package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// MaxImagesPerSend mirrors the backend's per-message image cap.
const MaxImagesPerSend = 5

// Client talks to the algebra-chatbot backend.
type Client struct {
	BaseURL string

	// http serves the short request/response endpoints; stream serves
	// POST /api/chat and carries no timeout because a send may outlast
	// any reasonable deadline while the agent pipeline runs.
	http   *http.Client
	stream *http.Client
}

// ImageAttachment is one image queued for a send.
type ImageAttachment struct {
	Name string
	Data []byte
}

// NewClient builds a client for the given base URL. An empty base URL
// falls back to ALGCHAT_SERVER_URL, then to localhost.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("ALGCHAT_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		stream:  &http.Client{},
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("backend error: %s returned %d: %s", path, resp.StatusCode, truncateBody(body))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.getJSON(ctx, "/api/health", &hs)
	return hs, err
}

func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := c.getJSON(ctx, "/api/conversations", &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]MessageRecord, error) {
	var wire []wireMessage
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.getJSON(ctx, path, &wire); err != nil {
		return nil, err
	}
	records := make([]MessageRecord, 0, len(wire))
	for _, w := range wire {
		records = append(records, w.toRecord())
	}
	return records, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var results []SearchResult
	if err := c.getJSON(ctx, "/api/search?q="+url.QueryEscape(query), &results); err != nil {
		return nil, err
	}
	return results, nil
}

// RenameConversation updates a conversation title.
func (c *Client) RenameConversation(ctx context.Context, conversationID, title string) error {
	payload, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return err
	}
	path := "/api/conversations/" + url.PathEscape(conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("rename conversation: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	path := "/api/conversations/" + url.PathEscape(conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("delete conversation: status %d", resp.StatusCode)
	}
	return nil
}

// ChatStream is a live chat response: the session id from the response
// headers plus a decoder over the streaming body. Close when done.
type ChatStream struct {
	SessionID string

	body io.ReadCloser
	dec  *StreamDecoder
}

// NewChatStream wraps an already-open body. Exposed so tests can decode
// canned streams without a server.
func NewChatStream(sessionID string, body io.ReadCloser) *ChatStream {
	return &ChatStream{SessionID: sessionID, body: body, dec: NewStreamDecoder(body)}
}

func (s *ChatStream) Next() (StreamEvent, error) { return s.dec.Next() }
func (s *ChatStream) Drained() bool              { return s.dec.Drained() }
func (s *ChatStream) Close() error               { return s.body.Close() }

// Chat sends one user turn. sessionID may be empty; the backend then
// creates a conversation and reports its id via the X-Session-Id header,
// surfaced on the returned ChatStream.
func (c *Client) Chat(ctx context.Context, message, sessionID string, images []ImageAttachment) (*ChatStream, error) {
	if len(images) > MaxImagesPerSend {
		return nil, fmt.Errorf("too many images: %d (max %d)", len(images), MaxImagesPerSend)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if message != "" {
		if err := mw.WriteField("message", message); err != nil {
			return nil, err
		}
	}
	if sessionID != "" {
		if err := mw.WriteField("session_id", sessionID); err != nil {
			return nil, err
		}
	}
	for _, img := range images {
		name := img.Name
		if name == "" {
			name = "image"
		}
		part, err := mw.CreateFormFile("images", name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat request: status %d: %s", resp.StatusCode, truncateBody(body))
	}

	id := resp.Header.Get("X-Session-Id")
	if id == "" {
		id = sessionID
	}
	return NewChatStream(id, resp.Body), nil
}

func truncateBody(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "…"
	}
	return s
}
