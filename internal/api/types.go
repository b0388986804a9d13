package api

import (
	"encoding/json"
	"strings"
	"time"
)

// Conversation is a backend conversation summary. The backend owns these
// fields; pin/archive state is client-side only and lives elsewhere.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MessageRecord is one stored message as returned by the backend, with
// image payloads already decoded into a list.
type MessageRecord struct {
	ID        string
	Role      string
	Content   string
	Images    []string
	CreatedAt time.Time
}

// SearchResult is one hit from GET /api/search. Type is "conversation"
// or "message".
type SearchResult struct {
	Type           string `json:"type"`
	ID             string `json:"id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
	CreatedAt      string `json:"created_at"`
}

// HealthStatus is the GET /api/health payload.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type wireMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	ImageData string `json:"image_data"`
	CreatedAt string `json:"created_at"`
}

func (w wireMessage) toRecord() MessageRecord {
	return MessageRecord{
		ID:        w.ID,
		Role:      w.Role,
		Content:   w.Content,
		Images:    decodeImageData(w.ImageData),
		CreatedAt: ParseTimestamp(w.CreatedAt),
	}
}

// decodeImageData handles both storage formats: new rows hold a JSON
// array of base64 strings, legacy rows a single bare base64 string.
func decodeImageData(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return list
		}
	}
	return []string{raw}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses the backend's isoformat timestamps, which may or
// may not carry fractional seconds or a zone. Unparsable input yields the
// zero time rather than an error; callers treat that as "unknown".
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
