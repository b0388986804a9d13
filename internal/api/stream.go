package api

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// EventKind discriminates the decoded stream payload shapes.
type EventKind int

const (
	EventToken EventKind = iota
	EventStatus
	EventDone
)

// StreamEvent is one decoded record from a chat response stream.
type StreamEvent struct {
	Kind    EventKind
	Content string // token text
	Status  string // status label, e.g. "thinking", "responding"
	Err     string // error carried by a done record, if any
	Meta    *DoneMetadata
}

// DoneMetadata is the tracking payload the backend attaches to its final
// record. Purely informational on the client; logged, never rendered.
type DoneMetadata struct {
	SessionID       string   `json:"session_id"`
	AgentsUsed      []string `json:"agents_used"`
	ToolsCalled     []string `json:"tools_called"`
	TotalTokens     int      `json:"total_tokens"`
	TotalDurationMs int64    `json:"total_duration_ms"`
}

type wireEvent struct {
	Type     string          `json:"type"`
	Content  string          `json:"content"`
	Status   string          `json:"status"`
	Error    string          `json:"error"`
	Metadata json.RawMessage `json:"metadata"`
}

// StreamDecoder reads "data: <payload>" records from a chat response
// body. Payloads are JSON when possible; anything unrecognizable is
// degraded to a raw token append rather than surfaced as an error.
type StreamDecoder struct {
	r *bufio.Reader
}

func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{r: bufio.NewReader(r)}
}

// Next returns the next decoded event. io.EOF signals a clean end of the
// stream (either a done/[DONE] record was already returned, or the
// transport closed).
func (d *StreamDecoder) Next() (StreamEvent, error) {
	for {
		line, err := d.r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err != nil {
				return StreamEvent{}, err
			}
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			// Comment or unknown field; SSE says ignore.
			if err != nil {
				return StreamEvent{}, err
			}
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		ev, ok := decodePayload(payload)
		if !ok {
			if err != nil {
				return StreamEvent{}, err
			}
			continue
		}
		return ev, nil
	}
}

// Drained reports whether the decoder has consumed everything the
// transport has delivered so far, i.e. the current network chunk is
// exhausted. Callers use this to bound flush latency.
func (d *StreamDecoder) Drained() bool {
	return d.r.Buffered() == 0
}

func decodePayload(payload string) (StreamEvent, bool) {
	if payload == "" {
		return StreamEvent{}, false
	}
	if payload == "[DONE]" {
		return StreamEvent{Kind: EventDone}, true
	}

	var we wireEvent
	if err := json.Unmarshal([]byte(payload), &we); err == nil && we.Type != "" {
		switch we.Type {
		case "token":
			return StreamEvent{Kind: EventToken, Content: we.Content}, true
		case "status":
			return StreamEvent{Kind: EventStatus, Status: we.Status}, true
		case "done":
			ev := StreamEvent{Kind: EventDone, Err: we.Error}
			if len(we.Metadata) > 0 {
				var meta DoneMetadata
				if err := json.Unmarshal(we.Metadata, &meta); err == nil {
					ev.Meta = &meta
				}
			}
			return ev, true
		default:
			// Unknown shape from a newer backend; skip it.
			return StreamEvent{}, false
		}
	}

	// A bare JSON string is a token too.
	var s string
	if err := json.Unmarshal([]byte(payload), &s); err == nil {
		return StreamEvent{Kind: EventToken, Content: s}, true
	}

	// Non-JSON payload: legacy backends streamed raw text.
	return StreamEvent{Kind: EventToken, Content: payload}, true
}
