package chat

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// Message is one entry in the active conversation buffer.
//
// Streaming marks a message still receiving content, from a live send or
// from reveal simulation; Simulating distinguishes the latter. Only the
// trailing message of a buffer may stream, and once Streaming drops to
// false the message never changes again.
type Message struct {
	ID         string
	Role       Role
	Content    string
	Images     []string
	Streaming  bool
	Simulating bool
	Status     string
	CreatedAt  time.Time

	// full holds the complete text while Simulating; Content is the
	// revealed prefix.
	full string
}

// Buffer is the ordered message sequence for the active conversation.
// It is owned by the UI loop; all mutation goes through these methods so
// the streaming invariants hold in one place.
type Buffer struct {
	msgs []Message
}

func NewBuffer() *Buffer { return &Buffer{} }

func (b *Buffer) Len() int { return len(b.msgs) }

// Messages exposes the underlying slice for rendering. Callers must not
// mutate entries.
func (b *Buffer) Messages() []Message { return b.msgs }

func (b *Buffer) Last() (Message, bool) {
	if len(b.msgs) == 0 {
		return Message{}, false
	}
	return b.msgs[len(b.msgs)-1], true
}

func (b *Buffer) Clear() { b.msgs = nil }

// AppendUser adds the optimistic user message for a send.
func (b *Buffer) AppendUser(text string, images []string) Message {
	b.FinalizeLast()
	msg := Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		Images:    images,
		CreatedAt: time.Now(),
	}
	b.msgs = append(b.msgs, msg)
	return msg
}

// AppendPlaceholder adds the empty streaming assistant message that a
// live send fills in.
func (b *Buffer) AppendPlaceholder() {
	b.FinalizeLast()
	b.msgs = append(b.msgs, Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Streaming: true,
		CreatedAt: time.Now(),
	})
}

// AppendError adds a user-visible failure notice as its own message.
func (b *Buffer) AppendError(text string) {
	b.FinalizeLast()
	b.msgs = append(b.msgs, Message{
		ID:        uuid.NewString(),
		Role:      RoleError,
		Content:   text,
		CreatedAt: time.Now(),
	})
}

// SetStreamContent replaces the trailing message's content with the
// accumulated stream text. No-op unless the trailing message streams.
func (b *Buffer) SetStreamContent(content string) {
	if m := b.streamingLast(); m != nil {
		m.Content = content
	}
}

// SetStatus updates the transient progress label on the streaming
// trailing message.
func (b *Buffer) SetStatus(status string) {
	if m := b.streamingLast(); m != nil {
		m.Status = status
	}
}

// FinalizeLast ends streaming on the trailing message. The status label
// clears with it; simulation state is discarded by revealing everything.
func (b *Buffer) FinalizeLast() {
	m := b.streamingLast()
	if m == nil {
		return
	}
	if m.Simulating && m.full != "" {
		m.Content = m.full
	}
	m.Streaming = false
	m.Simulating = false
	m.Status = ""
	m.full = ""
}

// MarkPendingLast flags the trailing message as still streaming without
// starting a reveal simulation. Used after a reload finds an assistant
// message whose generation has not produced content yet.
func (b *Buffer) MarkPendingLast() {
	if len(b.msgs) == 0 {
		return
	}
	b.msgs[len(b.msgs)-1].Streaming = true
}

// BeginSimulation converts the trailing message into a simulated reveal:
// visible is shown now, full is revealed over subsequent Advance calls.
func (b *Buffer) BeginSimulation(visible, full string) {
	if len(b.msgs) == 0 {
		return
	}
	m := &b.msgs[len(b.msgs)-1]
	m.Content = visible
	m.full = full
	m.Streaming = true
	m.Simulating = true
}

// Advance reveals up to n more characters of a simulated trailing
// message. It reports whether simulation is still running.
func (b *Buffer) Advance(n int) bool {
	m := b.streamingLast()
	if m == nil || !m.Simulating {
		return false
	}
	visible := []rune(m.Content)
	full := []rune(m.full)
	next := len(visible) + n
	if next >= len(full) {
		b.FinalizeLast()
		return false
	}
	m.Content = string(full[:next])
	return true
}

// Replace swaps in a freshly loaded message list.
func (b *Buffer) Replace(msgs []Message) { b.msgs = msgs }

// TrailingPending reports whether the trailing message is an assistant
// placeholder whose generation is still running server-side.
func (b *Buffer) TrailingPending() bool {
	last, ok := b.Last()
	return ok && last.Role == RoleAssistant && last.Content == "" && !last.Simulating
}

func (b *Buffer) streamingLast() *Message {
	if len(b.msgs) == 0 {
		return nil
	}
	m := &b.msgs[len(b.msgs)-1]
	if !m.Streaming {
		return nil
	}
	return m
}
