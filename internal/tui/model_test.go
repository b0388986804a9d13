package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"algchat/internal/api"
	"algchat/internal/chat"
	"algchat/internal/state"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeBackend struct {
	scriptedSender
	convs   []api.Conversation
	msgs    map[string][]api.MessageRecord
	deleted []string
}

func (f *fakeBackend) ListConversations(ctx context.Context) ([]api.Conversation, error) {
	return f.convs, nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, id string) ([]api.MessageRecord, error) {
	return f.msgs[id], nil
}

func (f *fakeBackend) DeleteConversation(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestModel(t *testing.T, backend backendClient) *Model {
	t.Helper()
	store, err := state.Open(t.TempDir(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("opening state store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	m := newModel(backend, store, slog.New(slog.DiscardHandler))
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func pressEnter(m *Model) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func pressRune(m *Model, r rune) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return cmd
}

func TestSendFlow(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m.input.SetValue("what is 2+2?")

	if cmd := pressEnter(m); cmd == nil {
		t.Fatal("send produced no command")
	}
	if !m.gate.Sending() {
		t.Fatal("gate not claimed")
	}
	msgs := m.buffer.Messages()
	if len(msgs) != 2 {
		t.Fatalf("buffer len = %d, want user + placeholder", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser || msgs[0].Content != "what is 2+2?" {
		t.Fatalf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != chat.RoleAssistant || !msgs[1].Streaming {
		t.Fatalf("placeholder = %+v", msgs[1])
	}
	if m.input.Value() != "" {
		t.Fatal("composer not cleared")
	}

	// Backend mints a conversation id for the first send.
	m.Update(streamMsg{u: streamUpdate{sessionID: "minted-id"}})
	if m.currentConv != "minted-id" {
		t.Fatalf("currentConv = %q", m.currentConv)
	}
	if sum, ok := m.convs.Get("minted-id"); !ok || sum.Title != "what is 2+2?" {
		t.Fatalf("sidebar entry = %+v, ok=%v", sum, ok)
	}
	if m.store.CurrentConversation() != "minted-id" {
		t.Fatal("current conversation not persisted")
	}

	m.Update(streamMsg{u: streamUpdate{status: "thinking"}})
	m.Update(streamMsg{u: streamUpdate{text: "The answer is 4."}})
	last, _ := m.buffer.Last()
	if last.Content != "The answer is 4." || last.Status != "thinking" {
		t.Fatalf("streaming tail = %+v", last)
	}

	m.Update(streamMsg{u: streamUpdate{done: true, meta: &api.DoneMetadata{TotalTokens: 5}}})
	if m.gate.Sending() {
		t.Fatal("gate not released on done")
	}
	last, _ = m.buffer.Last()
	if last.Streaming || last.Status != "" || last.Content != "The answer is 4." {
		t.Fatalf("finalized tail = %+v", last)
	}
}

func TestSecondSendRejectedWhileInFlight(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m.input.SetValue("first question")
	pressEnter(m)
	before := m.buffer.Len()

	m.input.SetValue("second question")
	pressEnter(m)

	if m.buffer.Len() != before {
		t.Fatal("second send mutated the buffer")
	}
	if m.notice == "" {
		t.Fatal("no notice shown for rejected send")
	}
	if m.input.Value() != "second question" {
		t.Fatal("rejected send should keep the draft")
	}
}

func TestEmptySendIgnored(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m.input.SetValue("   ")
	pressEnter(m)
	if m.buffer.Len() != 0 || m.gate.Sending() {
		t.Fatal("whitespace-only send went through")
	}
}

func TestSendFailureAppendsApology(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m.input.SetValue("question")
	pressEnter(m)

	m.Update(streamMsg{u: streamUpdate{done: true, errText: "connection refused"}})
	if m.gate.Sending() {
		t.Fatal("gate leaked on failure")
	}
	msgs := m.buffer.Messages()
	if len(msgs) != 3 {
		t.Fatalf("buffer len = %d, want user + finalized placeholder + error", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser {
		t.Fatal("optimistic user message retracted")
	}
	if msgs[1].Streaming {
		t.Fatalf("placeholder left streaming: %+v", msgs[1])
	}
	last := msgs[2]
	if last.Role != chat.RoleError || !strings.Contains(last.Content, "try again") {
		t.Fatalf("error message = %+v", last)
	}
}

func TestStaleMessageLoadDropped(t *testing.T) {
	backend := &fakeBackend{msgs: map[string][]api.MessageRecord{
		"a": {{ID: "m1", Role: "user", Content: "from a"}},
		"b": {{ID: "m2", Role: "user", Content: "from b"}},
	}}
	m := newTestModel(t, backend)

	m.setConversation("a")
	staleGen := m.loadGen
	m.setConversation("b")

	m.Update(messagesMsg{convID: "a", gen: staleGen, records: backend.msgs["a"]})
	if m.buffer.Len() != 0 {
		t.Fatal("stale load for a previous conversation was applied")
	}

	m.Update(messagesMsg{convID: "b", gen: m.loadGen, records: backend.msgs["b"]})
	if last, _ := m.buffer.Last(); last.Content != "from b" {
		t.Fatalf("buffer = %+v", m.buffer.Messages())
	}
}

func TestLoadDroppedWhileSending(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m.currentConv = "a"
	m.input.SetValue("question")
	pressEnter(m)
	before := m.buffer.Len()

	m.Update(messagesMsg{convID: "a", gen: m.loadGen, records: nil})
	if m.buffer.Len() != before {
		t.Fatal("reload wiped the optimistic buffer mid-send")
	}
}

func TestJustCreatedSkipsReload(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m.gate.MarkJustCreated()
	m.buffer.AppendUser("kept", nil)

	if cmd := m.setConversation("fresh"); cmd != nil {
		t.Fatal("switch to a just-created conversation scheduled a reload")
	}
	if m.restoring {
		t.Fatal("just-created switch left restore pending")
	}
	if m.buffer.Len() != 1 {
		t.Fatal("buffer was wiped")
	}

	// The flag is consumed: the next switch reloads normally.
	if cmd := m.setConversation("other"); cmd == nil {
		t.Fatal("later switch did not reload")
	}
}

func TestSwitchAfterNewConversationSendReloads(t *testing.T) {
	backend := &fakeBackend{msgs: map[string][]api.MessageRecord{
		"other": {{ID: "m0", Role: "user", Content: "from other", CreatedAt: time.Now()}},
	}}
	m := newTestModel(t, backend)
	m.input.SetValue("what is 2+2?")
	pressEnter(m)

	// The backend mints an id mid-send; the reply lands in it.
	m.Update(streamMsg{u: streamUpdate{sessionID: "minted"}})
	m.Update(streamMsg{u: streamUpdate{text: "4"}})
	m.Update(streamMsg{u: streamUpdate{done: true}})
	if m.currentConv != "minted" || m.buffer.Len() != 2 {
		t.Fatalf("after send: conv=%q len=%d", m.currentConv, m.buffer.Len())
	}

	// The just-created guard was consumed by the adoption, so the next
	// switch reloads the target conversation.
	if cmd := m.setConversation("other"); cmd == nil {
		t.Fatal("switch after the send scheduled no reload")
	}
	if !m.restoring {
		t.Fatal("switch did not enter the restore window")
	}
	m.Update(messagesMsg{convID: "other", gen: m.loadGen, records: backend.msgs["other"]})
	if last, _ := m.buffer.Last(); last.Content != "from other" {
		t.Fatalf("buffer still shows the previous conversation: %+v", m.buffer.Messages())
	}
}

func TestDoneAfterSwitchBumpsSendConversation(t *testing.T) {
	backend := &fakeBackend{
		convs: []api.Conversation{
			{ID: "a", Title: "algebra", UpdatedAt: "2026-03-02T10:00:00"},
			{ID: "b", Title: "fractions", UpdatedAt: "2026-03-01T10:00:00"},
		},
		msgs: map[string][]api.MessageRecord{
			"a": {{ID: "m0", Role: "user", Content: "hi", CreatedAt: time.Now()}},
			"b": {{ID: "m1", Role: "user", Content: "from b", CreatedAt: time.Now()}},
		},
	}
	m := newTestModel(t, backend)
	m.Update(m.loadConversationsCmd()())
	m.Update(messagesMsg{convID: "a", gen: m.loadGen, records: backend.msgs["a"]})
	if m.currentConv != "a" {
		t.Fatalf("currentConv = %q", m.currentConv)
	}

	m.input.SetValue("one more")
	pressEnter(m)
	m.setConversation("b") // mid-send: the reload is skipped, selection moves on
	if m.currentConv != "b" {
		t.Fatalf("currentConv = %q", m.currentConv)
	}

	before := time.Now()
	m.Update(streamMsg{u: streamUpdate{done: true}})

	a, _ := m.convs.Get("a")
	if a.UpdatedAt.Before(before) {
		t.Fatalf("send conversation not bumped: %v", a.UpdatedAt)
	}
	b, _ := m.convs.Get("b")
	if !b.UpdatedAt.Before(before) {
		t.Fatalf("selected conversation bumped instead: %v", b.UpdatedAt)
	}

	// Completion reconciles the diverged selection with a fresh load.
	m.Update(messagesMsg{convID: "b", gen: m.loadGen, records: backend.msgs["b"]})
	if last, _ := m.buffer.Last(); last.Content != "from b" {
		t.Fatalf("buffer = %+v", m.buffer.Messages())
	}
}

func TestWheelScrollPersistsOffset(t *testing.T) {
	backend := &fakeBackend{msgs: map[string][]api.MessageRecord{"c0": longHistory(80)}}
	m := newTestModel(t, backend)
	m.setConversation("c0")
	m.Update(messagesMsg{convID: "c0", gen: m.loadGen, records: backend.msgs["c0"]})
	bottom := m.viewport.YOffset

	m.Update(tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})

	if m.viewport.YOffset >= bottom {
		t.Fatalf("YOffset = %d, wheel did not scroll", m.viewport.YOffset)
	}
	off, ok := m.store.ScrollOffset("c0")
	if !ok || off != m.viewport.YOffset {
		t.Fatalf("persisted offset = %d (ok=%v), viewport at %d", off, ok, m.viewport.YOffset)
	}
}

func TestPinLimitShowsNotice(t *testing.T) {
	backend := &fakeBackend{}
	for i := 0; i <= chat.MaxPinned; i++ {
		backend.convs = append(backend.convs, api.Conversation{
			ID:    fmt.Sprintf("c%d", i),
			Title: fmt.Sprintf("conversation %d", i),
		})
	}
	m := newTestModel(t, backend)
	m.Update(m.loadConversationsCmd()())
	m.sidebarFocus = true

	for i := 0; i < chat.MaxPinned; i++ {
		m.sidebarIndex = chat.MaxPinned - 1 // unpinned items sink below pinned ones
		pressRune(m, 'p')
	}
	if m.notice != "" {
		t.Fatalf("unexpected notice while under the cap: %q", m.notice)
	}

	m.sidebarIndex = chat.MaxPinned
	pressRune(m, 'p')
	if m.notice == "" {
		t.Fatal("no notice at the pin cap")
	}
	pinned := 0
	for _, it := range m.convs.Visible() {
		if it.Pinned {
			pinned++
		}
	}
	if pinned != chat.MaxPinned {
		t.Fatalf("pinned = %d", pinned)
	}
}

func TestArchiveCurrentConversationDeselects(t *testing.T) {
	backend := &fakeBackend{
		convs: []api.Conversation{{ID: "c0", Title: "one"}, {ID: "c1", Title: "two"}},
		msgs:  map[string][]api.MessageRecord{"c0": {{ID: "m", Role: "user", Content: "hi"}}},
	}
	m := newTestModel(t, backend)
	m.Update(m.loadConversationsCmd()())
	m.Update(messagesMsg{convID: m.currentConv, gen: m.loadGen, records: backend.msgs[m.currentConv]})

	m.sidebarFocus = true
	m.sidebarIndex = m.indexOf(m.currentConv)
	pressRune(m, 'a')

	if m.currentConv != "" {
		t.Fatalf("currentConv = %q after archiving it", m.currentConv)
	}
	if m.buffer.Len() != 0 {
		t.Fatal("buffer not cleared on deselect")
	}
	if len(m.convs.Archived()) != 1 {
		t.Fatalf("archived = %+v", m.convs.Archived())
	}
}

func TestDeleteCurrentSwitchesToNext(t *testing.T) {
	backend := &fakeBackend{
		convs: []api.Conversation{{ID: "c0", Title: "one"}, {ID: "c1", Title: "two"}},
		msgs:  map[string][]api.MessageRecord{},
	}
	m := newTestModel(t, backend)
	m.Update(m.loadConversationsCmd()())
	deleted := m.currentConv

	m.sidebarFocus = true
	m.sidebarIndex = m.indexOf(m.currentConv)
	pressRune(m, 'd')

	if m.currentConv == deleted || m.currentConv == "" {
		t.Fatalf("currentConv = %q after delete", m.currentConv)
	}
	if _, ok := m.convs.Get(deleted); ok {
		t.Fatal("deleted conversation still listed")
	}
}

func longHistory(n int) []api.MessageRecord {
	old := time.Now().Add(-24 * time.Hour)
	records := make([]api.MessageRecord, n)
	for i := range records {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		records[i] = api.MessageRecord{
			ID:        fmt.Sprintf("m%d", i),
			Role:      role,
			Content:   fmt.Sprintf("message number %d", i),
			CreatedAt: old,
		}
	}
	return records
}

func TestScrollRestoreUsesSavedOffset(t *testing.T) {
	backend := &fakeBackend{msgs: map[string][]api.MessageRecord{"c0": longHistory(80)}}
	m := newTestModel(t, backend)
	m.store.SetScrollOffset("c0", 17)

	m.setConversation("c0")
	m.Update(messagesMsg{convID: "c0", gen: m.loadGen, records: backend.msgs["c0"]})

	if m.viewport.YOffset != 17 {
		t.Fatalf("YOffset = %d, want 17", m.viewport.YOffset)
	}
}

func TestScrollDefaultsToBottom(t *testing.T) {
	backend := &fakeBackend{msgs: map[string][]api.MessageRecord{"c0": longHistory(80)}}
	m := newTestModel(t, backend)

	m.setConversation("c0")
	m.Update(messagesMsg{convID: "c0", gen: m.loadGen, records: backend.msgs["c0"]})

	if !m.viewport.AtBottom() {
		t.Fatalf("YOffset = %d, not at bottom", m.viewport.YOffset)
	}
}

func TestPersistScrollSuppressedDuringRestore(t *testing.T) {
	m := newTestModel(t, &fakeBackend{})
	m.currentConv = "c0"
	m.restoring = true
	m.viewport.SetYOffset(0)
	m.persistScroll()
	if _, ok := m.store.ScrollOffset("c0"); ok {
		t.Fatal("offset persisted mid-restore")
	}

	m.restoring = false
	m.persistScroll()
	if _, ok := m.store.ScrollOffset("c0"); !ok {
		t.Fatal("offset not persisted after restore settled")
	}
}

func TestReloadReconstructsTypingView(t *testing.T) {
	full := strings.Repeat("the quadratic factors cleanly. ", 40)
	records := []api.MessageRecord{
		{ID: "m0", Role: "user", Content: "factor it", CreatedAt: time.Now().Add(-time.Minute)},
		{ID: "m1", Role: "assistant", Content: full, CreatedAt: time.Now().Add(-500 * time.Millisecond)},
	}
	backend := &fakeBackend{msgs: map[string][]api.MessageRecord{"c0": records}}
	m := newTestModel(t, backend)

	m.setConversation("c0")
	m.Update(messagesMsg{convID: "c0", gen: m.loadGen, records: records})

	last, _ := m.buffer.Last()
	if !last.Simulating || !last.Streaming {
		t.Fatalf("tail = %+v, want simulating", last)
	}
	if len(last.Content) >= len(full) {
		t.Fatal("nothing left to reveal")
	}
	if !strings.HasPrefix(full, last.Content) {
		t.Fatal("visible text is not a prefix")
	}

	// Ticks reveal the remainder and finish the simulation.
	for i := 0; i < len(full)/chat.RevealBatch+2; i++ {
		m.Update(simTickMsg{})
	}
	last, _ = m.buffer.Last()
	if last.Simulating || last.Content != full {
		t.Fatalf("after ticks: simulating=%v len=%d", last.Simulating, len(last.Content))
	}
}

func TestReloadMarksPendingTailForPolling(t *testing.T) {
	records := []api.MessageRecord{
		{ID: "m0", Role: "user", Content: "still working?", CreatedAt: time.Now()},
		{ID: "m1", Role: "assistant", Content: "", CreatedAt: time.Now()},
	}
	backend := &fakeBackend{msgs: map[string][]api.MessageRecord{"c0": records}}
	m := newTestModel(t, backend)

	m.setConversation("c0")
	m.Update(messagesMsg{convID: "c0", gen: m.loadGen, records: records})

	last, _ := m.buffer.Last()
	if !last.Streaming || last.Simulating {
		t.Fatalf("tail = %+v, want pending placeholder", last)
	}
	if !chat.ShouldPoll(m.buffer, m.gate.Sending()) {
		t.Fatal("pending tail should poll")
	}
}
