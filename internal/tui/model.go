package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"algchat/internal/api"
	"algchat/internal/chat"
	"algchat/internal/state"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sidebarWidth = 30

	sendFailureText = "Sorry, something went wrong while sending your message. Please try again."
)

// backendClient is the slice of the HTTP client the UI uses.
type backendClient interface {
	chatSender
	ListConversations(ctx context.Context) ([]api.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]api.MessageRecord, error)
	DeleteConversation(ctx context.Context, conversationID string) error
}

type Model struct {
	client backendClient
	store  *state.Store
	logger *slog.Logger
	theme  Theme
	render *messageRenderer

	convs  *chat.Store
	buffer *chat.Buffer
	gate   *chat.Gate

	currentConv string
	streamConv  string
	lastSent    string
	loadGen     int
	convsLoaded bool

	input        textarea.Model
	viewport     viewport.Model
	keys         keyMap
	helpView     helpModel
	showHelp     bool
	sidebarFocus bool
	sidebarIndex int
	showArchived bool

	width  int
	height int
	ready  bool

	// firstPaint is true until the initially selected conversation has
	// been restored; that first restore applies instantly.
	firstPaint bool
	restoring  bool
	restoreSeq int
	seen       int
	expanded   map[int]bool

	notice    string
	noticeSeq int

	streamCh    chan streamUpdate
	spinnerPos  int
	attachments []api.ImageAttachment
}

type conversationsMsg struct {
	convs []api.Conversation
	err   error
}

type messagesMsg struct {
	convID  string
	gen     int
	records []api.MessageRecord
	err     error
}

type pollTickMsg struct {
	convID string
}

type simTickMsg struct{}

type spinMsg struct{}

type noticeExpireMsg struct {
	seq int
}

func New(client *api.Client, store *state.Store, logger *slog.Logger) *Model {
	return newModel(client, store, logger)
}

func newModel(client backendClient, store *state.Store, logger *slog.Logger) *Model {
	theme := NewTheme()

	ta := textarea.New()
	ta.Placeholder = "Ask a question… (enter to send, tab for conversations)"
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetWidth(60)
	ta.SetHeight(3)
	ta.Prompt = "▍ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	return &Model{
		client:     client,
		store:      store,
		logger:     logger,
		theme:      theme,
		render:     newMessageRenderer(theme),
		convs:      chat.NewStore(),
		buffer:     chat.NewBuffer(),
		gate:       &chat.Gate{},
		input:      ta,
		keys:       defaultKeyMap(),
		helpView:   newHelpModel(theme),
		width:      100,
		height:     30,
		firstPaint: true,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadConversationsCmd())
}

func (m *Model) loadConversationsCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		convs, err := client.ListConversations(ctx)
		return conversationsMsg{convs: convs, err: err}
	}
}

func (m *Model) loadMessagesCmd(convID string, gen int) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		records, err := client.ListMessages(ctx, convID)
		return messagesMsg{convID: convID, gen: gen, records: records, err: err}
	}
}

func (m *Model) spinTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return spinMsg{}
	})
}

func simTick() tea.Cmd {
	return tea.Tick(chat.RevealInterval, func(time.Time) tea.Msg {
		return simTickMsg{}
	})
}

func pollTick(convID string) tea.Cmd {
	return tea.Tick(chat.PollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{convID: convID}
	})
}

func (m *Model) flashNotice(text string) tea.Cmd {
	m.notice = text
	m.noticeSeq++
	seq := m.noticeSeq
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return noticeExpireMsg{seq: seq}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpWidth := msg.Width - sidebarWidth - 6
		vpHeight := msg.Height - 12
		if vpWidth < 20 {
			vpWidth = 20
		}
		if vpHeight < 5 {
			vpHeight = 5
		}
		if !m.ready {
			m.viewport = viewport.New(vpWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = vpWidth
			m.viewport.Height = vpHeight
		}
		m.input.SetWidth(vpWidth)
		m.helpView.SetWidth(msg.Width)
		m.updateViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case conversationsMsg:
		return m.handleConversations(msg)

	case messagesMsg:
		return m.handleMessages(msg)

	case streamMsg:
		return m.handleStream(msg.u)

	case pollTickMsg:
		if msg.convID != m.currentConv || !chat.ShouldPoll(m.buffer, m.gate.Sending()) {
			return m, nil
		}
		m.loadGen++
		return m, m.loadMessagesCmd(m.currentConv, m.loadGen)

	case simTickMsg:
		wasNear := m.nearBottom()
		more := m.buffer.Advance(chat.RevealBatch)
		m.updateViewport()
		if wasNear {
			m.viewport.GotoBottom()
			m.markSeen()
		}
		if more {
			return m, simTick()
		}
		return m, nil

	case spinMsg:
		if m.gate.Sending() || m.buffer.TrailingPending() {
			m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
			m.updateViewport()
			return m, m.spinTick()
		}
		return m, nil

	case restoredMsg:
		if msg.seq == m.restoreSeq {
			m.restoring = false
		}
		return m, nil

	case noticeExpireMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

// updateFocused routes non-key messages (and unhandled keys) to the
// focused widget. Mouse input always goes to the viewport, and any
// wheel movement snapshots the new offset like the scroll keys do.
func (m *Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if _, isMouse := msg.(tea.MouseMsg); isMouse {
		before := m.viewport.YOffset
		m.viewport, cmd = m.viewport.Update(msg)
		if m.viewport.YOffset != before {
			m.markSeen()
			m.persistScroll()
		}
		return m, cmd
	}
	if m.sidebarFocus {
		m.viewport, cmd = m.viewport.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.persistScroll()
		return m, tea.Quit
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help) && m.sidebarFocus:
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.FocusNext):
		m.sidebarFocus = !m.sidebarFocus
		if m.sidebarFocus {
			m.input.Blur()
		} else {
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewConv):
		return m, m.startNewConversation()

	case key.Matches(msg, m.keys.ExpandLast):
		m.toggleLastExpand()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		m.markSeen()
		m.persistScroll()
		return m, nil

	case msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.markSeen()
		m.persistScroll()
		return m, cmd
	}

	if m.sidebarFocus {
		return m.handleSidebarKey(msg)
	}

	if key.Matches(msg, m.keys.Enter) {
		return m, m.startSend()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.sidebarItems()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.sidebarIndex > 0 {
			m.sidebarIndex--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.sidebarIndex < len(items)-1 {
			m.sidebarIndex++
		}
		return m, nil

	case key.Matches(msg, m.keys.ShowArchived):
		m.showArchived = !m.showArchived
		m.sidebarIndex = 0
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.sidebarIndex < len(items) {
			return m, m.setConversation(items[m.sidebarIndex].ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Pin):
		if m.sidebarIndex >= len(items) {
			return m, nil
		}
		id := items[m.sidebarIndex].ID
		meta, err := m.convs.TogglePin(id)
		if err != nil {
			return m, m.flashNotice(fmt.Sprintf("can't pin: up to %d pinned conversations", chat.MaxPinned))
		}
		m.store.SetMeta(id, meta)
		m.sidebarIndex = m.indexOf(id)
		return m, nil

	case key.Matches(msg, m.keys.Archive):
		if m.sidebarIndex >= len(items) {
			return m, nil
		}
		id := items[m.sidebarIndex].ID
		meta, err := m.convs.ToggleArchive(id)
		if err != nil {
			return m, nil
		}
		m.store.SetMeta(id, meta)
		if meta.Archived && id == m.currentConv {
			// Archiving the open conversation deselects it.
			return m, m.setConversation("")
		}
		m.sidebarIndex = m.indexOf(id)
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if m.sidebarIndex >= len(items) {
			return m, nil
		}
		return m, m.deleteConversation(items[m.sidebarIndex].ID)
	}

	return m, nil
}

func (m *Model) sidebarItems() []chat.Summary {
	if m.showArchived {
		return m.convs.Archived()
	}
	return m.convs.Visible()
}

func (m *Model) indexOf(id string) int {
	for i, it := range m.sidebarItems() {
		if it.ID == id {
			return i
		}
	}
	return 0
}

func (m *Model) handleConversations(msg conversationsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("loading conversations", "error", msg.err)
		return m, m.flashNotice("couldn't reach the server")
	}
	sums := make([]chat.Summary, 0, len(msg.convs))
	for _, c := range msg.convs {
		sums = append(sums, chat.Summary{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: api.ParseTimestamp(c.CreatedAt),
			UpdatedAt: api.ParseTimestamp(c.UpdatedAt),
		})
	}
	m.convs.SetAll(sums, m.store.AllMeta())

	if m.convsLoaded {
		return m, nil
	}
	m.convsLoaded = true

	// Reopen where the user left off, or the most recent conversation.
	target := m.store.CurrentConversation()
	if _, ok := m.convs.Get(target); !ok {
		target = ""
	}
	if target == "" {
		if visible := m.convs.Visible(); len(visible) > 0 {
			target = visible[0].ID
		}
	}
	if target == "" {
		m.firstPaint = false
		return m, nil
	}
	m.sidebarIndex = m.indexOf(target)
	return m, m.setConversation(target)
}

// setConversation switches the active conversation. The previous
// conversation's scroll offset is snapshotted first; the reload is
// skipped entirely when a live send owns the buffer.
func (m *Model) setConversation(id string) tea.Cmd {
	if id == m.currentConv {
		return nil
	}
	m.persistScroll()
	m.currentConv = id
	m.store.SetCurrentConversation(id)
	m.seen = 0
	m.expanded = nil

	if id == "" {
		m.buffer.Clear()
		m.restoring = false
		m.updateViewport()
		return nil
	}
	m.expanded = m.store.Expanded(id)
	m.sidebarIndex = m.indexOf(id)

	if m.gate.ConsumeJustCreated() || m.gate.Sending() {
		// The in-flight send owns the buffer; reloading now would wipe
		// the optimistic messages.
		m.restoring = false
		return nil
	}

	m.restoring = true
	m.loadGen++
	return m.loadMessagesCmd(id, m.loadGen)
}

func (m *Model) handleMessages(msg messagesMsg) (tea.Model, tea.Cmd) {
	// Drop stale loads: a newer switch, send, or poll supersedes this one.
	if msg.convID != m.currentConv || msg.gen != m.loadGen || m.gate.Sending() {
		return m, nil
	}
	if msg.err != nil {
		m.restoring = false
		m.logger.Warn("loading messages", "conversation", msg.convID, "error", msg.err)
		return m, m.flashNotice("couldn't load messages")
	}

	m.buffer.Replace(recordsToMessages(msg.records))
	var cmds []tea.Cmd

	if last, ok := m.buffer.Last(); ok && last.Role == chat.RoleAssistant {
		if last.Content == "" {
			// Generation still running server-side: show the pending
			// placeholder and poll until content lands.
			m.buffer.MarkPendingLast()
			cmds = append(cmds, pollTick(msg.convID), m.spinTick())
		} else if visible, simulating := chat.Reconstruct(last.Content, last.CreatedAt, time.Now()); simulating {
			m.buffer.BeginSimulation(visible, last.Content)
			cmds = append(cmds, simTick(), m.spinTick())
		}
	}

	m.updateViewport()
	m.applySavedScroll(msg.convID)
	m.seen = m.buffer.Len()

	if m.firstPaint {
		m.firstPaint = false
		m.restoring = false
	} else {
		cmds = append(cmds, m.settleRestore())
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleStream(u streamUpdate) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{}
	if m.streamCh != nil {
		cmds = append(cmds, waitStream(m.streamCh))
	}

	if u.sessionID != "" {
		m.adoptNewConversation(u.sessionID)
	}

	wasNear := m.nearBottom()
	if u.text != "" {
		m.buffer.SetStreamContent(u.text)
	}
	if u.status != "" {
		m.buffer.SetStatus(u.status)
	}

	if u.done {
		m.gate.EndSend()
		m.streamCh = nil
		conv := m.streamConv
		m.streamConv = ""
		// Finalize whatever partial text arrived, then surface a failure
		// as its own message; the user turn stays.
		m.buffer.FinalizeLast()
		if u.errText != "" {
			m.buffer.AppendError(sendFailureText)
			m.logger.Error("send failed", "conversation", conv, "error", u.errText)
		} else {
			if u.meta != nil {
				m.logger.Debug("send complete",
					"conversation", conv,
					"agents", u.meta.AgentsUsed,
					"tools", u.meta.ToolsCalled,
					"tokens", u.meta.TotalTokens,
					"duration_ms", u.meta.TotalDurationMs)
			}
			if sum, ok := m.convs.Get(conv); ok {
				sum.UpdatedAt = time.Now()
				m.convs.Upsert(sum)
			}
		}
		if m.currentConv != conv && m.currentConv != "" {
			// The user moved on mid-send and the skipped reload left the
			// send's transcript on screen; reconcile the selection now.
			m.restoring = true
			m.loadGen++
			cmds = append(cmds, m.loadMessagesCmd(m.currentConv, m.loadGen))
		}
	}

	m.updateViewport()
	if wasNear && !m.restoring {
		m.viewport.GotoBottom()
		m.markSeen()
	}
	return m, tea.Batch(cmds...)
}

// adoptNewConversation records the id the backend just minted for a
// first send. Routing through setConversation consumes the just-created
// guard right here, so a later switch to a different conversation
// reloads normally.
func (m *Model) adoptNewConversation(id string) {
	now := time.Now()
	m.convs.Upsert(chat.Summary{
		ID:        id,
		Title:     chat.TitleFromMessage(m.lastSent),
		CreatedAt: now,
		UpdatedAt: now,
	})
	m.gate.MarkJustCreated()
	m.setConversation(id)
	m.streamConv = id
}

func (m *Model) startSend() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())

	if cmd, handled := m.handleSlashCommand(text); handled {
		return cmd
	}
	if text == "" && len(m.attachments) == 0 {
		return nil
	}
	if err := m.gate.BeginSend(); err != nil {
		return m.flashNotice("hold on, the previous reply is still arriving")
	}

	m.lastSent = text
	m.streamConv = m.currentConv
	m.buffer.AppendUser(text, attachmentNames(m.attachments))
	m.buffer.AppendPlaceholder()
	atts := m.attachments
	m.attachments = nil
	m.input.Reset()
	m.updateViewport()
	m.viewport.GotoBottom()
	m.seen = m.buffer.Len()

	ch := make(chan streamUpdate, 16)
	m.streamCh = ch
	go runStream(context.Background(), m.client, text, m.currentConv, atts, ch)

	return tea.Batch(waitStream(ch), m.spinTick())
}

func (m *Model) handleSlashCommand(text string) (tea.Cmd, bool) {
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}
	cmd, rest, _ := strings.Cut(text, " ")
	switch cmd {
	case "/attach":
		path := strings.TrimSpace(rest)
		if path == "" {
			return m.flashNotice("usage: /attach <image path>"), true
		}
		if len(m.attachments) >= api.MaxImagesPerSend {
			return m.flashNotice(fmt.Sprintf("at most %d images per message", api.MaxImagesPerSend)), true
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return m.flashNotice("can't read " + path), true
		}
		m.attachments = append(m.attachments, api.ImageAttachment{
			Name: filepath.Base(path),
			Data: data,
		})
		m.input.Reset()
		return m.flashNotice(fmt.Sprintf("attached %s (%d queued)", filepath.Base(path), len(m.attachments))), true
	case "/new":
		m.input.Reset()
		return m.startNewConversation(), true
	default:
		return m.flashNotice("unknown command " + cmd), true
	}
}

// startNewConversation deselects so the next send creates a fresh
// conversation on the backend.
func (m *Model) startNewConversation() tea.Cmd {
	if m.gate.Sending() {
		return m.flashNotice("hold on, the previous reply is still arriving")
	}
	cmd := m.setConversation("")
	m.sidebarFocus = false
	m.input.Focus()
	return cmd
}

func (m *Model) deleteConversation(id string) tea.Cmd {
	if m.gate.Sending() && id == m.currentConv {
		return m.flashNotice("can't delete while a reply is arriving")
	}
	m.convs.Remove(id)
	m.store.DeleteMeta(id)
	m.sidebarIndex = 0

	var switchCmd tea.Cmd
	if id == m.currentConv {
		next := ""
		if visible := m.convs.Visible(); len(visible) > 0 {
			next = visible[0].ID
		}
		// Clear first so setConversation does not persist scroll for the
		// deleted id.
		m.currentConv = ""
		m.buffer.Clear()
		m.updateViewport()
		switchCmd = m.setConversation(next)
	}

	client, logger := m.client, m.logger
	deleteCmd := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.DeleteConversation(ctx, id); err != nil {
			logger.Warn("deleting conversation", "conversation", id, "error", err)
		}
		return nil
	}
	return tea.Batch(switchCmd, deleteCmd)
}

func (m *Model) toggleLastExpand() {
	msgs := m.buffer.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != chat.RoleAssistant || msgs[i].Streaming {
			continue
		}
		if m.expanded == nil {
			m.expanded = make(map[int]bool)
		}
		on := !m.expanded[i]
		m.expanded[i] = on
		m.store.SetExpanded(m.currentConv, i, on)
		m.updateViewport()
		return
	}
}

func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	content := m.render.Render(m.buffer.Messages(), m.expanded, m.viewport.Width-2, m.spinnerPos)
	m.viewport.SetContent(content)
}

func recordsToMessages(records []api.MessageRecord) []chat.Message {
	msgs := make([]chat.Message, 0, len(records))
	for _, rec := range records {
		role := chat.RoleAssistant
		if rec.Role == "user" {
			role = chat.RoleUser
		}
		msgs = append(msgs, chat.Message{
			ID:        rec.ID,
			Role:      role,
			Content:   rec.Content,
			Images:    rec.Images,
			CreatedAt: rec.CreatedAt,
		})
	}
	return msgs
}

func attachmentNames(atts []api.ImageAttachment) []string {
	if len(atts) == 0 {
		return nil
	}
	names := make([]string, len(atts))
	for i, a := range atts {
		names[i] = a.Name
	}
	return names
}
