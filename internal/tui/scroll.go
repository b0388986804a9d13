package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	// nearBottomLines is how close to the end the reader must be for
	// autoscroll to engage. Further away means they are reading history
	// and the view must hold still.
	nearBottomLines = 100

	// restoreSettle is how long scroll persistence stays suppressed after
	// a restored offset is applied, so layout settling cannot clobber the
	// saved position.
	restoreSettle = 50 * time.Millisecond
)

type restoredMsg struct {
	seq int
}

func (m *Model) nearBottom() bool {
	return m.viewport.TotalLineCount()-(m.viewport.YOffset+m.viewport.Height) < nearBottomLines
}

// persistScroll snapshots the current offset for the active
// conversation. Suppressed mid-restore: the offset on screen belongs to
// the previous conversation until the saved one is applied.
func (m *Model) persistScroll() {
	if m.currentConv == "" || m.restoring {
		return
	}
	m.store.SetScrollOffset(m.currentConv, m.viewport.YOffset)
}

// applySavedScroll positions a freshly loaded conversation: the saved
// offset when one exists, the newest message otherwise.
func (m *Model) applySavedScroll(convID string) {
	if off, ok := m.store.ScrollOffset(convID); ok {
		m.viewport.SetYOffset(off)
		return
	}
	m.viewport.GotoBottom()
}

// settleRestore schedules the end of the restore window. The sequence
// number invalidates the timer if another switch happens first.
func (m *Model) settleRestore() tea.Cmd {
	m.restoreSeq++
	seq := m.restoreSeq
	return tea.Tick(restoreSettle, func(time.Time) tea.Msg {
		return restoredMsg{seq: seq}
	})
}

// markSeen records the transcript as caught up once the reader is at
// the bottom; the unseen badge counts from here.
func (m *Model) markSeen() {
	if m.nearBottom() {
		m.seen = m.buffer.Len()
	}
}

func (m *Model) unseenCount() int {
	if n := m.buffer.Len() - m.seen; n > 0 && !m.nearBottom() {
		return n
	}
	return 0
}
