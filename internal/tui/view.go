package tui

import (
	"fmt"
	"strings"

	"algchat/internal/chat"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) View() string {
	if !m.ready {
		return "starting…"
	}
	if m.width < 60 || m.height < 16 {
		return fmt.Sprintf("Resize the terminal to at least 60x16 (now %dx%d).", m.width, m.height)
	}
	if m.showHelp {
		return m.helpView.View()
	}

	var b strings.Builder
	b.WriteString(m.renderTopBar())
	b.WriteString("\n")

	sidebar := m.renderSidebar()
	chatPane := m.renderChatPane()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, sidebar, chatPane))
	b.WriteString("\n")

	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderTopBar() string {
	title := m.theme.TopBarTitle.Render("algchat")

	var right string
	switch {
	case m.notice != "":
		right = m.theme.Notice.Render(m.notice)
	case m.unseenCount() > 0:
		right = m.theme.UnseenBadge.Render(fmt.Sprintf("▾ %d new", m.unseenCount()))
	case m.buffer.Len() > 0 && !m.nearBottom():
		right = m.theme.UnseenBadge.Render("▾ end")
	default:
		if sum, ok := m.convs.Get(m.currentConv); ok {
			right = m.theme.TopBarMeta.Render(truncateRunes(sum.Title, 48))
		}
	}

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.TopBar.Render(title + strings.Repeat(" ", gap) + right)
}

func (m *Model) renderSidebar() string {
	items := m.sidebarItems()

	var b strings.Builder
	heading := "conversations"
	if m.showArchived {
		heading = "archived"
	}
	b.WriteString(m.theme.PaneTitle.Render(heading))
	b.WriteString("\n")

	if len(items) == 0 {
		b.WriteString(m.theme.Footer.Render("(none yet)"))
		b.WriteString("\n")
	}
	maxRows := m.viewport.Height - 1
	for i, it := range items {
		if i >= maxRows {
			b.WriteString(m.theme.Footer.Render(fmt.Sprintf("… %d more", len(items)-maxRows)))
			break
		}
		b.WriteString(m.renderSidebarItem(it, i))
		b.WriteString("\n")
	}

	style := m.theme.Pane
	if m.sidebarFocus {
		style = m.theme.PaneFocused
	}
	return style.Width(sidebarWidth).Height(m.viewport.Height + 1).Render(b.String())
}

func (m *Model) renderSidebarItem(it chat.Summary, i int) string {
	marker := "  "
	if it.ID == m.currentConv {
		marker = "> "
	}
	prefix := ""
	if it.Pinned {
		prefix = "★ "
	}
	title := it.Title
	if title == "" {
		title = "(untitled)"
	}
	line := truncateRunes(marker+prefix+title, sidebarWidth-4)

	style := m.theme.SidebarItem
	switch {
	case m.sidebarFocus && i == m.sidebarIndex:
		style = m.theme.SidebarSelected
	case it.Pinned:
		style = m.theme.SidebarPinned
	case it.Archived:
		style = m.theme.SidebarArchived
	}
	return style.Render(line)
}

func (m *Model) renderChatPane() string {
	style := m.theme.Pane
	if !m.sidebarFocus {
		style = m.theme.PaneFocused
	}
	return style.Width(m.viewport.Width + 2).Render(m.viewport.View())
}

func (m *Model) renderInput() string {
	style := m.theme.InputBox
	if !m.sidebarFocus {
		style = m.theme.InputBoxF
	}
	view := m.input.View()
	if n := len(m.attachments); n > 0 {
		view += "\n" + m.theme.Footer.Render(fmt.Sprintf("%d image(s) queued", n))
	}
	return style.Width(m.width - 4).Render(view)
}

func (m *Model) renderFooter() string {
	parts := []string{
		"enter send",
		"tab conversations",
		"ctrl+n new",
		"alt+e expand",
		"end newest",
	}
	if m.sidebarFocus {
		parts = []string{
			"enter open",
			"p pin",
			"a archive",
			"d delete",
			"A archived",
			"? help",
		}
	}
	return m.theme.Footer.Render(strings.Join(parts, " · "))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
