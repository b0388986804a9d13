package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type helpModel struct {
	keys  keyMap
	theme Theme
	width int
}

func newHelpModel(theme Theme) helpModel {
	return helpModel{
		keys:  defaultKeyMap(),
		theme: theme,
		width: 80,
	}
}

func (m *helpModel) SetWidth(width int) {
	m.width = width
}

func (m helpModel) View() string {
	var b strings.Builder

	title := m.theme.TopBarTitle
	section := m.theme.PaneTitle
	keyS := m.theme.UnseenBadge
	desc := m.theme.Footer

	b.WriteString(title.Render("algchat help"))
	b.WriteString("\n\n")

	b.WriteString(section.Render("composer"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  send message\n", keyS.Render("enter")))
	b.WriteString(fmt.Sprintf("  %s  attach an image\n", keyS.Render("/attach <path>")))
	b.WriteString(fmt.Sprintf("  %s  expand/collapse last long reply\n", keyS.Render("alt+e")))

	b.WriteString("\n")
	b.WriteString(section.Render("conversations"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  focus sidebar / composer\n", keyS.Render("tab")))
	b.WriteString(fmt.Sprintf("  %s  new conversation\n", keyS.Render("ctrl+n")))
	b.WriteString(fmt.Sprintf("  %s  pin, %s archive, %s delete (sidebar)\n",
		keyS.Render("p"), keyS.Render("a"), keyS.Render("d")))
	b.WriteString(fmt.Sprintf("  %s  show/hide archived\n", keyS.Render("A")))

	b.WriteString("\n")
	b.WriteString(section.Render("history"))
	b.WriteString("\n")
	b.WriteString(desc.Render("  pgup/pgdn scroll, end jumps to the newest message"))
	b.WriteString("\n")

	b.WriteString("\n")
	b.WriteString(desc.Render("ctrl+c quit | ? close help"))

	return b.String()
}

type keyMap struct {
	Quit         key.Binding
	Enter        key.Binding
	FocusNext    key.Binding
	NewConv      key.Binding
	Pin          key.Binding
	Archive      key.Binding
	ShowArchived key.Binding
	Delete       key.Binding
	ExpandLast   key.Binding
	Help         key.Binding
	Bottom       key.Binding
	Up           key.Binding
	Down         key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send message"),
		),
		FocusNext: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch focus"),
		),
		NewConv: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new conversation"),
		),
		Pin: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pin/unpin"),
		),
		Archive: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "archive/unarchive"),
		),
		ShowArchived: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "show archived"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete conversation"),
		),
		ExpandLast: key.NewBinding(
			key.WithKeys("alt+e"),
			key.WithHelp("alt+e", "expand last long reply"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end"),
			key.WithHelp("end", "jump to newest"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up", "previous conversation"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down", "next conversation"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.FocusNext, k.NewConv, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Enter, k.FocusNext, k.NewConv, k.Quit},
		{k.Pin, k.Archive, k.Delete, k.ExpandLast},
	}
}
