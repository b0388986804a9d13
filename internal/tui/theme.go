package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

type ThemeName string

const (
	ThemeSlate ThemeName = "slate"
	ThemeEmber ThemeName = "ember"
)

type Theme struct {
	Name ThemeName

	// Colors
	TextPrimary lipgloss.AdaptiveColor
	TextMuted   lipgloss.AdaptiveColor
	TextFaint   lipgloss.AdaptiveColor

	Accent   lipgloss.AdaptiveColor
	Success  lipgloss.AdaptiveColor
	Warn     lipgloss.AdaptiveColor
	Error    lipgloss.AdaptiveColor
	Border   lipgloss.AdaptiveColor
	BorderHi lipgloss.AdaptiveColor

	// Styles
	TopBar      lipgloss.Style
	TopBarTitle lipgloss.Style
	TopBarMeta  lipgloss.Style

	Pane        lipgloss.Style
	PaneFocused lipgloss.Style
	PaneTitle   lipgloss.Style
	Footer      lipgloss.Style
	InputBox    lipgloss.Style
	InputBoxF   lipgloss.Style
	Spinner     lipgloss.Style
	Notice      lipgloss.Style
	UnseenBadge lipgloss.Style

	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarPinned   lipgloss.Style
	SidebarArchived lipgloss.Style

	RoleYou    lipgloss.Style
	RoleAI     lipgloss.Style
	RoleErr    lipgloss.Style
	StatusLine lipgloss.Style
}

func NewTheme() Theme {
	if os.Getenv("ALGCHAT_NO_COLOR") == "1" {
		return NewNoColorTheme()
	}
	switch ThemeName(os.Getenv("ALGCHAT_THEME")) {
	case ThemeEmber:
		return newEmberTheme()
	default:
		return newSlateTheme()
	}
}

func NewNoColorTheme() Theme {
	t := Theme{
		Name:        "no-color",
		TextPrimary: lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#333333", Dark: "#dddddd"},
		TextFaint:   lipgloss.AdaptiveColor{Light: "#555555", Dark: "#bbbbbb"},
		Border:      lipgloss.AdaptiveColor{Light: "#555555", Dark: "#777777"},
		BorderHi:    lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"},
	}
	return finishTheme(t)
}

func newSlateTheme() Theme {
	t := Theme{
		Name:        ThemeSlate,
		TextPrimary: lipgloss.AdaptiveColor{Light: "#1d2433", Dark: "#f2f2f2"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#4a5568", Dark: "#c7c7c7"},
		TextFaint:   lipgloss.AdaptiveColor{Light: "#718096", Dark: "#9aa0a6"},

		Accent:   lipgloss.AdaptiveColor{Light: "#1f6feb", Dark: "#7aa2ff"},
		Success:  lipgloss.AdaptiveColor{Light: "#0f766e", Dark: "#46d1b7"},
		Warn:     lipgloss.AdaptiveColor{Light: "#b45309", Dark: "#f4b27d"},
		Error:    lipgloss.AdaptiveColor{Light: "#b42318", Dark: "#ff7a7a"},
		Border:   lipgloss.AdaptiveColor{Light: "#cbd5e0", Dark: "#3a3a3a"},
		BorderHi: lipgloss.AdaptiveColor{Light: "#1f6feb", Dark: "#7aa2ff"},
	}
	return finishTheme(t)
}

func newEmberTheme() Theme {
	t := Theme{
		Name:        ThemeEmber,
		TextPrimary: lipgloss.AdaptiveColor{Light: "#1c1917", Dark: "#fafaf9"},
		TextMuted:   lipgloss.AdaptiveColor{Light: "#44403c", Dark: "#d6d3d1"},
		TextFaint:   lipgloss.AdaptiveColor{Light: "#78716c", Dark: "#a8a29e"},

		Accent:   lipgloss.AdaptiveColor{Light: "#c2410c", Dark: "#fb923c"},
		Success:  lipgloss.AdaptiveColor{Light: "#15803d", Dark: "#4ade80"},
		Warn:     lipgloss.AdaptiveColor{Light: "#a16207", Dark: "#facc15"},
		Error:    lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"},
		Border:   lipgloss.AdaptiveColor{Light: "#d6d3d1", Dark: "#44403c"},
		BorderHi: lipgloss.AdaptiveColor{Light: "#c2410c", Dark: "#fb923c"},
	}
	return finishTheme(t)
}

// finishTheme derives the styles from the palette. The no-color theme
// passes zero accents, which lipgloss renders as plain text.
func finishTheme(t Theme) Theme {
	accent := t.Accent
	if accent == (lipgloss.AdaptiveColor{}) {
		accent = t.TextPrimary
	}
	errColor := t.Error
	if errColor == (lipgloss.AdaptiveColor{}) {
		errColor = t.TextPrimary
	}
	warn := t.Warn
	if warn == (lipgloss.AdaptiveColor{}) {
		warn = t.TextPrimary
	}

	t.TopBar = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.TopBarTitle = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)
	t.TopBarMeta = lipgloss.NewStyle().Foreground(t.TextMuted)

	t.Pane = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.Border).Padding(0, 1)
	t.PaneFocused = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.BorderHi).Padding(0, 1)
	t.PaneTitle = lipgloss.NewStyle().Bold(true).Foreground(t.TextMuted)
	t.Footer = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.InputBox = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.Border).Padding(0, 1)
	t.InputBoxF = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(t.BorderHi).Padding(0, 1)
	t.Spinner = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.Notice = lipgloss.NewStyle().Bold(true).Foreground(warn)
	t.UnseenBadge = lipgloss.NewStyle().Bold(true).Foreground(accent)

	t.SidebarItem = lipgloss.NewStyle().Foreground(t.TextMuted)
	t.SidebarSelected = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)
	t.SidebarPinned = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.SidebarArchived = lipgloss.NewStyle().Foreground(t.TextFaint)

	t.RoleYou = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.RoleAI = lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)
	t.RoleErr = lipgloss.NewStyle().Bold(true).Foreground(errColor)
	t.StatusLine = lipgloss.NewStyle().Italic(true).Foreground(t.TextFaint)
	return t
}
