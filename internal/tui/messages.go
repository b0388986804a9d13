package tui

import (
	"fmt"
	"strings"

	"algchat/internal/chat"

	"github.com/muesli/reflow/wordwrap"
)

// Long finished replies collapse so old conversations stay scannable.
const (
	collapseAfterLines = 30
	collapsedLines     = 12
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type messageRenderer struct {
	theme    Theme
	markdown *MarkdownRenderer
}

func newMessageRenderer(theme Theme) *messageRenderer {
	return &messageRenderer{theme: theme, markdown: NewMarkdownRenderer(theme)}
}

// Render produces the transcript text for the viewport. expanded holds
// the per-message override for collapsed replies; spinnerPos animates
// the trailing streaming indicator.
func (r *messageRenderer) Render(msgs []chat.Message, expanded map[int]bool, width, spinnerPos int) string {
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.renderOne(msg, expanded[i], width, spinnerPos))
		b.WriteString("\n")
	}
	return b.String()
}

func (r *messageRenderer) renderOne(msg chat.Message, expanded bool, width, spinnerPos int) string {
	var header string
	switch msg.Role {
	case chat.RoleUser:
		header = r.theme.RoleYou.Render("you")
	case chat.RoleAssistant:
		header = r.theme.RoleAI.Render("assistant")
	case chat.RoleError:
		header = r.theme.RoleErr.Render("error")
	}
	if !msg.CreatedAt.IsZero() {
		header += " " + r.theme.TopBarMeta.Render(msg.CreatedAt.Local().Format("15:04"))
	}

	body := r.renderBody(msg, expanded, width)

	var extra string
	if n := len(msg.Images); n > 0 {
		noun := "images"
		if n == 1 {
			noun = "image"
		}
		extra = r.theme.Footer.Render(fmt.Sprintf("[%d %s attached]", n, noun)) + "\n"
	}

	var status string
	if msg.Streaming {
		frame := spinnerFrames[spinnerPos%len(spinnerFrames)]
		label := msg.Status
		if label == "" {
			label = "responding"
		}
		status = "\n" + r.theme.Spinner.Render(frame) + " " + r.theme.StatusLine.Render(label)
	}

	return header + "\n" + extra + body + status
}

func (r *messageRenderer) renderBody(msg chat.Message, expanded bool, width int) string {
	content := msg.Content
	if content == "" {
		return ""
	}

	// Markdown waits for the message to finish; reflowing a half-streamed
	// code fence flickers badly.
	if msg.Role == chat.RoleAssistant && !msg.Streaming {
		content = r.markdown.Render(content, width)
	}
	content = wordwrap.String(content, width)

	if msg.Streaming || expanded {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) <= collapseAfterLines {
		return content
	}
	hidden := len(lines) - collapsedLines
	folded := strings.Join(lines[:collapsedLines], "\n")
	return folded + "\n" + r.theme.Footer.Render(fmt.Sprintf("… %d more lines (alt+e to expand)", hidden))
}
