package tui

import (
	"context"
	"errors"
	"io"
	"strings"

	"algchat/internal/api"

	tea "github.com/charmbracelet/bubbletea"
)

// flushEvery bounds how many tokens accumulate before the reader pushes
// a snapshot to the UI. A chunk boundary flushes earlier.
const flushEvery = 8

// streamUpdate is one coalesced unit of progress from the stream reader
// goroutine. Exactly one update per send carries done=true, and it is
// always the last one on the channel.
type streamUpdate struct {
	sessionID string
	text      string // accumulated response so far, not a delta
	status    string
	done      bool
	errText   string
	meta      *api.DoneMetadata
}

type streamMsg struct {
	u streamUpdate
}

// waitStream blocks on the reader channel and re-arms from Update after
// every delivery, pumping goroutine progress into the event loop.
func waitStream(ch chan streamUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return streamMsg{u: u}
	}
}

// chatSender is the slice of the backend client a send needs.
type chatSender interface {
	Chat(ctx context.Context, message, sessionID string, images []api.ImageAttachment) (*api.ChatStream, error)
}

// runStream owns the network side of one send. It decodes the response
// stream, coalesces tokens into snapshots, and closes ch after the final
// done update so waitStream stops re-arming.
func runStream(ctx context.Context, client chatSender, message, sessionID string, images []api.ImageAttachment, ch chan<- streamUpdate) {
	defer close(ch)

	stream, err := client.Chat(ctx, message, sessionID, images)
	if err != nil {
		ch <- streamUpdate{done: true, errText: err.Error()}
		return
	}
	defer stream.Close()

	if stream.SessionID != "" && stream.SessionID != sessionID {
		ch <- streamUpdate{sessionID: stream.SessionID}
	}

	var text strings.Builder
	pending := 0
	flush := func() {
		if pending == 0 {
			return
		}
		ch <- streamUpdate{text: text.String()}
		pending = 0
	}

	for {
		ev, err := stream.Next()
		if err != nil {
			flush()
			if errors.Is(err, io.EOF) {
				// Transport closed without a done record; the text we
				// have is the answer.
				ch <- streamUpdate{done: true}
			} else {
				ch <- streamUpdate{done: true, errText: err.Error()}
			}
			return
		}
		switch ev.Kind {
		case api.EventToken:
			text.WriteString(ev.Content)
			pending++
			if pending >= flushEvery || stream.Drained() {
				flush()
			}
		case api.EventStatus:
			// Status supersedes buffered tokens; push them first so the
			// label never appears ahead of the text it follows.
			flush()
			ch <- streamUpdate{status: ev.Status}
		case api.EventDone:
			flush()
			ch <- streamUpdate{done: true, errText: ev.Err, meta: ev.Meta}
			return
		}
	}
}
