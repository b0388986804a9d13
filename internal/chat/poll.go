package chat

import "time"

// PollInterval is how often a pending conversation is re-fetched while
// the backend is still generating.
const PollInterval = 3 * time.Second

// ShouldPoll reports whether the background reconciliation loop should
// keep re-fetching the active conversation: the trailing message is an
// assistant placeholder with no content and no live send owns the
// buffer.
func ShouldPoll(b *Buffer, sending bool) bool {
	if sending {
		return false
	}
	return b.TrailingPending()
}
