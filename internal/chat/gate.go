package chat

import "errors"

// ErrSendInFlight rejects a second send while one is active.
var ErrSendInFlight = errors.New("a send is already in flight")

// Gate serializes the operations that may write the message buffer. The
// UI runs on a single cooperative loop, so plain booleans are enough;
// what matters is that conversation-switch reconciliation and polling
// consult them before touching shared state.
type Gate struct {
	sending     bool
	justCreated bool
}

// BeginSend claims the send slot. Only one send may be in flight.
func (g *Gate) BeginSend() error {
	if g.sending {
		return ErrSendInFlight
	}
	g.sending = true
	return nil
}

// EndSend releases the send slot. Callers must guarantee this runs on
// every exit path of a send.
func (g *Gate) EndSend() { g.sending = false }

func (g *Gate) Sending() bool { return g.sending }

// MarkJustCreated records that the in-flight send just learned a brand
// new conversation id from the backend.
func (g *Gate) MarkJustCreated() { g.justCreated = true }

// ConsumeJustCreated reports and clears the just-created flag. The
// conversation-change reconciliation consumes it exactly once so it does
// not wipe the buffer the send populated.
func (g *Gate) ConsumeJustCreated() bool {
	v := g.justCreated
	g.justCreated = false
	return v
}
