package chat

import "time"

// Reveal simulation reconstructs a "still typing" view for a message
// whose generation already finished server-side while the client was
// away. The client has no record of how much was shown before, so the
// visible length is estimated from wall-clock elapsed time at a fixed
// rate; the backend keeps no delivery watermark to make it exact.
const (
	// revealRate is characters revealed per millisecond (~250 cps).
	revealRate = 0.25

	// RevealBatch is how many characters each reveal tick uncovers.
	RevealBatch = 24

	// RevealInterval is the reveal ticker cadence.
	RevealInterval = 5 * time.Millisecond
)

// Reconstruct computes the visible prefix of a fully-known message at
// time now, given when generation started. It returns the full content
// with simulating=false once the estimate catches up; otherwise a strict
// prefix and simulating=true.
func Reconstruct(full string, createdAt, now time.Time) (visible string, simulating bool) {
	runes := []rune(full)
	elapsed := now.Sub(createdAt).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	n := int(float64(elapsed) * revealRate)
	if n >= len(runes) {
		return full, false
	}
	return string(runes[:n]), true
}
