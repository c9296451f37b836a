package ttsqueue

import "context"

// Noop is a Synthesizer that produces no audio; it is not Ready, so
// Enqueue's prefetch pass emits nothing and the queue simply drains items
// with an error outcome. Used when no synthesis backend is configured.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Ready() bool { return false }

func (Noop) Synthesize(context.Context, string, string, string, float64) ([]byte, string, error) {
	return nil, "", nil
}
