// Package ctxbuffer is the rolling buffer of the last N hard units, used as
// translation context for both the Translation Buffer (§4.4) and the Peek
// Window's revision calls. Bounded by TRANSLATION_CONTEXT_SEGMENTS (§6),
// clamped 1..5.
package ctxbuffer

import (
	"sync"

	"github.com/kgr0831/relay/internal/roomcore"
)

// Buffer is a small FIFO of recent hard-unit texts, keyed loosely by root so
// the current unit can be excluded when building context for its own
// translation call.
type Buffer struct {
	mu   sync.Mutex
	size int
	// items oldest-first.
	items []roomcore.Unit
}

// New builds a Buffer bounded to size (clamped 1..5 by config.Load).
func New(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{size: size}
}

// Append adds a hard unit, evicting the oldest entry once over size.
func (b *Buffer) Append(unit roomcore.Unit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, unit)
	if len(b.items) > b.size {
		b.items = b.items[len(b.items)-b.size:]
	}
}

// Texts returns up to n of the most recent unit texts whose root is not
// excludeRoot, oldest first — the "last N context texts (excluding the
// current unit)" referenced by §4.4.
func (b *Buffer) Texts(excludeRoot string, n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, n)
	for i := len(b.items) - 1; i >= 0 && len(out) < n; i-- {
		if b.items[i].Root == excludeRoot {
			continue
		}
		out = append(out, b.items[i].Text)
	}
	// reverse to oldest-first, matching "leading elements of the input array" (§4.2).
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// Clear empties the buffer (Room Supervisor reset).
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
}
