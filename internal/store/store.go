// Package store holds the optional persistence layer referenced by §4.6's
// "Persistence (optional)" note and §5's "store interface is optional; if
// absent, all state lives in memory." Grounded on the teacher's
// internal/handler/room_hub.go Redis-then-database transcript flow
// (GetTranscripts/AddTranscript/saveTranscriptsToDatabase), generalized
// from a fixed transcript log into the room core's two persistence needs:
// patch history replay and TTS queue state rehydration.
package store

import (
	"context"
	"time"

	"github.com/kgr0831/relay/internal/roomcore"
)

// QueueItem is the serializable snapshot of one pending TTS Queue item,
// matching §4.6's persistence field list.
type QueueItem struct {
	UnitID     string
	RootUnitID string
	Lang       string
	Text       string
	Voice      string
	Duration   time.Duration
	CreatedAt  time.Time
	SentLen    *int
	Version    int
}

// Store is the optional persistence contract. Every method must be safe to
// call from multiple goroutines; implementations own their own locking.
type Store interface {
	// AppendPatch records one accepted egress patch for a room, for
	// PATCH_HISTORY_MAX_MS-bounded replay to late-joining subscribers.
	AppendPatch(ctx context.Context, roomID string, patch roomcore.EgressPatch) error

	// PatchHistory returns every recorded patch for roomID newer than since.
	PatchHistory(ctx context.Context, roomID string, since time.Time) ([]roomcore.EgressPatch, error)

	// SaveQueueState overwrites the persisted snapshot of one (room, lang)
	// TTS Queue's remaining items.
	SaveQueueState(ctx context.Context, roomID, lang string, items []QueueItem) error

	// LoadQueueState returns the last persisted snapshot, if any, for
	// rehydration on construction.
	LoadQueueState(ctx context.Context, roomID, lang string) ([]QueueItem, error)

	// Close releases any held connections.
	Close() error
}
