package store

import (
	"context"
	"sync"
	"time"

	"github.com/kgr0831/relay/internal/roomcore"
)

// Memory is the default Store: process-local, lost on restart. Used when
// STORE_BACKEND is "memory" (the default) or unset.
type Memory struct {
	mu      sync.Mutex
	history map[string][]patchRecord
	queues  map[string][]QueueItem
}

type patchRecord struct {
	patch    roomcore.EgressPatch
	recorded time.Time
}

// NewMemory builds an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		history: map[string][]patchRecord{},
		queues:  map[string][]QueueItem{},
	}
}

func (m *Memory) AppendPatch(_ context.Context, roomID string, patch roomcore.EgressPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[roomID] = append(m.history[roomID], patchRecord{patch: patch, recorded: time.Now()})
	return nil
}

func (m *Memory) PatchHistory(_ context.Context, roomID string, since time.Time) ([]roomcore.EgressPatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []roomcore.EgressPatch
	for _, rec := range m.history[roomID] {
		if rec.recorded.After(since) {
			out = append(out, rec.patch)
		}
	}
	return out, nil
}

func (m *Memory) SaveQueueState(_ context.Context, roomID, lang string, items []QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[roomID+":"+lang] = items
	return nil
}

func (m *Memory) LoadQueueState(_ context.Context, roomID, lang string) ([]QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queues[roomID+":"+lang], nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
