package transport

import (
	"sync"

	"github.com/kgr0831/relay/internal/roomcore/room"
)

// Registry lazily creates one Supervisor per room slug, grounded on the
// teacher's internal/handler/room_hub.go GetOrCreateRoom map-of-rooms
// pattern.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*room.Supervisor
	factory func(roomID string) room.Config
}

// NewRegistry builds an empty Registry. factory produces the per-room
// Config — most fields are process-wide, only RoomID varies per call.
func NewRegistry(factory func(roomID string) room.Config) *Registry {
	return &Registry{
		rooms:   map[string]*room.Supervisor{},
		factory: factory,
	}
}

// GetOrCreate returns the existing Supervisor for roomID, constructing one
// on first use.
func (r *Registry) GetOrCreate(roomID string) *room.Supervisor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sup, ok := r.rooms[roomID]; ok {
		return sup
	}
	sup := room.New(r.factory(roomID))
	r.rooms[roomID] = sup
	return sup
}

// Remove shuts down and drops a room, used when the room's time window has
// expired for good (not yet wired to an idle reaper; rooms currently live
// for the process lifetime once created).
func (r *Registry) Remove(roomID string) {
	r.mu.Lock()
	sup, ok := r.rooms[roomID]
	if ok {
		delete(r.rooms, roomID)
	}
	r.mu.Unlock()
	if ok {
		sup.Shutdown()
	}
}

// ShutdownAll shuts down every room, used on process exit.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	rooms := make([]*room.Supervisor, 0, len(r.rooms))
	for _, sup := range r.rooms {
		rooms = append(rooms, sup)
	}
	r.rooms = map[string]*room.Supervisor{}
	r.mu.Unlock()
	for _, sup := range rooms {
		sup.Shutdown()
	}
}
