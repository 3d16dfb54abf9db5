// Package room implements session rooms: per-order pub/sub channels that fan
// full snapshots and incremental deltas out to every connected viewer
// (customer device, kitchen stations, staff dashboard). Rooms are ephemeral:
// created on first join, garbage-collected when the last viewer leaves.
package room

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kirinyoku/mesa-go/internal/domain"
)

type ViewerKind string

const (
	ViewerCustomer ViewerKind = "customer"
	ViewerKitchen  ViewerKind = "kitchen"
	ViewerStaff    ViewerKind = "staff"
)

// Handle is one connected viewer's subscription. Events arrive on a buffered
// channel; a viewer that falls behind has events dropped (never blocking the
// publisher) and its lag flag raised so it knows to re-fetch a full snapshot
// instead of trusting its delta stream.
type Handle struct {
	ID     string
	Kind   ViewerKind
	Area   domain.KitchenArea // kitchen viewers only
	events chan domain.Event
	lagged atomic.Bool
	closed atomic.Bool
}

func (h *Handle) Events() <-chan domain.Event { return h.events }

// Lagged reports and clears the dropped-events flag.
func (h *Handle) Lagged() bool {
	return h.lagged.Swap(false)
}

// Send queues one event for this viewer without blocking. Used by the hub on
// publish and by the join path for the initial snapshot.
func (h *Handle) Send(ev domain.Event) {
	if h.closed.Load() {
		return
	}
	select {
	case h.events <- ev:
	default:
		h.lagged.Store(true)
	}
}

type roomState struct {
	mu      sync.Mutex
	viewers map[string]*Handle
}

// Hub is the room registry. Publish order within one room equals delivery
// order for every joined viewer; rooms are independent of each other.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*roomState
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		rooms:  make(map[string]*roomState),
		buffer: buffer,
	}
}

// Join registers a viewer in the room, creating the room on first join. The
// caller is expected to immediately Send the current full snapshot on the
// returned handle so late joiners never render from deltas alone.
func (h *Hub) Join(key string, kind ViewerKind, area domain.KitchenArea) *Handle {
	handle := &Handle{
		ID:     uuid.New().String(),
		Kind:   kind,
		Area:   area,
		events: make(chan domain.Event, h.buffer),
	}

	// registration stays under the hub lock: a concurrent final Leave must
	// not collect the room between the lookup and the viewer insert
	h.mu.Lock()
	r, ok := h.rooms[key]
	if !ok {
		r = &roomState{viewers: make(map[string]*Handle)}
		h.rooms[key] = r
	}
	r.mu.Lock()
	r.viewers[handle.ID] = handle
	r.mu.Unlock()
	h.mu.Unlock()

	return handle
}

// Publish fans one event out to every viewer currently joined to the room.
// Fire-and-forget per viewer: a slow or gone viewer never stalls the
// publisher or its neighbors. No-op when the room has no viewers.
func (h *Hub) Publish(key string, ev domain.Event) {
	h.mu.RLock()
	r, ok := h.rooms[key]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	for _, v := range r.viewers {
		v.Send(ev)
	}
	r.mu.Unlock()
}

// Leave deregisters a viewer and closes its channel. The room is dropped
// once its last viewer leaves.
func (h *Hub) Leave(key string, handle *Handle) {
	h.mu.Lock()
	r, ok := h.rooms[key]
	if !ok {
		h.mu.Unlock()
		return
	}

	r.mu.Lock()
	if _, joined := r.viewers[handle.ID]; joined {
		delete(r.viewers, handle.ID)
		handle.closed.Store(true)
		close(handle.events)
	}
	empty := len(r.viewers) == 0
	r.mu.Unlock()

	if empty {
		delete(h.rooms, key)
	}
	h.mu.Unlock()
}

// Viewers counts joined viewers in one room.
func (h *Hub) Viewers(key string) int {
	h.mu.RLock()
	r, ok := h.rooms[key]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.viewers)
}

// Rooms counts live rooms.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
