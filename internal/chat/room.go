package chat

import (
	"sync"

	"github.com/example/taskbus/internal/metrics"
)

// Room tracks a set of member user ids and fans out broadcast messages to
// every subscriber through a bounded multicast sink.
type Room struct {
	RoomID string

	mu      sync.RWMutex
	members map[string]struct{}

	subMu       sync.Mutex
	subscribers map[int]chan *ChatMessage
	nextSubID   int
}

func newRoom(roomID string) *Room {
	return &Room{
		RoomID:      roomID,
		members:     make(map[string]struct{}),
		subscribers: make(map[int]chan *ChatMessage),
	}
}

func (r *Room) addMember(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[userID] = struct{}{}
}

func (r *Room) removeMember(userID string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, userID)
	return len(r.members) == 0
}

func (r *Room) memberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// subscribe returns a consumer endpoint fed by every future broadcast to
// this room, and a function to cancel the subscription. Each subscriber has
// its own bounded channel so one slow reader's drops never affect another.
func (r *Room) subscribe(bufferSize int) (<-chan *ChatMessage, func()) {
	if bufferSize < 1 {
		bufferSize = 1
	}
	ch := make(chan *ChatMessage, bufferSize)

	r.subMu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = ch
	r.subMu.Unlock()

	cancel := func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if c, ok := r.subscribers[id]; ok {
			delete(r.subscribers, id)
			close(c)
		}
	}
	return ch, cancel
}

// broadcast enqueues msg on every subscriber's sink, dropping the oldest
// undelivered message for any subscriber whose buffer is full and counting
// it against room.drop_count.
func (r *Room) broadcast(msg *ChatMessage) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for _, ch := range r.subscribers {
		for {
			select {
			case ch <- msg:
			default:
				select {
				case <-ch:
					metrics.RoomDropCount.WithLabelValues(r.RoomID).Inc()
				default:
				}
				continue
			}
			break
		}
	}
}

// RoomRegistry is a concurrent registry of Rooms, lazily created on first
// join and removed atomically with the last member leaving.
type RoomRegistry struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	bufferSize int
}

// NewRoomRegistry builds an empty RoomRegistry whose rooms use bufferSize
// for their per-subscriber fan-out channels.
func NewRoomRegistry(bufferSize int) *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*Room), bufferSize: bufferSize}
}

func (rr *RoomRegistry) getOrCreate(roomID string) *Room {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	room, ok := rr.rooms[roomID]
	if !ok {
		room = newRoom(roomID)
		rr.rooms[roomID] = room
		metrics.ActiveRooms.Inc()
	}
	return room
}

// Join adds userID to roomID, creating the room if needed.
func (rr *RoomRegistry) Join(roomID, userID string) *Room {
	room := rr.getOrCreate(roomID)
	room.addMember(userID)
	metrics.RoomMembers.WithLabelValues(roomID).Set(float64(room.memberCount()))
	return room
}

// Leave removes userID from roomID. If the room becomes empty, it is removed
// from the registry atomically with the departure.
func (rr *RoomRegistry) Leave(roomID, userID string) {
	rr.mu.Lock()
	room, ok := rr.rooms[roomID]
	if !ok {
		rr.mu.Unlock()
		return
	}
	empty := room.removeMember(userID)
	if empty {
		delete(rr.rooms, roomID)
		metrics.ActiveRooms.Dec()
		metrics.RoomMembers.DeleteLabelValues(roomID)
	}
	rr.mu.Unlock()

	if !empty {
		metrics.RoomMembers.WithLabelValues(roomID).Set(float64(room.memberCount()))
	}
}

// Broadcast enqueues msg on roomID's fan-out sink, if the room exists.
func (rr *RoomRegistry) Broadcast(roomID string, msg *ChatMessage) {
	rr.mu.Lock()
	room, ok := rr.rooms[roomID]
	rr.mu.Unlock()
	if !ok {
		return
	}
	room.broadcast(msg)
}

// Subscribe returns a consumer endpoint for roomID (created if absent) and a
// cancel function the caller must invoke on unsubscribe.
func (rr *RoomRegistry) Subscribe(roomID string) (<-chan *ChatMessage, func()) {
	room := rr.getOrCreate(roomID)
	return room.subscribe(rr.bufferSize)
}
