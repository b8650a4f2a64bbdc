package chat

import (
	"sync"

	"github.com/example/taskbus/internal/metrics"
)

// Session is one connected client's outbound state: a bounded FIFO of
// ChatMessage plus the room it currently belongs to.
type Session struct {
	UserID string

	mu          sync.Mutex
	currentRoom string
	outbound    chan *ChatMessage
	closed      bool
}

// NewSession builds a Session with an outbound FIFO of the given capacity.
func NewSession(userID string, bufferSize int) *Session {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Session{
		UserID:   userID,
		outbound: make(chan *ChatMessage, bufferSize),
	}
}

// CurrentRoom returns the session's current room, or "" if none.
func (s *Session) CurrentRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRoom
}

// SetCurrentRoom updates the session's current room.
func (s *Session) SetCurrentRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRoom = roomID
}

// Outbound returns the channel the session's writer goroutine should drain.
func (s *Session) Outbound() <-chan *ChatMessage {
	return s.outbound
}

// push enqueues msg, dropping the oldest queued message on overflow rather
// than blocking the caller — an unrelated room broadcast must never stall
// because one slow client's queue is full.
func (s *Session) push(msg *ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.outbound <- msg:
			return
		default:
		}
		select {
		case <-s.outbound:
			metrics.SessionDropCount.WithLabelValues(s.UserID).Inc()
		default:
		}
	}
}

// Close marks the session closed and closes its outbound channel so any
// blocked writer goroutine observes channel closure.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbound)
}

// SessionTable is a concurrent registry of active sessions keyed by userId.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionTable builds an empty SessionTable.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]*Session)}
}

// Add registers session under its UserID. If a session already exists for
// that user, it is superseded: the caller receives the old session so it can
// push a system notice and close it before the new one takes over.
func (st *SessionTable) Add(session *Session) (old *Session, existed bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	old, existed = st.sessions[session.UserID]
	st.sessions[session.UserID] = session
	return old, existed
}

// Remove deletes userId's session iff it is still the one passed, so a
// stale removal (after a supersede) never clobbers the new session.
func (st *SessionTable) Remove(session *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if cur, ok := st.sessions[session.UserID]; ok && cur == session {
		delete(st.sessions, session.UserID)
	}
}

// Get returns the session registered for userId, if any.
func (st *SessionTable) Get(userID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[userID]
	return s, ok
}

// PushToUser enqueues msg on userId's outbound FIFO. Returns false (no-op)
// if no such user is connected.
func (st *SessionTable) PushToUser(userID string, msg *ChatMessage) bool {
	session, ok := st.Get(userID)
	if !ok {
		return false
	}
	session.push(msg)
	return true
}

// Broadcast pushes a copy of msg to every currently connected session. Used
// for server-wide notices such as an impending shutdown.
func (st *SessionTable) Broadcast(msg *ChatMessage) {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.RUnlock()

	for _, s := range sessions {
		copied := *msg
		s.push(&copied)
	}
}
