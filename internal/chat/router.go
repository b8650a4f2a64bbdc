package chat

import (
	"fmt"
	"sync"

	"github.com/example/taskbus/internal/idgen"
	"github.com/example/taskbus/internal/metrics"
)

const systemSender = "system"

// MessageRouter classifies and dispatches inbound ChatMessage to the right
// destination: a room broadcast, a targeted user, or a control action.
//
// Room delivery is two-hop: RoomRegistry.broadcast fans out to per-session
// subscriber channels (decoupling the producer from each consumer's drain
// rate), and a forwarder goroutine per joined session drains that channel
// into the session's own outbound FIFO. The router owns the forwarder
// lifecycle, keyed by userId, so a room switch or disconnect cleanly
// cancels the old subscription before starting a new one.
type MessageRouter struct {
	sessions *SessionTable
	rooms    *RoomRegistry
	ids      *idgen.Gen
	clock    idgen.Clock

	subMu sync.Mutex
	subs  map[string]func()
}

// NewMessageRouter builds a MessageRouter over the given tables.
func NewMessageRouter(sessions *SessionTable, rooms *RoomRegistry, ids *idgen.Gen, clock idgen.Clock) *MessageRouter {
	return &MessageRouter{
		sessions: sessions,
		rooms:    rooms,
		ids:      ids,
		clock:    clock,
		subs:     make(map[string]func()),
	}
}

func (r *MessageRouter) stamp(msg *ChatMessage) *ChatMessage {
	msg.ID = r.ids.NextMessageID()
	msg.Timestamp = r.clock.NowMs()
	return msg
}

func (r *MessageRouter) systemTo(userID, content string) {
	r.sessions.PushToUser(userID, r.stamp(&ChatMessage{
		Type:    TypeSystem,
		Sender:  systemSender,
		Content: content,
	}))
}

func (r *MessageRouter) presenceToRoom(roomID, content string) {
	r.rooms.Broadcast(roomID, r.stamp(&ChatMessage{
		Type:    TypePresence,
		Sender:  systemSender,
		Content: content,
	}))
}

// Route interprets an inbound message with sender overridden to the
// authenticated userId of session. Only chat/private/join_room may
// originate from a client; anything else is dropped and counted.
func (r *MessageRouter) Route(session *Session, msg *ChatMessage) {
	msg.Sender = session.UserID

	switch msg.Type {
	case TypeJoinRoom:
		r.handleJoinRoom(session, msg)
	case TypeChat:
		r.handleChat(session, msg)
	case TypePrivate:
		r.handlePrivate(session, msg)
	default:
		metrics.RouterRejected.WithLabelValues(string(msg.Type)).Inc()
	}
}

// unsubscribeRoom cancels userId's current room subscription, if any.
func (r *MessageRouter) unsubscribeRoom(userID string) {
	r.subMu.Lock()
	cancel, ok := r.subs[userID]
	if ok {
		delete(r.subs, userID)
	}
	r.subMu.Unlock()
	if ok {
		cancel()
	}
}

// subscribeRoom subscribes session to roomID's broadcast sink and starts a
// forwarder goroutine draining it into the session's own outbound FIFO. The
// goroutine exits once the subscription is cancelled (the channel closes).
func (r *MessageRouter) subscribeRoom(session *Session, roomID string) {
	ch, cancel := r.rooms.Subscribe(roomID)

	r.subMu.Lock()
	r.subs[session.UserID] = cancel
	r.subMu.Unlock()

	go func() {
		for msg := range ch {
			session.push(msg)
		}
	}()
}

// JoinOrMove moves session from its current room (if any) into roomID,
// sending "left"/"joined" presence notices, and pushes a confirmation to the
// session itself.
func (r *MessageRouter) JoinOrMove(session *Session, roomID string) {
	r.unsubscribeRoom(session.UserID)

	if prev := session.CurrentRoom(); prev != "" && prev != roomID {
		r.rooms.Leave(prev, session.UserID)
		r.presenceToRoom(prev, fmt.Sprintf("%s left", session.UserID))
	}

	r.rooms.Join(roomID, session.UserID)
	session.SetCurrentRoom(roomID)
	r.subscribeRoom(session, roomID)

	r.presenceToRoom(roomID, fmt.Sprintf("%s joined", session.UserID))
	r.systemTo(session.UserID, fmt.Sprintf("You joined room: %s", roomID))
}

func (r *MessageRouter) handleJoinRoom(session *Session, msg *ChatMessage) {
	r.JoinOrMove(session, msg.Content)
}

func (r *MessageRouter) handleChat(session *Session, msg *ChatMessage) {
	roomID := session.CurrentRoom()
	if roomID == "" {
		r.systemTo(session.UserID, "You must join a room first")
		return
	}
	r.rooms.Broadcast(roomID, r.stamp(msg))
}

func (r *MessageRouter) handlePrivate(session *Session, msg *ChatMessage) {
	if msg.Target == "" {
		r.systemTo(session.UserID, fmt.Sprintf("User %s not found", msg.Target))
		return
	}
	if !r.sessions.PushToUser(msg.Target, r.stamp(&ChatMessage{
		Type:    TypePrivate,
		Sender:  msg.Sender,
		Target:  msg.Target,
		Content: msg.Content,
	})) {
		r.systemTo(session.UserID, fmt.Sprintf("User %s not found", msg.Target))
		return
	}
	r.systemTo(session.UserID, fmt.Sprintf("Message delivered to %s", msg.Target))
}

// Leave removes session from its current room, if any, emitting a "left"
// presence notice. Called on disconnect.
func (r *MessageRouter) Leave(session *Session) {
	r.unsubscribeRoom(session.UserID)

	roomID := session.CurrentRoom()
	if roomID == "" {
		return
	}
	r.rooms.Leave(roomID, session.UserID)
	r.presenceToRoom(roomID, fmt.Sprintf("%s left", session.UserID))
}
