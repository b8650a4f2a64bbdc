package chat

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/taskbus/internal/auth"
	"github.com/example/taskbus/internal/idgen"
	"github.com/example/taskbus/internal/logging"
	"github.com/example/taskbus/internal/metrics"
)

// TokenValidator authenticates a bearer token into claims. A client-supplied
// username is sufficient identity for the chat bus's domain logic, so this
// is wired in only when operators turn auth on; nil disables the check.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.CustomClaims, error)
}

type connState int

const (
	stateConnecting connState = iota
	stateOpen
	stateClosing
	stateClosed
)

const writeWait = 10 * time.Second

// wsConn is the subset of *websocket.Conn the gateway depends on, so tests
// can substitute a fake transport.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ChatGateway is the per-session driver: it reads inbound frames, hands them
// to the MessageRouter, and writes outbound frames from the session's FIFO.
type ChatGateway struct {
	router   *MessageRouter
	sessions *SessionTable
	rooms    *RoomRegistry
	ids      *idgen.Gen
	clock    idgen.Clock

	bufferSize int
	validator  TokenValidator

	mu    sync.Mutex
	state connState
}

// GatewayOption configures optional ChatGateway behavior.
type GatewayOption func(*ChatGateway)

// WithValidator enables token authentication on WebSocket upgrade: the
// "token" query parameter must validate, and its subject claim is used as
// the session's userId when the "userId" query parameter is absent.
func WithValidator(v TokenValidator) GatewayOption {
	return func(g *ChatGateway) { g.validator = v }
}

// NewChatGateway builds a ChatGateway sharing the given tables and router.
func NewChatGateway(router *MessageRouter, sessions *SessionTable, rooms *RoomRegistry, ids *idgen.Gen, clock idgen.Clock, bufferSize int, opts ...GatewayOption) *ChatGateway {
	g := &ChatGateway{
		router:     router,
		sessions:   sessions,
		rooms:      rooms,
		ids:        ids,
		clock:      clock,
		bufferSize: bufferSize,
		state:      stateConnecting,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Upgrader builds a gorilla/websocket.Upgrader whose CheckOrigin accepts
// only the configured allowed origins (empty Origin header is treated as a
// non-browser client and allowed).
func Upgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			originURL, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, allowed := range allowedOrigins {
				allowedURL, err := url.Parse(allowed)
				if err != nil {
					continue
				}
				if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
					return true
				}
			}
			return false
		},
	}
}

// ServeWS upgrades the HTTP request and drives the connection until it
// closes. userId comes from the "userId" query parameter; if absent, an
// anonymous id is assigned.
func (g *ChatGateway) ServeWS(c *gin.Context, upgrader websocket.Upgrader) {
	userID := c.Query("userId")

	if g.validator != nil {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token not provided"})
			return
		}
		claims, err := g.validator.ValidateToken(token)
		if err != nil {
			logging.Warn(c.Request.Context(), "websocket token validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if userID == "" {
			userID = claims.Subject
		}
	}

	if userID == "" {
		userID = "anonymous-" + fmtInt(g.clock.NowMs())
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	g.Run(conn, userID)
}

func fmtInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

// Run drives a single connection through CONNECTING -> OPEN -> CLOSING ->
// CLOSED. It blocks until the session closes.
func (g *ChatGateway) Run(conn wsConn, userID string) {
	g.setState(stateConnecting)

	session := NewSession(userID, g.bufferSize)
	if old, existed := g.sessions.Add(session); existed {
		old.push(&ChatMessage{
			Type:      TypeSystem,
			Sender:    systemSender,
			Content:   "You have been disconnected: logged in elsewhere",
			ID:        g.ids.NextMessageID(),
			Timestamp: g.clock.NowMs(),
		})
		old.Close()
	}

	metrics.IncConnection()
	defer metrics.DecConnection()

	session.push(&ChatMessage{
		Type:      TypeSystem,
		Sender:    systemSender,
		Content:   "Welcome",
		ID:        g.ids.NextMessageID(),
		Timestamp: g.clock.NowMs(),
	})

	g.setState(stateOpen)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		g.writePump(conn, session)
	}()
	go func() {
		defer wg.Done()
		g.readPump(conn, session)
	}()
	wg.Wait()

	g.setState(stateClosing)
	g.sessions.Remove(session)
	g.router.Leave(session)
	session.Close()
	_ = conn.Close()
	g.setState(stateClosed)
}

func (g *ChatGateway) setState(s connState) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// readPump consumes inbound frames. A malformed frame produces a system
// error to the sender and does not terminate the session; a transport error
// does. On return, it closes the session's outbound FIFO so writePump's
// range loop unblocks.
func (g *ChatGateway) readPump(conn wsConn, session *Session) {
	defer session.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg ChatMessage
		if jsonErr := json.Unmarshal(data, &msg); jsonErr != nil {
			g.router.systemTo(session.UserID, "malformed frame")
			continue
		}

		g.router.Route(session, &msg)
	}
}

// writePump drains the session's outbound FIFO to the network in strict
// FIFO order, returning once the FIFO is closed and drained or a write
// fails.
func (g *ChatGateway) writePump(conn wsConn, session *Session) {
	defer conn.Close()

	for msg := range session.Outbound() {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
