package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/internal/logging"
	"github.com/FocuswithJustin/versewatch/internal/session"
	"github.com/FocuswithJustin/versewatch/internal/validation"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// wsMessageRate is the sustained fragments per second per connection.
	wsMessageRate = 10
)

// Client message types.
const (
	MessageFragment = "fragment"
	MessageReset    = "reset"
)

// Server message types.
const (
	MessageSession = "session"
	MessageResult  = "result"
	MessageClosed  = "closed"
	MessageError   = "error"
)

// ClientMessage is sent by a WebSocket client.
type ClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ServerMessage is sent to WebSocket clients. Results and resets are
// delivered to every client subscribed to the session.
type ServerMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Session   *session.Info   `json:"session,omitempty"`
	Result    *session.Result `json:"result,omitempty"`
	Error     *APIError       `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Client is one WebSocket connection subscribed to a session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session string
	send    chan []byte
	limiter *tokenBucket
}

type outbound struct {
	session string
	client  *Client // nil delivers to every subscriber of session
	data    []byte
}

// Hub maintains active WebSocket connections and routes messages to the
// subscribers of each session.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	onCount    func(n int)
}

// NewHub creates a hub. onCount, if set, receives the number of connected
// clients after every change.
func NewHub(onCount func(n int)) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		onCount:    onCount,
	}
}

// Run routes messages until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
		close(h.done)
		h.count()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.count()
			logging.WebSocketEvent("client_connected", h.Len(), "session", client.session)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.count()
			logging.WebSocketEvent("client_disconnected", h.Len(), "session", client.session)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.session != msg.session || (msg.client != nil && msg.client != client) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow reader; disconnect.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) count() {
	if h.onCount != nil {
		h.onCount(h.Len())
	}
}

// add registers a client. It reports false once the hub has stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish sends msg to every client subscribed to sessionID.
func (h *Hub) Publish(sessionID string, msg ServerMessage) {
	h.enqueue(outbound{session: sessionID}, msg)
}

func (h *Hub) sendTo(c *Client, msg ServerMessage) {
	h.enqueue(outbound{session: c.session, client: c}, msg)
}

func (h *Hub) enqueue(out outbound, msg ServerMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to marshal websocket message", "error", err)
		return
	}
	out.data = data

	select {
	case h.broadcast <- out:
	case <-h.done:
	default:
		logging.Warn("broadcast channel full, dropping message", "session", out.session)
	}
}

// readPump reads client messages and processes fragments in arrival order.
func (c *Client) readPump(s *Server) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(s.cfg.MaxFragmentBytes) + 1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("websocket unexpected close", "session", c.session, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.fail(errors.NewValidation("message", err.Error()))
			continue
		}
		if !c.limiter.allow() {
			c.hub.sendTo(c, ServerMessage{Type: MessageError, SessionID: c.session,
				Error: &APIError{Code: "RATE_LIMIT_EXCEEDED", Message: "too many messages"}})
			continue
		}
		c.handle(ctx, s, msg)
	}
}

func (c *Client) handle(ctx context.Context, s *Server, msg ClientMessage) {
	switch msg.Type {
	case MessageFragment:
		if err := s.validateText(msg.Text); err != nil {
			c.fail(err)
			return
		}
		res, err := s.sessions.Process(ctx, c.session, msg.Text)
		if err != nil {
			c.fail(err)
			return
		}
		c.hub.Publish(c.session, ServerMessage{Type: MessageResult, SessionID: c.session, Result: &res})

	case MessageReset:
		if err := s.sessions.Reset(c.session); err != nil {
			c.fail(err)
			return
		}
		c.hub.Publish(c.session, ServerMessage{Type: MessageReset, SessionID: c.session})

	default:
		c.fail(errors.NewValidation("type", "unknown message type "+msg.Type))
	}
}

func (c *Client) fail(err error) {
	_, code := errorStatus(err)
	c.hub.sendTo(c, ServerMessage{Type: MessageError, SessionID: c.session,
		Error: &APIError{Code: code, Message: err.Error()}})
}

// writePump writes queued messages, one per frame, and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket subscribes a connection to a session. Without a session
// parameter a new session is opened, using the translation parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, translationID := q.Get("session"), q.Get("translation")
	var info session.Info
	if id != "" {
		var err error
		if info, err = s.sessions.Get(id); err != nil {
			respondErr(w, err)
			return
		}
	} else if translationID != "" {
		if err := validation.ValidateID(translationID); err != nil {
			respondErr(w, errors.NewValidation("translation", err.Error()))
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", "error", err)
		return
	}
	if id == "" {
		if info, err = s.sessions.Open(translationID); err != nil {
			logging.Error("opening websocket session", "error", err)
			conn.Close()
			return
		}
	}

	client := &Client{
		hub:     s.hub,
		conn:    conn,
		session: info.ID,
		send:    make(chan []byte, 256),
		limiter: newTokenBucket(2*wsMessageRate, wsMessageRate),
	}
	if !s.hub.add(client) {
		conn.Close()
		return
	}
	s.hub.sendTo(client, ServerMessage{Type: MessageSession, SessionID: info.ID, Session: &info})

	go client.writePump()
	go client.readPump(s)
}

// checkOrigin allows the configured origins. "*" allows any origin.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla's same-origin check
	}
	if slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, origin) {
			return true
		}
		logging.Warn("websocket origin rejected", "origin", origin)
		return false
	}
}
