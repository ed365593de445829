package transport

import (
	"errors"
	"net/http"
	"time"

	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/config"
)

// Transport errors
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionNotWritable = errors.New("session not writable")
	ErrClientNotConnected = errors.New("client not connected")
)

// MessageHandler consumes inbound wire frames from a session
type MessageHandler interface {
	Handle(data []byte, connID string)
}

// DisconnectFunc is invoked after a session leaves the live set.
// authoritative is false when a newer session for the same identity has
// already superseded the one that disconnected.
type DisconnectFunc func(connID, clientID string, authoritative bool)

// Hub owns all live sessions. One read goroutine and one writer goroutine
// run per session; sends to distinct connections proceed in parallel.
type Hub struct {
	upgrader     websocket.Upgrader
	idleTimeout  time.Duration
	writeTimeout time.Duration
	sendBuffer   int

	handler      MessageHandler
	onDisconnect DisconnectFunc

	mu       sync.RWMutex
	sessions map[string]*Session
	byClient map[string]string // client identity -> authoritative conn id
}

// NewHub creates a session hub
func NewHub(cfg *config.TransportConfig) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		idleTimeout:  cfg.IdleTimeout,
		writeTimeout: cfg.WriteTimeout,
		sendBuffer:   cfg.SendBuffer,
		sessions:     make(map[string]*Session),
		byClient:     make(map[string]string),
	}
}

// SetHandler wires the inbound message handler. Must be called before
// the hub accepts connections.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// SetDisconnectFunc wires the disconnect notification
func (h *Hub) SetDisconnectFunc(fn DisconnectFunc) {
	h.onDisconnect = fn
}

// ServeWS upgrades an HTTP request into a display unit session
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("Failed to upgrade connection")
		return
	}

	session := &Session{
		ID:         uuid.New().String(),
		RemoteAddr: r.RemoteAddr,
		conn:       conn,
		send:       make(chan []byte, h.sendBuffer),
		hub:        h,
	}

	h.mu.Lock()
	h.sessions[session.ID] = session
	h.mu.Unlock()

	log.Info().
		Str("conn_id", session.ID).
		Str("remote_addr", session.RemoteAddr).
		Msg("Session opened")

	go session.writeLoop()
	go session.readLoop()
}

// Bind associates a client identity with a session after successful
// registration. An older session for the same identity is superseded and
// closed; its later disconnect is reported as non-authoritative.
func (h *Hub) Bind(connID, clientID string) error {
	h.mu.Lock()
	session, ok := h.sessions[connID]
	if !ok {
		h.mu.Unlock()
		return ErrSessionNotFound
	}

	var superseded *Session
	if oldID, exists := h.byClient[clientID]; exists && oldID != connID {
		superseded = h.sessions[oldID]
	}
	h.byClient[clientID] = connID
	h.mu.Unlock()

	session.setClientID(clientID)

	if superseded != nil {
		log.Info().
			Str("client_id", clientID).
			Str("old_conn_id", superseded.ID).
			Str("new_conn_id", connID).
			Msg("Session superseded by reconnect")
		superseded.close()
	}

	return nil
}

// SendTo queues an encoded frame for one specific connection. Fails fast
// when the connection is absent or its writer is saturated.
func (h *Hub) SendTo(connID string, data []byte) error {
	h.mu.RLock()
	session, ok := h.sessions[connID]
	h.mu.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}
	return session.enqueue(data)
}

// SendToClient queues a frame for the authoritative session of a client
// identity
func (h *Hub) SendToClient(clientID string, data []byte) error {
	h.mu.RLock()
	connID, ok := h.byClient[clientID]
	h.mu.RUnlock()

	if !ok {
		return ErrClientNotConnected
	}
	return h.SendTo(connID, data)
}

// Broadcast queues a frame for every open session, best effort.
// Individual failures are logged and not propagated.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if err := s.enqueue(data); err != nil {
			log.Debug().
				Err(err).
				Str("conn_id", s.ID).
				Msg("Broadcast send failed")
		}
	}
}

// RemoteAddr returns the network address of a live connection, empty
// when the connection is gone
func (h *Hub) RemoteAddr(connID string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if session, ok := h.sessions[connID]; ok {
		return session.RemoteAddr
	}
	return ""
}

// IsConnected reports whether a client identity has a live session
func (h *Hub) IsConnected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byClient[clientID]
	return ok
}

// Count returns the number of open sessions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll closes every open session with a normal-closure notice. Used
// during shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.close()
	}
}

// unregister removes a session from the live set and emits the
// disconnect notification. The session is authoritative only if it is
// still the newest one for its identity; a reconnect may already have
// superseded it.
func (h *Hub) unregister(s *Session) {
	clientID := s.ClientID()

	h.mu.Lock()
	delete(h.sessions, s.ID)
	authoritative := false
	if clientID != "" && h.byClient[clientID] == s.ID {
		delete(h.byClient, clientID)
		authoritative = true
	}
	h.mu.Unlock()

	s.close()

	log.Info().
		Str("conn_id", s.ID).
		Str("client_id", clientID).
		Bool("authoritative", authoritative).
		Msg("Session closed")

	if h.onDisconnect != nil {
		h.onDisconnect(s.ID, clientID, authoritative)
	}
}
