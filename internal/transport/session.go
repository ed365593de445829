package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const maxFrameSize = 1 << 20

// Session binds one display unit to one open websocket connection. A
// session gains a client identity after successful registration.
type Session struct {
	ID         string
	RemoteAddr string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu       sync.Mutex
	clientID string
	closed   bool
}

// ClientID returns the registered identity, empty before registration
func (s *Session) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

func (s *Session) setClientID(id string) {
	s.mu.Lock()
	s.clientID = id
	s.mu.Unlock()
}

// enqueue hands a frame to the session's writer without blocking. It
// fails when the connection is closed or its send buffer is full.
func (s *Session) enqueue(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionNotWritable
	}

	select {
	case s.send <- data:
		return nil
	default:
		return ErrSessionNotWritable
	}
}

// close marks the session closed and releases the writer. Safe to call
// more than once.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// readLoop decodes inbound frames and hands them to the hub's handler.
// Returns when the connection errors, closes, or idles out.
func (s *Session) readLoop() {
	defer s.hub.unregister(s)

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(s.hub.idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.hub.idleTimeout))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().
					Err(err).
					Str("conn_id", s.ID).
					Str("remote_addr", s.RemoteAddr).
					Msg("Session read error")
			}
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(s.hub.idleTimeout))
		s.hub.handler.Handle(data, s.ID)
	}
}

// writeLoop is the single writer for the connection. It drains the send
// channel and keeps the connection alive with pings.
func (s *Session) writeLoop() {
	pingInterval := s.hub.idleTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.hub.writeTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().
					Err(err).
					Str("conn_id", s.ID).
					Msg("Session write error")
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.hub.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
