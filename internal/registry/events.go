package registry

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/models"
)

// EventType classifies registry notifications
type EventType string

const (
	// EventConnected fires on an Offline to Online transition
	EventConnected EventType = "CONNECTED"
	// EventDisconnected fires on an Online to Offline transition
	EventDisconnected EventType = "DISCONNECTED"
	// EventStatusChanged fires whenever liveness status flips
	EventStatusChanged EventType = "STATUS_CHANGED"
)

// Event is a typed registry notification carrying a snapshot of the
// record after the transition
type Event struct {
	Type   EventType
	Client models.ClientRecord
	At     time.Time
}

type subscribers struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

// Subscribe returns a channel of registry events and a cancel function.
// Slow subscribers drop events rather than block registry mutation.
func (r *Registry) Subscribe(buffer int) (<-chan Event, func()) {
	r.subscribers.mu.Lock()
	defer r.subscribers.mu.Unlock()

	id := r.subscribers.next
	r.subscribers.next++

	ch := make(chan Event, buffer)
	r.subscribers.subs[id] = ch

	cancel := func() {
		r.subscribers.mu.Lock()
		defer r.subscribers.mu.Unlock()
		if _, ok := r.subscribers.subs[id]; ok {
			delete(r.subscribers.subs, id)
			close(ch)
		}
	}

	return ch, cancel
}

func (r *Registry) publish(t EventType, client models.ClientRecord) {
	event := Event{Type: t, Client: client, At: time.Now()}

	r.subscribers.mu.Lock()
	defer r.subscribers.mu.Unlock()

	for _, ch := range r.subscribers.subs {
		select {
		case ch <- event:
		default:
			log.Warn().
				Str("type", string(t)).
				Str("client_id", client.ID).
				Msg("Dropping registry event for slow subscriber")
		}
	}
}

// emitTransition publishes the events implied by a liveness change. A
// newly created record is treated as transitioning from Offline.
func (r *Registry) emitTransition(old, now models.ClientStatus, client models.ClientRecord) {
	if old == now {
		return
	}

	r.publish(EventStatusChanged, client)

	switch {
	case old == models.StatusOffline && now == models.StatusOnline:
		r.publish(EventConnected, client)
	case old == models.StatusOnline && now == models.StatusOffline:
		r.publish(EventDisconnected, client)
	}
}
