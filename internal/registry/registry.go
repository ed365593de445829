package registry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/storage"
)

// ErrClientNotFound indicates an unknown client identity
var ErrClientNotFound = errors.New("client not found")

// Store is the durable mirror consumed by the registry
type Store interface {
	ListClients(ctx context.Context) ([]*models.ClientRecord, error)
	CreateClient(ctx context.Context, client *models.ClientRecord) error
	UpdateClient(ctx context.Context, client *models.ClientRecord) error
	DeleteClient(ctx context.Context, id string) error
}

// Registry is the authoritative in-memory map of known display units,
// written through to the durable store on every mutation. The store is
// read only at warm-up; it is never a second authority at runtime.
type Registry struct {
	store          Store
	warmupAttempts int

	mu      sync.RWMutex
	clients map[string]*models.ClientRecord

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	subscribers subscribers
}

// New creates a registry backed by the given durable store
func New(store Store, warmupAttempts int) *Registry {
	return &Registry{
		store:          store,
		warmupAttempts: warmupAttempts,
		clients:        make(map[string]*models.ClientRecord),
		locks:          make(map[string]*sync.Mutex),
		subscribers:    subscribers{subs: make(map[int]chan Event)},
	}
}

// Warmup loads all records from the durable store, retrying transient
// failures with exponential backoff. After the attempts are exhausted
// the registry serves an empty cache rather than failing startup.
func (r *Registry) Warmup(ctx context.Context) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.Multiplier = 2
	policy.MaxInterval = 30 * time.Second

	clients, err := backoff.Retry(ctx, func() ([]*models.ClientRecord, error) {
		return r.store.ListClients(ctx)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(r.warmupAttempts)))

	if err != nil {
		log.Error().
			Err(err).
			Int("attempts", r.warmupAttempts).
			Msg("Registry warm-up failed, continuing with empty cache")
		return
	}

	r.mu.Lock()
	for _, client := range clients {
		r.clients[client.ID] = client
	}
	r.mu.Unlock()

	log.Info().Int("clients", len(clients)).Msg("Registry warmed up")
}

// lockIdentity serializes mutation per client identity. Mutations for
// different identities proceed concurrently.
func (r *Registry) lockIdentity(id string) func() {
	r.locksMu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	r.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

// GetAll returns a point-in-time snapshot of all records
func (r *Registry) GetAll() []*models.ClientRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ClientRecord, 0, len(r.clients))
	for _, client := range r.clients {
		out = append(out, client.Clone())
	}
	return out
}

// Get returns a copy of one record
func (r *Registry) Get(id string) (*models.ClientRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	return client.Clone(), true
}

// GetByHardwareAddr returns a copy of the record holding the given
// hardware address
func (r *Registry) GetByHardwareAddr(hardwareAddr string) (*models.ClientRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, client := range r.clients {
		if strings.EqualFold(client.HardwareAddr, hardwareAddr) {
			return client.Clone(), true
		}
	}
	return nil, false
}

// Upsert installs a record in the registry, emitting status events on
// liveness transitions, and writes it through to the durable store. The
// store write happens outside the identity lock; the in-memory record
// stays authoritative when the write fails.
func (r *Registry) Upsert(ctx context.Context, record *models.ClientRecord) {
	unlock := r.lockIdentity(record.ID)

	oldStatus := models.StatusOffline
	existed := false
	r.mu.Lock()
	if old, ok := r.clients[record.ID]; ok {
		oldStatus = old.Status
		existed = true
	}
	r.clients[record.ID] = record.Clone()
	r.mu.Unlock()

	unlock()

	r.emitTransition(oldStatus, record.Status, *record)
	r.persist(ctx, record, existed)
}

// UpdateStatus flips the liveness status of a known record, merging an
// optional telemetry snapshot, and refreshes last-seen when the unit is
// reported Online
func (r *Registry) UpdateStatus(ctx context.Context, id string, status models.ClientStatus, info *models.DeviceInfo) error {
	unlock := r.lockIdentity(id)

	r.mu.Lock()
	client, ok := r.clients[id]
	if !ok {
		r.mu.Unlock()
		unlock()
		return ErrClientNotFound
	}

	oldStatus := client.Status
	client.Status = status
	if status == models.StatusOnline {
		client.LastSeenAt = time.Now()
	}
	if info != nil {
		client.DeviceInfo.Merge(*info)
	}
	snapshot := *client.Clone()
	r.mu.Unlock()

	unlock()

	r.emitTransition(oldStatus, status, snapshot)
	r.persist(ctx, &snapshot, true)
	return nil
}

// Touch refreshes last-seen for any inbound message from a known
// identity, reviving an Offline record to Online
func (r *Registry) Touch(ctx context.Context, id string, info *models.DeviceInfo) error {
	return r.UpdateStatus(ctx, id, models.StatusOnline, info)
}

// AssignContent records a content assignment. The record is re-validated
// under the lock since the caller resolved content without holding it.
func (r *Registry) AssignContent(ctx context.Context, id, contentID string) error {
	unlock := r.lockIdentity(id)

	r.mu.Lock()
	client, ok := r.clients[id]
	if !ok {
		r.mu.Unlock()
		unlock()
		return ErrClientNotFound
	}
	client.AssignedContentID = contentID
	snapshot := *client.Clone()
	r.mu.Unlock()

	unlock()

	r.persist(ctx, &snapshot, true)
	return nil
}

// Remove deletes a record from the registry. The durable delete is
// written through like any other mutation; a store failure is logged and
// the in-memory removal stands, with the store retaining the row as
// history.
func (r *Registry) Remove(ctx context.Context, id string) error {
	unlock := r.lockIdentity(id)

	r.mu.Lock()
	_, ok := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()

	r.locksMu.Lock()
	delete(r.locks, id)
	r.locksMu.Unlock()

	unlock()

	if !ok {
		return ErrClientNotFound
	}

	if err := r.store.DeleteClient(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error().Err(err).Str("client_id", id).Msg("Failed to delete client from store")
	}
	return nil
}

// StartSweep evicts stale records from the in-memory cache on a fixed
// interval. Records not seen past the horizon while Offline are dropped
// from memory only; the durable store retains history.
func (r *Registry) StartSweep(ctx context.Context, interval, horizon time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.evictStale(horizon); n > 0 {
				log.Info().Int("evicted", n).Msg("Swept stale clients from cache")
			}
		}
	}
}

func (r *Registry) evictStale(horizon time.Duration) int {
	cutoff := time.Now().Add(-horizon)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, client := range r.clients {
		if client.Status == models.StatusOffline && client.LastSeenAt.Before(cutoff) {
			delete(r.clients, id)
			n++
		}
	}
	return n
}

// persist writes a record through to the durable store. Failures are
// logged, never silently dropped; in-memory state stays authoritative
// until the next successful write.
func (r *Registry) persist(ctx context.Context, record *models.ClientRecord, existed bool) {
	var err error
	if existed {
		err = r.store.UpdateClient(ctx, record)
		if errors.Is(err, storage.ErrNotFound) {
			err = r.store.CreateClient(ctx, record)
		}
	} else {
		err = r.store.CreateClient(ctx, record)
		if errors.Is(err, storage.ErrDuplicateKey) {
			err = r.store.UpdateClient(ctx, record)
		}
	}

	if err != nil {
		log.Error().
			Err(err).
			Str("client_id", record.ID).
			Msg("Failed to persist client record")
	}
}
