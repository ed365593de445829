package distributor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/protocol"
	"github.com/signage-server/signage-server-pro/internal/registry"
)

type nullStore struct{}

func (nullStore) ListClients(ctx context.Context) ([]*models.ClientRecord, error) { return nil, nil }
func (nullStore) CreateClient(ctx context.Context, client *models.ClientRecord) error {
	return nil
}
func (nullStore) UpdateClient(ctx context.Context, client *models.ClientRecord) error {
	return nil
}
func (nullStore) DeleteClient(ctx context.Context, id string) error { return nil }

type memContentStore struct {
	contents map[string]*ContentDescriptor
}

func (m *memContentStore) GetContent(ctx context.Context, contentID string) (*ContentDescriptor, error) {
	c, ok := m.contents[contentID]
	if !ok {
		return nil, ErrContentNotFound
	}
	return c, nil
}

type fakeSessionHub struct {
	mu        sync.Mutex
	connected map[string]bool
	sent      map[string][][]byte
	sendErr   map[string]error
}

func newFakeSessionHub(connected ...string) *fakeSessionHub {
	h := &fakeSessionHub{
		connected: make(map[string]bool),
		sent:      make(map[string][][]byte),
		sendErr:   make(map[string]error),
	}
	for _, id := range connected {
		h.connected[id] = true
	}
	return h
}

func (h *fakeSessionHub) SendToClient(clientID string, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.sendErr[clientID]; err != nil {
		return err
	}
	h.sent[clientID] = append(h.sent[clientID], data)
	return nil
}

func (h *fakeSessionHub) IsConnected(clientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected[clientID]
}

func seedClient(reg *registry.Registry, id, group string) {
	reg.Upsert(context.Background(), &models.ClientRecord{
		ID:           id,
		HardwareAddr: id,
		GroupName:    group,
		Status:       models.StatusOnline,
		LastSeenAt:   time.Now(),
	})
}

func newTestDistributor(hub *fakeSessionHub, reg *registry.Registry) *Distributor {
	contents := &memContentStore{contents: map[string]*ContentDescriptor{
		"layout-1": {
			ID:       "layout-1",
			Name:     "Welcome",
			Template: json.RawMessage(`{"widgets":[]}`),
		},
	}}
	return New(reg, contents, PassthroughResolver{}, hub, nil, "server-1")
}

func decodeDisplayUpdate(t *testing.T, data []byte) *protocol.DisplayUpdateMessage {
	t.Helper()
	env, err := protocol.Decode(data)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeDisplayUpdate, env.Type)

	var msg protocol.DisplayUpdateMessage
	require.NoError(t, env.DecodePayload(&msg))
	return &msg
}

func TestPushToConnectedClient(t *testing.T) {
	reg := registry.New(nullStore{}, 1)
	seedClient(reg, "c1", "")
	hub := newFakeSessionHub("c1")
	d := newTestDistributor(hub, reg)

	require.NoError(t, d.Push(context.Background(), "c1", "layout-1"))

	require.Len(t, hub.sent["c1"], 1)
	msg := decodeDisplayUpdate(t, hub.sent["c1"][0])
	assert.Equal(t, "layout-1", msg.ContentID)
	assert.Equal(t, "Welcome", msg.ContentName)
	assert.JSONEq(t, `{"widgets":[]}`, string(msg.Payload))

	record, _ := reg.Get("c1")
	assert.Equal(t, "layout-1", record.AssignedContentID)
}

func TestPushToOfflineClientRecordsAssignmentOnly(t *testing.T) {
	reg := registry.New(nullStore{}, 1)
	seedClient(reg, "c1", "")
	hub := newFakeSessionHub() // nobody connected
	d := newTestDistributor(hub, reg)

	require.NoError(t, d.Push(context.Background(), "c1", "layout-1"))

	assert.Empty(t, hub.sent["c1"])
	record, _ := reg.Get("c1")
	assert.Equal(t, "layout-1", record.AssignedContentID)
}

func TestPushUnknownContent(t *testing.T) {
	reg := registry.New(nullStore{}, 1)
	seedClient(reg, "c1", "")
	d := newTestDistributor(newFakeSessionHub("c1"), reg)

	err := d.Push(context.Background(), "c1", "no-such-layout")
	assert.ErrorIs(t, err, ErrContentNotFound)
}

func TestPushUnknownClient(t *testing.T) {
	reg := registry.New(nullStore{}, 1)
	d := newTestDistributor(newFakeSessionHub(), reg)

	err := d.Push(context.Background(), "ghost", "layout-1")
	assert.ErrorIs(t, err, registry.ErrClientNotFound)
}

func TestBroadcastSkipsFailures(t *testing.T) {
	reg := registry.New(nullStore{}, 1)
	seedClient(reg, "c1", "")
	seedClient(reg, "c2", "")
	seedClient(reg, "c3", "")

	hub := newFakeSessionHub("c1", "c2", "c3")
	hub.sendErr["c2"] = errors.New("send buffer full")
	d := newTestDistributor(hub, reg)

	sent, err := d.Broadcast(context.Background(), "layout-1")
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	assert.Len(t, hub.sent["c1"], 1)
	assert.Empty(t, hub.sent["c2"])
	assert.Len(t, hub.sent["c3"], 1)
}

func TestPushToGroup(t *testing.T) {
	reg := registry.New(nullStore{}, 1)
	seedClient(reg, "c1", "lobby")
	seedClient(reg, "c2", "lobby")
	seedClient(reg, "c3", "cafe")

	hub := newFakeSessionHub("c1", "c2", "c3")
	d := newTestDistributor(hub, reg)

	sent, err := d.PushToGroup(context.Background(), "lobby", "layout-1")
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Empty(t, hub.sent["c3"])
}

func TestSendCommand(t *testing.T) {
	reg := registry.New(nullStore{}, 1)
	seedClient(reg, "c1", "")
	hub := newFakeSessionHub("c1")
	d := newTestDistributor(hub, reg)

	params := models.Variables{"delay": "5"}
	require.NoError(t, d.SendCommand(context.Background(), "c1", "reboot", params))

	require.Len(t, hub.sent["c1"], 1)
	env, err := protocol.Decode(hub.sent["c1"][0])
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeCommand, env.Type)

	var msg protocol.CommandMessage
	require.NoError(t, env.DecodePayload(&msg))
	assert.Equal(t, "reboot", msg.Command)
}
