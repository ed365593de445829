package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/protocol"
	"github.com/signage-server/signage-server-pro/internal/registry"
	"github.com/signage-server/signage-server-pro/internal/storage"
)

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.RegistrationToken

	getErr     error
	consumeErr error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]*models.RegistrationToken)}
}

func (f *fakeTokenStore) GetRegistrationToken(ctx context.Context, value string) (*models.RegistrationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	token, ok := f.tokens[value]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *token
	return &cp, nil
}

func (f *fakeTokenStore) ConsumeRegistrationToken(ctx context.Context, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumeErr != nil {
		return f.consumeErr
	}
	token, ok := f.tokens[value]
	if !ok {
		return storage.ErrNotFound
	}
	if token.MaxUses > 0 && token.UsesCount >= token.MaxUses {
		return models.ErrTokenExhausted
	}
	token.UsesCount++
	return nil
}

type fakeHub struct {
	mu    sync.Mutex
	bound map[string]string // conn id -> client id
	sent  map[string][][]byte
	addrs map[string]string
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		bound: make(map[string]string),
		sent:  make(map[string][][]byte),
		addrs: make(map[string]string),
	}
}

func (f *fakeHub) RemoteAddr(connID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addrs[connID]
}

func (f *fakeHub) Bind(connID, clientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound[connID] = clientID
	return nil
}

func (f *fakeHub) SendTo(connID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[connID] = append(f.sent[connID], data)
	return nil
}

func (f *fakeHub) lastResponse(t *testing.T, connID string) *protocol.RegistrationResponse {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	frames := f.sent[connID]
	require.NotEmpty(t, frames, "no response sent to %s", connID)

	env, err := protocol.Decode(frames[len(frames)-1])
	require.NoError(t, err)
	require.Equal(t, protocol.TypeRegistrationResponse, env.Type)

	var resp protocol.RegistrationResponse
	require.NoError(t, env.DecodePayload(&resp))
	return &resp
}

type fakePusher struct {
	mu     sync.Mutex
	pushes map[string]string
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushes: make(map[string]string)}
}

func (f *fakePusher) Push(ctx context.Context, clientID, contentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes[clientID] = contentID
	return nil
}

type registryStore struct{}

func (registryStore) ListClients(ctx context.Context) ([]*models.ClientRecord, error) {
	return nil, nil
}
func (registryStore) CreateClient(ctx context.Context, client *models.ClientRecord) error {
	return nil
}
func (registryStore) UpdateClient(ctx context.Context, client *models.ClientRecord) error {
	return nil
}
func (registryStore) DeleteClient(ctx context.Context, id string) error { return nil }

func newTestService(t *testing.T) (*Service, *registry.Registry, *fakeTokenStore, *fakeHub, *fakePusher) {
	t.Helper()
	reg := registry.New(registryStore{}, 1)
	tokens := newFakeTokenStore()
	hub := newFakeHub()
	pusher := newFakePusher()
	svc := NewService(reg, tokens, hub, pusher, nil, "server-1")
	return svc, reg, tokens, hub, pusher
}

func registerFrame(t *testing.T, msg protocol.RegisterMessage) *protocol.Envelope {
	t.Helper()
	if msg.Type == "" {
		msg.Header = protocol.NewHeader(protocol.TypeRegister, msg.SenderID)
	}
	data, err := protocol.Encode(msg)
	require.NoError(t, err)
	env, err := protocol.Decode(data)
	require.NoError(t, err)
	return env
}

func TestRegisterWithToken(t *testing.T) {
	svc, reg, tokens, hub, _ := newTestService(t)
	tokens.tokens["tok-1"] = &models.RegistrationToken{
		Token:     "tok-1",
		GroupName: "lobby",
		Location:  "HQ first floor",
		MaxUses:   1,
	}

	hub.addrs["conn-1"] = "203.0.113.9:51123"

	env := registerFrame(t, protocol.RegisterMessage{
		HardwareAddr: "AA:BB:CC:DD:EE:FF",
		Token:        "tok-1",
		Name:         "lobby screen",
		DeviceInfo:   models.DeviceInfo{Hostname: "lobby"},
	})

	require.NoError(t, svc.HandleRegister(context.Background(), env, "conn-1"))

	resp := hub.lastResponse(t, "conn-1")
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ClientID)
	assert.Equal(t, "lobby", resp.Group)
	assert.Equal(t, "HQ first floor", resp.Location)

	record, ok := reg.Get(resp.ClientID)
	require.True(t, ok)
	assert.Equal(t, models.StatusOnline, record.Status)
	assert.Equal(t, "lobby", record.GroupName)
	assert.Equal(t, "lobby", record.DeviceInfo.Hostname)
	assert.Equal(t, "203.0.113.9:51123", record.NetworkAddr)
	assert.Equal(t, 1, tokens.tokens["tok-1"].UsesCount)
	assert.Equal(t, resp.ClientID, hub.bound["conn-1"])
}

func TestRegisterRejectsMissingHardwareAddr(t *testing.T) {
	svc, _, _, hub, _ := newTestService(t)

	env := registerFrame(t, protocol.RegisterMessage{Token: "tok-1"})
	require.NoError(t, svc.HandleRegister(context.Background(), env, "conn-1"))

	resp := hub.lastResponse(t, "conn-1")
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Reason)
}

func TestRegisterRejectsUnknownToken(t *testing.T) {
	svc, _, _, hub, _ := newTestService(t)

	env := registerFrame(t, protocol.RegisterMessage{
		HardwareAddr: "AA:BB",
		Token:        "no-such-token",
	})
	require.NoError(t, svc.HandleRegister(context.Background(), env, "conn-1"))

	assert.False(t, hub.lastResponse(t, "conn-1").Success)
}

func TestRegisterRejectsExhaustedToken(t *testing.T) {
	svc, _, tokens, hub, _ := newTestService(t)
	tokens.tokens["tok-1"] = &models.RegistrationToken{
		Token:     "tok-1",
		MaxUses:   1,
		UsesCount: 1,
	}

	env := registerFrame(t, protocol.RegisterMessage{
		HardwareAddr: "AA:BB",
		Token:        "tok-1",
	})
	require.NoError(t, svc.HandleRegister(context.Background(), env, "conn-1"))

	resp := hub.lastResponse(t, "conn-1")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Reason, "exhausted")
}

func TestRegisterRejectsExpiredToken(t *testing.T) {
	svc, _, tokens, hub, _ := newTestService(t)
	past := time.Now().Add(-time.Hour)
	tokens.tokens["tok-1"] = &models.RegistrationToken{Token: "tok-1", ExpiresAt: &past}

	env := registerFrame(t, protocol.RegisterMessage{
		HardwareAddr: "AA:BB",
		Token:        "tok-1",
	})
	require.NoError(t, svc.HandleRegister(context.Background(), env, "conn-1"))

	resp := hub.lastResponse(t, "conn-1")
	assert.False(t, resp.Success)
	assert.Equal(t, 0, tokens.tokens["tok-1"].UsesCount)
}

func TestRegisterTokenlessUnknownHardwareRejected(t *testing.T) {
	svc, _, _, hub, _ := newTestService(t)

	env := registerFrame(t, protocol.RegisterMessage{HardwareAddr: "AA:BB"})
	require.NoError(t, svc.HandleRegister(context.Background(), env, "conn-1"))

	assert.False(t, hub.lastResponse(t, "conn-1").Success)
}

func TestRegisterTokenlessKnownHardware(t *testing.T) {
	svc, reg, _, hub, pusher := newTestService(t)

	ctx := context.Background()
	reg.Upsert(ctx, &models.ClientRecord{
		ID:                "c1",
		HardwareAddr:      "AA:BB:CC:DD:EE:FF",
		Name:              "old name",
		GroupName:         "lobby",
		Location:          "HQ",
		AssignedContentID: "layout-7",
		Status:            models.StatusOffline,
		RegisteredAt:      time.Now().Add(-24 * time.Hour),
	})

	env := registerFrame(t, protocol.RegisterMessage{
		HardwareAddr: "aa:bb:cc:dd:ee:ff",
	})
	require.NoError(t, svc.HandleRegister(ctx, env, "conn-2"))

	resp := hub.lastResponse(t, "conn-2")
	require.True(t, resp.Success)
	assert.Equal(t, "c1", resp.ClientID)
	assert.Equal(t, "lobby", resp.Group)

	record, _ := reg.Get("c1")
	assert.Equal(t, models.StatusOnline, record.Status)
	assert.Equal(t, "old name", record.Name)
	assert.Equal(t, "layout-7", record.AssignedContentID)

	// Assigned content is re-pushed on reconnect
	assert.Equal(t, "layout-7", pusher.pushes["c1"])
}

func TestRegisterIdentityChangePreservesMetadata(t *testing.T) {
	svc, reg, tokens, hub, _ := newTestService(t)
	tokens.tokens["tok-1"] = &models.RegistrationToken{Token: "tok-1"}

	ctx := context.Background()
	registeredAt := time.Now().Add(-48 * time.Hour)
	reg.Upsert(ctx, &models.ClientRecord{
		ID:                "old-id",
		HardwareAddr:      "AA:BB:CC:DD:EE:FF",
		GroupName:         "lobby",
		Location:          "HQ",
		AssignedContentID: "layout-7",
		Status:            models.StatusOffline,
		RegisteredAt:      registeredAt,
	})

	// Reinstalled unit announces a fresh identity for the same hardware
	env := registerFrame(t, protocol.RegisterMessage{
		HardwareAddr: "AA:BB:CC:DD:EE:FF",
		Token:        "tok-1",
		ClientID:     "new-id",
	})
	require.NoError(t, svc.HandleRegister(ctx, env, "conn-1"))

	resp := hub.lastResponse(t, "conn-1")
	require.True(t, resp.Success)
	assert.Equal(t, "new-id", resp.ClientID)

	_, ok := reg.Get("old-id")
	assert.False(t, ok, "superseded identity should be retired")

	record, ok := reg.Get("new-id")
	require.True(t, ok)
	assert.Equal(t, "lobby", record.GroupName)
	assert.Equal(t, "HQ", record.Location)
	assert.Equal(t, "layout-7", record.AssignedContentID)
	assert.Equal(t, registeredAt.Unix(), record.RegisteredAt.Unix())
}

func TestRegisterAnswersInternalErrorOnTokenLookupFailure(t *testing.T) {
	svc, reg, tokens, hub, _ := newTestService(t)
	tokens.getErr = errors.New("database down")

	env := registerFrame(t, protocol.RegisterMessage{
		HardwareAddr: "AA:BB",
		Token:        "tok-1",
	})
	require.Error(t, svc.HandleRegister(context.Background(), env, "conn-1"))

	resp := hub.lastResponse(t, "conn-1")
	assert.False(t, resp.Success)
	assert.Equal(t, "internal error", resp.Reason)
	assert.Empty(t, reg.GetAll(), "failed exchange must not leave a record")
}

func TestRegisterAnswersInternalErrorOnConsumeFailure(t *testing.T) {
	svc, reg, tokens, hub, _ := newTestService(t)
	tokens.tokens["tok-1"] = &models.RegistrationToken{Token: "tok-1"}
	tokens.consumeErr = errors.New("database down")

	env := registerFrame(t, protocol.RegisterMessage{
		HardwareAddr: "AA:BB",
		Token:        "tok-1",
	})
	require.Error(t, svc.HandleRegister(context.Background(), env, "conn-1"))

	resp := hub.lastResponse(t, "conn-1")
	assert.False(t, resp.Success)
	assert.Equal(t, "internal error", resp.Reason)
	assert.Empty(t, reg.GetAll(), "failed exchange must not leave a record")
}

type retireFailStore struct{ registryStore }

func (retireFailStore) DeleteClient(ctx context.Context, id string) error {
	return errors.New("database down")
}

func TestRegisterIdentityChangeSurvivesStoreDeleteFailure(t *testing.T) {
	reg := registry.New(retireFailStore{}, 1)
	tokens := newFakeTokenStore()
	tokens.tokens["tok-1"] = &models.RegistrationToken{Token: "tok-1"}
	hub := newFakeHub()
	svc := NewService(reg, tokens, hub, nil, nil, "server-1")

	ctx := context.Background()
	reg.Upsert(ctx, &models.ClientRecord{
		ID:           "old-id",
		HardwareAddr: "AA:BB",
		Status:       models.StatusOffline,
	})

	env := registerFrame(t, protocol.RegisterMessage{
		HardwareAddr: "AA:BB",
		Token:        "tok-1",
		ClientID:     "new-id",
	})
	require.NoError(t, svc.HandleRegister(ctx, env, "conn-1"))

	require.True(t, hub.lastResponse(t, "conn-1").Success)
	_, ok := reg.Get("old-id")
	assert.False(t, ok, "superseded identity should be retired")
	_, ok = reg.Get("new-id")
	assert.True(t, ok, "new identity must exist despite the store failure")
}

func TestRegisterConcurrentSameHardware(t *testing.T) {
	svc, reg, tokens, _, _ := newTestService(t)
	tokens.tokens["tok-1"] = &models.RegistrationToken{Token: "tok-1"}

	envs := make([]*protocol.Envelope, 8)
	for i := range envs {
		envs[i] = registerFrame(t, protocol.RegisterMessage{
			HardwareAddr: "AA:BB:CC:DD:EE:FF",
			Token:        "tok-1",
		})
	}

	var wg sync.WaitGroup
	for i, env := range envs {
		wg.Add(1)
		go func(env *protocol.Envelope, connID string) {
			defer wg.Done()
			_ = svc.HandleRegister(context.Background(), env, connID)
		}(env, fmt.Sprintf("conn-%d", i))
	}
	wg.Wait()

	assert.Len(t, reg.GetAll(), 1, "one hardware address maps to one identity")
}

func TestRegisterIdempotentReRegistration(t *testing.T) {
	svc, reg, tokens, hub, _ := newTestService(t)
	tokens.tokens["tok-1"] = &models.RegistrationToken{Token: "tok-1"}

	env := registerFrame(t, protocol.RegisterMessage{
		HardwareAddr: "AA:BB",
		Token:        "tok-1",
		ClientID:     "c1",
	})

	ctx := context.Background()
	require.NoError(t, svc.HandleRegister(ctx, env, "conn-1"))
	require.NoError(t, svc.HandleRegister(ctx, env, "conn-2"))

	assert.True(t, hub.lastResponse(t, "conn-2").Success)
	assert.Len(t, reg.GetAll(), 1)
}
