package vpn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yllada/vpn-settings/common"
	"github.com/yllada/vpn-settings/connman"
	"github.com/yllada/vpn-settings/properties"
	"github.com/yllada/vpn-settings/provisioning"
	"github.com/yllada/vpn-settings/storage"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeProxy struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	closed      bool
}

func (p *fakeProxy) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connects++
	return nil
}

func (p *fakeProxy) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects++
	return nil
}

func (p *fakeProxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakeProxy) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeManager struct {
	mu         sync.Mutex
	signals    chan connman.Signal
	entries    []connman.Entry
	listErr    error
	createErr  error
	createPath string
	createGate chan struct{}
	created    []properties.Map
	calls      []string
	proxies    map[string]*fakeProxy
}

func newFakeManager(entries ...connman.Entry) *fakeManager {
	return &fakeManager{
		signals:    make(chan connman.Signal, 16),
		entries:    entries,
		createPath: "/net/connman/vpn/connection/created",
		proxies:    make(map[string]*fakeProxy),
	}
}

func (f *fakeManager) GetConnections(ctx context.Context) ([]connman.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GetConnections")
	return append([]connman.Entry(nil), f.entries...), f.listErr
}

func (f *fakeManager) Create(ctx context.Context, props properties.Map) (string, error) {
	f.mu.Lock()
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "Create")
	f.created = append(f.created, props)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createPath, nil
}

func (f *fakeManager) Remove(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "Remove "+path)
	return nil
}

func (f *fakeManager) Connection(path string) (ConnectionProxy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakeProxy{}
	f.proxies[path] = p
	return p, nil
}

func (f *fakeManager) Signals() <-chan connman.Signal { return f.signals }

func (f *fakeManager) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeManager) proxy(path string) *fakeProxy {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proxies[path]
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type harness struct {
	model       *Model
	manager     *fakeManager
	tokens      *storage.TokenRepository
	credentials *storage.CredentialRepository
	events      *recorder
	tokenDir    string
	credDir     string
}

func newHarness(t *testing.T, fm *fakeManager, existingTokens ...string) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		manager:  fm,
		tokenDir: filepath.Join(root, "vpn"),
		credDir:  filepath.Join(root, "vpn-data"),
		events:   &recorder{},
	}
	require.NoError(t, os.MkdirAll(h.tokenDir, 0755))
	for _, tok := range existingTokens {
		require.NoError(t, os.WriteFile(filepath.Join(h.tokenDir, tok), nil, 0600))
	}

	logger := hclog.NewNullLogger()
	h.tokens = storage.NewTokenRepository(h.tokenDir, logger)
	h.credentials = storage.NewCredentialRepository(h.credDir, logger)
	h.model = NewModel(Options{
		Manager:     fm,
		Tokens:      h.tokens,
		Credentials: h.credentials,
		Importer:    provisioning.NewImporter(filepath.Join(root, "prov"), logger),
		Logger:      logger,
	})
	h.model.Subscribe(h.events.record)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		h.model.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-runDone
	})

	require.Eventually(t, h.model.Populated, waitFor, tick)
	return h
}

func (h *harness) send(t *testing.T, sig connman.Signal) {
	t.Helper()
	h.manager.signals <- sig
	// a round trip through the model goroutine drains earlier signals
	require.Eventually(t, func() bool {
		return len(h.manager.signals) == 0
	}, waitFor, tick)
	h.model.Count()
}

func entry(name, state string) connman.Entry {
	return connman.Entry{
		Path: "/net/connman/vpn/connection/" + name,
		Properties: properties.Map{
			"Name":   properties.String(name),
			"Host":   properties.String(name + ".example.com"),
			"Type":   properties.String("openvpn"),
			"State":  properties.String(state),
			"Domain": properties.String(common.DefaultDomain),
		},
	}
}

func path(name string) string { return "/net/connman/vpn/connection/" + name }

func names(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func TestModel_InitialFetch(t *testing.T) {
	fm := newFakeManager(entry("office", "idle"), entry("home", "ready"))
	h := newHarness(t, fm, "office", "stale")

	records := h.model.Connections()
	require.Len(t, records, 2)
	assert.Equal(t, []string{"home", "office"}, names(records))

	office, ok := h.model.Connection(path("office"))
	require.True(t, ok)
	assert.True(t, office.AutomaticUpDown)
	assert.Equal(t, StateIdle, office.State)
	assert.Equal(t, TypeOpenVPN, office.Type)
	assert.Empty(t, office.Domain, "default domain is not surfaced")

	assert.True(t, h.tokens.Exists("office"))
	assert.False(t, h.tokens.Exists("stale"))
	assert.NoFileExists(t, filepath.Join(h.tokenDir, "stale"))

	assert.Equal(t, StateReady, h.model.BestState())
	assert.NotNil(t, fm.proxy(path("home")))
}

func TestModel_FetchFailureStillPopulates(t *testing.T) {
	fm := newFakeManager()
	fm.listErr = errors.New("service unknown")
	h := newHarness(t, fm, "kept")

	assert.Zero(t, h.model.Count())
	assert.True(t, h.tokens.Exists("kept"), "tokens are not pruned without a list")
}

func TestModel_SortStability(t *testing.T) {
	h := newHarness(t, newFakeManager())

	for _, name := range []string{"Bravo", "Alpha", "Charlie"} {
		h.send(t, connman.ConnectionAdded{
			Path:       path(name),
			Properties: properties.Map{"Name": properties.String(name)},
		})
	}
	assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, names(h.model.Connections()))

	h.send(t, connman.PropertyChanged{Path: path("Bravo"), Name: "Name", Value: properties.String("Delta")})
	assert.Equal(t, []string{"Alpha", "Charlie", "Delta"}, names(h.model.Connections()))

	assert.Contains(t, h.events.snapshot(), ConnectionMoved{Path: path("Bravo"), From: 1, To: 2})
}

func TestModel_NewRecordDefaults(t *testing.T) {
	h := newHarness(t, newFakeManager())
	h.send(t, connman.ConnectionAdded{Path: path("x"), Properties: properties.Map{"Name": properties.String("x")}})

	rec, ok := h.model.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, path("x"), rec.Path)
	assert.Equal(t, TypeOpenVPN, rec.Type)
	assert.Equal(t, StateDisconnect, rec.State)
}

func TestModel_BestStateOnRemoval(t *testing.T) {
	h := newHarness(t, newFakeManager(entry("a", "ready"), entry("b", "failure")))
	require.Equal(t, StateReady, h.model.BestState())

	h.send(t, connman.ConnectionRemoved{Path: path("a")})

	assert.Equal(t, StateFailure, h.model.BestState())
	assert.Equal(t, 1, h.model.Count())
	assert.True(t, h.manager.proxy(path("a")).isClosed())
	assert.Contains(t, h.events.snapshot(), BestStateChanged{State: StateFailure})
	assert.Contains(t, h.events.snapshot(), ConnectionRemoved{Path: path("a"), Index: 0})
}

func TestModel_StateChange(t *testing.T) {
	h := newHarness(t, newFakeManager(entry("a", "idle")))

	h.send(t, connman.PropertyChanged{Path: path("a"), Name: "State", Value: properties.String("configuration")})

	assert.Equal(t, StateConfiguration, h.model.BestState())
	events := h.events.snapshot()
	assert.Contains(t, events, ConnectionStateChanged{Path: path("a"), State: StateConfiguration})
	assert.Contains(t, events, BestStateChanged{State: StateConfiguration})

	// Disconnect ranks with Idle
	h.send(t, connman.PropertyChanged{Path: path("a"), Name: "State", Value: properties.String("disconnect")})
	assert.Equal(t, StateIdle, h.model.BestState())
}

func TestModel_ProviderPropertiesMerge(t *testing.T) {
	e := entry("a", "idle")
	e.Properties["OpenVPN.Port"] = properties.String("1194")
	h := newHarness(t, newFakeManager(e))

	h.send(t, connman.PropertyChanged{Path: path("a"), Name: "OpenVPN.Proto", Value: properties.String("udp")})

	rec, ok := h.model.Connection(path("a"))
	require.True(t, ok)
	assert.Equal(t, "1194", rec.ProviderProperties.Str("OpenVPN.Port"))
	assert.Equal(t, "udp", rec.ProviderProperties.Str("OpenVPN.Proto"))
}

func TestModel_ServiceRestart(t *testing.T) {
	fm := newFakeManager(entry("a", "ready"))
	h := newHarness(t, fm)
	proxy := fm.proxy(path("a"))

	h.send(t, connman.ServiceAvailability{Available: false})

	assert.Zero(t, h.model.Count())
	assert.False(t, h.model.Populated())
	assert.Equal(t, StateIdle, h.model.BestState())
	assert.True(t, proxy.isClosed())
	assert.Contains(t, h.events.snapshot(), CollectionReset{})

	fm.mu.Lock()
	fm.entries = []connman.Entry{entry("b", "idle")}
	fm.mu.Unlock()

	h.send(t, connman.ServiceAvailability{Available: true})
	require.Eventually(t, h.model.Populated, waitFor, tick)
	assert.Equal(t, []string{"b"}, names(h.model.Connections()))
}

func TestModel_ModifyOrdering(t *testing.T) {
	fm := newFakeManager(entry("a", "idle"))
	fm.createPath = path("a")
	fm.createGate = make(chan struct{})
	h := newHarness(t, fm)

	settings := h.model.Settings(path("a"))
	settings[properties.KeyName] = properties.String("renamed")
	settings[properties.KeyAutomaticUpDown] = properties.Bool(true)
	settings[properties.KeyStoreCredentials] = properties.Bool(true)
	require.NoError(t, h.model.Modify(path("a"), settings))

	require.Eventually(t, func() bool {
		return len(fm.callLog()) == 2
	}, waitFor, tick)
	assert.Equal(t, []string{"GetConnections", "Remove " + path("a")}, fm.callLog())
	assert.False(t, h.tokens.Exists("a"), "no flag before the recreate succeeds")
	assert.False(t, h.credentials.Exists("a"))

	close(fm.createGate)
	require.NoError(t, h.model.WaitIdle(context.Background()))

	assert.Equal(t, []string{"GetConnections", "Remove " + path("a"), "Create"}, fm.callLog())
	assert.True(t, h.tokens.Exists("a"))
	assert.True(t, h.credentials.Exists("a"))
	assert.Empty(t, h.credentials.Read("a"))

	created := fm.created[0]
	assert.Equal(t, "renamed", created.Str("Name"))
	assert.Equal(t, common.DefaultDomain, created.Str("Domain"))
	assert.Equal(t, "openvpn", created.Str("Type"))
	for _, key := range []string{"Path", "State", "Index", "Immutable", "AutomaticUpDown", "StoreCredentials"} {
		assert.NotContains(t, created, key)
	}

	rec, ok := h.model.Connection(path("a"))
	require.True(t, ok)
	assert.True(t, rec.AutomaticUpDown)
	assert.True(t, rec.StoreCredentials)
}

func TestModel_ModifyFailureKeepsFlags(t *testing.T) {
	fm := newFakeManager(entry("a", "idle"))
	fm.createErr = errors.New("rejected")
	h := newHarness(t, fm, "a")

	settings := h.model.Settings(path("a"))
	settings[properties.KeyAutomaticUpDown] = properties.Bool(false)
	settings[properties.KeyStoreCredentials] = properties.Bool(true)
	require.NoError(t, h.model.Modify(path("a"), settings))
	require.NoError(t, h.model.WaitIdle(context.Background()))

	assert.True(t, h.tokens.Exists("a"))
	assert.False(t, h.credentials.Exists("a"))
}

func TestModel_Create(t *testing.T) {
	fm := newFakeManager()
	h := newHarness(t, fm)

	err := h.model.Create(properties.Map{"path": properties.String("/x")})
	assert.ErrorIs(t, err, ErrPreexistingIdentity)

	err = h.model.Create(properties.Map{"name": properties.String("x")})
	assert.ErrorIs(t, err, ErrMissingProperties)

	require.NoError(t, h.model.Create(properties.Map{
		"name": properties.String("x"),
		"host": properties.String("vpn.example.com"),
		"type": properties.Number(int64(TypeOpenConnect)),
	}))
	require.NoError(t, h.model.WaitIdle(context.Background()))

	require.Len(t, fm.created, 1)
	assert.Equal(t, common.DefaultDomain, fm.created[0].Str("Domain"))
	assert.Equal(t, "openconnect", fm.created[0].Str("Type"))
	assert.Zero(t, h.model.Count(), "the record arrives with the add notification")
}

func TestModel_ActivateDeactivateDelete(t *testing.T) {
	fm := newFakeManager(entry("a", "idle"))
	h := newHarness(t, fm)

	require.NoError(t, h.model.Activate(path("a")))
	require.NoError(t, h.model.Deactivate(path("a")))
	require.NoError(t, h.model.Delete(path("a")))
	require.NoError(t, h.model.WaitIdle(context.Background()))

	p := fm.proxy(path("a"))
	p.mu.Lock()
	assert.Equal(t, 1, p.connects)
	assert.Equal(t, 1, p.disconnects)
	p.mu.Unlock()
	assert.Contains(t, fm.callLog(), "Remove "+path("a"))

	assert.ErrorIs(t, h.model.Activate(path("missing")), ErrUnknownConnection)
	assert.ErrorIs(t, h.model.Delete(path("missing")), ErrUnknownConnection)
	assert.ErrorIs(t, h.model.Modify(path("missing"), properties.Map{}), ErrUnknownConnection)
}

func TestModel_Automatic(t *testing.T) {
	h := newHarness(t, newFakeManager(entry("a", "idle")))

	assert.False(t, h.model.Automatic(path("a")))
	require.NoError(t, h.model.SetAutomatic(path("a"), true))
	assert.True(t, h.model.Automatic(path("a")))
	assert.FileExists(t, filepath.Join(h.tokenDir, "a"))

	rec, _ := h.model.Connection(path("a"))
	assert.True(t, rec.AutomaticUpDown)

	require.NoError(t, h.model.SetAutomatic(path("a"), false))
	assert.False(t, h.model.Automatic(path("a")))
	assert.NoFileExists(t, filepath.Join(h.tokenDir, "a"))

	assert.ErrorIs(t, h.model.SetAutomatic(path("missing"), true), ErrUnknownConnection)
	assert.False(t, h.model.Automatic(path("missing")))
}

func TestModel_Credentials(t *testing.T) {
	h := newHarness(t, newFakeManager(entry("a", "idle")))
	p := path("a")

	assert.False(t, h.model.CredentialsEnabled(p))
	assert.Empty(t, h.model.Credentials(p))

	creds := map[string]string{"OpenVPN.Username": "alice", "OpenVPN.Password": "pw"}
	require.NoError(t, h.model.SetCredentials(p, creds))
	assert.True(t, h.model.CredentialsEnabled(p))
	assert.Equal(t, creds, h.model.Credentials(p))

	// another process drops the blob; the record heals on the next query
	require.NoError(t, os.Remove(filepath.Join(h.credDir, "a")))
	settings := h.model.Settings(p)
	stored, _ := settings[properties.KeyStoreCredentials].AsBool()
	assert.False(t, stored)

	require.NoError(t, h.model.SetCredentials(p, creds))
	require.NoError(t, h.model.DisableCredentials(p))
	assert.False(t, h.model.CredentialsEnabled(p))
	assert.NoFileExists(t, filepath.Join(h.credDir, "a"))

	assert.Empty(t, h.model.Settings(path("missing")))
	assert.False(t, h.model.CredentialsEnabled(path("missing")))
}

func TestModel_ImportProvisioningFile(t *testing.T) {
	h := newHarness(t, newFakeManager())

	profile := filepath.Join(t.TempDir(), "office.ovpn")
	require.NoError(t, os.WriteFile(profile, []byte("remote vpn.example.com 1194\n"), 0600))

	out := h.model.ImportProvisioningFile(profile, TypeOpenVPN)
	assert.Equal(t, "vpn.example.com", out.Str("Host"))

	assert.Empty(t, h.model.ImportProvisioningFile(profile, TypeVPNC))
}

func TestModel_Stopped(t *testing.T) {
	m := NewModel(Options{
		Manager:     newFakeManager(),
		Tokens:      storage.NewTokenRepository(t.TempDir(), hclog.NewNullLogger()),
		Credentials: storage.NewCredentialRepository(t.TempDir(), hclog.NewNullLogger()),
		Logger:      hclog.NewNullLogger(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Run(ctx), context.Canceled)

	assert.ErrorIs(t, m.SetAutomatic(path("a"), true), ErrStopped)
	assert.Zero(t, m.Count())
	assert.Error(t, m.Run(context.Background()), "Run only starts once")
}
