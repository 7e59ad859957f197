package vpn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/yllada/vpn-settings/common"
	"github.com/yllada/vpn-settings/connman"
	"github.com/yllada/vpn-settings/properties"
	"github.com/yllada/vpn-settings/provisioning"
	"github.com/yllada/vpn-settings/storage"
)

// Common errors - re-exported from common package for convenience.
var (
	ErrUnknownConnection   = common.ErrUnknownConnection
	ErrMissingProperties   = common.ErrMissingProperties
	ErrPreexistingIdentity = common.ErrPreexistingIdentity
	ErrUnsupportedType     = common.ErrUnsupportedType

	// ErrStopped is returned by operations issued after Run has returned.
	ErrStopped = errors.New("vpn model stopped")
)

// strippedOnModify are presentation keys connman does not accept on Create.
var strippedOnModify = []string{
	properties.KeyPath,
	properties.KeyState,
	properties.KeyIndex,
	properties.KeyImmutable,
	properties.KeyAutomaticUpDown,
	properties.KeyStoreCredentials,
}

// Options configures a Model.
type Options struct {
	Manager     Manager
	Tokens      *storage.TokenRepository
	Credentials *storage.CredentialRepository
	Importer    *provisioning.Importer
	Logger      hclog.Logger
}

// Model keeps a name-ordered collection of connection records in sync with
// the connman VPN daemon and persists the auto-connect and credential
// flags the daemon cannot store.
//
// All state is owned by the goroutine running Run. Public methods hand a
// closure to that goroutine and wait for it, so they block until Run is
// started and return ErrStopped once it has returned.
type Model struct {
	manager     Manager
	tokens      *storage.TokenRepository
	credentials *storage.CredentialRepository
	importer    *provisioning.Importer
	logger      hclog.Logger

	tasks   chan func()
	done    chan struct{}
	runCtx  context.Context
	calls   sync.WaitGroup
	runOnce sync.Once

	subMu       sync.Mutex
	subscribers map[uuid.UUID]func(Event)

	// owned by the Run goroutine
	records   []*Record
	proxies   map[string]ConnectionProxy
	pending   map[uuid.UUID]string
	idle      []chan struct{}
	best      ConnectionState
	populated bool
}

// NewModel creates a model. Call Run to start it.
func NewModel(opts Options) *Model {
	return &Model{
		manager:     opts.Manager,
		tokens:      opts.Tokens,
		credentials: opts.Credentials,
		importer:    opts.Importer,
		logger:      common.LoggerOr(opts.Logger, "model"),
		tasks:       make(chan func()),
		done:        make(chan struct{}),
		subscribers: make(map[uuid.UUID]func(Event)),
		proxies:     make(map[string]ConnectionProxy),
		pending:     make(map[uuid.UUID]string),
		best:        StateIdle,
	}
}

// Run fetches the connection list and then processes daemon signals and
// model operations until ctx is cancelled. It may only be called once.
func (m *Model) Run(ctx context.Context) error {
	err := fmt.Errorf("vpn model already running")
	m.runOnce.Do(func() {
		err = m.run(ctx)
	})
	return err
}

func (m *Model) run(ctx context.Context) error {
	m.runCtx = ctx
	signals := m.manager.Signals()

	m.refresh()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case task := <-m.tasks:
			task()
		case sig, ok := <-signals:
			if !ok {
				m.logger.Warn("connman signal channel closed")
				signals = nil
				continue
			}
			m.handleSignal(sig)
		}
	}
}

func (m *Model) shutdown() {
	close(m.done)
	m.calls.Wait()
	for path, proxy := range m.proxies {
		if err := proxy.Close(); err != nil {
			m.logger.Debug("error closing connection proxy", "path", path, "error", err)
		}
	}
	m.proxies = map[string]ConnectionProxy{}
}

// do runs fn on the model goroutine and waits for it to finish.
func (m *Model) do(fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case m.tasks <- task:
	case <-m.done:
		return ErrStopped
	}
	<-finished
	return nil
}

// post hands a completion to the model goroutine without waiting. It is
// dropped if the model has stopped.
func (m *Model) post(fn func()) {
	select {
	case m.tasks <- fn:
	case <-m.done:
	}
}

// spawn runs a remote call on its own goroutine. The returned completion,
// if any, runs back on the model goroutine.
func (m *Model) spawn(desc string, call func(ctx context.Context) func()) {
	id := uuid.New()
	m.pending[id] = desc
	m.calls.Add(1)

	go func() {
		defer m.calls.Done()
		complete := call(m.runCtx)
		m.post(func() {
			delete(m.pending, id)
			if complete != nil {
				complete()
			}
			if len(m.pending) == 0 {
				for _, ch := range m.idle {
					close(ch)
				}
				m.idle = nil
			}
		})
	}()
}

// Subscribe registers fn to receive events. fn runs on the model goroutine
// and must not block or call back into the model. The returned function
// cancels the subscription.
func (m *Model) Subscribe(fn func(Event)) (cancel func()) {
	id := uuid.New()
	m.subMu.Lock()
	m.subscribers[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subscribers, id)
		m.subMu.Unlock()
	}
}

func (m *Model) emit(e Event) {
	m.subMu.Lock()
	subs := make([]func(Event), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// WaitIdle blocks until no remote call issued by the model is in flight.
func (m *Model) WaitIdle(ctx context.Context) error {
	ch := make(chan struct{})
	err := m.do(func() {
		if len(m.pending) == 0 {
			close(ch)
			return
		}
		m.idle = append(m.idle, ch)
	})
	if err != nil {
		return err
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return ErrStopped
	}
}

func (m *Model) handleSignal(sig connman.Signal) {
	switch s := sig.(type) {
	case connman.ConnectionAdded:
		rec := m.find(s.Path)
		if rec == nil {
			m.logger.Info("adding connection", "path", s.Path)
			rec = m.newConnection(s.Path)
		}
		m.update(rec, m.withFlags(s.Path, properties.ToPresentation(s.Properties)))

	case connman.ConnectionRemoved:
		if rec := m.find(s.Path); rec != nil {
			m.logger.Info("removing obsolete connection", "path", s.Path)
			m.removeRecord(rec)
		} else {
			m.logger.Warn("unable to remove unknown connection", "path", s.Path)
		}
		m.closeProxy(s.Path)
		m.recomputeBestState()

	case connman.PropertyChanged:
		rec := m.find(s.Path)
		if rec == nil {
			m.logger.Debug("property change for unknown connection", "path", s.Path, "name", s.Name)
			return
		}
		m.update(rec, properties.ToPresentation(properties.Map{s.Name: s.Value}))

	case connman.ServiceAvailability:
		if s.Available {
			m.logger.Info("connman vpn service registered")
			m.refresh()
		} else {
			m.logger.Warn("connman vpn service unregistered")
			m.reset()
		}
	}
}

// withFlags adds the repository-backed flags for path to pres.
func (m *Model) withFlags(path string, pres properties.Map) properties.Map {
	pres[properties.KeyAutomaticUpDown] = properties.Bool(m.tokens.Exists(storage.TokenForPath(path)))
	pres[properties.KeyStoreCredentials] = properties.Bool(m.credentials.Exists(storage.LocationForPath(path)))
	return pres
}

func (m *Model) refresh() {
	m.spawn("GetConnections", func(ctx context.Context) func() {
		entries, err := m.manager.GetConnections(ctx)
		return func() {
			if err != nil {
				m.logger.Warn("unable to fetch connman VPN connections", "error", err)
			} else {
				tokens := make([]string, 0, len(entries))
				for _, e := range entries {
					rec := m.find(e.Path)
					if rec == nil {
						rec = m.newConnection(e.Path)
					}
					m.update(rec, m.withFlags(e.Path, properties.ToPresentation(e.Properties)))
					tokens = append(tokens, storage.TokenForPath(e.Path))
				}
				m.tokens.PruneExcept(tokens)
			}
			m.setPopulated(true)
		}
	})
}

func (m *Model) reset() {
	for path := range m.proxies {
		m.closeProxy(path)
	}
	m.records = nil
	m.emit(CollectionReset{})
	m.setPopulated(false)
	m.recomputeBestState()
}

func (m *Model) setPopulated(populated bool) {
	if m.populated == populated {
		return
	}
	m.populated = populated
	m.emit(PopulatedChanged{Populated: populated})
}

func (m *Model) find(path string) *Record {
	for _, r := range m.records {
		if r.Path == path {
			return r
		}
	}
	return nil
}

func (m *Model) indexOf(rec *Record) int {
	for i, r := range m.records {
		if r == rec {
			return i
		}
	}
	return -1
}

// newConnection appends a default record for path and opens its proxy.
func (m *Model) newConnection(path string) *Record {
	rec := newRecord(path)
	m.records = append(m.records, rec)
	m.emit(ConnectionAdded{Path: path, Index: len(m.records) - 1})

	proxy, err := m.manager.Connection(path)
	if err != nil {
		m.logger.Warn("unable to create connection proxy", "path", path, "error", err)
	} else {
		m.proxies[path] = proxy
	}
	return rec
}

func (m *Model) removeRecord(rec *Record) {
	idx := m.indexOf(rec)
	if idx < 0 {
		return
	}
	m.records = append(m.records[:idx], m.records[idx+1:]...)
	m.emit(ConnectionRemoved{Path: rec.Path, Index: idx})
}

func (m *Model) closeProxy(path string) {
	proxy, ok := m.proxies[path]
	if !ok {
		return
	}
	delete(m.proxies, path)
	if err := proxy.Close(); err != nil {
		m.logger.Debug("error closing connection proxy", "path", path, "error", err)
	}
}

// update merges a presentation map into rec and keeps the collection
// ordered and the best state current.
func (m *Model) update(rec *Record, pres properties.Map) {
	if v, ok := pres[properties.KeyProviderProperties]; ok {
		if updated, ok := v.AsMap(); ok {
			merged := rec.ProviderProperties.Clone()
			if merged == nil {
				merged = properties.Map{}
			}
			for k, pv := range updated {
				merged[k] = pv
			}
			pres[properties.KeyProviderProperties] = properties.MapValue(merged)
		}
	}
	if pres.Str(properties.KeyDomain) == common.DefaultDomain {
		delete(pres, properties.KeyDomain)
	}

	oldState := rec.State
	if !rec.apply(pres) {
		return
	}
	m.emit(ConnectionChanged{Path: rec.Path, Index: m.indexOf(rec)})

	if rec.State != oldState {
		m.emit(ConnectionStateChanged{Path: rec.Path, State: rec.State})
		m.recomputeBestState()
	}

	m.relocate(rec)
}

// relocate moves rec to the first position whose name sorts after it.
func (m *Model) relocate(rec *Record) {
	n := len(m.records)
	if n < 2 {
		return
	}

	index := 0
	for ; index < n; index++ {
		if m.records[index].Name > rec.Name {
			break
		}
	}
	current := m.indexOf(rec)
	if index == current || index-1 == current {
		return
	}

	to := index
	if current < index {
		to = index - 1
	}
	m.records = append(m.records[:current], m.records[current+1:]...)
	m.records = append(m.records[:to], append([]*Record{rec}, m.records[to:]...)...)
	m.emit(ConnectionMoved{Path: rec.Path, From: current, To: to})
}

func (m *Model) recomputeBestState() {
	best := StateIdle
	for _, r := range m.records {
		if r.State.Rank() > best.Rank() {
			best = r.State
		}
	}
	if best != m.best {
		m.best = best
		m.emit(BestStateChanged{State: best})
	}
}

// reconcileCredentials syncs rec's StoreCredentials flag with the
// filesystem and returns the live value.
func (m *Model) reconcileCredentials(rec *Record) bool {
	enabled := m.credentials.Exists(storage.LocationForPath(rec.Path))
	if rec.StoreCredentials != enabled {
		rec.StoreCredentials = enabled
		m.emit(ConnectionChanged{Path: rec.Path, Index: m.indexOf(rec)})
	}
	return enabled
}

func (m *Model) unknown(op, path string) error {
	m.logger.Warn("unknown VPN connection", "operation", op, "path", path)
	return fmt.Errorf("%w: %s", ErrUnknownConnection, path)
}
