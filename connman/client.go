// Package connman talks to the connman VPN daemon over D-Bus. It exposes
// the manager object (list, create, remove) and per-connection proxies,
// and turns daemon signals into typed Go values on a single channel.
package connman

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/yllada/vpn-settings/common"
	"github.com/yllada/vpn-settings/properties"
)

const (
	dbusService   = "org.freedesktop.DBus"
	dbusPath      = "/org/freedesktop/DBus"
	dbusInterface = "org.freedesktop.DBus"

	memberConnectionAdded   = "ConnectionAdded"
	memberConnectionRemoved = "ConnectionRemoved"
	memberPropertyChanged   = "PropertyChanged"
	memberNameOwnerChanged  = "NameOwnerChanged"
)

// Entry is one element of the GetConnections reply.
type Entry struct {
	Path       string
	Properties properties.Map
}

// Client is a proxy for the connman VPN manager object.
type Client struct {
	conn    *dbus.Conn
	owned   bool
	service string
	manager dbus.BusObject
	logger  hclog.Logger

	raw     chan *dbus.Signal
	signals chan Signal
	stop    chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
}

// Dial connects to the named bus ("system" or "session") and returns a
// client for service.
func Dial(bus, service string, logger hclog.Logger) (*Client, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	switch bus {
	case "", "system":
		conn, err = dbus.ConnectSystemBus()
	case "session":
		conn, err = dbus.ConnectSessionBus()
	default:
		return nil, fmt.Errorf("unknown bus %q", bus)
	}
	if err != nil {
		return nil, common.WrapError(err, "failed to connect to D-Bus")
	}

	c, err := NewClient(conn, service, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// NewClient subscribes to manager and bus-name signals on an existing
// connection. The connection stays open when the client is closed.
func NewClient(conn *dbus.Conn, service string, logger hclog.Logger) (*Client, error) {
	if service == "" {
		service = common.ConnmanService
	}
	c := &Client{
		conn:    conn,
		service: service,
		manager: conn.Object(service, dbus.ObjectPath(common.ConnmanManagerPath)),
		logger:  common.LoggerOr(logger, "connman"),
		raw:     make(chan *dbus.Signal, 256),
		signals: make(chan Signal, 256),
		stop:    make(chan struct{}),
	}

	conn.Signal(c.raw)

	added := make([][]dbus.MatchOption, 0, 3)
	for _, opts := range c.managerMatches() {
		if err := conn.AddMatchSignal(opts...); err != nil {
			for _, prev := range added {
				_ = conn.RemoveMatchSignal(prev...)
			}
			conn.RemoveSignal(c.raw)
			return nil, common.WrapError(err, "failed to subscribe to connman signals")
		}
		added = append(added, opts)
	}

	c.wg.Add(1)
	go c.pump()
	return c, nil
}

func (c *Client) managerMatches() [][]dbus.MatchOption {
	return [][]dbus.MatchOption{
		{
			dbus.WithMatchObjectPath(dbus.ObjectPath(common.ConnmanManagerPath)),
			dbus.WithMatchInterface(common.ConnmanManagerInterface),
			dbus.WithMatchMember(memberConnectionAdded),
		},
		{
			dbus.WithMatchObjectPath(dbus.ObjectPath(common.ConnmanManagerPath)),
			dbus.WithMatchInterface(common.ConnmanManagerInterface),
			dbus.WithMatchMember(memberConnectionRemoved),
		},
		{
			dbus.WithMatchSender(dbusService),
			dbus.WithMatchObjectPath(dbusPath),
			dbus.WithMatchInterface(dbusInterface),
			dbus.WithMatchMember(memberNameOwnerChanged),
			dbus.WithMatchArg(0, c.service),
		},
	}
}

// Signals returns the channel of translated daemon signals. It is closed
// when the client is closed.
func (c *Client) Signals() <-chan Signal {
	return c.signals
}

func (c *Client) pump() {
	defer c.wg.Done()
	defer close(c.signals)

	for {
		select {
		case <-c.stop:
			return
		case sig, ok := <-c.raw:
			if !ok {
				return
			}
			if sig == nil {
				continue
			}
			out, ok := c.translate(sig)
			if !ok {
				continue
			}
			select {
			case c.signals <- out:
			case <-c.stop:
				return
			}
		}
	}
}

func (c *Client) translate(sig *dbus.Signal) (Signal, bool) {
	switch sig.Name {
	case common.ConnmanManagerInterface + "." + memberConnectionAdded:
		if len(sig.Body) < 2 {
			return nil, false
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return nil, false
		}
		props, _ := sig.Body[1].(map[string]dbus.Variant)
		return ConnectionAdded{Path: string(path), Properties: DecodeMap(props)}, true

	case common.ConnmanManagerInterface + "." + memberConnectionRemoved:
		if len(sig.Body) < 1 {
			return nil, false
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return nil, false
		}
		return ConnectionRemoved{Path: string(path)}, true

	case common.ConnmanConnectionInterface + "." + memberPropertyChanged:
		if len(sig.Body) < 2 {
			return nil, false
		}
		name, ok := sig.Body[0].(string)
		if !ok {
			return nil, false
		}
		return PropertyChanged{Path: string(sig.Path), Name: name, Value: Decode(sig.Body[1])}, true

	case dbusInterface + "." + memberNameOwnerChanged:
		if len(sig.Body) < 3 {
			return nil, false
		}
		name, _ := sig.Body[0].(string)
		if name != c.service {
			return nil, false
		}
		owner, _ := sig.Body[2].(string)
		c.logger.Debug("service owner changed", "service", name, "owner", owner)
		return ServiceAvailability{Available: owner != ""}, true
	}
	return nil, false
}

// GetConnections lists the daemon's connections with their wire properties.
func (c *Client) GetConnections(ctx context.Context) ([]Entry, error) {
	var reply []struct {
		Path       dbus.ObjectPath
		Properties map[string]dbus.Variant
	}
	call := c.manager.CallWithContext(ctx, common.ConnmanManagerInterface+".GetConnections", 0)
	if call.Err != nil {
		return nil, common.WrapError(call.Err, "GetConnections failed")
	}
	if err := call.Store(&reply); err != nil {
		return nil, common.WrapError(err, "unexpected GetConnections reply")
	}

	entries := make([]Entry, len(reply))
	for i, r := range reply {
		entries[i] = Entry{Path: string(r.Path), Properties: DecodeMap(r.Properties)}
	}
	return entries, nil
}

// Create asks the daemon to create a connection and returns its path.
func (c *Client) Create(ctx context.Context, props properties.Map) (string, error) {
	var path dbus.ObjectPath
	call := c.manager.CallWithContext(ctx, common.ConnmanManagerInterface+".Create", 0, EncodeMap(props))
	if call.Err != nil {
		return "", common.WrapError(call.Err, "Create failed")
	}
	if err := call.Store(&path); err != nil {
		return "", common.WrapError(err, "unexpected Create reply")
	}
	return string(path), nil
}

// Remove deletes the connection at path.
func (c *Client) Remove(ctx context.Context, path string) error {
	call := c.manager.CallWithContext(ctx, common.ConnmanManagerInterface+".Remove", 0, dbus.ObjectPath(path))
	if call.Err != nil {
		return common.WrapError(call.Err, "Remove failed")
	}
	return nil
}

// Connection returns a proxy for the connection at path and subscribes to
// its property changes until the proxy is closed.
func (c *Client) Connection(path string) (*Connection, error) {
	op := dbus.ObjectPath(path)
	if !op.IsValid() {
		return nil, fmt.Errorf("%w: invalid object path %q", common.ErrUnknownConnection, path)
	}
	proxy := &Connection{
		client: c,
		path:   op,
		obj:    c.conn.Object(c.service, op),
	}
	if err := c.conn.AddMatchSignal(proxy.matchOptions()...); err != nil {
		return nil, common.WrapError(err, "failed to subscribe to connection signals")
	}
	return proxy, nil
}

// Close unsubscribes from all manager signals and stops the signal pump.
// The bus connection is closed if the client opened it.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for _, opts := range c.managerMatches() {
			_ = c.conn.RemoveMatchSignal(opts...)
		}
		c.conn.RemoveSignal(c.raw)
		close(c.stop)
		c.wg.Wait()
		if c.owned {
			err = c.conn.Close()
		}
	})
	return err
}
