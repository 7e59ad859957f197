package connman

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/yllada/vpn-settings/common"
)

// Connection is a proxy for one net.connman.vpn.Connection object.
type Connection struct {
	client *Client
	path   dbus.ObjectPath
	obj    dbus.BusObject

	closeOnce sync.Once
}

// Path returns the object path of the connection.
func (c *Connection) Path() string { return string(c.path) }

// Connect asks the daemon to bring the connection up.
func (c *Connection) Connect(ctx context.Context) error {
	call := c.obj.CallWithContext(ctx, common.ConnmanConnectionInterface+".Connect", 0)
	if call.Err != nil {
		return common.WrapError(call.Err, "Connect failed")
	}
	return nil
}

// Disconnect asks the daemon to bring the connection down.
func (c *Connection) Disconnect(ctx context.Context) error {
	call := c.obj.CallWithContext(ctx, common.ConnmanConnectionInterface+".Disconnect", 0)
	if call.Err != nil {
		return common.WrapError(call.Err, "Disconnect failed")
	}
	return nil
}

// Close drops the property-change subscription. It is safe to call more
// than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.client.conn.RemoveMatchSignal(c.matchOptions()...)
	})
	return err
}

func (c *Connection) matchOptions() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(c.path),
		dbus.WithMatchInterface(common.ConnmanConnectionInterface),
		dbus.WithMatchMember(memberPropertyChanged),
	}
}
