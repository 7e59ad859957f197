package vpn

import (
	"context"

	"github.com/yllada/vpn-settings/connman"
	"github.com/yllada/vpn-settings/properties"
)

// Manager is the remote connection manager the model drives.
type Manager interface {
	GetConnections(ctx context.Context) ([]connman.Entry, error)
	Create(ctx context.Context, props properties.Map) (string, error)
	Remove(ctx context.Context, path string) error
	Connection(path string) (ConnectionProxy, error)
	Signals() <-chan connman.Signal
}

// ConnectionProxy controls a single remote connection.
type ConnectionProxy interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Close() error
}

type connmanManager struct {
	*connman.Client
}

// NewConnmanManager adapts a connman client to the Manager interface.
func NewConnmanManager(c *connman.Client) Manager {
	return connmanManager{Client: c}
}

func (m connmanManager) Connection(path string) (ConnectionProxy, error) {
	conn, err := m.Client.Connection(path)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
