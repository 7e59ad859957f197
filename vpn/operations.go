package vpn

import (
	"context"
	"fmt"

	"github.com/yllada/vpn-settings/common"
	"github.com/yllada/vpn-settings/properties"
	"github.com/yllada/vpn-settings/storage"
)

// Create asks connman to create a connection from presentation properties.
// The new record arrives later through the daemon's add notification.
func (m *Model) Create(props properties.Map) error {
	var err error
	doErr := m.do(func() {
		if path := props.Str(properties.KeyPath); path != "" {
			m.logger.Warn("unable to create VPN connection with pre-existing path", "path", path)
			err = fmt.Errorf("%w: %s", ErrPreexistingIdentity, path)
			return
		}
		if props.Str(properties.KeyHost) == "" || props.Str(properties.KeyName) == "" {
			m.logger.Warn("unable to create VPN connection without domain, host and name properties")
			err = ErrMissingProperties
			return
		}

		create := props.Clone()
		if create.Str(properties.KeyDomain) == "" {
			create[properties.KeyDomain] = properties.String(common.DefaultDomain)
		}
		wire := properties.ToWire(create)

		m.spawn("Create", func(ctx context.Context) func() {
			path, err := m.manager.Create(ctx, wire)
			return func() {
				if err != nil {
					m.logger.Warn("unable to create connman VPN connection", "error", err)
					return
				}
				m.logger.Info("created VPN connection", "path", path)
			}
		})
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Modify replaces the connection at path with one built from props. connman
// only persists connections on creation, so the old connection is removed
// and a new one created. Token and credential flags change only after the
// create call succeeds.
func (m *Model) Modify(path string, props properties.Map) error {
	var err error
	doErr := m.do(func() {
		if m.find(path) == nil {
			err = m.unknown("modify", path)
			return
		}
		m.logger.Info("removing VPN connection for modification", "path", path)

		updated := props.Clone()
		for _, key := range strippedOnModify {
			delete(updated, key)
		}
		if updated.Str(properties.KeyDomain) == "" {
			updated[properties.KeyDomain] = properties.String(common.DefaultDomain)
		}
		wire := properties.ToWire(updated)

		token := storage.TokenForPath(path)
		wasAutomatic := m.tokens.Exists(token)
		automatic, _ := props[properties.KeyAutomaticUpDown].AsBool()

		location := storage.LocationForPath(path)
		couldStore := m.credentials.Exists(location)
		canStore, _ := props[properties.KeyStoreCredentials].AsBool()

		m.spawn("Modify "+path, func(ctx context.Context) func() {
			if err := m.manager.Remove(ctx, path); err != nil {
				m.logger.Warn("unable to delete connman VPN connection", "path", path, "error", err)
			}
			newPath, err := m.manager.Create(ctx, wire)
			return func() {
				if err != nil {
					m.logger.Warn("unable to recreate connman VPN connection", "path", path, "error", err)
					return
				}
				m.logger.Info("modified VPN connection", "path", newPath)

				if automatic != wasAutomatic {
					if automatic {
						m.tokens.Ensure(token)
					} else {
						m.tokens.Remove(token)
					}
				}
				if canStore != couldStore {
					if canStore {
						m.credentials.Store(location, map[string]string{})
					} else {
						m.credentials.Remove(location)
					}
				}

				// the add notification may have beaten the reply
				if rec := m.find(newPath); rec != nil {
					m.update(rec, m.withFlags(newPath, properties.Map{}))
				}
			}
		})
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Delete asks connman to remove the connection at path.
func (m *Model) Delete(path string) error {
	var err error
	doErr := m.do(func() {
		if m.find(path) == nil {
			err = m.unknown("delete", path)
			return
		}
		m.spawn("Remove "+path, func(ctx context.Context) func() {
			err := m.manager.Remove(ctx, path)
			return func() {
				if err != nil {
					m.logger.Warn("unable to delete connman VPN connection", "path", path, "error", err)
					return
				}
				m.logger.Info("deleted connection", "path", path)
			}
		})
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Activate asks connman to connect the connection at path.
func (m *Model) Activate(path string) error {
	return m.callProxy("activate", path, ConnectionProxy.Connect)
}

// Deactivate asks connman to disconnect the connection at path.
func (m *Model) Deactivate(path string) error {
	return m.callProxy("deactivate", path, ConnectionProxy.Disconnect)
}

func (m *Model) callProxy(op, path string, call func(ConnectionProxy, context.Context) error) error {
	var err error
	doErr := m.do(func() {
		proxy, ok := m.proxies[path]
		if !ok {
			m.logger.Warn("unable to "+op+" VPN connection without proxy", "path", path)
			err = fmt.Errorf("%w: %s", ErrUnknownConnection, path)
			return
		}
		m.spawn(op+" "+path, func(ctx context.Context) func() {
			err := call(proxy, ctx)
			return func() {
				if err != nil {
					m.logger.Warn("unable to "+op+" connman VPN connection", "path", path, "error", err)
				}
			}
		})
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// SetAutomatic enables or disables automatic connection for path.
func (m *Model) SetAutomatic(path string, enabled bool) error {
	var err error
	doErr := m.do(func() {
		rec := m.find(path)
		if rec == nil {
			err = m.unknown("set automatic", path)
			return
		}
		token := storage.TokenForPath(path)
		if enabled == m.tokens.Exists(token) {
			return
		}
		if enabled {
			m.tokens.Ensure(token)
		} else {
			m.tokens.Remove(token)
		}
		rec.AutomaticUpDown = m.tokens.Exists(token)
		m.emit(ConnectionChanged{Path: path, Index: m.indexOf(rec)})
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Automatic reports whether automatic connection is enabled for path.
func (m *Model) Automatic(path string) bool {
	var enabled bool
	_ = m.do(func() {
		if m.find(path) == nil {
			m.unknown("get automatic", path)
			return
		}
		enabled = m.tokens.Exists(storage.TokenForPath(path))
	})
	return enabled
}

// Credentials returns the stored credentials for path, or an empty map when
// storage is disabled.
func (m *Model) Credentials(path string) map[string]string {
	rv := map[string]string{}
	_ = m.do(func() {
		rec := m.find(path)
		if rec == nil {
			m.unknown("get credentials", path)
			return
		}
		if m.reconcileCredentials(rec) {
			rv = m.credentials.Read(storage.LocationForPath(path))
		} else {
			m.logger.Warn("VPN does not permit credentials storage", "path", path)
		}
	})
	return rv
}

// SetCredentials stores credentials for path and enables storage.
func (m *Model) SetCredentials(path string, credentials map[string]string) error {
	var err error
	doErr := m.do(func() {
		rec := m.find(path)
		if rec == nil {
			err = m.unknown("set credentials", path)
			return
		}
		if !m.credentials.Store(storage.LocationForPath(path), credentials) {
			err = fmt.Errorf("unable to store credentials for %s", path)
		}
		rec.StoreCredentials = m.credentials.Exists(storage.LocationForPath(path))
		m.emit(ConnectionChanged{Path: path, Index: m.indexOf(rec)})
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// CredentialsEnabled reports whether credentials are stored for path.
func (m *Model) CredentialsEnabled(path string) bool {
	var enabled bool
	_ = m.do(func() {
		rec := m.find(path)
		if rec == nil {
			m.unknown("test credentials storage", path)
			return
		}
		enabled = m.reconcileCredentials(rec)
	})
	return enabled
}

// DisableCredentials removes any stored credentials for path.
func (m *Model) DisableCredentials(path string) error {
	var err error
	doErr := m.do(func() {
		rec := m.find(path)
		if rec == nil {
			err = m.unknown("disable credentials", path)
			return
		}
		location := storage.LocationForPath(path)
		if m.credentials.Exists(location) {
			m.credentials.Remove(location)
		}
		rec.StoreCredentials = m.credentials.Exists(location)
		m.emit(ConnectionChanged{Path: path, Index: m.indexOf(rec)})
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Settings returns a presentation snapshot of the connection at path, or
// an empty map if it is unknown.
func (m *Model) Settings(path string) properties.Map {
	rv := properties.Map{}
	_ = m.do(func() {
		rec := m.find(path)
		if rec == nil {
			return
		}
		m.reconcileCredentials(rec)
		rv = rec.Presentation()
	})
	return rv
}

// ImportProvisioningFile converts a provisioning file into wire properties
// suitable for Create. Only OpenVPN profiles are supported.
func (m *Model) ImportProvisioningFile(path string, typ ConnectionType) properties.Map {
	if typ != TypeOpenVPN {
		m.logger.Warn("provisioning not currently supported for VPN type", "type", typ.String())
		return properties.Map{}
	}
	return m.importer.ImportFile(path)
}

// Connections returns copies of all records in display order.
func (m *Model) Connections() []Record {
	var out []Record
	_ = m.do(func() {
		out = make([]Record, len(m.records))
		for i, r := range m.records {
			out[i] = r.clone()
		}
	})
	return out
}

// Connection returns a copy of the record at path.
func (m *Model) Connection(path string) (Record, bool) {
	var (
		out   Record
		found bool
	)
	_ = m.do(func() {
		if rec := m.find(path); rec != nil {
			out, found = rec.clone(), true
		}
	})
	return out, found
}

// Lookup finds a record by path or, failing that, by name.
func (m *Model) Lookup(nameOrPath string) (Record, bool) {
	var (
		out   Record
		found bool
	)
	_ = m.do(func() {
		rec := m.find(nameOrPath)
		if rec == nil {
			for _, r := range m.records {
				if r.Name == nameOrPath {
					rec = r
					break
				}
			}
		}
		if rec != nil {
			out, found = rec.clone(), true
		}
	})
	return out, found
}

// BestState returns the most active state across all connections.
func (m *Model) BestState() ConnectionState {
	state := StateIdle
	_ = m.do(func() { state = m.best })
	return state
}

// Populated reports whether the connection list has been fetched since the
// daemon last appeared.
func (m *Model) Populated() bool {
	var populated bool
	_ = m.do(func() { populated = m.populated })
	return populated
}

// Count returns the number of records.
func (m *Model) Count() int {
	var n int
	_ = m.do(func() { n = len(m.records) })
	return n
}
