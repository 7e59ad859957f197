package vpn

import (
	"github.com/yllada/vpn-settings/common"
	"github.com/yllada/vpn-settings/properties"
)

// ConnectionState and ConnectionType are re-exported from common for convenience.
type (
	ConnectionState = common.ConnectionState
	ConnectionType  = common.ConnectionType
)

const (
	StateIdle          = common.StateIdle
	StateFailure       = common.StateFailure
	StateConfiguration = common.StateConfiguration
	StateReady         = common.StateReady
	StateDisconnect    = common.StateDisconnect

	TypeOpenVPN     = common.TypeOpenVPN
	TypeOpenConnect = common.TypeOpenConnect
	TypeVPNC        = common.TypeVPNC
	TypeL2TP        = common.TypeL2TP
	TypePPTP        = common.TypePPTP
)

// Record is the local view of one connman VPN connection.
type Record struct {
	// Path is the D-Bus object path, unique within the collection.
	Path string
	Type ConnectionType
	// State is the last state connman reported.
	State     ConnectionState
	Name      string
	Host      string
	Domain    string
	Immutable bool
	Index     int64
	// ProviderProperties holds the dotted provider keys, e.g. OpenVPN.Port.
	ProviderProperties properties.Map
	// AutomaticUpDown mirrors the presence of the connection's token file.
	AutomaticUpDown bool
	// StoreCredentials mirrors the presence of the connection's credential blob.
	StoreCredentials bool
	// Extra holds every other presentation property connman reports.
	Extra properties.Map
}

func newRecord(path string) *Record {
	return &Record{
		Path:               path,
		Type:               TypeOpenVPN,
		State:              StateDisconnect,
		ProviderProperties: properties.Map{},
		Extra:              properties.Map{},
	}
}

// apply sets the record's attributes from a presentation map and reports
// whether anything changed.
func (r *Record) apply(pres properties.Map) bool {
	changed := false
	setString := func(dst *string, v properties.Value) {
		if s, ok := v.AsString(); ok && s != *dst {
			*dst = s
			changed = true
		}
	}
	setBool := func(dst *bool, v properties.Value) {
		if b, ok := v.AsBool(); ok && b != *dst {
			*dst = b
			changed = true
		}
	}

	for key, v := range pres {
		switch key {
		case properties.KeyPath:
		case properties.KeyType:
			if n, ok := v.AsNumber(); ok && ConnectionType(n) != r.Type {
				r.Type = ConnectionType(n)
				changed = true
			}
		case properties.KeyState:
			if n, ok := v.AsNumber(); ok && ConnectionState(n) != r.State {
				r.State = ConnectionState(n)
				changed = true
			}
		case properties.KeyName:
			setString(&r.Name, v)
		case properties.KeyHost:
			setString(&r.Host, v)
		case properties.KeyDomain:
			setString(&r.Domain, v)
		case properties.KeyImmutable:
			setBool(&r.Immutable, v)
		case properties.KeyIndex:
			if n, ok := v.AsNumber(); ok && n != r.Index {
				r.Index = n
				changed = true
			}
		case properties.KeyProviderProperties:
			if m, ok := v.AsMap(); ok && !m.Equal(r.ProviderProperties) {
				r.ProviderProperties = m.Clone()
				changed = true
			}
		case properties.KeyAutomaticUpDown:
			setBool(&r.AutomaticUpDown, v)
		case properties.KeyStoreCredentials:
			setBool(&r.StoreCredentials, v)
		default:
			if old, ok := r.Extra[key]; !ok || !old.Equal(v) {
				r.Extra[key] = v
				changed = true
			}
		}
	}
	return changed
}

// Presentation returns the record as a presentation property map.
func (r *Record) Presentation() properties.Map {
	out := r.Extra.Clone()
	if out == nil {
		out = properties.Map{}
	}
	out[properties.KeyPath] = properties.String(r.Path)
	out[properties.KeyType] = properties.Number(int64(r.Type))
	out[properties.KeyState] = properties.Number(int64(r.State))
	out[properties.KeyName] = properties.String(r.Name)
	out[properties.KeyHost] = properties.String(r.Host)
	out[properties.KeyDomain] = properties.String(r.Domain)
	out[properties.KeyImmutable] = properties.Bool(r.Immutable)
	out[properties.KeyIndex] = properties.Number(r.Index)
	out[properties.KeyAutomaticUpDown] = properties.Bool(r.AutomaticUpDown)
	out[properties.KeyStoreCredentials] = properties.Bool(r.StoreCredentials)
	if len(r.ProviderProperties) > 0 {
		out[properties.KeyProviderProperties] = properties.MapValue(r.ProviderProperties.Clone())
	}
	return out
}

func (r *Record) clone() Record {
	c := *r
	c.ProviderProperties = r.ProviderProperties.Clone()
	c.Extra = r.Extra.Clone()
	return c
}
