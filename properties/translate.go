package properties

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hashicorp/go-hclog"
	"github.com/yllada/vpn-settings/common"
)

// Presentation keys with special handling.
const (
	KeyProviderProperties = "providerProperties"
	KeyType               = "type"
	KeyState              = "state"
	KeyDomain             = "domain"
	KeyName               = "name"
	KeyHost               = "host"
	KeyPath               = "path"
	KeyIndex              = "index"
	KeyImmutable          = "immutable"
	KeyAutomaticUpDown    = "automaticUpDown"
	KeyStoreCredentials   = "storeCredentials"
)

var typeNames = []struct {
	wire string
	typ  common.ConnectionType
}{
	{"openvpn", common.TypeOpenVPN},
	{"openconnect", common.TypeOpenConnect},
	{"vpnc", common.TypeVPNC},
	{"l2tp", common.TypeL2TP},
	{"pptp", common.TypePPTP},
}

var stateNames = []struct {
	wire  string
	state common.ConnectionState
}{
	{"idle", common.StateIdle},
	{"failure", common.StateFailure},
	{"configuration", common.StateConfiguration},
	{"ready", common.StateReady},
	{"disconnect", common.StateDisconnect},
}

// TypeName returns the connman name of a connection type.
func TypeName(t common.ConnectionType) (string, bool) {
	for _, e := range typeNames {
		if e.typ == t {
			return e.wire, true
		}
	}
	return "", false
}

// StateName returns the connman name of a connection state.
func StateName(s common.ConnectionState) (string, bool) {
	for _, e := range stateNames {
		if e.state == s {
			return e.wire, true
		}
	}
	return "", false
}

func logger() hclog.Logger {
	return common.Named("properties")
}

// ToPresentation converts a wire property map into presentation form.
// It never fails; values that cannot be converted pass through unchanged
// and are logged.
func ToPresentation(wire Map) Map {
	out := make(Map, len(wire))
	provider := Map{}

	for key, value := range wire {
		if strings.Contains(key, ".") {
			provider[key] = value
			continue
		}

		key = flipInitial(key, unicode.ToLower)

		switch key {
		case "iPv4", "iPv6":
			if value.Kind() != KindMap {
				logger().Warn("unexpected property shape", "key", key, "kind", value.Kind())
			}
		case "serverRoutes", "userRoutes":
			if value.Kind() != KindMapList {
				logger().Warn("unexpected property shape", "key", key, "kind", value.Kind())
			}
		case KeyDomain:
			if s, ok := value.AsString(); ok && s == common.DefaultDomain {
				continue
			}
		}

		out[key] = convert(key, value, false)
	}

	if len(provider) > 0 {
		out[KeyProviderProperties] = MapValue(provider)
	}
	return out
}

// ToWire converts a presentation property map into wire form. Provider
// properties are flattened back into top-level keys.
func ToWire(pres Map) Map {
	out := make(Map, len(pres))

	for key, value := range pres {
		if key == KeyProviderProperties {
			provider, ok := value.AsMap()
			if !ok {
				logger().Warn("provider properties are not a map", "kind", value.Kind())
				continue
			}
			for pk, pv := range provider {
				out[pk] = pv
			}
			continue
		}

		out[flipInitial(key, unicode.ToUpper)] = convert(key, value, true)
	}
	return out
}

func convert(key string, value Value, toWire bool) Value {
	switch strings.ToLower(key) {
	case KeyType:
		if toWire {
			if n, ok := value.AsNumber(); ok {
				if name, ok := TypeName(common.ConnectionType(n)); ok {
					return String(name)
				}
			}
		} else if s, ok := value.AsString(); ok {
			for _, e := range typeNames {
				if e.wire == s {
					return Number(int64(e.typ))
				}
			}
		}
	case KeyState:
		if toWire {
			if n, ok := value.AsNumber(); ok {
				if name, ok := StateName(common.ConnectionState(n)); ok {
					return String(name)
				}
			}
		} else if s, ok := value.AsString(); ok {
			for _, e := range stateNames {
				if e.wire == s {
					return Number(int64(e.state))
				}
			}
		}
	default:
		return value
	}

	logger().Warn("no conversion found", "key", key, "value", value.Text(), "to_wire", toWire)
	return value
}

func flipInitial(key string, fn func(rune) rune) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(fn(r)) + key[size:]
}
