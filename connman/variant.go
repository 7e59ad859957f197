package connman

import (
	"math"

	"github.com/godbus/dbus/v5"
	"github.com/yllada/vpn-settings/properties"
)

// Decode converts a value received from D-Bus into a property value.
// Types without a structured equivalent are kept as Opaque.
func Decode(v interface{}) properties.Value {
	switch t := v.(type) {
	case dbus.Variant:
		return Decode(t.Value())
	case bool:
		return properties.Bool(t)
	case string:
		return properties.String(t)
	case dbus.ObjectPath:
		return properties.String(string(t))
	case []string:
		return properties.Strings(append([]string(nil), t...))
	case []dbus.ObjectPath:
		out := make([]string, len(t))
		for i, p := range t {
			out[i] = string(p)
		}
		return properties.Strings(out)
	case byte:
		return properties.Number(int64(t))
	case int16:
		return properties.Number(int64(t))
	case uint16:
		return properties.Number(int64(t))
	case int32:
		return properties.Number(int64(t))
	case uint32:
		return properties.Number(int64(t))
	case int64:
		return properties.Number(t)
	case uint64:
		if t > math.MaxInt64 {
			return properties.Opaque(t)
		}
		return properties.Number(int64(t))
	case map[string]dbus.Variant:
		return properties.MapValue(DecodeMap(t))
	case []map[string]dbus.Variant:
		list := make([]properties.Map, len(t))
		for i, m := range t {
			list[i] = DecodeMap(m)
		}
		return properties.MapList(list)
	case []interface{}:
		if list, ok := decodeMapList(t); ok {
			return properties.MapList(list)
		}
		return properties.Opaque(t)
	default:
		return properties.Opaque(v)
	}
}

func decodeMapList(items []interface{}) ([]properties.Map, bool) {
	list := make([]properties.Map, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]dbus.Variant)
		if !ok {
			return nil, false
		}
		list = append(list, DecodeMap(m))
	}
	return list, true
}

// DecodeMap converts an a{sv} dictionary.
func DecodeMap(m map[string]dbus.Variant) properties.Map {
	out := make(properties.Map, len(m))
	for k, v := range m {
		out[k] = Decode(v)
	}
	return out
}

// Encode converts a property value into a D-Bus variant. Numbers are sent
// as int32 when they fit.
func Encode(v properties.Value) dbus.Variant {
	switch v.Kind() {
	case properties.KindBool:
		b, _ := v.AsBool()
		return dbus.MakeVariant(b)
	case properties.KindNumber:
		n, _ := v.AsNumber()
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return dbus.MakeVariant(int32(n))
		}
		return dbus.MakeVariant(n)
	case properties.KindString:
		s, _ := v.AsString()
		return dbus.MakeVariant(s)
	case properties.KindStrings:
		s, _ := v.AsStrings()
		return dbus.MakeVariant(append([]string{}, s...))
	case properties.KindMap:
		m, _ := v.AsMap()
		return dbus.MakeVariant(EncodeMap(m))
	case properties.KindMapList:
		list, _ := v.AsMapList()
		out := make([]map[string]dbus.Variant, len(list))
		for i, m := range list {
			out[i] = EncodeMap(m)
		}
		return dbus.MakeVariant(out)
	default:
		return dbus.MakeVariant(v.Raw())
	}
}

// EncodeMap converts a property map into an a{sv} dictionary.
func EncodeMap(m properties.Map) map[string]dbus.Variant {
	out := make(map[string]dbus.Variant, len(m))
	for k, v := range m {
		out[k] = Encode(v)
	}
	return out
}
