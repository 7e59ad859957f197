package properties

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yllada/vpn-settings/common"
)

func TestToPresentation(t *testing.T) {
	wire := Map{
		"Name":           String("Office"),
		"Host":           String("vpn.example.com"),
		"Type":           String("openvpn"),
		"State":          String("ready"),
		"Domain":         String("example.com"),
		"Immutable":      Bool(false),
		"Index":          Number(2),
		"OpenVPN.Port":   String("1194"),
		"OpenVPN.CACert": String("/etc/ca.crt"),
		"IPv4":           MapValue(Map{"Address": String("10.0.0.2")}),
		"UserRoutes":     MapList([]Map{{"Network": String("10.1.0.0")}}),
		"Nameservers":    Strings([]string{"10.0.0.1"}),
	}

	pres := ToPresentation(wire)

	assert.Equal(t, "Office", pres.Str("name"))
	assert.Equal(t, "vpn.example.com", pres.Str("host"))
	assert.True(t, Number(int64(common.TypeOpenVPN)).Equal(pres["type"]))
	assert.True(t, Number(int64(common.StateReady)).Equal(pres["state"]))
	assert.Equal(t, "example.com", pres.Str("domain"))
	assert.Contains(t, pres, "iPv4")
	assert.Contains(t, pres, "userRoutes")
	assert.Contains(t, pres, "nameservers")

	provider, ok := pres[KeyProviderProperties].AsMap()
	require.True(t, ok)
	assert.Equal(t, "1194", provider.Str("OpenVPN.Port"))
	assert.Equal(t, "/etc/ca.crt", provider.Str("OpenVPN.CACert"))
	assert.NotContains(t, pres, "OpenVPN.Port")
}

func TestToPresentation_DefaultDomainOmitted(t *testing.T) {
	pres := ToPresentation(Map{"Domain": String(common.DefaultDomain), "Name": String("x")})
	assert.NotContains(t, pres, KeyDomain)
	assert.NotContains(t, pres, KeyProviderProperties)
}

func TestToPresentation_Passthrough(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value Value
		out   string
	}{
		{"unknown type", "Type", String("wireguard"), "type"},
		{"unknown state", "State", String("association"), "state"},
		{"ipv4 not a map", "IPv4", String("bogus"), "iPv4"},
		{"routes not a list", "ServerRoutes", Number(3), "serverRoutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pres := ToPresentation(Map{tt.key: tt.value})
			assert.True(t, tt.value.Equal(pres[tt.out]))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	pres := Map{
		"name":                String("Office"),
		"host":                String("vpn.example.com"),
		"type":                Number(int64(common.TypeL2TP)),
		"state":               Number(int64(common.StateDisconnect)),
		KeyProviderProperties: MapValue(Map{
			"L2TP.User": String("alice"),
		}),
	}

	wire := ToWire(pres)
	assert.Equal(t, "l2tp", wire.Str("Type"))
	assert.Equal(t, "disconnect", wire.Str("State"))
	assert.Equal(t, "alice", wire.Str("L2TP.User"))
	assert.NotContains(t, wire, KeyProviderProperties)

	assert.True(t, pres.Equal(ToPresentation(wire)))
}

func TestToWire_Lossy(t *testing.T) {
	// Number outside the type table passes through untouched.
	wire := ToWire(Map{"type": Number(42)})
	assert.True(t, Number(42).Equal(wire["Type"]))

	// A malformed providerProperties entry is dropped.
	wire = ToWire(Map{KeyProviderProperties: String("nope"), "name": String("a")})
	assert.Len(t, wire, 1)
	assert.Equal(t, "a", wire.Str("Name"))

	// The default domain does not survive a round trip.
	pres := ToPresentation(ToWire(Map{"domain": String(common.DefaultDomain)}))
	assert.Empty(t, pres)
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Strings([]string{"a", "b"}).Equal(Strings([]string{"a", "b"})))
	assert.False(t, Strings([]string{"a"}).Equal(Strings([]string{"b"})))
	assert.False(t, String("1").Equal(Number(1)))
	assert.True(t, Opaque(uint8(3)).Equal(Opaque(uint8(3))))
	assert.False(t, Opaque([]int{1}).Equal(Opaque([]int{1})))

	m := Map{"list": MapList([]Map{{"a": Bool(true)}})}
	clone := m.Clone()
	assert.True(t, m.Equal(clone))
	list, _ := clone["list"].AsMapList()
	list[0]["a"] = Bool(false)
	assert.False(t, m.Equal(clone))
}
