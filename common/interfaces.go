// Package common provides shared constants, types, and utilities
// used across the VPN settings backend.
package common

// ConnectionState is the lifecycle state connman reports for a VPN connection.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateFailure
	StateConfiguration
	StateReady
	StateDisconnect
)

// String returns a human-readable state string.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateFailure:
		return "Failure"
	case StateConfiguration:
		return "Connecting..."
	case StateReady:
		return "Connected"
	case StateDisconnect:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Rank orders states by how active they are. Disconnect shares the
// lowest rank with Idle.
func (s ConnectionState) Rank() int {
	switch s {
	case StateReady:
		return 3
	case StateConfiguration:
		return 2
	case StateFailure:
		return 1
	default:
		return 0
	}
}

// ConnectionType is the VPN provider type of a connection.
type ConnectionType int

const (
	TypeOpenVPN ConnectionType = iota
	TypeOpenConnect
	TypeVPNC
	TypeL2TP
	TypePPTP
)

// String returns the display name of the connection type.
func (t ConnectionType) String() string {
	switch t {
	case TypeOpenVPN:
		return "OpenVPN"
	case TypeOpenConnect:
		return "OpenConnect"
	case TypeVPNC:
		return "VPNC"
	case TypeL2TP:
		return "L2TP"
	case TypePPTP:
		return "PPTP"
	default:
		return "Unknown"
	}
}

// ParseConnectionType accepts a display name or connman type name.
func ParseConnectionType(s string) (ConnectionType, bool) {
	switch s {
	case "openvpn", "OpenVPN":
		return TypeOpenVPN, true
	case "openconnect", "OpenConnect":
		return TypeOpenConnect, true
	case "vpnc", "VPNC":
		return TypeVPNC, true
	case "l2tp", "L2TP":
		return TypeL2TP, true
	case "pptp", "PPTP":
		return TypePPTP, true
	}
	return TypeOpenVPN, false
}
