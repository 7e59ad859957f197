// Package main provides the entry point for vpn-settings.
// vpn-settings manages the VPN connections of the connman VPN daemon and
// keeps the settings connman does not store: automatic connection and
// saved credentials.
//
// Features:
//   - Connection list kept in sync with connman over D-Bus
//   - Create, modify and delete connections
//   - OpenVPN profile import with embedded certificate extraction
//   - Per-connection automatic connection and credential storage
//   - Live terminal view of connection state
//
// Usage:
//
//	vpn-settings [command] [flags]
//
// Environment:
//
//	The connman VPN daemon (net.connman.vpn) must be reachable on the
//	configured D-Bus bus.
package main

import "github.com/yllada/vpn-settings/cli"

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var (
	appVersion = "dev"
	buildTime  = "unknown"
)

func main() {
	cli.SetVersion(appVersion, buildTime)
	cli.Execute()
}
