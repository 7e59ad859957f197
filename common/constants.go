// Package common provides shared constants, types, and utilities
// used across the VPN settings backend.
package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "VPN Settings"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "vpn-settings"
)

// File names used by the application.
const (
	ConfigFileName = "config.yaml"
	LogFileName    = "vpn-settings.log"
)

// connman VPN daemon endpoints.
const (
	// ConnmanService is the well-known bus name of connman-vpnd.
	ConnmanService = "net.connman.vpn"
	// ConnmanManagerPath is the object path of the VPN manager.
	ConnmanManagerPath = "/"
	// ConnmanManagerInterface is the interface implemented by the manager object.
	ConnmanManagerInterface = "net.connman.vpn.Manager"
	// ConnmanConnectionInterface is the interface implemented by connection objects.
	ConnmanConnectionInterface = "net.connman.vpn.Connection"
)

// DefaultDomain is injected into created connections when no domain is given.
// connman requires the field but does not use it, so it is hidden again on
// the way back to the presentation layer.
const DefaultDomain = "merproject.org"

// Local storage directories, relative to ~/.local/share/system.
const (
	TokenDirName        = "vpn"
	CredentialsDirName  = "vpn-data"
	ProvisioningDirName = "vpn-provisioning"
)

// Default timeouts and intervals.
const (
	// ConnectionTimeout is the maximum time the CLI waits for a remote effect.
	ConnectionTimeout = 30 * time.Second
	// PopulateTimeout bounds the wait for the first connection list.
	PopulateTimeout = 10 * time.Second
)
