// Package common provides shared constants, types, utilities, and interfaces
// used throughout the VPN settings backend.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: connman service names, storage directory names, timeouts
//   - Errors: Sentinel errors for consistent error handling across packages
//   - Interfaces: Connection type and state enumerations shared by every layer
//   - Logger: Structured logging on top of hclog with optional file output
//   - Utils: Small helpers for config and data directories
//
// # Usage
//
//	// Use constants
//	timeout := common.ConnectionTimeout
//
//	// Use logger
//	common.LogInfo("Adding connection", "path", path)
//
//	// Check errors
//	if errors.Is(err, common.ErrUnknownConnection) {
//	    // Handle missing connection
//	}
package common
