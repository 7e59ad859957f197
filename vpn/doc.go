// Package vpn keeps a local, name-ordered view of the connman VPN
// connections and persists the two per-connection settings connman does
// not store itself.
//
// This package implements:
//
//   - Connection list: one Record per connman connection, kept sorted by name
//   - Lifecycle operations: Create, Modify, Delete, Activate and Deactivate
//   - Automatic connection: a token file per connection, see storage.TokenRepository
//   - Credential storage: a credential blob per connection, see storage.CredentialRepository
//   - Provisioning: OpenVPN profile import for Create
//
// # Architecture
//
// The package is organized around three types:
//
//   - Model: Owns the record list and drives the remote daemon
//   - Manager: The remote connection manager, normally NewConnmanManager
//   - Event: Notifications delivered to Subscribe callbacks
//
// # Concurrency
//
// Model follows a single-owner design. Run processes daemon signals and
// caller operations on one goroutine, so records are never shared. Remote
// calls run on their own goroutines and hand their results back to Run;
// they are never awaited by the caller, and their failures are logged
// rather than returned. Use WaitIdle to wait for them.
//
// # Modification
//
// connman only persists connections it creates, so Modify removes the
// connection and creates a new one from the edited properties. Token and
// credential flags change only once the create call succeeds.
//
// # Usage
//
//	model := vpn.NewModel(vpn.Options{Manager: vpn.NewConnmanManager(client), ...})
//	go model.Run(ctx)
//
//	cancel := model.Subscribe(func(e vpn.Event) {
//	    if s, ok := e.(vpn.BestStateChanged); ok {
//	        fmt.Println(s.State)
//	    }
//	})
//	defer cancel()
package vpn
