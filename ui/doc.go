// Package ui provides the terminal user interface for vpn-settings.
//
// This package implements a live connection list on top of bubbletea:
//
//   - Connection table with state, automatic connection and credential flags
//   - Overall state line driven by the model's best state
//   - Key bindings to connect, disconnect and toggle automatic connection
//
// # Architecture
//
// The view never touches the vpn.Model from the model's goroutine. A
// subscription callback only signals a one-slot channel; a forwarding
// goroutine turns that into a refresh message, and Update re-reads a
// snapshot through the model's public methods. Bursts of events collapse
// into a single refresh.
//
// # File Organization
//
//   - view.go: bubbletea model, key handling and Run
//   - styles.go: lipgloss styles shared with the cli package
package ui
