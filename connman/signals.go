package connman

import "github.com/yllada/vpn-settings/properties"

// Signal is a notification from the connman VPN daemon.
type Signal interface {
	signal()
}

// ConnectionAdded reports a new connection and its wire properties.
type ConnectionAdded struct {
	Path       string
	Properties properties.Map
}

// ConnectionRemoved reports that a connection object went away.
type ConnectionRemoved struct {
	Path string
}

// PropertyChanged reports a single property update on a connection.
type PropertyChanged struct {
	Path  string
	Name  string
	Value properties.Value
}

// ServiceAvailability reports the daemon appearing on or leaving the bus.
type ServiceAvailability struct {
	Available bool
}

func (ConnectionAdded) signal()     {}
func (ConnectionRemoved) signal()   {}
func (PropertyChanged) signal()     {}
func (ServiceAvailability) signal() {}
