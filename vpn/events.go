package vpn

// Event is a change notification published to subscribers.
type Event interface {
	event()
}

// ConnectionStateChanged reports a new state for one connection.
type ConnectionStateChanged struct {
	Path  string
	State ConnectionState
}

// BestStateChanged reports a new aggregate state across all connections.
type BestStateChanged struct {
	State ConnectionState
}

// ConnectionAdded reports a record appended at Index.
type ConnectionAdded struct {
	Path  string
	Index int
}

// ConnectionRemoved reports a record removed from Index.
type ConnectionRemoved struct {
	Path  string
	Index int
}

// ConnectionMoved reports a record relocated to keep the list name-ordered.
type ConnectionMoved struct {
	Path string
	From int
	To   int
}

// ConnectionChanged reports that a record's attributes changed.
type ConnectionChanged struct {
	Path  string
	Index int
}

// PopulatedChanged reports the populated flag flipping.
type PopulatedChanged struct {
	Populated bool
}

// CollectionReset reports that every record was dropped at once.
type CollectionReset struct{}

func (ConnectionStateChanged) event() {}
func (BestStateChanged) event()       {}
func (ConnectionAdded) event()        {}
func (ConnectionRemoved) event()      {}
func (ConnectionMoved) event()        {}
func (ConnectionChanged) event()      {}
func (PopulatedChanged) event()       {}
func (CollectionReset) event()        {}
