package state

import (
	"sync/atomic"
)

// State captures the membership phase of an overlay node: Unjoined, Joining,
// Member, Leaving or Shutdown.
type State uint32

const (
	// Unjoined is the initial state. The node has no routing state yet.
	Unjoined State = iota

	// Joining is the state in which the node is connecting to a bootstrap
	// node and waiting for its JoinReq to be accepted.
	Joining

	// Member is the state in which the routing tables are populated and the
	// node forwards and answers requests.
	Member

	// Leaving is the state in which the node has announced its departure to
	// its neighbors.
	Leaving

	// Shutdown is the state in which the node stops processing events and
	// closes its transport.
	Shutdown
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case Unjoined:
		return "Unjoined"
	case Joining:
		return "Joining"
	case Member:
		return "Member"
	case Leaving:
		return "Leaving"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Manager wraps a State with atomic get and set methods.
type Manager struct {
	state State
}

// GetState returns the current state.
func (b *Manager) GetState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

// SetState sets the state.
func (b *Manager) SetState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// CompareAndSwap sets the state to new only if it is currently old.
func (b *Manager) CompareAndSwap(old, new State) bool {
	stateAddr := (*uint32)(&b.state)
	return atomic.CompareAndSwapUint32(stateAddr, uint32(old), uint32(new))
}
