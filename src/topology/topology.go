package topology

import (
	"errors"

	"github.com/mosaicnetworks/reload/src/dispatcher"
	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
)

var (
	// ErrAlreadyJoining is returned by JoinOverlay unless the node is
	// Unjoined.
	ErrAlreadyJoining = errors.New("join already in progress or complete")

	// ErrNoBootstrap is returned by JoinOverlay when no bootstrap address is
	// configured.
	ErrNoBootstrap = errors.New("no bootstrap address")

	// ErrRoutingInconsistency is returned when the routing tables contradict
	// a request, such as asking for a next hop toward an id this node is
	// responsible for, or inserting a finger twice.
	ErrRoutingInconsistency = errors.New("routing inconsistency")

	// ErrNoRoute is returned when there is no connected node to route to.
	ErrNoRoute = errors.New("no route")
)

// Topology is the view of the overlay used by the forwarding layer.
type Topology interface {
	// NodeID returns the id of this node.
	NodeID() id.NodeID

	// IsResponsible reports whether this node is responsible for x.
	IsResponsible(x id.NodeID) bool

	// IsConnected reports whether there is a direct connection to n.
	IsConnected(n id.NodeID) bool

	// FindNextHop returns the connected node a message toward x should be
	// sent to.
	FindNextHop(x id.NodeID) (id.NodeID, error)

	// NewConnectionFormed is called when a RELOAD flow to n opens.
	NewConnectionFormed(n id.NodeID, inbound bool)

	// ConnectionLost is called when the RELOAD flow to n closes.
	ConnectionLost(n id.NodeID)

	// CandidatesCollected is called when local candidates requested with tid
	// for node n are ready.
	CandidatesCollected(tid uint64, n id.NodeID, app uint16, candidates []string)
}

// Transporter is the part of the transport the topology drives.
type Transporter interface {
	ConnectBootstrap(addr string)
	Connect(n id.NodeID, candidates []string, app uint16)
	CollectCandidates(tid uint64, n id.NodeID, app uint16)
}

// Sender sends messages through the dispatcher.
type Sender interface {
	Send(msg *message.Message, sink dispatcher.Sink) error
}

// Registrar registers message sinks.
type Registrar interface {
	Register(t message.Type, sink dispatcher.Sink) error
}

// ResourceCounter reports how many resources this node stores. It answers the
// num_resources ping information.
type ResourceCounter interface {
	ResourceCount() int
}
