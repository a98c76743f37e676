package net

import (
	"errors"
	"time"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
)

const (
	// DefaultMaxMessageSize bounds the length of a RELOAD frame, sent or
	// received.
	DefaultMaxMessageSize = 16384

	// rawReadSize is the chunk size used to read non-RELOAD application
	// flows.
	rawReadSize = 4096

	// ioBacklog is the capacity of the channel carrying I/O results to the
	// reactor.
	ioBacklog = 64
)

var (
	// ErrTransportShutdown is returned when operations on a transporter are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrTTLExhausted is reported when a message reaches a node with no hops
	// left.
	ErrTTLExhausted = errors.New("ttl exhausted")

	// ErrUnknownNode is reported when sending to a node without a flow.
	ErrUnknownNode = errors.New("no flow to node")

	// ErrFrameTooLarge is reported when a received frame exceeds the
	// configured maximum.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Transporter owns the network flows of a node. Its public methods only queue
// commands; Process executes them on the caller's goroutine, which must be
// the node's reactor.
type Transporter interface {
	// AddListener starts accepting RELOAD connections on addr.
	AddListener(addr string)

	// ConnectBootstrap dials a bootstrap node.
	ConnectBootstrap(addr string)

	// Connect dials n at one of its candidates for application app.
	Connect(n id.NodeID, candidates []string, app uint16)

	// CollectCandidates gathers local candidates where n can reach this node
	// for application app. The result is posted as a
	// LocalCandidatesCollected event carrying tid.
	CollectCandidates(tid uint64, n id.NodeID, app uint16)

	// Send writes msg on the RELOAD flow to n.
	Send(n id.NodeID, msg *message.Message)

	// SendRaw writes data on the application flow flowID.
	SendRaw(flowID uint64, data []byte)

	// Post queues fn to run as a command, on the goroutine calling Process.
	Post(fn func())

	// Events returns the queue the transporter posts its events to.
	Events() *EventQueue

	// Process applies pending I/O results and runs at most one command,
	// waiting up to timeout for work. It reports whether a command ran.
	Process(timeout time.Duration) bool

	// Close stops every listener and flow, and waits for the I/O goroutines.
	Close() error
}
