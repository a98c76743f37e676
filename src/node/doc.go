// Package node assembles the components of an overlay node and runs them.
//
// A Node owns a transporter, a dispatcher, the Chord topology, the forwarding
// layer and the storage. NewNode wires them together: the forwarding layer is
// the dispatcher's forwarder, the topology and the storage register their
// message types with the dispatcher, and the storage answers the topology's
// resource count.
//
// Reactor
//
// Every component is driven from one goroutine, the reactor. Each turn it
// runs the transporter's pending command or I/O result, hands every queued
// transporter event to the forwarding layer, and lets the dispatcher
// retransmit or expire overdue requests. Components never start goroutines of
// their own to process protocol messages, which keeps the routing tables
// consistent without long-held locks.
//
// Maintenance
//
// A ControlTimer ticks every RefreshInterval, with some jitter. On each tick
// the reactor refreshes the topology, which sends Updates to the neighbors,
// tops up the finger table and rejoins the overlay when the node has lost
// every connection, and drops expired stored values.
//
// On Shutdown a member node sends a Leave to its neighbors before its
// connections are closed.
package node
