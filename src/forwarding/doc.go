// Package forwarding implements the hop by hop forwarding of RELOAD messages.
//
// The Layer consumes transporter events. Connection events update the
// topology, and every message, whether it arrived from the network or was
// handed over by the dispatcher, goes through the same algorithm: look at
// the first destination, remove it if it names this node, then either
// deliver the message locally, send it directly to a connected node, or send
// it to the next hop the topology picks.
package forwarding
