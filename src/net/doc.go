// Package net carries RELOAD messages between overlay nodes.
//
// The Transporter owns every flow of a node. Callers queue commands on it
// (dial a bootstrap address, connect to candidates, gather local candidates,
// send a message) and the node's reactor runs them by calling Process. Reads,
// accepts and dials happen in their own goroutines, which hand results back
// to the reactor; everything they learn is reported on the EventQueue as
// ConnectionOpened, ConnectionClosed, MessageArrived,
// ApplicationMessageArrived or LocalCandidatesCollected events.
//
// TCP
//
// TCPTransporter speaks plain TCP. A new connection starts with a handshake
// where each side writes its 16 byte NodeID and reads the peer's. RELOAD
// flows then carry frames whose 16 byte fixed header gives the total length;
// other application flows are read as raw bytes.
//
// Candidates are ICE host candidate strings for a listener opened on an
// ephemeral port of the bind IP. That listener accepts a single connection.
//
// To use the transporter, set the following configuration options in the
// Config object (cf config package):
//
// - BindAddr: the IP:PORT of the bootstrap listener.
//
// - AdvertiseAddr: (optional) the address put in candidates when BindAddr is
// not reachable by other nodes.
package net
