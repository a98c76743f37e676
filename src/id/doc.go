// Package id defines the identifiers of the overlay: NodeID, ResourceID and the
// Destination union used in via and destination lists.
//
// NodeIDs live on a ring of size 2^128. Two orders are available. Compare is
// the plain unsigned order and is only used to keep collections sorted.
// Between and InRange measure clockwise distance and must be used for every
// routing or responsibility decision so that arcs crossing zero behave like
// any other arc.
package id
