// Package peers manages the list of bootstrap peers of an overlay node.
//
// A node that is not itself the bootstrap node of the overlay needs the
// address of at least one member to join through. Addresses come from the
// configuration and, optionally, from a bootstrap.json file in the data
// directory:
//
//  [
//  	{"NetAddr": "10.0.0.1:6084", "Moniker": "alice"},
//  	{"NetAddr": "10.0.0.2:6084", "NodeID": "000102030405060708090a0b0c0d0e0f"}
//  ]
//
// The file can be edited by hand. The node appends the addresses learned from
// JoinAns messages to its in-memory list, not to the file.
package peers
