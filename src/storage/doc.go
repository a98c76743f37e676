// Package storage keeps the data stored at this node and answers the RELOAD
// storage requests: Store, Fetch, Remove and Find.
//
// Everything stored for one kind of one resource is a KindEntry, encoded with
// msgpack and kept in a Backend under a key made of the kind and the
// resource id. There are three backends:
//
// - Inmem: a map, used for tests and short lived nodes
//
// - Badger: a badger database in the node's data directory
//
// - Bolt: a single bbolt file in the node's data directory
package storage
