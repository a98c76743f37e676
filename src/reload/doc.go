// Package reload builds an overlay node from a config.Config.
//
// Init reads or creates the node's key, derives its NodeID, gathers the
// bootstrap peers from the configuration and the optional bootstrap.json,
// opens the store, binds the transporter and assembles the node and its HTTP
// service. Run then blocks until the context is done.
package reload
