// Package config defines the configuration for an overlay node.
//
// Regardless of how the node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, the node relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional files:
//
//  priv_key // a plain text file containing the raw private key (cf. reload keygen).
//  bootstrap.json // (optional) a JSON list of peers to join the overlay through.
//  reload.toml // (optional) the configuration read by the command line.
package config
