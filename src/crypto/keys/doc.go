// Package keys implements the key material of an overlay node.
//
// Every node owns an ECDSA key-pair on the secp256k1 curve. The private key
// signs the messages the node originates and the values it stores; the public
// key travels in the signer identity of those signatures so that any node can
// verify them. When no NodeID is configured, the node derives one from the
// hash of its public key, which ties its position on the ring to its key.
package keys
