package id

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"

	"github.com/mosaicnetworks/reload/src/wire"
)

// ResourceID is the opaque identifier of a stored resource. It is encoded with
// a one byte length prefix.
type ResourceID []byte

// ResourceIDFromName hashes name with SHA-1 and keeps the first 128 bits.
func ResourceIDFromName(name string) ResourceID {
	sum := sha1.Sum([]byte(name))
	return ResourceID(sum[:NodeIDLength])
}

// ResourceIDFromNode returns the ResourceID at the same ring position as n.
func ResourceIDFromNode(n NodeID) ResourceID {
	return ResourceID(n.Bytes())
}

// NodeID places the resource on the ring.
func (r ResourceID) NodeID() NodeID {
	return FromBytes(r)
}

// Equal ...
func (r ResourceID) Equal(o ResourceID) bool {
	return bytes.Equal(r, o)
}

// String ...
func (r ResourceID) String() string {
	return hex.EncodeToString(r)
}

// Encode writes the resource id with its one byte length prefix.
func (r ResourceID) Encode(e *wire.Encoder) error {
	return e.WriteOpaque(1, r, "ResourceId")
}

// DecodeResourceID ...
func DecodeResourceID(d *wire.Decoder) (ResourceID, error) {
	b, err := d.ReadOpaque(1)
	if err != nil {
		return nil, err
	}
	return ResourceID(b), nil
}

// EncodeNodeID writes the fixed 16 byte form of n.
func EncodeNodeID(e *wire.Encoder, n NodeID) {
	e.WriteUint64(n.High)
	e.WriteUint64(n.Low)
}

// DecodeNodeID reads a fixed 16 byte NodeID.
func DecodeNodeID(d *wire.Decoder) (NodeID, error) {
	high, err := d.ReadUint64()
	if err != nil {
		return NodeID{}, err
	}
	low, err := d.ReadUint64()
	if err != nil {
		return NodeID{}, err
	}
	return NodeID{High: high, Low: low}, nil
}
