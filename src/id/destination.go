package id

import (
	"bytes"
	"fmt"

	"github.com/mosaicnetworks/reload/src/wire"
)

// DestinationType is the tag of a Destination on the wire.
type DestinationType uint8

const (
	// PeerDestination addresses a node.
	PeerDestination DestinationType = 1
	// ResourceDestination addresses the node responsible for a resource.
	ResourceDestination DestinationType = 2
	// CompressedDestination is an opaque compressed route entry.
	CompressedDestination DestinationType = 3
)

// String ...
func (t DestinationType) String() string {
	switch t {
	case PeerDestination:
		return "peer"
	case ResourceDestination:
		return "resource"
	case CompressedDestination:
		return "compressed"
	default:
		return "unknown"
	}
}

// Destination is one entry of a via or destination list. Exactly one of the
// fields matching Type is meaningful.
type Destination struct {
	Type       DestinationType
	Node       NodeID
	Resource   ResourceID
	Compressed []byte
}

// NodeDestination ...
func NodeDestination(n NodeID) Destination {
	return Destination{Type: PeerDestination, Node: n}
}

// ResourceIDDestination ...
func ResourceIDDestination(r ResourceID) Destination {
	return Destination{Type: ResourceDestination, Resource: r}
}

// CompressedIDDestination ...
func CompressedIDDestination(c []byte) Destination {
	return Destination{Type: CompressedDestination, Compressed: c}
}

// IsNode ...
func (d Destination) IsNode() bool {
	return d.Type == PeerDestination
}

// IsResource ...
func (d Destination) IsResource() bool {
	return d.Type == ResourceDestination
}

// Equal compares type and the meaningful identifier.
func (d Destination) Equal(o Destination) bool {
	if d.Type != o.Type {
		return false
	}
	switch d.Type {
	case PeerDestination:
		return d.Node == o.Node
	case ResourceDestination:
		return d.Resource.Equal(o.Resource)
	default:
		return bytes.Equal(d.Compressed, o.Compressed)
	}
}

// String ...
func (d Destination) String() string {
	switch d.Type {
	case PeerDestination:
		return "node:" + d.Node.String()
	case ResourceDestination:
		return "resource:" + d.Resource.String()
	default:
		return fmt.Sprintf("%s:%x", d.Type, d.Compressed)
	}
}

// Encode writes the type tag, a one byte length, and the body.
func (d Destination) Encode(e *wire.Encoder) error {
	e.WriteUint8(uint8(d.Type))
	return e.WriteVar(1, "Destination", func(inner *wire.Encoder) error {
		switch d.Type {
		case PeerDestination:
			EncodeNodeID(inner, d.Node)
			return nil
		case ResourceDestination:
			return d.Resource.Encode(inner)
		case CompressedDestination:
			return inner.WriteOpaque(1, d.Compressed, "CompressedId")
		default:
			return wire.NewParseError("Destination", wire.UnknownTag, fmt.Sprintf("%d", d.Type))
		}
	})
}

// DecodeDestination ...
func DecodeDestination(d *wire.Decoder) (Destination, error) {
	tag, err := d.ReadUint8()
	if err != nil {
		return Destination{}, err
	}
	body, err := d.ReadVar(1, "Destination")
	if err != nil {
		return Destination{}, err
	}

	dest := Destination{Type: DestinationType(tag)}
	switch dest.Type {
	case PeerDestination:
		dest.Node, err = DecodeNodeID(body)
	case ResourceDestination:
		dest.Resource, err = DecodeResourceID(body)
	case CompressedDestination:
		dest.Compressed, err = body.ReadOpaque(1)
	default:
		return Destination{}, wire.NewParseError("Destination", wire.UnknownTag, fmt.Sprintf("%d", tag))
	}
	if err != nil {
		return Destination{}, err
	}
	return dest, body.Finish()
}

// EncodeDestinations writes a list with a two byte length prefix.
func EncodeDestinations(e *wire.Encoder, list []Destination, field string) error {
	return e.WriteVar(2, field, func(inner *wire.Encoder) error {
		for _, d := range list {
			if err := d.Encode(inner); err != nil {
				return err
			}
		}
		return nil
	})
}

// DecodeDestinations reads a list written by EncodeDestinations.
func DecodeDestinations(d *wire.Decoder, field string) ([]Destination, error) {
	var list []Destination
	err := d.ReadList(2, field, func(ld *wire.Decoder) error {
		dest, err := DecodeDestination(ld)
		if err != nil {
			return err
		}
		list = append(list, dest)
		return nil
	})
	return list, err
}
