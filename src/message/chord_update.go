package message

import (
	"fmt"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/wire"
)

// ChordUpdateType ...
type ChordUpdateType uint8

// Chord update types.
const (
	PeerReady ChordUpdateType = 1
	Neighbors ChordUpdateType = 2
	Full      ChordUpdateType = 3
)

// String ...
func (t ChordUpdateType) String() string {
	switch t {
	case PeerReady:
		return "PeerReady"
	case Neighbors:
		return "Neighbors"
	case Full:
		return "Full"
	default:
		return fmt.Sprintf("ChordUpdateType(%d)", uint8(t))
	}
}

// ChordUpdate is the overlay specific content of an UpdateReq. Neighbors
// carries predecessors and successors, Full adds the finger table.
type ChordUpdate struct {
	Type         ChordUpdateType
	Predecessors []id.NodeID
	Successors   []id.NodeID
	Fingers      []id.NodeID
}

func encodeNodeList(e *wire.Encoder, nodes []id.NodeID, field string) error {
	return e.WriteVar(2, field, func(inner *wire.Encoder) error {
		for _, n := range nodes {
			id.EncodeNodeID(inner, n)
		}
		return nil
	})
}

func decodeNodeList(d *wire.Decoder, field string) ([]id.NodeID, error) {
	var nodes []id.NodeID
	err := d.ReadList(2, field, func(ld *wire.Decoder) error {
		n, err := id.DecodeNodeID(ld)
		if err != nil {
			return err
		}
		nodes = append(nodes, n)
		return nil
	})
	return nodes, err
}

// Encode ...
func (c *ChordUpdate) Encode() ([]byte, error) {
	e := wire.NewEncoder()
	e.WriteUint8(uint8(c.Type))
	err := e.WriteVar(3, "ChordUpdate", func(inner *wire.Encoder) error {
		switch c.Type {
		case PeerReady:
			return nil
		case Neighbors, Full:
			if err := encodeNodeList(inner, c.Predecessors, "predecessors"); err != nil {
				return err
			}
			if err := encodeNodeList(inner, c.Successors, "successors"); err != nil {
				return err
			}
			if c.Type == Full {
				return encodeNodeList(inner, c.Fingers, "fingers")
			}
			return nil
		default:
			return wire.NewParseError("ChordUpdate", wire.UnknownTag, fmt.Sprintf("%d", c.Type))
		}
	})
	if err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// DecodeChordUpdate ...
func DecodeChordUpdate(data []byte) (*ChordUpdate, error) {
	d := wire.NewDecoder(data, "ChordUpdate")
	t, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	c := &ChordUpdate{Type: ChordUpdateType(t)}

	inner, err := d.ReadVar(3, "ChordUpdate")
	if err != nil {
		return nil, err
	}
	switch c.Type {
	case PeerReady:
	case Neighbors, Full:
		if c.Predecessors, err = decodeNodeList(inner, "predecessors"); err != nil {
			return nil, err
		}
		if c.Successors, err = decodeNodeList(inner, "successors"); err != nil {
			return nil, err
		}
		if c.Type == Full {
			if c.Fingers, err = decodeNodeList(inner, "fingers"); err != nil {
				return nil, err
			}
		}
	default:
		return nil, wire.NewParseError("ChordUpdate", wire.UnknownTag, fmt.Sprintf("%d", t))
	}
	if err := inner.Finish(); err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeNodeIDData encodes a single NodeID as overlay specific data. It is
// used in RouteQueryAns to name the next hop.
func EncodeNodeIDData(n id.NodeID) []byte {
	return n.Bytes()
}

// DecodeNodeIDData is the inverse of EncodeNodeIDData.
func DecodeNodeIDData(data []byte) (id.NodeID, error) {
	d := wire.NewDecoder(data, "NodeId")
	n, err := id.DecodeNodeID(d)
	if err != nil {
		return n, err
	}
	return n, d.Finish()
}
