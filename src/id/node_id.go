package id

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"
)

// NodeIDLength is the size of an encoded NodeID in bytes.
const NodeIDLength = 16

// NodeID is a position on the 2^128 identifier ring. High holds the most
// significant 64 bits.
type NodeID struct {
	High uint64
	Low  uint64
}

// FromBytes builds a NodeID from the first 16 bytes of b. Shorter inputs are
// padded on the right with zeros.
func FromBytes(b []byte) NodeID {
	var buf [NodeIDLength]byte
	copy(buf[:], b)
	return NodeID{
		High: binary.BigEndian.Uint64(buf[:8]),
		Low:  binary.BigEndian.Uint64(buf[8:]),
	}
}

// ParseNodeID parses the 32 hex digit form produced by String.
func ParseNodeID(s string) (NodeID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return NodeID{}, err
	}
	if len(b) != NodeIDLength {
		return NodeID{}, fmt.Errorf("node id must be %d bytes, got %d", NodeIDLength, len(b))
	}
	return FromBytes(b), nil
}

// RandomNodeID returns a NodeID drawn from crypto/rand.
func RandomNodeID() NodeID {
	var buf [NodeIDLength]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return FromBytes(buf[:])
}

// Bytes returns the 16 byte network form, high half first.
func (n NodeID) Bytes() []byte {
	buf := make([]byte, NodeIDLength)
	binary.BigEndian.PutUint64(buf[:8], n.High)
	binary.BigEndian.PutUint64(buf[8:], n.Low)
	return buf
}

// String returns 32 lowercase hex digits.
func (n NodeID) String() string {
	return fmt.Sprintf("%016x%016x", n.High, n.Low)
}

// Short is a truncated String for log lines.
func (n NodeID) Short() string {
	return n.String()[:8]
}

// IsZero ...
func (n NodeID) IsZero() bool {
	return n.High == 0 && n.Low == 0
}

// Add2Pow returns n + 2^power modulo 2^128. The carry out of the low word
// propagates into the high word.
func (n NodeID) Add2Pow(power uint) NodeID {
	power %= 128
	var addHigh, addLow uint64
	if power >= 64 {
		addHigh = 1 << (power - 64)
	} else {
		addLow = 1 << power
	}
	low, carry := bits.Add64(n.Low, addLow, 0)
	high, _ := bits.Add64(n.High, addHigh, carry)
	return NodeID{High: high, Low: low}
}

// Sub returns n - m modulo 2^128, the clockwise distance from m to n.
func (n NodeID) Sub(m NodeID) NodeID {
	low, borrow := bits.Sub64(n.Low, m.Low, 0)
	high, _ := bits.Sub64(n.High, m.High, borrow)
	return NodeID{High: high, Low: low}
}

// Compare orders NodeIDs as plain unsigned 128-bit integers. It returns -1, 0
// or 1. This linear order keeps the finger table sorted; ring decisions use
// Between and InRange.
func (n NodeID) Compare(m NodeID) int {
	switch {
	case n.High < m.High:
		return -1
	case n.High > m.High:
		return 1
	case n.Low < m.Low:
		return -1
	case n.Low > m.Low:
		return 1
	default:
		return 0
	}
}

// Less reports whether n < m in the linear order.
func (n NodeID) Less(m NodeID) bool {
	return n.Compare(m) < 0
}

// Between reports whether n lies strictly inside the clockwise arc (a, b).
// When a == b the arc is the whole ring except a.
func (n NodeID) Between(a, b NodeID) bool {
	if a == b {
		return n != a
	}
	d := n.Sub(a)
	span := b.Sub(a)
	return !d.IsZero() && d.Less(span)
}

// InRange reports whether n lies in the half-open clockwise arc (a, b]. When
// a == b the arc covers the whole ring.
func (n NodeID) InRange(a, b NodeID) bool {
	if a == b {
		return true
	}
	d := n.Sub(a)
	span := b.Sub(a)
	return !d.IsZero() && d.Compare(span) <= 0
}

// MarshalText encodes n as its hex string.
func (n NodeID) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText parses the hex string form.
func (n *NodeID) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
