package id

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/mosaicnetworks/reload/src/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ringSize = new(big.Int).Lsh(big.NewInt(1), 128)

func toBig(n NodeID) *big.Int {
	return new(big.Int).SetBytes(n.Bytes())
}

func fromBig(b *big.Int) NodeID {
	buf := make([]byte, NodeIDLength)
	b.FillBytes(buf)
	return FromBytes(buf)
}

func randomID(r *rand.Rand) NodeID {
	return NodeID{High: r.Uint64(), Low: r.Uint64()}
}

func TestAdd2PowMatchesBigInt(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	samples := []NodeID{
		{},
		{High: 0, Low: ^uint64(0)},
		{High: ^uint64(0), Low: ^uint64(0)},
		{High: ^uint64(0), Low: 0},
	}
	for i := 0; i < 50; i++ {
		samples = append(samples, randomID(r))
	}

	for _, n := range samples {
		for p := uint(0); p < 128; p++ {
			expected := new(big.Int).Add(toBig(n), new(big.Int).Lsh(big.NewInt(1), p))
			expected.Mod(expected, ringSize)

			got := n.Add2Pow(p)
			if toBig(got).Cmp(expected) != 0 {
				t.Fatalf("%s + 2^%d: got %s, want %x", n, p, got, expected)
			}
		}
	}
}

func TestAdd2PowCarry(t *testing.T) {
	n := NodeID{High: 1, Low: ^uint64(0)}
	assert.Equal(t, NodeID{High: 2, Low: 0}, n.Add2Pow(0))

	top := NodeID{High: 1 << 63}
	assert.Equal(t, NodeID{}, top.Add2Pow(127))
}

func TestBytesAndString(t *testing.T) {
	n := NodeID{High: 0x0102030405060708, Low: 0x090A0B0C0D0E0F10}
	b := n.Bytes()
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, b)
	assert.Equal(t, n, FromBytes(b))
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", n.String())

	parsed, err := ParseNodeID(n.String())
	require.NoError(t, err)
	assert.Equal(t, n, parsed)

	_, err = ParseNodeID("abcd")
	assert.Error(t, err)

	// short input is padded on the right
	assert.Equal(t, NodeID{High: 0xFF00000000000000}, FromBytes([]byte{0xFF}))
}

func TestInRangeMatchesModularArithmetic(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	// clockwise distance from a to x, computed with big integers
	dist := func(a, x NodeID) *big.Int {
		d := new(big.Int).Sub(toBig(x), toBig(a))
		return d.Mod(d, ringSize)
	}

	check := func(pred, self, x NodeID) {
		dx := dist(pred, x)
		ds := dist(pred, self)
		expected := dx.Sign() > 0 && dx.Cmp(ds) <= 0
		if got := x.InRange(pred, self); got != expected {
			t.Fatalf("InRange(%s, %s, %s) = %v, want %v", pred, x, self, got, expected)
		}
		expectedOpen := dx.Sign() > 0 && dx.Cmp(ds) < 0
		if got := x.Between(pred, self); got != expectedOpen {
			t.Fatalf("Between(%s, %s, %s) = %v, want %v", pred, x, self, got, expectedOpen)
		}
	}

	for i := 0; i < 2000; i++ {
		pred := randomID(r)
		self := randomID(r)
		if pred == self {
			continue
		}
		check(pred, self, randomID(r))
		check(pred, self, pred)
		check(pred, self, self)
		check(pred, self, self.Add2Pow(0))
	}

	// wrap-around: self near zero, predecessor near the top of the ring
	pred := fromBig(new(big.Int).Sub(ringSize, big.NewInt(10)))
	self := NodeID{Low: 10}
	assert.True(t, NodeID{}.InRange(pred, self))
	assert.True(t, NodeID{Low: 10}.InRange(pred, self))
	assert.True(t, fromBig(new(big.Int).Sub(ringSize, big.NewInt(1))).InRange(pred, self))
	assert.False(t, pred.InRange(pred, self))
	assert.False(t, NodeID{Low: 11}.InRange(pred, self))
	assert.False(t, NodeID{High: 5}.InRange(pred, self))
}

func TestSameEndpoints(t *testing.T) {
	a := NodeID{Low: 99}
	assert.True(t, NodeID{Low: 5}.InRange(a, a))
	assert.True(t, a.InRange(a, a))
	assert.True(t, NodeID{Low: 5}.Between(a, a))
	assert.False(t, a.Between(a, a))
}

func TestResourceIDFromName(t *testing.T) {
	r := ResourceIDFromName("hello")
	require.Len(t, r, NodeIDLength)
	// SHA-1("hello") = aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9", r.String())
	assert.Equal(t, NodeID{High: 0xaaf4c61ddcc5e8a2, Low: 0xdabede0f3b482cd9}, r.NodeID())
}

func TestDestinationRoundTrip(t *testing.T) {
	list := []Destination{
		NodeDestination(NodeID{High: 1, Low: 2}),
		ResourceIDDestination(ResourceIDFromName("res")),
		ResourceIDDestination(ResourceID{}),
		CompressedIDDestination([]byte{0xCA, 0xFE}),
	}

	e := wire.NewEncoder()
	require.NoError(t, EncodeDestinations(e, list, "dests"))

	d := wire.NewDecoder(e.Bytes(), "dests")
	out, err := DecodeDestinations(d, "dests")
	require.NoError(t, err)
	require.NoError(t, d.Finish())
	require.Len(t, out, len(list))
	for i := range list {
		assert.True(t, list[i].Equal(out[i]), "entry %d", i)
	}

	// peer destination layout: tag, inner length, 16 bytes
	e = wire.NewEncoder()
	require.NoError(t, NodeDestination(NodeID{}).Encode(e))
	assert.Equal(t, 18, e.Len())
	assert.Equal(t, byte(1), e.Bytes()[0])
	assert.Equal(t, byte(16), e.Bytes()[1])
}

func TestDestinationUnknownTag(t *testing.T) {
	_, err := DecodeDestination(wire.NewDecoder([]byte{9, 0}, "dest"))
	require.Error(t, err)
	assert.True(t, wire.IsParse(err, wire.UnknownTag))
}

func TestDestinationTrailingBytes(t *testing.T) {
	// peer destination whose inner block holds 17 bytes
	raw := append([]byte{1, 17}, make([]byte, 17)...)
	_, err := DecodeDestination(wire.NewDecoder(raw, "dest"))
	require.Error(t, err)
	assert.True(t, wire.IsParse(err, wire.TrailingData))
}
