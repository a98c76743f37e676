package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegers(t *testing.T) {
	e := NewEncoder()
	e.WriteUint8(0xAB)
	e.WriteUint16(0x1234)
	e.WriteUint24(0xABCDEF)
	e.WriteUint32(0xDEADBEEF)
	e.WriteUint64(0x0102030405060708)
	e.WriteBool(true)

	expected := []byte{
		0xAB,
		0x12, 0x34,
		0xAB, 0xCD, 0xEF,
		0xDE, 0xAD, 0xBE, 0xEF,
		1, 2, 3, 4, 5, 6, 7, 8,
		1,
	}
	require.Equal(t, expected, e.Bytes())

	d := NewDecoder(e.Bytes(), "test")
	u8, err := d.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u8)

	u16, err := d.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u24, err := d.ReadUint24()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xABCDEF), u24)

	u32, err := d.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := d.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	b, err := d.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	require.NoError(t, d.Finish())
}

func TestPrematureEnd(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02, 0x03}, "short")
	_, err := d.ReadUint32()
	require.Error(t, err)
	assert.True(t, IsParse(err, PrematureEnd))
	assert.Contains(t, err.Error(), "premature end of data")

	// A length prefix pointing past the end must not read out of bounds.
	d = NewDecoder([]byte{0x00, 0x05, 0xAA}, "opaque")
	_, err = d.ReadOpaque(2)
	assert.True(t, IsParse(err, PrematureEnd))
}

func TestOpaqueBoundaries(t *testing.T) {
	widths := []int{1, 2, 3}

	for _, w := range widths {
		max, err := MaxLen(w)
		require.NoError(t, err)

		for _, size := range []int{0, 1, int(max)} {
			blob := bytes.Repeat([]byte{0x5A}, size)

			e := NewEncoder()
			require.NoError(t, e.WriteOpaque(w, blob, "blob"))
			require.Equal(t, w+size, e.Len())

			d := NewDecoder(e.Bytes(), "blob")
			out, err := d.ReadOpaque(w)
			require.NoError(t, err)
			require.Equal(t, blob, out)
			require.NoError(t, d.Finish())
		}

		tooLong := make([]byte, int(max)+1)
		err = NewEncoder().WriteOpaque(w, tooLong, "blob")
		require.Error(t, err)
		assert.True(t, IsParse(err, ValueTooLong))
	}
}

func TestBadWidth(t *testing.T) {
	err := NewEncoder().WriteOpaque(5, []byte{1}, "blob")
	assert.True(t, IsParse(err, BadWidth))

	_, err = NewDecoder([]byte{0, 0, 0, 0, 0}, "blob").ReadOpaque(5)
	assert.True(t, IsParse(err, BadWidth))
}

func TestVarAndTrailingData(t *testing.T) {
	e := NewEncoder()
	err := e.WriteVar(2, "inner", func(inner *Encoder) error {
		inner.WriteUint32(7)
		inner.WriteUint8(9)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []byte{0, 5, 0, 0, 0, 7, 9}, e.Bytes())

	d := NewDecoder(e.Bytes(), "outer")
	inner, err := d.ReadVar(2, "inner")
	require.NoError(t, err)

	v, err := inner.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)

	// one byte left inside the block
	err = inner.Finish()
	require.Error(t, err)
	assert.True(t, IsParse(err, TrailingData))
}

func TestReadList(t *testing.T) {
	e := NewEncoder()
	require.NoError(t, e.WriteVar(2, "list", func(inner *Encoder) error {
		for i := uint16(1); i <= 3; i++ {
			inner.WriteUint16(i)
		}
		return nil
	}))

	var got []uint16
	d := NewDecoder(e.Bytes(), "list")
	err := d.ReadList(2, "list", func(ld *Decoder) error {
		v, err := ld.ReadUint16()
		got = append(got, v)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 3}, got)

	// odd number of bytes in a list of uint16
	bad := []byte{0, 3, 0, 1, 0}
	err = NewDecoder(bad, "list").ReadList(2, "list", func(ld *Decoder) error {
		_, err := ld.ReadUint16()
		return err
	})
	assert.True(t, IsParse(err, PrematureEnd))
}

func TestPatchUint24(t *testing.T) {
	e := NewEncoder()
	e.WriteUint8(0xFF)
	e.WriteUint24(0)
	e.PatchUint24(1, 0x010203)
	assert.Equal(t, []byte{0xFF, 1, 2, 3}, e.Bytes())
}
