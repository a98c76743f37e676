package wire

import (
	"encoding/binary"
	"fmt"
)

// MaxLen returns the largest length that fits in a prefix of the given width.
func MaxLen(width int) (uint64, error) {
	switch width {
	case 1, 2, 3, 4:
		return (uint64(1) << (8 * uint(width))) - 1, nil
	case 8:
		return ^uint64(0), nil
	default:
		return 0, NewParseError("prefix", BadWidth, fmt.Sprintf("%d", width))
	}
}

// Encoder appends big-endian values to a growing buffer. Nested
// length-prefixed blocks are written into a scratch Encoder first and copied
// in once their size is known.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded data. The slice aliases the internal buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteUint8 ...
func (e *Encoder) WriteUint8(v uint8) {
	e.buf = append(e.buf, v)
}

// WriteBool writes 1 for true and 0 for false.
func (e *Encoder) WriteBool(v bool) {
	if v {
		e.WriteUint8(1)
	} else {
		e.WriteUint8(0)
	}
}

// WriteUint16 ...
func (e *Encoder) WriteUint16(v uint16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, v)
}

// WriteUint24 writes the low 24 bits of v.
func (e *Encoder) WriteUint24(v uint32) {
	e.buf = append(e.buf, byte(v>>16), byte(v>>8), byte(v))
}

// WriteUint32 ...
func (e *Encoder) WriteUint32(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

// WriteUint64 ...
func (e *Encoder) WriteUint64(v uint64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, v)
}

// WriteRaw appends b without any length prefix.
func (e *Encoder) WriteRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// writeLen writes n as a width-byte big-endian integer.
func (e *Encoder) writeLen(width int, n uint64) {
	for i := width - 1; i >= 0; i-- {
		e.buf = append(e.buf, byte(n>>(8*uint(i))))
	}
}

// WriteOpaque writes b preceded by a length prefix of the given width.
func (e *Encoder) WriteOpaque(width int, b []byte, field string) error {
	max, err := MaxLen(width)
	if err != nil {
		return err
	}
	if uint64(len(b)) > max {
		return NewParseError(field, ValueTooLong, fmt.Sprintf("%d > %d", len(b), max))
	}
	e.writeLen(width, uint64(len(b)))
	e.WriteRaw(b)
	return nil
}

// WriteVar encodes a nested block through fn into a scratch buffer, then
// writes the block's length with the given prefix width followed by the block.
func (e *Encoder) WriteVar(width int, field string, fn func(*Encoder) error) error {
	inner := NewEncoder()
	if err := fn(inner); err != nil {
		return err
	}
	return e.WriteOpaque(width, inner.buf, field)
}

// PatchUint24 overwrites three bytes at offset off with the low 24 bits of v.
// It is used for the total length of the forwarding header, which is only
// known once the signature has been appended.
func (e *Encoder) PatchUint24(off int, v uint32) {
	e.buf[off] = byte(v >> 16)
	e.buf[off+1] = byte(v >> 8)
	e.buf[off+2] = byte(v)
}
