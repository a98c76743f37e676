package wire

import (
	"encoding/binary"
	"fmt"
)

// Decoder reads big-endian values from a byte slice. Every read is bounds
// checked and fails with a PrematureEnd ParseError instead of reading past the
// end of the data.
type Decoder struct {
	data  []byte
	off   int
	field string
}

// NewDecoder returns a Decoder over data. field names the enclosing structure
// in error messages.
func NewDecoder(data []byte, field string) *Decoder {
	return &Decoder{
		data:  data,
		field: field,
	}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

// Empty returns true when all the data has been consumed.
func (d *Decoder) Empty() bool {
	return d.Remaining() == 0
}

// Offset returns the current read position.
func (d *Decoder) Offset() int {
	return d.off
}

// Finish fails with TrailingData if any bytes were left unread.
func (d *Decoder) Finish() error {
	if !d.Empty() {
		return NewParseError(d.field, TrailingData, fmt.Sprintf("%d bytes", d.Remaining()))
	}
	return nil
}

func (d *Decoder) next(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, NewParseError(d.field, PrematureEnd, "")
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

// ReadUint8 ...
func (d *Decoder) ReadUint8() (uint8, error) {
	b, err := d.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool reads a single byte. Any non-zero value is true.
func (d *Decoder) ReadBool() (bool, error) {
	v, err := d.ReadUint8()
	return v != 0, err
}

// ReadUint16 ...
func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadUint24 ...
func (d *Decoder) ReadUint24() (uint32, error) {
	b, err := d.next(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// ReadUint32 ...
func (d *Decoder) ReadUint32() (uint32, error) {
	b, err := d.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint64 ...
func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadRaw returns a copy of the next n bytes.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	b, err := d.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (d *Decoder) readLen(width int) (uint64, error) {
	if _, err := MaxLen(width); err != nil {
		return 0, err
	}
	b, err := d.next(width)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n, nil
}

// ReadOpaque reads a length prefix of the given width followed by that many
// bytes. An empty field decodes to nil.
func (d *Decoder) ReadOpaque(width int) ([]byte, error) {
	n, err := d.readLen(width)
	if err != nil {
		return nil, err
	}
	if n > uint64(d.Remaining()) {
		return nil, NewParseError(d.field, PrematureEnd, fmt.Sprintf("need %d bytes, have %d", n, d.Remaining()))
	}
	if n == 0 {
		return nil, nil
	}
	return d.ReadRaw(int(n))
}

// ReadVar reads a length-prefixed block and returns a Decoder restricted to
// it. Callers should check Finish on the returned Decoder once they are done.
func (d *Decoder) ReadVar(width int, field string) (*Decoder, error) {
	n, err := d.readLen(width)
	if err != nil {
		return nil, err
	}
	if n > uint64(d.Remaining()) {
		return nil, NewParseError(field, PrematureEnd, fmt.Sprintf("need %d bytes, have %d", n, d.Remaining()))
	}
	b, _ := d.next(int(n))
	return NewDecoder(b, field), nil
}

// ReadList reads a length-prefixed block and calls fn until the block is
// consumed. fn must make progress on every call.
func (d *Decoder) ReadList(width int, field string, fn func(*Decoder) error) error {
	inner, err := d.ReadVar(width, field)
	if err != nil {
		return err
	}
	for !inner.Empty() {
		before := inner.off
		if err := fn(inner); err != nil {
			return err
		}
		if inner.off == before {
			return NewParseError(field, TrailingData, "list element consumed no data")
		}
	}
	return nil
}
