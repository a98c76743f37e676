package message

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"fmt"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/wire"
)

const (
	// Token is the first word of every message: "RELO" with the high bit set.
	Token uint32 = 0x80000000 | 0x52454C4F

	// Version is the protocol version written in the forwarding header.
	Version uint8 = 1

	// DefaultTTL is the hop budget of newly created messages.
	DefaultTTL uint8 = 100

	// FrameHeaderLength is the number of leading bytes needed to learn the
	// total length of a message.
	FrameHeaderLength = 16

	// MaxLength is the largest total length the 24-bit field can hold.
	MaxLength = 0xFFFFFF

	lengthOffset = 13
)

// OverlayID hashes an overlay name into the 32-bit identifier carried in the
// forwarding header.
func OverlayID(name string) uint32 {
	sum := sha1.Sum([]byte(name))
	return binary.BigEndian.Uint32(sum[:4])
}

// NewTransactionID returns a random transaction id.
func NewTransactionID() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return binary.BigEndian.Uint64(b[:])
}

// Header is the forwarding header.
type Header struct {
	Overlay       uint32
	TTL           uint8
	Reserved      uint8
	Fragment      uint16
	Version       uint8
	Length        uint32
	TransactionID uint64
	Flags         uint16
	Via           []id.Destination
	Destinations  []id.Destination
	RouteLogLen   uint16
	Code          Type
}

// Message is a complete RELOAD message. Payload holds the encoded body so that
// relays forward it untouched and signatures stay valid across hops.
type Message struct {
	Header
	Payload   []byte
	Signature Signature
}

// New creates a message carrying body with a fresh transaction id. The
// destination list is set by the caller.
func New(overlay uint32, body Body) (*Message, error) {
	payload, err := EncodeBody(body)
	if err != nil {
		return nil, err
	}

	return &Message{
		Header: Header{
			Overlay:       overlay,
			TTL:           DefaultTTL,
			Version:       Version,
			TransactionID: NewTransactionID(),
			Code:          body.Type(),
		},
		Payload: payload,
	}, nil
}

// Type returns the message code.
func (m *Message) Type() Type {
	return m.Code
}

// IsRequest ...
func (m *Message) IsRequest() bool {
	return m.Code.IsRequest()
}

// Body decodes the payload according to the message code.
func (m *Message) Body() (Body, error) {
	return DecodeBody(m.Code, m.Payload)
}

// SetBody replaces the payload and the message code. Any signature is cleared
// since it no longer covers the payload.
func (m *Message) SetBody(body Body) error {
	payload, err := EncodeBody(body)
	if err != nil {
		return err
	}
	m.Payload = payload
	m.Code = body.Type()
	m.Signature = Signature{}
	return nil
}

// SignedData returns the bytes covered by the signature: overlay, transaction
// id and payload, in that order.
func (m *Message) SignedData() []byte {
	data := make([]byte, 12, 12+len(m.Payload))
	binary.BigEndian.PutUint32(data[0:4], m.Overlay)
	binary.BigEndian.PutUint64(data[4:12], m.TransactionID)
	return append(data, m.Payload...)
}

// Sign computes the signature block with signer.
func (m *Message) Sign(signer Signer) error {
	sig, err := signer.Sign(m.SignedData())
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// Verify checks the signature block with verifier.
func (m *Message) Verify(verifier Verifier) error {
	return verifier.Verify(m.SignedData(), m.Signature)
}

// FrontDestination returns the first entry of the destination list.
func (m *Message) FrontDestination() (id.Destination, bool) {
	if len(m.Destinations) == 0 {
		return id.Destination{}, false
	}
	return m.Destinations[0], true
}

// PopDestination removes the first entry of the destination list.
func (m *Message) PopDestination() {
	if len(m.Destinations) > 0 {
		m.Destinations = m.Destinations[1:]
	}
}

// PushVia appends d to the via list.
func (m *Message) PushVia(d id.Destination) {
	m.Via = append(m.Via, d)
}

// OriginNode returns the first peer entry of the via list, which names the
// node that created the message.
func (m *Message) OriginNode() (id.NodeID, bool) {
	for _, v := range m.Via {
		if v.IsNode() {
			return v.Node, true
		}
	}
	return id.NodeID{}, false
}

// MakeResponse creates the answer to m. It keeps the overlay and the
// transaction id, and routes back along the reversed via list.
func (m *Message) MakeResponse(body Body) (*Message, error) {
	payload, err := EncodeBody(body)
	if err != nil {
		return nil, err
	}

	dests := make([]id.Destination, 0, len(m.Via))
	for i := len(m.Via) - 1; i >= 0; i-- {
		dests = append(dests, m.Via[i])
	}

	return &Message{
		Header: Header{
			Overlay:       m.Overlay,
			TTL:           DefaultTTL,
			Version:       Version,
			TransactionID: m.TransactionID,
			Destinations:  dests,
			Code:          body.Type(),
		},
		Payload: payload,
	}, nil
}

// MakeErrorResponse creates an Error answer to m.
func (m *Message) MakeErrorResponse(code ErrorCode, reason string) (*Message, error) {
	return m.MakeResponse(&ErrorResponse{
		Code:   code,
		Reason: reason,
	})
}

// String ...
func (m *Message) String() string {
	return fmt.Sprintf("%s tid=%016x ttl=%d via=%d dests=%v", m.Code, m.TransactionID, m.TTL, len(m.Via), m.Destinations)
}

// Encode serializes the message. The total length field is patched once the
// signature has been written.
func (m *Message) Encode() ([]byte, error) {
	e := wire.NewEncoder()

	e.WriteUint32(Token)
	e.WriteUint32(m.Overlay)
	e.WriteUint8(m.TTL)
	e.WriteUint8(m.Reserved)
	e.WriteUint16(m.Fragment)
	e.WriteUint8(m.Version)
	e.WriteUint24(0)
	e.WriteUint64(m.TransactionID)
	e.WriteUint16(m.Flags)
	if err := id.EncodeDestinations(e, m.Via, "via_list"); err != nil {
		return nil, err
	}
	if err := id.EncodeDestinations(e, m.Destinations, "destination_list"); err != nil {
		return nil, err
	}
	e.WriteUint16(m.RouteLogLen)
	e.WriteUint16(uint16(m.Code))

	if err := e.WriteOpaque(3, m.Payload, "payload"); err != nil {
		return nil, err
	}
	if err := m.Signature.Encode(e); err != nil {
		return nil, err
	}

	if e.Len() > MaxLength {
		return nil, wire.NewParseError("message", wire.ValueTooLong, fmt.Sprintf("%d bytes", e.Len()))
	}
	e.PatchUint24(lengthOffset, uint32(e.Len()))
	m.Length = uint32(e.Len())

	return e.Bytes(), nil
}

// FrameLength validates the first FrameHeaderLength bytes of a message and
// returns its total length.
func FrameLength(header []byte) (int, error) {
	d := wire.NewDecoder(header, "forwarding_header")
	token, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	if token != Token {
		return 0, wire.NewParseError("forwarding_header", wire.BadMagic, fmt.Sprintf("%08x", token))
	}
	if len(header) < FrameHeaderLength {
		return 0, wire.NewParseError("forwarding_header", wire.PrematureEnd, "")
	}
	length := int(header[lengthOffset])<<16 | int(header[lengthOffset+1])<<8 | int(header[lengthOffset+2])
	if length < FrameHeaderLength {
		return 0, wire.NewParseError("forwarding_header", wire.BadLength, fmt.Sprintf("%d", length))
	}
	return length, nil
}

// Decode parses a complete message. The length in the header must match the
// size of data.
func Decode(data []byte) (*Message, error) {
	length, err := FrameLength(data)
	if err != nil {
		return nil, err
	}
	if length != len(data) {
		return nil, wire.NewParseError("forwarding_header", wire.BadLength, fmt.Sprintf("header says %d, got %d", length, len(data)))
	}

	d := wire.NewDecoder(data, "message")
	m := &Message{}

	if _, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Overlay, err = d.ReadUint32(); err != nil {
		return nil, err
	}
	if m.TTL, err = d.ReadUint8(); err != nil {
		return nil, err
	}
	if m.Reserved, err = d.ReadUint8(); err != nil {
		return nil, err
	}
	if m.Fragment, err = d.ReadUint16(); err != nil {
		return nil, err
	}
	if m.Version, err = d.ReadUint8(); err != nil {
		return nil, err
	}
	if m.Length, err = d.ReadUint24(); err != nil {
		return nil, err
	}
	if m.TransactionID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if m.Flags, err = d.ReadUint16(); err != nil {
		return nil, err
	}
	if m.Via, err = id.DecodeDestinations(d, "via_list"); err != nil {
		return nil, err
	}
	if m.Destinations, err = id.DecodeDestinations(d, "destination_list"); err != nil {
		return nil, err
	}
	if m.RouteLogLen, err = d.ReadUint16(); err != nil {
		return nil, err
	}
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	m.Code = Type(code)
	if !m.Code.Known() {
		return nil, wire.NewParseError("message_code", wire.UnknownTag, fmt.Sprintf("%d", code))
	}
	if m.Payload, err = d.ReadOpaque(3); err != nil {
		return nil, err
	}
	if m.Signature, err = DecodeSignature(d); err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}

	return m, nil
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	c := *m
	c.Via = append([]id.Destination(nil), m.Via...)
	c.Destinations = append([]id.Destination(nil), m.Destinations...)
	c.Payload = append([]byte(nil), m.Payload...)
	return &c
}
