package message

import (
	"bytes"

	"github.com/mosaicnetworks/reload/src/wire"
)

// Signature algorithm identifiers, using the TLS registry values.
const (
	SigAlgorithmNone  uint8 = 0
	SigAlgorithmECDSA uint8 = 3

	HashAlgorithmNone   uint8 = 0
	HashAlgorithmSHA256 uint8 = 4
)

// IdentityType describes the content of a SignerIdentity.
type IdentityType uint8

const (
	// IdentityNone carries no identity.
	IdentityNone IdentityType = 0
	// IdentityNodeID carries the 16 byte NodeID of the signer. It is used by
	// unsigned messages so that the sender can still be named.
	IdentityNodeID IdentityType = 1
	// IdentityPublicKey carries the uncompressed public key of the signer.
	IdentityPublicKey IdentityType = 3
)

// SignatureAndHashAlgorithm ...
type SignatureAndHashAlgorithm struct {
	Signature uint8
	Hash      uint8
}

// SignerIdentity names whoever produced a Signature.
type SignerIdentity struct {
	Type     IdentityType
	Identity []byte
}

// Signature is the detached signature block appended to messages and stored
// data.
type Signature struct {
	Algorithm SignatureAndHashAlgorithm
	Identity  SignerIdentity
	Value     []byte
}

// IsSigned reports whether the signature carries a value.
func (s Signature) IsSigned() bool {
	return s.Algorithm.Signature != SigAlgorithmNone && len(s.Value) > 0
}

// Equal ...
func (s Signature) Equal(o Signature) bool {
	return s.Algorithm == o.Algorithm &&
		s.Identity.Type == o.Identity.Type &&
		bytes.Equal(s.Identity.Identity, o.Identity.Identity) &&
		bytes.Equal(s.Value, o.Value)
}

// Encode ...
func (s Signature) Encode(e *wire.Encoder) error {
	e.WriteUint8(s.Algorithm.Signature)
	e.WriteUint8(s.Algorithm.Hash)
	e.WriteUint8(uint8(s.Identity.Type))
	if err := e.WriteOpaque(2, s.Identity.Identity, "SignerIdentity"); err != nil {
		return err
	}
	return e.WriteOpaque(2, s.Value, "Signature")
}

// DecodeSignature ...
func DecodeSignature(d *wire.Decoder) (Signature, error) {
	var s Signature
	var err error

	if s.Algorithm.Signature, err = d.ReadUint8(); err != nil {
		return s, err
	}
	if s.Algorithm.Hash, err = d.ReadUint8(); err != nil {
		return s, err
	}
	t, err := d.ReadUint8()
	if err != nil {
		return s, err
	}
	s.Identity.Type = IdentityType(t)
	if s.Identity.Identity, err = d.ReadOpaque(2); err != nil {
		return s, err
	}
	if s.Value, err = d.ReadOpaque(2); err != nil {
		return s, err
	}
	return s, nil
}

// Signer produces signatures over message data.
type Signer interface {
	Sign(data []byte) (Signature, error)
}

// Verifier checks signatures produced by a Signer.
type Verifier interface {
	Verify(data []byte, sig Signature) error
}
