package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"

	"github.com/mosaicnetworks/reload/src/common"
	"github.com/mosaicnetworks/reload/src/crypto"
	"github.com/mosaicnetworks/reload/src/id"
)

var errInvalidPublicKey = errors.New("invalid public key")

// ToPublicKey parses the uncompressed form of a point on Curve(), as returned
// by FromPublicKey. It returns nil if pub is not a valid point.
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(Curve(), pub)
	if x == nil {
		return nil
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// FromPublicKey returns the uncompressed form of the public key.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// PublicKeyHex returns the 0X prefixed, uppercase hexadecimal representation
// of the uncompressed public key.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}

// ParsePublicKeyHex parses the output of PublicKeyHex.
func ParsePublicKeyHex(s string) (*ecdsa.PublicKey, error) {
	raw, err := common.DecodeFromString(s)
	if err != nil {
		return nil, err
	}
	pub := ToPublicKey(raw)
	if pub == nil {
		return nil, errInvalidPublicKey
	}
	return pub, nil
}

// NodeID derives a ring position from the SHA-256 hash of the uncompressed
// public key.
func NodeID(pub *ecdsa.PublicKey) id.NodeID {
	return id.FromBytes(crypto.SHA256(FromPublicKey(pub)))
}
