package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/mosaicnetworks/reload/src/crypto"
)

// ErrBadSignature is returned by VerifyBytes when a signature does not match.
var ErrBadSignature = errors.New("invalid signature")

// Sign signs the SHA-256 digest of data with the private key.
func Sign(priv *ecdsa.PrivateKey, data []byte) (r, s *big.Int, err error) {
	return ecdsa.Sign(rand.Reader, priv, crypto.SHA256(data))
}

// Verify checks that r and s are a signature of the SHA-256 digest of data by
// the owner of pub.
func Verify(pub *ecdsa.PublicKey, data []byte, r, s *big.Int) bool {
	return ecdsa.Verify(pub, crypto.SHA256(data), r, s)
}

// EncodeSignature concatenates r and s, each left padded to 32 bytes.
func EncodeSignature(r, s *big.Int) []byte {
	out := make([]byte, 2*coordLen)
	r.FillBytes(out[:coordLen])
	s.FillBytes(out[coordLen:])
	return out
}

// DecodeSignature splits the output of EncodeSignature.
func DecodeSignature(sig []byte) (r, s *big.Int, err error) {
	if len(sig) != 2*coordLen {
		return nil, nil, ErrBadSignature
	}
	r = new(big.Int).SetBytes(sig[:coordLen])
	s = new(big.Int).SetBytes(sig[coordLen:])
	return r, s, nil
}

// SignBytes signs data and returns the encoded signature.
func SignBytes(priv *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	r, s, err := Sign(priv, data)
	if err != nil {
		return nil, err
	}
	return EncodeSignature(r, s), nil
}

// VerifyBytes checks an encoded signature of data against the uncompressed
// public key pub.
func VerifyBytes(pub []byte, data []byte, sig []byte) error {
	key := ToPublicKey(pub)
	if key == nil {
		return errors.New("invalid public key")
	}
	r, s, err := DecodeSignature(sig)
	if err != nil {
		return err
	}
	if !Verify(key, data, r, s) {
		return ErrBadSignature
	}
	return nil
}
