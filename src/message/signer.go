package message

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/mosaicnetworks/reload/src/crypto/keys"
	"github.com/mosaicnetworks/reload/src/id"
)

// ErrUnsigned is returned when verifying a message that carries no signature.
var ErrUnsigned = errors.New("message is not signed")

// ECDSASigner signs with a secp256k1 key and names the signer by its public
// key.
type ECDSASigner struct {
	key *ecdsa.PrivateKey
	pub []byte
}

// NewECDSASigner ...
func NewECDSASigner(key *ecdsa.PrivateKey) *ECDSASigner {
	return &ECDSASigner{
		key: key,
		pub: keys.FromPublicKey(&key.PublicKey),
	}
}

// Sign implements Signer.
func (s *ECDSASigner) Sign(data []byte) (Signature, error) {
	value, err := keys.SignBytes(s.key, data)
	if err != nil {
		return Signature{}, err
	}
	return Signature{
		Algorithm: SignatureAndHashAlgorithm{
			Signature: SigAlgorithmECDSA,
			Hash:      HashAlgorithmSHA256,
		},
		Identity: SignerIdentity{
			Type:     IdentityPublicKey,
			Identity: s.pub,
		},
		Value: value,
	}, nil
}

// NodeIDSigner produces unsigned blocks that only name the sending node.
type NodeIDSigner struct {
	Node id.NodeID
}

// Sign implements Signer.
func (s NodeIDSigner) Sign(data []byte) (Signature, error) {
	return Signature{
		Identity: SignerIdentity{
			Type:     IdentityNodeID,
			Identity: s.Node.Bytes(),
		},
	}, nil
}

// ECDSAVerifier checks signatures whose identity carries a public key.
type ECDSAVerifier struct{}

// Verify implements Verifier.
func (ECDSAVerifier) Verify(data []byte, sig Signature) error {
	if !sig.IsSigned() {
		return ErrUnsigned
	}
	if sig.Algorithm.Signature != SigAlgorithmECDSA || sig.Algorithm.Hash != HashAlgorithmSHA256 {
		return fmt.Errorf("unsupported signature algorithm %d/%d", sig.Algorithm.Signature, sig.Algorithm.Hash)
	}
	if sig.Identity.Type != IdentityPublicKey {
		return fmt.Errorf("unsupported signer identity %d", sig.Identity.Type)
	}
	return keys.VerifyBytes(sig.Identity.Identity, data, sig.Value)
}
