/*
Package crypto verifies ECDSA signatures over the curves and hash functions
accessible from contracts.
*/
package crypto

import (
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"golang.org/x/crypto/sha3"
)

// Curve selects elliptic curve.
type Curve byte

// Supported curves.
const (
	Secp256k1 Curve = 0x16
	Secp256r1 Curve = 0x17
)

// Hash selects hash function applied to the message before verification.
type Hash byte

// Supported hash functions.
const (
	SHA256    Hash = 0x00
	Keccak256 Hash = 0x01
)

// SignatureLen is the length of r||s signature.
const SignatureLen = 64

// Valid checks whether the curve is supported.
func (c Curve) Valid() bool {
	return c == Secp256k1 || c == Secp256r1
}

func (c Curve) elliptic() elliptic.Curve {
	if c == Secp256k1 {
		return secp256k1.S256()
	}
	return elliptic.P256()
}

// String implements fmt.Stringer.
func (c Curve) String() string {
	switch c {
	case Secp256k1:
		return "secp256k1"
	case Secp256r1:
		return "secp256r1"
	default:
		return fmt.Sprintf("unknown curve %d", byte(c))
	}
}

// Valid checks whether the hash function is supported.
func (h Hash) Valid() bool {
	return h == SHA256 || h == Keccak256
}

// Digest hashes the message with the selected function.
func (h Hash) Digest(msg []byte) ([]byte, error) {
	switch h {
	case SHA256:
		d := sha256.Sum256(msg)
		return d[:], nil
	case Keccak256:
		k := sha3.NewLegacyKeccak256()
		k.Write(msg)
		return k.Sum(nil), nil
	default:
		return nil, fmt.Errorf("unknown hash function %d", byte(h))
	}
}

// DecodePublicKey decodes compressed or uncompressed public key on the
// selected curve.
func DecodePublicKey(pub []byte, c Curve) (*keys.PublicKey, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unsupported curve %d", byte(c))
	}
	return keys.NewPublicKeyFromBytes(pub, c.elliptic())
}

// VerifySignature checks signature of the message hashed with h made by
// the key on curve c. It never fails: any malformed input yields false.
func VerifySignature(message, signature, pub []byte, c Curve, h Hash) bool {
	digest, err := h.Digest(message)
	if err != nil {
		return false
	}
	return VerifyDigest(digest, signature, pub, c)
}

// VerifyDigest is VerifySignature for the already hashed message.
func VerifyDigest(digest, signature, pub []byte, c Curve) bool {
	if len(signature) != SignatureLen {
		return false
	}
	pk, err := DecodePublicKey(pub, c)
	if err != nil {
		return false
	}
	return pk.Verify(signature, digest)
}
