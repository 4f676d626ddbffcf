package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxKeySize is the maximum length of the contract-defined part of the key.
const MaxKeySize = 64

// ErrInvalidKey is returned for encoded keys shorter than the contract ID.
var ErrInvalidKey = errors.New("invalid storage key")

// Key identifies storage cell: contract ID plus contract-defined key bytes.
type Key struct {
	ID  int32
	Key []byte
}

// Bytes returns binary representation of the key: little-endian ID followed
// by the key bytes.
func (k Key) Bytes() []byte {
	return CreateSearchPrefix(k.ID, k.Key)
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("%d:%x", k.ID, k.Key)
}

// Equals checks whether keys are the same.
func (k Key) Equals(other Key) bool {
	return k.ID == other.ID && bytes.Equal(k.Key, other.Key)
}

// Compare compares keys by their binary representation.
func (k Key) Compare(other Key) int {
	return bytes.Compare(k.Bytes(), other.Bytes())
}

// KeyFromBytes decodes Key from its binary representation.
func KeyFromBytes(b []byte) (Key, error) {
	if len(b) < 4 {
		return Key{}, ErrInvalidKey
	}
	return Key{
		ID:  int32(binary.LittleEndian.Uint32(b)),
		Key: bytes.Clone(b[4:]),
	}, nil
}

// CreateSearchPrefix builds prefix for the range scan over contract's keys
// starting with prefix.
func CreateSearchPrefix(id int32, prefix []byte) []byte {
	b := make([]byte, 4+len(prefix))
	binary.LittleEndian.PutUint32(b, uint32(id))
	copy(b[4:], prefix)
	return b
}
