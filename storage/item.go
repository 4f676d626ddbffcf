package storage

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/codec"
)

// Item is a value of storage cell. It's either raw bytes or a structured
// value (integer or stackitem.Convertible) which is serialized lazily. Only
// one of the forms is valid at the moment: reading raw bytes serializes the
// structured value and reading structured value deserializes bytes.
type Item struct {
	value []byte
	cache any
}

// NewItem creates Item with the given raw value.
func NewItem(value []byte) *Item {
	return &Item{value: value}
}

// NewIntItem creates Item holding an integer.
func NewIntItem(n *big.Int) *Item {
	return &Item{cache: n}
}

// NewConvertibleItem creates Item holding a structured value.
func NewConvertibleItem(c stackitem.Convertible) *Item {
	return &Item{cache: c}
}

// Bytes returns raw value of the item serializing cached value if needed.
func (i *Item) Bytes() ([]byte, error) {
	if i.value != nil || i.cache == nil {
		return i.value, nil
	}

	switch c := i.cache.(type) {
	case *big.Int:
		i.value = bigint.ToBytes(c)
	case stackitem.Convertible:
		si, err := c.ToStackItem()
		if err != nil {
			return nil, fmt.Errorf("convert structured value: %w", err)
		}
		i.value, err = codec.Serialize(si)
		if err != nil {
			return nil, fmt.Errorf("serialize structured value: %w", err)
		}
	}
	i.cache = nil
	return i.value, nil
}

// Len returns length of the raw value.
func (i *Item) Len() (int, error) {
	b, err := i.Bytes()
	return len(b), err
}

// Int returns integer value of the item decoding raw bytes if needed.
func (i *Item) Int() (*big.Int, error) {
	if n, ok := i.cache.(*big.Int); ok {
		return n, nil
	}
	b, err := i.Bytes()
	if err != nil {
		return nil, err
	}
	n := bigint.FromBytes(b)
	i.cache, i.value = n, nil
	return n, nil
}

// Convertible decodes structured value of the item into dst and caches it.
// Subsequent calls return the cached value in dst if it has the same type.
func (i *Item) Convertible(dst stackitem.Convertible) error {
	b, err := i.Bytes()
	if err != nil {
		return err
	}
	si, err := codec.Deserialize(b)
	if err != nil {
		return fmt.Errorf("deserialize structured value: %w", err)
	}
	err = dst.FromStackItem(si)
	if err != nil {
		return fmt.Errorf("decode structured value: %w", err)
	}
	i.cache, i.value = dst, nil
	return nil
}

// Set replaces the value of the item with raw bytes.
func (i *Item) Set(value []byte) {
	i.value, i.cache = value, nil
}

// SetInt replaces the value of the item with an integer.
func (i *Item) SetInt(n *big.Int) {
	i.value, i.cache = nil, n
}

// SetConvertible replaces the value of the item with a structured value.
func (i *Item) SetConvertible(c stackitem.Convertible) {
	i.value, i.cache = nil, c
}

// Seal serializes cached structured value and checks that it can be decoded
// back, the item can be persisted after that. Sealed item holds raw bytes
// only, later changes of the structured value don't affect it.
func (i *Item) Seal() error {
	_, isConvertible := i.cache.(stackitem.Convertible)
	b, err := i.Bytes()
	if err != nil || !isConvertible {
		return err
	}
	if _, err := codec.Deserialize(b); err != nil {
		return fmt.Errorf("sealed value can't be decoded: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the item in the raw form.
func (i *Item) Clone() *Item {
	b, err := i.Bytes()
	if err != nil {
		// Cached value that can't be serialized is kept shared, it's
		// going to fail on commit anyway.
		return &Item{cache: i.cache}
	}
	return &Item{value: bytes.Clone(b)}
}
