/*
Package codec implements binary and JSON encodings of VM stack items.

Binary form is a pre-order sequence of type-tagged items where compound items
carry only the number of their elements. Both directions use explicit stacks,
so nesting depth of the value doesn't affect the Go call stack, and item count
together with total size limits are enforced while encoding progresses.
*/
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

const (
	// MaxSize is the default limit of the serialized data size in bytes.
	MaxSize = 1024 * 1024
	// MaxItems is the default limit of the number of items in a serialized
	// value.
	MaxItems = 2048
	// MaxIntegerSize is the maximum length of the integer representation in
	// bytes.
	MaxIntegerSize = 32
	// MaxKeySize is the maximum length of the map key in bytes.
	MaxKeySize = 64
)

// Errors returned by the codec.
var (
	ErrCircularReference = errors.New("circular reference")
	ErrTooManyItems      = errors.New("too many items")
	ErrTooLarge          = errors.New("too large")
	ErrUnserializable    = errors.New("unserializable item")
	ErrInvalidFormat     = errors.New("invalid format")
	ErrInvalidMapKey     = errors.New("invalid map key")
)

// Limits restricts encoded values.
type Limits struct {
	// MaxSize limits the size of encoded data in bytes.
	MaxSize int
	// MaxItems limits the number of items in the value including nested ones.
	MaxItems int
}

// DefaultLimits are the limits applied by Serialize and Deserialize.
var DefaultLimits = Limits{MaxSize: MaxSize, MaxItems: MaxItems}

// Serialize encodes item into the binary form using DefaultLimits.
func Serialize(item stackitem.Item) ([]byte, error) {
	return SerializeLimited(item, DefaultLimits)
}

// SerializeLimited encodes item into the binary form. Compound items
// referenced more than once make the encoding fail with ErrCircularReference.
func SerializeLimited(item stackitem.Item, l Limits) ([]byte, error) {
	var (
		w        = io.NewBufBinWriter()
		visited  = make(map[stackitem.Item]struct{})
		pending  = []stackitem.Item{item}
		maxItems = l.MaxItems
	)

	for len(pending) > 0 {
		maxItems--
		if maxItems < 0 {
			return nil, ErrTooManyItems
		}

		item = pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		switch t := item.(type) {
		case stackitem.Null:
			w.WriteB(byte(stackitem.AnyT))
		case stackitem.Bool:
			w.WriteB(byte(stackitem.BooleanT))
			w.WriteBool(bool(t))
		case *stackitem.BigInteger:
			w.WriteB(byte(stackitem.IntegerT))
			w.WriteVarBytes(bigint.ToBytes(t.Value().(*big.Int)))
		case *stackitem.ByteArray:
			w.WriteB(byte(stackitem.ByteArrayT))
			w.WriteVarBytes(t.Value().([]byte))
		case *stackitem.Buffer:
			w.WriteB(byte(stackitem.BufferT))
			w.WriteVarBytes(t.Value().([]byte))
		case *stackitem.Array, *stackitem.Struct:
			if _, ok := visited[item]; ok {
				return nil, ErrCircularReference
			}
			visited[item] = struct{}{}

			elems := item.Value().([]stackitem.Item)
			w.WriteB(byte(item.Type()))
			w.WriteVarUint(uint64(len(elems)))
			for i := len(elems) - 1; i >= 0; i-- {
				pending = append(pending, elems[i])
			}
		case *stackitem.Map:
			if _, ok := visited[item]; ok {
				return nil, ErrCircularReference
			}
			visited[item] = struct{}{}

			elems := t.Value().([]stackitem.MapElement)
			w.WriteB(byte(stackitem.MapT))
			w.WriteVarUint(uint64(len(elems)))
			for i := len(elems) - 1; i >= 0; i-- {
				pending = append(pending, elems[i].Value, elems[i].Key)
			}
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnserializable, item.Type())
		}

		if w.Err != nil {
			return nil, w.Err
		}
		if w.Len() > l.MaxSize {
			return nil, ErrTooLarge
		}
	}

	return w.Bytes(), nil
}

// placeholder stands for a compound item until all its elements are decoded.
type placeholder struct {
	typ   stackitem.Type
	count int
}

// Deserialize decodes binary data using DefaultLimits.
func Deserialize(data []byte) (stackitem.Item, error) {
	return DeserializeLimited(data, DefaultLimits)
}

// DeserializeLimited decodes binary data produced by SerializeLimited. The data
// must contain exactly one item.
func DeserializeLimited(data []byte, l Limits) (stackitem.Item, error) {
	if len(data) > l.MaxSize {
		return nil, ErrTooLarge
	}

	var (
		buf      = bytes.NewReader(data)
		r        = io.NewBinReaderFromIO(buf)
		decoded  []any
		expected = 1
	)

	for ; expected > 0; expected-- {
		typ := stackitem.Type(r.ReadB())
		if r.Err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, r.Err)
		}

		switch typ {
		case stackitem.AnyT:
			decoded = append(decoded, stackitem.Null{})
		case stackitem.BooleanT:
			decoded = append(decoded, stackitem.NewBool(r.ReadBool()))
		case stackitem.IntegerT:
			b := r.ReadVarBytes(MaxIntegerSize)
			decoded = append(decoded, stackitem.NewBigInteger(bigint.FromBytes(b)))
		case stackitem.ByteArrayT:
			decoded = append(decoded, stackitem.NewByteArray(r.ReadVarBytes(l.MaxSize)))
		case stackitem.BufferT:
			decoded = append(decoded, stackitem.NewBuffer(r.ReadVarBytes(l.MaxSize)))
		case stackitem.ArrayT, stackitem.StructT, stackitem.MapT:
			n := r.ReadVarUint()
			if n > uint64(l.MaxItems) {
				return nil, ErrTooManyItems
			}
			decoded = append(decoded, placeholder{typ: typ, count: int(n)})
			if typ == stackitem.MapT {
				expected += 2 * int(n)
			} else {
				expected += int(n)
			}
		default:
			return nil, fmt.Errorf("%w: unknown type %d", ErrInvalidFormat, typ)
		}

		if r.Err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, r.Err)
		}
		if len(decoded) > l.MaxItems {
			return nil, ErrTooManyItems
		}
	}
	if buf.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidFormat, buf.Len())
	}

	var built []stackitem.Item
	pop := func() stackitem.Item {
		it := built[len(built)-1]
		built = built[:len(built)-1]
		return it
	}

	for i := len(decoded) - 1; i >= 0; i-- {
		p, ok := decoded[i].(placeholder)
		if !ok {
			built = append(built, decoded[i].(stackitem.Item))
			continue
		}

		switch p.typ {
		case stackitem.ArrayT, stackitem.StructT:
			elems := make([]stackitem.Item, p.count)
			for j := range elems {
				elems[j] = pop()
			}
			if p.typ == stackitem.ArrayT {
				built = append(built, stackitem.NewArray(elems))
			} else {
				built = append(built, stackitem.NewStruct(elems))
			}
		case stackitem.MapT:
			m := stackitem.NewMap()
			for j := 0; j < p.count; j++ {
				k, v := pop(), pop()
				if err := CheckMapKey(k); err != nil {
					return nil, err
				}
				m.Add(k, v)
			}
			built = append(built, m)
		}
	}

	return built[0], nil
}

// CheckMapKey checks that item can be used as a map key: it must be a
// primitive item not longer than MaxKeySize bytes.
func CheckMapKey(key stackitem.Item) error {
	switch key.(type) {
	case stackitem.Bool, *stackitem.BigInteger:
		return nil
	case *stackitem.ByteArray:
		if len(key.Value().([]byte)) > MaxKeySize {
			return fmt.Errorf("%w: key is too big", ErrInvalidMapKey)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMapKey, key.Type())
	}
}
