package engine

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// Helpers unpacking handler arguments.

// ToInt64 returns the integer value of the item.
func ToInt64(item stackitem.Item) (int64, error) {
	n, err := item.TryInteger()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("%w: %s doesn't fit into int64", ErrInvalidArgument, n)
	}
	return n.Int64(), nil
}

// ToBytes returns bytes of a primitive item or buffer, nil for Null.
func ToBytes(item stackitem.Item) ([]byte, error) {
	if isNull(item) {
		return nil, nil
	}
	b, err := item.TryBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return b, nil
}

// ToString returns the string value of the item.
func ToString(item stackitem.Item) (string, error) {
	b, err := ToBytes(item)
	return string(b), err
}

// ToBool returns the boolean value of the item.
func ToBool(item stackitem.Item) (bool, error) {
	b, err := item.TryBool()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return b, nil
}

// ToUint160 decodes a 20-byte hash in big-endian form.
func ToUint160(item stackitem.Item) (util.Uint160, error) {
	b, err := ToBytes(item)
	if err != nil {
		return util.Uint160{}, err
	}
	h, err := util.Uint160DecodeBytesBE(b)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return h, nil
}

// ToInterop returns the value wrapped into an interop item.
func ToInterop[T any](item stackitem.Item) (T, error) {
	var zero T
	it, ok := item.(*stackitem.Interop)
	if !ok {
		return zero, fmt.Errorf("%w: interop interface expected, got %s", ErrInvalidArgument, item.Type())
	}
	v, ok := it.Value().(T)
	if !ok {
		return zero, fmt.Errorf("%w: unexpected interop value %T", ErrInvalidArgument, it.Value())
	}
	return v, nil
}

// ToArray returns elements of an array or struct item.
func ToArray(item stackitem.Item) ([]stackitem.Item, error) {
	switch t := item.(type) {
	case *stackitem.Array, *stackitem.Struct:
		return t.Value().([]stackitem.Item), nil
	}
	return nil, fmt.Errorf("%w: array expected, got %s", ErrInvalidArgument, item.Type())
}
