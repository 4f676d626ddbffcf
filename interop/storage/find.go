package storage

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/codec"
	"github.com/nspcc-dev/neoexec/storage"
)

// FindOptions control results of System.Storage.Find.
type FindOptions byte

// Find options.
const (
	FindDefault           FindOptions = 0
	FindKeysOnly          FindOptions = 1 << 0
	FindRemovePrefix      FindOptions = 1 << 1
	FindValuesOnly        FindOptions = 1 << 2
	FindDeserializeValues FindOptions = 1 << 3
	FindPickField0        FindOptions = 1 << 4
	FindPickField1        FindOptions = 1 << 5
	FindBackwards         FindOptions = 1 << 7

	FindAll = FindKeysOnly | FindRemovePrefix | FindValuesOnly | FindDeserializeValues |
		FindPickField0 | FindPickField1 | FindBackwards
)

// ErrInvalidOptions is returned for unknown or conflicting find options.
var ErrInvalidOptions = errors.New("invalid find options")

// Validate checks that options are known and don't conflict.
func (o FindOptions) Validate() error {
	has := func(f FindOptions) bool { return o&f != 0 }
	switch {
	case o&^FindAll != 0:
		return fmt.Errorf("%w: unknown flags 0x%02x", ErrInvalidOptions, byte(o&^FindAll))
	case has(FindKeysOnly) && (has(FindValuesOnly) || has(FindDeserializeValues) || has(FindPickField0) || has(FindPickField1)):
		return fmt.Errorf("%w: KeysOnly can't be combined with value options", ErrInvalidOptions)
	case has(FindValuesOnly) && has(FindRemovePrefix):
		return fmt.Errorf("%w: ValuesOnly can't be combined with RemovePrefix", ErrInvalidOptions)
	case has(FindPickField0) && has(FindPickField1):
		return fmt.Errorf("%w: PickField0 can't be combined with PickField1", ErrInvalidOptions)
	case (has(FindPickField0) || has(FindPickField1)) && !has(FindDeserializeValues):
		return fmt.Errorf("%w: PickField requires DeserializeValues", ErrInvalidOptions)
	}
	return nil
}

// Iterator iterates over found storage items. It holds a copy of the result
// set, later storage changes are not visible.
type Iterator struct {
	items     []storage.KeyValue
	index     int
	prefixLen int
	opts      FindOptions
}

// NewIterator creates an Iterator over items found by the prefix of the
// given length.
func NewIterator(items []storage.KeyValue, prefixLen int, opts FindOptions) *Iterator {
	return &Iterator{items: items, index: -1, prefixLen: prefixLen, opts: opts}
}

// Next implements iterator.Iterator.
func (it *Iterator) Next() bool {
	if it.index < len(it.items) {
		it.index++
	}
	return it.index < len(it.items)
}

// Value implements iterator.Iterator.
func (it *Iterator) Value() (stackitem.Item, error) {
	if it.index < 0 || it.index >= len(it.items) {
		return nil, errors.New("iterator is not positioned at an element")
	}
	kv := it.items[it.index]
	key := kv.Key.Key
	if it.opts&FindRemovePrefix != 0 {
		key = key[it.prefixLen:]
	}
	if it.opts&FindKeysOnly != 0 {
		return stackitem.NewByteArray(key), nil
	}

	raw, err := kv.Item.Bytes()
	if err != nil {
		return nil, err
	}
	var value stackitem.Item = stackitem.NewByteArray(raw)
	if it.opts&FindDeserializeValues != 0 {
		if value, err = codec.Deserialize(raw); err != nil {
			return nil, fmt.Errorf("deserialize value: %w", err)
		}
	}
	if it.opts&(FindPickField0|FindPickField1) != 0 {
		arr, ok := value.Value().([]stackitem.Item)
		if !ok {
			return nil, fmt.Errorf("can't pick field of %s", value.Type())
		}
		i := 0
		if it.opts&FindPickField1 != 0 {
			i = 1
		}
		if i >= len(arr) {
			return nil, fmt.Errorf("can't pick field %d of %d", i, len(arr))
		}
		value = arr[i]
	}
	if it.opts&FindValuesOnly != 0 {
		return value, nil
	}
	return stackitem.NewStruct([]stackitem.Item{stackitem.NewByteArray(key), value}), nil
}
