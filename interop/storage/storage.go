/*
Package storage provides System.Storage.* interop services.
*/
package storage

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/fee"
	"github.com/nspcc-dev/neoexec/storage"
)

// MaxValueSize is the maximum length of a stored value.
const MaxValueSize = 65535

// Errors returned by storage services.
var (
	ErrContractNotDeployed = errors.New("contract is not deployed")
	ErrReadOnlyContext     = errors.New("storage context is read-only")
	ErrKeyTooLong          = errors.New("storage key is too long")
	ErrValueTooLarge       = errors.New("storage value is too large")
)

// Context is a storage context of a contract.
type Context struct {
	ID       int32
	ReadOnly bool
}

func contractID(e *engine.Engine) (int32, error) {
	cs := e.CurrentState()
	if cs == nil {
		return 0, engine.ErrNoContext
	}
	if cs.Contract != nil {
		return cs.Contract.ID, nil
	}
	c, err := e.GetContract(cs.ScriptHash)
	if err != nil {
		if errors.Is(err, engine.ErrContractNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrContractNotDeployed, cs.ScriptHash.StringLE())
		}
		return 0, err
	}
	return c.ID, nil
}

func getContext(e *engine.Engine, readOnly bool) (*Context, error) {
	id, err := contractID(e)
	if err != nil {
		return nil, err
	}
	return &Context{ID: id, ReadOnly: readOnly}, nil
}

func toContext(item stackitem.Item) (*Context, error) {
	return engine.ToInterop[*Context](item)
}

// GetContext returns read-write storage context of the executing contract.
func GetContext(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	c, err := getContext(e, false)
	if err != nil {
		return nil, err
	}
	return stackitem.NewInterop(c), nil
}

// GetReadOnlyContext returns read-only storage context of the executing
// contract.
func GetReadOnlyContext(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	c, err := getContext(e, true)
	if err != nil {
		return nil, err
	}
	return stackitem.NewInterop(c), nil
}

// AsReadOnly converts the context to a read-only one.
func AsReadOnly(_ *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	c, err := toContext(args[0])
	if err != nil {
		return nil, err
	}
	if c.ReadOnly {
		return args[0], nil
	}
	return stackitem.NewInterop(&Context{ID: c.ID, ReadOnly: true}), nil
}

func get(e *engine.Engine, id int32, key []byte) (stackitem.Item, error) {
	it, err := e.Snapshot().TryGet(storage.Key{ID: id, Key: key})
	if err != nil {
		return nil, err
	}
	if it == nil {
		return stackitem.Null{}, nil
	}
	v, err := it.Bytes()
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray(v), nil
}

func find(e *engine.Engine, id int32, prefix []byte, optItem stackitem.Item) (stackitem.Item, error) {
	n, err := engine.ToInt64(optItem)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > 0xff {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOptions, n)
	}
	opts := FindOptions(n)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	items, err := e.Snapshot().Find(id, prefix, opts&FindBackwards != 0)
	if err != nil {
		return nil, err
	}
	return stackitem.NewInterop(NewIterator(items, len(prefix), opts)), nil
}

func put(e *engine.Engine, id int32, key, value []byte) error {
	if len(key) > storage.MaxKeySize {
		return fmt.Errorf("%w: %d", ErrKeyTooLong, len(key))
	}
	if len(value) > MaxValueSize {
		return fmt.Errorf("%w: %d", ErrValueTooLarge, len(value))
	}
	s := e.Snapshot()
	k := storage.Key{ID: id, Key: key}
	old, err := s.TryGet(k)
	if err != nil {
		return err
	}
	var oldValue []byte
	if old != nil {
		if oldValue, err = old.Bytes(); err != nil {
			return err
		}
	}
	size := fee.StorageWriteCost(len(key), oldValue, old == nil, value)
	if err := e.AddFee(size * e.StoragePrice()); err != nil {
		return err
	}
	return s.Put(k, storage.NewItem(value))
}

// Get returns the value stored by the key, Null if there is none.
func Get(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	c, err := toContext(args[0])
	if err != nil {
		return nil, err
	}
	key, err := engine.ToBytes(args[1])
	if err != nil {
		return nil, err
	}
	return get(e, c.ID, key)
}

// Find returns an iterator over items with keys starting with the prefix.
func Find(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	c, err := toContext(args[0])
	if err != nil {
		return nil, err
	}
	prefix, err := engine.ToBytes(args[1])
	if err != nil {
		return nil, err
	}
	return find(e, c.ID, prefix, args[2])
}

// Put stores the value by the key. The caller pays for new bytes only.
func Put(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	c, err := toContext(args[0])
	if err != nil {
		return nil, err
	}
	if c.ReadOnly {
		return nil, ErrReadOnlyContext
	}
	key, err := engine.ToBytes(args[1])
	if err != nil {
		return nil, err
	}
	value, err := engine.ToBytes(args[2])
	if err != nil {
		return nil, err
	}
	return nil, put(e, c.ID, key, value)
}

// Delete removes the key.
func Delete(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	c, err := toContext(args[0])
	if err != nil {
		return nil, err
	}
	if c.ReadOnly {
		return nil, ErrReadOnlyContext
	}
	key, err := engine.ToBytes(args[1])
	if err != nil {
		return nil, err
	}
	return nil, e.Snapshot().Delete(storage.Key{ID: c.ID, Key: key})
}

// LocalGet is Get for the executing contract storage.
func LocalGet(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	id, err := contractID(e)
	if err != nil {
		return nil, err
	}
	key, err := engine.ToBytes(args[0])
	if err != nil {
		return nil, err
	}
	return get(e, id, key)
}

// LocalFind is Find for the executing contract storage.
func LocalFind(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	id, err := contractID(e)
	if err != nil {
		return nil, err
	}
	prefix, err := engine.ToBytes(args[0])
	if err != nil {
		return nil, err
	}
	return find(e, id, prefix, args[1])
}

// LocalPut is Put for the executing contract storage.
func LocalPut(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	id, err := contractID(e)
	if err != nil {
		return nil, err
	}
	key, err := engine.ToBytes(args[0])
	if err != nil {
		return nil, err
	}
	value, err := engine.ToBytes(args[1])
	if err != nil {
		return nil, err
	}
	return nil, put(e, id, key, value)
}

// LocalDelete is Delete for the executing contract storage.
func LocalDelete(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	id, err := contractID(e)
	if err != nil {
		return nil, err
	}
	key, err := engine.ToBytes(args[0])
	if err != nil {
		return nil, err
	}
	return nil, e.Snapshot().Delete(storage.Key{ID: id, Key: key})
}
