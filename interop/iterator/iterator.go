/*
Package iterator provides System.Iterator.* interop services.
*/
package iterator

import (
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/engine"
)

// Iterator is an interop value iterating over some sequence. Value must be
// called only after Next returned true.
type Iterator interface {
	Next() bool
	Value() (stackitem.Item, error)
}

// Next advances the iterator, it returns false when there are no more
// elements.
func Next(_ *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	it, err := engine.ToInterop[Iterator](args[0])
	if err != nil {
		return nil, err
	}
	return stackitem.NewBool(it.Next()), nil
}

// Value returns the current element of the iterator.
func Value(_ *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	it, err := engine.ToInterop[Iterator](args[0])
	if err != nil {
		return nil, err
	}
	return it.Value()
}
