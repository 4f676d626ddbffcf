package vm

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// slot is a fixed-size storage of static fields, locals or arguments.
type slot struct {
	items []stackitem.Item
	refs  *refCounter
}

func newSlot(n int, refs *refCounter) *slot {
	s := &slot{items: make([]stackitem.Item, n), refs: refs}
	for i := range s.items {
		s.items[i] = stackitem.Null{}
	}
	refs.add(n)
	return s
}

func (s *slot) get(i int) (stackitem.Item, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: slot is not initialized", ErrSlot)
	}
	if i < 0 || i >= len(s.items) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrSlot, i, len(s.items))
	}
	return s.items[i], nil
}

func (s *slot) set(i int, item stackitem.Item) error {
	if s == nil {
		return fmt.Errorf("%w: slot is not initialized", ErrSlot)
	}
	if i < 0 || i >= len(s.items) {
		return fmt.Errorf("%w: index %d of %d", ErrSlot, i, len(s.items))
	}
	s.items[i] = item
	return nil
}

func (s *slot) release() {
	if s != nil {
		s.refs.add(-len(s.items))
		s.items = nil
	}
}
