package vm

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// refCounter counts items held by stacks and slots of the VM.
type refCounter int

func (r *refCounter) add(n int) {
	if r != nil {
		*r += refCounter(n)
	}
}

// Stack is an evaluation stack. Top of the stack has index 0 in all
// index-based methods.
type Stack struct {
	items []stackitem.Item
	refs  *refCounter
}

// NewStack creates a standalone Stack.
func NewStack() *Stack {
	return &Stack{}
}

func newStack(refs *refCounter) *Stack {
	return &Stack{refs: refs}
}

// Len returns the number of items on the stack.
func (s *Stack) Len() int {
	return len(s.items)
}

// Push puts item on top of the stack.
func (s *Stack) Push(item stackitem.Item) {
	s.items = append(s.items, item)
	s.refs.add(1)
}

// PushInt pushes an integer.
func (s *Stack) PushInt(n *big.Int) {
	s.Push(stackitem.NewBigInteger(n))
}

// PushBool pushes a boolean.
func (s *Stack) PushBool(b bool) {
	s.Push(stackitem.NewBool(b))
}

// Pop removes the top item.
func (s *Stack) Pop() (stackitem.Item, error) {
	if len(s.items) == 0 {
		return nil, ErrStackUnderflow
	}
	item := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	s.refs.add(-1)
	return item, nil
}

// Peek returns n-th item from the top.
func (s *Stack) Peek(n int) (stackitem.Item, error) {
	if n < 0 || n >= len(s.items) {
		return nil, fmt.Errorf("%w: peek %d of %d", ErrStackUnderflow, n, len(s.items))
	}
	return s.items[len(s.items)-1-n], nil
}

// Remove removes and returns n-th item from the top.
func (s *Stack) Remove(n int) (stackitem.Item, error) {
	if n < 0 || n >= len(s.items) {
		return nil, fmt.Errorf("%w: remove %d of %d", ErrStackUnderflow, n, len(s.items))
	}
	i := len(s.items) - 1 - n
	item := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.refs.add(-1)
	return item, nil
}

// Insert puts item at n-th position from the top.
func (s *Stack) Insert(n int, item stackitem.Item) error {
	if n < 0 || n > len(s.items) {
		return fmt.Errorf("%w: insert at %d of %d", ErrStackUnderflow, n, len(s.items))
	}
	i := len(s.items) - n
	s.items = append(s.items, nil)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = item
	s.refs.add(1)
	return nil
}

// Reverse reverses n top items.
func (s *Stack) Reverse(n int) error {
	if n < 0 || n > len(s.items) {
		return fmt.Errorf("%w: reverse %d of %d", ErrStackUnderflow, n, len(s.items))
	}
	top := s.items[len(s.items)-n:]
	for i, j := 0, len(top)-1; i < j; i, j = i+1, j-1 {
		top[i], top[j] = top[j], top[i]
	}
	return nil
}

// Clear removes all items.
func (s *Stack) Clear() {
	s.refs.add(-len(s.items))
	clear(s.items)
	s.items = s.items[:0]
}

// Items returns stack items from the bottom to the top. The returned slice
// must not be modified.
func (s *Stack) Items() []stackitem.Item {
	return s.items
}

// moveTo transfers all items to dst preserving their order.
func (s *Stack) moveTo(dst *Stack) {
	for _, item := range s.items {
		dst.Push(item)
	}
	s.Clear()
}

// PopInt pops an integer.
func (s *Stack) PopInt() (*big.Int, error) {
	item, err := s.Pop()
	if err != nil {
		return nil, err
	}
	n, err := item.TryInteger()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	return n, nil
}

// PopIndex pops an integer fitting into int32.
func (s *Stack) PopIndex() (int, error) {
	n, err := s.PopInt()
	if err != nil {
		return 0, err
	}
	if !n.IsInt64() || n.Int64() > 1<<31-1 || n.Int64() < -1<<31 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidIndex, n)
	}
	return int(n.Int64()), nil
}

// PopBool pops a boolean.
func (s *Stack) PopBool() (bool, error) {
	item, err := s.Pop()
	if err != nil {
		return false, err
	}
	b, err := item.TryBool()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	return b, nil
}

// PopBytes pops a primitive item or a buffer and returns its bytes.
func (s *Stack) PopBytes() ([]byte, error) {
	item, err := s.Pop()
	if err != nil {
		return nil, err
	}
	b, err := item.TryBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	return b, nil
}
