package vm

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/codec"
)

// cloneStruct copies s and all nested structs.
func cloneStruct(s *stackitem.Struct) (*stackitem.Struct, error) {
	count := MaxStackSize - 1
	return cloneStructLimited(s, &count)
}

func cloneStructLimited(s *stackitem.Struct, limit *int) (*stackitem.Struct, error) {
	src := s.Value().([]stackitem.Item)
	items := make([]stackitem.Item, len(src))
	for i, item := range src {
		*limit--
		if *limit < 0 {
			return nil, fmt.Errorf("%w: struct is too big to clone", ErrStackOverflow)
		}
		if nested, ok := item.(*stackitem.Struct); ok {
			c, err := cloneStructLimited(nested, limit)
			if err != nil {
				return nil, err
			}
			item = c
		}
		items[i] = item
	}
	return stackitem.NewStruct(items), nil
}

// copyValue returns the value stored into a compound item.
func copyValue(item stackitem.Item) (stackitem.Item, error) {
	if s, ok := item.(*stackitem.Struct); ok {
		return cloneStruct(s)
	}
	return item, nil
}

func popKey(s *Stack) (stackitem.Item, error) {
	key, err := s.Pop()
	if err != nil {
		return nil, err
	}
	if err := codec.CheckMapKey(key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	return key, nil
}

func checkSize(n int) error {
	if n > MaxStackSize {
		return fmt.Errorf("%w: %d elements", ErrStackOverflow, n)
	}
	return nil
}

func opPackMap(_ *VM, ctx *Context, _ Instruction) error {
	n, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	if n*2 > ctx.estack.Len() {
		return ErrStackUnderflow
	}
	m := stackitem.NewMap()
	for range n {
		key, err := popKey(ctx.estack)
		if err != nil {
			return err
		}
		value, err := ctx.estack.Pop()
		if err != nil {
			return err
		}
		m.Add(key, value)
	}
	ctx.estack.Push(m)
	return nil
}

func opPack(_ *VM, ctx *Context, instr Instruction) error {
	n, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	if n > ctx.estack.Len() {
		return ErrStackUnderflow
	}
	items := make([]stackitem.Item, n)
	for i := range items {
		if items[i], err = ctx.estack.Pop(); err != nil {
			return err
		}
	}
	if instr.Op == opcode.PACKSTRUCT {
		ctx.estack.Push(stackitem.NewStruct(items))
	} else {
		ctx.estack.Push(stackitem.NewArray(items))
	}
	return nil
}

func opUnpack(_ *VM, ctx *Context, _ Instruction) error {
	item, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	switch t := item.(type) {
	case *stackitem.Map:
		elems := t.Value().([]stackitem.MapElement)
		for i := len(elems) - 1; i >= 0; i-- {
			ctx.estack.Push(elems[i].Value)
			ctx.estack.Push(elems[i].Key)
		}
		ctx.estack.PushInt(big.NewInt(int64(len(elems))))
	case *stackitem.Array, *stackitem.Struct:
		elems := t.Value().([]stackitem.Item)
		for i := len(elems) - 1; i >= 0; i-- {
			ctx.estack.Push(elems[i])
		}
		ctx.estack.PushInt(big.NewInt(int64(len(elems))))
	default:
		return fmt.Errorf("%w: %s can't be unpacked", ErrInvalidType, item.Type())
	}
	return nil
}

func opNewEmpty(_ *VM, ctx *Context, instr Instruction) error {
	switch instr.Op {
	case opcode.NEWARRAY0:
		ctx.estack.Push(stackitem.NewArray([]stackitem.Item{}))
	case opcode.NEWSTRUCT0:
		ctx.estack.Push(stackitem.NewStruct([]stackitem.Item{}))
	default:
		ctx.estack.Push(stackitem.NewMap())
	}
	return nil
}

func newFilled(n int, item func() stackitem.Item) []stackitem.Item {
	items := make([]stackitem.Item, n)
	for i := range items {
		items[i] = item()
	}
	return items
}

func opNewArray(_ *VM, ctx *Context, instr Instruction) error {
	n, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	if err := checkSize(n); err != nil {
		return err
	}
	items := newFilled(n, func() stackitem.Item { return stackitem.Null{} })
	if instr.Op == opcode.NEWSTRUCT {
		ctx.estack.Push(stackitem.NewStruct(items))
	} else {
		ctx.estack.Push(stackitem.NewArray(items))
	}
	return nil
}

func opNewArrayT(_ *VM, ctx *Context, instr Instruction) error {
	n, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	if err := checkSize(n); err != nil {
		return err
	}
	typ := stackitem.Type(instr.TokenU8())
	if !validType(typ) {
		return fmt.Errorf("%w: 0x%02x", ErrInvalidType, byte(typ))
	}
	var item func() stackitem.Item
	switch typ {
	case stackitem.BooleanT:
		item = func() stackitem.Item { return stackitem.NewBool(false) }
	case stackitem.IntegerT:
		item = func() stackitem.Item { return stackitem.NewBigInteger(big.NewInt(0)) }
	case stackitem.ByteArrayT:
		item = func() stackitem.Item { return stackitem.NewByteArray([]byte{}) }
	default:
		item = func() stackitem.Item { return stackitem.Null{} }
	}
	ctx.estack.Push(stackitem.NewArray(newFilled(n, item)))
	return nil
}

func opSize(_ *VM, ctx *Context, _ Instruction) error {
	item, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	var n int
	switch t := item.(type) {
	case *stackitem.Map:
		n = t.Len()
	case *stackitem.Array, *stackitem.Struct:
		n = len(t.Value().([]stackitem.Item))
	default:
		b, err := item.TryBytes()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidType, err)
		}
		n = len(b)
	}
	ctx.estack.PushInt(big.NewInt(int64(n)))
	return nil
}

func hasKey(ctx *Context, negativeFault bool) error {
	key, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	x, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	if m, ok := x.(*stackitem.Map); ok {
		if err := codec.CheckMapKey(key); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidType, err)
		}
		ctx.estack.PushBool(m.Has(key))
		return nil
	}
	n, err := itemLen(x)
	if err != nil {
		return err
	}
	idx, err := key.TryInteger()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	if idx.Sign() < 0 {
		if negativeFault {
			return fmt.Errorf("%w: negative index %s", ErrInvalidIndex, idx)
		}
		ctx.estack.PushBool(false)
		return nil
	}
	ctx.estack.PushBool(idx.Cmp(big.NewInt(int64(n))) < 0)
	return nil
}

func opHasKey(_ *VM, ctx *Context, _ Instruction) error {
	return hasKey(ctx, true)
}

// opHasKeyLegacy reports false for negative indices.
func opHasKeyLegacy(_ *VM, ctx *Context, _ Instruction) error {
	return hasKey(ctx, false)
}

// itemLen returns the length of an indexable item.
func itemLen(x stackitem.Item) (int, error) {
	switch t := x.(type) {
	case *stackitem.Array, *stackitem.Struct:
		return len(t.Value().([]stackitem.Item)), nil
	case *stackitem.Buffer, *stackitem.ByteArray:
		b, _ := t.TryBytes()
		return len(b), nil
	}
	return 0, fmt.Errorf("%w: %s is not indexable", ErrInvalidType, x.Type())
}

func opKeys(_ *VM, ctx *Context, _ Instruction) error {
	item, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	m, ok := item.(*stackitem.Map)
	if !ok {
		return fmt.Errorf("%w: map expected, got %s", ErrInvalidType, item.Type())
	}
	elems := m.Value().([]stackitem.MapElement)
	keys := make([]stackitem.Item, len(elems))
	for i := range elems {
		keys[i] = elems[i].Key
	}
	ctx.estack.Push(stackitem.NewArray(keys))
	return nil
}

func opValues(_ *VM, ctx *Context, _ Instruction) error {
	item, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	var src []stackitem.Item
	switch t := item.(type) {
	case *stackitem.Map:
		for _, e := range t.Value().([]stackitem.MapElement) {
			src = append(src, e.Value)
		}
	case *stackitem.Array, *stackitem.Struct:
		src = t.Value().([]stackitem.Item)
	default:
		return fmt.Errorf("%w: %s has no values", ErrInvalidType, item.Type())
	}
	values := make([]stackitem.Item, len(src))
	for i := range src {
		if values[i], err = copyValue(src[i]); err != nil {
			return err
		}
	}
	ctx.estack.Push(stackitem.NewArray(values))
	return nil
}

// pickItem gets an element by key, missing elements are reported as nil.
func pickItem(ctx *Context) (stackitem.Item, error) {
	key, err := ctx.estack.Pop()
	if err != nil {
		return nil, err
	}
	x, err := ctx.estack.Pop()
	if err != nil {
		return nil, err
	}
	if m, ok := x.(*stackitem.Map); ok {
		if err := codec.CheckMapKey(key); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidType, err)
		}
		i := m.Index(key)
		if i < 0 {
			return nil, nil
		}
		return m.Value().([]stackitem.MapElement)[i].Value, nil
	}
	idx, err := key.TryInteger()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	switch t := x.(type) {
	case *stackitem.Array, *stackitem.Struct:
		items := t.Value().([]stackitem.Item)
		if idx.Sign() < 0 || idx.Cmp(big.NewInt(int64(len(items)))) >= 0 {
			return nil, nil
		}
		return items[idx.Int64()], nil
	default:
		b, err := x.TryBytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidType, err)
		}
		if idx.Sign() < 0 || idx.Cmp(big.NewInt(int64(len(b)))) >= 0 {
			return nil, fmt.Errorf("%w: byte %s of %d", ErrInvalidIndex, idx, len(b))
		}
		return stackitem.NewBigInteger(big.NewInt(int64(b[idx.Int64()]))), nil
	}
}

// opPickItem raises missing keys and out of range indices as exceptions.
func opPickItem(_ *VM, ctx *Context, _ Instruction) error {
	item, err := pickItem(ctx)
	if isIndexError(err) {
		return catchable(err)
	}
	if err != nil {
		return err
	}
	if item == nil {
		return catchable(ErrKeyNotFound)
	}
	ctx.estack.Push(item)
	return nil
}

// opPickItemLegacy pushes Null for missing map keys and array indices.
func opPickItemLegacy(_ *VM, ctx *Context, _ Instruction) error {
	item, err := pickItem(ctx)
	if err != nil {
		return err
	}
	if item == nil {
		item = stackitem.Null{}
	}
	ctx.estack.Push(item)
	return nil
}

func opAppend(_ *VM, ctx *Context, _ Instruction) error {
	item, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	x, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	if item, err = copyValue(item); err != nil {
		return err
	}
	switch t := x.(type) {
	case *stackitem.Array:
		if err := checkSize(t.Len() + 1); err != nil {
			return err
		}
		t.Append(item)
	case *stackitem.Struct:
		if err := checkSize(t.Len() + 1); err != nil {
			return err
		}
		t.Append(item)
	default:
		return fmt.Errorf("%w: can't append to %s", ErrInvalidType, x.Type())
	}
	return nil
}

// setItem stores the value into the compound item. With catchIndex out of
// range indices are raised as exceptions.
func setItem(ctx *Context, strictByte, catchIndex bool) error {
	value, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	key, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	x, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	if value, err = copyValue(value); err != nil {
		return err
	}
	switch t := x.(type) {
	case *stackitem.Map:
		if err := codec.CheckMapKey(key); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidType, err)
		}
		if t.Index(key) < 0 {
			if err := checkSize(t.Len() + 1); err != nil {
				return err
			}
		}
		t.Add(key, value)
		return nil
	case *stackitem.Array, *stackitem.Struct:
		items := t.Value().([]stackitem.Item)
		i, err := elementIndex(key, len(items))
		if err != nil {
			return indexFailure(err, catchIndex)
		}
		items[i] = value
		return nil
	case *stackitem.Buffer:
		b := t.Value().([]byte)
		i, err := elementIndex(key, len(b))
		if err != nil {
			return indexFailure(err, catchIndex)
		}
		n, err := value.TryInteger()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidType, err)
		}
		if strictByte && (n.Cmp(big.NewInt(-128)) < 0 || n.Cmp(big.NewInt(255)) > 0) {
			return fmt.Errorf("%w: %s is not a byte", ErrInvalidOperand, n)
		}
		b[i] = byte(new(big.Int).And(n, big.NewInt(0xff)).Uint64())
		return nil
	}
	return fmt.Errorf("%w: can't set item of %s", ErrInvalidType, x.Type())
}

func elementIndex(key stackitem.Item, n int) (int, error) {
	idx, err := key.TryInteger()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	if idx.Sign() < 0 || idx.Cmp(big.NewInt(int64(n))) >= 0 {
		return 0, fmt.Errorf("%w: %s of %d", ErrInvalidIndex, idx, n)
	}
	return int(idx.Int64()), nil
}

func indexFailure(err error, catch bool) error {
	if catch && isIndexError(err) {
		return catchable(err)
	}
	return err
}

func opSetItem(_ *VM, ctx *Context, _ Instruction) error {
	return setItem(ctx, true, true)
}

// opSetItemTruncate stores the low byte of any integer into buffers.
func opSetItemTruncate(_ *VM, ctx *Context, _ Instruction) error {
	return setItem(ctx, false, true)
}

// opSetItemLegacy truncates bytes and faults on bad indices.
func opSetItemLegacy(_ *VM, ctx *Context, _ Instruction) error {
	return setItem(ctx, false, false)
}

func opReverseItems(_ *VM, ctx *Context, _ Instruction) error {
	x, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	switch t := x.(type) {
	case *stackitem.Array, *stackitem.Struct:
		items := t.Value().([]stackitem.Item)
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	case *stackitem.Buffer:
		b := t.Value().([]byte)
		for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
	default:
		return fmt.Errorf("%w: can't reverse %s", ErrInvalidType, x.Type())
	}
	return nil
}

func remove(ctx *Context, strict bool) error {
	key, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	x, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	switch t := x.(type) {
	case *stackitem.Map:
		if err := codec.CheckMapKey(key); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidType, err)
		}
		if i := t.Index(key); i >= 0 {
			t.Drop(i)
		}
		return nil
	case *stackitem.Array:
		i, err := elementIndex(key, t.Len())
		if err != nil {
			if strict || !isIndexError(err) {
				return err
			}
			return nil
		}
		t.Remove(i)
		return nil
	case *stackitem.Struct:
		i, err := elementIndex(key, t.Len())
		if err != nil {
			if strict || !isIndexError(err) {
				return err
			}
			return nil
		}
		t.Remove(i)
		return nil
	}
	return fmt.Errorf("%w: can't remove from %s", ErrInvalidType, x.Type())
}

func opRemove(_ *VM, ctx *Context, _ Instruction) error {
	return remove(ctx, true)
}

// opRemoveLegacy ignores out of range indices.
func opRemoveLegacy(_ *VM, ctx *Context, _ Instruction) error {
	return remove(ctx, false)
}

func opClearItems(_ *VM, ctx *Context, _ Instruction) error {
	x, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	switch t := x.(type) {
	case *stackitem.Array:
		t.Clear()
	case *stackitem.Struct:
		t.Clear()
	case *stackitem.Map:
		t.Clear()
	default:
		return fmt.Errorf("%w: can't clear %s", ErrInvalidType, x.Type())
	}
	return nil
}

func opPopItem(_ *VM, ctx *Context, _ Instruction) error {
	x, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	var last stackitem.Item
	switch t := x.(type) {
	case *stackitem.Array:
		if t.Len() == 0 {
			return fmt.Errorf("%w: empty array", ErrInvalidIndex)
		}
		last = t.Value().([]stackitem.Item)[t.Len()-1]
		t.Remove(t.Len() - 1)
	case *stackitem.Struct:
		if t.Len() == 0 {
			return fmt.Errorf("%w: empty struct", ErrInvalidIndex)
		}
		last = t.Value().([]stackitem.Item)[t.Len()-1]
		t.Remove(t.Len() - 1)
	default:
		return fmt.Errorf("%w: can't pop from %s", ErrInvalidType, x.Type())
	}
	ctx.estack.Push(last)
	return nil
}
