package vm

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

func opNewBuffer(_ *VM, ctx *Context, _ Instruction) error {
	n, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	if n > MaxItemSize {
		return fmt.Errorf("%w: buffer of %d bytes", ErrItemTooLarge, n)
	}
	ctx.estack.Push(stackitem.NewBuffer(make([]byte, n)))
	return nil
}

type memcpyArgs struct {
	dst   []byte
	di    int
	src   []byte
	si    int
	count int
}

func popMemcpyArgs(s *Stack) (memcpyArgs, error) {
	var (
		a   memcpyArgs
		err error
	)
	if a.count, err = popCount(s); err != nil {
		return a, err
	}
	if a.si, err = popCount(s); err != nil {
		return a, err
	}
	if a.src, err = s.PopBytes(); err != nil {
		return a, err
	}
	if a.di, err = popCount(s); err != nil {
		return a, err
	}
	item, err := s.Pop()
	if err != nil {
		return a, err
	}
	buf, ok := item.(*stackitem.Buffer)
	if !ok {
		return a, fmt.Errorf("%w: buffer expected, got %s", ErrInvalidType, item.Type())
	}
	a.dst = buf.Value().([]byte)
	return a, nil
}

func (a memcpyArgs) copy() error {
	if a.si+a.count > len(a.src) || a.di+a.count > len(a.dst) {
		return fmt.Errorf("%w: copy of %d bytes", ErrInvalidIndex, a.count)
	}
	copy(a.dst[a.di:], a.src[a.si:a.si+a.count])
	return nil
}

func opMemcpy(_ *VM, ctx *Context, _ Instruction) error {
	a, err := popMemcpyArgs(ctx.estack)
	if err != nil {
		return err
	}
	return a.copy()
}

// opMemcpyLegacy does not validate indices for empty copies.
func opMemcpyLegacy(_ *VM, ctx *Context, _ Instruction) error {
	a, err := popMemcpyArgs(ctx.estack)
	if err != nil {
		return err
	}
	if a.count == 0 {
		return nil
	}
	return a.copy()
}

func opCat(_ *VM, ctx *Context, _ Instruction) error {
	b, err := ctx.estack.PopBytes()
	if err != nil {
		return err
	}
	a, err := ctx.estack.PopBytes()
	if err != nil {
		return err
	}
	if len(a)+len(b) > MaxItemSize {
		return fmt.Errorf("%w: concatenation of %d bytes", ErrItemTooLarge, len(a)+len(b))
	}
	res := make([]byte, 0, len(a)+len(b))
	res = append(append(res, a...), b...)
	ctx.estack.Push(stackitem.NewBuffer(res))
	return nil
}

func opSubstr(_ *VM, ctx *Context, _ Instruction) error {
	count, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	index, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	b, err := ctx.estack.PopBytes()
	if err != nil {
		return err
	}
	if index+count > len(b) {
		return fmt.Errorf("%w: substring [%d:%d] of %d bytes", ErrInvalidIndex, index, index+count, len(b))
	}
	ctx.estack.Push(stackitem.NewBuffer(append([]byte{}, b[index:index+count]...)))
	return nil
}

func opLeft(_ *VM, ctx *Context, _ Instruction) error {
	count, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	b, err := ctx.estack.PopBytes()
	if err != nil {
		return err
	}
	if count > len(b) {
		return fmt.Errorf("%w: %d leftmost of %d bytes", ErrInvalidIndex, count, len(b))
	}
	ctx.estack.Push(stackitem.NewBuffer(append([]byte{}, b[:count]...)))
	return nil
}

func opRight(_ *VM, ctx *Context, _ Instruction) error {
	count, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	b, err := ctx.estack.PopBytes()
	if err != nil {
		return err
	}
	if count > len(b) {
		return fmt.Errorf("%w: %d rightmost of %d bytes", ErrInvalidIndex, count, len(b))
	}
	ctx.estack.Push(stackitem.NewBuffer(append([]byte{}, b[len(b)-count:]...)))
	return nil
}
