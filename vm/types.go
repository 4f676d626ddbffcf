package vm

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

func validType(t stackitem.Type) bool {
	switch t {
	case stackitem.AnyT, stackitem.PointerT, stackitem.BooleanT, stackitem.IntegerT,
		stackitem.ByteArrayT, stackitem.BufferT, stackitem.ArrayT, stackitem.StructT,
		stackitem.MapT, stackitem.InteropT:
		return true
	}
	return false
}

func isIndexError(err error) bool {
	return errors.Is(err, ErrInvalidIndex)
}

func opIsNull(_ *VM, ctx *Context, _ Instruction) error {
	item, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	ctx.estack.PushBool(isNull(item))
	return nil
}

func opIsType(_ *VM, ctx *Context, instr Instruction) error {
	typ := stackitem.Type(instr.TokenU8())
	if typ == stackitem.AnyT || !validType(typ) {
		return fmt.Errorf("%w: 0x%02x", ErrInvalidType, byte(typ))
	}
	item, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	ctx.estack.PushBool(item.Type() == typ)
	return nil
}

func opConvert(_ *VM, ctx *Context, instr Instruction) error {
	typ := stackitem.Type(instr.TokenU8())
	if !validType(typ) {
		return fmt.Errorf("%w: 0x%02x", ErrInvalidType, byte(typ))
	}
	item, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	res, err := item.Convert(typ)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	ctx.estack.Push(res)
	return nil
}
