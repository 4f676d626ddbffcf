package vm

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
)

func opDepth(_ *VM, ctx *Context, _ Instruction) error {
	ctx.estack.PushInt(big.NewInt(int64(ctx.estack.Len())))
	return nil
}

func opDrop(_ *VM, ctx *Context, _ Instruction) error {
	_, err := ctx.estack.Pop()
	return err
}

func opNip(_ *VM, ctx *Context, _ Instruction) error {
	_, err := ctx.estack.Remove(1)
	return err
}

func popCount(s *Stack) (int, error) {
	n, err := s.PopIndex()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrInvalidIndex, n)
	}
	return n, nil
}

func opXDrop(_ *VM, ctx *Context, _ Instruction) error {
	n, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	_, err = ctx.estack.Remove(n)
	return err
}

func opClear(_ *VM, ctx *Context, _ Instruction) error {
	ctx.estack.Clear()
	return nil
}

func opDup(_ *VM, ctx *Context, _ Instruction) error {
	return copyToTop(ctx.estack, 0)
}

func opOver(_ *VM, ctx *Context, _ Instruction) error {
	return copyToTop(ctx.estack, 1)
}

func opPick(_ *VM, ctx *Context, _ Instruction) error {
	n, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	return copyToTop(ctx.estack, n)
}

func copyToTop(s *Stack, n int) error {
	item, err := s.Peek(n)
	if err != nil {
		return err
	}
	s.Push(item)
	return nil
}

func opTuck(_ *VM, ctx *Context, _ Instruction) error {
	item, err := ctx.estack.Peek(0)
	if err != nil {
		return err
	}
	return ctx.estack.Insert(2, item)
}

func opSwap(_ *VM, ctx *Context, _ Instruction) error {
	return ctx.estack.Reverse(2)
}

func opRot(_ *VM, ctx *Context, _ Instruction) error {
	return moveToTop(ctx.estack, 2)
}

func opRoll(_ *VM, ctx *Context, _ Instruction) error {
	n, err := popCount(ctx.estack)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return moveToTop(ctx.estack, n)
}

func moveToTop(s *Stack, n int) error {
	item, err := s.Remove(n)
	if err != nil {
		return err
	}
	s.Push(item)
	return nil
}

func opReverseN(_ *VM, ctx *Context, instr Instruction) error {
	var n int
	switch instr.Op {
	case opcode.REVERSE3:
		n = 3
	case opcode.REVERSE4:
		n = 4
	default:
		var err error
		if n, err = popCount(ctx.estack); err != nil {
			return err
		}
	}
	return ctx.estack.Reverse(n)
}

func opInitSSlot(_ *VM, ctx *Context, instr Instruction) error {
	if ctx.shared.static != nil {
		return fmt.Errorf("%w: static slot is already initialized", ErrSlot)
	}
	n := int(instr.TokenU8())
	if n == 0 {
		return fmt.Errorf("%w: zero static slot size", ErrSlot)
	}
	ctx.shared.static = newSlot(n, ctx.refs)
	return nil
}

func opInitSlot(_ *VM, ctx *Context, instr Instruction) error {
	if ctx.local != nil || ctx.args != nil {
		return fmt.Errorf("%w: slots are already initialized", ErrSlot)
	}
	locals, args := int(instr.Operand[0]), int(instr.Operand[1])
	if locals == 0 && args == 0 {
		return fmt.Errorf("%w: zero slot size", ErrSlot)
	}
	if locals > 0 {
		ctx.local = newSlot(locals, ctx.refs)
	}
	if args > 0 {
		ctx.args = newSlot(args, ctx.refs)
		for i := range args {
			item, err := ctx.estack.Pop()
			if err != nil {
				return err
			}
			ctx.args.items[i] = item
		}
	}
	return nil
}

// opSlot handles all LD*/ST* slot instructions.
func opSlot(_ *VM, ctx *Context, instr Instruction) error {
	var (
		s     *slot
		store bool
		base  opcode.Opcode
	)
	switch op := instr.Op; {
	case op <= opcode.LDSFLD:
		s, base = ctx.shared.static, opcode.LDSFLD0
	case op <= opcode.STSFLD:
		s, base, store = ctx.shared.static, opcode.STSFLD0, true
	case op <= opcode.LDLOC:
		s, base = ctx.local, opcode.LDLOC0
	case op <= opcode.STLOC:
		s, base, store = ctx.local, opcode.STLOC0, true
	case op <= opcode.LDARG:
		s, base = ctx.args, opcode.LDARG0
	default:
		s, base, store = ctx.args, opcode.STARG0, true
	}
	idx := int(instr.Op - base)
	if len(instr.Operand) > 0 {
		idx = int(instr.TokenU8())
	}
	if store {
		item, err := ctx.estack.Pop()
		if err != nil {
			return err
		}
		return s.set(idx, item)
	}
	item, err := s.get(idx)
	if err != nil {
		return err
	}
	ctx.estack.Push(item)
	return nil
}
