package vm

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

func opPushInt(_ *VM, ctx *Context, instr Instruction) error {
	ctx.estack.PushInt(bigint.FromBytes(instr.Operand))
	return nil
}

func opPushT(_ *VM, ctx *Context, _ Instruction) error {
	ctx.estack.PushBool(true)
	return nil
}

func opPushF(_ *VM, ctx *Context, _ Instruction) error {
	ctx.estack.PushBool(false)
	return nil
}

func opPushA(_ *VM, ctx *Context, instr Instruction) error {
	pos := ctx.ip + instr.TokenI32()
	if pos < 0 || pos > len(ctx.script) {
		return ErrInvalidJump
	}
	ctx.estack.Push(stackitem.NewPointer(pos, ctx.script))
	return nil
}

func opPushNull(_ *VM, ctx *Context, _ Instruction) error {
	ctx.estack.Push(stackitem.Null{})
	return nil
}

func opPushData(_ *VM, ctx *Context, instr Instruction) error {
	ctx.estack.Push(stackitem.NewByteArray(append([]byte{}, instr.Operand...)))
	return nil
}

func opPushConst(_ *VM, ctx *Context, instr Instruction) error {
	ctx.estack.PushInt(big.NewInt(int64(instr.Op) - int64(opcode.PUSH0)))
	return nil
}

func opNop(*VM, *Context, Instruction) error {
	return nil
}

func jumpOffset(instr Instruction) int {
	if len(instr.Operand) == 1 {
		return instr.TokenI8()
	}
	return instr.TokenI32()
}

func opJmp(_ *VM, ctx *Context, instr Instruction) error {
	return ctx.Jump(ctx.ip + jumpOffset(instr))
}

func opJmpIf(_ *VM, ctx *Context, instr Instruction) error {
	cond, err := ctx.estack.PopBool()
	if err != nil {
		return err
	}
	if instr.Op == opcode.JMPIFNOT || instr.Op == opcode.JMPIFNOTL {
		cond = !cond
	}
	if cond {
		return ctx.Jump(ctx.ip + jumpOffset(instr))
	}
	return nil
}

func opJmpCmp(_ *VM, ctx *Context, instr Instruction) error {
	x2, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	x1, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	c := x1.Cmp(x2)
	var cond bool
	switch instr.Op {
	case opcode.JMPEQ, opcode.JMPEQL:
		cond = c == 0
	case opcode.JMPNE, opcode.JMPNEL:
		cond = c != 0
	case opcode.JMPGT, opcode.JMPGTL:
		cond = c > 0
	case opcode.JMPGE, opcode.JMPGEL:
		cond = c >= 0
	case opcode.JMPLT, opcode.JMPLTL:
		cond = c < 0
	default:
		cond = c <= 0
	}
	if cond {
		return ctx.Jump(ctx.ip + jumpOffset(instr))
	}
	return nil
}

func (v *VM) call(ctx *Context, pos int) error {
	if pos < 0 || pos > len(ctx.script) {
		return ErrInvalidJump
	}
	_, err := v.LoadClone(ctx, pos)
	return err
}

func opCall(v *VM, ctx *Context, instr Instruction) error {
	return v.call(ctx, ctx.ip+jumpOffset(instr))
}

func opCallA(v *VM, ctx *Context, _ Instruction) error {
	item, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	ptr, ok := item.(*stackitem.Pointer)
	if !ok {
		return fmt.Errorf("%w: pointer expected, got %s", ErrInvalidType, item.Type())
	}
	if ptr.ScriptHash() != ctx.ScriptHash() {
		return fmt.Errorf("%w: pointer to another script", ErrInvalidJump)
	}
	return v.call(ctx, ptr.Position())
}

func opCallT(v *VM, _ *Context, instr Instruction) error {
	if v.host == nil {
		return ErrNoHost
	}
	return v.host.LoadToken(instr.TokenU16())
}

func opSyscall(v *VM, _ *Context, instr Instruction) error {
	if v.host == nil {
		return ErrNoHost
	}
	return v.host.OnSysCall(instr.TokenU32())
}

func opAbort(*VM, *Context, Instruction) error {
	return ErrAbort
}

func opAbortMsg(_ *VM, ctx *Context, _ Instruction) error {
	msg, err := ctx.estack.PopBytes()
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrAbort, msg)
}

func opAssert(_ *VM, ctx *Context, _ Instruction) error {
	ok, err := ctx.estack.PopBool()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssert
	}
	return nil
}

func opAssertMsg(_ *VM, ctx *Context, _ Instruction) error {
	msg, err := ctx.estack.PopBytes()
	if err != nil {
		return err
	}
	ok, err := ctx.estack.PopBool()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssert, msg)
	}
	return nil
}

func opThrow(v *VM, ctx *Context, _ Instruction) error {
	item, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	return v.throw(item)
}

func opTry(_ *VM, ctx *Context, instr Instruction) error {
	var catchOff, finallyOff int
	if instr.Op == opcode.TRY {
		catchOff, finallyOff = int(int8(instr.Operand[0])), int(int8(instr.Operand[1]))
	} else {
		catchOff = instr.TokenI32()
		finallyOff = Instruction{Operand: instr.Operand[4:]}.TokenI32()
	}
	if catchOff == 0 && finallyOff == 0 {
		return fmt.Errorf("%w: TRY without CATCH and FINALLY", ErrTry)
	}
	if len(ctx.tries) >= MaxTryNestingDepth {
		return fmt.Errorf("%w: nesting depth exceeded", ErrTry)
	}
	h := exceptionHandler{catchPtr: -1, finallyPtr: -1, state: tryBlock}
	if catchOff != 0 {
		h.catchPtr = ctx.ip + catchOff
		if h.catchPtr < 0 || h.catchPtr > len(ctx.script) {
			return ErrInvalidJump
		}
	}
	if finallyOff != 0 {
		h.finallyPtr = ctx.ip + finallyOff
		if h.finallyPtr < 0 || h.finallyPtr > len(ctx.script) {
			return ErrInvalidJump
		}
	}
	ctx.tries = append(ctx.tries, h)
	return nil
}

func opEndTry(_ *VM, ctx *Context, instr Instruction) error {
	if len(ctx.tries) == 0 {
		return fmt.Errorf("%w: ENDTRY outside of TRY", ErrTry)
	}
	h := &ctx.tries[len(ctx.tries)-1]
	if h.state == finallyBlock {
		return fmt.Errorf("%w: ENDTRY in FINALLY", ErrTry)
	}
	end := ctx.ip + jumpOffset(instr)
	if end < 0 || end > len(ctx.script) {
		return ErrInvalidJump
	}
	if h.hasFinally() {
		h.state = finallyBlock
		h.endPtr = end
		ctx.nextip = h.finallyPtr
		return nil
	}
	ctx.tries = ctx.tries[:len(ctx.tries)-1]
	ctx.nextip = end
	return nil
}

func opEndFinally(v *VM, ctx *Context, _ Instruction) error {
	if len(ctx.tries) == 0 {
		return fmt.Errorf("%w: ENDFINALLY outside of TRY", ErrTry)
	}
	h := ctx.tries[len(ctx.tries)-1]
	ctx.tries = ctx.tries[:len(ctx.tries)-1]
	if v.uncaught == nil {
		ctx.nextip = h.endPtr
		return nil
	}
	return v.throw(v.uncaught)
}

func opRet(v *VM, _ *Context, _ Instruction) error {
	return v.ret()
}
