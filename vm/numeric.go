package vm

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

func pushCheckedInt(s *Stack, n *big.Int) error {
	if len(bigint.ToBytes(n)) > MaxIntegerSize {
		return fmt.Errorf("%w: %d bits", ErrIntegerTooLarge, n.BitLen())
	}
	s.PushInt(n)
	return nil
}

func checkShift(n *big.Int) (uint, error) {
	if n.Sign() < 0 || n.Cmp(big.NewInt(MaxShift)) > 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidShift, n)
	}
	return uint(n.Uint64()), nil
}

func opUnaryNum(_ *VM, ctx *Context, instr Instruction) error {
	x, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	r := new(big.Int)
	switch instr.Op {
	case opcode.INVERT:
		r.Not(x)
	case opcode.SIGN:
		r.SetInt64(int64(x.Sign()))
	case opcode.ABS:
		r.Abs(x)
	case opcode.NEGATE:
		r.Neg(x)
	case opcode.INC:
		r.Add(x, big.NewInt(1))
	case opcode.DEC:
		r.Sub(x, big.NewInt(1))
	case opcode.SQRT:
		if x.Sign() < 0 {
			return fmt.Errorf("%w: square root of negative value", ErrInvalidOperand)
		}
		r.Sqrt(x)
	}
	return pushCheckedInt(ctx.estack, r)
}

func opBinaryNum(_ *VM, ctx *Context, instr Instruction) error {
	x2, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	x1, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	r := new(big.Int)
	switch instr.Op {
	case opcode.AND:
		r.And(x1, x2)
	case opcode.OR:
		r.Or(x1, x2)
	case opcode.XOR:
		r.Xor(x1, x2)
	case opcode.ADD:
		r.Add(x1, x2)
	case opcode.SUB:
		r.Sub(x1, x2)
	case opcode.MUL:
		r.Mul(x1, x2)
	case opcode.DIV:
		if x2.Sign() == 0 {
			return ErrDivisionByZero
		}
		r.Quo(x1, x2)
	case opcode.MOD:
		if x2.Sign() == 0 {
			return ErrDivisionByZero
		}
		r.Rem(x1, x2)
	case opcode.POW:
		e, err := checkShift(x2)
		if err != nil {
			return err
		}
		r.Exp(x1, big.NewInt(int64(e)), nil)
	case opcode.SHL:
		shift, err := checkShift(x2)
		if err != nil {
			return err
		}
		r.Lsh(x1, shift)
	case opcode.SHR:
		shift, err := checkShift(x2)
		if err != nil {
			return err
		}
		r.Rsh(x1, shift)
	case opcode.MIN:
		r.Set(x1)
		if x2.Cmp(x1) < 0 {
			r.Set(x2)
		}
	case opcode.MAX:
		r.Set(x1)
		if x2.Cmp(x1) > 0 {
			r.Set(x2)
		}
	}
	return pushCheckedInt(ctx.estack, r)
}

func opModular(_ *VM, ctx *Context, instr Instruction) error {
	mod, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	x2, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	x1, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	if mod.Sign() == 0 {
		return ErrDivisionByZero
	}
	r := new(big.Int)
	if instr.Op == opcode.MODMUL {
		r.Rem(r.Mul(x1, x2), mod)
		return pushCheckedInt(ctx.estack, r)
	}
	m := new(big.Int).Abs(mod)
	switch {
	case x2.Cmp(big.NewInt(-1)) == 0:
		if r.ModInverse(x1, m) == nil {
			return fmt.Errorf("%w: no modular inverse", ErrInvalidOperand)
		}
	case x2.Sign() < 0:
		return fmt.Errorf("%w: negative exponent", ErrInvalidOperand)
	default:
		// Remainder takes the sign of the base like in truncated division.
		r.Exp(new(big.Int).Abs(x1), x2, m)
		if x1.Sign() < 0 && x2.Bit(0) == 1 {
			r.Neg(r)
		}
	}
	return pushCheckedInt(ctx.estack, r)
}

func opNot(_ *VM, ctx *Context, _ Instruction) error {
	b, err := ctx.estack.PopBool()
	if err != nil {
		return err
	}
	ctx.estack.PushBool(!b)
	return nil
}

func opBoolBinary(_ *VM, ctx *Context, instr Instruction) error {
	b2, err := ctx.estack.PopBool()
	if err != nil {
		return err
	}
	b1, err := ctx.estack.PopBool()
	if err != nil {
		return err
	}
	if instr.Op == opcode.BOOLAND {
		ctx.estack.PushBool(b1 && b2)
	} else {
		ctx.estack.PushBool(b1 || b2)
	}
	return nil
}

func opNz(_ *VM, ctx *Context, _ Instruction) error {
	x, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	ctx.estack.PushBool(x.Sign() != 0)
	return nil
}

func opNumEqual(_ *VM, ctx *Context, instr Instruction) error {
	x2, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	x1, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	eq := x1.Cmp(x2) == 0
	ctx.estack.PushBool(eq == (instr.Op == opcode.NUMEQUAL))
	return nil
}

func opCompare(_ *VM, ctx *Context, instr Instruction) error {
	i2, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	i1, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	if isNull(i1) || isNull(i2) {
		ctx.estack.PushBool(false)
		return nil
	}
	x1, err := i1.TryInteger()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	x2, err := i2.TryInteger()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidType, err)
	}
	c := x1.Cmp(x2)
	var res bool
	switch instr.Op {
	case opcode.LT:
		res = c < 0
	case opcode.LE:
		res = c <= 0
	case opcode.GT:
		res = c > 0
	default:
		res = c >= 0
	}
	ctx.estack.PushBool(res)
	return nil
}

func opWithin(_ *VM, ctx *Context, _ Instruction) error {
	b, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	a, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	x, err := ctx.estack.PopInt()
	if err != nil {
		return err
	}
	ctx.estack.PushBool(a.Cmp(x) <= 0 && x.Cmp(b) < 0)
	return nil
}

func opEqual(_ *VM, ctx *Context, instr Instruction) error {
	x2, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	x1, err := ctx.estack.Pop()
	if err != nil {
		return err
	}
	ctx.estack.PushBool(x1.Equals(x2) == (instr.Op == opcode.EQUAL))
	return nil
}

func isNull(item stackitem.Item) bool {
	_, ok := item.(stackitem.Null)
	return ok
}
