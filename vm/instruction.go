package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
)

// Instruction is a decoded opcode with its operand.
type Instruction struct {
	Op      opcode.Opcode
	Operand []byte
	Size    int
}

// operandSizes holds fixed operand lengths, data pushes are handled
// separately.
var operandSizes = map[opcode.Opcode]int{
	opcode.PUSHINT8: 1, opcode.PUSHINT16: 2, opcode.PUSHINT32: 4,
	opcode.PUSHINT64: 8, opcode.PUSHINT128: 16, opcode.PUSHINT256: 32,
	opcode.PUSHA: 4,

	opcode.JMP: 1, opcode.JMPL: 4, opcode.JMPIF: 1, opcode.JMPIFL: 4,
	opcode.JMPIFNOT: 1, opcode.JMPIFNOTL: 4, opcode.JMPEQ: 1, opcode.JMPEQL: 4,
	opcode.JMPNE: 1, opcode.JMPNEL: 4, opcode.JMPGT: 1, opcode.JMPGTL: 4,
	opcode.JMPGE: 1, opcode.JMPGEL: 4, opcode.JMPLT: 1, opcode.JMPLTL: 4,
	opcode.JMPLE: 1, opcode.JMPLEL: 4,
	opcode.CALL: 1, opcode.CALLL: 4, opcode.CALLT: 2,
	opcode.TRY: 2, opcode.TRYL: 8, opcode.ENDTRY: 1, opcode.ENDTRYL: 4,
	opcode.SYSCALL: 4,

	opcode.INITSSLOT: 1, opcode.INITSLOT: 2,
	opcode.LDSFLD: 1, opcode.STSFLD: 1, opcode.LDLOC: 1, opcode.STLOC: 1,
	opcode.LDARG: 1, opcode.STARG: 1,

	opcode.NEWARRAYT: 1, opcode.ISTYPE: 1, opcode.CONVERT: 1,
}

// decodeInstruction reads an instruction at ip. Position right after the
// script end yields an implicit RET.
func decodeInstruction(script []byte, ip int) (Instruction, error) {
	if ip >= len(script) {
		return Instruction{Op: opcode.RET}, nil
	}
	op := opcode.Opcode(script[ip])
	rest := script[ip+1:]
	var prefix int
	switch op {
	case opcode.PUSHDATA1:
		prefix = 1
	case opcode.PUSHDATA2:
		prefix = 2
	case opcode.PUSHDATA4:
		prefix = 4
	default:
		n := operandSizes[op]
		if len(rest) < n {
			return Instruction{}, fmt.Errorf("%w: %s at %d", ErrInvalidOperand, op, ip)
		}
		return Instruction{Op: op, Operand: rest[:n], Size: 1 + n}, nil
	}
	if len(rest) < prefix {
		return Instruction{}, fmt.Errorf("%w: %s at %d", ErrInvalidOperand, op, ip)
	}
	var n uint64
	switch prefix {
	case 1:
		n = uint64(rest[0])
	case 2:
		n = uint64(binary.LittleEndian.Uint16(rest))
	default:
		n = uint64(binary.LittleEndian.Uint32(rest))
	}
	if n > MaxItemSize {
		return Instruction{}, fmt.Errorf("%w: push of %d bytes", ErrItemTooLarge, n)
	}
	if uint64(len(rest)-prefix) < n {
		return Instruction{}, fmt.Errorf("%w: %s at %d", ErrInvalidOperand, op, ip)
	}
	return Instruction{Op: op, Operand: rest[prefix : prefix+int(n)], Size: 1 + prefix + int(n)}, nil
}

// TokenU8 returns the first operand byte.
func (i Instruction) TokenU8() byte {
	return i.Operand[0]
}

// TokenI8 returns the first operand byte as a signed value.
func (i Instruction) TokenI8() int {
	return int(int8(i.Operand[0]))
}

// TokenU16 returns two first operand bytes.
func (i Instruction) TokenU16() uint16 {
	return binary.LittleEndian.Uint16(i.Operand)
}

// TokenI32 returns four first operand bytes as a signed value.
func (i Instruction) TokenI32() int {
	return int(int32(binary.LittleEndian.Uint32(i.Operand)))
}

// TokenU32 returns four first operand bytes.
func (i Instruction) TokenU32() uint32 {
	return binary.LittleEndian.Uint32(i.Operand)
}
