package vm

import (
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
)

// Handler executes a single instruction in the context.
type Handler func(v *VM, ctx *Context, instr Instruction) error

// JumpTable maps opcodes to handlers. Nil entries are invalid opcodes.
type JumpTable [256]Handler

// Jump tables for different protocol versions. Tables are never modified
// after initialization.
var (
	// DefaultTable is the table in effect after the Echidna hardfork.
	DefaultTable = newDefaultTable()
	// NotEchidnaTable is the table in effect before the Echidna hardfork.
	NotEchidnaTable = newNotEchidnaTable()
	// NotBasiliskTable is the table in effect before the Basilisk hardfork.
	NotBasiliskTable = newNotBasiliskTable()
)

func newDefaultTable() *JumpTable {
	t := new(JumpTable)

	for op := opcode.PUSHINT8; op <= opcode.PUSHINT256; op++ {
		t[op] = opPushInt
	}
	t[opcode.PUSHT] = opPushT
	t[opcode.PUSHF] = opPushF
	t[opcode.PUSHA] = opPushA
	t[opcode.PUSHNULL] = opPushNull
	t[opcode.PUSHDATA1] = opPushData
	t[opcode.PUSHDATA2] = opPushData
	t[opcode.PUSHDATA4] = opPushData
	for op := opcode.PUSHM1; op <= opcode.PUSH16; op++ {
		t[op] = opPushConst
	}

	t[opcode.NOP] = opNop
	t[opcode.JMP], t[opcode.JMPL] = opJmp, opJmp
	t[opcode.JMPIF], t[opcode.JMPIFL] = opJmpIf, opJmpIf
	t[opcode.JMPIFNOT], t[opcode.JMPIFNOTL] = opJmpIf, opJmpIf
	for op := opcode.JMPEQ; op <= opcode.JMPLEL; op++ {
		t[op] = opJmpCmp
	}
	t[opcode.CALL], t[opcode.CALLL] = opCall, opCall
	t[opcode.CALLA] = opCallA
	t[opcode.CALLT] = opCallT
	t[opcode.ABORT] = opAbort
	t[opcode.ASSERT] = opAssert
	t[opcode.ABORTMSG] = opAbortMsg
	t[opcode.ASSERTMSG] = opAssertMsg
	t[opcode.THROW] = opThrow
	t[opcode.TRY], t[opcode.TRYL] = opTry, opTry
	t[opcode.ENDTRY], t[opcode.ENDTRYL] = opEndTry, opEndTry
	t[opcode.ENDFINALLY] = opEndFinally
	t[opcode.RET] = opRet
	t[opcode.SYSCALL] = opSyscall

	t[opcode.DEPTH] = opDepth
	t[opcode.DROP] = opDrop
	t[opcode.NIP] = opNip
	t[opcode.XDROP] = opXDrop
	t[opcode.CLEAR] = opClear
	t[opcode.DUP] = opDup
	t[opcode.OVER] = opOver
	t[opcode.PICK] = opPick
	t[opcode.TUCK] = opTuck
	t[opcode.SWAP] = opSwap
	t[opcode.ROT] = opRot
	t[opcode.ROLL] = opRoll
	t[opcode.REVERSE3] = opReverseN
	t[opcode.REVERSE4] = opReverseN
	t[opcode.REVERSEN] = opReverseN

	t[opcode.INITSSLOT] = opInitSSlot
	t[opcode.INITSLOT] = opInitSlot
	for op := opcode.LDSFLD0; op <= opcode.STARG; op++ {
		t[op] = opSlot
	}

	t[opcode.NEWBUFFER] = opNewBuffer
	t[opcode.MEMCPY] = opMemcpy
	t[opcode.CAT] = opCat
	t[opcode.SUBSTR] = opSubstr
	t[opcode.LEFT] = opLeft
	t[opcode.RIGHT] = opRight

	t[opcode.INVERT] = opUnaryNum
	t[opcode.AND], t[opcode.OR], t[opcode.XOR] = opBinaryNum, opBinaryNum, opBinaryNum
	t[opcode.EQUAL], t[opcode.NOTEQUAL] = opEqual, opEqual

	for _, op := range []opcode.Opcode{opcode.SIGN, opcode.ABS, opcode.NEGATE,
		opcode.INC, opcode.DEC, opcode.SQRT} {
		t[op] = opUnaryNum
	}
	for _, op := range []opcode.Opcode{opcode.ADD, opcode.SUB, opcode.MUL,
		opcode.DIV, opcode.MOD, opcode.POW, opcode.SHL, opcode.SHR,
		opcode.MIN, opcode.MAX} {
		t[op] = opBinaryNum
	}
	t[opcode.MODMUL], t[opcode.MODPOW] = opModular, opModular
	t[opcode.NOT] = opNot
	t[opcode.BOOLAND], t[opcode.BOOLOR] = opBoolBinary, opBoolBinary
	t[opcode.NZ] = opNz
	t[opcode.NUMEQUAL], t[opcode.NUMNOTEQUAL] = opNumEqual, opNumEqual
	for _, op := range []opcode.Opcode{opcode.LT, opcode.LE, opcode.GT, opcode.GE} {
		t[op] = opCompare
	}
	t[opcode.WITHIN] = opWithin

	t[opcode.PACKMAP] = opPackMap
	t[opcode.PACKSTRUCT], t[opcode.PACK] = opPack, opPack
	t[opcode.UNPACK] = opUnpack
	t[opcode.NEWARRAY0], t[opcode.NEWSTRUCT0] = opNewEmpty, opNewEmpty
	t[opcode.NEWARRAY], t[opcode.NEWSTRUCT] = opNewArray, opNewArray
	t[opcode.NEWARRAYT] = opNewArrayT
	t[opcode.NEWMAP] = opNewEmpty
	t[opcode.SIZE] = opSize
	t[opcode.HASKEY] = opHasKey
	t[opcode.KEYS] = opKeys
	t[opcode.VALUES] = opValues
	t[opcode.PICKITEM] = opPickItem
	t[opcode.APPEND] = opAppend
	t[opcode.SETITEM] = opSetItem
	t[opcode.REVERSEITEMS] = opReverseItems
	t[opcode.REMOVE] = opRemove
	t[opcode.CLEARITEMS] = opClearItems
	t[opcode.POPITEM] = opPopItem

	t[opcode.ISNULL] = opIsNull
	t[opcode.ISTYPE] = opIsType
	t[opcode.CONVERT] = opConvert
	return t
}

// newNotEchidnaTable differs from the default table in HASKEY, SETITEM and
// MEMCPY handling of bad arguments.
func newNotEchidnaTable() *JumpTable {
	t := *newDefaultTable()
	t[opcode.HASKEY] = opHasKeyLegacy
	t[opcode.SETITEM] = opSetItemTruncate
	t[opcode.MEMCPY] = opMemcpyLegacy
	return &t
}

// newNotBasiliskTable additionally makes PICKITEM and REMOVE tolerant to
// missing keys and indices, bad SETITEM indices can't be caught.
func newNotBasiliskTable() *JumpTable {
	t := *newNotEchidnaTable()
	t[opcode.PICKITEM] = opPickItemLegacy
	t[opcode.REMOVE] = opRemoveLegacy
	t[opcode.SETITEM] = opSetItemLegacy
	return &t
}
