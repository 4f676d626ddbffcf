package vm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/vm/emit"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
)

func makeScript(t *testing.T, f func(w *io.BinWriter)) []byte {
	w := io.NewBufBinWriter()
	f(w.BinWriter)
	require.NoError(t, w.Err)
	return w.Bytes()
}

func ops(list ...opcode.Opcode) []byte {
	b := make([]byte, len(list))
	for i := range list {
		b[i] = byte(list[i])
	}
	return b
}

func run(t *testing.T, table *JumpTable, script []byte) *VM {
	v := New(table, nil)
	_, err := v.LoadScript(script, -1, 0)
	require.NoError(t, err)
	v.Run()
	return v
}

func requireHalt(t *testing.T, v *VM) {
	require.Equal(t, vmstate.Halt, v.State(), "fault: %v", v.FaultException())
}

func resultInts(t *testing.T, v *VM) []int64 {
	var res []int64
	for _, item := range v.Results().Items() {
		n, err := item.TryInteger()
		require.NoError(t, err)
		res = append(res, n.Int64())
	}
	return res
}

func TestArithmetic(t *testing.T) {
	testCases := []struct {
		name   string
		script []byte
		result int64
	}{
		{"add", ops(opcode.PUSH2, opcode.PUSH3, opcode.ADD), 5},
		{"sub", ops(opcode.PUSH2, opcode.PUSH3, opcode.SUB), -1},
		{"div truncates", ops(opcode.PUSHM1, opcode.PUSH7, opcode.MUL, opcode.PUSH2, opcode.DIV), -3},
		{"mod sign", ops(opcode.PUSHM1, opcode.PUSH7, opcode.MUL, opcode.PUSH3, opcode.MOD), -1},
		{"pow", ops(opcode.PUSH2, opcode.PUSH10, opcode.POW), 1024},
		{"shl", ops(opcode.PUSH1, opcode.PUSH8, opcode.SHL), 256},
		{"sqrt", ops(opcode.PUSH15, opcode.SQRT), 3},
		{"modpow", ops(opcode.PUSH2, opcode.PUSH3, opcode.PUSH5, opcode.MODPOW), 3},
		{"modinverse", ops(opcode.PUSH3, opcode.PUSHM1, opcode.PUSH7, opcode.MODPOW), 5},
		{"within", ops(opcode.PUSH2, opcode.PUSH1, opcode.PUSH3, opcode.WITHIN), 1},
		{"max", ops(opcode.PUSH2, opcode.PUSH9, opcode.MAX), 9},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := run(t, nil, tc.script)
			requireHalt(t, v)
			res := resultInts(t, v)
			require.Equal(t, []int64{tc.result}, res)
		})
	}
}

func TestFaults(t *testing.T) {
	testCases := map[string][]byte{
		"division by zero": ops(opcode.PUSH1, opcode.PUSH0, opcode.DIV),
		"underflow":        ops(opcode.ADD),
		"abort":            ops(opcode.ABORT),
		"assert":           ops(opcode.PUSHF, opcode.ASSERT),
		"invalid opcode":   {0xff},
		"big shift":        makeScript(t, func(w *io.BinWriter) { emit.Int(w, 1); emit.Int(w, 257); emit.Opcodes(w, opcode.SHL) }),
		"jump out":         {byte(opcode.JMP), 0x7f},
		"truncated push":   {byte(opcode.PUSHDATA1), 5, 1},
	}
	for name, script := range testCases {
		t.Run(name, func(t *testing.T) {
			v := run(t, nil, script)
			require.Equal(t, vmstate.Fault, v.State())
			require.Error(t, v.FaultException())
			require.Empty(t, v.Contexts())
		})
	}
}

func TestIntegerSize(t *testing.T) {
	script := makeScript(t, func(w *io.BinWriter) {
		emit.Int(w, 1)
		emit.Int(w, 254)
		emit.Opcodes(w, opcode.SHL)
	})
	v := run(t, nil, script)
	requireHalt(t, v)

	script = makeScript(t, func(w *io.BinWriter) {
		emit.Int(w, 1)
		emit.Int(w, 255)
		emit.Opcodes(w, opcode.SHL)
	})
	v = run(t, nil, script)
	require.Equal(t, vmstate.Fault, v.State())
	require.ErrorIs(t, v.FaultException(), ErrIntegerTooLarge)
}

func TestCall(t *testing.T) {
	// 0: PUSH1; 1: CALL +4; 3: PUSH3; 4: RET; 5: PUSH2; 6: RET
	script := []byte{byte(opcode.PUSH1), byte(opcode.CALL), 4, byte(opcode.PUSH3), byte(opcode.RET),
		byte(opcode.PUSH2), byte(opcode.RET)}
	v := run(t, nil, script)
	requireHalt(t, v)
	require.Equal(t, []int64{1, 2, 3}, resultInts(t, v))
}

func TestSlots(t *testing.T) {
	script := makeScript(t, func(w *io.BinWriter) {
		emit.Int(w, 7)
		emit.Instruction(w, opcode.INITSLOT, []byte{1, 1})
		emit.Opcodes(w, opcode.LDARG0, opcode.PUSH2, opcode.MUL, opcode.STLOC0, opcode.LDLOC0)
		emit.Instruction(w, opcode.INITSSLOT, []byte{1})
		emit.Opcodes(w, opcode.STSFLD0, opcode.LDSFLD0)
	})
	v := run(t, nil, script)
	requireHalt(t, v)
	require.Equal(t, []int64{14}, resultInts(t, v))

	v = run(t, nil, ops(opcode.LDLOC0))
	require.Equal(t, vmstate.Fault, v.State())
	require.ErrorIs(t, v.FaultException(), ErrSlot)
}

func TestTryCatch(t *testing.T) {
	t.Run("catch", func(t *testing.T) {
		script := []byte{byte(opcode.TRY), 5, 0, byte(opcode.PUSH1), byte(opcode.THROW),
			byte(opcode.DROP), byte(opcode.PUSH7), byte(opcode.ENDTRY), 2, byte(opcode.RET)}
		v := run(t, nil, script)
		requireHalt(t, v)
		require.Equal(t, []int64{7}, resultInts(t, v))
		require.False(t, v.HasException())
	})
	t.Run("finally", func(t *testing.T) {
		script := []byte{byte(opcode.TRY), 0, 6, byte(opcode.PUSH1), byte(opcode.ENDTRY), 4,
			byte(opcode.PUSH2), byte(opcode.ENDFINALLY), byte(opcode.RET)}
		v := run(t, nil, script)
		requireHalt(t, v)
		require.Equal(t, []int64{1, 2}, resultInts(t, v))
	})
	t.Run("across calls", func(t *testing.T) {
		script := []byte{byte(opcode.TRY), 7, 0, byte(opcode.CALL), 9, byte(opcode.ENDTRY), 6,
			byte(opcode.DROP), byte(opcode.PUSH5), byte(opcode.ENDTRY), 2, byte(opcode.RET),
			byte(opcode.PUSH3), byte(opcode.THROW)}
		v := run(t, nil, script)
		requireHalt(t, v)
		require.Equal(t, []int64{5}, resultInts(t, v))
	})
	t.Run("unhandled", func(t *testing.T) {
		script := makeScript(t, func(w *io.BinWriter) {
			emit.String(w, "boom")
			emit.Opcodes(w, opcode.THROW)
		})
		v := run(t, nil, script)
		require.Equal(t, vmstate.Fault, v.State())
		var uerr *UnhandledError
		require.True(t, errors.As(v.FaultException(), &uerr))
		require.Equal(t, "boom", uerr.Message)
	})
	t.Run("no handlers", func(t *testing.T) {
		v := run(t, nil, []byte{byte(opcode.TRY), 0, 0})
		require.ErrorIs(t, v.FaultException(), ErrTry)
	})
}

func TestCatchableErrors(t *testing.T) {
	// TRY {NEWARRAY0 PUSH0 PICKITEM} CATCH {DROP PUSH7}
	pick := []byte{byte(opcode.TRY), 8, 0, byte(opcode.NEWARRAY0), byte(opcode.PUSH0),
		byte(opcode.PICKITEM), byte(opcode.ENDTRY), 6,
		byte(opcode.DROP), byte(opcode.PUSH7), byte(opcode.ENDTRY), 2, byte(opcode.RET)}
	// TRY {NEWARRAY0 PUSH0 PUSH1 SETITEM} CATCH {DROP PUSH7}
	set := []byte{byte(opcode.TRY), 9, 0, byte(opcode.NEWARRAY0), byte(opcode.PUSH0),
		byte(opcode.PUSH1), byte(opcode.SETITEM), byte(opcode.ENDTRY), 6,
		byte(opcode.DROP), byte(opcode.PUSH7), byte(opcode.ENDTRY), 2, byte(opcode.RET)}

	for _, table := range []*JumpTable{DefaultTable, NotEchidnaTable} {
		v := run(t, table, pick)
		requireHalt(t, v)
		require.Equal(t, []int64{7}, resultInts(t, v))

		v = run(t, table, set)
		requireHalt(t, v)
		require.Equal(t, []int64{7}, resultInts(t, v))
	}

	t.Run("missing key message", func(t *testing.T) {
		// TRY {NEWMAP PUSH1 PICKITEM} CATCH {}
		script := []byte{byte(opcode.TRY), 8, 0, byte(opcode.NEWMAP), byte(opcode.PUSH1),
			byte(opcode.PICKITEM), byte(opcode.ENDTRY), 4, byte(opcode.ENDTRY), 2, byte(opcode.RET)}
		v := run(t, DefaultTable, script)
		requireHalt(t, v)
		items := v.Results().Items()
		require.Len(t, items, 1)
		msg, err := items[0].TryBytes()
		require.NoError(t, err)
		require.Equal(t, ErrKeyNotFound.Error(), string(msg))
	})
	t.Run("legacy SETITEM faults", func(t *testing.T) {
		v := run(t, NotBasiliskTable, set)
		require.Equal(t, vmstate.Fault, v.State())
		require.ErrorIs(t, v.FaultException(), ErrInvalidIndex)
	})
	t.Run("unhandled", func(t *testing.T) {
		v := run(t, DefaultTable, ops(opcode.NEWARRAY0, opcode.PUSH0, opcode.PICKITEM))
		require.Equal(t, vmstate.Fault, v.State())
		var uerr *UnhandledError
		require.True(t, errors.As(v.FaultException(), &uerr))
		require.ErrorIs(t, v.FaultException(), ErrInvalidIndex)
	})
}

func TestStackLimit(t *testing.T) {
	// Infinite loop pushing items.
	script := []byte{byte(opcode.PUSH1), byte(opcode.JMP), 0xff}
	v := run(t, nil, script)
	require.Equal(t, vmstate.Fault, v.State())
	require.ErrorIs(t, v.FaultException(), ErrStackOverflow)
}

func TestInvocationLimit(t *testing.T) {
	script := []byte{byte(opcode.CALL), 0}
	v := run(t, nil, script)
	require.Equal(t, vmstate.Fault, v.State())
	require.ErrorIs(t, v.FaultException(), ErrInvocationOverflow)
}

func TestRVCount(t *testing.T) {
	v := New(nil, nil)
	_, err := v.LoadScript(ops(opcode.PUSH1, opcode.PUSH2), 1, 0)
	require.NoError(t, err)
	require.Equal(t, vmstate.Fault, v.Run())
	require.ErrorIs(t, v.FaultException(), ErrRVCount)
}

func TestStructCopy(t *testing.T) {
	// Appended struct is a copy, modifying the original doesn't change it.
	script := makeScript(t, func(w *io.BinWriter) {
		emit.Opcodes(w, opcode.NEWARRAY0, opcode.DUP)
		emit.Int(w, 1)
		emit.Opcodes(w, opcode.NEWSTRUCT, opcode.DUP, opcode.ROT, opcode.SWAP, opcode.APPEND)
		emit.Int(w, 0)
		emit.Int(w, 5)
		emit.Opcodes(w, opcode.SETITEM)
	})
	v := run(t, nil, script)
	requireHalt(t, v)
	arr := v.Results().Items()[0].Value().([]stackitem.Item)
	require.Len(t, arr, 1)
	require.Equal(t, stackitem.Null{}, arr[0].Value().([]stackitem.Item)[0])
}

func TestJumpTables(t *testing.T) {
	mapWithKey := func(w *io.BinWriter) {
		emit.Opcodes(w, opcode.NEWMAP, opcode.DUP)
		emit.Int(w, 1)
		emit.Int(w, 2)
		emit.Opcodes(w, opcode.SETITEM)
	}
	testCases := []struct {
		name   string
		script func(w *io.BinWriter)
		// results per DefaultTable, NotEchidnaTable, NotBasiliskTable,
		// nil means fault.
		results [3]stackitem.Item
	}{
		{
			name: "PICKITEM missing key",
			script: func(w *io.BinWriter) {
				mapWithKey(w)
				emit.Int(w, 3)
				emit.Opcodes(w, opcode.PICKITEM)
			},
			results: [3]stackitem.Item{nil, nil, stackitem.Null{}},
		},
		{
			name: "PICKITEM index out of range",
			script: func(w *io.BinWriter) {
				emit.Opcodes(w, opcode.NEWARRAY0)
				emit.Int(w, 0)
				emit.Opcodes(w, opcode.PICKITEM)
			},
			results: [3]stackitem.Item{nil, nil, stackitem.Null{}},
		},
		{
			name: "REMOVE index out of range",
			script: func(w *io.BinWriter) {
				emit.Opcodes(w, opcode.NEWARRAY0, opcode.DUP)
				emit.Int(w, 2)
				emit.Opcodes(w, opcode.REMOVE, opcode.SIZE)
			},
			results: [3]stackitem.Item{nil, nil, stackitem.Make(0)},
		},
		{
			name: "HASKEY negative index",
			script: func(w *io.BinWriter) {
				emit.Opcodes(w, opcode.NEWARRAY0)
				emit.Int(w, -1)
				emit.Opcodes(w, opcode.HASKEY)
			},
			results: [3]stackitem.Item{nil, stackitem.NewBool(false), stackitem.NewBool(false)},
		},
		{
			name: "SETITEM buffer with non-byte",
			script: func(w *io.BinWriter) {
				emit.Int(w, 1)
				emit.Opcodes(w, opcode.NEWBUFFER, opcode.DUP)
				emit.Int(w, 0)
				emit.Int(w, 300)
				emit.Opcodes(w, opcode.SETITEM)
				emit.Int(w, 0)
				emit.Opcodes(w, opcode.PICKITEM)
			},
			results: [3]stackitem.Item{nil, stackitem.Make(44), stackitem.Make(44)},
		},
		{
			name: "MEMCPY empty copy with bad index",
			script: func(w *io.BinWriter) {
				emit.Int(w, 1)
				emit.Opcodes(w, opcode.NEWBUFFER, opcode.DUP)
				emit.Int(w, 5)
				emit.Bytes(w, []byte{1})
				emit.Int(w, 0)
				emit.Int(w, 0)
				emit.Opcodes(w, opcode.MEMCPY, opcode.SIZE)
			},
			results: [3]stackitem.Item{nil, stackitem.Make(1), stackitem.Make(1)},
		},
	}
	tables := []*JumpTable{DefaultTable, NotEchidnaTable, NotBasiliskTable}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			script := makeScript(t, tc.script)
			for i, table := range tables {
				v := run(t, table, script)
				if tc.results[i] == nil {
					require.Equal(t, vmstate.Fault, v.State(), "table %d", i)
					continue
				}
				requireHalt(t, v)
				items := v.Results().Items()
				require.Len(t, items, 1)
				require.True(t, tc.results[i].Equals(items[0]), "table %d: %v", i, items[0])
			}
		})
	}
}

type testHost struct {
	v        *VM
	executed []opcode.Opcode
	unloaded int
	limit    int
}

func (h *testHost) PreExecuteInstruction(_ *Context, op opcode.Opcode) error {
	h.executed = append(h.executed, op)
	if h.limit > 0 && len(h.executed) > h.limit {
		return errors.New("limit")
	}
	return nil
}

func (h *testHost) OnSysCall(id uint32) error {
	h.v.Context().Estack().PushInt(new(big.Int).SetUint64(uint64(id)))
	return nil
}

func (h *testHost) LoadToken(token uint16) error {
	_, err := h.v.LoadScript(ops(opcode.PUSH4), 1, 0)
	return err
}

func (h *testHost) ContextUnloaded(*Context) error {
	h.unloaded++
	return nil
}

func TestHost(t *testing.T) {
	h := new(testHost)
	v := New(nil, h)
	h.v = v
	script := makeScript(t, func(w *io.BinWriter) {
		emit.Instruction(w, opcode.SYSCALL, []byte{0x2a, 0, 0, 0})
		emit.Instruction(w, opcode.CALLT, []byte{0, 0})
		emit.Opcodes(w, opcode.ADD)
	})
	_, err := v.LoadScript(script, 1, 0)
	require.NoError(t, err)
	v.Run()
	requireHalt(t, v)
	require.Equal(t, []int64{46}, resultInts(t, v))
	require.Equal(t, 2, h.unloaded)
	require.Equal(t,
		[]opcode.Opcode{opcode.SYSCALL, opcode.CALLT, opcode.PUSH4, opcode.RET, opcode.ADD, opcode.RET},
		h.executed)

	t.Run("fault unloads all contexts", func(t *testing.T) {
		h := &testHost{limit: 3}
		v := New(nil, h)
		h.v = v
		_, err := v.LoadScript(script, 1, 0)
		require.NoError(t, err)
		require.Equal(t, vmstate.Fault, v.Run())
		require.Equal(t, 2, h.unloaded)
		require.True(t, v.HasException())
	})
}
