package engine_test

import (
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/config/netmode"
	"github.com/nspcc-dev/neo-go/pkg/core/block"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/emit"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neoexec/config"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/fee"
	"github.com/nspcc-dev/neoexec/interop"
	"github.com/nspcc-dev/neoexec/interop/interopnames"
	"github.com/nspcc-dev/neoexec/native"
	"github.com/nspcc-dev/neoexec/nef"
	"github.com/nspcc-dev/neoexec/state"
	"github.com/nspcc-dev/neoexec/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testEnv struct {
	snap     *storage.Snapshot
	natives  *native.Contracts
	settings config.ProtocolSettings
}

func newEnv(t *testing.T) *testEnv {
	n, err := native.New(16)
	require.NoError(t, err)
	return &testEnv{
		snap:     storage.NewSnapshot(storage.NewMemoryStore()),
		natives:  n,
		settings: config.Default(netmode.UnitTestNet),
	}
}

type engineOpt func(*engine.Prm)

func withContainer(c engine.Container) engineOpt {
	return func(p *engine.Prm) { p.Container = c }
}

func withBlock(index uint32) engineOpt {
	return func(p *engine.Prm) { p.PersistingBlock = &block.Header{Index: index, Nonce: 7} }
}

func withGas(datoshi int64) engineOpt {
	return func(p *engine.Prm) { p.GasLimit = datoshi }
}

func (env *testEnv) newEngine(t *testing.T, opts ...engineOpt) *engine.Engine {
	prm := engine.Prm{
		Trigger:  trigger.Application,
		Snapshot: env.snap,
		Settings: env.settings,
		GasLimit: -1,
		Natives:  env.natives.Natives(),
		Registry: interop.Default(),
		Logger:   zaptest.NewLogger(t),
	}
	for _, o := range opts {
		o(&prm)
	}
	e, err := engine.New(prm)
	require.NoError(t, err)
	return e
}

func (env *testEnv) run(t *testing.T, script []byte, opts ...engineOpt) *engine.Engine {
	e := env.newEngine(t, opts...)
	_, err := e.LoadScript(script, -1, 0, nil)
	require.NoError(t, err)
	e.Execute()
	return e
}

func requireHalt(t *testing.T, e *engine.Engine) {
	require.Equal(t, vmstate.Halt, e.State(), "fault: %v", e.FaultException())
}

func makeScript(t *testing.T, f func(w *io.BinWriter)) []byte {
	w := io.NewBufBinWriter()
	f(w.BinWriter)
	require.NoError(t, w.Err)
	return w.Bytes()
}

// method is a contract method with its code.
type method struct {
	name    string
	params  int
	returns smartcontract.ParamType
	safe    bool
	code    func(w *io.BinWriter)
}

func (env *testEnv) deploy(t *testing.T, id int32, name string, tokens []nef.MethodToken, methods ...method) *state.Contract {
	m := manifest.DefaultManifest(name)
	m.ABI.Events = []manifest.Event{{
		Name:       "event",
		Parameters: []manifest.Parameter{{Name: "value", Type: smartcontract.IntegerType}},
	}}
	w := io.NewBufBinWriter()
	for _, md := range methods {
		params := make([]manifest.Parameter, md.params)
		for i := range params {
			params[i] = manifest.Parameter{Name: string(rune('a' + i)), Type: smartcontract.AnyType}
		}
		m.ABI.Methods = append(m.ABI.Methods, manifest.Method{
			Name:       md.name,
			Offset:     w.Len(),
			Parameters: params,
			ReturnType: md.returns,
			Safe:       md.safe,
		})
		md.code(w.BinWriter)
		emit.Opcodes(w.BinWriter, opcode.RET)
	}
	require.NoError(t, w.Err)

	f := nef.NewFile(w.Bytes())
	if tokens != nil {
		f.Tokens = tokens
		f.Checksum = f.CalculateChecksum()
	}
	c := &state.Contract{
		ID:       id,
		Hash:     state.CreateContractHash(util.Uint160{}, f.Checksum, name),
		NEF:      *f,
		Manifest: *m,
	}
	require.NoError(t, env.natives.Management.PutContract(env.snap, c))
	return c
}

func (env *testEnv) storageValue(t *testing.T, id int32, key string) []byte {
	it, err := env.snap.TryGet(storage.Key{ID: id, Key: []byte(key)})
	require.NoError(t, err)
	if it == nil {
		return nil
	}
	b, err := it.Bytes()
	require.NoError(t, err)
	return b
}

func newTx(signers ...transaction.Signer) *transaction.Transaction {
	tx := transaction.New([]byte{byte(opcode.RET)}, 0)
	tx.Nonce = 42
	tx.Signers = signers
	return tx
}

func putCode(key, value string) func(w *io.BinWriter) {
	return func(w *io.BinWriter) {
		emit.String(w, value)
		emit.String(w, key)
		emit.Syscall(w, interopnames.SystemStorageGetContext)
		emit.Syscall(w, interopnames.SystemStoragePut)
	}
}

func notifyCode(w *io.BinWriter) {
	emit.Int(w, 1)
	emit.Int(w, 1)
	emit.Opcodes(w, opcode.PACK)
	emit.String(w, "event")
	emit.Syscall(w, interopnames.SystemRuntimeNotify)
}

// tryCatch wraps body into TRY block, the catch block drops the exception
// and pushes 7.
func tryCatch(t *testing.T, body []byte) []byte {
	catch := []byte{byte(opcode.DROP), byte(opcode.PUSH7), byte(opcode.ENDTRY), 2}
	return makeScript(t, func(w *io.BinWriter) {
		emit.Instruction(w, opcode.TRY, []byte{byte(3 + len(body) + 2), 0})
		w.WriteBytes(body)
		emit.Instruction(w, opcode.ENDTRY, []byte{byte(2 + len(catch))})
		w.WriteBytes(catch)
	})
}

func TestOpcodeFees(t *testing.T) {
	env := newEnv(t)
	script := []byte{byte(opcode.PUSH1), byte(opcode.PUSH2), byte(opcode.ADD)}
	var expected int64
	for _, op := range []opcode.Opcode{opcode.PUSH1, opcode.PUSH2, opcode.ADD, opcode.RET} {
		expected += fee.DefaultExecFeeFactor * fee.OpcodePrice(op)
	}

	e := env.run(t, script)
	requireHalt(t, e)
	require.Equal(t, expected, e.FeeConsumed())
	require.Equal(t, int64(-1), e.GasLeft())

	t.Run("exact limit", func(t *testing.T) {
		e := env.run(t, script, withGas(expected))
		requireHalt(t, e)
		require.Equal(t, int64(0), e.GasLeft())
	})
	t.Run("out of gas", func(t *testing.T) {
		e := env.run(t, script, withGas(expected-1))
		require.Equal(t, vmstate.Fault, e.State())
		require.ErrorIs(t, e.FaultException(), engine.ErrOutOfGas)
		require.LessOrEqual(t, e.FeeConsumed(), expected-1)
		require.Error(t, e.AddFee(0))
	})
	t.Run("policy exec fee factor", func(t *testing.T) {
		env := newEnv(t)
		require.NoError(t, env.natives.Policy.SetExecFeeFactor(env.snap, 1))
		e := env.run(t, script, withBlock(1))
		requireHalt(t, e)
		require.Equal(t, expected/fee.DefaultExecFeeFactor, e.FeeConsumed())

		e = env.run(t, script, withBlock(0))
		requireHalt(t, e)
		require.Equal(t, expected, e.FeeConsumed())
	})
}

func TestBurnGasAndGasLeft(t *testing.T) {
	env := newEnv(t)
	script := makeScript(t, func(w *io.BinWriter) {
		emit.Int(w, 1000)
		emit.Syscall(w, interopnames.SystemRuntimeBurnGas)
		emit.Syscall(w, interopnames.SystemRuntimeGasLeft)
	})
	e := env.run(t, script, withGas(1_0000_0000))
	requireHalt(t, e)
	res := e.ResultStack()
	require.Len(t, res, 1)
	left, err := res[0].TryInteger()
	require.NoError(t, err)
	require.Greater(t, left.Int64(), int64(0))
	require.Less(t, left.Int64(), int64(1_0000_0000-1000))

	bad := makeScript(t, func(w *io.BinWriter) {
		emit.Int(w, 0)
		emit.Syscall(w, interopnames.SystemRuntimeBurnGas)
	})
	e = env.run(t, bad)
	require.Equal(t, vmstate.Fault, e.State())
}

func TestContractCallCommitAndRollback(t *testing.T) {
	env := newEnv(t)
	c := env.deploy(t, 1, "store", nil,
		method{name: "put", returns: smartcontract.VoidType, code: func(w *io.BinWriter) {
			notifyCode(w)
			putCode("k", "v")(w)
		}},
		method{name: "putAndThrow", returns: smartcontract.VoidType, code: func(w *io.BinWriter) {
			notifyCode(w)
			putCode("bad", "v")(w)
			emit.String(w, "boom")
			emit.Opcodes(w, opcode.THROW)
		}},
	)

	t.Run("commit", func(t *testing.T) {
		script := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, c.Hash, "put", callflag.All)
		})
		e := env.run(t, script)
		requireHalt(t, e)
		res := e.ResultStack()
		require.Len(t, res, 1)
		require.Equal(t, stackitem.Null{}, res[0])
		require.Equal(t, []byte("v"), env.storageValue(t, c.ID, "k"))
		require.Len(t, e.Notifications(), 1)
		require.Equal(t, c.Hash, e.Notifications()[0].ScriptHash)
		require.Equal(t, "event", e.Notifications()[0].Name)
	})
	t.Run("rollback", func(t *testing.T) {
		body := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, c.Hash, "putAndThrow", callflag.All)
		})
		e := env.run(t, tryCatch(t, body))
		requireHalt(t, e)
		res := e.ResultStack()
		require.Len(t, res, 1)
		require.Equal(t, stackitem.Make(7), res[0])
		require.Nil(t, env.storageValue(t, c.ID, "bad"))
		require.Empty(t, e.Notifications())
	})
	t.Run("fault discards everything", func(t *testing.T) {
		env := newEnv(t)
		c := env.deploy(t, 1, "store", nil, method{name: "put", returns: smartcontract.VoidType, code: putCode("k", "v")})
		script := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, c.Hash, "put", callflag.All)
			emit.Opcodes(w, opcode.ABORT)
		})
		e := env.run(t, script)
		require.Equal(t, vmstate.Fault, e.State())
		require.Nil(t, env.storageValue(t, c.ID, "k"))
	})
	t.Run("read-only flags", func(t *testing.T) {
		script := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, c.Hash, "put", callflag.ReadOnly)
		})
		e := env.run(t, script)
		require.Equal(t, vmstate.Fault, e.State())
		require.ErrorIs(t, e.FaultException(), engine.ErrCapabilityDenied)
	})
	t.Run("private method", func(t *testing.T) {
		script := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, c.Hash, "_deploy", callflag.All)
		})
		e := env.run(t, script)
		require.Equal(t, vmstate.Fault, e.State())
		require.ErrorIs(t, e.FaultException(), engine.ErrMethodNotFound)
	})
	t.Run("missing contract", func(t *testing.T) {
		script := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, util.Uint160{1, 2, 3}, "put", callflag.All)
		})
		e := env.run(t, script)
		require.Equal(t, vmstate.Fault, e.State())
		require.ErrorIs(t, e.FaultException(), engine.ErrContractNotFound)
	})
	t.Run("blocked contract", func(t *testing.T) {
		require.NoError(t, env.natives.Policy.BlockAccount(env.snap, c.Hash))
		t.Cleanup(func() { require.NoError(t, env.natives.Policy.UnblockAccount(env.snap, c.Hash)) })
		script := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, c.Hash, "put", callflag.All)
		})
		e := env.run(t, script)
		require.Equal(t, vmstate.Fault, e.State())
		require.ErrorIs(t, e.FaultException(), engine.ErrContractBlocked)
	})
}

func TestDynamicCallReturnValue(t *testing.T) {
	env := newEnv(t)
	answer := env.deploy(t, 1, "answer", nil,
		method{name: "answer", returns: smartcontract.IntegerType, safe: true, code: func(w *io.BinWriter) {
			emit.Int(w, 42)
		}},
		method{name: "counter", returns: smartcontract.IntegerType, code: func(w *io.BinWriter) {
			emit.Syscall(w, interopnames.SystemRuntimeGetInvocationCounter)
		}},
	)
	proxy := env.deploy(t, 2, "proxy", []nef.MethodToken{{
		Hash:      answer.Hash,
		Method:    "answer",
		HasReturn: true,
		CallFlag:  callflag.ReadOnly,
	}}, method{name: "viaToken", returns: smartcontract.IntegerType, code: func(w *io.BinWriter) {
		emit.Instruction(w, opcode.CALLT, []byte{0, 0})
	}})

	script := makeScript(t, func(w *io.BinWriter) {
		emit.AppCall(w, answer.Hash, "answer", callflag.All)
		emit.AppCall(w, proxy.Hash, "viaToken", callflag.All)
		emit.AppCall(w, answer.Hash, "counter", callflag.All)
		emit.AppCall(w, answer.Hash, "counter", callflag.All)
	})
	e := env.run(t, script)
	requireHalt(t, e)
	res := e.ResultStack()
	require.Len(t, res, 4)
	for i, expected := range []int64{42, 42, 3, 4} {
		n, err := res[i].TryInteger()
		require.NoError(t, err)
		require.Equal(t, big.NewInt(expected), n, "result %d", i)
	}

	t.Run("CALLT requires flags", func(t *testing.T) {
		script := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, proxy.Hash, "viaToken", callflag.ReadStates)
		})
		e := env.run(t, script)
		require.Equal(t, vmstate.Fault, e.State())
		require.ErrorIs(t, e.FaultException(), engine.ErrCapabilityDenied)
	})
	t.Run("CALLT out of entry script", func(t *testing.T) {
		e := env.run(t, []byte{byte(opcode.CALLT), 0, 0})
		require.Equal(t, vmstate.Fault, e.State())
		require.ErrorIs(t, e.FaultException(), engine.ErrInvalidToken)
	})
}

func TestNativeContinuation(t *testing.T) {
	env := newEnv(t)
	c := env.deploy(t, 1, "answer", nil,
		method{name: "answer", params: 1, returns: smartcontract.IntegerType, code: func(w *io.BinWriter) {
			emit.Opcodes(w, opcode.INC)
		}})

	e := env.newEngine(t)
	_, err := e.LoadScript([]byte{byte(opcode.RET)}, -1, 0, nil)
	require.NoError(t, err)
	var (
		called int
		result stackitem.Item
	)
	caller := util.Uint160{9}
	require.NoError(t, e.CallFromNative(caller, c.Hash, "answer", []stackitem.Item{stackitem.Make(1)}, true,
		func(r stackitem.Item) error {
			called++
			result = r
			return nil
		}))
	require.Equal(t, caller, e.CallingScriptHash())
	e.Execute()
	requireHalt(t, e)
	require.Equal(t, 1, called)
	require.Equal(t, stackitem.Make(2), result)
}

func TestGetRandom(t *testing.T) {
	env := newEnv(t)
	script := makeScript(t, func(w *io.BinWriter) {
		emit.Syscall(w, interopnames.SystemRuntimeGetRandom)
		emit.Syscall(w, interopnames.SystemRuntimeGetRandom)
	})
	tx := newTx()
	randoms := func(e *engine.Engine) []*big.Int {
		requireHalt(t, e)
		var res []*big.Int
		for _, item := range e.ResultStack() {
			n, err := item.TryInteger()
			require.NoError(t, err)
			require.GreaterOrEqual(t, n.Sign(), 0)
			require.LessOrEqual(t, n.BitLen(), 128)
			res = append(res, n)
		}
		return res
	}

	first := randoms(env.run(t, script, withContainer(tx)))
	require.Len(t, first, 2)
	require.NotEqual(t, first[0], first[1])
	require.Equal(t, first, randoms(env.run(t, script, withContainer(tx))))

	env.settings.Magic = netmode.TestNet
	require.NotEqual(t, first, randoms(env.run(t, script, withContainer(tx))))

	t.Run("pre-Aspidochelone", func(t *testing.T) {
		env := newEnv(t)
		env.settings.Hardforks = map[string]uint32{config.HFAspidochelone.String(): 100}
		e := env.run(t, script, withContainer(tx), withBlock(1))
		legacy := randoms(e)
		require.NotEqual(t, legacy[0], legacy[1])
		require.Equal(t, legacy, randoms(env.run(t, script, withContainer(tx), withBlock(1))))
	})
}

func TestDeterminism(t *testing.T) {
	type outcome struct {
		state         vmstate.State
		stack         []stackitem.Item
		fee           int64
		notifications []engine.NotifyEvent
		storage       map[string][]byte
	}
	tx := newTx(transaction.Signer{Account: util.Uint160{1}, Scopes: transaction.CalledByEntry})
	execute := func(t *testing.T) outcome {
		store := storage.NewMemoryStore()
		env := newEnv(t)
		env.snap = storage.NewSnapshot(store)
		c := env.deploy(t, 1, "store", nil, method{name: "put", returns: smartcontract.VoidType, code: func(w *io.BinWriter) {
			notifyCode(w)
			putCode("k", "v")(w)
		}})
		script := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, c.Hash, "put", callflag.All)
			emit.Syscall(w, interopnames.SystemRuntimeGetRandom)
			emit.Syscall(w, interopnames.SystemRuntimeGetTime)
			emit.Syscall(w, interopnames.SystemRuntimeGetInvocationCounter)
		})
		e := env.run(t, script, withContainer(tx), withBlock(5), withGas(10*fee.GASFactor))
		requireHalt(t, e)
		require.NoError(t, env.snap.Commit())

		res := outcome{
			state:         e.State(),
			stack:         e.ResultStack(),
			fee:           e.FeeConsumed(),
			notifications: e.Notifications(),
			storage:       make(map[string][]byte),
		}
		require.NoError(t, store.Seek(nil, false, func(k, v []byte) bool {
			res.storage[string(k)] = append([]byte{}, v...)
			return true
		}))
		return res
	}

	first, second := execute(t), execute(t)
	require.Equal(t, first.state, second.state)
	require.Equal(t, first.fee, second.fee)
	require.Len(t, second.stack, len(first.stack))
	for i := range first.stack {
		require.True(t, first.stack[i].Equals(second.stack[i]), "item %d", i)
	}
	require.Len(t, second.notifications, len(first.notifications))
	for i, ev := range first.notifications {
		other := second.notifications[i]
		require.Equal(t, ev.Container, other.Container)
		require.Equal(t, ev.ScriptHash, other.ScriptHash)
		require.Equal(t, ev.Name, other.Name)
		require.Equal(t, ev.Item.Value(), other.Item.Value())
	}
	require.NotEmpty(t, first.storage)
	require.Equal(t, first.storage, second.storage)
}

func TestCheckWitness(t *testing.T) {
	env := newEnv(t)
	signer, other := util.Uint160{1}, util.Uint160{2}
	tx := newTx(transaction.Signer{Account: signer, Scopes: transaction.CalledByEntry})

	check := func(h util.Uint160) []byte {
		return makeScript(t, func(w *io.BinWriter) {
			emit.Bytes(w, h.BytesBE())
			emit.Syscall(w, interopnames.SystemRuntimeCheckWitness)
		})
	}
	for name, tc := range map[string]struct {
		hash     util.Uint160
		expected bool
	}{
		"signer":     {signer, true},
		"non-signer": {other, false},
	} {
		t.Run(name, func(t *testing.T) {
			e := env.run(t, check(tc.hash), withContainer(tx))
			requireHalt(t, e)
			require.Equal(t, []stackitem.Item{stackitem.NewBool(tc.expected)}, e.ResultStack())
		})
	}

	t.Run("called by entry", func(t *testing.T) {
		checker := env.deploy(t, 1, "checker", nil,
			method{name: "check", returns: smartcontract.BoolType, code: func(w *io.BinWriter) {
				emit.Bytes(w, signer.BytesBE())
				emit.Syscall(w, interopnames.SystemRuntimeCheckWitness)
			}},
			method{name: "self", returns: smartcontract.BoolType, code: func(w *io.BinWriter) {
				emit.Syscall(w, interopnames.SystemRuntimeGetExecutingScriptHash)
				emit.Syscall(w, interopnames.SystemRuntimeCheckWitness)
			}})
		proxy := env.deploy(t, 2, "proxy", nil,
			method{name: "check", returns: smartcontract.BoolType, code: func(w *io.BinWriter) {
				emit.AppCall(w, checker.Hash, "check", callflag.All)
			}})

		script := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, checker.Hash, "check", callflag.All)
			emit.AppCall(w, proxy.Hash, "check", callflag.All)
			emit.AppCall(w, checker.Hash, "self", callflag.All)
		})
		e := env.run(t, script, withContainer(tx))
		requireHalt(t, e)
		require.Equal(t, []stackitem.Item{
			stackitem.NewBool(true), stackitem.NewBool(false), stackitem.NewBool(true),
		}, e.ResultStack())
	})
	t.Run("no container", func(t *testing.T) {
		e := env.run(t, check(signer))
		requireHalt(t, e)
		require.Equal(t, []stackitem.Item{stackitem.NewBool(false)}, e.ResultStack())
	})
}

func TestWhitelistedCall(t *testing.T) {
	env := newEnv(t)
	c := env.deploy(t, 1, "store", nil, method{name: "put", returns: smartcontract.VoidType, code: putCode("k", "v")})
	script := makeScript(t, func(w *io.BinWriter) {
		emit.AppCall(w, c.Hash, "put", callflag.All)
	})

	e := env.run(t, script)
	requireHalt(t, e)
	regular := e.FeeConsumed()

	const fixed = 1000
	require.NoError(t, env.natives.Policy.SetWhitelistFee(env.snap, c.Hash, "put", 0, fixed))
	e = env.run(t, script)
	requireHalt(t, e)
	require.Less(t, e.FeeConsumed(), regular)
	require.Equal(t, []byte("v"), env.storageValue(t, c.ID, "k"))
}

func TestCallValidatedBeforeCharge(t *testing.T) {
	env := newEnv(t)
	c := env.deploy(t, 1, "store", nil, method{name: "put", returns: smartcontract.VoidType, code: putCode("k", "v")})
	proxy := env.deploy(t, 2, "proxy", []nef.MethodToken{{
		Hash:      c.Hash,
		Method:    "put",
		HasReturn: true,
		CallFlag:  callflag.All,
	}}, method{name: "bad", returns: smartcontract.VoidType, code: func(w *io.BinWriter) {
		emit.Instruction(w, opcode.CALLT, []byte{0, 0})
	}})
	bad := makeScript(t, func(w *io.BinWriter) {
		emit.AppCall(w, proxy.Hash, "bad", callflag.All)
	})

	t.Run("whitelist fee", func(t *testing.T) {
		e := env.run(t, bad)
		require.Equal(t, vmstate.Fault, e.State())
		require.ErrorIs(t, e.FaultException(), engine.ErrReturnTypeMismatch)
		regular := e.FeeConsumed()

		require.NoError(t, env.natives.Policy.SetWhitelistFee(env.snap, c.Hash, "put", 0, fee.GASFactor))
		e = env.run(t, bad)
		require.Equal(t, vmstate.Fault, e.State())
		require.Equal(t, regular, e.FeeConsumed())
	})
	t.Run("invocation counter", func(t *testing.T) {
		script := makeScript(t, func(w *io.BinWriter) {
			emit.AppCall(w, c.Hash, "put", callflag.All)
			emit.AppCall(w, proxy.Hash, "bad", callflag.All)
		})
		e := env.run(t, script)
		require.Equal(t, vmstate.Fault, e.State())
		require.Equal(t, 1, e.InvocationCounter(c.Hash))
	})
}

func TestNotificationSchema(t *testing.T) {
	env := newEnv(t)
	c := env.deploy(t, 1, "emitter", nil,
		method{name: "good", returns: smartcontract.VoidType, code: notifyCode},
		method{name: "unknown", returns: smartcontract.VoidType, code: func(w *io.BinWriter) {
			emit.Opcodes(w, opcode.NEWARRAY0)
			emit.String(w, "missing")
			emit.Syscall(w, interopnames.SystemRuntimeNotify)
		}},
		method{name: "wrongType", returns: smartcontract.VoidType, code: func(w *io.BinWriter) {
			emit.String(w, "str")
			emit.Int(w, 1)
			emit.Opcodes(w, opcode.PACK)
			emit.String(w, "event")
			emit.Syscall(w, interopnames.SystemRuntimeNotify)
		}},
	)
	for name, ok := range map[string]bool{"good": true, "unknown": false, "wrongType": false} {
		t.Run(name, func(t *testing.T) {
			script := makeScript(t, func(w *io.BinWriter) {
				emit.AppCall(w, c.Hash, name, callflag.All)
			})
			e := env.run(t, script)
			if ok {
				requireHalt(t, e)
				require.Len(t, e.Notifications(), 1)
				return
			}
			require.Equal(t, vmstate.Fault, e.State())
		})
	}
	t.Run("legacy", func(t *testing.T) {
		env := newEnv(t)
		env.settings.Hardforks = map[string]uint32{config.HFBasilisk.String(): 100}
		script := makeScript(t, func(w *io.BinWriter) {
			emit.Opcodes(w, opcode.NEWARRAY0)
			emit.String(w, "any")
			emit.Syscall(w, interopnames.SystemRuntimeNotify)
		})
		e := env.run(t, script, withBlock(1))
		requireHalt(t, e)
		require.Len(t, e.Notifications(), 1)
	})
}

func TestJumpTableSelection(t *testing.T) {
	env := newEnv(t)
	env.settings.Hardforks = map[string]uint32{
		config.HFAspidochelone.String(): 0,
		config.HFBasilisk.String():      10,
		config.HFEchidna.String():       20,
	}
	script := []byte{byte(opcode.NEWMAP), byte(opcode.PUSH1), byte(opcode.PICKITEM)}

	e := env.run(t, script, withBlock(5))
	requireHalt(t, e)
	require.Equal(t, []stackitem.Item{stackitem.Null{}}, e.ResultStack())

	e = env.run(t, script, withBlock(15))
	require.Equal(t, vmstate.Fault, e.State())

	e = env.run(t, script)
	require.Equal(t, vmstate.Fault, e.State())
}

func TestSysCall(t *testing.T) {
	env := newEnv(t)
	t.Run("unknown service", func(t *testing.T) {
		e := env.run(t, []byte{byte(opcode.SYSCALL), 1, 2, 3, 4})
		require.Equal(t, vmstate.Fault, e.State())
		require.ErrorIs(t, e.FaultException(), engine.ErrUnknownService)
	})
	t.Run("hardfork gate", func(t *testing.T) {
		env := newEnv(t)
		env.settings.Hardforks = map[string]uint32{config.HFEchidna.String(): 100}
		script := makeScript(t, func(w *io.BinWriter) {
			emit.String(w, "k")
			emit.Syscall(w, interopnames.SystemStorageLocalGet)
		})
		e := env.run(t, script, withBlock(1))
		require.Equal(t, vmstate.Fault, e.State())
		require.ErrorIs(t, e.FaultException(), engine.ErrUnknownService)
	})
	t.Run("arguments", func(t *testing.T) {
		script := makeScript(t, func(w *io.BinWriter) {
			emit.Bytes(w, []byte{1, 2, 3})
			emit.Syscall(w, interopnames.SystemRuntimeCheckWitness)
		})
		e := env.run(t, script)
		require.Equal(t, vmstate.Fault, e.State())
	})
	t.Run("platform", func(t *testing.T) {
		script := makeScript(t, func(w *io.BinWriter) {
			emit.Syscall(w, interopnames.SystemRuntimePlatform)
		})
		e := env.run(t, script)
		requireHalt(t, e)
		require.Equal(t, []stackitem.Item{stackitem.NewByteArray([]byte("NEO"))}, e.ResultStack())
	})
}

func TestRegistry(t *testing.T) {
	noop := func(*engine.Engine, []stackitem.Item) (stackitem.Item, error) { return nil, nil }
	_, err := engine.NewRegistry(
		engine.Descriptor{Name: "Test.A", Func: noop},
		engine.Descriptor{Name: "Test.A", Func: noop},
	)
	require.ErrorIs(t, err, engine.ErrDuplicateService)

	_, err = engine.NewRegistry(engine.Descriptor{Name: "Test.A"})
	require.ErrorIs(t, err, engine.ErrInvalidArgument)

	r, err := engine.NewRegistry(
		engine.Descriptor{Name: "Test.B", Func: noop},
		engine.Descriptor{Name: "Test.A", Func: noop},
	)
	require.NoError(t, err)
	ds := r.Descriptors()
	require.Len(t, ds, 2)
	require.Equal(t, "Test.A", ds[0].Name)
	require.Equal(t, interopnames.ToID([]byte("Test.A")), ds[0].ID)
	require.NotNil(t, r.Get(ds[1].ID))
	require.Nil(t, r.Get(1))
}

func TestInvocationTree(t *testing.T) {
	env := newEnv(t)
	c := env.deploy(t, 1, "answer", nil, method{name: "answer", returns: smartcontract.IntegerType, code: func(w *io.BinWriter) {
		emit.Int(w, 1)
	}})
	tree := new(engine.InvocationTree)
	e := env.newEngine(t, func(p *engine.Prm) { p.Diagnostics = tree })
	script := makeScript(t, func(w *io.BinWriter) {
		emit.AppCall(w, c.Hash, "answer", callflag.All)
		emit.AppCall(w, c.Hash, "answer", callflag.All)
	})
	entry, err := e.LoadScript(script, -1, 0, nil)
	require.NoError(t, err)
	e.Execute()
	requireHalt(t, e)

	require.Len(t, tree.Roots, 1)
	require.Equal(t, entry.ScriptHash(), tree.Roots[0].Hash)
	require.Len(t, tree.Roots[0].Children, 2)
	require.Equal(t, c.Hash, tree.Roots[0].Children[0].Hash)
	require.Greater(t, tree.Instructions, 0)
}
