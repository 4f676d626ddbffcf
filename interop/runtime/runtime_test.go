package runtime_test

import (
	"strings"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/config/netmode"
	"github.com/nspcc-dev/neo-go/pkg/core/block"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/config"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/interop/runtime"
	"github.com/nspcc-dev/neoexec/storage"
	"github.com/stretchr/testify/require"
)

// newEngine returns an engine executing a plain script before Basilisk, so
// notifications are not checked against ABI.
func newEngine(t *testing.T, c engine.Container) *engine.Engine {
	settings := config.Default(netmode.UnitTestNet)
	settings.Hardforks = map[string]uint32{config.HFBasilisk.String(): 100}
	e, err := engine.New(engine.Prm{
		Container:       c,
		Snapshot:        storage.NewSnapshot(storage.NewMemoryStore()),
		Settings:        settings,
		PersistingBlock: &block.Header{Index: 1, Timestamp: 1234},
		GasLimit:        -1,
	})
	require.NoError(t, err)
	_, err = e.LoadScript([]byte{0x40}, 0, 0, nil)
	require.NoError(t, err)
	return e
}

func newTx() *transaction.Transaction {
	tx := transaction.New([]byte{0x11, 0x40}, 100)
	tx.Nonce = 42
	tx.NetworkFee = 7
	tx.ValidUntilBlock = 1000
	tx.Signers = []transaction.Signer{
		{Account: util.Uint160{1, 2, 3}, Scopes: transaction.CalledByEntry},
		{Account: util.Uint160{4, 5, 6}, Scopes: transaction.CustomContracts, AllowedContracts: []util.Uint160{{9}}},
	}
	return tx
}

func mustInt(t *testing.T, item stackitem.Item) int64 {
	n, err := item.TryInteger()
	require.NoError(t, err)
	return n.Int64()
}

func TestSimpleGetters(t *testing.T) {
	e := newEngine(t, nil)

	res, err := runtime.GetPlatform(e, nil)
	require.NoError(t, err)
	require.Equal(t, []byte(runtime.Platform), res.Value())

	res, err = runtime.GetNetwork(e, nil)
	require.NoError(t, err)
	require.EqualValues(t, netmode.UnitTestNet, mustInt(t, res))

	res, err = runtime.GetTime(e, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1234, mustInt(t, res))

	res, err = runtime.GetCallingScriptHash(e, nil)
	require.NoError(t, err)
	require.Equal(t, stackitem.Null{}, res)
}

func TestBurnGas(t *testing.T) {
	e := newEngine(t, nil)
	for _, n := range []int64{0, -1} {
		_, err := runtime.BurnGas(e, []stackitem.Item{stackitem.Make(n)})
		require.ErrorIs(t, err, runtime.ErrInvalidGas)
	}
	_, err := runtime.BurnGas(e, []stackitem.Item{stackitem.Make(100)})
	require.NoError(t, err)
	require.EqualValues(t, 100, e.FeeConsumed())
}

func TestScriptContainer(t *testing.T) {
	tx := newTx()
	e := newEngine(t, tx)

	res, err := runtime.GetScriptContainer(e, nil)
	require.NoError(t, err)
	arr := res.Value().([]stackitem.Item)
	require.Len(t, arr, 8)
	require.Equal(t, tx.Hash().BytesBE(), arr[0].Value())
	require.Equal(t, tx.Sender().BytesBE(), arr[3].Value())
	require.Equal(t, tx.Script, arr[7].Value())

	t.Run("signers", func(t *testing.T) {
		res, err := runtime.CurrentSigners(e, nil)
		require.NoError(t, err)
		signers := res.Value().([]stackitem.Item)
		require.Len(t, signers, 2)
		second := signers[1].Value().([]stackitem.Item)
		require.Len(t, second, 5)
		require.Equal(t, tx.Signers[1].Account.BytesBE(), second[0].Value())
		require.Len(t, second[2].Value(), 1)
	})
	t.Run("no container", func(t *testing.T) {
		e := newEngine(t, nil)
		_, err := runtime.GetScriptContainer(e, nil)
		require.ErrorIs(t, err, runtime.ErrInvalidContainer)

		res, err := runtime.CurrentSigners(e, nil)
		require.NoError(t, err)
		require.Equal(t, stackitem.Null{}, res)
	})
}

func TestCheckWitnessArgument(t *testing.T) {
	e := newEngine(t, newTx())
	for _, b := range [][]byte{make([]byte, 19), make([]byte, 33), make([]byte, 34)} {
		_, err := runtime.CheckWitness(e, []stackitem.Item{stackitem.NewByteArray(b)})
		require.ErrorIs(t, err, runtime.ErrInvalidWitness)
	}
	res, err := runtime.CheckWitness(e, []stackitem.Item{stackitem.NewByteArray(util.Uint160{1, 2, 3}.BytesBE())})
	require.NoError(t, err)
	require.Equal(t, stackitem.NewBool(true), res)
}

func TestLog(t *testing.T) {
	e := newEngine(t, nil)

	_, err := runtime.Log(e, []stackitem.Item{stackitem.Make("hello")})
	require.NoError(t, err)
	require.Len(t, e.Logs(), 1)
	require.Equal(t, "hello", e.Logs()[0].Message)

	_, err = runtime.Log(e, []stackitem.Item{stackitem.Make(strings.Repeat("a", runtime.MaxNotificationSize+1))})
	require.ErrorIs(t, err, runtime.ErrMessageTooLong)

	_, err = runtime.Log(e, []stackitem.Item{stackitem.NewByteArray([]byte{0xff, 0xfe})})
	require.ErrorIs(t, err, runtime.ErrInvalidUTF8)
	require.Len(t, e.Logs(), 1)
}

func TestNotify(t *testing.T) {
	e := newEngine(t, nil)
	notify := func(name string, state stackitem.Item) error {
		_, err := runtime.Notify(e, []stackitem.Item{stackitem.Make(name), state})
		return err
	}

	require.NoError(t, notify("ev", stackitem.NewArray([]stackitem.Item{stackitem.Make(1)})))
	require.NoError(t, notify("st", stackitem.NewStruct([]stackitem.Item{stackitem.Make(2)})))
	require.Len(t, e.Notifications(), 2)

	require.ErrorIs(t, notify(strings.Repeat("n", runtime.MaxEventNameLen+1), stackitem.NewArray(nil)), runtime.ErrInvalidEvent)
	require.ErrorIs(t, notify("ev", stackitem.Make(1)), engine.ErrInvalidArgument)

	large := stackitem.NewByteArray(make([]byte, runtime.MaxNotificationSize))
	require.ErrorIs(t, notify("ev", stackitem.NewArray([]stackitem.Item{large})), runtime.ErrInvalidEvent)

	t.Run("filter", func(t *testing.T) {
		res, err := runtime.GetNotifications(e, []stackitem.Item{stackitem.Null{}})
		require.NoError(t, err)
		require.Len(t, res.Value(), 2)

		res, err = runtime.GetNotifications(e, []stackitem.Item{stackitem.NewByteArray(make([]byte, 20))})
		require.NoError(t, err)
		require.Len(t, res.Value(), 0)
	})

	t.Run("recorded arguments are immutable", func(t *testing.T) {
		res, err := runtime.GetNotifications(e, []stackitem.Item{stackitem.Null{}})
		require.NoError(t, err)
		ev := res.Value().([]stackitem.Item)[0].Value().([]stackitem.Item)
		state := ev[2].(*stackitem.Array)
		state.Append(stackitem.Make(99))
		state.Value().([]stackitem.Item)[0] = stackitem.Make(100)

		recorded := e.Notifications()[0].Item.Value().([]stackitem.Item)
		require.Len(t, recorded, 1)
		require.EqualValues(t, 1, mustInt(t, recorded[0]))

		res, err = runtime.GetNotifications(e, []stackitem.Item{stackitem.Null{}})
		require.NoError(t, err)
		ev = res.Value().([]stackitem.Item)[0].Value().([]stackitem.Item)
		require.Equal(t, 1, ev[2].(*stackitem.Array).Len())
	})
}

func TestCheckItemType(t *testing.T) {
	for _, tc := range []struct {
		item stackitem.Item
		typ  smartcontract.ParamType
		ok   bool
	}{
		{stackitem.Make(1), smartcontract.IntegerType, true},
		{stackitem.Make(true), smartcontract.IntegerType, false},
		{stackitem.Null{}, smartcontract.StringType, true},
		{stackitem.Null{}, smartcontract.IntegerType, false},
		{stackitem.NewByteArray(make([]byte, 20)), smartcontract.Hash160Type, true},
		{stackitem.NewByteArray(make([]byte, 21)), smartcontract.Hash160Type, false},
		{stackitem.NewBuffer(make([]byte, 64)), smartcontract.SignatureType, true},
		{stackitem.NewStruct(nil), smartcontract.ArrayType, true},
		{stackitem.NewMap(), smartcontract.ArrayType, false},
		{stackitem.NewPointer(0, []byte{0x40}), smartcontract.AnyType, false},
		{stackitem.NewMap(), smartcontract.AnyType, true},
	} {
		require.Equal(t, tc.ok, runtime.CheckItemType(tc.item, tc.typ), "%s as %s", tc.item.Type(), tc.typ)
	}
}
