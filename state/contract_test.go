package state

import (
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/nef"
	"github.com/stretchr/testify/require"
)

func TestContractStackItem(t *testing.T) {
	m := manifest.DefaultManifest("test")
	m.ABI.Methods = append(m.ABI.Methods, manifest.Method{
		Name:       "main",
		Offset:     0,
		ReturnType: smartcontract.IntegerType,
		Safe:       true,
	})

	c := Contract{
		ID:            42,
		UpdateCounter: 3,
		Hash:          util.Uint160{1, 2, 3},
		NEF:           *nef.NewFile([]byte{0x11, 0x40}),
		Manifest:      *m,
	}

	it, err := c.ToStackItem()
	require.NoError(t, err)

	var actual Contract
	require.NoError(t, actual.FromStackItem(it))
	require.Equal(t, c.ID, actual.ID)
	require.Equal(t, c.UpdateCounter, actual.UpdateCounter)
	require.Equal(t, c.Hash, actual.Hash)
	require.Equal(t, c.NEF, actual.NEF)
	require.Equal(t, "test", actual.Manifest.Name)
	require.NotNil(t, actual.Manifest.ABI.GetMethod("main", 0))

	require.Error(t, actual.FromStackItem(stackitem.NewArray(nil)))
	require.Error(t, actual.FromStackItem(stackitem.NewStruct([]stackitem.Item{
		stackitem.NewBigInteger(big.NewInt(1 << 40)), stackitem.Null{}, stackitem.Null{}, stackitem.Null{}, stackitem.Null{},
	})))
}

func TestCreateContractHash(t *testing.T) {
	h1 := CreateContractHash(util.Uint160{1}, 100, "a")
	require.NotEqual(t, h1, CreateContractHash(util.Uint160{1}, 100, "b"))
	require.NotEqual(t, h1, CreateContractHash(util.Uint160{1}, 101, "a"))
	require.Equal(t, h1, CreateContractHash(util.Uint160{1}, 100, "a"))
	require.NotEqual(t, CreateNativeContractHash("PolicyContract"), CreateNativeContractHash("LedgerContract"))
}
