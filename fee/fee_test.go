package fee

import (
	"math"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/stretchr/testify/require"
)

func TestStorageWriteCost(t *testing.T) {
	old := make([]byte, 10)

	for _, tc := range []struct {
		name     string
		old      []byte
		isNew    bool
		newValue []byte
		expected int64
	}{
		{"new key", nil, true, make([]byte, 10), 11},
		{"shorter", old, false, make([]byte, 4), 1},
		{"same length", old, false, make([]byte, 10), 3},
		{"longer", old, false, make([]byte, 20), 13},
		{"empty new value", old, false, nil, 0},
		{"old empty", []byte{}, false, make([]byte, 7), 7},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.EqualValues(t, tc.expected, StorageWriteCost(1, tc.old, tc.isNew, tc.newValue))
		})
	}
}

func TestUnits(t *testing.T) {
	require.EqualValues(t, 0, ToDatoshi(0))
	require.EqualValues(t, 1, ToDatoshi(1))
	require.EqualValues(t, 1, ToDatoshi(FeeFactor))
	require.EqualValues(t, 2, ToDatoshi(FeeFactor+1))
	require.EqualValues(t, 1, ToDatoshiFloor(2*FeeFactor-1))

	p, err := FromDatoshi(3)
	require.NoError(t, err)
	require.EqualValues(t, 3*FeeFactor, p)

	_, err = FromDatoshi(math.MaxInt64)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestResourceCost(t *testing.T) {
	c, err := ResourceCost{CPU: 1, Memory: 2, Storage: 3}.Add(ResourceCost{CPU: 4, Memory: 5, Storage: 6})
	require.NoError(t, err)
	require.Equal(t, ResourceCost{CPU: 5, Memory: 7, Storage: 9}, c)

	_, err = ResourceCost{Memory: math.MaxUint64}.Add(ResourceCost{Memory: 1})
	require.ErrorIs(t, err, ErrOverflow)

	d, err := c.Datoshi(30, 1, 100)
	require.NoError(t, err)
	require.EqualValues(t, 5*30+7+9*100, d)

	_, err = ResourceCost{Storage: math.MaxUint64 / 2}.Datoshi(1, 1, 4)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestOpcodePrice(t *testing.T) {
	require.EqualValues(t, 1, OpcodePrice(opcode.PUSH1))
	require.EqualValues(t, 1<<15, OpcodePrice(opcode.CALLT))
	require.EqualValues(t, 0, OpcodePrice(opcode.RET))
	require.EqualValues(t, 1<<13, OpcodePrice(opcode.CONVERT))
	require.EqualValues(t, 30*(1+1<<3), Opcode(30, opcode.PUSH1, opcode.ADD))
}
