package codec

import (
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

func nestedValue() stackitem.Item {
	inner := stackitem.NewMap()
	inner.Add(stackitem.NewByteArray([]byte("leaf")), stackitem.NewArray([]stackitem.Item{
		stackitem.NewBigInteger(big.NewInt(-100500)),
		stackitem.NewBool(true),
		stackitem.Null{},
	}))
	mid := stackitem.NewMap()
	mid.Add(stackitem.NewBigInteger(big.NewInt(1)), inner)
	mid.Add(stackitem.NewBool(false), stackitem.NewBuffer([]byte{1, 2, 3}))
	return stackitem.NewArray([]stackitem.Item{
		mid,
		stackitem.NewStruct([]stackitem.Item{stackitem.NewByteArray([]byte("s"))}),
		stackitem.NewByteArray(nil),
	})
}

func TestSerializeRoundTrip(t *testing.T) {
	for _, item := range []stackitem.Item{
		stackitem.Null{},
		stackitem.NewBool(true),
		stackitem.NewBigInteger(big.NewInt(0)),
		stackitem.NewBigInteger(new(big.Int).Lsh(big.NewInt(1), 200)),
		stackitem.NewByteArray([]byte("neo")),
		stackitem.NewBuffer([]byte{0xff}),
		stackitem.NewArray(nil),
		nestedValue(),
	} {
		data, err := Serialize(item)
		require.NoError(t, err)

		actual, err := Deserialize(data)
		require.NoError(t, err)
		requireEqualItems(t, item, actual)
	}
}

func TestSerializeFormat(t *testing.T) {
	data, err := Serialize(stackitem.NewArray([]stackitem.Item{
		stackitem.NewBigInteger(big.NewInt(1)),
		stackitem.NewByteArray([]byte{0xaa}),
	}))
	require.NoError(t, err)
	require.Equal(t, []byte{0x40, 0x02, 0x21, 0x01, 0x01, 0x28, 0x01, 0xaa}, data)
}

func TestSerializeCycle(t *testing.T) {
	arr := stackitem.NewArray(nil)
	arr.Append(arr)

	_, err := Serialize(arr)
	require.ErrorIs(t, err, ErrCircularReference)

	m := stackitem.NewMap()
	m.Add(stackitem.NewBigInteger(big.NewInt(1)), stackitem.NewArray([]stackitem.Item{m}))
	_, err = Serialize(m)
	require.ErrorIs(t, err, ErrCircularReference)
}

func TestSerializeLimits(t *testing.T) {
	items := make([]stackitem.Item, 10)
	for i := range items {
		items[i] = stackitem.NewBigInteger(big.NewInt(int64(i)))
	}
	arr := stackitem.NewArray(items)

	_, err := SerializeLimited(arr, Limits{MaxSize: MaxSize, MaxItems: 5})
	require.ErrorIs(t, err, ErrTooManyItems)

	_, err = SerializeLimited(stackitem.NewByteArray(make([]byte, 100)), Limits{MaxSize: 50, MaxItems: 10})
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = Serialize(stackitem.NewInterop(42))
	require.ErrorIs(t, err, ErrUnserializable)

	t.Run("size boundary", func(t *testing.T) {
		// Type byte and 1-byte length prefix.
		data, err := SerializeLimited(stackitem.NewByteArray(make([]byte, 48)), Limits{MaxSize: 50, MaxItems: 10})
		require.NoError(t, err)
		require.Len(t, data, 50)

		_, err = SerializeLimited(stackitem.NewByteArray(make([]byte, 49)), Limits{MaxSize: 50, MaxItems: 10})
		require.ErrorIs(t, err, ErrTooLarge)

		// Type byte and 5-byte length prefix.
		data, err = Serialize(stackitem.NewByteArray(make([]byte, MaxSize-6)))
		require.NoError(t, err)
		require.Len(t, data, MaxSize)
	})
	t.Run("items checked before size", func(t *testing.T) {
		nulls := make([]stackitem.Item, 100)
		for i := range nulls {
			nulls[i] = stackitem.Null{}
		}
		_, err := SerializeLimited(stackitem.NewArray(nulls), Limits{MaxSize: 50, MaxItems: 1})
		require.ErrorIs(t, err, ErrTooManyItems)
	})

	data, err := Serialize(arr)
	require.NoError(t, err)
	_, err = DeserializeLimited(data, Limits{MaxSize: MaxSize, MaxItems: 5})
	require.ErrorIs(t, err, ErrTooManyItems)
}

func TestDeserializeInvalid(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":          {},
		"unknown type":   {0x99},
		"truncated":      {0x28, 0x05, 0x01},
		"trailing bytes": {0x00, 0x00},
		"missing items":  {0x40, 0x02, 0x00},
		"interop":        {byte(stackitem.InteropT)},
		"compound key":   {0x48, 0x01, 0x40, 0x00, 0x00},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Deserialize(data)
			require.Error(t, err)
		})
	}
}
