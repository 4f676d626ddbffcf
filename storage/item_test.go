package storage

import (
	"errors"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

type record struct {
	name  string
	count int64
}

func (r *record) ToStackItem() (stackitem.Item, error) {
	return stackitem.NewStruct([]stackitem.Item{
		stackitem.NewByteArray([]byte(r.name)),
		stackitem.NewBigInteger(big.NewInt(r.count)),
	}), nil
}

func (r *record) FromStackItem(it stackitem.Item) error {
	s, ok := it.Value().([]stackitem.Item)
	if !ok || len(s) != 2 {
		return errors.New("invalid record")
	}
	name, err := s[0].TryBytes()
	if err != nil {
		return err
	}
	n, err := s[1].TryInteger()
	if err != nil {
		return err
	}
	r.name, r.count = string(name), n.Int64()
	return nil
}

type broken struct{}

func (broken) ToStackItem() (stackitem.Item, error) { return stackitem.NewInterop(nil), nil }
func (broken) FromStackItem(stackitem.Item) error  { return nil }

func TestItemInt(t *testing.T) {
	it := NewIntItem(big.NewInt(256))
	b, err := it.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x01}, b)

	it = NewItem([]byte{0xff})
	n, err := it.Int()
	require.NoError(t, err)
	require.EqualValues(t, -1, n.Int64())

	it.SetInt(big.NewInt(1))
	b, err = it.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, b)
}

func TestItemConvertible(t *testing.T) {
	it := NewConvertibleItem(&record{name: "neo", count: 3})
	require.NoError(t, it.Seal())

	clone := it.Clone()

	var r record
	require.NoError(t, clone.Convertible(&r))
	require.Equal(t, record{name: "neo", count: 3}, r)

	r.count++
	b, err := clone.Bytes()
	require.NoError(t, err)

	var r2 record
	require.NoError(t, NewItem(b).Convertible(&r2))
	require.EqualValues(t, 4, r2.count)

	require.Error(t, NewConvertibleItem(broken{}).Seal())
	require.Error(t, NewItem([]byte{0x99}).Convertible(&r))
}

func TestItemSealDetachesValue(t *testing.T) {
	r := &record{name: "neo", count: 3}
	it := NewConvertibleItem(r)
	require.NoError(t, it.Seal())
	sealed, err := it.Bytes()
	require.NoError(t, err)

	r.count = 100
	b, err := it.Bytes()
	require.NoError(t, err)
	require.Equal(t, sealed, b)

	var decoded record
	require.NoError(t, it.Convertible(&decoded))
	require.EqualValues(t, 3, decoded.count)
}
