package codec

import (
	"bytes"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

// requireEqualItems compares items structurally, compound items are compared
// element by element.
func requireEqualItems(t testing.TB, expected, actual stackitem.Item) {
	require.Equal(t, expected.Type(), actual.Type())

	switch expected.Type() {
	case stackitem.ArrayT, stackitem.StructT:
		exp := expected.Value().([]stackitem.Item)
		act := actual.Value().([]stackitem.Item)
		require.Equal(t, len(exp), len(act))
		for i := range exp {
			requireEqualItems(t, exp[i], act[i])
		}
	case stackitem.MapT:
		exp := expected.Value().([]stackitem.MapElement)
		act := actual.Value().([]stackitem.MapElement)
		require.Equal(t, len(exp), len(act))
		for i := range exp {
			requireEqualItems(t, exp[i].Key, act[i].Key)
			requireEqualItems(t, exp[i].Value, act[i].Value)
		}
	case stackitem.ByteArrayT, stackitem.BufferT:
		require.True(t, bytes.Equal(expected.Value().([]byte), actual.Value().([]byte)))
	default:
		require.True(t, expected.Equals(actual), "expected %s, got %s", expected, actual)
	}
}
