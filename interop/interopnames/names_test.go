package interopnames

import (
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/interop/interopnames"
	"github.com/stretchr/testify/require"
)

func TestToID(t *testing.T) {
	for _, name := range []string{SystemCryptoCheckSig, SystemRuntimeNotify, SystemStoragePut} {
		require.Equal(t, interopnames.ToID([]byte(name)), ToID([]byte(name)), name)
	}
	require.EqualValues(t, 0x27b3e756, ToID([]byte(SystemCryptoCheckSig)))
}
