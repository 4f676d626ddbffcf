package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/config/netmode"
	"github.com/nspcc-dev/neoexec/fee"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	const cfg = `
ProtocolConfiguration:
  Magic: 860833102
  Hardforks:
    Aspidochelone: 1730000
    Basilisk: 4120000
  StoragePrice: 50000
`
	s, err := Decode(strings.NewReader(cfg))
	require.NoError(t, err)
	require.Equal(t, netmode.MainNet, s.Magic)
	require.EqualValues(t, DefaultAddressVersion, s.AddressVersion)
	require.EqualValues(t, fee.DefaultExecFeeFactor, s.ExecFeeFactor)
	require.EqualValues(t, 50000, s.StoragePrice)

	require.False(t, s.IsHardforkEnabled(HFBasilisk, 10))
	require.True(t, s.IsHardforkEnabled(HFBasilisk, 4120000))
	require.True(t, s.IsHardforkEnabled(HFAspidochelone, 4120000))
	require.False(t, s.IsHardforkEnabled(HFEchidna, 1<<30))
	require.True(t, s.IsHardforkEnabled(HFDefault, 0))
}

func TestDecodeInvalid(t *testing.T) {
	t.Run("unknown hardfork", func(t *testing.T) {
		_, err := Decode(strings.NewReader("ProtocolConfiguration:\n  Hardforks:\n    Unicorn: 1\n"))
		require.ErrorIs(t, err, errUnknownHardfork)
	})
	t.Run("unordered", func(t *testing.T) {
		_, err := Decode(strings.NewReader("ProtocolConfiguration:\n  Hardforks:\n    Aspidochelone: 10\n    Basilisk: 5\n"))
		require.Error(t, err)
	})
	t.Run("empty", func(t *testing.T) {
		s, err := Decode(strings.NewReader(""))
		require.NoError(t, err)
		require.EqualValues(t, fee.DefaultStoragePrice, s.StoragePrice)
	})
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "protocol.yml")
	require.NoError(t, os.WriteFile(p, []byte("ProtocolConfiguration:\n  Magic: 42\n"), 0600))

	s, err := Load(p)
	require.NoError(t, err)
	require.EqualValues(t, 42, s.Magic)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	s := Default(netmode.UnitTestNet)
	for _, h := range Hardforks {
		require.True(t, s.IsHardforkEnabled(h, 0), h.String())
	}
	require.NoError(t, s.Validate())
}

func TestHardfork(t *testing.T) {
	h, ok := ParseHardfork("Echidna")
	require.True(t, ok)
	require.Equal(t, HFEchidna, h)
	require.Equal(t, -1, HFBasilisk.Cmp(HFEchidna))
	require.Equal(t, "Default", HFDefault.String())
}
