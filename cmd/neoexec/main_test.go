package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/neoexec/nef"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// PUSH1 PUSH2 ADD RET
const addScript = "11129e40"

func TestRun(t *testing.T) {
	out, err := execute(t, "run", "--script", addScript, "--tree")
	require.NoError(t, err)
	require.Contains(t, out, "State:     HALT")
	require.Contains(t, out, "  0: 3")
	require.Contains(t, out, "4 instruction(s)")

	t.Run("fault", func(t *testing.T) {
		out, err := execute(t, "run", "--script", "38")
		require.NoError(t, err)
		require.Contains(t, out, "State:     FAULT")
		require.Contains(t, out, "Exception:")
	})
	t.Run("no script", func(t *testing.T) {
		_, err := execute(t, "run")
		require.ErrorIs(t, err, errNoScript)
	})
	t.Run("unknown trigger", func(t *testing.T) {
		_, err := execute(t, "run", "--script", addScript, "--trigger", "nope")
		require.Error(t, err)
	})
	t.Run("env", func(t *testing.T) {
		t.Setenv("NEOEXEC_SCRIPT", "1140")
		out, err := execute(t, "run")
		require.NoError(t, err)
		require.Contains(t, out, "  0: 1")
	})
	t.Run("metrics", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "exec.prom")
		_, err := execute(t, "run", "--script", addScript, "--metrics-file", p)
		require.NoError(t, err)
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		require.Contains(t, string(data), `neoexec_executions_total{state="HALT"} 1`)
	})
	t.Run("nef file", func(t *testing.T) {
		raw, err := nef.NewFile([]byte{0x13, 0x40}).Bytes()
		require.NoError(t, err)
		p := filepath.Join(t.TempDir(), "c.nef")
		require.NoError(t, os.WriteFile(p, raw, 0600))

		out, err := execute(t, "run", "--script", p)
		require.NoError(t, err)
		require.Contains(t, out, "  0: 3")

		out, err = execute(t, "nef", "inspect", p)
		require.NoError(t, err)
		require.Contains(t, out, "Script:      2 bytes")

		raw[len(raw)-1] ^= 0xff
		require.NoError(t, os.WriteFile(p, raw, 0600))
		_, err = execute(t, "nef", "inspect", p)
		require.Error(t, err)
	})
}

func TestRunDatabase(t *testing.T) {
	for _, kind := range []string{dbLevelDB, dbBoltDB} {
		t.Run(kind, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "db")
			_, err := execute(t, "run", "--script", addScript, "--db", kind, "--db-path", p, "--commit")
			require.NoError(t, err)
			_, err = execute(t, "run", "--script", addScript, "--db", kind, "--db-path", p)
			require.NoError(t, err)
		})
	}
	_, err := execute(t, "run", "--script", addScript, "--db", dbLevelDB)
	require.ErrorIs(t, err, errNoDBPath)
}

func TestRunDump(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "run", "--script", addScript, "--save-dump", dir, "--dump-label", "unit", "--height", "5")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "unit-5-contracts.json"))

	_, err = execute(t, "run", "--script", addScript, "--dump-dir", dir, "--dump-label", "unit", "--dump-block", "5")
	require.NoError(t, err)

	_, err = execute(t, "run", "--script", addScript, "--dump-dir", dir, "--dump-label", "none")
	require.Error(t, err)
}

func TestServices(t *testing.T) {
	out, err := execute(t, "services")
	require.NoError(t, err)
	require.Contains(t, out, "System.Runtime.Platform")
	require.Contains(t, out, "System.Crypto.CheckSigV2")
	require.Contains(t, out, "Echidna")
}
