package main

import (
	"fmt"
	"os"

	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neoexec/nef"
	"github.com/spf13/cobra"
)

func newNEFCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nef",
		Short: "NEF file operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode NEF file and verify its checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read NEF file: %w", err)
			}
			f, err := nef.FileFromBytes(data)
			if err != nil {
				return fmt.Errorf("decode NEF file: %w", err)
			}
			settings, err := a.settings()
			if err != nil {
				return err
			}
			printNEF(cmd, &f, settings.AddressVersion)
			return nil
		},
	})
	return cmd
}

func printNEF(cmd *cobra.Command, f *nef.File, version byte) {
	out := cmd.OutOrStdout()
	h := hash.Hash160(f.Script)
	fmt.Fprintf(out, "Compiler:    %s\n", f.Header.Compiler)
	fmt.Fprintf(out, "Source:      %s\n", f.Source)
	fmt.Fprintf(out, "Script:      %d bytes\n", len(f.Script))
	fmt.Fprintf(out, "Script hash: 0x%s (%s)\n", h.StringLE(), address(version, h))
	fmt.Fprintf(out, "Checksum:    0x%08x\n", f.Checksum)
	fmt.Fprintf(out, "Tokens:      %d\n", len(f.Tokens))
	for i, t := range f.Tokens {
		fmt.Fprintf(out, "  %d: 0x%s.%s params=%d return=%t flags=%s\n",
			i, t.Hash.StringLE(), t.Method, t.ParamCount, t.HasReturn, t.CallFlag)
	}
}
