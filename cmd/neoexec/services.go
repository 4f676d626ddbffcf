package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/nspcc-dev/neoexec/config"
	"github.com/nspcc-dev/neoexec/interop"
	"github.com/spf13/cobra"
)

func newServicesCommand(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List available interop services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tID\tPRICE\tFLAGS\tHARDFORK")
			for _, d := range interop.Default().Descriptors() {
				hf := "-"
				if d.Hardfork != config.HFDefault {
					hf = d.Hardfork.String()
				}
				fmt.Fprintf(w, "%s\t0x%08x\t%d\t%s\t%s\n", d.Name, d.ID, d.Price, d.RequiredFlags, hf)
			}
			return w.Flush()
		},
	}
}
