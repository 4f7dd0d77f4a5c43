package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adblockplus/extension-contract-tests/config"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists the browsers and suites that can be selected with BROWSERS and SUITES",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Browsers:")
			for _, name := range newBrowserRegistry().Names() {
				fmt.Fprintf(out, "  %s (override with %s)\n", name, config.BinaryOverrideVar(name))
			}
			fmt.Fprintln(out, "Suites:")
			for _, name := range newSuiteRegistry().Names() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}
