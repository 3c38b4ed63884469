package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "check that the manifest parses and its constraints are well-formed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := opts.readManifest()
			if err != nil {
				return err
			}
			if _, err := m.Dependencies(); err != nil {
				return err
			}
			if _, err := m.DevDependencies(); err != nil {
				return err
			}
			if _, err := m.Stability(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid\n",
				color.GreenString("ok"), opts.manifestPath())
			return nil
		},
	}
}
