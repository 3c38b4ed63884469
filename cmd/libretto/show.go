package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newShowCmd(opts *options) *cobra.Command {
	var devOnly bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "list locked packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lock, err := opts.readLock()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			dim := color.New(color.Faint)
			for _, p := range lock.Packages {
				if devOnly && !p.Dev {
					continue
				}
				fmt.Fprintf(out, "%s %s", bold.Sprint(p.Name), p.Version)
				if p.Dev {
					fmt.Fprintf(out, " %s", dim.Sprint("(dev)"))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&devOnly, "dev", false, "only packages pulled in by dev requirements")
	return cmd
}
