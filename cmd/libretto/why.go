package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/countradooku/libretto"
)

func newWhyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "why <package>",
		Short: "show which packages depend on the given package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg := libretto.PackageName(args[0])

			// Depender edges aren't recorded in the lock, so re-solve
			// with the lock's pins; with every version pinned this stays
			// metadata-only work.
			res, err := opts.solve(cmd.Context(), libretto.PreferStable, true)
			if err != nil {
				return renderSolveError(cmd, err)
			}

			if !res.Contains(pkg) {
				return errors.Errorf("%s is not part of the resolution", pkg)
			}
			target := pkg
			if p, ok := res.ProviderOf(pkg); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is provided by %s\n", pkg, color.New(color.Bold).Sprint(p))
				target = p
			}

			dependents := res.DependentsOf(target)
			if len(dependents) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is required by the project itself\n", target)
				return nil
			}
			for _, d := range dependents {
				rp, _ := res.Get(d)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s requires %s\n",
					color.New(color.Bold).Sprint(d), rp.Version, target)
			}
			return nil
		},
	}
}
