package main

import (
	"github.com/spf13/cobra"

	"github.com/countradooku/libretto"
)

func newUpdateCmd(opts *options) *cobra.Command {
	var lowest bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "re-resolve requirements ignoring the lock file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := libretto.PreferLatest
			if lowest {
				mode = libretto.PreferLowest
			}
			res, err := opts.solve(cmd.Context(), mode, false)
			if err != nil {
				return renderSolveError(cmd, err)
			}
			if err := opts.writeLock(libretto.LockFromResolution(res)); err != nil {
				return err
			}
			printResolution(cmd, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&lowest, "prefer-lowest", false, "pick the lowest versions constraints allow")
	return cmd
}
