package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/countradooku/libretto"
)

func newInstallCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "resolve requirements, preferring locked versions, and write the lock file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.solve(cmd.Context(), libretto.PreferStable, true)
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
}

func printResolution(cmd *cobra.Command, res *libretto.Resolution) {
	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	for _, p := range res.Packages() {
		fmt.Fprintf(out, "  %s %s", bold.Sprint(p.Name), p.Version)
		if p.Dev {
			fmt.Fprintf(out, " %s", dim.Sprint("(dev)"))
		}
		fmt.Fprintln(out)
	}
	for _, d := range res.Platform() {
		fmt.Fprintf(out, "  %s %s %s\n", dim.Sprint("platform:"), d.Name, d.Constraint)
	}

	st := res.Stats()
	fmt.Fprintf(out, "%s %d packages (%d fetches, %d decisions, %d backjumps)\n",
		color.GreenString("resolved"), res.Len(),
		st.Fetch.Completed+st.Fetch.Failed, st.Decisions, st.Backtracks)
}

// renderSolveError gives conflicts their full derivation before the
// error propagates up.
func renderSolveError(cmd *cobra.Command, err error) error {
	var conflict *libretto.ConflictError
	if errors.As(err, &conflict) {
		fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("resolution is impossible:"))
		fmt.Fprintln(cmd.ErrOrStderr(), conflict.Explanation())
	}
	return err
}
