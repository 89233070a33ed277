package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkOpts driveOpts

func init() {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify allocator invariants after every operation",
		Long: `The check command runs a workload (random churn by default) and walks
every tier's structures after each operation, stopping at the first
inconsistency.

Example:
  memctl check --steps 2000 --seed 7
  memctl check --workload script`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd)
		},
	}
	addDriveFlags(cmd, &checkOpts, 2000)
	rootCmd.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command) error {
	sys, err := openSystem(false)
	if err != nil {
		return err
	}
	defer sys.Close()

	res, err := drive(sys, checkOpts, sys.Check)
	if err != nil {
		return fmt.Errorf("invariant check failed: %w", err)
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d ops checked (%s, %d failed requests)\n", res.Ops, res.Workload, res.Failures)
	return nil
}
