package main

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/mem/system"
)

// driveOpts selects what drive runs.
type driveOpts struct {
	workload string
	trace    string
	steps    int
	seed     int64
}

var (
	runOpts   driveOpts
	runReport bool
	runSites  int
)

func init() {
	cmd := newRunCmd()
	addDriveFlags(cmd, &runOpts, 10000)
	cmd.Flags().BoolVar(&runReport, "report", false, "Track allocation sites and print a report")
	cmd.Flags().IntVar(&runSites, "sites", 10, "Sites listed in the report (0 = all)")
	rootCmd.AddCommand(cmd)
}

func workloadNames() []string {
	names := make([]string, 0, len(workloads))
	for name := range workloads {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a workload and print allocator statistics",
		Long: `The run command builds a fresh allocator stack, drives it with a
built-in workload or a recorded trace, and prints per-tier statistics.

Example:
  memctl run --workload churn --steps 50000
  memctl run --workload scenario-b --json
  memctl run --trace testdata/trace.yaml --report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd)
		},
	}
}

func runRun(cmd *cobra.Command) error {
	sys, err := openSystem(runReport)
	if err != nil {
		return err
	}
	defer sys.Close()

	res, err := drive(sys, runOpts, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		o := runOutput{Result: res, Stats: sys.Stats()}
		if runReport {
			r := sys.Report()
			o.Report = &r
		}
		return printJSON(out, o)
	}

	fmt.Fprintf(out, "%s: %d ops, %d failed, %d live\n", res.Workload, res.Ops, res.Failures, res.Live)
	printStats(out, sys.Stats())
	if runReport {
		return sys.Report().Format(out, runSites)
	}
	return nil
}

func addDriveFlags(cmd *cobra.Command, o *driveOpts, steps int) {
	cmd.Flags().StringVarP(&o.workload, "workload", "w", "churn",
		"Workload: "+strings.Join(workloadNames(), ", "))
	cmd.Flags().StringVar(&o.trace, "trace", "", "Replay a YAML trace instead of a built-in workload")
	cmd.Flags().IntVarP(&o.steps, "steps", "n", steps, "Operations for random workloads")
	cmd.Flags().Int64Var(&o.seed, "seed", 1, "Random seed")
}

// drive runs the selected trace or workload.
func drive(sys *system.System, o driveOpts, check func() error) (Result, error) {
	if o.trace != "" {
		tr, err := loadTrace(o.trace)
		if err != nil {
			return Result{}, err
		}
		return tr.replay(sys, check)
	}
	w, ok := workloads[o.workload]
	if !ok {
		return Result{}, fmt.Errorf("unknown workload %q (want one of %s)",
			o.workload, strings.Join(workloadNames(), ", "))
	}
	return w(sys, o.steps, rand.New(rand.NewSource(o.seed)), check)
}
