// Command mesisim runs a cycle-accurate simulation of a four-core
// shared-memory system with private write-back MESI caches over a
// single central snooping bus, and reports per-core and system-level
// statistics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/mesisim/internal/coherence"
	"github.com/sarchlab/mesisim/internal/config"
	"github.com/sarchlab/mesisim/internal/mesicache"
	"github.com/sarchlab/mesisim/internal/report"
	"github.com/sarchlab/mesisim/internal/scheduler"
	"github.com/sarchlab/mesisim/internal/stats"
	"github.com/sarchlab/mesisim/internal/trace"
)

var cfg config.SimConfig

var rootCmd = &cobra.Command{
	Use:   "mesisim",
	Short: "Simulate a four-core MESI shared-memory system over a snooping bus.",
	Long: `mesisim replays per-core memory reference traces against private,
write-back caches kept coherent by the MESI protocol over a single
central snooping bus, and reports execution, miss, and bus traffic
statistics for each core.`,
	RunE: runSimulation,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&cfg.TracePrefix, "trace", "t", "", "trace file prefix (required)")
	flags.IntVarP(&cfg.Cache.S, "set-bits", "s", 0, "number of set index bits")
	flags.IntVarP(&cfg.Cache.E, "ways", "E", 1, "associativity (lines per set)")
	flags.IntVarP(&cfg.Cache.B, "block-bits", "b", 0, "number of block offset bits")
	flags.StringVarP(&cfg.OutPath, "out", "o", "", "output file (default: standard output)")
	flags.BoolVarP(&cfg.Debug, "debug", "d", false, "enable per-cycle debug trace")
	flags.StringVar(&cfg.TraceJSON, "trace-json", "", "dump the bus transaction log as JSON to this file")

	_ = rootCmd.MarkFlagRequired("trace")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mesisim: %v\n", err)
		os.Exit(1)
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cfg.Validate(); err != nil {
		return err
	}

	refs, err := trace.LoadCores(cfg.TracePrefix)
	if err != nil {
		return err
	}

	var caches [4]*mesicache.PrivateCache
	var st [4]*stats.Stats
	for c := range caches {
		caches[c] = mesicache.New(cfg.Cache)
		st[c] = &stats.Stats{}
	}

	bus := coherence.NewBus()
	ctl := coherence.NewController(cfg.Cache, caches, bus, st)
	sched := scheduler.New(caches, bus, ctl, st, refs)

	if cfg.Debug {
		sched.SetDebugSink(trace.NewLogger(os.Stderr))
	}

	start := time.Now()
	runErr := sched.Run(ctx)
	elapsed := time.Since(start)
	if runErr != nil {
		return fmt.Errorf("simulation did not complete: %w", runErr)
	}

	out := os.Stdout
	if cfg.OutPath != "" {
		f, err := os.Create(cfg.OutPath)
		if err != nil {
			return fmt.Errorf("cannot open output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if cfg.TraceJSON != "" {
		jf, err := os.Create(cfg.TraceJSON)
		if err != nil {
			return fmt.Errorf("cannot open trace-json output file: %w", err)
		}
		defer func() { _ = jf.Close() }()
		if err := report.WriteJSON(jf, st, bus); err != nil {
			return fmt.Errorf("cannot write trace-json output: %w", err)
		}
	}

	params := report.Params{TracePrefix: cfg.TracePrefix, Cache: cfg.Cache}
	return report.Write(out, params, st, bus, elapsed.Seconds())
}
