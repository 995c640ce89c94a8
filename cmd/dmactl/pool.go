package main

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshuapare/nicdma/dma/dmalog"
	"github.com/joshuapare/nicdma/dma/pool"
)

var (
	poolOps         int
	poolSeed        uint64
	poolMaxSize     uint64
	poolFreePercent int
	poolCoalesce    bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Exercise the boundary-safe pool allocator",
	}
	sim := newPoolSimulateCmd()
	sim.Flags().IntVarP(&poolOps, "ops", "n", 500, "Number of allocate/free operations")
	sim.Flags().Uint64Var(&poolSeed, "seed", 1, "Random seed")
	sim.Flags().Uint64Var(&poolMaxSize, "max-size", 2048, "Largest request size in bytes")
	sim.Flags().IntVar(&poolFreePercent, "free-percent", 40, "Percentage of operations that free a live allocation")
	sim.Flags().BoolVar(&poolCoalesce, "coalesce", false, "Merge adjacent free blocks (overrides config)")
	cmd.AddCommand(sim)
	rootCmd.AddCommand(cmd)
}

func newPoolSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run a random allocation workload and report pool statistics",
		Long: `The simulate command initializes the pools described by the
configuration, runs a seeded mix of allocations and frees, then prints pool
statistics, the health score and the result of a full layout verification.

Example:
  dmactl pool simulate
  dmactl pool simulate --ops 5000 --seed 7 --coalesce
  dmactl pool simulate --config dma.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("coalesce") {
				return runPoolSimulate(&poolCoalesce)
			}
			return runPoolSimulate(nil)
		},
	}
}

// poolSimResult is the JSON shape of a simulation run
type poolSimResult struct {
	Ops       int         `json:"ops"`
	Exhausted int         `json:"exhausted"`
	Live      int         `json:"live"`
	Stats     pool.Stats  `json:"stats"`
	Health    pool.Health `json:"health"`
	Verify    string      `json:"verify"`
}

var alignments = []uint64{0, 16, 32, 256}

func runPoolSimulate(coalesce *bool) error {
	if poolMaxSize == 0 {
		return errors.New("--max-size must be positive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pcfg := cfg.Pool
	if coalesce != nil {
		pcfg.Coalesce = *coalesce
	}

	logger := dmalog.L()
	sub, err := pool.New(pcfg, cfg.NewProvider(), cfg.NewLocker(), pool.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize pools: %w", err)
	}
	defer func() {
		if err := sub.Shutdown(); err != nil {
			printError("shutdown: %v\n", err)
		}
	}()

	rng := rand.New(rand.NewPCG(poolSeed, poolSeed))
	var live []*pool.Allocation
	res := poolSimResult{Ops: poolOps}
	for i := 0; i < poolOps; i++ {
		if len(live) > 0 && rng.IntN(100) < poolFreePercent {
			j := rng.IntN(len(live))
			if err := sub.Free(live[j]); err != nil {
				return fmt.Errorf("op %d: %w", i, err)
			}
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		size := 1 + rng.Uint64N(poolMaxSize)
		align := alignments[rng.IntN(len(alignments))]
		a, err := sub.Alloc(size, align)
		switch {
		case errors.Is(err, pool.ErrExhausted):
			res.Exhausted++
			continue
		case err != nil:
			return fmt.Errorf("op %d: %w", i, err)
		}
		live = append(live, a)
	}
	logger.Debug("simulation finished", zap.Int("ops", poolOps), zap.Int("live", len(live)))

	res.Live = len(live)
	res.Stats = sub.Stats()
	res.Health = sub.HealthCheck()
	res.Verify = "ok"
	verr := sub.Verify()
	if verr != nil {
		res.Verify = verr.Error()
	}

	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
		return verr
	}
	if !quiet {
		p := newPrinter()
		if err := p.PoolStats(res.Stats); err != nil {
			return err
		}
		if err := p.Health(res.Health); err != nil {
			return err
		}
	}
	printInfo("%d ops, %d live allocations, %d exhausted, verify: %s\n", res.Ops, res.Live, res.Exhausted, res.Verify)
	return verr
}
