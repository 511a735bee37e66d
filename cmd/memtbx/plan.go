package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/memtbx"
	"github.com/hupe1980/memtbx/mempool"
)

type planEntry struct {
	Blocks    int  `json:"blocks"`
	BlockSize int  `json:"block_size"`
	Stride    int  `json:"stride"`
	Grows     bool `json:"grows"`
	Cost      int  `json:"cost"`
}

type planReport struct {
	HeapCapacity int         `json:"heap_capacity"`
	Pools        []planEntry `json:"pools"`
	Required     int         `json:"required"`
	Remaining    int         `json:"remaining"`
	Fits         bool        `json:"fits"`
}

func newPlanCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <config.yaml>",
		Short: "Report the heap budget of a pool plan",
		Long: `The plan command computes the heap bytes every pool of a configuration
consumes, descriptor and block headers included, and checks the total against
the heap capacity. It fails when the plan does not fit.

Example:
  memtbx plan toolbox.yaml
  memtbx plan toolbox.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := memtbx.LoadConfig(args[0])
			if err != nil {
				return err
			}
			report, err := buildPlan(cfg)
			if err != nil {
				return err
			}
			if err := printPlan(newPrinter(cmd, flags), report, flags.jsonOut); err != nil {
				return err
			}
			if !report.Fits {
				return fmt.Errorf("plan needs %d bytes, heap has %d", report.Required, report.HeapCapacity)
			}
			return nil
		},
	}
}

func buildPlan(cfg memtbx.Config) (planReport, error) {
	report := planReport{HeapCapacity: cfg.HeapCapacity}

	seen := make(map[int]bool, len(cfg.Pools))
	for _, p := range cfg.Pools {
		cost, err := mempool.Cost(p.Blocks, p.BlockSize, seen[p.BlockSize])
		if err != nil {
			return planReport{}, fmt.Errorf("pool %d x %d: %w", p.Blocks, p.BlockSize, err)
		}
		report.Pools = append(report.Pools, planEntry{
			Blocks:    p.Blocks,
			BlockSize: p.BlockSize,
			Stride:    mempool.Stride(p.BlockSize),
			Grows:     seen[p.BlockSize],
			Cost:      cost,
		})
		seen[p.BlockSize] = true
	}

	required, err := cfg.HeapRequired()
	if err != nil {
		return planReport{}, err
	}
	report.Required = required
	report.Remaining = cfg.HeapCapacity - required
	report.Fits = required <= cfg.HeapCapacity
	return report, nil
}

func printPlan(p printer, r planReport, asJSON bool) error {
	if asJSON {
		return p.printJSON(r)
	}

	p.infof("Heap capacity: %d bytes\n", r.HeapCapacity)
	p.infof("\n%8s %10s %8s %8s\n", "BLOCKS", "BLOCK SIZE", "STRIDE", "COST")
	for _, e := range r.Pools {
		note := ""
		if e.Grows {
			note = " (grow)"
		}
		p.infof("%8d %10d %8d %8d%s\n", e.Blocks, e.BlockSize, e.Stride, e.Cost, note)
	}
	p.infof("\nRequired: %d bytes\n", r.Required)
	if r.Fits {
		p.infof("Remaining: %d bytes\n", r.Remaining)
		p.infof("✓ Plan fits\n")
	} else {
		p.infof("✗ Plan exceeds the heap by %d bytes\n", -r.Remaining)
	}
	return nil
}
