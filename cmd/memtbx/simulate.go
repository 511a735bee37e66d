package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/hupe1980/memtbx"
	"github.com/hupe1980/memtbx/heap"
	"github.com/hupe1980/memtbx/mempool"
	"github.com/hupe1980/memtbx/promcollector"
	"github.com/hupe1980/memtbx/testutil"
)

var errNoPools = errors.New("config defines no pools")

type simulateOptions struct {
	ops     int
	seed    int64
	release float64
	skew    float64
	metrics bool
}

type simReport struct {
	Ops         int                      `json:"ops"`
	Seed        int64                    `json:"seed"`
	Allocations int                      `json:"allocations"`
	Misses      int                      `json:"misses"`
	Releases    int                      `json:"releases"`
	Peak        int                      `json:"peak"`
	Live        int                      `json:"live"`
	Heap        heap.Stats               `json:"heap"`
	Pools       []mempool.PoolStats      `json:"pools"`
	Metrics     memtbx.BasicMetricsStats `json:"metrics"`
	Samples     map[string]float64       `json:"samples,omitempty"`
}

func newSimulateCmd(flags *cliFlags) *cobra.Command {
	so := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate <config.yaml>",
		Short: "Run a random allocate/release workload",
		Long: `The simulate command provisions a toolbox from a configuration and runs a
seeded random workload against its pools. Request sizes favor the smaller
pools. Blocks still held at the end stay allocated so the report shows the
final occupancy.

Example:
  memtbx simulate toolbox.yaml --ops 10000 --seed 7
  memtbx simulate toolbox.yaml --metrics --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := memtbx.LoadConfig(args[0])
			if err != nil {
				return err
			}
			report, err := runSimulate(cfg, so, cmd)
			if err != nil {
				return err
			}
			return printSimulate(newPrinter(cmd, flags), report, flags.jsonOut)
		},
	}

	cmd.Flags().IntVar(&so.ops, "ops", 1000, "Number of operations")
	cmd.Flags().Int64Var(&so.seed, "seed", 42, "Random seed")
	cmd.Flags().Float64Var(&so.release, "release", 0.45, "Probability that an operation releases a held block")
	cmd.Flags().Float64Var(&so.skew, "skew", 1.1, "Zipf skew of the pool choice")
	cmd.Flags().BoolVar(&so.metrics, "metrics", false, "Include Prometheus samples in the report")
	return cmd
}

func runSimulate(cfg memtbx.Config, so *simulateOptions, cmd *cobra.Command) (simReport, error) {
	if len(cfg.Pools) == 0 {
		return simReport{}, errNoPools
	}
	if so.ops < 0 {
		return simReport{}, fmt.Errorf("ops must not be negative: %d", so.ops)
	}

	basic := &memtbx.BasicMetricsCollector{}
	pc := promcollector.New("memtbx")
	reg := prometheus.NewRegistry()
	if err := reg.Register(pc); err != nil {
		return simReport{}, err
	}

	opts := append(cfg.Options(cmd.ErrOrStderr()), memtbx.WithMetricsCollector(teeCollector{basic, pc}))
	tb, err := memtbx.New(opts...)
	if err != nil {
		return simReport{}, err
	}
	defer tb.Close()

	var sizes []int
	for _, s := range tb.Stats().Pools {
		sizes = append(sizes, s.BlockSize)
	}

	rng := testutil.NewRNG(so.seed)
	report := simReport{Ops: so.ops, Seed: so.seed}

	var live []*mempool.Block
	for range so.ops {
		if len(live) > 0 && rng.Bool(so.release) {
			i := rng.Intn(len(live))
			tb.MemPoolRelease(live[i])
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			report.Releases++
			continue
		}

		class := sizes[rng.Zipf(len(sizes), so.skew)]
		b := tb.MemPoolAllocate(1 + rng.Intn(class))
		if b == nil {
			report.Misses++
			continue
		}
		rng.Fill(b.Bytes())
		live = append(live, b)
		report.Allocations++
		report.Peak = max(report.Peak, len(live))
	}

	st := tb.Stats()
	report.Live = len(live)
	report.Heap = st.Heap
	report.Pools = st.Pools
	report.Metrics = basic.GetStats()

	if so.metrics {
		if report.Samples, err = samples(reg); err != nil {
			return simReport{}, err
		}
	}
	return report, nil
}

func printSimulate(p printer, r simReport, asJSON bool) error {
	if asJSON {
		return p.printJSON(r)
	}

	p.infof("Workload: %d ops, seed %d\n", r.Ops, r.Seed)
	p.infof("  Allocations: %d\n", r.Allocations)
	p.infof("  Misses: %d\n", r.Misses)
	p.infof("  Releases: %d\n", r.Releases)
	p.infof("  Peak held: %d\n", r.Peak)
	p.infof("  Held at end: %d\n", r.Live)

	p.infof("\nHeap: %d/%d bytes used\n", r.Heap.Used, r.Heap.Capacity)

	p.infof("\n%10s %8s %8s %8s %10s\n", "BLOCK SIZE", "BLOCKS", "USED", "FREE", "HEAP BYTES")
	for _, s := range r.Pools {
		p.infof("%10d %8d %8d %8d %10d\n", s.BlockSize, s.Blocks, s.Used, s.Free, s.HeapBytes)
	}

	if len(r.Samples) > 0 {
		p.infof("\nMetrics:\n")
		keys := make([]string, 0, len(r.Samples))
		for k := range r.Samples {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p.infof("  %s %g\n", k, r.Samples[k])
		}
	}
	return nil
}

// samples flattens the counters and gauges of reg into "name{k=v,...}" keys.
func samples(reg *prometheus.Registry) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var v float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				v = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				v = m.GetGauge().GetValue()
			default:
				continue
			}
			out[seriesName(mf.GetName(), m.GetLabel())] = v
		}
	}
	return out, nil
}

func seriesName(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, 0, len(labels))
	for _, lp := range labels {
		parts = append(parts, lp.GetName()+"="+lp.GetValue())
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}

// teeCollector forwards every event to each collector in order.
type teeCollector []memtbx.MetricsCollector

func (t teeCollector) RecordHeapAllocate(requested, consumed int, ok bool) {
	for _, c := range t {
		c.RecordHeapAllocate(requested, consumed, ok)
	}
}

func (t teeCollector) RecordPoolCreate(blockSize, numBlocks, heapBytes int, err error) {
	for _, c := range t {
		c.RecordPoolCreate(blockSize, numBlocks, heapBytes, err)
	}
}

func (t teeCollector) RecordBlockAllocate(requested, blockSize int, ok bool) {
	for _, c := range t {
		c.RecordBlockAllocate(requested, blockSize, ok)
	}
}

func (t teeCollector) RecordBlockRelease(blockSize int) {
	for _, c := range t {
		c.RecordBlockRelease(blockSize)
	}
}

func (t teeCollector) RecordViolation(file string, line int) {
	for _, c := range t {
		c.RecordViolation(file, line)
	}
}
