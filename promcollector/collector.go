// Package promcollector exports Toolbox allocator events as Prometheus metrics.
//
//	pc := promcollector.New("memtbx")
//	prometheus.MustRegister(pc)
//	tb, err := memtbx.New(memtbx.WithMetricsCollector(pc))
package promcollector

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/memtbx"
)

const (
	resultOK   = "ok"
	resultFail = "fail"
)

// Collector implements memtbx.MetricsCollector and prometheus.Collector.
type Collector struct {
	heapAllocs    *prometheus.CounterVec
	heapBytes     prometheus.Counter
	poolCreates   *prometheus.CounterVec
	poolBlocks    *prometheus.GaugeVec
	poolBytes     *prometheus.GaugeVec
	blockAllocs   *prometheus.CounterVec
	blocksInUse   *prometheus.GaugeVec
	blockReleases *prometheus.CounterVec
	violations    *prometheus.CounterVec
}

// New returns a Collector whose metric names are prefixed with namespace.
func New(namespace string) *Collector {
	return &Collector{
		heapAllocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heap",
			Name:      "allocations_total",
			Help:      "Heap allocation requests by result",
		}, []string{"result"}),
		heapBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heap",
			Name:      "allocated_bytes_total",
			Help:      "Aligned heap bytes handed out",
		}),
		poolCreates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "creates_total",
			Help:      "Pool create requests by result",
		}, []string{"result"}),
		poolBlocks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "blocks",
			Help:      "Blocks provisioned per pool",
		}, []string{"block_size"}),
		poolBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "heap_bytes",
			Help:      "Heap bytes consumed per pool",
		}, []string{"block_size"}),
		blockAllocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "block_allocations_total",
			Help:      "Block allocation requests by serving pool and result",
		}, []string{"block_size", "result"}),
		blocksInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "blocks_in_use",
			Help:      "Blocks currently handed out per pool",
		}, []string{"block_size"}),
		blockReleases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "block_releases_total",
			Help:      "Accepted block releases per pool",
		}, []string{"block_size"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_violations_total",
			Help:      "Contract violations by reporting file",
		}, []string{"file"}),
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.heapAllocs,
		c.heapBytes,
		c.poolCreates,
		c.poolBlocks,
		c.poolBytes,
		c.blockAllocs,
		c.blocksInUse,
		c.blockReleases,
		c.violations,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.collectors() {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.collectors() {
		m.Collect(ch)
	}
}

// RecordHeapAllocate implements memtbx.MetricsCollector.
func (c *Collector) RecordHeapAllocate(_, consumed int, ok bool) {
	if !ok {
		c.heapAllocs.WithLabelValues(resultFail).Inc()
		return
	}
	c.heapAllocs.WithLabelValues(resultOK).Inc()
	c.heapBytes.Add(float64(consumed))
}

// RecordPoolCreate implements memtbx.MetricsCollector.
func (c *Collector) RecordPoolCreate(blockSize, numBlocks, heapBytes int, err error) {
	if err != nil {
		c.poolCreates.WithLabelValues(resultFail).Inc()
		return
	}
	c.poolCreates.WithLabelValues(resultOK).Inc()

	bs := label(blockSize)
	c.poolBlocks.WithLabelValues(bs).Add(float64(numBlocks))
	c.poolBytes.WithLabelValues(bs).Add(float64(heapBytes))
	// Make the in-use series visible before the first allocation.
	c.blocksInUse.WithLabelValues(bs).Add(0)
}

// RecordBlockAllocate implements memtbx.MetricsCollector.
func (c *Collector) RecordBlockAllocate(_, blockSize int, ok bool) {
	if !ok {
		c.blockAllocs.WithLabelValues("none", resultFail).Inc()
		return
	}
	bs := label(blockSize)
	c.blockAllocs.WithLabelValues(bs, resultOK).Inc()
	c.blocksInUse.WithLabelValues(bs).Inc()
}

// RecordBlockRelease implements memtbx.MetricsCollector.
func (c *Collector) RecordBlockRelease(blockSize int) {
	bs := label(blockSize)
	c.blockReleases.WithLabelValues(bs).Inc()
	c.blocksInUse.WithLabelValues(bs).Dec()
}

// RecordViolation implements memtbx.MetricsCollector.
func (c *Collector) RecordViolation(file string, _ int) {
	c.violations.WithLabelValues(file).Inc()
}

func label(blockSize int) string {
	return strconv.Itoa(blockSize)
}

var (
	_ memtbx.MetricsCollector = (*Collector)(nil)
	_ prometheus.Collector    = (*Collector)(nil)
)
