// Package testutil provides testing utilities for memtbx.
//
// This package is intended for use in tests and benchmarks only.
//
// # Counting Contract Violations
//
//	ac := testutil.NewAssertCounter()
//	h, _ := heap.New(256, heap.WithHook(ac.Hook()))
//	h.Allocate(0)
//	ac.Count() // 1
//
// # Random Workloads
//
//	rng := testutil.NewRNG(seed)
//	sizes := rng.BlockSizes(1000, 64)   // request sizes in [1, 64]
//	class := rng.Zipf(4, 1.5)           // skewed size-class pick
package testutil
