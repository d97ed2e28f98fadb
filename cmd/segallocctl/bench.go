package main

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/shenjiangwei/segalloc/logging"
	"github.com/shenjiangwei/segalloc/pool"
)

var (
	benchWorkers  int
	benchOps      int
	benchCapacity uint32
	benchMinSize  uint32
	benchMaxSize  uint32
)

// benchResult summarizes one load-generator run: writes, frees, usage,
// and memory overhead, sourced from a pool.Manager session.
type benchResult struct {
	Writes   uint64
	Frees    uint64
	UsedPct  float64
	Overhead uint64
	Duration time.Duration
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive the allocator in-process with a concurrent load generator",
		Long: `bench opens a single session over an in-process region and hammers
it with concurrent allocate/free operations from a pool of worker
goroutines, then verifies the result: every run ends with
(*heap.Context).Verify(), so the harness fails loudly on any invariant
violation instead of only reporting throughput.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runBench()
			if err != nil {
				return err
			}

			printInfo("writes: %d\n", result.Writes)
			printInfo("frees: %d\n", result.Frees)
			printInfo("used: %.2f%%\n", result.UsedPct)
			printInfo("overhead: %d bytes\n", result.Overhead)
			printInfo("duration: %v\n", result.Duration)
			return nil
		},
	}
	cmd.Flags().IntVar(&benchWorkers, "workers", 10, "concurrent goroutines")
	cmd.Flags().IntVar(&benchOps, "ops", 100000, "total allocate/free operations")
	cmd.Flags().Uint32Var(&benchCapacity, "capacity", 64*1024*1024, "region capacity in bytes")
	cmd.Flags().Uint32Var(&benchMinSize, "min-size", 16, "minimum allocation size")
	cmd.Flags().Uint32Var(&benchMaxSize, "max-size", 4096, "maximum allocation size")
	return cmd
}

func init() {
	rootCmd.AddCommand(newBenchCmd())
}

func runBench() (benchResult, error) {
	logger := logging.Default()
	manager := pool.NewManager(logger)

	session, err := manager.Open(benchCapacity)
	if err != nil {
		return benchResult{}, fmt.Errorf("bench: open session: %w", err)
	}

	var (
		mu        sync.Mutex
		allocated = make(map[uint32]struct{})
		completed int
		writes    uint64
		frees     uint64
	)

	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < benchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				if completed >= benchOps {
					mu.Unlock()
					return
				}
				completed++
				mu.Unlock()

				if rand.Float64() < 0.7 {
					size := benchMinSize + uint32(rand.Intn(int(benchMaxSize-benchMinSize+1)))
					offset, err := manager.AllocateOffset(session, size)
					if err != nil {
						continue
					}
					mu.Lock()
					allocated[offset] = struct{}{}
					mu.Unlock()
					atomic.AddUint64(&writes, 1)
				} else {
					mu.Lock()
					var victim uint32
					var found bool
					for offset := range allocated {
						victim = offset
						found = true
						break
					}
					if found {
						delete(allocated, victim)
					}
					mu.Unlock()

					if found {
						if err := manager.FreeOffset(session, victim); err == nil {
							atomic.AddUint64(&frees, 1)
						}
					}
				}
			}
		}()
	}
	wg.Wait()

	duration := time.Since(start)

	stats, err := manager.Stat(session)
	if err != nil {
		return benchResult{}, fmt.Errorf("bench: stat session: %w", err)
	}

	if err := manager.Verify(session); err != nil {
		return benchResult{}, fmt.Errorf("bench: heap invariant violated after run: %w", err)
	}

	return benchResult{
		Writes:   writes,
		Frees:    frees,
		UsedPct:  float64(stats.UsedBytes) / float64(benchCapacity) * 100,
		Overhead: stats.Overhead,
		Duration: duration,
	}, nil
}
