package benchmarks

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	jobsystem "github.com/go-foundations/jobsystem"
)

// Adapted from the teacher's benchmarkStrategy/BenchmarkWorkerCounts/
// BenchmarkJobSizes/BenchmarkProcessingTimes (benchmarks/performance_test.go):
// same "vary worker count / job count / per-job duration" axes, rewritten
// against the Scheduler's fan-out-then-join shape instead of
// WorkerPool[T,R].Run(). A root CoroutineJob schedules n FunctionJobs as
// its own children and awaits them all — the closest equivalent to the
// teacher's "submit a batch, wait for the batch" benchmark loop.

func runBatch(b *testing.B, numWorkers, jobCount int, work time.Duration) {
	cfg := jobsystem.DefaultConfig()
	cfg.NumWorkers = numWorkers
	s := jobsystem.New(cfg, nil, nil)
	if err := s.Start(); err != nil {
		b.Fatal(err)
	}
	defer func() {
		s.Terminate()
		s.Wait()
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var done atomic.Int64
		handle, err := jobsystem.ScheduleCoroutine(s, context.Background(),
			func(c *jobsystem.Coro[struct{}]) (struct{}, error) {
				fns := make([]func(context.Context), jobCount)
				for j := range fns {
					fns[j] = func(context.Context) {
						if work > 0 {
							time.Sleep(work)
						}
						done.Add(1)
					}
				}
				err := c.Await(jobsystem.FuncSlice(fns))
				return struct{}{}, err
			},
			jobsystem.DefaultJobOptions(), jobsystem.NoTag, -1)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := handle.Get(); err != nil {
			b.Fatal(err)
		}
		if int(done.Load()) != jobCount {
			b.Fatalf("expected %d jobs to run, got %d", jobCount, done.Load())
		}
	}
}

func BenchmarkWorkerCounts(b *testing.B) {
	for _, n := range []int{1, 2, 4, 8, 16} {
		b.Run(fmt.Sprintf("Workers_%d", n), func(b *testing.B) {
			runBatch(b, n, 100, 0)
		})
	}
}

func BenchmarkJobSizes(b *testing.B) {
	for _, n := range []int{10, 100, 1000, 10000} {
		b.Run(fmt.Sprintf("Jobs_%d", n), func(b *testing.B) {
			runBatch(b, 4, n, 0)
		})
	}
}

func BenchmarkProcessingTimes(b *testing.B) {
	durations := []time.Duration{
		0,
		1 * time.Microsecond,
		10 * time.Microsecond,
		100 * time.Microsecond,
	}
	for _, d := range durations {
		b.Run(fmt.Sprintf("ProcTime_%v", d), func(b *testing.B) {
			runBatch(b, 4, 100, d)
		})
	}
}
