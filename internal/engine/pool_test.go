package engine

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestClampParallelism_ClampsToRange(t *testing.T) {
	cases := map[int]int{0: 1, -5: 1, 1: 1, 16: 16, 17: 16, 200: 16}
	for in, want := range cases {
		if got := clampParallelism(in); got != want {
			t.Fatalf("clampParallelism(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRunWorkerPool_VisitsEveryIndexExactlyOnce(t *testing.T) {
	const n = 50
	var counts [n]int32
	var mu sync.Mutex

	runWorkerPool(n, 8, func(i int) {
		mu.Lock()
		counts[i]++
		mu.Unlock()
	})

	for i, c := range counts {
		if c != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, c)
		}
	}
}

func TestRunWorkerPool_BoundsConcurrency(t *testing.T) {
	const workers = 3
	var active, maxActive int32

	runWorkerPool(30, workers, func(i int) {
		cur := atomic.AddInt32(&active, 1)
		for {
			max := atomic.LoadInt32(&maxActive)
			if cur <= max || atomic.CompareAndSwapInt32(&maxActive, max, cur) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
	})

	if maxActive > workers {
		t.Fatalf("observed %d concurrent workers, want <= %d", maxActive, workers)
	}
}

func TestRunWorkerPool_ZeroItemsNoop(t *testing.T) {
	called := false
	runWorkerPool(0, 4, func(i int) { called = true })
	if called {
		t.Fatal("expected fn not to be called for zero items")
	}
}
