package rollgate

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestDedupCollapsesConcurrentCalls(t *testing.T) {
	d := NewRequestDeduplicator()

	var executions int32
	release := make(chan struct{})

	const waiters = 10
	var wg sync.WaitGroup
	var sharedCount int32
	results := make([]any, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, shared, err := d.Dedupe("fetch", func() (any, error) {
				atomic.AddInt32(&executions, 1)
				<-release
				return "payload", nil
			})
			if err != nil {
				t.Error(err)
			}
			if shared {
				atomic.AddInt32(&sharedCount, 1)
			}
			results[i] = v
		}(i)
	}

	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&executions); got != 1 {
		t.Fatalf("executions = %d, want 1", got)
	}
	for i, v := range results {
		if v != "payload" {
			t.Fatalf("results[%d] = %v, want shared payload", i, v)
		}
	}
	if sharedCount == 0 {
		t.Fatal("expected at least one caller to report a shared result")
	}
}

func TestDedupSequentialCallsRunSeparately(t *testing.T) {
	d := NewRequestDeduplicator()
	var executions int32
	for i := 0; i < 3; i++ {
		_, _, err := d.Dedupe("fetch", func() (any, error) {
			atomic.AddInt32(&executions, 1)
			return nil, nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if executions != 3 {
		t.Fatalf("executions = %d, want 3: completed calls must not be deduped", executions)
	}
}

func TestDedupDistinctKeys(t *testing.T) {
	d := NewRequestDeduplicator()
	var executions int32
	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			d.Dedupe(key, func() (any, error) {
				atomic.AddInt32(&executions, 1)
				<-start
				return nil, nil
			})
		}(key)
	}
	close(start)
	wg.Wait()
	if executions != 2 {
		t.Fatalf("executions = %d, want 2: distinct keys must not share", executions)
	}
}
