package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor 轮询直到条件成立或超时
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", msg)
}

func TestSemaphore_AdmissionBound(t *testing.T) {
	const limit = 2
	sem := NewSemaphore(limit)

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer sem.Release()

			current := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if current <= old || atomic.CompareAndSwapInt64(&peak, old, current) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		}()
	}
	wg.Wait()

	if peak > limit {
		t.Errorf("observed %d concurrent holders, limit is %d", peak, limit)
	}
	if sem.Active() != 0 {
		t.Errorf("expected all slots released, active=%d", sem.Active())
	}
}

func TestSemaphore_FIFOFairness(t *testing.T) {
	sem := NewSemaphore(1)
	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	const waiters = 5
	admitted := make(chan int, waiters)
	for i := 0; i < waiters; i++ {
		i := i
		// 逐个入队，保证排队顺序与提交顺序一致
		go func() {
			if err := sem.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			admitted <- i
		}()
		waitFor(t, func() bool { return sem.Waiting() == i+1 }, "waiter enqueued")
	}

	sem.Release()
	for i := 0; i < waiters; i++ {
		got := <-admitted
		if got != i {
			t.Fatalf("waiter %d admitted out of order (expected %d)", got, i)
		}
		sem.Release()
	}
}

// 移交槽位时 active 保持不变，不存在空闲未授予的窗口
func TestSemaphore_HandoffKeepsActiveCount(t *testing.T) {
	sem := NewSemaphore(1)
	_ = sem.Acquire(context.Background())

	done := make(chan struct{})
	go func() {
		_ = sem.Acquire(context.Background())
		close(done)
	}()
	waitFor(t, func() bool { return sem.Waiting() == 1 }, "waiter enqueued")

	sem.Release()
	<-done

	if sem.Active() != 1 {
		t.Errorf("active count changed across hand-off: %d", sem.Active())
	}
	sem.Release()
	if sem.Active() != 0 {
		t.Errorf("expected 0 active after final release, got %d", sem.Active())
	}
}

// 排队中被取消的调用方不得占用槽位
func TestSemaphore_CancelWhileWaiting(t *testing.T) {
	sem := NewSemaphore(2)
	_ = sem.Acquire(context.Background())
	_ = sem.Acquire(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- sem.Acquire(ctx)
	}()
	waitFor(t, func() bool { return sem.Waiting() == 1 }, "waiter enqueued")

	cancel()
	if err := <-errc; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sem.Waiting() != 0 {
		t.Errorf("cancelled waiter still queued")
	}

	sem.Release()
	sem.Release()
	if sem.Active() != 0 {
		t.Errorf("slot leaked by cancelled waiter, active=%d", sem.Active())
	}

	// 后续运行仍然可以达到满并发
	for i := 0; i < 2; i++ {
		if err := sem.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire after cancellation failed: %v", err)
		}
	}
	if sem.Active() != 2 {
		t.Errorf("expected full concurrency, active=%d", sem.Active())
	}
}

// limit=2 时提交A、B、C：A和B立即准入，C等待；
// A完成后C准入，最终所有槽位归零
func TestSemaphore_ThreeCallersScenario(t *testing.T) {
	sem := NewSemaphore(2)

	_ = sem.Acquire(context.Background()) // A
	_ = sem.Acquire(context.Background()) // B
	if sem.Active() != 2 {
		t.Fatalf("A and B should be admitted immediately, active=%d", sem.Active())
	}

	cAdmitted := make(chan struct{})
	go func() {
		_ = sem.Acquire(context.Background()) // C
		close(cAdmitted)
	}()
	waitFor(t, func() bool { return sem.Waiting() == 1 }, "C queued")

	sem.Release() // A完成
	<-cAdmitted
	if sem.Active() != 2 {
		t.Errorf("active should stay at 2 after hand-off to C, got %d", sem.Active())
	}

	sem.Release() // B完成
	sem.Release() // C完成
	if sem.Active() != 0 {
		t.Errorf("expected active == 0 at the end, got %d", sem.Active())
	}
}
