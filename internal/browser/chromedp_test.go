package browser

import (
	"context"
	"testing"
	"time"
)

func TestNewPool_RejectsNegativeMaxParallel(t *testing.T) {
	t.Parallel()
	if _, err := NewPool(PoolConfig{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
}

func TestNewPool_BuildsBoundedLimiter(t *testing.T) {
	t.Parallel()
	pool, err := NewPool(PoolConfig{MaxParallel: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pool.Close()
	if cap(pool.limiter) != 3 {
		t.Fatalf("expected limiter capacity 3, got %d", cap(pool.limiter))
	}
}

func TestNewPool_UnboundedWhenZero(t *testing.T) {
	t.Parallel()
	pool, err := NewPool(PoolConfig{MaxParallel: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pool.Close()
	if pool.limiter != nil {
		t.Fatal("expected nil limiter for unbounded pool")
	}
}

func TestPool_AcquireSlotRespectsContextCancellation(t *testing.T) {
	t.Parallel()
	pool, err := NewPool(PoolConfig{MaxParallel: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pool.Close()

	pool.limiter <- struct{}{} // occupy the only slot

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := pool.acquireSlot(ctx); err == nil {
		t.Fatal("expected acquireSlot to fail once the context deadline elapses")
	}
}

func TestPool_ReleaseSlotIsSafeWhenEmpty(t *testing.T) {
	t.Parallel()
	pool, err := NewPool(PoolConfig{MaxParallel: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pool.Close()
	pool.releaseSlot() // must not panic or block on an empty channel
}

func TestAsPage_RejectsForeignHandle(t *testing.T) {
	t.Parallel()
	if _, err := asPage(fakePage{}); err == nil {
		t.Fatal("expected error for a Page handle from another implementation")
	}
}

func TestPool_ReleasePageIgnoresForeignHandle(t *testing.T) {
	t.Parallel()
	pool, err := NewPool(PoolConfig{MaxParallel: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pool.Close()
	pool.ReleasePage(fakePage{}) // must be a no-op, not a panic
}

type fakePage struct{}

func (fakePage) id() string { return "fake" }
