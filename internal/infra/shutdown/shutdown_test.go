package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestNewHandler(t *testing.T) {
	h := NewHandler(5*time.Second, nil)
	if h == nil {
		t.Fatal("NewHandler returned nil")
	}
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if h.logger == nil {
		t.Error("logger should default to slog.Default()")
	}

	if h := NewHandler(0, nil); h.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", h.timeout, DefaultTimeout)
	}
}

func TestHandler_Done(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

func registerOrdered(h *Handler, order *[]int, mu *sync.Mutex) {
	for i := 1; i <= 3; i++ {
		id := i
		h.OnShutdown("hook", func(ctx context.Context) error {
			mu.Lock()
			*order = append(*order, id)
			mu.Unlock()
			return nil
		})
	}
}

func TestHandler_Shutdown_ReverseOrder(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	var order []int
	var mu sync.Mutex
	registerOrdered(h, &order, &mu)

	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("hooks called in wrong order: %v, want [3 2 1]", order)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Shutdown")
	}
}

func TestHandler_Shutdown_Once(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	calls := 0
	h.OnShutdown("counter", func(ctx context.Context) error {
		calls++
		return nil
	})

	h.Shutdown()
	h.Shutdown()

	if calls != 1 {
		t.Errorf("hook called %d times, want 1", calls)
	}
}

func TestHandler_Shutdown_JoinsErrors(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := false

	h.OnShutdown("a", func(ctx context.Context) error { return errA })
	h.OnShutdown("ok", func(ctx context.Context) error { ran = true; return nil })
	h.OnShutdown("b", func(ctx context.Context) error { return errB })

	err := h.Shutdown()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Shutdown() = %v, want both hook errors", err)
	}
	if !ran {
		t.Error("a failing hook should not stop later hooks")
	}
}

func TestHandler_Shutdown_HookDeadline(t *testing.T) {
	h := NewHandler(50*time.Millisecond, nil)

	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := h.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Shutdown() did not honour the timeout")
	}
}

func TestHandler_Wait_ContextCancel(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	var order []int
	var mu sync.Mutex
	registerOrdered(h, &order, &mu)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Wait(ctx)
	}()

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Errorf("expected 3 hooks called, got %d", len(order))
	}
}

func TestHandler_Wait_WithSignal(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	called := make(chan struct{})
	h.OnShutdown("signal", func(ctx context.Context) error {
		close(called)
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Wait(context.Background())
	}()

	// Give Wait time to set up signal handler
	time.Sleep(50 * time.Millisecond)

	syscall.Kill(syscall.Getpid(), syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
	}

	select {
	case <-called:
	default:
		t.Error("hook was not called")
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	var wg sync.WaitGroup
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown("noop", func(ctx context.Context) error {
				return nil
			})
		}()
	}

	wg.Wait()

	h.mu.Lock()
	if len(h.hooks) != numGoroutines {
		t.Errorf("expected %d hooks, got %d", numGoroutines, len(h.hooks))
	}
	h.mu.Unlock()
}
