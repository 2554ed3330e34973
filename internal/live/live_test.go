package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// counter is a fake table whose query returns the current value.
type counter struct {
	mu  sync.Mutex
	val int
	err error
}

func (c *counter) set(v int) {
	c.mu.Lock()
	c.val = v
	c.mu.Unlock()
}

func (c *counter) query(ctx context.Context) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return []int{c.val}, nil
}

func waitFor(t *testing.T, sub *Subscription[int], want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				t.Fatal("updates closed before expected value")
			}
			if snap[0] == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %d, current %v", want, sub.Current())
		}
	}
}

func TestSubscribeInitialSnapshot(t *testing.T) {
	hub := NewHub(slog.Default())
	c := &counter{val: 7}

	sub, err := Subscribe(context.Background(), hub, c.query, "t")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	if got := sub.Current(); len(got) != 1 || got[0] != 7 {
		t.Errorf("current = %v, want [7]", got)
	}
	if got := hub.WatcherCount("t"); got != 1 {
		t.Errorf("watchers = %d, want 1", got)
	}
}

func TestNotifyRefreshes(t *testing.T) {
	hub := NewHub(slog.Default())
	c := &counter{}

	sub, err := Subscribe(context.Background(), hub, c.query, "t")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	c.set(1)
	hub.Notify("t")
	waitFor(t, sub, 1)

	if got := sub.Current(); got[0] != 1 {
		t.Errorf("current = %v, want [1]", got)
	}
}

func TestNotifyOtherTableIgnored(t *testing.T) {
	hub := NewHub(slog.Default())
	c := &counter{}

	sub, err := Subscribe(context.Background(), hub, c.query, "t")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	c.set(5)
	hub.Notify("other")

	select {
	case snap := <-sub.Updates():
		t.Fatalf("unexpected update %v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBurstEventuallyObservesFinalState(t *testing.T) {
	hub := NewHub(slog.Default())
	c := &counter{}

	sub, err := Subscribe(context.Background(), hub, c.query, "t")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	for i := 1; i <= 100; i++ {
		c.set(i)
		hub.Notify("t")
	}
	waitFor(t, sub, 100)
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := NewHub(slog.Default())
	c := &counter{}

	sub, err := Subscribe(context.Background(), hub, c.query, "t")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	c.set(1)
	hub.Notify("t")
	sub.Cancel()
	sub.Cancel()

	if _, ok := <-sub.Updates(); ok {
		t.Fatal("expected closed updates channel after cancel")
	}
	if got := hub.WatcherCount("t"); got != 0 {
		t.Errorf("watchers after cancel = %d, want 0", got)
	}

	// Notifying after cancel must not panic.
	hub.Notify("t")
}

func TestSubscribeQueryError(t *testing.T) {
	hub := NewHub(slog.Default())
	c := &counter{err: errors.New("boom")}

	if _, err := Subscribe(context.Background(), hub, c.query, "t"); err == nil {
		t.Fatal("expected error")
	}
	if got := hub.WatcherCount("t"); got != 0 {
		t.Errorf("watchers after failed subscribe = %d, want 0", got)
	}
}

func TestRefreshErrorKeepsLastSnapshot(t *testing.T) {
	hub := NewHub(slog.Default())
	c := &counter{val: 3}

	sub, err := Subscribe(context.Background(), hub, c.query, "t")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	c.mu.Lock()
	c.err = errors.New("io error")
	c.mu.Unlock()
	hub.Notify("t")

	time.Sleep(50 * time.Millisecond)
	if got := sub.Current(); got[0] != 3 {
		t.Errorf("current = %v, want [3]", got)
	}

	c.mu.Lock()
	c.err = nil
	c.val = 4
	c.mu.Unlock()
	hub.Notify("t")
	waitFor(t, sub, 4)
}

func TestConcurrentSubscribeNotifyCancel(t *testing.T) {
	hub := NewHub(slog.Default())
	var calls atomic.Int64
	query := func(ctx context.Context) ([]int, error) {
		calls.Add(1)
		return []int{0}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := Subscribe(context.Background(), hub, query, "a", "b")
			if err != nil {
				t.Errorf("subscribe: %v", err)
				return
			}
			hub.Notify("a")
			hub.Notify("b")
			sub.Cancel()
		}()
	}
	wg.Wait()

	if got := hub.WatcherCount("a") + hub.WatcherCount("b"); got != 0 {
		t.Errorf("watchers after concurrent test = %d, want 0", got)
	}
	if calls.Load() < 20 {
		t.Errorf("query calls = %d, want at least 20", calls.Load())
	}
}
