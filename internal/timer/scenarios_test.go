package timer

import (
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/NotMo05/PintOS/internal/ksync"
	"github.com/NotMo05/PintOS/internal/thread"
)

// TestE1PriorityPreemption is end-to-end scenario E1: a priority-20
// thread spins (polling CheckPreempt the way a cooperative thread must,
// since nothing else forces it off the goroutine) while main, at the
// default priority, creates a priority-31 thread that records its own
// name and exits immediately. The higher-priority thread must run to
// completion before the spinner is ever scheduled.
func TestE1PriorityPreemption(t *testing.T) {
	resetForTest()
	thread.ResetForTest()
	main := thread.Init(false)

	var mu sync.Mutex
	var order []string
	var stop atomic.Bool
	var remaining int32 = 2

	finish := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
		if atomic.AddInt32(&remaining, -1) == 0 {
			thread.Unblock(main)
		}
	}

	thread.Create("T1", 20, func(any) {
		for !stop.Load() {
			thread.CheckPreempt()
		}
		finish("T1")
	}, nil)
	thread.Create("T2", 31, func(any) {
		finish("T2")
	}, nil)

	stop.Store(true)
	thread.Block()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "T2" {
		t.Fatalf("run order = %v, want T2 first", order)
	}
}

// TestE2SleepOrdering is end-to-end scenario E2: three threads sleep 30,
// 10, and 20 ticks respectively and print their id on wake; the expected
// wake order is the middle, then the last, then the first sleeper. The
// tick pump runs as a goroutine under an errgroup, so an error from it
// fails the scenario; the main thread collects wake-ups itself.
func TestE2SleepOrdering(t *testing.T) {
	resetForTest()
	thread.ResetForTest()
	main := thread.Init(false)
	src := NewManualSource()

	var mu sync.Mutex
	var order []int
	var remaining int32 = 3

	spawn := func(id int, n int64) {
		thread.Create("sleeper", 10, func(any) {
			Sleep(n)
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			if atomic.AddInt32(&remaining, -1) == 0 {
				thread.Unblock(main)
			}
		}, nil)
	}

	spawn(1, 30) // first
	spawn(2, 10) // middle
	spawn(3, 20) // last

	g := new(errgroup.Group)
	g.Go(func() error {
		for i := 0; i < 30; i++ {
			src.Tick()
		}
		return nil
	})
	thread.Block()
	if err := g.Wait(); err != nil {
		t.Fatalf("tick pump: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 2 || order[1] != 3 || order[2] != 1 {
		t.Fatalf("wake order = %v, want [2 3 1] (middle, last, first)", order)
	}
}

// TestE6DonationPlusYield is end-to-end scenario E6: L holds a lock and
// sleeps one tick while H blocks on the lock. H must not become RUNNING
// during L's sleep; on L's wakeup it must run at its donated priority,
// release the lock, and only then does H acquire it and run.
func TestE6DonationPlusYield(t *testing.T) {
	resetForTest()
	thread.ResetForTest()
	main := thread.Init(false)
	src := NewManualSource()
	lock := ksync.NewLock()

	var mu sync.Mutex
	var events []string
	record := func(s string) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	}

	var remaining int32 = 2
	done := func() {
		if atomic.AddInt32(&remaining, -1) == 0 {
			thread.Unblock(main)
		}
	}

	lAcquired := make(chan struct{})
	thread.Create("L", 10, func(any) {
		lock.Acquire()
		close(lAcquired)
		Sleep(1)
		record("L-woke")
		lock.Release()
		done()
	}, nil)
	<-lAcquired

	reachedH := make(chan struct{})
	thread.Create("H", 30, func(any) {
		close(reachedH)
		lock.Acquire()
		record("H-acquired")
		lock.Release()
		done()
	}, nil)
	<-reachedH

	if got := lock.Holder().Priority(); got != 30 {
		t.Fatalf("while H blocked, L's donated priority = %d, want 30", got)
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		src.Tick()
		return nil
	})
	thread.Block()
	if err := g.Wait(); err != nil {
		t.Fatalf("tick pump: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != "L-woke" || events[1] != "H-acquired" {
		t.Fatalf("event order = %v, want [L-woke H-acquired]", events)
	}
}
