// Package ksync implements the kernel's synchronization primitives:
// counting semaphores, locks with priority donation, and condition
// variables, layered on internal/thread the way the source's synch.c
// layers on thread.c's donate_priority/remove_priority.
package ksync

import (
	"sync"

	"github.com/NotMo05/PintOS/internal/thread"
)

// Semaphore is a non-negative counter with a FIFO-insertion-ordered list
// of waiters; Up wakes the highest-priority waiter, ties broken by
// insertion order.
type Semaphore struct {
	mu      sync.Mutex
	value   int
	waiters []*thread.Thread
}

// NewSemaphore returns a semaphore initialized to value.
func NewSemaphore(value int) *Semaphore {
	return &Semaphore{value: value}
}

// Down decrements the semaphore, blocking while it is zero.
func (s *Semaphore) Down() {
	self := thread.Current()
	s.mu.Lock()
	for s.value == 0 {
		s.waiters = append(s.waiters, self)
		s.mu.Unlock()
		thread.Block()
		s.mu.Lock()
	}
	s.value--
	s.mu.Unlock()
}

// Up increments the semaphore and, if anyone is waiting, unblocks the
// highest-priority waiter (first-inserted among ties). If that thread now
// outranks the caller, the caller yields (priority mode only — Unblock
// handles that check). Callers must be running as a scheduler thread's
// own goroutine; interrupt-context callers (the timer tick source) must
// use UpFromInterrupt instead.
func (s *Semaphore) Up() {
	if victim := s.popHighestWaiter(); victim != nil {
		thread.Unblock(victim)
	}
}

// UpFromInterrupt is Up's counterpart for callers running in interrupt
// context rather than on a scheduler thread's own goroutine -- the timer
// package's wakeDue, waking sleepers from the tick source's goroutine.
// That goroutine cannot yield on the waiter's behalf, so any resulting
// preemption is deferred to the pending-yield flag instead.
func (s *Semaphore) UpFromInterrupt() {
	if victim := s.popHighestWaiter(); victim != nil {
		thread.UnblockFromInterrupt(victim)
	}
}

func (s *Semaphore) popHighestWaiter() *thread.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	var victim *thread.Thread
	victimIdx := -1
	for i, w := range s.waiters {
		if victim == nil || w.Priority() > victim.Priority() {
			victim = w
			victimIdx = i
		}
	}
	if victim != nil {
		s.waiters = append(s.waiters[:victimIdx], s.waiters[victimIdx+1:]...)
	}
	s.value++
	return victim
}

// Value returns the current semaphore value, for diagnostics only.
func (s *Semaphore) Value() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}
