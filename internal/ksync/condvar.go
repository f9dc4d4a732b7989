package ksync

import (
	"sync"

	"github.com/NotMo05/PintOS/internal/klog"
)

// Condvar is a monitor-style condition variable: each waiter parks on its
// own private semaphore, and Signal/Broadcast pop waiters in FIFO order
// (the source's list-based waiter queue, here a slice).
type Condvar struct {
	mu      sync.Mutex
	waiters []*Semaphore
}

// NewCondvar returns an empty condition variable.
func NewCondvar() *Condvar {
	return &Condvar{}
}

// Wait atomically releases lock and blocks the caller, then reacquires
// lock before returning. lock must be held by the caller.
func (c *Condvar) Wait(lock *Lock) {
	if !lock.HeldByCurrent() {
		klog.Panic("ksync: condvar wait without holding the lock")
	}
	waiterSema := NewSemaphore(0)
	c.mu.Lock()
	c.waiters = append(c.waiters, waiterSema)
	c.mu.Unlock()

	lock.Release()
	waiterSema.Down()
	lock.Acquire()
}

// Signal wakes one waiter, if any, in FIFO order. lock must be held by the
// caller (matching the source's precondition, enforced so a signal is
// never lost between check and wait).
func (c *Condvar) Signal(lock *Lock) {
	if !lock.HeldByCurrent() {
		klog.Panic("ksync: condvar signal without holding the lock")
	}
	c.mu.Lock()
	var victim *Semaphore
	if len(c.waiters) > 0 {
		victim = c.waiters[0]
		c.waiters = c.waiters[1:]
	}
	c.mu.Unlock()
	if victim != nil {
		victim.Up()
	}
}

// Broadcast wakes every waiter, in FIFO order.
func (c *Condvar) Broadcast(lock *Lock) {
	for {
		c.mu.Lock()
		empty := len(c.waiters) == 0
		c.mu.Unlock()
		if empty {
			return
		}
		c.Signal(lock)
	}
}
