package ksync

import (
	"sync"

	"github.com/NotMo05/PintOS/internal/klog"
	"github.com/NotMo05/PintOS/internal/thread"
)

// Lock is a semaphore with an owner and priority donation: acquiring a
// held lock records the waiter's wait-for edge and walks the holder chain,
// bumping every holder's effective priority (and registering the original
// waiter as its donor) for as long as the chain keeps outranking the next
// holder.
type Lock struct {
	mu     sync.Mutex
	holder *thread.Thread
	sema   *Semaphore
}

// NewLock returns an unheld lock.
func NewLock() *Lock {
	return &Lock{sema: NewSemaphore(1)}
}

// Holder returns the thread currently holding the lock, or nil.
func (l *Lock) Holder() *thread.Thread {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}

// HeldByCurrent reports whether the calling thread holds l.
func (l *Lock) HeldByCurrent() bool {
	return l.Holder() == thread.Current()
}

// Acquire takes the lock, donating priority up the holder chain while it
// waits.
func (l *Lock) Acquire() {
	self := thread.Current()

	l.mu.Lock()
	holder := l.holder
	if holder == self {
		l.mu.Unlock()
		klog.Panic("ksync: lock reacquired by its own holder")
	}
	l.mu.Unlock()

	// donatePriority takes l.mu itself on its first hop, so it must run
	// after l.mu is released here -- holding it across the call deadlocks
	// the very first contended Acquire.
	if holder != nil {
		self.SetWaitingFor(l)
		donatePriority(self, l)
	}

	l.sema.Down()

	l.mu.Lock()
	l.holder = self
	l.mu.Unlock()
	self.SetWaitingFor(nil)
}

// donatePriority walks the holder chain starting at lock's current holder,
// donating curr's priority into every holder that curr still outranks.
// The same original waiter (curr) is registered as a donor at every hop,
// matching the source's donate_priority: it does not chain pairwise
// through intermediate waiters.
func donatePriority(curr *thread.Thread, lock *Lock) {
	l := lock
	for {
		l.mu.Lock()
		t := l.holder
		l.mu.Unlock()
		if t == nil || curr.Priority() <= t.Priority() {
			return
		}
		t.AddDonor(curr)
		wf, ok := t.WaitingFor().(*Lock)
		if !ok || wf == nil {
			return
		}
		l = wf
	}
}

// Release gives up the lock: every donor that was waiting specifically on
// this lock is stripped from the caller's donor list (re-deriving its
// effective priority), then the next waiter (if any) is woken.
func (l *Lock) Release() {
	self := thread.Current()
	if !l.HeldByCurrent() {
		klog.Panic("ksync: lock released by non-holder")
	}

	l.mu.Lock()
	l.holder = nil
	l.mu.Unlock()

	self.RemoveDonorsWaitingOn(l)
	l.sema.Up()
}
