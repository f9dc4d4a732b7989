package thread

import (
	"runtime"
	"sync/atomic"
)

// TimeSlice is the number of ticks a thread may run before preemption is
// requested, per the timer component's 4-tick slice.
const TimeSlice = 4

var (
	ticksSinceYield atomic.Int32
	yieldRequested  atomic.Bool
)

// Tick is called by the timer package's ISR goroutine on every tick, after
// any MLFQ bookkeeping it performs itself. It counts ticks since the
// running thread last yielded and, once the time slice is used up, sets
// the pending-yield flag — the Go analogue of intr_yield_on_return, since
// an ISR goroutine cannot force a different goroutine to yield directly.
func Tick() {
	if ticksSinceYield.Add(1) >= TimeSlice {
		yieldRequested.Store(true)
	}
}

// RequestYield sets the pending-yield flag directly, used by the MLFQ
// periodic priority recompute (every 4 ticks) which must also force a
// yield on interrupt return regardless of the time-slice counter.
func RequestYield() {
	yieldRequested.Store(true)
}

// CheckPreempt is called by the running thread itself at a safe point
// (such as a cooperative scenario loop) to honor a pending preemption
// request. It is the cooperative substitute for hardware timer
// preemption: the ISR cannot reach into another goroutine's stack, so the
// thread must poll. Neither the syscall layer nor the page-fault resolver
// calls it; a pending request is honored only where code calls it
// explicitly.
func CheckPreempt() {
	if yieldRequested.CompareAndSwap(true, false) {
		Yield()
	}
}

func runtimeGoexit() {
	runtime.Goexit()
}
