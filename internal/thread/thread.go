// Package thread implements the kernel's thread control blocks, the two
// interchangeable ready structures (strict priority order, and a
// multilevel feedback queue), and schedule() as the sole context-switch
// entry point.
//
// The source this is modeled on swaps stacks with a hand-written assembly
// stub (see the design notes this package is grounded on: a context switch
// cannot be written in a language-neutral way). The idiomatic Go substitute
// used here gives every thread its own goroutine, parked on a channel when
// it is not RUNNING; schedule() becomes a baton handoff between two
// channels instead of a register save/restore, but preserves the same
// contract: it is the only place a thread stops running, and it returns
// only when that same thread is chosen to run again.
package thread

import (
	"sync"

	"github.com/NotMo05/PintOS/internal/fixedpoint"
	"github.com/NotMo05/PintOS/internal/klog"
)

// State is one of the four states a Thread can be in.
type State int

const (
	Running State = iota
	Ready
	Blocked
	Dying
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	case Dying:
		return "dying"
	default:
		return "unknown"
	}
}

// Priority bounds, shared by priority mode and MLFQ.
const (
	PriMin     = 0
	PriMax     = 63
	PriDefault = 31
)

// Nice bounds, MLFQ only.
const (
	NiceMin     = -20
	NiceMax     = 20
	NiceDefault = 0
)

// magic is the stack-overflow sentinel written at TCB creation and checked
// on every context switch, grounded on the source's THREAD_MAGIC.
const magic = 0xcd6abf4b

// UserProcess is the subset of per-process state a Thread carries when it
// owns a user program. It is an interface rather than a concrete type so
// that internal/thread need not import internal/process (which in turn
// needs Thread) — the owning package sets and reads it via a type
// assertion on the stored value.
type UserProcess any

// Thread is a kernel task. Exported fields are accessed by ksync (for
// donation chain bookkeeping) without requiring thread to import ksync;
// ksync stores *ksync.Lock values into WaitingFor via SetWaitingFor and
// reads them back via a type assertion it owns.
type Thread struct {
	ID    int
	Name  string
	magic uint32

	mu    sync.Mutex
	state State

	basePriority int
	effPriority  int
	donors       []*Thread
	waitingFor   any

	nice      int
	recentCPU fixedpoint.T

	prevNice      int
	prevRecentCPU fixedpoint.T
	prevEffPrio   int

	process UserProcess

	token chan *Thread

	// mlfqQueue is the priority class (0..63) this thread currently sits
	// in under MLFQ mode, used by the ready structure to find the one
	// queue to search on requeue.
	mlfqQueue int
}

func newThread(name string, basePriority int) *Thread {
	t := &Thread{
		Name:         name,
		magic:        magic,
		state:        Blocked,
		basePriority: basePriority,
		effPriority:  basePriority,
		nice:         NiceDefault,
		token:        make(chan *Thread, 1),
	}
	t.prevNice = t.nice
	t.prevRecentCPU = t.recentCPU
	t.prevEffPrio = t.effPriority
	return t
}

// assertAlive panics if the stack-overflow sentinel has been corrupted.
// Called on every scheduling decision, matching the source's is_thread
// check inside schedule().
func (t *Thread) assertAlive() {
	if t == nil || t.magic != magic {
		klog.Panic("thread: stack overflow detected (tid=%v)", tidOf(t))
	}
}

func tidOf(t *Thread) int {
	if t == nil {
		return -1
	}
	return t.ID
}

// State returns the thread's current scheduling state.
func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Priority returns the effective priority: base, or the maximum of any
// donor's priority if higher.
func (t *Thread) Priority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.effPriority
}

// BasePriority returns the priority set directly by the user, ignoring
// donation.
func (t *Thread) BasePriority() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.basePriority
}

// WaitingFor returns the lock this thread is blocked trying to acquire, or
// nil. The concrete type is owned by ksync; thread never inspects it.
func (t *Thread) WaitingFor() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waitingFor
}

// SetWaitingFor records the lock this thread is about to block on, called
// by ksync.Lock.Acquire before propagating donation.
func (t *Thread) SetWaitingFor(lock any) {
	t.mu.Lock()
	t.waitingFor = lock
	t.mu.Unlock()
}

// Donors returns the threads directly donating priority to this one,
// ordered descending by priority.
func (t *Thread) Donors() []*Thread {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Thread, len(t.donors))
	copy(out, t.donors)
	return out
}

// AddDonor inserts donor into this thread's donor list (idempotent,
// ordered descending by priority) and recomputes effective priority.
// Called by ksync's donation-chain walk.
func (t *Thread) AddDonor(donor *Thread) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range t.donors {
		if d == donor {
			t.recomputeEffectiveLocked()
			return
		}
	}
	t.donors = append(t.donors, donor)
	sortDonorsDesc(t.donors)
	t.recomputeEffectiveLocked()
}

// RemoveDonorsWaitingOn strips every donor currently blocked on lock
// (identity-compared) from this thread's donor list and re-derives
// effective priority as max(base, remaining donor priorities). Called by
// ksync.Lock.Release.
func (t *Thread) RemoveDonorsWaitingOn(lock any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.donors[:0:0]
	for _, d := range t.donors {
		if d.WaitingFor() != lock {
			kept = append(kept, d)
		}
	}
	t.donors = kept
	t.recomputeEffectiveLocked()
}

func (t *Thread) recomputeEffectiveLocked() {
	max := t.basePriority
	for _, d := range t.donors {
		if p := d.Priority(); p > max {
			max = p
		}
	}
	t.effPriority = max
}

func sortDonorsDesc(d []*Thread) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j-1].Priority() < d[j].Priority(); j-- {
			d[j-1], d[j] = d[j], d[j-1]
		}
	}
}

// Nice returns the thread's MLFQ niceness.
func (t *Thread) Nice() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nice
}

// RecentCPU returns the thread's decaying CPU-usage estimate.
func (t *Thread) RecentCPU() fixedpoint.T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recentCPU
}

// Process returns the per-process state attached to this thread, or nil
// for a pure kernel thread.
func (t *Thread) Process() UserProcess {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.process
}

// SetProcess attaches per-process state, called once by internal/process
// when a thread is promoted to own a user program.
func (t *Thread) SetProcess(p UserProcess) {
	t.mu.Lock()
	t.process = p
	t.mu.Unlock()
}
