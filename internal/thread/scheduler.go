package thread

import (
	"sync"

	"github.com/NotMo05/PintOS/internal/klog"
)

// schedMu is the kernel's big lock: it serializes every mutation of
// scheduler-shared state (the ready structure, curThread, allThreads, the
// tid counter) against both the cooperating thread goroutines and the
// timer tick goroutine, standing in for the source's interrupt-disable
// discipline around these same structures.
var schedMu sync.Mutex

var (
	ready       readyStructure
	mlfqEnabled bool

	curThread   *Thread
	allThreads  []*Thread
	idleThread  *Thread
	initialThd  *Thread

	nextTID = 1

	initialized bool
)

// Init boots the thread subsystem: creates the bookkeeping for the
// currently executing goroutine as the initial thread, and starts the
// idle thread. mlfqs selects the MLFQ scheduler; false selects priority
// mode with donation. Must be called exactly once, before any other
// function in this package.
func Init(mlfqs bool) *Thread {
	schedMu.Lock()
	if initialized {
		schedMu.Unlock()
		klog.Panic("thread: Init called twice")
	}
	initialized = true
	mlfqEnabled = mlfqs
	if mlfqs {
		ready = newMLFQReady()
	} else {
		ready = newPriorityReady()
	}

	initialThd = newThread("main", PriDefault)
	initialThd.ID = allocateTID()
	initialThd.state = Running
	allThreads = append(allThreads, initialThd)
	curThread = initialThd
	schedMu.Unlock()

	idleThread = doCreate("idle", PriMin, idleMain, nil)
	return initialThd
}

// ResetForTest tears down all scheduler state so a fresh Init can run. It
// exists for tests across this module's packages (timer, ksync, process)
// that each need an isolated kernel instance; it is never called by
// production boot code.
func ResetForTest() {
	schedMu.Lock()
	initialized = false
	allThreads = nil
	curThread = nil
	idleThread = nil
	initialThd = nil
	nextTID = 1
	loadAvg = 0
	dirty.Clear(false)
	ticksSinceYield.Store(0)
	yieldRequested.Store(false)
	schedMu.Unlock()
}

func allocateTID() int {
	id := nextTID
	nextTID++
	return id
}

// Current returns the thread currently running on the caller's goroutine.
func Current() *Thread {
	schedMu.Lock()
	defer schedMu.Unlock()
	return curThread
}

// Create makes a new thread running entry(arg) and returns it. The thread
// is enqueued READY immediately and the caller always yields at once, so
// a higher-priority new thread preempts right away, in both priority mode
// and MLFQ. There is no interrupt-context variant: the yield is never
// deferred to the pending-yield flag.
func Create(name string, priority int, entry func(arg any), arg any) *Thread {
	t := doCreate(name, priority, entry, arg)
	Yield()
	return t
}

func doCreate(name string, priority int, entry func(arg any), arg any) *Thread {
	t := newThread(name, priority)

	schedMu.Lock()
	t.ID = allocateTID()
	if mlfqEnabled && name != "idle" {
		t.nice = NiceDefault
		if curThread != nil {
			t.recentCPU = curThread.recentCPU
		}
		t.basePriority = calcPriority(t)
		t.effPriority = t.basePriority
	}
	allThreads = append(allThreads, t)
	t.state = Ready
	ready.push(t)
	schedMu.Unlock()

	go runThread(t, entry, arg)
	return t
}

func runThread(t *Thread, entry func(arg any), arg any) {
	prev := <-t.token
	schedMu.Lock()
	scheduleTailLocked(prev)
	schedMu.Unlock()

	entry(arg)
	Exit()
}

func idleMain(arg any) {
	for {
		Block()
	}
}

// Block puts the calling thread into the BLOCKED state and switches away.
// It returns only when some other thread calls Unblock on it.
func Block() {
	schedMu.Lock()
	self := curThread
	self.assertAlive()
	self.state = Blocked
	schedMu.Unlock()
	switchFrom(self)
}

// Unblock moves a BLOCKED thread to READY. If it now outranks the running
// thread (priority mode only — MLFQ ignores this), the caller yields. Only
// call this from a scheduler thread's own goroutine; a caller running in
// interrupt context (the timer tick source) must use UnblockFromInterrupt
// instead.
func Unblock(t *Thread) {
	if unblockLocked(t) {
		Yield()
	}
}

// UnblockFromInterrupt is Unblock's counterpart for callers that are not
// themselves a scheduler thread's goroutine — namely the timer tick
// source's own goroutine waking sleepers. That goroutine holds no token
// to hand off, so calling Yield/switchFrom from it would corrupt
// curThread; instead any resulting preemption is deferred to the pending-
// yield flag, the same way Tick defers time-slice preemption, matching the
// source's reliance on intr_yield_on_return rather than calling
// thread_yield from inside an interrupt handler.
func UnblockFromInterrupt(t *Thread) {
	if unblockLocked(t) {
		RequestYield()
	}
}

// unblockLocked performs the READY transition shared by Unblock and
// UnblockFromInterrupt and reports whether the unblocked thread now
// outranks curThread (priority mode only).
func unblockLocked(t *Thread) bool {
	schedMu.Lock()
	if t.State() != Blocked {
		schedMu.Unlock()
		klog.Panic("thread: Unblock on non-blocked thread %s", t.Name)
	}
	t.mu.Lock()
	t.state = Ready
	t.mu.Unlock()
	ready.push(t)
	preempt := !mlfqEnabled && curThread != nil && t.Priority() > curThread.Priority()
	schedMu.Unlock()
	return preempt
}

// Yield puts the calling thread back on the ready structure and switches
// to whichever thread (possibly itself) the scheduler picks next.
func Yield() {
	schedMu.Lock()
	self := curThread
	self.assertAlive()
	if self != idleThread {
		self.state = Ready
		ready.push(self)
	} else {
		self.state = Ready
	}
	schedMu.Unlock()
	switchFrom(self)
}

// Exit marks the calling thread DYING and never returns; its goroutine
// terminates once the next thread has been handed the baton.
func Exit() {
	schedMu.Lock()
	self := curThread
	self.assertAlive()
	self.state = Dying
	next := pickNextLocked()
	curThread = next
	next.mu.Lock()
	next.state = Running
	next.mu.Unlock()
	schedMu.Unlock()
	next.token <- self
	runtimeGoexit()
}

// switchFrom performs the scheduler's only context-switch entry point for
// a thread that has already transitioned itself out of RUNNING. It blocks
// until this same thread is scheduled back in.
func switchFrom(self *Thread) {
	schedMu.Lock()
	next := pickNextLocked()
	curThread = next
	if next == self {
		next.mu.Lock()
		next.state = Running
		next.mu.Unlock()
		scheduleTailLocked(self)
		schedMu.Unlock()
		return
	}
	next.mu.Lock()
	next.state = Running
	next.mu.Unlock()
	next.token <- self
	schedMu.Unlock()

	prev := <-self.token

	schedMu.Lock()
	scheduleTailLocked(prev)
	schedMu.Unlock()
}

// pickNextLocked chooses the next thread to run. Must be called with
// schedMu held.
func pickNextLocked() *Thread {
	if t := ready.popHighest(); t != nil {
		return t
	}
	return idleThread
}

// scheduleTailLocked runs the bookkeeping the source performs as "the
// first act in the new thread": reset the preemption counter and, if the
// outgoing thread was DYING, reap it. Must be called with schedMu held.
func scheduleTailLocked(prev *Thread) {
	if curThread != nil {
		curThread.assertAlive()
	}
	ticksSinceYield.Store(0)
	if prev != nil && prev != initialThd {
		prev.mu.Lock()
		dying := prev.state == Dying
		prev.mu.Unlock()
		if dying {
			removeFromAllThreadsLocked(prev)
		}
	}
}

func removeFromAllThreadsLocked(t *Thread) {
	for i, c := range allThreads {
		if c == t {
			allThreads = append(allThreads[:i], allThreads[i+1:]...)
			return
		}
	}
}

// Foreach invokes action on every live thread (RUNNING, READY, or
// BLOCKED). Grounded on thread_foreach; used by DumpAll.
func Foreach(action func(t *Thread)) {
	schedMu.Lock()
	snapshot := make([]*Thread, len(allThreads))
	copy(snapshot, allThreads)
	schedMu.Unlock()
	for _, t := range snapshot {
		action(t)
	}
}

// DumpAll logs every thread's name, tid, state and priority at debug
// level, grounded on thread_print_stats.
func DumpAll() {
	Foreach(func(t *Thread) {
		klog.Debugf("thread %d %q state=%s priority=%d", t.ID, t.Name, t.State(), t.Priority())
	})
}
