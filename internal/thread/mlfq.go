package thread

import (
	"github.com/google/btree"

	"github.com/NotMo05/PintOS/internal/fixedpoint"
)

// loadAvg is the system-wide decaying ready-count estimate, guarded by
// schedMu. MLFQ mode only.
var loadAvg fixedpoint.T

// dirty holds the tids of threads whose nice or recent_cpu changed since
// the last priority recompute pass, so RecomputePriorities only touches
// threads that actually need it — ascending-tid iteration gives a
// deterministic recompute order instead of relying on map/slice ordering.
var dirty = btree.NewG(32, func(a, b int) bool { return a < b })

func markDirtyLocked(t *Thread) {
	dirty.ReplaceOrInsert(t.ID)
}

// calcPriority computes the MLFQ priority from nice and recent_cpu:
// PRI_MAX - (recent_cpu/4) - (nice*2), clamped to [PriMin, PriMax] and
// truncated toward zero.
func calcPriority(t *Thread) int {
	rc := t.recentCPU.DivInt(4)
	p := PriMax - rc.ToIntTruncate() - t.nice*2
	return clampPriority(p)
}

// RecomputeLoadAndDecay runs the once-per-second MLFQ update: refresh
// load_avg from the current ready-thread count, then decay every thread's
// recent_cpu. Called by the timer package every TIMER_FREQ ticks.
func RecomputeLoadAndDecay() {
	schedMu.Lock()
	if !mlfqEnabled {
		schedMu.Unlock()
		return
	}
	readyCount := len(ready.snapshot())
	if curThread != nil && curThread != idleThread {
		readyCount++
	}
	fiftyNine60 := fixedpoint.FromInt(59).Div(fixedpoint.FromInt(60))
	one60 := fixedpoint.FromInt(1).Div(fixedpoint.FromInt(60))
	loadAvg = loadAvg.Mul(fiftyNine60).Add(one60.MulInt(readyCount))

	twoLoad := loadAvg.MulInt(2)
	coeff := twoLoad.Div(twoLoad.AddInt(1))
	snapshot := make([]*Thread, len(allThreads))
	copy(snapshot, allThreads)
	schedMu.Unlock()

	for _, t := range snapshot {
		t.mu.Lock()
		t.recentCPU = coeff.Mul(t.recentCPU).AddInt(t.nice)
		changed := t.recentCPU != t.prevRecentCPU
		t.mu.Unlock()
		if changed {
			schedMu.Lock()
			markDirtyLocked(t)
			schedMu.Unlock()
		}
	}
}

// ThreadTick bumps the running thread's recent_cpu by one, called on
// every tick by the timer package before the periodic recompute checks.
func ThreadTick() {
	schedMu.Lock()
	defer schedMu.Unlock()
	if !mlfqEnabled || curThread == nil || curThread == idleThread {
		return
	}
	curThread.mu.Lock()
	curThread.recentCPU = curThread.recentCPU.AddInt(1)
	curThread.mu.Unlock()
	markDirtyLocked(curThread)
}

// RecomputePriorities runs the every-4-ticks MLFQ pass: for every thread
// whose nice or recent_cpu changed since the last pass, recompute
// effective priority and, if it moved and the thread is ready, requeue
// it. Always requests a yield on interrupt return afterward, per the MLFQ
// recompute cadence.
func RecomputePriorities() {
	schedMu.Lock()
	if !mlfqEnabled {
		schedMu.Unlock()
		return
	}
	var changedIDs []int
	dirty.Ascend(func(id int) bool {
		changedIDs = append(changedIDs, id)
		return true
	})
	dirty.Clear(false)
	byID := make(map[int]*Thread, len(changedIDs))
	for _, t := range allThreads {
		byID[t.ID] = t
	}
	schedMu.Unlock()

	for _, id := range changedIDs {
		t, ok := byID[id]
		if !ok {
			continue
		}
		t.mu.Lock()
		newPrio := calcPriority(t)
		oldPrio := t.basePriority
		moved := newPrio != oldPrio
		t.basePriority = newPrio
		t.recomputeEffectiveLocked()
		t.prevNice = t.nice
		t.prevRecentCPU = t.recentCPU
		t.prevEffPrio = t.effPriority
		t.mu.Unlock()

		if moved {
			schedMu.Lock()
			if t.State() == Ready {
				ready.requeue(t)
			}
			schedMu.Unlock()
		}
	}
	RequestYield()
}

// GetLoadAvg returns 100*load_avg rounded to nearest.
func GetLoadAvg() int {
	schedMu.Lock()
	defer schedMu.Unlock()
	return loadAvg.MulInt(100).ToIntNearest()
}

// GetRecentCPU returns 100*t.recent_cpu rounded to nearest.
func GetRecentCPU(t *Thread) int {
	return t.RecentCPU().MulInt(100).ToIntNearest()
}

// SetNice sets the calling thread's niceness, immediately recomputes its
// priority, and always yields, whether or not another ready thread now
// outranks it. MLFQ only; grounded on thread_set_nice's unconditional
// recompute-and-yield (unlike thread_set_priority, which only acts when
// displaced).
func SetNice(n int) {
	self := Current()
	self.mu.Lock()
	self.nice = n
	self.basePriority = calcPriority(self)
	self.recomputeEffectiveLocked()
	self.prevNice = n
	self.mu.Unlock()
	Yield()
}

// GetNice returns the calling thread's niceness.
func GetNice() int {
	return Current().Nice()
}

// SetPriority sets the calling thread's base priority in priority mode.
// Under MLFQ this is a no-op, preserving the source's behavior (the
// setter takes no action because priority is derived, not assigned).
// Yields if the ready structure's head now outranks the caller.
func SetPriority(p int) {
	if mlfqEnabled {
		return
	}
	self := Current()
	self.mu.Lock()
	self.basePriority = p
	self.recomputeEffectiveLocked()
	newPrio := self.effPriority
	self.mu.Unlock()

	schedMu.Lock()
	snap := ready.snapshot()
	schedMu.Unlock()
	if len(snap) > 0 && snap[0].Priority() > newPrio {
		Yield()
	}
}
