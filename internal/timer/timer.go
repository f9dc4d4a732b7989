// Package timer implements the tick counter, non-busy sleep queue, and the
// MLFQ/preemption cadence hooks that the source's devices/timer.c drives
// from its timer_interrupt. Wall-clock ticking is abstracted behind the
// Source interface so production code drives real ticks (HostedSource,
// via golang.org/x/sys/unix) while tests drive a ManualSource deterministically.
package timer

import (
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	"github.com/NotMo05/PintOS/internal/klog"
	"github.com/NotMo05/PintOS/internal/ksync"
	"github.com/NotMo05/PintOS/internal/thread"
)

// Frequency is TIMER_FREQ: timer interrupts per second. 19 <= Frequency <=
// 1000 per the source's compile-time assertion.
const Frequency = 100

// PriorityCalcDelay is the tick interval at which MLFQ priorities are
// recomputed (every 4 ticks, per the source's PRIORITY_CALC_DELAY).
const PriorityCalcDelay = 4

var (
	ticks atomic.Int64

	sleepMu      sync.Mutex
	sleepQueue   = btree.NewG(32, sleeperLess)
	sleepSeq     uint64
	loopsPerTick uint64
)

// sleeper is one entry in the sleep queue, ordered by wakeup tick with
// insertion-order tiebreaking (the Go analogue of the source's
// list_insert_ordered by wakeup_time, which is stable for ties).
type sleeper struct {
	wakeupTick int64
	seq        uint64
	sema       *ksync.Semaphore
}

func sleeperLess(a, b *sleeper) bool {
	if a.wakeupTick != b.wakeupTick {
		return a.wakeupTick < b.wakeupTick
	}
	return a.seq < b.seq
}

// Ticks returns the number of timer ticks since boot.
func Ticks() int64 {
	return ticks.Load()
}

// Elapsed returns the number of ticks elapsed since a value previously
// returned by Ticks.
func Elapsed(then int64) int64 {
	return Ticks() - then
}

// Sleep blocks the calling thread for approximately n ticks, without
// busy-waiting. Interrupts (here: the tick source) must be running.
func Sleep(n int64) {
	if n <= 0 {
		return
	}
	start := Ticks()
	if Elapsed(start) >= n {
		return
	}

	sema := ksync.NewSemaphore(0)
	sleepMu.Lock()
	sleepSeq++
	sleepQueue.ReplaceOrInsert(&sleeper{
		wakeupTick: start + n,
		seq:        sleepSeq,
		sema:       sema,
	})
	sleepMu.Unlock()

	sema.Down()
}

// Msleep, Usleep, and Nsleep convert a real-time interval to ticks
// (num*Frequency/denom, rounding down) and either defer to Sleep (>=1
// tick) or busy-wait via the calibrated loop count, exactly as the
// source's real_time_sleep chooses between the two.
func Msleep(ms int64) { realTimeSleep(ms, 1000) }
func Usleep(us int64) { realTimeSleep(us, 1000*1000) }
func Nsleep(ns int64) { realTimeSleep(ns, 1000*1000*1000) }

func realTimeSleep(num, denom int64) {
	n := num * Frequency / denom
	if n > 0 {
		Sleep(n)
		return
	}
	realTimeDelay(num, denom)
}

func realTimeDelay(num, denom int64) {
	if denom%1000 != 0 {
		klog.Panic("timer: real_time_delay called with non-millisecond-aligned denom %d", denom)
	}
	loops := int64(loopsPerTick) * num / 1000 * Frequency / (denom / 1000)
	busyWait(loops)
}

func busyWait(loops int64) {
	for loops > 0 {
		loops--
	}
}

// Calibrate approximates loopsPerTick as the largest power of two whose
// busy_wait does not spill past one tick, then refines the next 8 bits,
// matching the source's timer_calibrate. Must be called against a live
// tick Source (interrupts "enabled").
func Calibrate(src Source) {
	var high uint64 = 1 << 10
	for !tooManyLoops(src, high<<1) {
		high <<= 1
		if high == 0 {
			klog.Panic("timer: loops_per_tick overflowed during calibration")
		}
	}
	highBit := high
	for test := highBit >> 1; test != highBit>>10; test >>= 1 {
		if !tooManyLoops(src, highBit|test) {
			high |= test
		}
	}
	loopsPerTick = high
	klog.Infof("timer: calibrated %d loops/s", loopsPerTick*Frequency)
}

func tooManyLoops(src Source, loops uint64) bool {
	start := Ticks()
	for Ticks() == start {
	}
	start = Ticks()
	busyWait(int64(loops))
	return start != Ticks()
}

// onTick runs the body of the source's timer_interrupt: advance the tick
// counter, feed the MLFQ's per-tick/per-second/every-4-ticks hooks, wake
// due sleepers, and let the preemption counter decide whether the running
// thread should yield at its next safe point.
func onTick() {
	now := ticks.Add(1)

	thread.ThreadTick()
	if now%Frequency == 0 {
		thread.RecomputeLoadAndDecay()
	}
	if now%PriorityCalcDelay == 0 {
		thread.RecomputePriorities()
	}

	wakeDue(now)
	thread.Tick()
}

func wakeDue(now int64) {
	var woken []*sleeper
	sleepMu.Lock()
	for {
		min, ok := sleepQueue.Min()
		if !ok || min.wakeupTick > now {
			break
		}
		sleepQueue.DeleteMin()
		woken = append(woken, min)
	}
	sleepMu.Unlock()

	for _, s := range woken {
		s.sema.UpFromInterrupt()
	}
}

// resetForTest clears all package state; tests only.
func resetForTest() {
	ticks.Store(0)
	sleepMu.Lock()
	sleepQueue.Clear(false)
	sleepSeq = 0
	sleepMu.Unlock()
	loopsPerTick = 0
}
