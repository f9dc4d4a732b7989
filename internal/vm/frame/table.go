package frame

import (
	"sync"

	"github.com/NotMo05/PintOS/internal/kerrors"
	"github.com/NotMo05/PintOS/internal/klog"
)

// Resident is the frame table's view of whatever occupies a frame — in
// practice a *page.Page. The table never imports package page (page
// already needs to call into frame to allocate), so eviction is driven
// entirely through this interface, resolved at the caller (internal/vm/fault).
type Resident interface {
	// Upage returns the user virtual address this frame backs.
	Upage() uintptr
	// Accessed reports and Unaccess clears the owning page directory's
	// accessed bit for Upage — the second-chance scan's probe.
	Accessed() bool
	Unaccess()
	// EvictToSwap writes the frame's current contents to a fresh swap
	// slot and marks the resident swapped-out, forgetting its frame.
	EvictToSwap(mem []byte) error
	// Unmap clears the PTE mapping Upage to this frame.
	Unmap()
}

type entry struct {
	resident Resident
}

// Table is the frame table: a mutex-guarded map from frame index to
// resident, plus an insertion-ordered clock hand for second-chance
// eviction. The source iterates frame_hash_table in (arbitrary) hash
// bucket order circularly; here the enumeration order is simply
// insertion order, which preserves the algorithm (examine-then-advance,
// bounded to two full passes) without depending on a hash bucket layout
// that has no Go equivalent.
type Table struct {
	mu       sync.Mutex
	pool     *Pool
	order    []int // frame indices in clock order
	posOf    map[int]int
	entries  map[int]*entry
	clockPos int
}

// NewTable builds a frame table backed by pool.
func NewTable(pool *Pool) *Table {
	return &Table{
		pool:    pool,
		posOf:   make(map[int]int),
		entries: make(map[int]*entry),
	}
}

// Alloc reserves a frame for r, evicting a victim under second-chance if
// the pool is exhausted. Must not be called while the caller holds any
// lock that could be needed by a victim's EvictToSwap (per spec.md §5,
// frame_table_lock may be held across swap I/O, but never across
// filesystem I/O).
func (t *Table) Alloc(r Resident, zero bool) (int, []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, mem, ok := t.pool.tryGet(zero)
	if !ok {
		var err error
		idx, mem, err = t.evictLocked(zero)
		if err != nil {
			return 0, nil, err
		}
	} else {
		t.posOf[idx] = len(t.order)
		t.order = append(t.order, idx)
	}
	t.entries[idx] = &entry{resident: r}
	return idx, mem, nil
}

// Free releases frame idx back to the pool (frame_free).
func (t *Table) Free(idx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(idx)
	t.pool.release(idx)
}

func (t *Table) removeLocked(idx int) {
	delete(t.entries, idx)
	if pos, ok := t.posOf[idx]; ok {
		last := len(t.order) - 1
		t.order[pos] = t.order[last]
		t.posOf[t.order[pos]] = pos
		t.order = t.order[:last]
		delete(t.posOf, idx)
		if t.clockPos > pos {
			t.clockPos--
		}
	}
}

// evictLocked runs the second-chance scan: walk the clock circularly,
// clearing accessed bits until an unaccessed frame is found, bounded to
// two full passes. Must be called with t.mu held.
func (t *Table) evictLocked(zero bool) (int, []byte, error) {
	n := len(t.order)
	if n == 0 {
		return 0, nil, kerrors.ErrNoFrames
	}

	limit := 2 * n
	for i := 0; i < limit; i++ {
		if t.clockPos >= len(t.order) {
			t.clockPos = 0
		}
		idx := t.order[t.clockPos]
		e := t.entries[idx]
		if e.resident.Accessed() {
			e.resident.Unaccess()
			t.clockPos++
			continue
		}

		mem := t.pool.bytesOf(idx)
		if err := e.resident.EvictToSwap(mem); err != nil {
			return 0, nil, err
		}
		e.resident.Unmap()
		klog.Debugf("frame: evicted frame %d (upage %#x)", idx, e.resident.Upage())

		if zero {
			zeroBytes(mem)
		}
		return idx, mem, nil
	}
	return 0, nil, kerrors.ErrNoFrames
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
