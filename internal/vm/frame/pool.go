// Package frame implements the user pool's frame table and second-chance
// eviction scan (spec.md §4.5), grounded on original_source/src/vm/frame.c.
package frame

import "sync"

// PageSize is the simulated hardware page size.
const PageSize = 4096

// Pool is the fixed-size simulated physical user pool that palloc_get_page
// draws frames from. Frames are plain byte slices rather than real
// physical memory, since this kernel runs as ordinary user-mode Go.
type Pool struct {
	mu   sync.Mutex
	mem  []byte
	free []int
}

// NewPool allocates a pool of numFrames page-sized frames, all initially
// free.
func NewPool(numFrames int) *Pool {
	p := &Pool{
		mem:  make([]byte, numFrames*PageSize),
		free: make([]int, numFrames),
	}
	for i := range p.free {
		p.free[i] = numFrames - 1 - i
	}
	return p
}

// Size returns the number of frames in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.mem) / PageSize
}

// tryGet returns a free frame's index and backing bytes, or ok=false if
// the pool is exhausted (the palloc_get_page failure path that triggers
// eviction).
func (p *Pool) tryGet(zero bool) (idx int, mem []byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return 0, nil, false
	}
	idx = p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	mem = p.mem[idx*PageSize : (idx+1)*PageSize]
	if zero {
		for i := range mem {
			mem[i] = 0
		}
	}
	return idx, mem, true
}

// release returns a frame to the free list (palloc_free_page).
func (p *Pool) release(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, idx)
}

// bytesOf returns the backing bytes for an already-allocated frame, for
// reuse by the eviction path without going through the free list.
func (p *Pool) bytesOf(idx int) []byte {
	return p.mem[idx*PageSize : (idx+1)*PageSize]
}
