package page

import "sync"

// Table is one process's supplemental page table: a vaddr-keyed hash
// guarded by its own lock (spt_lock), grounded on page.c's spt_hash /
// spt_lookup (hash_int on the page-aligned vaddr maps directly onto a Go
// map keyed by the same uintptr).
type Table struct {
	mu    sync.Mutex
	pages map[uintptr]*Page
}

// NewTable returns an empty SPT.
func NewTable() *Table {
	return &Table{pages: make(map[uintptr]*Page)}
}

// Lookup finds the entry for a page-aligned vaddr (spt_lookup).
func (t *Table) Lookup(vaddr uintptr) (*Page, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pages[vaddr]
	return p, ok
}

// Insert adds p, keyed by its own vaddr. Used by the loader and the mmap
// handler, both of which must hold spt_lock while doing so (spec.md
// §4.6) — callers needing that external synchronization should wrap
// Insert with their own critical section; Table's own lock only
// protects the map itself.
func (t *Table) Insert(p *Page) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pages[p.vaddr] = p
}

// Remove deletes the entry for vaddr, if any (spt_free's hash_delete).
func (t *Table) Remove(vaddr uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pages, vaddr)
}

// Pages returns a snapshot of every entry, for process-exit teardown
// (freeing every frame/swap slot).
func (t *Table) Pages() []*Page {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Page, 0, len(t.pages))
	for _, p := range t.pages {
		out = append(out, p)
	}
	return out
}
