// Package mmap implements the per-process mmap table (spec.md §4.7),
// grounded on original_source/src/vm/mmap.c/mmap.h — which is itself only
// hash-table glue; the actual map/unmap orchestration lives where it can
// coordinate with the SPT and frame table (creating FILE-BACKED SPT
// entries in internal/syscall, write-back on unmap in internal/process's
// Process.Munmap), mirroring how
// the source's real mmap/munmap logic lives in userprog/syscall.c rather
// than vm/mmap.c.
package mmap

import (
	"sync"

	"github.com/NotMo05/PintOS/internal/vm/page"
)

// FileHandle is the reopened file backing a mapping; Close lets munmap
// and process exit release it independently of the fd the user opened.
type FileHandle interface {
	page.FileSource
	Close() error
}

// Entry is one active mapping (struct mmap_entry).
type Entry struct {
	MapID     int
	File      FileHandle
	StartAddr uintptr
	Length    int
	Pages     []*page.Page // one per covered page, in address order
}

// Table is a process's mmap table, keyed by mapid (mmap_hash).
type Table struct {
	mu      sync.Mutex
	entries map[int]*Entry
	nextID  int
}

// NewTable returns an empty mmap table.
func NewTable() *Table {
	return &Table{entries: make(map[int]*Entry), nextID: 1}
}

// Create registers a new mapping and returns its mapid.
func (t *Table) Create(file FileHandle, start uintptr, length int, pages []*page.Page) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &Entry{MapID: t.nextID, File: file, StartAddr: start, Length: length, Pages: pages}
	t.entries[e.MapID] = e
	t.nextID++
	return e
}

// Lookup finds a mapping by mapid.
func (t *Table) Lookup(id int) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e, ok
}

// Remove deletes a mapping from the table (the caller is responsible for
// write-back and closing File first).
func (t *Table) Remove(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// All returns every active mapping, for process-exit teardown (munmap
// run for every mmap when the process exits).
func (t *Table) All() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}
