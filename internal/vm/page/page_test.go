package page

import (
	"bytes"
	"testing"

	"github.com/NotMo05/PintOS/internal/vm/swap"
)

type fakeFile struct {
	data []byte
}

func (f *fakeFile) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, f.data[off:])
	return n, nil
}
func (f *fakeFile) WriteAt(p []byte, off int64) (int, error) {
	need := int(off) + len(p)
	if need > len(f.data) {
		grown := make([]byte, need)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[off:], p)
	return len(p), nil
}

// TestFilePageLazyLoad is testable property 7: a file-backed page is not
// read until the first fault/bind, and read_bytes/zero_bytes split
// exactly at the boundary.
func TestFilePageLazyLoad(t *testing.T) {
	dev := swap.NewDevice(1)
	file := &fakeFile{data: bytes.Repeat([]byte{0x7A}, 100)}
	p := NewFilePage(0x1000, true, file, 0, 100, swap.SlotSize-100, dev)

	if p.IsResident() {
		t.Fatalf("page should not be resident before any fault")
	}

	mem := make([]byte, swap.SlotSize)
	if err := p.LoadFileContent(mem); err != nil {
		t.Fatalf("LoadFileContent: %v", err)
	}
	for i := 0; i < 100; i++ {
		if mem[i] != 0x7A {
			t.Fatalf("byte %d = %#x, want 0x7A", i, mem[i])
		}
	}
	for i := 100; i < swap.SlotSize; i++ {
		if mem[i] != 0 {
			t.Fatalf("trailing byte %d = %#x, want 0 (zero_bytes)", i, mem[i])
		}
	}

	p.BindFrame(0, mem)
	if !p.IsResident() {
		t.Fatalf("page should be resident after BindFrame")
	}
}

// TestEvictAndSwapInRoundTrip is testable property 8-adjacent: a page
// evicted to swap and then faulted back in recovers identical contents.
func TestEvictAndSwapInRoundTrip(t *testing.T) {
	dev := swap.NewDevice(1)
	p := NewStackPage(0x2000, dev)

	original := bytes.Repeat([]byte{0x11}, swap.SlotSize)
	p.BindFrame(3, original)

	if err := p.EvictToSwap(original); err != nil {
		t.Fatalf("EvictToSwap: %v", err)
	}
	if !p.IsSwapped() || p.IsResident() {
		t.Fatalf("page should be swapped, not resident, after eviction")
	}

	restored := make([]byte, swap.SlotSize)
	if err := p.SwapIn(restored); err != nil {
		t.Fatalf("SwapIn: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Fatalf("restored contents differ from original")
	}

	p.BindFrame(5, restored)
	if p.IsSwapped() {
		t.Fatalf("page should no longer be marked swapped after BindFrame")
	}
}

func TestTableLookupInsertRemove(t *testing.T) {
	tbl := NewTable()
	dev := swap.NewDevice(1)
	p := NewStackPage(0x3000, dev)
	tbl.Insert(p)

	got, ok := tbl.Lookup(0x3000)
	if !ok || got != p {
		t.Fatalf("Lookup after Insert failed")
	}

	tbl.Remove(0x3000)
	if _, ok := tbl.Lookup(0x3000); ok {
		t.Fatalf("entry still present after Remove")
	}
}
