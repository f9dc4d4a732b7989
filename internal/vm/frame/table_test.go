package frame

import "testing"

type fakeResident struct {
	upage      uintptr
	accessed   bool
	evicted    bool
	unmapped   bool
	evictedVal byte
}

func (f *fakeResident) Upage() uintptr { return f.upage }
func (f *fakeResident) Accessed() bool { return f.accessed }
func (f *fakeResident) Unaccess()      { f.accessed = false }
func (f *fakeResident) EvictToSwap(mem []byte) error {
	f.evicted = true
	if len(mem) > 0 {
		f.evictedVal = mem[0]
	}
	return nil
}
func (f *fakeResident) Unmap() { f.unmapped = true }

// TestEvictionPrefersUnaccessed is testable property 6: with the pool
// exhausted, eviction must pick a frame whose accessed bit is clear,
// never one that is still set and not yet given a second chance.
func TestEvictionPrefersUnaccessed(t *testing.T) {
	pool := NewPool(2)
	table := NewTable(pool)

	accessedOne := &fakeResident{upage: 0x1000, accessed: true}
	idx1, mem1, err := table.Alloc(accessedOne, false)
	if err != nil {
		t.Fatalf("Alloc 1: %v", err)
	}
	mem1[0] = 0xAA

	unaccessedTwo := &fakeResident{upage: 0x2000, accessed: false}
	_, mem2, err := table.Alloc(unaccessedTwo, false)
	if err != nil {
		t.Fatalf("Alloc 2: %v", err)
	}
	mem2[0] = 0xBB

	newcomer := &fakeResident{upage: 0x3000}
	if _, _, err := table.Alloc(newcomer, false); err != nil {
		t.Fatalf("Alloc 3 (should evict): %v", err)
	}

	if !unaccessedTwo.evicted || !unaccessedTwo.unmapped {
		t.Fatalf("expected unaccessed entry to be evicted, got accessed=%v evicted=%v unmapped=%v",
			unaccessedTwo.accessed, unaccessedTwo.evicted, unaccessedTwo.unmapped)
	}
	if accessedOne.evicted {
		t.Fatalf("accessed entry should have been given a second chance, not evicted")
	}
	if accessedOne.accessed {
		t.Fatalf("accessed entry's bit should have been cleared during the scan")
	}
	_ = idx1
}

func TestAllocFreeRoundTrip(t *testing.T) {
	pool := NewPool(1)
	table := NewTable(pool)
	r := &fakeResident{upage: 0x1000}
	idx, mem, err := table.Alloc(r, true)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	for _, b := range mem {
		if b != 0 {
			t.Fatalf("zeroed alloc returned non-zero byte")
		}
	}
	table.Free(idx)

	r2 := &fakeResident{upage: 0x2000}
	idx2, _, err := table.Alloc(r2, false)
	if err != nil {
		t.Fatalf("Alloc after free: %v", err)
	}
	if idx2 != idx {
		t.Fatalf("expected freed frame %d to be reused, got %d", idx, idx2)
	}
}
