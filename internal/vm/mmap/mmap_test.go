package mmap

import "testing"

type fakeFile struct{ closed bool }

func (f *fakeFile) ReadAt(p []byte, off int64) (int, error)  { return len(p), nil }
func (f *fakeFile) WriteAt(p []byte, off int64) (int, error) { return len(p), nil }
func (f *fakeFile) Close() error                             { f.closed = true; return nil }

func TestCreateLookupRemove(t *testing.T) {
	tbl := NewTable()
	f := &fakeFile{}
	e := tbl.Create(f, 0x400000, 8192, nil)
	if e.MapID != 1 {
		t.Fatalf("first mapid = %d, want 1", e.MapID)
	}

	got, ok := tbl.Lookup(e.MapID)
	if !ok || got != e {
		t.Fatalf("Lookup after Create failed")
	}

	second := tbl.Create(f, 0x500000, 4096, nil)
	if second.MapID != 2 {
		t.Fatalf("second mapid = %d, want 2 (monotonic)", second.MapID)
	}

	tbl.Remove(e.MapID)
	if _, ok := tbl.Lookup(e.MapID); ok {
		t.Fatalf("entry still present after Remove")
	}
	if len(tbl.All()) != 1 {
		t.Fatalf("All() returned %d entries, want 1", len(tbl.All()))
	}
}
