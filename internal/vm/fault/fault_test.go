package fault

import (
	"bytes"
	"testing"

	"github.com/NotMo05/PintOS/internal/vm/frame"
	"github.com/NotMo05/PintOS/internal/vm/page"
	"github.com/NotMo05/PintOS/internal/vm/swap"
)

type fakeFile struct{ data []byte }

func (f *fakeFile) ReadAt(p []byte, off int64) (int, error) {
	return copy(p, f.data[off:]), nil
}
func (f *fakeFile) WriteAt(p []byte, off int64) (int, error) { return len(p), nil }

type fakeLock struct{ held bool }

func (l *fakeLock) HeldByCurrent() bool { return l.held }
func (l *fakeLock) Release()            { l.held = false }

func newEnv() (*page.Table, *frame.Table, *swap.Device) {
	pool := frame.NewPool(4)
	return page.NewTable(), frame.NewTable(pool), swap.NewDevice(4)
}

// TestStackGrowthWithinBounds is testable property 9: a fault just below
// esp within 8 MiB of PhysBase grows the stack. The case of a fault far
// below the limit is TestStackGrowthRejectsBeyondLimit.
func TestStackGrowthWithinBounds(t *testing.T) {
	spt, frames, dev := newEnv()
	esp := PhysBase - 4096

	if err := Resolve(spt, frames, dev, esp-4, esp, true, true, false, nil); err != nil {
		t.Fatalf("expected stack growth to succeed, got %v", err)
	}
	if _, ok := spt.Lookup(pageRoundDown(esp - 4)); !ok {
		t.Fatalf("expected a new SPT entry for the grown stack page")
	}
}

func TestStackGrowthRejectsBeyondLimit(t *testing.T) {
	spt, frames, dev := newEnv()
	tooFar := StackLimit - frame.PageSize

	if err := Resolve(spt, frames, dev, tooFar, PhysBase-4096, true, true, false, nil); err == nil {
		t.Fatalf("expected fault beyond the 8 MiB stack limit to fail")
	}
}

func TestProtectionViolationReleasesFilesystemLock(t *testing.T) {
	spt, frames, dev := newEnv()
	lock := &fakeLock{held: true}

	if err := Resolve(spt, frames, dev, 0x1000, 0, true, true, true, lock); err == nil {
		t.Fatalf("expected protection-violation fault to return an error")
	}
	if lock.held {
		t.Fatalf("expected filesystem lock to be released on a terminating fault")
	}
}

// TestFileBackedFaultLoadsLazily is testable property 7 exercised through
// the fault path: a registered FILE-BACKED page is only read on first
// fault.
func TestFileBackedFaultLoadsLazily(t *testing.T) {
	spt, frames, dev := newEnv()
	file := &fakeFile{data: bytes.Repeat([]byte{0x5C}, 50)}
	vaddr := uintptr(0x400000)
	entry := page.NewFilePage(vaddr, true, file, 0, 50, frame.PageSize-50, dev)
	spt.Insert(entry)

	if entry.IsResident() {
		t.Fatalf("page should not be resident before a fault touches it")
	}

	if err := Resolve(spt, frames, dev, vaddr, 0, false, true, false, nil); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !entry.IsResident() {
		t.Fatalf("page should be resident after the fault resolves")
	}
}
