// Package fault implements page-fault resolution (spec.md §4.6), grounded
// on original_source/src/userprog/exception.c's page_fault and
// is_stack_growth.
package fault

import (
	"github.com/NotMo05/PintOS/internal/kerrors"
	"github.com/NotMo05/PintOS/internal/vm/frame"
	"github.com/NotMo05/PintOS/internal/vm/page"
	"github.com/NotMo05/PintOS/internal/vm/swap"
)

// Memory layout constants (exception.h): user address space sits below
// PhysBase, and the stack may grow down to 8 MiB below it.
const (
	PhysBase   = uintptr(0xC0000000)
	stackBytes = 8 * 1024 * 1024
	StackLimit = PhysBase - stackBytes

	pushSize  = 4  // a single push
	pushaSize = 32 // PUSHA saves 8 32-bit registers
)

// FSLock is the filesystem lock interface the resolver releases on the
// termination paths that the source reaches with it possibly held;
// satisfied by *ksync.Lock without this package importing ksync's lock
// donation machinery.
type FSLock interface {
	HeldByCurrent() bool
	Release()
}

func releaseIfHeld(l FSLock) {
	if l != nil && l.HeldByCurrent() {
		l.Release()
	}
}

// IsUserVaddr reports whether a page-aligned address lies in user space.
func IsUserVaddr(addr uintptr) bool {
	return addr != 0 && addr < PhysBase
}

// isStackGrowth implements exception.c's is_stack_growth: the fault must
// be below PhysBase, within 8 MiB of it, and at or just below the saved
// stack pointer (allowing for a single PUSH or a PUSHA).
func isStackGrowth(faultAddr, esp uintptr) bool {
	if faultAddr >= PhysBase || faultAddr < StackLimit {
		return false
	}
	return faultAddr >= esp || faultAddr == esp-pushSize || faultAddr == esp-pushaSize
}

func pageRoundDown(addr uintptr) uintptr {
	return addr &^ (frame.PageSize - 1)
}

// Resolve runs the source's page_fault body against one process's SPT
// and shared frame table. present is the error code's PF_P bit (a fault
// on an existing mapping, e.g. a write to a read-only page); user
// reports whether the fault came from user mode; esp is the saved user
// stack pointer, needed only for the stack-growth heuristic. fsLock, if
// non-nil, is released before any termination path returns an error —
// the resolver never re-acquires it itself.
func Resolve(spt *page.Table, frames *frame.Table, dev *swap.Device, faultAddr, esp uintptr, write, user, present bool, fsLock FSLock) error {
	if present {
		releaseIfHeld(fsLock)
		return kerrors.ErrBadPointer
	}

	p := pageRoundDown(faultAddr)
	if !IsUserVaddr(p) {
		releaseIfHeld(fsLock)
		return kerrors.ErrBadPointer
	}

	if entry, ok := spt.Lookup(p); ok {
		return resolveExisting(entry, frames, write, fsLock)
	}

	if user && isStackGrowth(faultAddr, esp) {
		entry := page.NewStackPage(p, dev)
		idx, mem, err := frames.Alloc(entry, true)
		if err != nil {
			return err
		}
		entry.BindFrame(idx, mem)
		spt.Insert(entry)
		return nil
	}

	releaseIfHeld(fsLock)
	return kerrors.ErrBadPointer
}

func resolveExisting(entry *page.Page, frames *frame.Table, write bool, fsLock FSLock) error {
	switch {
	case entry.IsSwapped():
		idx, mem, err := frames.Alloc(entry, false)
		if err != nil {
			return err
		}
		if err := entry.SwapIn(mem); err != nil {
			frames.Free(idx)
			return err
		}
		entry.BindFrame(idx, mem)
		return nil

	case entry.Kind() == page.KindFile:
		if write && !entry.Writable() {
			releaseIfHeld(fsLock)
			return kerrors.ErrBadPointer
		}
		idx, mem, err := frames.Alloc(entry, false)
		if err != nil {
			return err
		}
		if err := entry.LoadFileContent(mem); err != nil {
			frames.Free(idx)
			return err
		}
		entry.BindFrame(idx, mem)
		return nil

	default: // KindStack, already has an SPT entry but no frame (shouldn't normally recur)
		idx, mem, err := frames.Alloc(entry, true)
		if err != nil {
			return err
		}
		entry.BindFrame(idx, mem)
		return nil
	}
}
