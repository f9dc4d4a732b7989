// Package syscall implements the INT 0x30 dispatch surface (spec.md
// §4.9), grounded on original_source/src/userprog/syscall.c's
// syscall_handler and its per-number handle_* functions.
//
// The original reads three raw 32-bit words off the user stack and
// dispatches through a function-pointer table indexed by syscall
// number. That raw-word calling convention exists only because C has no
// better way to express "one dispatch point, fifteen different argument
// shapes" — Go's per-syscall typed methods are the idiomatic
// replacement for the same dispatch table, so Table has no literal
// Dispatch(num, args [3]uint32) entry point; callers invoke the method
// matching the syscall they mean, exactly as the argument-shape list in
// spec.md §6 enumerates them.
package syscall

import (
	"os"

	"github.com/NotMo05/PintOS/internal/process"
	"github.com/NotMo05/PintOS/internal/vm/fault"
	"github.com/NotMo05/PintOS/internal/vm/frame"
	"github.com/NotMo05/PintOS/internal/vm/page"
)

// Number names the fixed dispatch-table slots spec.md §6 enumerates, in
// order, purely for documentation/logging — Table's methods are called
// directly rather than through this enum.
type Number int

const (
	SysHalt Number = iota
	SysExit
	SysExec
	SysWait
	SysCreate
	SysRemove
	SysOpen
	SysFilesize
	SysRead
	SysWrite
	SysSeek
	SysTell
	SysClose
	SysMmap
	SysMunmap
)

// Table is the per-process syscall surface: every handler reads through
// p's own SPT/fd table/mmap table, and filesystem-touching calls hold
// the kernel-wide filesystem lock for their duration (spec.md §4.9).
type Table struct {
	k       *process.Kernel
	Console *Console
	halt    func()
}

// New builds a syscall Table. halt, if non-nil, is called for SysHalt
// (the hosted boot wires it to the process's own shutdown); it may be
// nil in tests that never exercise halt.
func New(k *process.Kernel, console *Console, halt func()) *Table {
	return &Table{k: k, Console: console, halt: halt}
}

// Halt implements handle_halt.
func (t *Table) Halt() {
	if t.halt != nil {
		t.halt()
	}
}

// Exit implements handle_exit: print the exit line, tear the process
// down, and never return (process.Exit calls thread.Exit).
func (t *Table) Exit(p *process.Process, status int) {
	p.Exit(status)
}

// Exec implements handle_exec: parse and load cmdline as a child
// process, blocking until the child reports load success or failure.
// Filename/cmdline arguments are plain Go strings throughout this
// package: spec.md §1 places the byte-level argv-construction on the
// user stack out of scope, so there is no user-memory C string for this
// layer to scan.
func (t *Table) Exec(p *process.Process, cmdline string) int {
	tid, err := t.k.Execute(p, cmdline)
	if err != nil {
		return -1
	}
	return tid
}

// Wait implements handle_wait.
func (t *Table) Wait(p *process.Process, childTID int) int {
	return p.Wait(childTID)
}

// Create implements handle_create/create(), holding the filesystem lock
// for the duration of the call per spec.md §4.9.
func (t *Table) Create(p *process.Process, name string, initialSize uint32) bool {
	t.k.FSLock.Acquire()
	defer t.k.FSLock.Release()
	return t.k.Disk.Create(name, int(initialSize)) == nil
}

// Remove implements handle_remove/remove().
func (t *Table) Remove(p *process.Process, name string) bool {
	t.k.FSLock.Acquire()
	defer t.k.FSLock.Release()
	return t.k.Disk.Remove(name) == nil
}

// Open implements handle_open/open(): install the opened file under a
// fresh fd, or -1 on failure.
func (t *Table) Open(p *process.Process, name string) int {
	t.k.FSLock.Acquire()
	f, err := t.k.Disk.Open(name)
	t.k.FSLock.Release()
	if err != nil {
		return -1
	}
	return p.Files.Install(f)
}

// Filesize implements handle_filesize/filesize().
func (t *Table) Filesize(p *process.Process, fd int) int {
	f, ok := p.Files.Lookup(fd)
	if !ok {
		return -1
	}
	t.k.FSLock.Acquire()
	defer t.k.FSLock.Release()
	info, err := f.Stat()
	if err != nil {
		return -1
	}
	return int(info.Size())
}

// Seek implements handle_seek/seek(): the original has no return value
// and no failure path beyond a bad fd, which is silently ignored there
// too (seek() on an unknown fd is a no-op).
func (t *Table) Seek(p *process.Process, fd int, newPos uint32) {
	f, ok := p.Files.Lookup(fd)
	if !ok {
		return
	}
	f.Seek(int64(newPos), os.SEEK_SET)
}

// Tell implements handle_tell/tell().
func (t *Table) Tell(p *process.Process, fd int) int {
	f, ok := p.Files.Lookup(fd)
	if !ok {
		return -1
	}
	pos, err := f.Seek(0, os.SEEK_CUR)
	if err != nil {
		return -1
	}
	return int(pos)
}

// Close implements handle_close/close().
func (t *Table) Close(p *process.Process, fd int) {
	p.Files.Close(fd)
}

// Read implements handle_read/read(): fd 0 reads byte-at-a-time from
// the console's keyboard source (input_getc's loop); any other fd reads
// through the user buffer, which is touched through the process's own
// SPT exactly as a real get_user/put_user loop would, so a read into an
// unmapped or swapped-out buffer genuinely exercises the fault resolver.
func (t *Table) Read(p *process.Process, fd int, uaddr uintptr, size uint32) int {
	if fd == 1 {
		return -1
	}
	if !validUserBuffer(uaddr, int(size)) {
		p.Exit(-1)
		return -1
	}

	staging := make([]byte, size)
	var n int
	var readErr error
	switch {
	case fd == 0:
		n = t.Console.ReadInto(staging)
	default:
		f, ok := p.Files.Lookup(fd)
		if !ok {
			return -1
		}
		t.k.FSLock.Acquire()
		n, readErr = f.Read(staging)
		t.k.FSLock.Release()
		if readErr != nil && n == 0 {
			return -1
		}
	}

	if n > 0 {
		if err := copyToUser(p, t.k, uaddr, staging[:n]); err != nil {
			return -1
		}
	}
	return n
}

// Write implements handle_write/write(): fd 1 writes the whole buffer to
// the console in a single putbuf call; any other fd writes through the
// filesystem lock.
func (t *Table) Write(p *process.Process, fd int, uaddr uintptr, size uint32) int {
	if fd == 0 {
		return -1
	}
	buf, err := copyFromUser(p, t.k, uaddr, int(size))
	if err != nil {
		// copyFromUser exits p itself before ever returning an error, so
		// this return never actually runs; it's here only so the
		// function still type-checks.
		return -1
	}
	if fd == 1 {
		return t.Console.WriteAll(buf)
	}
	f, ok := p.Files.Lookup(fd)
	if !ok {
		return -1
	}
	t.k.FSLock.Acquire()
	defer t.k.FSLock.Release()
	n, werr := f.Write(buf)
	if werr != nil && n == 0 {
		return -1
	}
	return n
}

// Mmap implements handle_mmap/mmap(), reproducing every precondition
// mmap() checks in order: fd not 0/1 and open, addr non-null and
// page-aligned, file length > 0, and no page in [addr, addr+len) overlapping an existing
// SPT entry or lying in stack/kernel space.
func (t *Table) Mmap(p *process.Process, fd int, addr uintptr) int {
	if fd == 0 || fd == 1 {
		return -1
	}
	f, ok := p.Files.Lookup(fd)
	if !ok {
		return -1
	}
	if addr == 0 || addr%frame.PageSize != 0 {
		return -1
	}

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return -1
	}
	length := info.Size()

	numPages := int((length + frame.PageSize - 1) / frame.PageSize)
	if addr+uintptr(numPages)*frame.PageSize > fault.StackLimit {
		return -1
	}
	for i := 0; i < numPages; i++ {
		upage := addr + uintptr(i)*frame.PageSize
		if _, exists := p.SPT.Lookup(upage); exists {
			return -1
		}
	}

	reopened, err := os.OpenFile(f.Name(), os.O_RDWR, 0)
	if err != nil {
		return -1
	}

	pages := make([]*page.Page, 0, numPages)
	remaining := length
	for i := 0; i < numPages; i++ {
		upage := addr + uintptr(i)*frame.PageSize
		readBytes := int(remaining)
		if readBytes > frame.PageSize {
			readBytes = frame.PageSize
		}
		zeroBytes := frame.PageSize - readBytes

		pg := page.NewFilePage(upage, true, reopened, int64(i)*frame.PageSize, readBytes, zeroBytes, t.k.Swap)
		p.SPT.Insert(pg)
		pages = append(pages, pg)
		remaining -= int64(readBytes)
	}

	entry := p.Mmaps.Create(reopened, addr, int(length), pages)
	return entry.MapID
}

// Munmap implements handle_munmap/munmap(), sharing Process.Munmap's
// write-back/free/remove path with process exit's mmap teardown.
func (t *Table) Munmap(p *process.Process, mapID int) {
	p.Munmap(mapID)
}

