// Package process implements the per-thread user-process state and its
// lifecycle: execute, wait, exit (spec.md §4.8), grounded on
// original_source/src/userprog/process.c's process_execute/start_process/
// process_wait/process_exit.
//
// Real x86 user-code execution and the byte-level argv-construction on
// the user stack are both named out of scope in spec.md §1 ("the
// argv-construction on the user stack"); the Go-native stand-in for
// "running the loaded program" is a Main closure registered by name in a
// Registry, given direct access to the Process rather than a raw stack.
package process

import (
	"fmt"
	"strings"
	"sync"

	"github.com/NotMo05/PintOS/internal/fsstub"
	"github.com/NotMo05/PintOS/internal/kerrors"
	"github.com/NotMo05/PintOS/internal/ksync"
	"github.com/NotMo05/PintOS/internal/thread"
	"github.com/NotMo05/PintOS/internal/vm/frame"
	"github.com/NotMo05/PintOS/internal/vm/mmap"
	"github.com/NotMo05/PintOS/internal/vm/page"
	"github.com/NotMo05/PintOS/internal/vm/swap"
)

// MaxArgs bounds argc, matching process.c's MAX_ARGS.
const MaxArgs = 128

// Main stands in for a user program's machine code: whatever it does,
// good or bad, it expresses through calls back into p (reads/writes via
// p.SPT and p.Files, and a p.Exit at the end). If Main returns without
// calling Exit itself, its return value is used as the exit status.
type Main func(p *Process) int

// Registry maps an executable name (argv[0]) to its simulated Main, the
// load-bearing substitute for the real loader handing control to machine
// code at the ELF entry point.
type Registry struct {
	mu    sync.Mutex
	mains map[string]Main
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{mains: make(map[string]Main)}
}

// Register binds name's Main, replacing any previous binding.
func (r *Registry) Register(name string, m Main) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mains[name] = m
}

func (r *Registry) lookup(name string) (Main, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mains[name]
	return m, ok
}

// Kernel bundles the process-independent collaborators every Process
// needs: physical memory (frame table + swap device) is global, the
// filesystem lock serializes every filesystem-touching call per spec.md
// §4.9, and Programs is the Main registry above.
type Kernel struct {
	Frames   *frame.Table
	Swap     *swap.Device
	Disk     *fsstub.Disk
	FSLock   *ksync.Lock
	Programs *Registry
}

// NewKernel wires a process.Kernel from already-constructed subsystems.
func NewKernel(frames *frame.Table, dev *swap.Device, disk *fsstub.Disk, programs *Registry) *Kernel {
	return &Kernel{
		Frames:   frames,
		Swap:     dev,
		Disk:     disk,
		FSLock:   ksync.NewLock(),
		Programs: programs,
	}
}

// Process is the per-thread userland state spec.md §4.8 describes as
// "carried by the thread when userland is attached".
type Process struct {
	kernel *Kernel

	Thread *thread.Thread
	Name   string
	Argv   []string

	SPT   *page.Table
	Mmaps *mmap.Table
	Files *fsstub.FileTable
	Exe   *fsstub.ExecFile

	// Esp is the user stack pointer recorded at load time. Real argv
	// construction on the stack is out of scope (spec.md §1); this is
	// only kept for the stack-growth heuristic internal/vm/fault needs
	// when a syscall touches memory near the stack.
	Esp uintptr

	mu       sync.Mutex
	link     *ChildLink   // this process's own link, shared with its parent; nil for the initial process
	children []*ChildLink // this process's not-yet-reaped children
}

// NewInitialProcess builds process state for the kernel's bootstrap
// thread, which has no parent ChildLink.
func NewInitialProcess(k *Kernel, t *thread.Thread) *Process {
	p := &Process{
		kernel: k,
		Thread: t,
		Name:   t.Name,
		SPT:    page.NewTable(),
		Mmaps:  mmap.NewTable(),
		Files:  fsstub.NewFileTable(),
	}
	t.SetProcess(p)
	return p
}

// Execute implements process_execute + start_process: parse cmdline,
// spawn a thread to load the named executable, and block until the
// child reports whether loading succeeded, matching the P-on-load-
// semaphore rendezvous spec.md §4.8 describes.
func (k *Kernel) Execute(parent *Process, cmdline string) (int, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return 0, kerrors.ErrLoadFailed
	}
	if len(fields) > MaxArgs {
		fields = fields[:MaxArgs]
	}
	name := fields[0]

	link := newChildLink(parent.Thread.ID, 0)
	child := &Process{
		kernel: k,
		Name:   name,
		Argv:   fields,
		SPT:    page.NewTable(),
		Mmaps:  mmap.NewTable(),
		Files:  fsstub.NewFileTable(),
		link:   link,
	}

	t := thread.Create(name, thread.PriDefault, func(arg any) {
		cp := arg.(*Process)
		cp.Thread = thread.Current()
		cp.Thread.SetProcess(cp)
		k.startProcess(cp)
	}, child)
	link.ChildTID = t.ID

	parent.mu.Lock()
	parent.children = append(parent.children, link)
	parent.mu.Unlock()

	if ok := link.awaitLoad(); !ok {
		parent.removeChild(link)
		return 0, kerrors.ErrLoadFailed
	}
	return t.ID, nil
}

// startProcess runs on the new thread: load the executable, report
// success to the parent, and either hand control to the registered Main
// or, absent one, exit(0) immediately (there being no real machine code
// to run).
func (k *Kernel) startProcess(cp *Process) {
	ok := k.load(cp)
	cp.link.reportLoad(ok)
	if !ok {
		thread.Exit()
		return
	}

	main, hasMain := k.Programs.lookup(cp.Name)
	if !hasMain {
		cp.Exit(0)
		return
	}
	status := main(cp)
	cp.Exit(status)
}

// load opens the named executable, validates its ELF header, and
// registers lazy FILE-BACKED SPT entries for every PT_LOAD segment plus
// one eagerly-allocated stack page, reproducing load()'s structure
// (spec.md §4.8 step 3: "register ... no disk I/O yet" for the segments;
// setup_stack allocates its frame immediately, same as the source).
func (k *Kernel) load(cp *Process) bool {
	k.FSLock.Acquire()
	defer k.FSLock.Release()

	f, err := k.Disk.Open(cp.Name)
	if err != nil {
		return false
	}
	exe := fsstub.NewExecFile(f)

	info, err := f.Stat()
	if err != nil {
		exe.Close()
		return false
	}

	if err := loadSegments(cp, exe, info.Size()); err != nil {
		exe.Close()
		return false
	}

	if err := setupStack(cp); err != nil {
		exe.Close()
		return false
	}

	cp.Exe = exe
	return true
}

// removeChild drops link from the process's not-yet-reaped children, used
// when a just-created child fails to load.
func (p *Process) removeChild(link *ChildLink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, l := range p.children {
		if l == link {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

// Wait implements process_wait: linear search for a matching, not-yet-
// waited child, block on its wait semaphore, then reap the ChildLink.
func (p *Process) Wait(childTID int) int {
	p.mu.Lock()
	var link *ChildLink
	for _, l := range p.children {
		if l.ChildTID == childTID {
			link = l
			break
		}
	}
	p.mu.Unlock()

	if link == nil || !link.markWaited() {
		return -1
	}

	link.waitSema.Down()
	p.removeChild(link)
	status := link.status()
	link.release()
	return status
}

// Exit implements process_exit: announce the exit-status console
// contract, tear down every owned resource, report status to the parent,
// and release or orphan every child's ChildLink.
func (p *Process) Exit(status int) {
	fmt.Printf("%s: exit(%d)\n", p.Name, status)

	if p.Exe != nil {
		p.kernel.FSLock.Acquire()
		p.Exe.AllowWrite()
		p.Exe.Close()
		p.kernel.FSLock.Release()
	}

	p.teardownMmaps()
	p.Files.CloseAll()
	p.teardownSPT()

	if p.link != nil {
		p.link.reportExit(status)
		p.link.release()
	}

	p.mu.Lock()
	orphans := p.children
	p.children = nil
	p.mu.Unlock()
	for _, l := range orphans {
		l.release()
	}

	thread.Exit()
}

// Munmap implements the munmap() helper shared by the explicit munmap
// syscall and process_exit's mmap_free: write back any dirty, writable
// page to its backing file, then unmap and free its frame. Reports
// whether mapID was a live mapping.
func (p *Process) Munmap(mapID int) bool {
	entry, ok := p.Mmaps.Lookup(mapID)
	if !ok {
		return false
	}
	p.unmapEntry(entry)
	p.Mmaps.Remove(mapID)
	return true
}

func (p *Process) unmapEntry(entry *mmap.Entry) {
	for _, pg := range entry.Pages {
		if pg.IsResident() && pg.Writable() && pg.Dirty() {
			file, off, readBytes, _ := pg.File()
			if file != nil && readBytes > 0 {
				if mem := pg.Bytes(); mem != nil {
					file.WriteAt(mem[:readBytes], off)
				}
			}
		}
		if pg.IsResident() {
			p.kernel.Frames.Free(pg.FrameIndex())
		}
		p.SPT.Remove(pg.Upage())
	}
	if entry.File != nil {
		entry.File.Close()
	}
}

// teardownMmaps reproduces mmap_free applied to every live entry at
// process exit, reusing the same unmapEntry path the explicit munmap
// syscall uses.
func (p *Process) teardownMmaps() {
	for _, entry := range p.Mmaps.All() {
		p.unmapEntry(entry)
		p.Mmaps.Remove(entry.MapID)
	}
}

// teardownSPT frees every remaining frame and swap slot the SPT still
// references, matching process_exit's hash_destroy(&cur->spt, spt_free).
func (p *Process) teardownSPT() {
	for _, pg := range p.SPT.Pages() {
		switch {
		case pg.IsResident():
			p.kernel.Frames.Free(pg.FrameIndex())
		case pg.IsSwapped():
			pg.DiscardSwap()
		}
	}
}
