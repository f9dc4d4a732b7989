// Package page implements the supplemental page table entry (spec.md §3
// "SPT entry") and the per-process SPT hash (spec.md §4.6), grounded on
// original_source/src/vm/page.c and page.h.
package page

import (
	"sync"

	"github.com/NotMo05/PintOS/internal/kerrors"
	"github.com/NotMo05/PintOS/internal/vm/swap"
)

// Kind distinguishes the two SPT entry flavors the source's
// enum page_status names.
type Kind int

const (
	// KindFile is a file-backed page: read_bytes come from File at
	// FileOffset, the remainder is zero-filled.
	KindFile Kind = iota
	// KindStack is a zero-filled, always-writable stack page.
	KindStack
)

func (k Kind) String() string {
	if k == KindFile {
		return "file"
	}
	return "stack"
}

// FileSource is the minimal file handle an SPT entry needs to lazily
// load or write back its backing bytes — satisfied by *os.File so
// internal/fsstub needs no dedicated adapter type.
type FileSource interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
}

// Page is one supplemental page table entry. At most one of
// {resident-in-frame, swapped-out, pure-lazy} holds at a time, per
// spec.md §3's invariant.
type Page struct {
	mu sync.Mutex

	vaddr    uintptr
	kind     Kind
	writable bool

	hasFrame bool
	frameIdx int
	mem      []byte

	swapped  bool
	swapSlot int
	swapDev  *swap.Device

	accessed bool
	dirty    bool

	file      FileSource
	fileOff   int64
	readBytes int
	zeroBytes int
}

// NewFilePage builds a lazily-loaded file-backed entry. readBytes must be
// <= page size; the remaining zeroBytes pad the page to PGSIZE.
func NewFilePage(vaddr uintptr, writable bool, file FileSource, off int64, readBytes, zeroBytes int, dev *swap.Device) *Page {
	return &Page{
		vaddr:     vaddr,
		kind:      KindFile,
		writable:  writable,
		file:      file,
		fileOff:   off,
		readBytes: readBytes,
		zeroBytes: zeroBytes,
		swapDev:   dev,
	}
}

// NewStackPage builds a zero-filled, writable stack entry.
func NewStackPage(vaddr uintptr, dev *swap.Device) *Page {
	return &Page{vaddr: vaddr, kind: KindStack, writable: true, swapDev: dev}
}

func (p *Page) Upage() uintptr { return p.vaddr }
func (p *Page) Kind() Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kind
}
func (p *Page) Writable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writable
}

// IsResident reports whether the page currently occupies a frame.
func (p *Page) IsResident() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasFrame
}

// IsSwapped reports whether the page's contents currently live in swap.
func (p *Page) IsSwapped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.swapped
}

// SwapSlot returns the swap slot holding this page's contents, valid
// only while IsSwapped.
func (p *Page) SwapSlot() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.swapSlot
}

func (p *Page) FrameIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameIdx
}

// Bytes returns the resident frame's backing slice, or nil if the page is
// not currently resident. Used for write-back (munmap, process exit)
// without a caller needing to go through the frame table by index.
func (p *Page) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mem
}

func (p *Page) File() (FileSource, int64, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file, p.fileOff, p.readBytes, p.zeroBytes
}

// LoadFileContent reads read_bytes from File at FileOffset into mem and
// zero-fills the trailing zero_bytes, the source's file_read_at +
// memset pairing in page_fault's FILE-BACKED branch. mem must be exactly
// one page.
func (p *Page) LoadFileContent(mem []byte) error {
	p.mu.Lock()
	file, off, readBytes, zeroBytes := p.file, p.fileOff, p.readBytes, p.zeroBytes
	p.mu.Unlock()

	if readBytes > 0 {
		n, err := file.ReadAt(mem[:readBytes], off)
		if err != nil || n != readBytes {
			return kerrors.ErrLoadFailed
		}
	}
	for i := readBytes; i < readBytes+zeroBytes && i < len(mem); i++ {
		mem[i] = 0
	}
	return nil
}

// BindFrame marks the page resident in frame idx backed by mem, clearing
// any prior swap state (install_page + "mark resident" bookkeeping).
func (p *Page) BindFrame(idx int, mem []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasFrame = true
	p.frameIdx = idx
	p.mem = mem
	p.swapped = false
	p.swapSlot = 0
	p.accessed = true
	p.dirty = false
}

// Accessed and Unaccess implement frame.Resident, simulating the PTE
// accessed bit the second-chance scan probes.
func (p *Page) Accessed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accessed
}

func (p *Page) Unaccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessed = false
}

// MarkAccessed simulates a hardware access: every read or write through
// the mapping sets both accessed and (for writes) dirty.
func (p *Page) MarkAccessed(write bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessed = true
	if write {
		p.dirty = true
	}
}

// Dirty reports the simulated dirty bit, checked by munmap on both user
// and kernel aliases per spec.md §4.7 — this kernel has no separate
// kernel alias, so the single bit stands in for both.
func (p *Page) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

// EvictToSwap implements frame.Resident: write mem to a fresh swap slot
// and forget the frame (swap_slot := swap_out(upage); swapped := true;
// frame := null).
func (p *Page) EvictToSwap(mem []byte) error {
	slot, err := p.swapDev.Out(mem)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.swapSlot = slot
	p.swapped = true
	p.hasFrame = false
	p.frameIdx = 0
	p.mem = nil
	p.mu.Unlock()
	return nil
}

// SwapIn reads this page's swap slot into mem and frees the slot
// (swap_in), the counterpart the fault resolver calls before BindFrame.
func (p *Page) SwapIn(mem []byte) error {
	p.mu.Lock()
	slot := p.swapSlot
	p.mu.Unlock()
	return p.swapDev.In(mem, slot)
}

// Unmap implements frame.Resident: clear the simulated PTE entirely.
func (p *Page) Unmap() {
	p.mu.Lock()
	p.hasFrame = false
	p.mem = nil
	p.accessed = false
	p.dirty = false
	p.mu.Unlock()
}

// DiscardSwap frees this page's swap slot without reading it back, used
// when a swapped-out page is torn down rather than faulted in (process
// exit's "freeing every frame/swap slot").
func (p *Page) DiscardSwap() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.swapped {
		p.swapDev.Free(p.swapSlot)
		p.swapped = false
	}
}
