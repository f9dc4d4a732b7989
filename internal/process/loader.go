package process

import (
	"github.com/NotMo05/PintOS/internal/elfload"
	"github.com/NotMo05/PintOS/internal/fsstub"
	"github.com/NotMo05/PintOS/internal/vm/fault"
	"github.com/NotMo05/PintOS/internal/vm/frame"
	"github.com/NotMo05/PintOS/internal/vm/page"
)

// loadSegments reproduces load()'s PT_LOAD loop followed by
// load_segment's per-page split: each LoadableSegment (already validated
// and page-offset-aligned by elfload.ComputeSegments) is carved into
// PageSize-sized FILE-BACKED SPT entries, registered lazily with no file
// I/O performed here (spec.md §4.8 step 3).
func loadSegments(cp *Process, exe *fsstub.ExecFile, fileLen int64) error {
	hdr, err := elfload.ReadEhdr(exe)
	if err != nil {
		return err
	}
	segs, err := elfload.ComputeSegments(exe, hdr, fileLen)
	if err != nil {
		return err
	}

	for _, seg := range segs {
		fileOff := int64(seg.FilePage)
		upage := uintptr(seg.MemPage)
		readBytes := int(seg.ReadBytes)
		zeroBytes := int(seg.ZeroBytes)

		for readBytes > 0 || zeroBytes > 0 {
			pageRead := readBytes
			if pageRead > elfload.PageSize {
				pageRead = elfload.PageSize
			}
			pageZero := elfload.PageSize - pageRead

			pg := page.NewFilePage(upage, seg.Writable, exe, fileOff, pageRead, pageZero, cp.kernel.Swap)
			cp.SPT.Insert(pg)

			fileOff += int64(pageRead)
			readBytes -= pageRead
			zeroBytes -= pageZero
			upage += elfload.PageSize
		}
	}
	return nil
}

// setupStack reproduces setup_stack: unlike load_segment, the stack
// page's frame is allocated eagerly, right here, rather than left to the
// first page fault.
func setupStack(cp *Process) error {
	upage := fault.PhysBase - frame.PageSize
	pg := page.NewStackPage(upage, cp.kernel.Swap)

	idx, mem, err := cp.kernel.Frames.Alloc(pg, true)
	if err != nil {
		return err
	}
	pg.BindFrame(idx, mem)
	cp.SPT.Insert(pg)
	cp.Esp = fault.PhysBase
	return nil
}
