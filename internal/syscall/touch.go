package syscall

import (
	"github.com/NotMo05/PintOS/internal/kerrors"
	"github.com/NotMo05/PintOS/internal/process"
	"github.com/NotMo05/PintOS/internal/vm/fault"
	"github.com/NotMo05/PintOS/internal/vm/frame"
	"github.com/NotMo05/PintOS/internal/vm/page"
)

// touchPage resolves upage (already page-rounded) to a resident frame,
// faulting it in through the real VM path if it is not already
// resident. fault.Resolve's resolveExisting does not itself check
// residency before allocating a frame, so this guards on IsResident
// first -- exactly the same "don't double-allocate" care get_user/
// put_user get for free from real hardware's page-present bit.
func touchPage(p *process.Process, k *process.Kernel, upage uintptr, write bool) (*page.Page, error) {
	if !fault.IsUserVaddr(upage) {
		p.Exit(-1)
		return nil, kerrors.ErrBadPointer
	}
	if pg, ok := p.SPT.Lookup(upage); ok && pg.IsResident() {
		pg.MarkAccessed(write)
		return pg, nil
	}
	if err := fault.Resolve(p.SPT, k.Frames, k.Swap, upage, p.Esp, write, true, false, k.FSLock); err != nil {
		p.Exit(-1)
		return nil, err
	}
	pg, ok := p.SPT.Lookup(upage)
	if !ok {
		p.Exit(-1)
		return nil, kerrors.ErrBadPointer
	}
	pg.MarkAccessed(write)
	return pg, nil
}

func pageRoundDown(a uintptr) uintptr {
	return a &^ (frame.PageSize - 1)
}

// validUserBuffer mirrors valid_user_buffer: every page-aligned stride
// covering [uaddr, uaddr+size) plus the final byte must lie in user
// space. This only rejects addresses that could never be valid; it does
// not fault anything in, that happens in touchUserBuffer once this
// passes.
func validUserBuffer(uaddr uintptr, size int) bool {
	if uaddr == 0 || size < 0 {
		return false
	}
	if size == 0 {
		return fault.IsUserVaddr(uaddr)
	}
	last := uaddr + uintptr(size) - 1
	if last < uaddr {
		return false
	}
	for a := pageRoundDown(uaddr); a <= pageRoundDown(last); a += frame.PageSize {
		if !fault.IsUserVaddr(a) {
			return false
		}
	}
	return true
}

// touchedRange is one page's share of a user buffer: bytes [from, to)
// within that page's own backing slice.
type touchedRange struct {
	pg   *page.Page
	from int
	to   int
}

// touchUserBuffer validates and faults resident every page covering
// [uaddr, uaddr+size), returning the touched pages in address order
// along with the byte range within each page that the buffer covers.
func touchUserBuffer(p *process.Process, k *process.Kernel, uaddr uintptr, size int, write bool) ([]touchedRange, error) {
	if !validUserBuffer(uaddr, size) {
		p.Exit(-1)
		return nil, kerrors.ErrBadPointer
	}
	if size == 0 {
		return nil, nil
	}

	var ranges []touchedRange
	remaining := size
	addr := uaddr
	for remaining > 0 {
		base := pageRoundDown(addr)
		pg, err := touchPage(p, k, base, write)
		if err != nil {
			return nil, err
		}
		off := int(addr - base)
		n := frame.PageSize - off
		if n > remaining {
			n = remaining
		}
		ranges = append(ranges, touchedRange{pg: pg, from: off, to: off + n})
		remaining -= n
		addr += uintptr(n)
	}
	return ranges, nil
}

// copyFromUser reads size bytes starting at uaddr out of the process's
// own pages -- the read-the-argument half of a write() syscall's
// user-memory access.
func copyFromUser(p *process.Process, k *process.Kernel, uaddr uintptr, size int) ([]byte, error) {
	ranges, err := touchUserBuffer(p, k, uaddr, size, false)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, size)
	for _, r := range ranges {
		out = append(out, r.pg.Bytes()[r.from:r.to]...)
	}
	return out, nil
}

// copyToUser writes data into the process's own pages starting at
// uaddr -- the fill-the-buffer half of a read() syscall.
func copyToUser(p *process.Process, k *process.Kernel, uaddr uintptr, data []byte) error {
	ranges, err := touchUserBuffer(p, k, uaddr, len(data), true)
	if err != nil {
		return err
	}
	pos := 0
	for _, r := range ranges {
		n := copy(r.pg.Bytes()[r.from:r.to], data[pos:])
		pos += n
	}
	return nil
}
