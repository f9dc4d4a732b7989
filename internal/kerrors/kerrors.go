// Package kerrors holds the sentinel errors shared across the kernel's
// internal packages. None of these ever cross the syscall boundary: per the
// error-handling design, user-visible failures collapse to a -1/false
// return or an exit(-1); these sentinels only let one internal component
// tell another why something failed.
package kerrors

import "errors"

var (
	// ErrNoFrames indicates the user frame pool is exhausted and no frame
	// could be evicted to satisfy the request (should not happen: the
	// second-chance scan always finds a victim given at least one frame).
	ErrNoFrames = errors.New("kerrors: no frame available")

	// ErrNoSwapSlots indicates the swap bitmap has no free slots left.
	ErrNoSwapSlots = errors.New("kerrors: swap device exhausted")

	// ErrBadSwapSlot indicates swap_in was asked to read a slot index that
	// is not currently marked in-use.
	ErrBadSwapSlot = errors.New("kerrors: swap slot not in use")

	// ErrPageAlreadyMapped indicates spt insert found an existing entry at
	// the same user virtual page.
	ErrPageAlreadyMapped = errors.New("kerrors: page already present in SPT")

	// ErrBadELF indicates the executable failed header validation.
	ErrBadELF = errors.New("kerrors: invalid ELF header")

	// ErrUnsupportedSegment indicates a PT_DYNAMIC/INTERP/SHLIB program
	// header was found; these are fatal to the loader, never silently
	// skipped.
	ErrUnsupportedSegment = errors.New("kerrors: unsupported program header")

	// ErrLoadFailed is the generic loader failure wrapped around a more
	// specific cause when start_process reports load_success=false.
	ErrLoadFailed = errors.New("kerrors: executable load failed")

	// ErrBadPointer indicates a user pointer failed validation (null,
	// kernel-space, or unmapped).
	ErrBadPointer = errors.New("kerrors: invalid user pointer")

	// ErrBadFD indicates an fd argument did not resolve to an open file.
	ErrBadFD = errors.New("kerrors: invalid file descriptor")

	// ErrNoChild indicates wait() found no matching, not-yet-waited child.
	ErrNoChild = errors.New("kerrors: no such child")

	// ErrMmapRejected covers every mmap precondition failure enumerated in
	// the mmap component (zero-length file, unaligned address, fd 0/1,
	// range overlaps an existing mapping or stack/kernel space).
	ErrMmapRejected = errors.New("kerrors: mmap preconditions not met")
)
