// Package elfload parses and validates the 32-bit little-endian ELF
// headers the loader consumes (spec.md §4.8 step 3, §6), grounded on
// original_source/src/userprog/process.c's Elf32_Ehdr/Elf32_Phdr structs,
// load()'s header checks, and validate_segment. It does no file I/O of
// its own beyond reading the header bytes handed to it; registering the
// resulting segments as lazy FILE-BACKED SPT entries is internal/process's
// job, matching spec.md's "register ... no disk I/O yet" loader step.
package elfload

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/NotMo05/PintOS/internal/kerrors"
	"github.com/NotMo05/PintOS/internal/vm/fault"
	"github.com/NotMo05/PintOS/internal/vm/frame"
)

// PageSize mirrors PGSIZE for the page-offset/rounding arithmetic below.
const PageSize = frame.PageSize

var elfMagic = []byte{0x7F, 'E', 'L', 'F', 1, 1, 1}

// Segment type values (p_type), only the ones load() distinguishes.
const (
	PTNull    = 0
	PTLoad    = 1
	PTDynamic = 2
	PTInterp  = 3
	PTNote    = 4
	PTShlib   = 5
	PTPhdr    = 6
	PTStack   = 0x6474e551
)

// Segment flag bits (p_flags).
const (
	PFExec  = 1
	PFWrite = 2
	PFRead  = 4
)

const (
	expectedType      = 2 // ET_EXEC
	expectedMachine   = 3 // EM_386
	expectedVersion   = 1
	maxProgramHeaders = 1024
)

// Ehdr is Elf32_Ehdr, field for field.
type Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// Phdr is Elf32_Phdr, field for field.
type Phdr struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

// ReadEhdr reads and validates the ELF header from the start of r,
// reproducing load()'s magic/type/machine/version/phentsize/phnum checks.
func ReadEhdr(r io.ReaderAt) (*Ehdr, error) {
	buf := make([]byte, 52)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, kerrors.ErrBadELF
	}
	var hdr Ehdr
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &hdr); err != nil {
		return nil, kerrors.ErrBadELF
	}
	if !bytes.Equal(hdr.Ident[:7], elfMagic) ||
		hdr.Type != expectedType ||
		hdr.Machine != expectedMachine ||
		hdr.Version != expectedVersion ||
		hdr.Phentsize != 32 ||
		hdr.Phnum > maxProgramHeaders {
		return nil, kerrors.ErrBadELF
	}
	return &hdr, nil
}

// ReadPhdr reads one program header at the given file offset.
func ReadPhdr(r io.ReaderAt, offset int64) (*Phdr, error) {
	buf := make([]byte, 32)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return nil, kerrors.ErrBadELF
	}
	var ph Phdr
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ph); err != nil {
		return nil, kerrors.ErrBadELF
	}
	return &ph, nil
}

// ValidateSegment reproduces validate_segment: offset/vaddr page-offset
// agreement, offset within the file, memsz >= filesz and nonzero, the
// region fits entirely in user space without wraparound, and page 0 is
// never mapped.
func ValidateSegment(phdr *Phdr, fileLen int64) bool {
	const pageMask = PageSize - 1

	if phdr.Offset&pageMask != phdr.Vaddr&pageMask {
		return false
	}
	if int64(phdr.Offset) > fileLen {
		return false
	}
	if phdr.Memsz < phdr.Filesz {
		return false
	}
	if phdr.Memsz == 0 {
		return false
	}
	if !fault.IsUserVaddr(uintptr(phdr.Vaddr)) {
		return false
	}
	end := phdr.Vaddr + phdr.Memsz
	if !fault.IsUserVaddr(uintptr(end)) {
		return false
	}
	if end < phdr.Vaddr {
		return false
	}
	if phdr.Vaddr < PageSize {
		return false
	}
	return true
}

// LoadableSegment is one validated PT_LOAD segment, pre-split into the
// page-aligned file offset / memory address / read-zero split load()
// computes before calling load_segment.
type LoadableSegment struct {
	FilePage  uint32
	MemPage   uint32
	ReadBytes uint32
	ZeroBytes uint32
	Writable  bool
}

func roundUp(x, align uint32) uint32 {
	return (x + align - 1) &^ (align - 1)
}

// ComputeSegments walks every program header, validating and converting
// each PT_LOAD entry into a LoadableSegment; PT_DYNAMIC/PT_INTERP/PT_SHLIB
// are unsupported (load() treats them as fatal), and other types are
// ignored, matching load()'s switch exactly.
func ComputeSegments(r io.ReaderAt, hdr *Ehdr, fileLen int64) ([]LoadableSegment, error) {
	var segs []LoadableSegment
	offset := int64(hdr.Phoff)
	for i := 0; i < int(hdr.Phnum); i++ {
		if offset < 0 || offset > fileLen {
			return nil, kerrors.ErrBadELF
		}
		phdr, err := ReadPhdr(r, offset)
		if err != nil {
			return nil, err
		}
		offset += 32

		switch phdr.Type {
		case PTNull, PTNote, PTPhdr, PTStack:
			// ignored
		case PTDynamic, PTInterp, PTShlib:
			return nil, kerrors.ErrUnsupportedSegment
		case PTLoad:
			if !ValidateSegment(phdr, fileLen) {
				return nil, kerrors.ErrBadELF
			}
			writable := phdr.Flags&PFWrite != 0
			filePage := phdr.Offset &^ (PageSize - 1)
			memPage := phdr.Vaddr &^ (PageSize - 1)
			pageOffset := phdr.Vaddr & (PageSize - 1)

			var readBytes, zeroBytes uint32
			if phdr.Filesz > 0 {
				readBytes = pageOffset + phdr.Filesz
				zeroBytes = roundUp(pageOffset+phdr.Memsz, PageSize) - readBytes
			} else {
				readBytes = 0
				zeroBytes = roundUp(pageOffset+phdr.Memsz, PageSize)
			}
			segs = append(segs, LoadableSegment{
				FilePage:  filePage,
				MemPage:   memPage,
				ReadBytes: readBytes,
				ZeroBytes: zeroBytes,
				Writable:  writable,
			})
		}
	}
	return segs, nil
}
