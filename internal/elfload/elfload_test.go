package elfload

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildELF(t *testing.T, phdrs []Phdr) []byte {
	t.Helper()
	const ehdrSize = 52
	const phdrSize = 32

	hdr := Ehdr{
		Type:      expectedType,
		Machine:   expectedMachine,
		Version:   expectedVersion,
		Entry:     0x08048000,
		Phoff:     ehdrSize,
		Phentsize: 32,
		Phnum:     uint16(len(phdrs)),
	}
	copy(hdr.Ident[:7], elfMagic)

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		t.Fatalf("encode Ehdr: %v", err)
	}
	for _, p := range phdrs {
		if err := binary.Write(buf, binary.LittleEndian, &p); err != nil {
			t.Fatalf("encode Phdr: %v", err)
		}
	}
	// pad so ValidateSegment's file-length checks have something to
	// compare against for a segment whose file offset is within bounds.
	buf.Write(make([]byte, PageSize))
	return buf.Bytes()
}

func TestReadEhdrAcceptsWellFormedHeader(t *testing.T) {
	data := buildELF(t, nil)
	hdr, err := ReadEhdr(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadEhdr: %v", err)
	}
	if hdr.Machine != expectedMachine || hdr.Type != expectedType {
		t.Fatalf("unexpected header fields: %+v", hdr)
	}
}

func TestReadEhdrRejectsBadMagic(t *testing.T) {
	data := buildELF(t, nil)
	data[0] = 0x00
	if _, err := ReadEhdr(bytes.NewReader(data)); err == nil {
		t.Fatalf("expected error for corrupted magic")
	}
}

func TestComputeSegmentsSplitsReadAndZeroBytes(t *testing.T) {
	phdrs := []Phdr{
		{
			Type:   PTLoad,
			Offset: 0,
			Vaddr:  0x08049000, // page-aligned, above page 0
			Filesz: 100,
			Memsz:  200,
			Flags:  PFRead,
		},
	}
	data := buildELF(t, phdrs)
	r := bytes.NewReader(data)
	hdr, err := ReadEhdr(r)
	if err != nil {
		t.Fatalf("ReadEhdr: %v", err)
	}
	segs, err := ComputeSegments(r, hdr, int64(len(data)))
	if err != nil {
		t.Fatalf("ComputeSegments: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	s := segs[0]
	if s.ReadBytes != 100 {
		t.Fatalf("ReadBytes = %d, want 100", s.ReadBytes)
	}
	if s.ZeroBytes != uint32(PageSize)-100 {
		t.Fatalf("ZeroBytes = %d, want %d", s.ZeroBytes, uint32(PageSize)-100)
	}
	if s.Writable {
		t.Fatalf("segment marked writable, flags had no PF_W")
	}
}

func TestComputeSegmentsRejectsNullPageMapping(t *testing.T) {
	phdrs := []Phdr{
		{Type: PTLoad, Offset: 0, Vaddr: 0, Filesz: 10, Memsz: 10, Flags: PFRead},
	}
	data := buildELF(t, phdrs)
	r := bytes.NewReader(data)
	hdr, _ := ReadEhdr(r)
	if _, err := ComputeSegments(r, hdr, int64(len(data))); err == nil {
		t.Fatalf("expected rejection of a segment mapping page 0")
	}
}

func TestComputeSegmentsRejectsDynamicSegment(t *testing.T) {
	phdrs := []Phdr{{Type: PTDynamic, Offset: 52, Vaddr: 0x08049000, Filesz: 10, Memsz: 10}}
	data := buildELF(t, phdrs)
	r := bytes.NewReader(data)
	hdr, _ := ReadEhdr(r)
	if _, err := ComputeSegments(r, hdr, int64(len(data))); err == nil {
		t.Fatalf("expected PT_DYNAMIC to be rejected as unsupported")
	}
}
