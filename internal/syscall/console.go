package syscall

import "io"

// Console wraps fd 0 (keyboard) and fd 1 (console) the way syscall.c's
// handle_read/handle_write special-case those two fds before ever
// reaching a real file. In the hosted build In/Out are os.Stdin/
// os.Stdout; tests wire in-memory buffers instead.
type Console struct {
	In  io.Reader
	Out io.Writer
}

// NewConsole wraps in/out as the console's keyboard source and display
// sink.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{In: in, Out: out}
}

// ReadInto fills buf from the keyboard source one byte at a time,
// matching input_getc()'s per-byte loop inside handle_read's fd==0
// branch, and returns the number of bytes actually read before EOF.
func (c *Console) ReadInto(buf []byte) int {
	for i := range buf {
		var b [1]byte
		n, err := c.In.Read(b[:])
		if n == 0 || err != nil {
			return i
		}
		buf[i] = b[0]
	}
	return len(buf)
}

// WriteAll writes buf to the console in a single call, matching
// putbuf's single write of the whole buffer. Returns the byte count
// written, or -1 on a short/failed write.
func (c *Console) WriteAll(buf []byte) int {
	n, err := c.Out.Write(buf)
	if err != nil {
		return -1
	}
	return n
}
