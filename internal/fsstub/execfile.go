package fsstub

import (
	"os"
	"sync"

	"github.com/NotMo05/PintOS/internal/kerrors"
)

// ExecFile wraps the running process's own executable, enforcing
// file_deny_write/file_allow_write: writes are rejected for as long as
// the executable is loaded, and restored on exit's file_close.
type ExecFile struct {
	mu      sync.Mutex
	f       *os.File
	denied  bool
}

// NewExecFile wraps f with deny-write already in effect, matching
// load()'s file_deny_write call immediately after opening the executable.
func NewExecFile(f *os.File) *ExecFile {
	return &ExecFile{f: f, denied: true}
}

func (e *ExecFile) ReadAt(p []byte, off int64) (int, error) {
	return e.f.ReadAt(p, off)
}

func (e *ExecFile) WriteAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	denied := e.denied
	e.mu.Unlock()
	if denied {
		return 0, kerrors.ErrBadFD
	}
	return e.f.WriteAt(p, off)
}

// AllowWrite re-enables writes, called as exit() closes the executable.
func (e *ExecFile) AllowWrite() {
	e.mu.Lock()
	e.denied = false
	e.mu.Unlock()
}

func (e *ExecFile) Close() error {
	return e.f.Close()
}
