// Package fsstub stands in for the out-of-scope on-disk file system
// (spec.md §1 "OUT OF SCOPE ... the on-disk file system"): a per-process
// fd table over ordinary *os.File handles rooted at one directory, plus
// the deny-write wrapper the loader applies to a running executable.
package fsstub

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/NotMo05/PintOS/internal/kerrors"
)

// Disk is the filesystem contract the spec fixes as an external
// collaborator: create/remove/open by name. It is backed by a real
// directory on the host so tests can exercise genuine file I/O.
type Disk struct {
	root string
}

// NewDisk roots a Disk at dir, which must already exist.
func NewDisk(dir string) *Disk {
	return &Disk{root: filepath.Clean(dir)}
}

// resolve maps a user-supplied filename to a path inside root, rejecting
// any attempt to escape it (no directory structure is otherwise exposed
// to user processes, so this is the only containment this stub needs).
func (d *Disk) resolve(name string) (string, error) {
	full := filepath.Join(d.root, name)
	if !strings.HasPrefix(full, d.root+string(filepath.Separator)) && full != d.root {
		return "", kerrors.ErrBadPointer
	}
	return full, nil
}

// Create makes a new, empty-or-sized file (filesys_create).
func (d *Disk) Create(name string, initialSize int) error {
	path, err := d.resolve(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(int64(initialSize))
}

// Remove deletes a file (filesys_remove).
func (d *Disk) Remove(name string) error {
	path, err := d.resolve(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// Open opens an existing file for reading and writing (filesys_open).
func (d *Disk) Open(name string) (*os.File, error) {
	path, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR, 0)
}
