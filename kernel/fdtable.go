package kernel

import (
	"os"
	"sync"
)

// fileDescriptor is an open file descriptor entry.
type fileDescriptor struct {
	host   *os.File
	path   string
	isOpen bool
}

// FDTable manages host file descriptors backing the guest's read/write
// syscalls. FDs 0-2 (stdin/stdout/stderr) are preseeded and never
// actually closed on the host side.
type FDTable struct {
	mu     sync.Mutex
	fds    map[uint64]*fileDescriptor
	nextFD uint64
}

// NewFDTable creates a file descriptor table with stdio preinitialized.
func NewFDTable() *FDTable {
	t := &FDTable{
		fds:    make(map[uint64]*fileDescriptor),
		nextFD: 3,
	}
	t.fds[0] = &fileDescriptor{path: "stdin", isOpen: true}
	t.fds[1] = &fileDescriptor{path: "stdout", isOpen: true}
	t.fds[2] = &fileDescriptor{path: "stderr", isOpen: true}
	return t
}

// Get returns the entry for fd if it is open.
func (t *FDTable) Get(fd uint64) (*fileDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.fds[fd]
	if !ok || !entry.isOpen {
		return nil, false
	}
	return entry, true
}

// Open registers a new host-backed file descriptor.
func (t *FDTable) Open(path string, flags int, mode os.FileMode) (uint64, error) {
	host, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.nextFD
	t.nextFD++
	t.fds[fd] = &fileDescriptor{host: host, path: path, isOpen: true}
	return fd, nil
}

// Close closes fd. Stdio FDs are marked closed but never touch the host.
func (t *FDTable) Close(fd uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.fds[fd]
	if !ok || !entry.isOpen {
		return os.ErrInvalid
	}
	entry.isOpen = false
	if fd > 2 && entry.host != nil {
		err := entry.host.Close()
		entry.host = nil
		return err
	}
	return nil
}
