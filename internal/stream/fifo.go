package stream

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// mkfifoAllocator creates a named pipe under dir for each stream and
// removes it on cleanup.
type mkfifoAllocator struct {
	dir string
}

// NewFIFOAllocator returns a FIFOAllocator rooted at dir (must exist).
func NewFIFOAllocator(dir string) FIFOAllocator {
	return &mkfifoAllocator{dir: dir}
}

func (a *mkfifoAllocator) Allocate(streamName string) (string, func() error, error) {
	path := filepath.Join(a.dir, streamName+".fifo")
	os.Remove(path)
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return "", nil, fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return path, func() error { return os.Remove(path) }, nil
}
