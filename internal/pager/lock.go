package pager

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Only one process may have the file open for writing
func lockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return fmt.Errorf("lockFile: %w (%s)", ErrLocked, f.Name())
	}
	return err
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

func (p *Pager) syncFile(f *os.File) error {
	if !p.sync {
		return nil
	}
	return unix.Fsync(int(f.Fd()))
}
