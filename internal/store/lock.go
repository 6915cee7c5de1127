package store

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is an advisory flock held on a sidecar file.
type fileLock struct {
	f *os.File
}

// acquireLock takes the lock without blocking.
func acquireLock(path string, shared bool) (*fileLock, error) {
	flag := os.O_RDWR | os.O_CREATE
	if shared {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			// Read-only opens never create state; an absent lock file
			// means nobody holds it.
			return &fileLock{}, nil
		}
		flag = os.O_RDONLY
	}

	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	how := unix.LOCK_EX
	if shared {
		how = unix.LOCK_SH
	}
	if err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("store is locked by another guest-ctl process (%s)", path)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	unlockErr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return errors.Join(unlockErr, f.Close())
}
