package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file created inside an identity directory.
const FileName = "LOCK"

// LockHeldError is returned when another live session holds the identity lock.
type LockHeldError struct {
	PID      int
	Identity string
	Path     string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("identity %q already has a live chat session (PID %d, %s)", e.Identity, e.PID, e.Path)
}

// Lock represents an acquired identity lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive lock in dir on behalf of identity, so only one
// live chat session per identity runs on this machine at a time.
// Returns LockHeldError if another session already holds it.
func Acquire(dir, identity string) (*Lock, error) {
	lockPath := filepath.Join(dir, FileName)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create identity dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		data, _ := os.ReadFile(lockPath)
		_ = f.Close()
		held := parse(string(data))
		held.Path = lockPath
		if held.Identity == "" {
			held.Identity = identity
		}
		return nil, held
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("pid=%d\nidentity=%s\ntime=%s\n", os.Getpid(), identity, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release releases the lock. Safe to call on nil receiver and more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// The file stays on disk: unlinking it while locked would let a waiter
	// lock the orphaned inode while a newcomer locks a fresh file.
	_ = l.file.Truncate(0)
	err := l.file.Close()
	l.file = nil
	return err
}

func parse(content string) *LockHeldError {
	held := &LockHeldError{}
	for _, line := range strings.Split(content, "\n") {
		if after, ok := strings.CutPrefix(line, "pid="); ok {
			held.PID, _ = strconv.Atoi(after)
		}
		if after, ok := strings.CutPrefix(line, "identity="); ok {
			held.Identity = after
		}
	}
	return held
}
