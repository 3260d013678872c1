package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/tOgg1/looper/internal/models"
)

// pidLock is an advisory single-writer lock: a file created with O_EXCL
// holding the owning pid. A lock whose pid is no longer alive is stale and
// gets replaced.
type pidLock struct {
	path string
	held bool
}

func newPidLock(path string) *pidLock {
	return &pidLock{path: path}
}

func (l *pidLock) Acquire() error {
	if l.held {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(file, "%d\n", os.Getpid())
			cerr := file.Close()
			if werr != nil || cerr != nil {
				os.Remove(l.path)
				return fmt.Errorf("write lock file %s: %v", l.path, werr)
			}
			l.held = true
			return nil
		}
		if !os.IsExist(err) {
			return err
		}

		pid, perr := l.ownerPid()
		if perr == nil && pidAlive(pid) {
			return fmt.Errorf("%w: pid %d holds %s", models.ErrSessionLocked, pid, l.path)
		}
		// Stale or unreadable lock: remove and retry once.
		if rerr := os.Remove(l.path); rerr != nil && !os.IsNotExist(rerr) {
			return rerr
		}
	}

	return fmt.Errorf("%w: could not acquire %s", models.ErrSessionLocked, l.path)
}

func (l *pidLock) Release() {
	if !l.held {
		return
	}
	_ = os.Remove(l.path)
	l.held = false
}

func (l *pidLock) ownerPid() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
