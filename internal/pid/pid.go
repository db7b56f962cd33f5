package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/nithinbasa/SmartGrid/internal/errors"
)

const pidFile = "smartgrid.pid"

// Path returns the pid file location.
func Path() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write records the current process ID, failing when another live
// instance already holds the file. A stale file is replaced.
func Write() error {
	return writeAt(Path(), os.Getpid())
}

// Remove removes the PID file.
func Remove() error {
	return removeAt(Path())
}

func writeAt(path string, pid int) error {
	errFactory := errors.New()

	if bytes, err := os.ReadFile(path); err == nil {
		if existing, err := strconv.Atoi(strings.TrimSpace(string(bytes))); err == nil && existing != pid && alive(existing) {
			return errFactory.WithData(errors.ErrAlreadyRunning, existing)
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func removeAt(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}
	return nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
