package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// managePIDFile writes the server PID to path, optionally holding an
// exclusive flock so a second server on the same path refuses to start.
// The returned cleanup removes the file.
func managePIDFile(path string, lock bool) (func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	switch {
	case err == nil:
	case !os.IsExist(err):
		return nil, fmt.Errorf("cannot create PID file: %w", err)
	default:
		if lock {
			if err := refuseIfAlive(path); err != nil {
				return nil, err
			}
		}
		if file, err = os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644); err != nil {
			return nil, fmt.Errorf("cannot open PID file: %w", err)
		}
	}

	fail := func(err error) (func(), error) {
		file.Close()
		os.Remove(path)
		return nil, err
	}

	if lock {
		if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			file.Close()
			if errors.Is(err, syscall.EWOULDBLOCK) {
				return nil, fmt.Errorf("cannot acquire lock on %s: another server is running", path)
			}
			return nil, fmt.Errorf("lock failed: %w", err)
		}
	}

	if _, err := file.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		return fail(fmt.Errorf("cannot write PID: %w", err))
	}
	if err := file.Sync(); err != nil {
		return fail(fmt.Errorf("cannot sync PID file: %w", err))
	}

	return func() {
		if lock {
			syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		}
		file.Close()
		os.Remove(path)
	}, nil
}

// refuseIfAlive fails when the PID recorded in path belongs to a running
// process. A file naming a dead process is stale and may be reused.
func refuseIfAlive(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read existing PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// Unparseable content is treated as stale
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil || errors.Is(err, syscall.EPERM) {
		return fmt.Errorf("PID file %s names running process %d", path, pid)
	}
	return nil
}
