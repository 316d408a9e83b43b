package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PidFileName is the file a running server records its process ID in.
const PidFileName = "spellbook.pid"

// PidPath returns the path of the server's PID file.
func (d *Dir) PidPath() string {
	return filepath.Join(d.path, PidFileName)
}

// WritePidFile records the current process ID.
func (d *Dir) WritePidFile() error {
	return os.WriteFile(d.PidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// RemovePidFile removes the PID file.
func (d *Dir) RemovePidFile() {
	_ = os.Remove(d.PidPath())
}

// ReadPidFile returns the process ID recorded in the PID file.
func (d *Dir) ReadPidFile() (int, error) {
	data, err := os.ReadFile(d.PidPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file contents: %w", err)
	}
	return pid, nil
}

// RunningPid returns the PID of a live server using this home, or 0 when the
// PID file is missing or stale.
func (d *Dir) RunningPid() int {
	pid, err := d.ReadPidFile()
	if err != nil || pid == os.Getpid() || !IsProcessAlive(pid) {
		return 0
	}
	return pid
}

// IsProcessAlive checks whether a process with the given PID is running.
func IsProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks existence without sending a real signal.
	return proc.Signal(syscall.Signal(0)) == nil
}
