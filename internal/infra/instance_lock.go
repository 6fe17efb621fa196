package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const (
	lockFileName    = "daemon.lock"
	runtimeFileName = "daemon.json"
)

// ErrAlreadyRunning is returned when another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("another daemon instance is running")

// RuntimeInfo describes the running daemon for the status command.
type RuntimeInfo struct {
	PID        int    `json:"pid"`
	StartedAt  int64  `json:"started_at"`
	SocketPath string `json:"socket_path"`
	Version    string `json:"version"`
	Mode       string `json:"mode"`
}

// InstanceLock keeps a second daemon from fighting the first over account passwords.
type InstanceLock struct {
	lockFile    *os.File
	runtimePath string
}

// AcquireInstanceLock takes an exclusive, non-blocking flock in dataDir and
// records info next to it.
func AcquireInstanceLock(dataDir string, info RuntimeInfo) (*InstanceLock, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	lockFile, err := os.OpenFile(filepath.Join(dataDir, lockFileName), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lockFile.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l := &InstanceLock{lockFile: lockFile, runtimePath: filepath.Join(dataDir, runtimeFileName)}
	if info.StartedAt == 0 {
		info.StartedAt = time.Now().Unix()
	}
	if err := l.atomicWrite(info); err != nil {
		l.Release()
		return nil, err
	}
	return l, nil
}

// Release removes the runtime record and drops the lock.
func (l *InstanceLock) Release() {
	os.Remove(l.runtimePath)
	_ = syscall.Flock(int(l.lockFile.Fd()), syscall.LOCK_UN)
	l.lockFile.Close()
}

// ReadRuntimeInfo returns the record of the running daemon, or nil if none.
func ReadRuntimeInfo(dataDir string) (*RuntimeInfo, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, runtimeFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var info RuntimeInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// atomicWrite writes the runtime record atomically (write + rename).
func (l *InstanceLock) atomicWrite(info RuntimeInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	tmpPath := fmt.Sprintf("%s.%d.tmp", l.runtimePath, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, l.runtimePath); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}
