// Package infra implements infrastructure concerns: the encrypted store,
// OS account calls, session termination and process handling.
package infra

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct {
	lookupUID func(username string) (int32, error)
}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{lookupUID: uidOf}
}

func uidOf(username string) (int32, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return 0, err
	}
	uid, err := strconv.ParseInt(u.Uid, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("uid %q of %s: %w", u.Uid, username, err)
	}
	return int32(uid), nil
}

// FindByUser returns the PIDs of processes whose real uid belongs to
// username. Root-owned processes and the daemon itself are never returned.
func (pm *ProcessManagerImpl) FindByUser(username string) ([]int, error) {
	uid, err := pm.lookupUID(username)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", username, err)
	}
	if uid == 0 {
		return nil, fmt.Errorf("refusing to collect processes of %s: uid 0", username)
	}

	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	self := int32(os.Getpid())
	var found []int
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		uids, err := p.Uids()
		if err != nil || len(uids) == 0 {
			continue // exited or unreadable
		}
		if uids[0] == uid {
			found = append(found, int(p.Pid))
		}
	}
	return found, nil
}

// Kill sends SIGKILL to pid.
func (pm *ProcessManagerImpl) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.SendSignal(syscall.SIGKILL)
}

// IsRunning reports whether pid still exists.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
