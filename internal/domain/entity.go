// Package domain contains the entities shared by the regulation service,
// the enforcer and the infrastructure, plus the interfaces they talk through.
// It depends only on the pure value packages clock and policy.
package domain

import (
	"fmt"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
)

// AccountID is the numeric OS user id of a managed account.
type AccountID uint32

func (id AccountID) String() string {
	return fmt.Sprintf("%d", uint32(id))
}

// ApplicationStatus is what the daemon last did to the OS account.
type ApplicationStatus uint8

const (
	// StatusUnknown is the state on daemon start and right after an account becomes managed.
	StatusUnknown ApplicationStatus = iota
	// StatusAllowed means the real password is in place.
	StatusAllowed
	// StatusLoginBlocked means the blocked-state password is in place.
	StatusLoginBlocked
	// StatusLoginBlockedAndSessionTerminated means login is blocked and the user's sessions were ended.
	StatusLoginBlockedAndSessionTerminated
)

func (s ApplicationStatus) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusAllowed:
		return "allowed"
	case StatusLoginBlocked:
		return "login-blocked"
	case StatusLoginBlockedAndSessionTerminated:
		return "login-blocked-and-session-terminated"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ParseApplicationStatus is the inverse of ApplicationStatus.String.
func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	for st := StatusUnknown; st <= StatusLoginBlockedAndSessionTerminated; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown application status %q", s)
}

const (
	// MinCheckInterval and MaxCheckInterval bound how often an account is re-evaluated.
	MinCheckInterval = clock.Second
	MaxCheckInterval = clock.Day
	// DefaultCheckInterval is used when an account is managed without an explicit interval.
	DefaultCheckInterval = 5 * clock.Minute
)

// ManagedAccount is an OS account under the daemon's control.
type ManagedAccount struct {
	UserID   AccountID
	Username string
	// Password is the account's real password, restored whenever login is allowed.
	Password      string
	Regulation    *policy.Regulation
	Status        ApplicationStatus
	Enabled       bool
	CheckInterval clock.Duration

	// Generation identifies the current enforcement task chain. It is bumped
	// whenever a new chain starts; tasks of older chains stop rescheduling.
	// Runtime only, never persisted.
	Generation uint64
}

// DesiredAction is what the enforcer should drive the account toward at now.
// Accounts with regulation application disabled are always allowed.
func (a *ManagedAccount) DesiredAction(now clock.DateTime) policy.Action {
	if !a.Enabled {
		return policy.ActionAllow
	}
	return a.Regulation.CalculateAction(now)
}

// AccountSnapshot is a copy of a managed account without its password,
// safe to hand outside the account lock.
type AccountSnapshot struct {
	UserID        AccountID
	Username      string
	Regulation    *policy.Regulation
	Status        ApplicationStatus
	Enabled       bool
	CheckInterval clock.Duration
	Action        policy.Action
}

// Snapshot copies the account as seen at now.
func (a *ManagedAccount) Snapshot(now clock.DateTime) AccountSnapshot {
	return AccountSnapshot{
		UserID:        a.UserID,
		Username:      a.Username,
		Regulation:    a.Regulation.Clone(),
		Status:        a.Status,
		Enabled:       a.Enabled,
		CheckInterval: a.CheckInterval,
		Action:        a.DesiredAction(now),
	}
}

// AccountInfo is what the OS account database knows about a user.
type AccountInfo struct {
	UserID   AccountID
	Username string
	HomeDir  string
}

// TaskKind names one step of the enforcement state machine.
type TaskKind uint8

const (
	// TaskCheck evaluates the regulation and picks the next step.
	TaskCheck TaskKind = iota
	TaskAllowLogin
	TaskBlockLogin
	TaskTerminateSession
)

func (k TaskKind) String() string {
	switch k {
	case TaskCheck:
		return "check"
	case TaskAllowLogin:
		return "allow-login"
	case TaskBlockLogin:
		return "block-login"
	case TaskTerminateSession:
		return "terminate-session"
	default:
		return fmt.Sprintf("task(%d)", uint8(k))
	}
}

// Task is one queued enforcement step for one account.
type Task struct {
	Kind       TaskKind
	Account    AccountID
	Generation uint64
}
