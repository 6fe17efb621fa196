package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
)

// ErrNotFound is returned by stores when no record matches.
var ErrNotFound = errors.New("record not found")

// OperatingSystemCalls changes OS account state. Every call must be safe to
// retry: the enforcer repeats failed calls indefinitely.
type OperatingSystemCalls interface {
	// ChangePassword sets username's login password.
	ChangePassword(ctx context.Context, username, password string) error

	// TerminateSession ends every login session of username.
	TerminateSession(ctx context.Context, username string) error

	// LookupAccount resolves a numeric user id or a username.
	LookupAccount(ctx context.Context, idOrName string) (*AccountInfo, error)
}

// AccountStore persists managed-account records.
type AccountStore interface {
	// AddAccount inserts a new account without policies.
	AddAccount(ctx context.Context, account *ManagedAccount) error

	// DeleteAccount removes the account together with its policies and rules.
	DeleteAccount(ctx context.Context, id AccountID) error

	UpdateAccountStatus(ctx context.Context, id AccountID, status ApplicationStatus) error
	UpdateAccountEnabled(ctx context.Context, id AccountID, enabled bool) error
	UpdateAccountCheckInterval(ctx context.Context, id AccountID, interval clock.Duration) error

	// FindAllAccounts loads every account with its full regulation.
	FindAllAccounts(ctx context.Context) ([]*ManagedAccount, error)

	// FindAccount loads one account with its full regulation.
	FindAccount(ctx context.Context, id AccountID) (*ManagedAccount, error)
}

// RegulationStore persists policies and rules. Policies and rules are
// scoped by account so a matcher never crosses account boundaries.
type RegulationStore interface {
	AddPolicy(ctx context.Context, id AccountID, p *policy.Policy) error
	DeletePolicy(ctx context.Context, id AccountID, policyID uuid.UUID) error
	UpdatePolicyName(ctx context.Context, id AccountID, policyID uuid.UUID, name policy.Name) error
	UpdatePolicyEnabler(ctx context.Context, id AccountID, policyID uuid.UUID, enabler clock.CountdownTimer) error

	AddRule(ctx context.Context, id AccountID, policyID uuid.UUID, rule policy.Rule) error
	DeleteRule(ctx context.Context, id AccountID, policyID, ruleID uuid.UUID) error
	UpdateRuleActivator(ctx context.Context, id AccountID, policyID, ruleID uuid.UUID, a policy.Activator) error
}

// Persistence is the full store the daemon runs against.
type Persistence interface {
	AccountStore
	RegulationStore
	Close() error
}

// TaskScheduler accepts enforcement tasks. There is no cancellation: stale
// tasks re-validate their account when they run.
type TaskScheduler interface {
	AddImmediateOperation(task Task)
	AddDelayedOperation(task Task, delay time.Duration)
}

// SessionTerminationStrategy is one way of ending a user's sessions.
// Implementations: loginctl, killing the user's processes.
type SessionTerminationStrategy interface {
	// Name returns the strategy name (e.g., "loginctl").
	Name() string

	// IsAvailable returns true if this strategy can be used on this system.
	IsAvailable() bool

	// Terminate ends every session of username.
	Terminate(ctx context.Context, username string) error
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByUser returns PIDs of processes owned by username.
	FindByUser(username string) ([]int, error)

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool
}

// KeyProvider abstracts the source of the database encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// SecretStore provides encrypted persistent storage for secrets.
// Secrets are generated once and persist across restarts.
type SecretStore interface {
	// GetSecret retrieves a secret by key.
	GetSecret(key string) (string, error)

	// SetSecret stores a secret.
	SetSecret(key, value string) error
}

// ServiceManager installs the daemon as an init-system service.
// Implementation: systemd unit file + systemctl.
type ServiceManager interface {
	// Install writes the unit for execPath and enables it.
	Install(execPath string) error

	// Uninstall disables and removes the unit.
	Uninstall() error

	// IsInstalled checks if the unit file exists.
	IsInstalled() bool

	// NeedsUpdate checks if the unit exists but differs from what execPath needs.
	NeedsUpdate(execPath string) bool

	// Update rewrites the unit and restarts the service.
	Update(execPath string) error
}
