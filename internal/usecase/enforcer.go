package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
)

// Enforcer drives each managed OS account toward the action its regulation
// calls for. It runs one task at a time per account:
//
//	lock -> read -> unlock -> OS call -> lock -> record status, enqueue next -> unlock
//
// OS-call failures are retried forever at the account's check interval.
type Enforcer struct {
	accounts        *AccountTable
	osCalls         domain.OperatingSystemCalls
	store           domain.AccountStore
	scheduler       domain.TaskScheduler
	clock           clock.Clock
	blockedPassword string
	logger          *zap.Logger
}

// NewEnforcer creates an enforcer. blockedPassword is the process-wide
// password swapped in while login is blocked.
func NewEnforcer(
	accounts *AccountTable,
	osCalls domain.OperatingSystemCalls,
	store domain.AccountStore,
	scheduler domain.TaskScheduler,
	clk clock.Clock,
	blockedPassword string,
	logger *zap.Logger,
) *Enforcer {
	return &Enforcer{
		accounts:        accounts,
		osCalls:         osCalls,
		store:           store,
		scheduler:       scheduler,
		clock:           clk,
		blockedPassword: blockedPassword,
		logger:          logger,
	}
}

// Transition returns the step the state machine takes from status under
// action. TaskCheck means nothing to do but recheck after the interval.
func Transition(status domain.ApplicationStatus, action policy.Action) domain.TaskKind {
	switch status {
	case domain.StatusAllowed:
		if action == policy.ActionBlock {
			return domain.TaskBlockLogin
		}
		return domain.TaskCheck
	case domain.StatusLoginBlocked:
		if action == policy.ActionBlock {
			return domain.TaskTerminateSession
		}
		return domain.TaskAllowLogin
	case domain.StatusLoginBlockedAndSessionTerminated:
		if action == policy.ActionBlock {
			return domain.TaskCheck
		}
		return domain.TaskAllowLogin
	default:
		if action == policy.ActionBlock {
			return domain.TaskBlockLogin
		}
		return domain.TaskAllowLogin
	}
}

// StartAll begins a fresh task chain for every managed account.
func (e *Enforcer) StartAll() {
	for _, id := range e.accounts.IDs() {
		_ = e.accounts.with(id, func(a *domain.ManagedAccount) error {
			e.restartLocked(a)
			return nil
		})
	}
}

// restartLocked gives the account a fresh generation so queued tasks of the
// old chain die out, and enqueues an immediate check. Callers hold the table
// lock.
func (e *Enforcer) restartLocked(a *domain.ManagedAccount) {
	a.Generation = e.accounts.nextGenerationLocked()
	e.scheduler.AddImmediateOperation(domain.Task{
		Kind:       domain.TaskCheck,
		Account:    a.UserID,
		Generation: a.Generation,
	})
}

// step is what Execute read from the account before releasing the lock.
type step struct {
	kind     domain.TaskKind
	username string
	password string
	interval time.Duration
}

// Execute runs one task. Tasks of unmanaged accounts and of superseded
// chains are dropped.
func (e *Enforcer) Execute(ctx context.Context, task domain.Task) {
	log := e.logger.With(
		zap.Uint32("account", uint32(task.Account)),
		zap.Stringer("task", task.Kind))

	unlock, ok := e.accounts.lockOps(task.Account)
	if !ok {
		log.Debug("dropping task for unmanaged account")
		return
	}
	defer unlock()

	var st step
	stale := false
	err := e.accounts.with(task.Account, func(a *domain.ManagedAccount) error {
		if a.Generation != task.Generation {
			stale = true
			return nil
		}
		action := a.DesiredAction(e.clock.Now())
		st = step{
			kind:     Transition(a.Status, action),
			username: a.Username,
			interval: a.CheckInterval.Std(),
		}
		if task.Kind != domain.TaskCheck && task.Kind != st.kind {
			log.Debug("task superseded by current decision",
				zap.Stringer("status", a.Status),
				zap.Stringer("action", action),
				zap.Stringer("next", st.kind))
		}
		switch st.kind {
		case domain.TaskCheck:
			e.scheduler.AddDelayedOperation(domain.Task{
				Kind:       domain.TaskCheck,
				Account:    task.Account,
				Generation: task.Generation,
			}, st.interval)
		case domain.TaskAllowLogin:
			st.password = a.Password
		case domain.TaskBlockLogin:
			st.password = e.blockedPassword
		}
		return nil
	})
	if err != nil {
		log.Debug("dropping task for unmanaged account")
		return
	}
	if stale {
		log.Debug("dropping task of superseded chain", zap.Uint64("generation", task.Generation))
		return
	}
	if st.kind == domain.TaskCheck {
		return
	}

	callErr := e.call(ctx, st)

	err = e.accounts.with(task.Account, func(a *domain.ManagedAccount) error {
		current := a.Generation == task.Generation
		if callErr != nil {
			log.Warn("os call failed, will retry",
				zap.String("username", st.username),
				zap.Stringer("step", st.kind),
				zap.Duration("interval", a.CheckInterval.Std()),
				zap.Error(callErr))
			if current {
				e.scheduler.AddDelayedOperation(domain.Task{
					Kind:       st.kind,
					Account:    task.Account,
					Generation: task.Generation,
				}, a.CheckInterval.Std())
			}
			return nil
		}

		status := statusAfter(st.kind)
		e.recordStatusLocked(ctx, a, status)
		log.Info("account status changed",
			zap.String("username", st.username),
			zap.Stringer("status", status))

		if !current {
			return nil
		}
		next := domain.Task{Kind: domain.TaskCheck, Account: task.Account, Generation: task.Generation}
		if st.kind == domain.TaskBlockLogin {
			next.Kind = domain.TaskTerminateSession
			e.scheduler.AddImmediateOperation(next)
			return nil
		}
		e.scheduler.AddDelayedOperation(next, a.CheckInterval.Std())
		return nil
	})
	if err != nil {
		log.Info("account unmanaged during os call", zap.Stringer("step", st.kind))
	}
}

func (e *Enforcer) call(ctx context.Context, st step) error {
	switch st.kind {
	case domain.TaskTerminateSession:
		return e.osCalls.TerminateSession(ctx, st.username)
	default:
		return e.osCalls.ChangePassword(ctx, st.username, st.password)
	}
}

// recordStatusLocked persists then applies a new status. The OS has already
// changed, so memory follows it even when the write fails; the stored value
// is only advisory since statuses restart as Unknown.
func (e *Enforcer) recordStatusLocked(ctx context.Context, a *domain.ManagedAccount, status domain.ApplicationStatus) {
	if err := e.store.UpdateAccountStatus(ctx, a.UserID, status); err != nil {
		e.logger.Error("failed to persist account status",
			zap.Uint32("account", uint32(a.UserID)),
			zap.Stringer("status", status),
			zap.Error(err))
	}
	a.Status = status
}

func statusAfter(kind domain.TaskKind) domain.ApplicationStatus {
	switch kind {
	case domain.TaskAllowLogin:
		return domain.StatusAllowed
	case domain.TaskBlockLogin:
		return domain.StatusLoginBlocked
	case domain.TaskTerminateSession:
		return domain.StatusLoginBlockedAndSessionTerminated
	default:
		return domain.StatusUnknown
	}
}
