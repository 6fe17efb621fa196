package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
)

// RegulationService implements the control operations. Each operation
// validates, persists, and only then mutates the account table, all under
// the table lock. Persistence failures are logged and reported as ErrInternal.
type RegulationService struct {
	accounts        *AccountTable
	store           domain.Persistence
	osCalls         domain.OperatingSystemCalls
	enforcer        *Enforcer
	clock           clock.Clock
	defaultInterval clock.Duration
	logger          *zap.Logger
}

// NewRegulationService creates the service. defaultInterval is used by
// ManageAccount when no interval is given.
func NewRegulationService(
	accounts *AccountTable,
	store domain.Persistence,
	osCalls domain.OperatingSystemCalls,
	enforcer *Enforcer,
	clk clock.Clock,
	defaultInterval clock.Duration,
	logger *zap.Logger,
) *RegulationService {
	if defaultInterval == 0 {
		defaultInterval = domain.DefaultCheckInterval
	}
	return &RegulationService{
		accounts:        accounts,
		store:           store,
		osCalls:         osCalls,
		enforcer:        enforcer,
		clock:           clk,
		defaultInterval: defaultInterval,
		logger:          logger,
	}
}

// internal logs a persistence failure and hides it behind ErrInternal.
func (s *RegulationService) internal(op string, id domain.AccountID, err error) error {
	if err == nil {
		return nil
	}
	s.logger.Error("persistence failed",
		zap.String("op", op),
		zap.Uint32("account", uint32(id)),
		zap.Error(err))
	return ErrInternal
}

// ValidateCheckInterval checks that d lies in [MinCheckInterval, MaxCheckInterval].
func ValidateCheckInterval(d clock.Duration) error {
	if d < domain.MinCheckInterval || d > domain.MaxCheckInterval {
		return fmt.Errorf("%w: %s not in [%s, %s]",
			ErrInvalidCheckInterval, d, domain.MinCheckInterval, domain.MaxCheckInterval)
	}
	return nil
}

// ManageAccount puts an OS account under control with an empty regulation.
// interval 0 selects the default.
func (s *RegulationService) ManageAccount(ctx context.Context, idOrName, password string, interval clock.Duration) (domain.AccountSnapshot, error) {
	if interval == 0 {
		interval = s.defaultInterval
	}
	if err := ValidateCheckInterval(interval); err != nil {
		return domain.AccountSnapshot{}, err
	}
	info, err := s.osCalls.LookupAccount(ctx, idOrName)
	if err != nil {
		return domain.AccountSnapshot{}, fmt.Errorf("%w: %s: %v", ErrNoSuchAccount, idOrName, err)
	}

	account := &domain.ManagedAccount{
		UserID:        info.UserID,
		Username:      info.Username,
		Password:      password,
		Regulation:    policy.NewRegulation(),
		Status:        domain.StatusUnknown,
		Enabled:       true,
		CheckInterval: interval,
	}
	err = s.accounts.insert(account, func() error {
		return s.internal("manage", account.UserID, s.store.AddAccount(ctx, account))
	})
	if err != nil {
		return domain.AccountSnapshot{}, err
	}

	s.logger.Info("account managed",
		zap.Uint32("account", uint32(account.UserID)),
		zap.String("username", account.Username),
		zap.Duration("interval", interval.Std()))

	var snap domain.AccountSnapshot
	_ = s.accounts.with(account.UserID, func(a *domain.ManagedAccount) error {
		s.enforcer.restartLocked(a)
		snap = a.Snapshot(s.clock.Now())
		return nil
	})
	return snap, nil
}

// UnmanageAccount releases an account. It is rejected while any policy is
// enabled. Unless the account is known to be Allowed, its real password is
// put back first, and the account stays managed if that fails. Queued tasks
// for the account become no-ops.
func (s *RegulationService) UnmanageAccount(ctx context.Context, id domain.AccountID) error {
	unlock, ok := s.accounts.lockOps(id)
	if !ok {
		return ErrNoSuchAccount
	}
	defer unlock()

	noPolicyEnabled := func(a *domain.ManagedAccount) error {
		if a.Regulation.AnyPolicyEnabled(s.clock.Now()) {
			return policy.ErrPolicyIsStillEnabled
		}
		return nil
	}

	var username, password string
	restore := false
	err := s.accounts.with(id, func(a *domain.ManagedAccount) error {
		if err := noPolicyEnabled(a); err != nil {
			return err
		}
		username, password = a.Username, a.Password
		restore = a.Status != domain.StatusAllowed
		return nil
	})
	if err != nil {
		return err
	}

	if restore {
		if err := s.osCalls.ChangePassword(ctx, username, password); err != nil {
			s.logger.Warn("password restore failed, account stays managed",
				zap.Uint32("account", uint32(id)),
				zap.String("username", username),
				zap.Error(err))
			return fmt.Errorf("%w: %s: %v", ErrPasswordRestoreFailed, username, err)
		}
		_ = s.accounts.with(id, func(a *domain.ManagedAccount) error {
			a.Status = domain.StatusAllowed
			return nil
		})
		s.logger.Info("password restored", zap.Uint32("account", uint32(id)))
	}

	err = s.accounts.remove(id, noPolicyEnabled, func() error {
		return s.internal("unmanage", id, s.store.DeleteAccount(ctx, id))
	})
	if err != nil {
		return err
	}
	s.logger.Info("account unmanaged", zap.Uint32("account", uint32(id)))
	return nil
}

// Account returns a snapshot of one account.
func (s *RegulationService) Account(_ context.Context, id domain.AccountID) (domain.AccountSnapshot, error) {
	return s.accounts.Snapshot(id, s.clock.Now())
}

// ListAccounts returns snapshots of every managed account.
func (s *RegulationService) ListAccounts(_ context.Context) []domain.AccountSnapshot {
	return s.accounts.Snapshots(s.clock.Now())
}

// EnableRegulationApplication makes the account follow its regulation again.
func (s *RegulationService) EnableRegulationApplication(ctx context.Context, id domain.AccountID) error {
	return s.accounts.with(id, func(a *domain.ManagedAccount) error {
		if a.Enabled {
			return nil
		}
		if err := s.store.UpdateAccountEnabled(ctx, id, true); err != nil {
			return s.internal("enable", id, err)
		}
		a.Enabled = true
		s.enforcer.restartLocked(a)
		s.logger.Info("regulation application enabled", zap.Uint32("account", uint32(id)))
		return nil
	})
}

// DisableRegulationApplication stops enforcing the regulation and lets the
// account log in. It is rejected while any policy is enabled.
func (s *RegulationService) DisableRegulationApplication(ctx context.Context, id domain.AccountID) error {
	now := s.clock.Now()
	return s.accounts.with(id, func(a *domain.ManagedAccount) error {
		if !a.Enabled {
			return nil
		}
		if a.Regulation.AnyPolicyEnabled(now) {
			return policy.ErrPolicyIsStillEnabled
		}
		if err := s.store.UpdateAccountEnabled(ctx, id, false); err != nil {
			return s.internal("disable", id, err)
		}
		a.Enabled = false
		s.enforcer.restartLocked(a)
		s.logger.Info("regulation application disabled", zap.Uint32("account", uint32(id)))
		return nil
	})
}

// SetCheckInterval changes how often the account is re-evaluated.
func (s *RegulationService) SetCheckInterval(ctx context.Context, id domain.AccountID, interval clock.Duration) error {
	if err := ValidateCheckInterval(interval); err != nil {
		return err
	}
	return s.accounts.with(id, func(a *domain.ManagedAccount) error {
		if err := s.store.UpdateAccountCheckInterval(ctx, id, interval); err != nil {
			return s.internal("set-interval", id, err)
		}
		a.CheckInterval = interval
		s.enforcer.restartLocked(a)
		return nil
	})
}

// CreatePolicy adds an empty, disabled policy and returns its id.
func (s *RegulationService) CreatePolicy(ctx context.Context, id domain.AccountID, name string) (uuid.UUID, error) {
	n, err := policy.NewName(name)
	if err != nil {
		return uuid.Nil, err
	}
	var created uuid.UUID
	err = s.accounts.with(id, func(a *domain.ManagedAccount) error {
		p, err := a.Regulation.CreatePolicy(n, s.clock.Now(), func(p *policy.Policy) error {
			return s.internal("create-policy", id, s.store.AddPolicy(ctx, id, p))
		})
		if err != nil {
			return err
		}
		created = p.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("policy created",
		zap.Uint32("account", uint32(id)),
		zap.String("policy", created.String()))
	return created, nil
}

// DeletePolicy removes a disabled policy with its rules.
func (s *RegulationService) DeletePolicy(ctx context.Context, id domain.AccountID, policyID uuid.UUID) error {
	return s.accounts.with(id, func(a *domain.ManagedAccount) error {
		return a.Regulation.DeletePolicy(policyID, s.clock.Now(), func() error {
			return s.internal("delete-policy", id, s.store.DeletePolicy(ctx, id, policyID))
		})
	})
}

// RenamePolicy changes a policy's name.
func (s *RegulationService) RenamePolicy(ctx context.Context, id domain.AccountID, policyID uuid.UUID, name string) error {
	n, err := policy.NewName(name)
	if err != nil {
		return err
	}
	return s.accounts.with(id, func(a *domain.ManagedAccount) error {
		return a.Regulation.RenamePolicy(policyID, n, func() error {
			return s.internal("rename-policy", id, s.store.UpdatePolicyName(ctx, id, policyID, n))
		})
	})
}

// IncreasePolicyProtection keeps a policy enabled for increment longer.
func (s *RegulationService) IncreasePolicyProtection(ctx context.Context, id domain.AccountID, policyID uuid.UUID, increment clock.Duration) error {
	return s.accounts.with(id, func(a *domain.ManagedAccount) error {
		err := a.Regulation.IncreasePolicyProtection(policyID, increment, s.clock.Now(), func(enabler clock.CountdownTimer) error {
			return s.internal("increase-protection", id, s.store.UpdatePolicyEnabler(ctx, id, policyID, enabler))
		})
		if err != nil {
			return err
		}
		s.enforcer.restartLocked(a)
		return nil
	})
}

// CreateRule adds a rule to a policy and returns its id.
func (s *RegulationService) CreateRule(ctx context.Context, id domain.AccountID, policyID uuid.UUID, activator policy.Activator) (uuid.UUID, error) {
	var created uuid.UUID
	err := s.accounts.with(id, func(a *domain.ManagedAccount) error {
		rule, err := a.Regulation.CreateRule(policyID, activator, func(r policy.Rule) error {
			return s.internal("create-rule", id, s.store.AddRule(ctx, id, policyID, r))
		})
		if err != nil {
			return err
		}
		created = rule.ID
		s.enforcer.restartLocked(a)
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return created, nil
}

// DeleteRule removes a rule from a disabled policy.
func (s *RegulationService) DeleteRule(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID) error {
	return s.accounts.with(id, func(a *domain.ManagedAccount) error {
		return a.Regulation.DeleteRule(policyID, ruleID, s.clock.Now(), func() error {
			return s.internal("delete-rule", id, s.store.DeleteRule(ctx, id, policyID, ruleID))
		})
	})
}

// UpdateRuleTimeRange widens the range of an InTimeRange rule.
func (s *RegulationService) UpdateRuleTimeRange(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID, next clock.TimeRange) error {
	return s.accounts.with(id, func(a *domain.ManagedAccount) error {
		err := a.Regulation.UpdateRuleTimeRange(policyID, ruleID, next, s.persistActivator(ctx, id, policyID, ruleID))
		if err != nil {
			return err
		}
		s.enforcer.restartLocked(a)
		return nil
	})
}

// UpdateRuleWeekdayRange widens the range of an InWeekdayRange rule.
func (s *RegulationService) UpdateRuleWeekdayRange(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID, next clock.WeekdayRange) error {
	return s.accounts.with(id, func(a *domain.ManagedAccount) error {
		err := a.Regulation.UpdateRuleWeekdayRange(policyID, ruleID, next, s.persistActivator(ctx, id, policyID, ruleID))
		if err != nil {
			return err
		}
		s.enforcer.restartLocked(a)
		return nil
	})
}

func (s *RegulationService) persistActivator(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID) func(policy.Activator) error {
	return func(act policy.Activator) error {
		return s.internal("update-rule", id, s.store.UpdateRuleActivator(ctx, id, policyID, ruleID, act))
	}
}
