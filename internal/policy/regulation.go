package policy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
)

// Action is the decision a regulation reaches for its account.
type Action uint8

const (
	ActionAllow Action = iota
	ActionBlock
)

func (a Action) String() string {
	if a == ActionBlock {
		return "block"
	}
	return "allow"
}

// Regulation holds the policies of one managed account.
//
// Every mutating operation validates first, then calls its persist callback,
// and only changes memory once persist succeeded. A persist error is
// returned unchanged and leaves the regulation as it was.
type Regulation struct {
	policies []*Policy
}

// NewRegulation builds a regulation from already-validated policies.
func NewRegulation(policies ...*Policy) *Regulation {
	return &Regulation{policies: policies}
}

// Policies returns the policies in creation order. Callers must not mutate them.
func (r *Regulation) Policies() []*Policy {
	return r.policies
}

// Policy returns the policy with the given id.
func (r *Regulation) Policy(id uuid.UUID) (*Policy, bool) {
	i := r.findPolicy(id)
	if i < 0 {
		return nil, false
	}
	return r.policies[i], true
}

// CalculateAction blocks iff some enabled policy has an effective rule at now.
func (r *Regulation) CalculateAction(now clock.DateTime) Action {
	for _, p := range r.policies {
		if p.IsEffective(now) {
			return ActionBlock
		}
	}
	return ActionAllow
}

// AnyPolicyEnabled reports whether any policy's enabler has time left at now.
func (r *Regulation) AnyPolicyEnabled(now clock.DateTime) bool {
	for _, p := range r.policies {
		if p.IsEnabled(now) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to read outside the account lock.
func (r *Regulation) Clone() *Regulation {
	c := &Regulation{policies: make([]*Policy, len(r.policies))}
	for i, p := range r.policies {
		c.policies[i] = p.clone()
	}
	return c
}

// CreatePolicy adds a policy with a finished enabler and no rules.
func (r *Regulation) CreatePolicy(name Name, now clock.DateTime, persist func(*Policy) error) (*Policy, error) {
	if len(r.policies) >= MaxPolicies {
		return nil, ErrReachedMaximumPoliciesAllowed
	}
	p := NewPolicy(name, now)
	if err := persist(p); err != nil {
		return nil, err
	}
	r.policies = append(r.policies, p)
	return p, nil
}

// DeletePolicy removes a policy and its rules. Enabled policies cannot be deleted.
func (r *Regulation) DeletePolicy(id uuid.UUID, now clock.DateTime, persist func() error) error {
	i := r.findPolicy(id)
	if i < 0 {
		return ErrNoSuchPolicy
	}
	if r.policies[i].IsEnabled(now) {
		return ErrPolicyIsStillEnabled
	}
	if err := persist(); err != nil {
		return err
	}
	r.policies = append(r.policies[:i], r.policies[i+1:]...)
	return nil
}

// RenamePolicy changes a policy's name.
func (r *Regulation) RenamePolicy(id uuid.UUID, name Name, persist func() error) error {
	p, ok := r.Policy(id)
	if !ok {
		return ErrNoSuchPolicy
	}
	if err := persist(); err != nil {
		return err
	}
	p.Name = name
	return nil
}

// IncreasePolicyProtection extends the time a policy stays enabled. The
// remaining time after the increment may not exceed MaxProtection. There is
// no way to shorten it.
func (r *Regulation) IncreasePolicyProtection(id uuid.UUID, increment clock.Duration, now clock.DateTime, persist func(clock.CountdownTimer) error) error {
	p, ok := r.Policy(id)
	if !ok {
		return ErrNoSuchPolicy
	}
	enabler := p.Enabler
	if !enabler.Increment(increment, now) {
		return ErrWouldBeEffectiveForTooLong
	}
	if remaining := enabler.RemainingDuration(now); remaining > MaxProtection {
		return fmt.Errorf("%w: %s remaining exceeds %s", ErrWouldBeEffectiveForTooLong, remaining, MaxProtection)
	}
	if err := persist(enabler); err != nil {
		return err
	}
	p.Enabler = enabler
	return nil
}

// CreateRule appends a rule to a policy.
func (r *Regulation) CreateRule(policyID uuid.UUID, a Activator, persist func(Rule) error) (Rule, error) {
	p, ok := r.Policy(policyID)
	if !ok {
		return Rule{}, ErrNoSuchPolicy
	}
	if len(p.Rules) >= MaxRules {
		return Rule{}, ErrRuleCreationLimitReached
	}
	rule := NewRule(a)
	if err := persist(rule); err != nil {
		return Rule{}, err
	}
	p.Rules = append(p.Rules, rule)
	return rule, nil
}

// DeleteRule removes a rule. Rules of enabled policies cannot be deleted.
func (r *Regulation) DeleteRule(policyID, ruleID uuid.UUID, now clock.DateTime, persist func() error) error {
	p, ok := r.Policy(policyID)
	if !ok {
		return ErrNoSuchPolicy
	}
	i := p.findRule(ruleID)
	if i < 0 {
		return ErrNoSuchRule
	}
	if p.IsEnabled(now) {
		return ErrPolicyIsStillEnabled
	}
	if err := persist(); err != nil {
		return err
	}
	p.Rules = append(p.Rules[:i], p.Rules[i+1:]...)
	return nil
}

// UpdateRuleTimeRange replaces the range of an InTimeRange rule. The new
// range must cover every time the current one covers.
func (r *Regulation) UpdateRuleTimeRange(policyID, ruleID uuid.UUID, next clock.TimeRange, persist func(Activator) error) error {
	return r.updateActivator(policyID, ruleID, persist, func(current Activator) (Activator, error) {
		a, ok := current.(InTimeRange)
		if !ok {
			return nil, fmt.Errorf("%w: rule is %s", ErrWrongActivatorType, current.Kind())
		}
		widened, err := a.Range.MakeWider(next)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWouldMakeRuleLessRestrictive, err)
		}
		return InTimeRange{Range: widened}, nil
	})
}

// UpdateRuleWeekdayRange replaces the range of an InWeekdayRange rule. The
// new range must cover every day the current one covers.
func (r *Regulation) UpdateRuleWeekdayRange(policyID, ruleID uuid.UUID, next clock.WeekdayRange, persist func(Activator) error) error {
	return r.updateActivator(policyID, ruleID, persist, func(current Activator) (Activator, error) {
		a, ok := current.(InWeekdayRange)
		if !ok {
			return nil, fmt.Errorf("%w: rule is %s", ErrWrongActivatorType, current.Kind())
		}
		widened, err := a.Range.MakeWider(next)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWouldMakeRuleLessRestrictive, err)
		}
		return InWeekdayRange{Range: widened}, nil
	})
}

func (r *Regulation) updateActivator(policyID, ruleID uuid.UUID, persist func(Activator) error, widen func(Activator) (Activator, error)) error {
	p, ok := r.Policy(policyID)
	if !ok {
		return ErrNoSuchPolicy
	}
	i := p.findRule(ruleID)
	if i < 0 {
		return ErrNoSuchRule
	}
	next, err := widen(p.Rules[i].Activator)
	if err != nil {
		return err
	}
	if err := persist(next); err != nil {
		return err
	}
	p.Rules[i].Activator = next
	return nil
}

func (r *Regulation) findPolicy(id uuid.UUID) int {
	for i, p := range r.policies {
		if p.ID == id {
			return i
		}
	}
	return -1
}
