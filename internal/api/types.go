package api

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
)

// Operation names, served as POST /rpc/<name>.
const (
	OpStatus                          = "Status"
	OpListAccounts                    = "ListAccounts"
	OpGetAccount                      = "GetAccount"
	OpManageAccount                   = "ManageAccount"
	OpUnmanageAccount                 = "UnmanageAccount"
	OpSetCheckInterval                = "SetCheckInterval"
	OpEnableRegulationApplication     = "EnableRegulationApplication"
	OpDisableRegulationApplication    = "DisableRegulationApplication"
	OpCreatePolicy                    = "CreatePolicy"
	OpDeletePolicy                    = "DeletePolicy"
	OpUpdatePolicyName                = "UpdatePolicyName"
	OpIncreasePolicyProtection        = "IncreasePolicyProtection"
	OpCreateRule                      = "CreateRule"
	OpDeleteRule                      = "DeleteRule"
	OpUpdateRuleActivatorTimeRange    = "UpdateRuleActivatorTimeRange"
	OpUpdateRuleActivatorWeekdayRange = "UpdateRuleActivatorWeekdayRange"
)

// Empty is the request or response of operations that carry nothing.
type Empty struct{}

// StatusResponse describes the running daemon.
type StatusResponse struct {
	Version      string `json:"version"`
	PID          int    `json:"pid"`
	Mode         string `json:"mode"`
	StartedAt    int64  `json:"started_at"`
	Accounts     int    `json:"accounts"`
	PendingTasks int    `json:"pending_tasks"`
}

// AccountRequest names a managed account by uid.
type AccountRequest struct {
	Account domain.AccountID `json:"account"`
}

// ManageAccountRequest puts an OS account under control. Account is a
// username or a numeric uid; an empty CheckInterval selects the default.
type ManageAccountRequest struct {
	Account       string `json:"account"`
	Password      string `json:"password"`
	CheckInterval string `json:"check_interval,omitempty"`
}

// SetCheckIntervalRequest changes how often an account is re-evaluated.
type SetCheckIntervalRequest struct {
	Account  domain.AccountID `json:"account"`
	Interval string           `json:"interval"`
}

// CreatePolicyRequest adds a policy.
type CreatePolicyRequest struct {
	Account domain.AccountID `json:"account"`
	Name    string           `json:"name"`
}

// PolicyRequest names one policy.
type PolicyRequest struct {
	Account domain.AccountID `json:"account"`
	Policy  uuid.UUID        `json:"policy"`
}

// UpdatePolicyNameRequest renames a policy.
type UpdatePolicyNameRequest struct {
	Account domain.AccountID `json:"account"`
	Policy  uuid.UUID        `json:"policy"`
	Name    string           `json:"name"`
}

// IncreasePolicyProtectionRequest extends how long a policy stays enabled.
type IncreasePolicyProtectionRequest struct {
	Account   domain.AccountID `json:"account"`
	Policy    uuid.UUID        `json:"policy"`
	Increment string           `json:"increment"`
}

// CreateRuleRequest adds a rule to a policy.
type CreateRuleRequest struct {
	Account   domain.AccountID `json:"account"`
	Policy    uuid.UUID        `json:"policy"`
	Activator Activator        `json:"activator"`
}

// RuleRequest names one rule.
type RuleRequest struct {
	Account domain.AccountID `json:"account"`
	Policy  uuid.UUID        `json:"policy"`
	Rule    uuid.UUID        `json:"rule"`
}

// UpdateRuleRangeRequest widens a rule's range. From and Till are "HH:MM"
// for time ranges and weekday names for weekday ranges.
type UpdateRuleRangeRequest struct {
	Account domain.AccountID `json:"account"`
	Policy  uuid.UUID        `json:"policy"`
	Rule    uuid.UUID        `json:"rule"`
	From    string           `json:"from"`
	Till    string           `json:"till"`
}

// IDResponse carries the id of a created policy or rule.
type IDResponse struct {
	ID uuid.UUID `json:"id"`
}

// Activator is the wire form of policy.Activator.
type Activator struct {
	Kind    string `json:"kind"`
	Weekday string `json:"weekday,omitempty"`
	From    string `json:"from,omitempty"`
	Till    string `json:"till,omitempty"`
}

// ToPolicy converts the wire form into a policy.Activator.
func (a Activator) ToPolicy() (policy.Activator, error) {
	switch a.Kind {
	case policy.KindAllTheTime.String():
		return policy.AllTheTime{}, nil
	case policy.KindOnWeekday.String():
		d, err := clock.ParseWeekday(a.Weekday)
		if err != nil {
			return nil, err
		}
		return policy.OnWeekday{Weekday: d}, nil
	case policy.KindInTimeRange.String():
		r, err := ParseTimeRange(a.From, a.Till)
		if err != nil {
			return nil, err
		}
		return policy.InTimeRange{Range: r}, nil
	case policy.KindInWeekdayRange.String():
		r, err := ParseWeekdayRange(a.From, a.Till)
		if err != nil {
			return nil, err
		}
		return policy.InWeekdayRange{Range: r}, nil
	default:
		return nil, fmt.Errorf("%w: %q", policy.ErrUnknownActivatorKind, a.Kind)
	}
}

// ActivatorFromPolicy converts a policy.Activator into its wire form.
func ActivatorFromPolicy(a policy.Activator) Activator {
	out := Activator{Kind: a.Kind().String()}
	switch v := a.(type) {
	case policy.OnWeekday:
		out.Weekday = v.Weekday.String()
	case policy.InTimeRange:
		out.From = clock.TimeOfDay(v.Range.From()).String()
		out.Till = clock.TimeOfDay(v.Range.Till() % uint32(clock.Day)).String()
	case policy.InWeekdayRange:
		out.From = clock.Weekday(v.Range.From()).String()
		out.Till = clock.Weekday(v.Range.Till() % clock.DaysPerWeek).String()
	}
	return out
}

// ParseTimeRange parses two "HH:MM" bounds.
func ParseTimeRange(from, till string) (clock.TimeRange, error) {
	f, err := clock.ParseTimeOfDay(from)
	if err != nil {
		return clock.TimeRange{}, err
	}
	t, err := clock.ParseTimeOfDay(till)
	if err != nil {
		return clock.TimeRange{}, err
	}
	return clock.NewTimeRange(f, t), nil
}

// ParseWeekdayRange parses two weekday names.
func ParseWeekdayRange(from, till string) (clock.WeekdayRange, error) {
	f, err := clock.ParseWeekday(from)
	if err != nil {
		return clock.WeekdayRange{}, err
	}
	t, err := clock.ParseWeekday(till)
	if err != nil {
		return clock.WeekdayRange{}, err
	}
	return clock.NewWeekdayRange(f, t), nil
}

// Rule is the wire form of policy.Rule.
type Rule struct {
	ID          uuid.UUID `json:"id"`
	Activator   Activator `json:"activator"`
	Description string    `json:"description"`
}

// Policy is the wire form of policy.Policy at a point in time.
type Policy struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Enabled    bool      `json:"enabled"`
	Protection string    `json:"protection"`
	Rules      []Rule    `json:"rules"`
}

// Account is the wire form of a managed account. Passwords never leave the daemon.
type Account struct {
	UserID        domain.AccountID `json:"user_id"`
	Username      string           `json:"username"`
	Status        string           `json:"status"`
	Enabled       bool             `json:"enabled"`
	CheckInterval string           `json:"check_interval"`
	Action        string           `json:"action"`
	Policies      []Policy         `json:"policies"`
}

// AccountFromSnapshot converts a snapshot taken at now.
func AccountFromSnapshot(s domain.AccountSnapshot, now clock.DateTime) Account {
	out := Account{
		UserID:        s.UserID,
		Username:      s.Username,
		Status:        s.Status.String(),
		Enabled:       s.Enabled,
		CheckInterval: s.CheckInterval.String(),
		Action:        s.Action.String(),
		Policies:      []Policy{},
	}
	if s.Regulation == nil {
		return out
	}
	for _, p := range s.Regulation.Policies() {
		wp := Policy{
			ID:         p.ID,
			Name:       string(p.Name),
			Enabled:    p.IsEnabled(now),
			Protection: p.Enabler.RemainingDuration(now).String(),
			Rules:      []Rule{},
		}
		for _, r := range p.Rules {
			wp.Rules = append(wp.Rules, Rule{
				ID:          r.ID,
				Activator:   ActivatorFromPolicy(r.Activator),
				Description: r.Activator.String(),
			})
		}
		out.Policies = append(out.Policies, wp)
	}
	return out
}

// ListAccountsResponse lists every managed account.
type ListAccountsResponse struct {
	Accounts []Account `json:"accounts"`
}
