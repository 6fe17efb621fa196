// Package policy implements the regulation decision engine: policies gated
// by a countdown enabler, each holding time-based rules, and the regulation
// that combines them into a block/allow decision for one account.
package policy

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
)

const (
	// MaxPolicies is the number of policies one regulation may hold.
	MaxPolicies = 5
	// MaxRules is the number of rules one policy may hold.
	MaxRules = 10
	// MaxPolicyNameLength is counted in characters, not bytes.
	MaxPolicyNameLength = 25
	// MaxProtection caps the remaining enabler time after any increment.
	MaxProtection = 3 * clock.Week
)

// Name is a validated policy name.
type Name string

// NewName validates a policy name: 1 to 25 characters after trimming spaces.
func NewName(s string) (Name, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 || n > MaxPolicyNameLength {
		return "", fmt.Errorf("%w: got %d", ErrInvalidPolicyName, n)
	}
	return Name(s), nil
}

// Rule is one activation condition inside a policy.
type Rule struct {
	ID        uuid.UUID
	Activator Activator
}

// NewRule creates a rule with a fresh identifier.
func NewRule(a Activator) Rule {
	return Rule{ID: uuid.New(), Activator: a}
}

// IsEffective reports whether the rule's activator applies at now.
func (r Rule) IsEffective(now clock.DateTime) bool {
	return r.Activator.IsEffective(now)
}

// Policy is a named group of rules that only blocks while its enabler has
// time left.
type Policy struct {
	ID      uuid.UUID
	Name    Name
	Enabler clock.CountdownTimer
	Rules   []Rule
}

// NewPolicy creates a policy with a finished enabler and no rules.
func NewPolicy(name Name, now clock.DateTime) *Policy {
	return &Policy{
		ID:      uuid.New(),
		Name:    name,
		Enabler: clock.NewCountdownTimer(now),
	}
}

// IsEnabled reports whether the enabler still has time left at now.
func (p *Policy) IsEnabled(now clock.DateTime) bool {
	return p.Enabler.RemainingDuration(now) > 0
}

// IsEffective reports whether the policy calls for blocking at now.
func (p *Policy) IsEffective(now clock.DateTime) bool {
	if !p.IsEnabled(now) {
		return false
	}
	for _, r := range p.Rules {
		if r.IsEffective(now) {
			return true
		}
	}
	return false
}

func (p *Policy) findRule(id uuid.UUID) int {
	for i, r := range p.Rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Rule returns the rule with the given id.
func (p *Policy) Rule(id uuid.UUID) (Rule, bool) {
	i := p.findRule(id)
	if i < 0 {
		return Rule{}, false
	}
	return p.Rules[i], true
}

func (p *Policy) clone() *Policy {
	c := *p
	c.Rules = append([]Rule(nil), p.Rules...)
	return &c
}
