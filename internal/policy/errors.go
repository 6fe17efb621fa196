package policy

import "errors"

var (
	ErrNoSuchPolicy                  = errors.New("no such policy")
	ErrNoSuchRule                    = errors.New("no such rule")
	ErrReachedMaximumPoliciesAllowed = errors.New("reached maximum number of policies allowed")
	ErrRuleCreationLimitReached      = errors.New("reached maximum number of rules allowed in a policy")
	ErrPolicyIsStillEnabled          = errors.New("policy is still enabled")
	ErrWouldBeEffectiveForTooLong    = errors.New("policy would be enabled for too long")
	ErrWrongActivatorType            = errors.New("rule activator is of a different type")
	ErrWouldMakeRuleLessRestrictive  = errors.New("update would make the rule less restrictive")
	ErrInvalidPolicyName             = errors.New("policy name must be between 1 and 25 characters")
	ErrUnknownActivatorKind          = errors.New("unknown activator kind")
)
