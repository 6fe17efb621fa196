package api

import (
	"errors"
	"net/http"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/usecase"
)

// Stable error codes returned by the control API.
const (
	CodeInvalidRequest                = "InvalidRequest"
	CodeUnknownOperation              = "UnknownOperation"
	CodeNoSuchAccount                 = "NoSuchAccount"
	CodeAccountAlreadyManaged         = "AccountAlreadyManaged"
	CodeInvalidCheckInterval          = "InvalidCheckInterval"
	CodeNoSuchPolicy                  = "NoSuchPolicy"
	CodeNoSuchRule                    = "NoSuchRule"
	CodeReachedMaximumPoliciesAllowed = "ReachedMaximumPoliciesAllowed"
	CodeRuleCreationLimitReached      = "RuleCreationLimitReached"
	CodePolicyIsStillEnabled          = "PolicyIsStillEnabled"
	CodeWouldBeEffectiveForTooLong    = "WouldBeEffectiveForTooLong"
	CodeWrongActivatorType            = "WrongActivatorType"
	CodeWouldMakeRuleLessRestrictive  = "WouldMakeRuleLessRestrictive"
	CodeInvalidPolicyName             = "InvalidPolicyName"
	CodePasswordRestoreFailed         = "PasswordRestoreFailed"
	CodeInternalError                 = "InternalError"
)

type errorMapping struct {
	err    error
	code   string
	status int
}

// errorTable is checked in order; the first match wins.
var errorTable = []errorMapping{
	{usecase.ErrNoSuchAccount, CodeNoSuchAccount, http.StatusNotFound},
	{usecase.ErrAccountAlreadyManaged, CodeAccountAlreadyManaged, http.StatusConflict},
	{usecase.ErrInvalidCheckInterval, CodeInvalidCheckInterval, http.StatusBadRequest},
	{policy.ErrNoSuchPolicy, CodeNoSuchPolicy, http.StatusNotFound},
	{policy.ErrNoSuchRule, CodeNoSuchRule, http.StatusNotFound},
	{policy.ErrReachedMaximumPoliciesAllowed, CodeReachedMaximumPoliciesAllowed, http.StatusConflict},
	{policy.ErrRuleCreationLimitReached, CodeRuleCreationLimitReached, http.StatusConflict},
	{policy.ErrPolicyIsStillEnabled, CodePolicyIsStillEnabled, http.StatusConflict},
	{policy.ErrWouldBeEffectiveForTooLong, CodeWouldBeEffectiveForTooLong, http.StatusUnprocessableEntity},
	{policy.ErrWrongActivatorType, CodeWrongActivatorType, http.StatusUnprocessableEntity},
	{policy.ErrWouldMakeRuleLessRestrictive, CodeWouldMakeRuleLessRestrictive, http.StatusUnprocessableEntity},
	{policy.ErrInvalidPolicyName, CodeInvalidPolicyName, http.StatusBadRequest},
	{usecase.ErrPasswordRestoreFailed, CodePasswordRestoreFailed, http.StatusServiceUnavailable},
	{usecase.ErrInternal, CodeInternalError, http.StatusInternalServerError},
}

// Error is a failed operation as seen by a client.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Unwrap returns the sentinel error behind Code, so clients can use errors.Is.
func (e *Error) Unwrap() error {
	for _, m := range errorTable {
		if m.code == e.Code {
			return m.err
		}
	}
	return nil
}

// classify maps err to a code and HTTP status.
func classify(err error) (string, int) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code, http.StatusBadRequest
	}
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.code, m.status
		}
	}
	return CodeInternalError, http.StatusInternalServerError
}

func invalidRequest(err error) error {
	return &Error{Code: CodeInvalidRequest, Message: err.Error()}
}
