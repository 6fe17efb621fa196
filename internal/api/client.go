package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

// Client calls the control API over a Unix socket.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a client for the daemon listening on socketPath.
func NewClient(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: 30 * time.Second},
		baseURL: "http://discipline",
	}
}

// newHTTPClient creates a client for an arbitrary base URL.
func newHTTPClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: baseURL}
}

// Call performs op with req and decodes the result into resp.
// API failures are returned as *Error.
func (c *Client) Call(ctx context.Context, op string, req, resp any) error {
	if req == nil {
		req = Empty{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/"+op, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return err
	}
	if httpResp.StatusCode != http.StatusOK {
		apiErr := &Error{}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("%s: unexpected status %d", op, httpResp.StatusCode)
		}
		return apiErr
	}
	if resp == nil {
		return nil
	}
	return json.Unmarshal(data, resp)
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.Call(ctx, OpStatus, nil, &resp)
	return resp, err
}

// ListAccounts returns every managed account.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var resp ListAccountsResponse
	err := c.Call(ctx, OpListAccounts, nil, &resp)
	return resp.Accounts, err
}

// GetAccount returns one managed account.
func (c *Client) GetAccount(ctx context.Context, id domain.AccountID) (Account, error) {
	var resp Account
	err := c.Call(ctx, OpGetAccount, AccountRequest{Account: id}, &resp)
	return resp, err
}

// ManageAccount puts an OS account under control.
func (c *Client) ManageAccount(ctx context.Context, req ManageAccountRequest) (Account, error) {
	var resp Account
	err := c.Call(ctx, OpManageAccount, req, &resp)
	return resp, err
}

// UnmanageAccount releases an account.
func (c *Client) UnmanageAccount(ctx context.Context, id domain.AccountID) error {
	return c.Call(ctx, OpUnmanageAccount, AccountRequest{Account: id}, nil)
}

// SetCheckInterval changes an account's check interval ("5m").
func (c *Client) SetCheckInterval(ctx context.Context, id domain.AccountID, interval string) error {
	return c.Call(ctx, OpSetCheckInterval, SetCheckIntervalRequest{Account: id, Interval: interval}, nil)
}

// EnableRegulationApplication resumes enforcement for an account.
func (c *Client) EnableRegulationApplication(ctx context.Context, id domain.AccountID) error {
	return c.Call(ctx, OpEnableRegulationApplication, AccountRequest{Account: id}, nil)
}

// DisableRegulationApplication suspends enforcement for an account.
func (c *Client) DisableRegulationApplication(ctx context.Context, id domain.AccountID) error {
	return c.Call(ctx, OpDisableRegulationApplication, AccountRequest{Account: id}, nil)
}

// CreatePolicy adds a policy and returns its id.
func (c *Client) CreatePolicy(ctx context.Context, id domain.AccountID, name string) (uuid.UUID, error) {
	var resp IDResponse
	err := c.Call(ctx, OpCreatePolicy, CreatePolicyRequest{Account: id, Name: name}, &resp)
	return resp.ID, err
}

// DeletePolicy removes a policy.
func (c *Client) DeletePolicy(ctx context.Context, id domain.AccountID, policyID uuid.UUID) error {
	return c.Call(ctx, OpDeletePolicy, PolicyRequest{Account: id, Policy: policyID}, nil)
}

// UpdatePolicyName renames a policy.
func (c *Client) UpdatePolicyName(ctx context.Context, id domain.AccountID, policyID uuid.UUID, name string) error {
	return c.Call(ctx, OpUpdatePolicyName, UpdatePolicyNameRequest{Account: id, Policy: policyID, Name: name}, nil)
}

// IncreasePolicyProtection extends a policy's protection ("2h").
func (c *Client) IncreasePolicyProtection(ctx context.Context, id domain.AccountID, policyID uuid.UUID, increment string) error {
	return c.Call(ctx, OpIncreasePolicyProtection,
		IncreasePolicyProtectionRequest{Account: id, Policy: policyID, Increment: increment}, nil)
}

// CreateRule adds a rule and returns its id.
func (c *Client) CreateRule(ctx context.Context, id domain.AccountID, policyID uuid.UUID, a Activator) (uuid.UUID, error) {
	var resp IDResponse
	err := c.Call(ctx, OpCreateRule, CreateRuleRequest{Account: id, Policy: policyID, Activator: a}, &resp)
	return resp.ID, err
}

// DeleteRule removes a rule.
func (c *Client) DeleteRule(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID) error {
	return c.Call(ctx, OpDeleteRule, RuleRequest{Account: id, Policy: policyID, Rule: ruleID}, nil)
}

// UpdateRuleTimeRange widens a time-range rule ("HH:MM" bounds).
func (c *Client) UpdateRuleTimeRange(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID, from, till string) error {
	return c.Call(ctx, OpUpdateRuleActivatorTimeRange,
		UpdateRuleRangeRequest{Account: id, Policy: policyID, Rule: ruleID, From: from, Till: till}, nil)
}

// UpdateRuleWeekdayRange widens a weekday-range rule (weekday names).
func (c *Client) UpdateRuleWeekdayRange(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID, from, till string) error {
	return c.Call(ctx, OpUpdateRuleActivatorWeekdayRange,
		UpdateRuleRangeRequest{Account: id, Policy: policyID, Rule: ruleID, From: from, Till: till}, nil)
}
