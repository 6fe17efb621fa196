package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
)

var errBoom = errors.New("boom")

// 2024-03-04 is a Monday.
var monday = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.Local)

// passwordChange records one ChangePassword call.
type passwordChange struct {
	username string
	password string
}

// mockOSCalls implements domain.OperatingSystemCalls for testing
type mockOSCalls struct {
	mu           sync.Mutex
	users        map[string]domain.AccountInfo
	changeErr    error
	terminateErr error
	changes      []passwordChange
	terminated   []string
	// onCall runs inside every mutating call, before it returns.
	onCall func()
}

func newMockOSCalls() *mockOSCalls {
	return &mockOSCalls{users: map[string]domain.AccountInfo{
		"alice": {UserID: 1000, Username: "alice", HomeDir: "/home/alice"},
		"bob":   {UserID: 1001, Username: "bob", HomeDir: "/home/bob"},
	}}
}

func (m *mockOSCalls) ChangePassword(_ context.Context, username, password string) error {
	if m.onCall != nil {
		m.onCall()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.changeErr != nil {
		return m.changeErr
	}
	m.changes = append(m.changes, passwordChange{username, password})
	return nil
}

func (m *mockOSCalls) TerminateSession(_ context.Context, username string) error {
	if m.onCall != nil {
		m.onCall()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminateErr != nil {
		return m.terminateErr
	}
	m.terminated = append(m.terminated, username)
	return nil
}

func (m *mockOSCalls) LookupAccount(_ context.Context, idOrName string) (*domain.AccountInfo, error) {
	if info, ok := m.users[idOrName]; ok {
		return &info, nil
	}
	if uid, err := strconv.ParseUint(idOrName, 10, 32); err == nil {
		for _, info := range m.users {
			if info.UserID == domain.AccountID(uid) {
				return &info, nil
			}
		}
	}
	return nil, errors.New("unknown user")
}

// memStore implements domain.Persistence in memory. Setting err makes every
// write fail.
type memStore struct {
	mu       sync.Mutex
	err      error
	accounts map[domain.AccountID]*domain.ManagedAccount
	statuses map[domain.AccountID]domain.ApplicationStatus
	policies map[uuid.UUID]*policy.Policy
	writes   int
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[domain.AccountID]*domain.ManagedAccount),
		statuses: make(map[domain.AccountID]domain.ApplicationStatus),
		policies: make(map[uuid.UUID]*policy.Policy),
	}
}

func (s *memStore) write() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes++
	return nil
}

func (s *memStore) AddAccount(_ context.Context, a *domain.ManagedAccount) error {
	if err := s.write(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *a
	s.accounts[a.UserID] = &c
	return nil
}

func (s *memStore) DeleteAccount(_ context.Context, id domain.AccountID) error {
	if err := s.write(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	return nil
}

func (s *memStore) UpdateAccountStatus(_ context.Context, id domain.AccountID, st domain.ApplicationStatus) error {
	if err := s.write(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = st
	return nil
}

func (s *memStore) UpdateAccountEnabled(_ context.Context, id domain.AccountID, enabled bool) error {
	if err := s.write(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.Enabled = enabled
	}
	return nil
}

func (s *memStore) UpdateAccountCheckInterval(_ context.Context, id domain.AccountID, d clock.Duration) error {
	if err := s.write(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.CheckInterval = d
	}
	return nil
}

func (s *memStore) FindAllAccounts(context.Context) ([]*domain.ManagedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ManagedAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		c := *a
		if c.Regulation == nil {
			c.Regulation = policy.NewRegulation()
		}
		c.Status = s.statuses[a.UserID]
		out = append(out, &c)
	}
	return out, nil
}

func (s *memStore) FindAccount(_ context.Context, id domain.AccountID) (*domain.ManagedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (s *memStore) AddPolicy(_ context.Context, _ domain.AccountID, p *policy.Policy) error {
	if err := s.write(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = p
	return nil
}

func (s *memStore) DeletePolicy(_ context.Context, _ domain.AccountID, id uuid.UUID) error {
	if err := s.write(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, id)
	return nil
}

func (s *memStore) UpdatePolicyName(context.Context, domain.AccountID, uuid.UUID, policy.Name) error {
	return s.write()
}

func (s *memStore) UpdatePolicyEnabler(context.Context, domain.AccountID, uuid.UUID, clock.CountdownTimer) error {
	return s.write()
}

func (s *memStore) AddRule(context.Context, domain.AccountID, uuid.UUID, policy.Rule) error {
	return s.write()
}

func (s *memStore) DeleteRule(context.Context, domain.AccountID, uuid.UUID, uuid.UUID) error {
	return s.write()
}

func (s *memStore) UpdateRuleActivator(context.Context, domain.AccountID, uuid.UUID, uuid.UUID, policy.Activator) error {
	return s.write()
}

func (s *memStore) Close() error { return nil }

// scheduled is one task handed to the recording scheduler.
type scheduled struct {
	task  domain.Task
	delay time.Duration
}

// recordingScheduler implements domain.TaskScheduler by recording tasks.
type recordingScheduler struct {
	mu    sync.Mutex
	tasks []scheduled
}

func (r *recordingScheduler) AddImmediateOperation(task domain.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, scheduled{task: task})
}

func (r *recordingScheduler) AddDelayedOperation(task domain.Task, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, scheduled{task: task, delay: delay})
}

// take returns and clears the recorded tasks.
func (r *recordingScheduler) take() []scheduled {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.tasks
	r.tasks = nil
	return out
}

const testBlockedPassword = "blocked-secret"

// harness wires the usecase layer against mocks.
type harness struct {
	table    *AccountTable
	osCalls  *mockOSCalls
	store    *memStore
	sched    *recordingScheduler
	clock    *clock.MockClock
	enforcer *Enforcer
	service  *RegulationService
}

func newHarness(t *testing.T, accounts ...*domain.ManagedAccount) *harness {
	t.Helper()
	h := &harness{
		table:   NewAccountTable(accounts...),
		osCalls: newMockOSCalls(),
		store:   newMemStore(),
		sched:   &recordingScheduler{},
		clock:   clock.NewMockClock(monday),
	}
	h.enforcer = NewEnforcer(h.table, h.osCalls, h.store, h.sched, h.clock, testBlockedPassword, zap.NewNop())
	h.service = NewRegulationService(h.table, h.store, h.osCalls, h.enforcer, h.clock, 0, zap.NewNop())
	return h
}

// newAccount builds an enabled alice account in the given status.
func newAccount(status domain.ApplicationStatus) *domain.ManagedAccount {
	return &domain.ManagedAccount{
		UserID:        1000,
		Username:      "alice",
		Password:      "real-password",
		Regulation:    policy.NewRegulation(),
		Status:        status,
		Enabled:       true,
		CheckInterval: clock.Minute,
		Generation:    1,
	}
}

// blockAlways gives the account an hour-long enabled policy that always blocks.
func (h *harness) blockAlways(t *testing.T, id domain.AccountID) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	pid, err := h.service.CreatePolicy(ctx, id, "always")
	require.NoError(t, err)
	_, err = h.service.CreateRule(ctx, id, pid, policy.AllTheTime{})
	require.NoError(t, err)
	require.NoError(t, h.service.IncreasePolicyProtection(ctx, id, pid, clock.Hour))
	return pid
}

// status reads an account's status from the table.
func (h *harness) status(t *testing.T, id domain.AccountID) domain.ApplicationStatus {
	t.Helper()
	snap, err := h.table.Snapshot(id, h.clock.Now())
	require.NoError(t, err)
	return snap.Status
}

// generation reads an account's current chain generation.
func (h *harness) generation(t *testing.T, id domain.AccountID) uint64 {
	t.Helper()
	var gen uint64
	require.NoError(t, h.table.with(id, func(a *domain.ManagedAccount) error {
		gen = a.Generation
		return nil
	}))
	return gen
}
