package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		status domain.ApplicationStatus
		action policy.Action
		want   domain.TaskKind
	}{
		{domain.StatusUnknown, policy.ActionAllow, domain.TaskAllowLogin},
		{domain.StatusUnknown, policy.ActionBlock, domain.TaskBlockLogin},
		{domain.StatusAllowed, policy.ActionAllow, domain.TaskCheck},
		{domain.StatusAllowed, policy.ActionBlock, domain.TaskBlockLogin},
		{domain.StatusLoginBlocked, policy.ActionAllow, domain.TaskAllowLogin},
		{domain.StatusLoginBlocked, policy.ActionBlock, domain.TaskTerminateSession},
		{domain.StatusLoginBlockedAndSessionTerminated, policy.ActionAllow, domain.TaskAllowLogin},
		{domain.StatusLoginBlockedAndSessionTerminated, policy.ActionBlock, domain.TaskCheck},
	}

	for _, tt := range tests {
		t.Run(tt.status.String()+"/"+tt.action.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.status, tt.action))
		})
	}
}

func checkTask(id domain.AccountID, gen uint64) domain.Task {
	return domain.Task{Kind: domain.TaskCheck, Account: id, Generation: gen}
}

// TestEnforcer_BlockFromUnknown walks Unknown -> LoginBlocked -> LoginBlockedAndSessionTerminated.
func TestEnforcer_BlockFromUnknown(t *testing.T) {
	h := newHarness(t, newAccount(domain.StatusUnknown))
	h.blockAlways(t, 1000)
	gen := h.generation(t, 1000)
	h.sched.take()
	ctx := context.Background()

	h.enforcer.Execute(ctx, checkTask(1000, gen))

	assert.Equal(t, domain.StatusLoginBlocked, h.status(t, 1000))
	assert.Equal(t, []passwordChange{{"alice", testBlockedPassword}}, h.osCalls.changes)
	next := h.sched.take()
	require.Len(t, next, 1)
	assert.Equal(t, domain.TaskTerminateSession, next[0].task.Kind)
	assert.Zero(t, next[0].delay)
	assert.Equal(t, domain.StatusLoginBlocked, h.store.statuses[1000])

	h.enforcer.Execute(ctx, next[0].task)

	assert.Equal(t, domain.StatusLoginBlockedAndSessionTerminated, h.status(t, 1000))
	assert.Equal(t, []string{"alice"}, h.osCalls.terminated)
	next = h.sched.take()
	require.Len(t, next, 1)
	assert.Equal(t, checkTask(1000, gen), next[0].task)
	assert.Equal(t, time.Minute, next[0].delay)
}

// Successful AllowLogin must land in Allowed, never in LoginBlocked.
func TestEnforcer_AllowLoginSetsAllowed(t *testing.T) {
	for _, from := range []domain.ApplicationStatus{
		domain.StatusUnknown,
		domain.StatusLoginBlocked,
		domain.StatusLoginBlockedAndSessionTerminated,
	} {
		t.Run(from.String(), func(t *testing.T) {
			h := newHarness(t, newAccount(from))

			h.enforcer.Execute(context.Background(), checkTask(1000, 1))

			assert.Equal(t, domain.StatusAllowed, h.status(t, 1000))
			assert.Equal(t, domain.StatusAllowed, h.store.statuses[1000])
			assert.Equal(t, []passwordChange{{"alice", "real-password"}}, h.osCalls.changes)
			next := h.sched.take()
			require.Len(t, next, 1)
			assert.Equal(t, checkTask(1000, 1), next[0].task)
			assert.Equal(t, time.Minute, next[0].delay)
		})
	}
}

func TestEnforcer_SteadyStateReschedulesCheck(t *testing.T) {
	h := newHarness(t, newAccount(domain.StatusAllowed))

	h.enforcer.Execute(context.Background(), checkTask(1000, 1))

	assert.Empty(t, h.osCalls.changes)
	assert.Equal(t, domain.StatusAllowed, h.status(t, 1000))
	next := h.sched.take()
	require.Len(t, next, 1)
	assert.Equal(t, checkTask(1000, 1), next[0].task)
	assert.Equal(t, time.Minute, next[0].delay)
}

// Failed password changes keep the status and retry the same step at the
// check interval, without a retry cap.
func TestEnforcer_RetriesForever(t *testing.T) {
	tests := []struct {
		name   string
		status domain.ApplicationStatus
		block  bool
		want   domain.TaskKind
	}{
		{"allow login", domain.StatusLoginBlocked, false, domain.TaskAllowLogin},
		{"block login", domain.StatusAllowed, true, domain.TaskBlockLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, newAccount(tt.status))
			if tt.block {
				h.blockAlways(t, 1000)
			}
			gen := h.generation(t, 1000)
			h.sched.take()
			h.osCalls.changeErr = errBoom

			task := checkTask(1000, gen)
			for i := 0; i < 50; i++ {
				h.enforcer.Execute(context.Background(), task)

				require.Equal(t, tt.status, h.status(t, 1000))
				next := h.sched.take()
				require.Len(t, next, 1)
				require.Equal(t, tt.want, next[0].task.Kind)
				require.Equal(t, time.Minute, next[0].delay)
				task = next[0].task
			}

			h.osCalls.changeErr = nil
			h.enforcer.Execute(context.Background(), task)
			assert.NotEqual(t, tt.status, h.status(t, 1000))
		})
	}
}

func TestEnforcer_TerminateFailureStaysLoginBlocked(t *testing.T) {
	h := newHarness(t, newAccount(domain.StatusLoginBlocked))
	h.blockAlways(t, 1000)
	gen := h.generation(t, 1000)
	h.sched.take()
	h.osCalls.terminateErr = errBoom

	h.enforcer.Execute(context.Background(), domain.Task{Kind: domain.TaskTerminateSession, Account: 1000, Generation: gen})

	assert.Equal(t, domain.StatusLoginBlocked, h.status(t, 1000))
	next := h.sched.take()
	require.Len(t, next, 1)
	assert.Equal(t, domain.TaskTerminateSession, next[0].task.Kind)
	assert.Equal(t, time.Minute, next[0].delay)
}

func TestEnforcer_DropsTaskForUnmanagedAccount(t *testing.T) {
	h := newHarness(t)

	h.enforcer.Execute(context.Background(), checkTask(4242, 1))

	assert.Empty(t, h.osCalls.changes)
	assert.Empty(t, h.sched.take())
}

func TestEnforcer_DropsSupersededChain(t *testing.T) {
	h := newHarness(t, newAccount(domain.StatusUnknown))

	h.enforcer.Execute(context.Background(), checkTask(1000, 0))

	assert.Empty(t, h.osCalls.changes)
	assert.Empty(t, h.sched.take())
	assert.Equal(t, domain.StatusUnknown, h.status(t, 1000))
}

func TestEnforcer_ChainRestartedDuringCall(t *testing.T) {
	h := newHarness(t, newAccount(domain.StatusUnknown))
	h.osCalls.onCall = func() {
		require.NoError(t, h.table.with(1000, func(a *domain.ManagedAccount) error {
			a.Generation++
			return nil
		}))
	}

	h.enforcer.Execute(context.Background(), checkTask(1000, 1))

	// The OS did change, so the status follows, but the old chain ends here.
	assert.Equal(t, domain.StatusAllowed, h.status(t, 1000))
	assert.Empty(t, h.sched.take())
}

// Unmanage waits for the running step, so it sees the account Allowed and
// has nothing to restore.
func TestEnforcer_UnmanageWaitsForRunningStep(t *testing.T) {
	h := newHarness(t, newAccount(domain.StatusUnknown))
	done := make(chan error, 1)
	h.osCalls.onCall = func() {
		h.osCalls.onCall = nil
		go func() { done <- h.service.UnmanageAccount(context.Background(), 1000) }()
	}

	h.enforcer.Execute(context.Background(), checkTask(1000, 1))
	require.NoError(t, <-done)

	assert.Zero(t, h.table.Len())
	assert.Equal(t, []passwordChange{{"alice", "real-password"}}, h.osCalls.changes)

	// The continuation left in the queue is dropped.
	next := h.sched.take()
	require.Len(t, next, 1)
	h.enforcer.Execute(context.Background(), next[0].task)
	assert.Empty(t, h.sched.take())
	assert.Len(t, h.osCalls.changes, 1)
}

func TestEnforcer_RemanagedAccountDropsOldChain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.ManageAccount(ctx, "alice", "real-password", 0)
	require.NoError(t, err)
	first := h.sched.take()
	require.Len(t, first, 1)
	oldTask := first[0].task

	require.NoError(t, h.service.UnmanageAccount(ctx, 1000))
	_, err = h.service.ManageAccount(ctx, "alice", "real-password", 0)
	require.NoError(t, err)
	second := h.sched.take()
	require.Len(t, second, 1)
	newTask := second[0].task
	assert.NotEqual(t, oldTask.Generation, newTask.Generation)

	h.enforcer.Execute(ctx, oldTask)
	assert.Empty(t, h.sched.take())

	h.enforcer.Execute(ctx, newTask)
	next := h.sched.take()
	require.Len(t, next, 1)
	assert.Equal(t, newTask.Generation, next[0].task.Generation)
}

func TestEnforcer_StatusPersistFailureStillTracksOS(t *testing.T) {
	h := newHarness(t, newAccount(domain.StatusUnknown))
	h.store.err = errBoom

	h.enforcer.Execute(context.Background(), checkTask(1000, 1))

	assert.Equal(t, domain.StatusAllowed, h.status(t, 1000))
	assert.Len(t, h.sched.take(), 1)
}

func TestEnforcer_DisabledAccountIsAllowed(t *testing.T) {
	a := newAccount(domain.StatusLoginBlockedAndSessionTerminated)
	a.Enabled = false
	h := newHarness(t, a)
	// An enabled policy with an always-effective rule, injected directly.
	p := policy.NewPolicy("always", h.clock.Now())
	require.True(t, p.Enabler.Increment(clock.Hour, h.clock.Now()))
	p.Rules = append(p.Rules, policy.NewRule(policy.AllTheTime{}))
	a.Regulation = policy.NewRegulation(p)

	h.enforcer.Execute(context.Background(), checkTask(1000, 1))

	assert.Equal(t, domain.StatusAllowed, h.status(t, 1000))
	assert.Equal(t, []passwordChange{{"alice", "real-password"}}, h.osCalls.changes)
}

func TestEnforcer_StaleStepFollowsCurrentDecision(t *testing.T) {
	// A queued BlockLogin retry whose policy ran out meanwhile allows instead.
	h := newHarness(t, newAccount(domain.StatusAllowed))

	h.enforcer.Execute(context.Background(), domain.Task{Kind: domain.TaskBlockLogin, Account: 1000, Generation: 1})

	assert.Empty(t, h.osCalls.changes)
	assert.Equal(t, domain.StatusAllowed, h.status(t, 1000))
	next := h.sched.take()
	require.Len(t, next, 1)
	assert.Equal(t, domain.TaskCheck, next[0].task.Kind)
}

func TestEnforcer_StartAll(t *testing.T) {
	bob := newAccount(domain.StatusUnknown)
	bob.UserID, bob.Username = 1001, "bob"
	h := newHarness(t, newAccount(domain.StatusUnknown), bob)

	h.enforcer.StartAll()

	tasks := h.sched.take()
	require.Len(t, tasks, 2)
	assert.Equal(t, checkTask(1000, 2), tasks[0].task)
	assert.Equal(t, checkTask(1001, 3), tasks[1].task)
}

func TestLoadAccountTable_ResetsStatus(t *testing.T) {
	store := newMemStore()
	a := newAccount(domain.StatusUnknown)
	require.NoError(t, store.AddAccount(context.Background(), a))
	store.statuses[a.UserID] = domain.StatusLoginBlockedAndSessionTerminated

	table, err := LoadAccountTable(context.Background(), store)
	require.NoError(t, err)

	snap, err := table.Snapshot(1000, clock.FromTime(monday))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnknown, snap.Status)
	assert.Equal(t, "alice", snap.Username)
}
