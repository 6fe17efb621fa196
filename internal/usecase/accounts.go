// Package usecase contains application business logic: the account table
// shared by the control API and the scheduler, the regulation service that
// mutates it, and the enforcer that drives OS accounts toward its decisions.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

var (
	ErrNoSuchAccount         = errors.New("no such account")
	ErrAccountAlreadyManaged = errors.New("account is already managed")
	ErrInvalidCheckInterval  = errors.New("check interval out of range")
	// ErrPasswordRestoreFailed means an account could not be released because
	// its real password could not be put back.
	ErrPasswordRestoreFailed = errors.New("could not restore the account password")
	// ErrInternal hides persistence failures from callers. The cause is logged.
	ErrInternal = errors.New("internal error")
)

// AccountTable owns every managed account. A single mutex guards the map and
// the account fields; a second, per-account lock serializes enforcement steps
// so two OS calls for one account never overlap.
//
// Generations are drawn from one counter for the table's lifetime, so a
// task left over from an earlier management of the same uid never matches.
type AccountTable struct {
	mu         sync.Mutex
	accounts   map[domain.AccountID]*accountSlot
	generation uint64
}

type accountSlot struct {
	account *domain.ManagedAccount
	opMu    sync.Mutex
}

// NewAccountTable builds a table from already loaded accounts.
func NewAccountTable(accounts ...*domain.ManagedAccount) *AccountTable {
	t := &AccountTable{accounts: make(map[domain.AccountID]*accountSlot, len(accounts))}
	for _, a := range accounts {
		t.accounts[a.UserID] = &accountSlot{account: a}
		if a.Generation > t.generation {
			t.generation = a.Generation
		}
	}
	return t
}

// nextGenerationLocked returns a generation no task has carried yet.
// Callers hold t.mu.
func (t *AccountTable) nextGenerationLocked() uint64 {
	t.generation++
	return t.generation
}

// LoadAccountTable reads every account from the store. Status is reset to
// Unknown because the OS may have changed while the daemon was down.
func LoadAccountTable(ctx context.Context, store domain.AccountStore) (*AccountTable, error) {
	accounts, err := store.FindAllAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	for _, a := range accounts {
		a.Status = domain.StatusUnknown
		a.Generation = 0
	}
	return NewAccountTable(accounts...), nil
}

// with runs fn on the account while holding the table lock.
func (t *AccountTable) with(id domain.AccountID, fn func(*domain.ManagedAccount) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot, ok := t.accounts[id]
	if !ok {
		return ErrNoSuchAccount
	}
	return fn(slot.account)
}

// insert runs persist and adds the account only if persist succeeded.
func (t *AccountTable) insert(a *domain.ManagedAccount, persist func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.accounts[a.UserID]; ok {
		return ErrAccountAlreadyManaged
	}
	if err := persist(); err != nil {
		return err
	}
	t.accounts[a.UserID] = &accountSlot{account: a}
	return nil
}

// remove runs check and persist under the lock, then drops the account.
func (t *AccountTable) remove(id domain.AccountID, check func(*domain.ManagedAccount) error, persist func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot, ok := t.accounts[id]
	if !ok {
		return ErrNoSuchAccount
	}
	if err := check(slot.account); err != nil {
		return err
	}
	if err := persist(); err != nil {
		return err
	}
	delete(t.accounts, id)
	return nil
}

// lockOps acquires the per-account operation lock. It reports false when the
// account is not managed.
func (t *AccountTable) lockOps(id domain.AccountID) (unlock func(), ok bool) {
	t.mu.Lock()
	slot, ok := t.accounts[id]
	t.mu.Unlock()
	if !ok {
		return nil, false
	}
	slot.opMu.Lock()
	return slot.opMu.Unlock, true
}

// IDs returns the managed account ids in ascending order.
func (t *AccountTable) IDs() []domain.AccountID {
	t.mu.Lock()
	ids := make([]domain.AccountID, 0, len(t.accounts))
	for id := range t.accounts {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of managed accounts.
func (t *AccountTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.accounts)
}

// Snapshot copies one account as seen at now.
func (t *AccountTable) Snapshot(id domain.AccountID, now clock.DateTime) (domain.AccountSnapshot, error) {
	var snap domain.AccountSnapshot
	err := t.with(id, func(a *domain.ManagedAccount) error {
		snap = a.Snapshot(now)
		return nil
	})
	return snap, err
}

// Snapshots copies every account, ordered by user id.
func (t *AccountTable) Snapshots(now clock.DateTime) []domain.AccountSnapshot {
	t.mu.Lock()
	out := make([]domain.AccountSnapshot, 0, len(t.accounts))
	for _, slot := range t.accounts {
		out = append(out, slot.account.Snapshot(now))
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
