// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

// ErrInjected is returned by FakeOperatingSystem while failures are injected.
var ErrInjected = errors.New("injected OS failure")

// FakeOperatingSystem is an in-memory account database standing in for
// chpasswd, loginctl and the passwd database.
type FakeOperatingSystem struct {
	mu              sync.Mutex
	users           map[domain.AccountID]string
	passwords       map[string]string
	loggedIn        map[string]bool
	terminations    map[string]int
	failNextChanges int
}

// NewFakeOperatingSystem creates an OS with no users.
func NewFakeOperatingSystem() *FakeOperatingSystem {
	return &FakeOperatingSystem{
		users:        make(map[domain.AccountID]string),
		passwords:    make(map[string]string),
		loggedIn:     make(map[string]bool),
		terminations: make(map[string]int),
	}
}

// AddUser creates a logged-in user with password.
func (f *FakeOperatingSystem) AddUser(uid domain.AccountID, username, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[uid] = username
	f.passwords[username] = password
	f.loggedIn[username] = true
}

// Login marks username as having a session again.
func (f *FakeOperatingSystem) Login(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn[username] = true
}

// FailNextPasswordChanges makes the next n password changes fail.
func (f *FakeOperatingSystem) FailNextPasswordChanges(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNextChanges = n
}

// Password returns the current password of username.
func (f *FakeOperatingSystem) Password(username string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passwords[username]
}

// LoggedIn reports whether username has a session.
func (f *FakeOperatingSystem) LoggedIn(username string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn[username]
}

// Terminations counts the session terminations of username.
func (f *FakeOperatingSystem) Terminations(username string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminations[username]
}

// ChangePassword implements domain.OperatingSystemCalls.
func (f *FakeOperatingSystem) ChangePassword(_ context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextChanges > 0 {
		f.failNextChanges--
		return ErrInjected
	}
	if _, ok := f.passwords[username]; !ok {
		return domain.ErrNotFound
	}
	f.passwords[username] = password
	return nil
}

// TerminateSession implements domain.OperatingSystemCalls.
func (f *FakeOperatingSystem) TerminateSession(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn[username] = false
	f.terminations[username]++
	return nil
}

// LookupAccount implements domain.OperatingSystemCalls.
func (f *FakeOperatingSystem) LookupAccount(_ context.Context, idOrName string) (*domain.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for uid, name := range f.users {
		if name == idOrName || strconv.FormatUint(uint64(uid), 10) == idOrName {
			return &domain.AccountInfo{UserID: uid, Username: name, HomeDir: "/home/" + name}, nil
		}
	}
	return nil, domain.ErrNotFound
}

var _ domain.OperatingSystemCalls = (*FakeOperatingSystem)(nil)
