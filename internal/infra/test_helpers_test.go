package infra

import (
	"context"
	"errors"
	"sync"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	mu          sync.Mutex
	owners      map[int]string
	runningPIDs map[int]bool
	killedPIDs  []int
	killErr     map[int]error
	findErr     error
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		owners:      make(map[int]string),
		runningPIDs: make(map[int]bool),
		killErr:     make(map[int]error),
	}
}

func (m *mockProcessManager) FindByUser(username string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var pids []int
	for pid, owner := range m.owners {
		if owner == username && m.runningPIDs[pid] {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (m *mockProcessManager) Kill(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.killErr[pid]; err != nil {
		return err
	}
	m.killedPIDs = append(m.killedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningPIDs[pid]
}

// SetRunning registers a running process owned by username.
func (m *mockProcessManager) SetRunning(pid int, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[pid] = username
	m.runningPIDs[pid] = true
}

// mockStrategy is a test double for domain.SessionTerminationStrategy
type mockStrategy struct {
	name      string
	available bool
	err       error
	calls     []string
}

func (s *mockStrategy) Name() string      { return s.name }
func (s *mockStrategy) IsAvailable() bool { return s.available }

func (s *mockStrategy) Terminate(_ context.Context, username string) error {
	s.calls = append(s.calls, username)
	return s.err
}

// mockSecretStore is a test double for domain.SecretStore
type mockSecretStore struct {
	secrets map[string]string
	getErr  error
	setErr  error
}

func newMockSecretStore() *mockSecretStore {
	return &mockSecretStore{secrets: make(map[string]string)}
}

func (s *mockSecretStore) GetSecret(key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.secrets[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (s *mockSecretStore) SetSecret(key, value string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.secrets[key] = value
	return nil
}

var errTest = errors.New("test error")

var (
	_ domain.ProcessManager             = (*mockProcessManager)(nil)
	_ domain.SessionTerminationStrategy = (*mockStrategy)(nil)
	_ domain.SecretStore                = (*mockSecretStore)(nil)
)
