package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

// ErrNoTerminationStrategy is returned when no strategy is available on this host.
var ErrNoTerminationStrategy = errors.New("no session termination strategy available")

// LoginctlStrategy ends sessions through systemd-logind.
type LoginctlStrategy struct {
	loginctlPath string
}

// NewLoginctlStrategy creates a loginctl strategy
func NewLoginctlStrategy() *LoginctlStrategy {
	path, err := exec.LookPath("loginctl")
	if err != nil {
		// Try common locations
		for _, candidate := range []string{"/usr/bin/loginctl", "/bin/loginctl"} {
			if _, err := exec.LookPath(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	return &LoginctlStrategy{loginctlPath: path}
}

func (l *LoginctlStrategy) Name() string {
	return "loginctl"
}

func (l *LoginctlStrategy) IsAvailable() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	return l.loginctlPath != ""
}

// Terminate runs `loginctl terminate-user <username>`. A user without
// sessions counts as terminated.
func (l *LoginctlStrategy) Terminate(ctx context.Context, username string) error {
	cmd := exec.CommandContext(ctx, l.loginctlPath, "terminate-user", username)
	cmd.Stdin = nil
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if strings.Contains(msg, "is not logged in") || strings.Contains(msg, "No such user") {
			return nil
		}
		return fmt.Errorf("loginctl terminate-user %s: %w: %s", username, err, strings.TrimSpace(msg))
	}
	return nil
}

// ProcessKillStrategy ends sessions by killing every process the user owns.
type ProcessKillStrategy struct {
	processManager domain.ProcessManager
}

// NewProcessKillStrategy creates a strategy on top of pm.
func NewProcessKillStrategy(pm domain.ProcessManager) *ProcessKillStrategy {
	return &ProcessKillStrategy{processManager: pm}
}

func (p *ProcessKillStrategy) Name() string {
	return "kill"
}

func (p *ProcessKillStrategy) IsAvailable() bool {
	return p.processManager != nil
}

// Terminate kills the user's processes. Processes that exit on their own
// while being killed are not errors.
func (p *ProcessKillStrategy) Terminate(ctx context.Context, username string) error {
	pids, err := p.processManager.FindByUser(username)
	if err != nil {
		return fmt.Errorf("list processes of %s: %w", username, err)
	}
	var errs []error
	for _, pid := range pids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.processManager.Kill(pid); err != nil && p.processManager.IsRunning(pid) {
			errs = append(errs, fmt.Errorf("kill %d: %w", pid, err))
		}
	}
	return errors.Join(errs...)
}

// StrategyManager tries session termination strategies in order.
type StrategyManager struct {
	strategies []domain.SessionTerminationStrategy
	logger     *zap.Logger
}

// NewStrategyManager creates a manager with the strategies available on this
// host: loginctl first, then killing the user's processes.
func NewStrategyManager(pm domain.ProcessManager, logger *zap.Logger) *StrategyManager {
	return NewStrategyManagerWith(logger, NewLoginctlStrategy(), NewProcessKillStrategy(pm))
}

// NewStrategyManagerWith keeps the available strategies among candidates, in order.
func NewStrategyManagerWith(logger *zap.Logger, candidates ...domain.SessionTerminationStrategy) *StrategyManager {
	sm := &StrategyManager{logger: logger}
	for _, s := range candidates {
		if s.IsAvailable() {
			sm.strategies = append(sm.strategies, s)
		}
	}
	return sm
}

// GetStrategies returns all available strategies
func (sm *StrategyManager) GetStrategies() []domain.SessionTerminationStrategy {
	return sm.strategies
}

// TerminateSession tries each strategy until one succeeds.
// Returns the strategy name that succeeded.
func (sm *StrategyManager) TerminateSession(ctx context.Context, username string) (string, error) {
	if len(sm.strategies) == 0 {
		return "", ErrNoTerminationStrategy
	}
	var errs []error
	for _, strategy := range sm.strategies {
		if err := strategy.Terminate(ctx, username); err != nil {
			sm.logger.Debug("session termination strategy failed",
				zap.String("strategy", strategy.Name()),
				zap.String("username", username),
				zap.Error(err))
			errs = append(errs, err)
			continue // Try next strategy
		}
		return strategy.Name(), nil
	}
	return "", errors.Join(errs...)
}

// Ensure implementations satisfy interfaces
var _ domain.SessionTerminationStrategy = (*LoginctlStrategy)(nil)
var _ domain.SessionTerminationStrategy = (*ProcessKillStrategy)(nil)
