package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

// ErrInvalidCredential rejects usernames or passwords chpasswd cannot carry.
var ErrInvalidCredential = errors.New("username or password contains a forbidden character")

// commandRunner runs name with args, feeding stdin.
type commandRunner func(ctx context.Context, stdin string, name string, args ...string) error

func runCommand(ctx context.Context, stdin string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// LinuxOSCalls implements domain.OperatingSystemCalls with chpasswd,
// the session strategies and the os/user account database.
type LinuxOSCalls struct {
	chpasswdPath string
	sessions     *StrategyManager
	run          commandRunner
	logger       *zap.Logger
}

// NewLinuxOSCalls creates OS calls that end sessions through sessions.
func NewLinuxOSCalls(sessions *StrategyManager, logger *zap.Logger) *LinuxOSCalls {
	path, err := exec.LookPath("chpasswd")
	if err != nil {
		path = "/usr/sbin/chpasswd"
	}
	return &LinuxOSCalls{
		chpasswdPath: path,
		sessions:     sessions,
		run:          runCommand,
		logger:       logger,
	}
}

// ChangePassword pipes "username:password" into chpasswd. Setting the
// same password twice is harmless, so the call can be retried freely.
func (c *LinuxOSCalls) ChangePassword(ctx context.Context, username, password string) error {
	if username == "" || strings.ContainsAny(username, ":\n") || strings.ContainsAny(password, "\n") {
		return ErrInvalidCredential
	}
	if err := c.run(ctx, username+":"+password+"\n", c.chpasswdPath); err != nil {
		return fmt.Errorf("change password of %s: %w", username, err)
	}
	return nil
}

// TerminateSession ends every session of username.
func (c *LinuxOSCalls) TerminateSession(ctx context.Context, username string) error {
	strategy, err := c.sessions.TerminateSession(ctx, username)
	if err != nil {
		return fmt.Errorf("terminate sessions of %s: %w", username, err)
	}
	c.logger.Debug("sessions terminated",
		zap.String("username", username),
		zap.String("strategy", strategy))
	return nil
}

// LookupAccount resolves a numeric uid or a username.
func (c *LinuxOSCalls) LookupAccount(_ context.Context, idOrName string) (*domain.AccountInfo, error) {
	var (
		u   *user.User
		err error
	)
	if _, perr := strconv.ParseUint(idOrName, 10, 32); perr == nil {
		u, err = user.LookupId(idOrName)
	} else {
		u, err = user.Lookup(idOrName)
	}
	if err != nil {
		return nil, err
	}
	return accountInfoFromUser(u)
}

func accountInfoFromUser(u *user.User) (*domain.AccountInfo, error) {
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("non-numeric uid %q for %s", u.Uid, u.Username)
	}
	return &domain.AccountInfo{
		UserID:   domain.AccountID(uid),
		Username: u.Username,
		HomeDir:  u.HomeDir,
	}, nil
}

// Ensure LinuxOSCalls implements domain.OperatingSystemCalls.
var _ domain.OperatingSystemCalls = (*LinuxOSCalls)(nil)
