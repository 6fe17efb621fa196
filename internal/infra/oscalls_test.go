package infra

import (
	"context"
	"os/user"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

type recordedCommand struct {
	stdin string
	name  string
	args  []string
}

func newTestOSCalls(runErr error, strategies ...domain.SessionTerminationStrategy) (*LinuxOSCalls, *[]recordedCommand) {
	var commands []recordedCommand
	c := &LinuxOSCalls{
		chpasswdPath: "/usr/sbin/chpasswd",
		sessions:     NewStrategyManagerWith(zap.NewNop(), strategies...),
		logger:       zap.NewNop(),
		run: func(_ context.Context, stdin string, name string, args ...string) error {
			commands = append(commands, recordedCommand{stdin: stdin, name: name, args: args})
			return runErr
		},
	}
	return c, &commands
}

func TestLinuxOSCalls_ChangePassword(t *testing.T) {
	c, commands := newTestOSCalls(nil)

	require.NoError(t, c.ChangePassword(context.Background(), "alice", "s3cret pass"))

	require.Len(t, *commands, 1)
	assert.Equal(t, "/usr/sbin/chpasswd", (*commands)[0].name)
	assert.Equal(t, "alice:s3cret pass\n", (*commands)[0].stdin)
	assert.Empty(t, (*commands)[0].args)
}

func TestLinuxOSCalls_ChangePasswordRejectsInjection(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "pw"},
		{"colon in username", "ali:ce", "pw"},
		{"newline in username", "alice\nroot", "pw"},
		{"newline in password", "alice", "pw\nroot:pw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, commands := newTestOSCalls(nil)

			err := c.ChangePassword(context.Background(), tt.username, tt.password)

			assert.ErrorIs(t, err, ErrInvalidCredential)
			assert.Empty(t, *commands)
		})
	}
}

func TestLinuxOSCalls_ChangePasswordFailure(t *testing.T) {
	c, _ := newTestOSCalls(errTest)

	err := c.ChangePassword(context.Background(), "alice", "pw")

	assert.ErrorIs(t, err, errTest)
	assert.Contains(t, err.Error(), "alice")
}

func TestLinuxOSCalls_TerminateSession(t *testing.T) {
	t.Run("uses the first working strategy", func(t *testing.T) {
		broken := &mockStrategy{name: "loginctl", available: true, err: errTest}
		kill := &mockStrategy{name: "kill", available: true}
		c, _ := newTestOSCalls(nil, broken, kill)

		require.NoError(t, c.TerminateSession(context.Background(), "alice"))
		assert.Equal(t, []string{"alice"}, broken.calls)
		assert.Equal(t, []string{"alice"}, kill.calls)
	})

	t.Run("no strategy", func(t *testing.T) {
		c, _ := newTestOSCalls(nil)

		assert.ErrorIs(t, c.TerminateSession(context.Background(), "alice"), ErrNoTerminationStrategy)
	})
}

func TestLinuxOSCalls_LookupAccount(t *testing.T) {
	current, err := user.Current()
	require.NoError(t, err)
	uid, err := strconv.ParseUint(current.Uid, 10, 32)
	require.NoError(t, err)
	c, _ := newTestOSCalls(nil)

	for _, input := range []string{current.Uid, current.Username} {
		t.Run(input, func(t *testing.T) {
			info, err := c.LookupAccount(context.Background(), input)

			require.NoError(t, err)
			assert.Equal(t, domain.AccountID(uid), info.UserID)
			assert.Equal(t, current.Username, info.Username)
			assert.Equal(t, current.HomeDir, info.HomeDir)
		})
	}

	t.Run("unknown user", func(t *testing.T) {
		_, err := c.LookupAccount(context.Background(), "no-such-user-for-discipline-tests")
		assert.Error(t, err)
	})
}
