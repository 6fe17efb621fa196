package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as an unprivileged user; useful for trying the CLI,
	// but password changes will fail.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root under the init system.
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds default paths based on execution mode.
type ExecModeConfig struct {
	Mode       ExecMode
	DataDir    string // Where the encrypted store and its key live
	SocketPath string // Control API Unix socket
	LogFile    string // Daemon log file
	ConfigPath string // Default YAML config location
	IsRoot     bool   // Whether running as root
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:       ExecModeSystem,
			DataDir:    "/var/lib/discipline",
			SocketPath: "/run/discipline.sock",
			LogFile:    "/var/log/discipline.log",
			ConfigPath: "/etc/discipline/config.yaml",
			IsRoot:     true,
		}
	}
	return GetUserModeConfig()
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetUserModeConfig returns user mode config regardless of current euid.
// When running under sudo, uses SUDO_USER to get the invoking user's home directory.
func GetUserModeConfig() *ExecModeConfig {
	base := filepath.Join(GetRealUserHome(), ".discipline")
	return &ExecModeConfig{
		Mode:       ExecModeUser,
		DataDir:    filepath.Join(base, "data"),
		SocketPath: filepath.Join(base, "discipline.sock"),
		LogFile:    filepath.Join(base, "discipline.log"),
		ConfigPath: filepath.Join(base, "config.yaml"),
		IsRoot:     os.Geteuid() == 0, // Still track actual root status for permission operations
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
