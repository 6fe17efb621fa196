package infra

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

const (
	// ServiceName is the systemd unit name.
	ServiceName = "discipline.service"

	systemUnitDir = "/etc/systemd/system"
)

// Unit template. Restart=always keeps the daemon enforcing after a crash.
const unitTemplate = `[Unit]
Description=Discipline login regulation daemon
After=systemd-logind.service
Wants=systemd-logind.service

[Service]
Type=simple
ExecStart={{.ExecutablePath}} daemon --config {{.ConfigPath}}
Restart=always
RestartSec=10

[Install]
WantedBy=multi-user.target
`

type unitConfig struct {
	ExecutablePath string
	ConfigPath     string
}

// systemctlRunner runs systemctl with args.
type systemctlRunner func(args ...string) error

func runSystemctl(args ...string) error {
	out, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %v: %w: %s", args, err, bytes.TrimSpace(out))
	}
	return nil
}

// SystemdManager implements domain.ServiceManager.
type SystemdManager struct {
	unitDir    string
	unitPath   string
	configPath string
	systemctl  systemctlRunner
}

// NewSystemdManager creates a manager for the system unit directory.
func NewSystemdManager(config *ExecModeConfig) *SystemdManager {
	return newSystemdManager(systemUnitDir, config.ConfigPath, runSystemctl)
}

func newSystemdManager(unitDir, configPath string, systemctl systemctlRunner) *SystemdManager {
	return &SystemdManager{
		unitDir:    unitDir,
		unitPath:   filepath.Join(unitDir, ServiceName),
		configPath: configPath,
		systemctl:  systemctl,
	}
}

// generateUnitContent creates unit content for the given exec path.
func (m *SystemdManager) generateUnitContent(execPath string) ([]byte, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, unitConfig{ExecutablePath: execPath, ConfigPath: m.configPath}); err != nil {
		return nil, fmt.Errorf("failed to execute unit template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the unit, then enables and starts it.
func (m *SystemdManager) Install(execPath string) error {
	if err := os.MkdirAll(m.unitDir, 0755); err != nil {
		return err
	}
	if err := m.write(execPath); err != nil {
		return err
	}
	if err := m.systemctl("daemon-reload"); err != nil {
		return err
	}
	return m.systemctl("enable", "--now", ServiceName)
}

// Uninstall stops, disables and removes the unit.
func (m *SystemdManager) Uninstall() error {
	// Ignore errors if it was never enabled
	_ = m.systemctl("disable", "--now", ServiceName)

	if err := os.Remove(m.unitPath); err != nil {
		return err
	}
	return m.systemctl("daemon-reload")
}

// IsInstalled checks if the unit file exists.
func (m *SystemdManager) IsInstalled() bool {
	_, err := os.Stat(m.unitPath)
	return err == nil
}

// NeedsUpdate checks if the unit exists but has different content than expected.
func (m *SystemdManager) NeedsUpdate(execPath string) bool {
	if !m.IsInstalled() {
		return false // Doesn't exist, needs install not update
	}

	current, err := os.ReadFile(m.unitPath)
	if err != nil {
		return true // Can't read, assume needs update
	}
	expected, err := m.generateUnitContent(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

// Update rewrites the unit and restarts the service.
func (m *SystemdManager) Update(execPath string) error {
	if err := m.write(execPath); err != nil {
		return err
	}
	if err := m.systemctl("daemon-reload"); err != nil {
		return err
	}
	return m.systemctl("restart", ServiceName)
}

// UnitPath returns the unit file path.
func (m *SystemdManager) UnitPath() string {
	return m.unitPath
}

func (m *SystemdManager) write(execPath string) error {
	content, err := m.generateUnitContent(execPath)
	if err != nil {
		return fmt.Errorf("failed to generate unit content: %w", err)
	}
	return os.WriteFile(m.unitPath, content, 0644)
}

// Ensure SystemdManager implements domain.ServiceManager.
var _ domain.ServiceManager = (*SystemdManager)(nil)
