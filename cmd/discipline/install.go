package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/infra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and start the systemd service (root only)",
	Long: `Writes the systemd unit for this binary, then enables and starts it.
If the unit exists but points elsewhere it is rewritten and restarted.`,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the systemd service (root only)",
	RunE:  runUninstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	execMode := infra.DetectExecMode()
	if !execMode.IsRoot {
		return fmt.Errorf("install requires root (current mode: %s)", execMode.Mode)
	}
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	manager := infra.NewSystemdManager(execMode)
	switch {
	case manager.NeedsUpdate(execPath):
		if err := manager.Update(execPath); err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", manager.UnitPath())
	case manager.IsInstalled():
		fmt.Printf("%s is already installed\n", infra.ServiceName)
	default:
		if err := manager.Install(execPath); err != nil {
			return err
		}
		fmt.Printf("Installed %s\n", manager.UnitPath())
	}
	fmt.Printf("Config: %s\n", execMode.ConfigPath)
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	execMode := infra.DetectExecMode()
	if !execMode.IsRoot {
		return fmt.Errorf("uninstall requires root (current mode: %s)", execMode.Mode)
	}
	manager := infra.NewSystemdManager(execMode)
	if !manager.IsInstalled() {
		fmt.Printf("%s is not installed\n", infra.ServiceName)
		return nil
	}
	if err := manager.Uninstall(); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", manager.UnitPath())
	return nil
}
