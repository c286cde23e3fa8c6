//go:build !windows
// +build !windows

package service

import (
	"fmt"
	"log"

	"sysdb/alerting"
	"sysdb/backend"
	"sysdb/config"
	"sysdb/frontend"
)

const serviceName = "SysDBService"

// IsWindowsService always returns false on non-Windows platforms.
func IsWindowsService() bool {
	return false
}

// RunAsService starts the daemon as a regular process on non-Windows
// platforms, since there is no native service manager to hand control to.
func RunAsService(
	cfg *config.Config,
	backendManager *backend.Manager,
	frontendManager *frontend.Manager,
	alertingManager *alerting.Manager,
) error {
	log.Printf("Starting %s as a regular process on Unix-like platform...", cfg.Service.Name)

	if err := backendManager.Start(); err != nil {
		return fmt.Errorf("failed to start backends: %w", err)
	}
	if err := frontendManager.Start(); err != nil {
		backendManager.Stop()
		return fmt.Errorf("failed to start frontend: %w", err)
	}
	if err := alertingManager.Start(); err != nil {
		frontendManager.Stop()
		backendManager.Stop()
		return fmt.Errorf("failed to start alerting: %w", err)
	}

	WaitForShutdown(backendManager, frontendManager, alertingManager)
	return nil
}

// ServiceCommand is used to specify which service command to run.
type ServiceCommand int

const (
	Install ServiceCommand = iota
	Uninstall
	Start
	Stop
)

// RunServiceCommand returns an error for every command on non-Windows
// platforms.
func RunServiceCommand(cmd ServiceCommand) error {
	switch cmd {
	case Install:
		return fmt.Errorf("service installation not supported on non-Windows platforms")
	case Uninstall:
		return fmt.Errorf("service uninstallation not supported on non-Windows platforms")
	case Start:
		return fmt.Errorf("service start not supported on non-Windows platforms")
	case Stop:
		return fmt.Errorf("service stop not supported on non-Windows platforms")
	default:
		return fmt.Errorf("unknown service command: %d", cmd)
	}
}
