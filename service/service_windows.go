//go:build windows
// +build windows

package service

import (
	"fmt"
	"log"
	"os"
	"sync"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/debug"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"

	"sysdb/alerting"
	"sysdb/backend"
	"sysdb/config"
	"sysdb/frontend"
)

const serviceName = "SysDBService"

// Service implements the Windows service interface.
type Service struct {
	cfg             *config.Config
	backendManager  *backend.Manager
	frontendManager *frontend.Manager
	alertingManager *alerting.Manager
	stopChan        chan struct{}
	wg              sync.WaitGroup
	isRunning       bool
	elog            debug.Log
}

// IsWindowsService checks if the process is running as a Windows service.
func IsWindowsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		log.Printf("Failed to determine if running as service: %v", err)
		return false
	}
	return isService
}

// RunAsService starts the daemon as a Windows service.
func RunAsService(
	cfg *config.Config,
	backendManager *backend.Manager,
	frontendManager *frontend.Manager,
	alertingManager *alerting.Manager,
) error {
	s := &Service{
		cfg:             cfg,
		backendManager:  backendManager,
		frontendManager: frontendManager,
		alertingManager: alertingManager,
		stopChan:        make(chan struct{}),
	}

	var err error
	s.elog, err = eventlog.Open(serviceName)
	if err != nil {
		s.elog = debug.New(serviceName)
	}

	return svc.Run(serviceName, s)
}

// Execute is called by the Windows service manager when the service starts.
func (s *Service) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown
	changes <- svc.Status{State: svc.StartPending}

	if err := s.start(); err != nil {
		s.elog.Error(1, fmt.Sprintf("Failed to start service: %v", err))
		changes <- svc.Status{State: svc.Stopped}
		return false, 1
	}

	changes <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}

	for {
		select {
		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
			case svc.Stop, svc.Shutdown:
				changes <- svc.Status{State: svc.StopPending}
				s.stop()
				changes <- svc.Status{State: svc.Stopped}
				return false, 0
			default:
				s.elog.Error(1, fmt.Sprintf("Unexpected control request #%d", c))
			}
		}
	}
}

func (s *Service) start() error {
	s.elog.Info(1, "Starting SysDB service")

	if err := s.backendManager.Start(); err != nil {
		return fmt.Errorf("failed to start backends: %w", err)
	}

	if err := s.frontendManager.Start(); err != nil {
		s.backendManager.Stop()
		return fmt.Errorf("failed to start frontend: %w", err)
	}

	if err := s.alertingManager.Start(); err != nil {
		s.frontendManager.Stop()
		s.backendManager.Stop()
		return fmt.Errorf("failed to start alerting: %w", err)
	}

	s.isRunning = true
	return nil
}

func (s *Service) stop() {
	if !s.isRunning {
		return
	}

	s.elog.Info(1, "Stopping SysDB service")

	s.alertingManager.Stop()
	s.frontendManager.Stop()
	s.backendManager.Stop()

	s.isRunning = false
}

// InstallService installs the Windows service.
func InstallService(execPath string) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.CreateService(
		serviceName,
		execPath,
		mgr.Config{
			DisplayName: "SysDB Object Database Service",
			Description: "In-memory hierarchical object database with a matcher-based query frontend",
			StartType:   mgr.StartAutomatic,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer s.Close()

	err = eventlog.InstallAsEventCreate(serviceName, eventlog.Error|eventlog.Warning|eventlog.Info)
	if err != nil {
		s.Delete()
		return fmt.Errorf("failed to setup event log: %w", err)
	}

	log.Printf("Service %s installed successfully", serviceName)
	return nil
}

// UninstallService uninstalls the Windows service.
func UninstallService() error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer s.Close()

	err = s.Delete()
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}

	err = eventlog.Remove(serviceName)
	if err != nil {
		log.Printf("Failed to remove event log: %v", err)
	}

	log.Printf("Service %s uninstalled successfully", serviceName)
	return nil
}

// StartService starts the Windows service.
func StartService() error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer s.Close()

	err = s.Start()
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	log.Printf("Service %s started successfully", serviceName)
	return nil
}

// StopService stops the Windows service.
func StopService() error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer s.Close()

	status, err := s.Control(svc.Stop)
	if err != nil {
		return fmt.Errorf("failed to send stop control: %w", err)
	}

	log.Printf("Service %s is stopping (current status: %v)", serviceName, status.State)
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

// RunServiceCommand runs the specified service command.
func RunServiceCommand(cmd ServiceCommand) error {
	switch cmd {
	case Install:
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		return InstallService(execPath)
	case Uninstall:
		return UninstallService()
	case Start:
		return StartService()
	case Stop:
		return StopService()
	default:
		return fmt.Errorf("unknown service command: %d", cmd)
	}
}
