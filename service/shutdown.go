package service

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"sysdb/alerting"
	"sysdb/backend"
	"sysdb/frontend"
)

// WaitForShutdown blocks until SIGINT or SIGTERM arrives, then stops every
// manager in reverse start order. Shared by cmd/sysdbd's regular-process
// path and the non-Windows RunAsService; the Windows service path stops
// its managers from Service.Execute instead.
func WaitForShutdown(backendManager *backend.Manager, frontendManager *frontend.Manager, alertingManager *alerting.Manager) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal: %v. Shutting down...", sig)

	alertingManager.Stop()
	frontendManager.Stop()
	backendManager.Stop()

	log.Println("Shutdown complete.")
}
