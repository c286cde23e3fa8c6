// Command sysdbd runs the daemon: it loads a config file, builds the
// object store, starts whichever backend collectors and the metric
// store engine are configured, and serves queries over the frontend
// until a termination signal arrives. Adapted from the teacher's
// cmd/main.go, which wired storage/ingestion/dashboard/alerting instead
// of core/store/backend/frontend/alerting.
package main

import (
	"flag"
	"log"
	"os"

	"sysdb/alerting"
	"sysdb/backend"
	"sysdb/config"
	"sysdb/core/store"
	"sysdb/frontend"
	"sysdb/metricstore"
	"sysdb/service"
)

func main() {
	configPath := flag.String("config", "config/config.json", "Path to configuration file")
	installService := flag.Bool("install", false, "Install as a Windows service")
	uninstallService := flag.Bool("uninstall", false, "Uninstall the Windows service")
	startService := flag.Bool("start", false, "Start the Windows service")
	stopService := flag.Bool("stop", false, "Stop the Windows service")
	flag.Parse()

	if *installService {
		if err := service.RunServiceCommand(service.Install); err != nil {
			log.Fatalf("Failed to install service: %v", err)
		}
		return
	}
	if *uninstallService {
		if err := service.RunServiceCommand(service.Uninstall); err != nil {
			log.Fatalf("Failed to uninstall service: %v", err)
		}
		return
	}
	if *startService {
		if err := service.RunServiceCommand(service.Start); err != nil {
			log.Fatalf("Failed to start service: %v", err)
		}
		return
	}
	if *stopService {
		if err := service.RunServiceCommand(service.Stop); err != nil {
			log.Fatalf("Failed to stop service: %v", err)
		}
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogger()
	log.Printf("Starting %s...", cfg.Service.Name)

	objectStore := store.New()

	var mstore metricstore.Engine
	var engineType string
	if cfg.Metrics.Engine != nil {
		engineType = cfg.Metrics.Engine.Type
		mstore, err = metricstore.Open(cfg.Metrics.Engine, cfg.Metrics.DataPath)
		if err != nil {
			log.Fatalf("Failed to initialize metric store engine: %v", err)
		}
		defer mstore.Close()
	}

	backendManager, err := backend.NewManager(cfg.Backends, objectStore, engineType)
	if err != nil {
		log.Fatalf("Failed to initialize backends: %v", err)
	}
	defer backendManager.Close()

	frontendManager, err := frontend.NewManager(cfg.Frontend, objectStore, engineType)
	if err != nil {
		log.Fatalf("Failed to initialize frontend: %v", err)
	}
	defer frontendManager.Close()

	alertingManager, err := alerting.NewManager(cfg.Alerting, objectStore)
	if err != nil {
		log.Fatalf("Failed to initialize alerting: %v", err)
	}
	defer func() {
		if err := alertingManager.Stop(); err != nil {
			log.Printf("Error stopping alerting manager: %v", err)
		}
	}()

	if service.IsWindowsService() {
		if err := service.RunAsService(cfg, backendManager, frontendManager, alertingManager); err != nil {
			log.Fatalf("Failed to run as service: %v", err)
		}
		return
	}

	if err := backendManager.Start(); err != nil {
		log.Fatalf("Failed to start backends: %v", err)
	}
	if err := frontendManager.Start(); err != nil {
		log.Fatalf("Failed to start frontend: %v", err)
	}
	if err := alertingManager.Start(); err != nil {
		log.Fatalf("Failed to start alerting: %v", err)
	}

	service.WaitForShutdown(backendManager, frontendManager, alertingManager)
}

func setupLogger() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
