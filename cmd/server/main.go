package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/itrackpos/pos-engine/internal/api"
	"github.com/itrackpos/pos-engine/internal/config"
	"github.com/itrackpos/pos-engine/internal/printer"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	cfg := config.Load()

	manager, err := printer.NewManager(cfg.RegistryPath, cfg.SendTimeout)
	if err != nil {
		log.Fatalf("Failed to create printer manager: %v", err)
	}

	printers, err := manager.DetectPrinters()
	if err != nil {
		log.Printf("Warning: printer detection failed: %v", err)
	}

	queue := printer.NewPrintQueue(manager)
	defer queue.Stop()

	monitor := printer.NewMonitor(manager, cfg.MonitorEvery)

	server := api.NewServer(manager, queue)

	// Hot-plug events go out over the websocket.
	manager.OnPrinterAdded(server.BroadcastPrinterAdded)
	manager.OnPrinterRemoved(server.BroadcastPrinterRemoved)

	monitor.Start()
	defer monitor.Stop()

	fmt.Printf("🖨️  POS engine %s starting...\n", Version)
	if len(printers) > 0 {
		fmt.Printf("✅ Found %d printer(s)\n", len(printers))
	}

	serverErrChan := make(chan error, 1)
	go func() {
		fmt.Printf("🚀 Starting API server on %s\n", cfg.ServerAddress)
		if err := server.Run(cfg.ServerAddress); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrChan:
		log.Fatalf("Server error: %v", err)
	case <-sigChan:
		fmt.Println("🛑 Shutting down...")
		manager.Disconnect()
	}
}
