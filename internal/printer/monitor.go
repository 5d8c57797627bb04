package printer

import (
	"context"
	"fmt"
	"time"
)

// Monitor polls for printer hot-plug changes. When the printer that
// holds the active session disappears, the session is closed so the
// next send fails fast with ErrNotConnected instead of timing out.
type Monitor struct {
	manager  *Manager
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewMonitor creates a new printer monitor.
func NewMonitor(manager *Manager, interval time.Duration) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		manager:  manager,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins monitoring for printer changes.
func (m *Monitor) Start() {
	previous := make(map[string]*Printer)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.checkChanges(previous)
			}
		}
	}()
}

// Stop stops the monitor.
func (m *Monitor) Stop() {
	m.cancel()
}

func (m *Monitor) checkChanges(previous map[string]*Printer) {
	current, err := m.manager.DetectPrinters()
	if err != nil {
		fmt.Printf("Warning: printer detection failed: %v\n", err)
		return
	}

	currentMap := make(map[string]*Printer)
	for _, p := range current {
		currentMap[p.ID] = p
	}

	for id, printer := range currentMap {
		if _, exists := previous[id]; !exists {
			fmt.Printf("🟢 Printer added: %s\n", printer.Description)
			if m.manager.onPrinterAdded != nil {
				m.manager.onPrinterAdded(printer)
			}
		}
	}

	activeID := m.manager.ConnectedPrinterID()
	for id, printer := range previous {
		if _, exists := currentMap[id]; !exists {
			fmt.Printf("🔴 Printer removed: %s\n", printer.Description)
			if id == activeID {
				m.manager.Disconnect()
			}
			if m.manager.onPrinterRemoved != nil {
				m.manager.onPrinterRemoved(id)
			}
		}
	}

	for id := range previous {
		delete(previous, id)
	}
	for id, p := range currentMap {
		previous[id] = p
	}
}
