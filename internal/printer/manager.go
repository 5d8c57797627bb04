package printer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/itrackpos/pos-engine/internal/registry"
)

// Manager handles printer detection and owns the single active
// session. Connecting to a printer closes any previous session before
// opening the new one.
type Manager struct {
	registry    *registry.Registry
	printers    map[string]*Printer
	mu          sync.RWMutex
	sendTimeout time.Duration

	sessionMu sync.Mutex
	session   *Session
	activeID  string

	// Event callbacks
	onPrinterAdded   func(*Printer)
	onPrinterRemoved func(string)
}

// Printer represents a detected printer.
type Printer struct {
	ID          string
	Type        string // usb, serial, network
	Description string
	Device      string
	VID         uint16
	PID         uint16
	Host        string
	Port        int
	Name        string // Custom user-set name
	Connected   bool
}

// NewManager creates a new printer manager backed by a device
// registry file.
func NewManager(registryPath string, sendTimeout time.Duration) (*Manager, error) {
	reg, err := registry.New(registryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}

	return &Manager{
		registry:    reg,
		printers:    make(map[string]*Printer),
		sendTimeout: sendTimeout,
	}, nil
}

// DetectPrinters scans for all available printers.
func (m *Manager) DetectPrinters() ([]*Printer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var printers []*Printer

	usbPrinters, err := m.detectUSB()
	if err != nil {
		fmt.Printf("Warning: USB detection failed: %v\n", err)
	} else {
		printers = append(printers, usbPrinters...)
	}

	serialPrinters := m.detectSerial()
	printers = append(printers, serialPrinters...)

	// Network printers are added manually and survive rescans.
	for _, p := range m.printers {
		if p.Type == "network" {
			printers = append(printers, p)
		}
	}

	activeID := m.ConnectedPrinterID()

	m.printers = make(map[string]*Printer)
	for _, p := range printers {
		p.Connected = p.ID == activeID
		m.printers[p.ID] = p
	}

	return printers, nil
}

// GetPrinter returns a printer by ID, or nil.
func (m *Manager) GetPrinter(id string) *Printer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.printers[id]
}

// GetAllPrinters returns all detected printers.
func (m *Manager) GetAllPrinters() []*Printer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Printer, 0, len(m.printers))
	for _, p := range m.printers {
		result = append(result, p)
	}
	return result
}

// SetPrinterName sets a custom name for a printer.
func (m *Manager) SetPrinterName(id string, name string) bool {
	success := m.registry.SetDeviceName(id, name)

	if success {
		m.mu.Lock()
		if printer, exists := m.printers[id]; exists {
			printer.Name = name
		}
		m.mu.Unlock()
	}

	return success
}

// AddNetworkPrinter manually registers a network printer.
func (m *Manager) AddNetworkPrinter(host string, port int, description string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if port <= 0 {
		port = DefaultNetworkPort
	}
	if description == "" {
		description = fmt.Sprintf("Network: %s:%d", host, port)
	}

	info := registry.DeviceInfo{
		Transport:   "network",
		Host:        host,
		TCPPort:     port,
		Description: description,
	}

	id := m.registry.DeviceID(info)

	m.printers[id] = &Printer{
		ID:          id,
		Type:        "network",
		Description: description,
		Host:        host,
		Port:        port,
		Name:        m.registry.DeviceName(id),
	}

	return id
}

// Connect opens a session to the given printer, closing any previous
// session first. On failure no session remains open.
func (m *Manager) Connect(ctx context.Context, printerID string) (*Session, error) {
	p := m.GetPrinter(printerID)
	if p == nil {
		return nil, fmt.Errorf("%w: unknown printer %q", ErrNoDeviceSelected, printerID)
	}

	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if m.session != nil {
		m.session.Close()
		m.session = nil
		m.activeID = ""
	}

	var (
		s   *Session
		err error
	)
	switch p.Type {
	case "usb":
		s, err = openSession(ctx, NewUSBTransport(p.VID, p.PID), m.sendTimeout)
	case "serial":
		s, err = NewSerialSession(p.Device, DefaultBaudRate, m.sendTimeout)
	case "network":
		s, err = NewNetworkSession(p.Host, p.Port, m.sendTimeout)
	default:
		return nil, fmt.Errorf("%w: transport %q", ErrUnsupportedTransport, p.Type)
	}
	if err != nil {
		return nil, err
	}

	m.session = s
	m.activeID = printerID
	fmt.Printf("🖨️  Connected to %s\n", p.Description)
	return s, nil
}

// Send transmits one encoded document over the active session.
func (m *Manager) Send(ctx context.Context, data []byte) error {
	m.sessionMu.Lock()
	s := m.session
	m.sessionMu.Unlock()

	if s == nil {
		return ErrNotConnected
	}
	return s.Send(ctx, data)
}

// Disconnect closes the active session, if any.
func (m *Manager) Disconnect() error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	m.activeID = ""
	return err
}

// ConnectedPrinterID returns the ID of the printer with the active
// session, or "".
func (m *Manager) ConnectedPrinterID() string {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if m.session == nil || !m.session.IsOpen() {
		return ""
	}
	return m.activeID
}

// OnPrinterAdded sets a callback for when a printer appears.
func (m *Manager) OnPrinterAdded(callback func(*Printer)) {
	m.onPrinterAdded = callback
}

// OnPrinterRemoved sets a callback for when a printer disappears.
func (m *Manager) OnPrinterRemoved(callback func(string)) {
	m.onPrinterRemoved = callback
}

// detectUSB detects printer-class USB devices using libusb.
func (m *Manager) detectUSB() ([]*Printer, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var printers []*Printer

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return isPrinterClass(desc)
	})
	if err != nil {
		for _, dev := range devices {
			dev.Close()
		}
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	for _, dev := range devices {
		desc := dev.Desc

		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		description := fmt.Sprintf("USB: %04X:%04X", desc.Vendor, desc.Product)
		if manufacturer != "" || product != "" {
			description = fmt.Sprintf("USB: %s %s (%04X:%04X)",
				manufacturer, product, desc.Vendor, desc.Product)
		}

		info := registry.DeviceInfo{
			Transport:   "usb",
			VID:         uint16(desc.Vendor),
			PID:         uint16(desc.Product),
			Description: description,
		}

		id := m.registry.DeviceID(info)

		printers = append(printers, &Printer{
			ID:          id,
			Type:        "usb",
			Description: description,
			VID:         uint16(desc.Vendor),
			PID:         uint16(desc.Product),
			Name:        m.registry.DeviceName(id),
		})
		dev.Close()
	}

	return printers, nil
}

// detectSerial detects serial printers by probing candidate ports.
func (m *Manager) detectSerial() []*Printer {
	var printers []*Printer

	for _, portPath := range scanSerialPorts() {
		description := fmt.Sprintf("Serial: %s", filepath.Base(portPath))

		info := registry.DeviceInfo{
			Transport:   "serial",
			Port:        portPath,
			Description: description,
		}

		id := m.registry.DeviceID(info)

		printers = append(printers, &Printer{
			ID:          id,
			Type:        "serial",
			Description: description,
			Device:      portPath,
			Name:        m.registry.DeviceName(id),
		})
	}

	return printers
}
