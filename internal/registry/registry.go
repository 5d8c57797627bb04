// Package registry persists device identities and operator-assigned
// names across restarts, keyed by transport-specific identity.
package registry

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Registry maps physical devices to stable IDs and custom names.
type Registry struct {
	filePath string
	data     map[string]*DeviceEntry
	mu       sync.RWMutex
}

// DeviceEntry stores persistent information about one device.
type DeviceEntry struct {
	ID          string `json:"id"`
	IdentityKey string `json:"identity_key"`
	Transport   string `json:"transport"` // usb, serial, network
	VID         uint16 `json:"vid,omitempty"`
	PID         uint16 `json:"pid,omitempty"`
	Port        string `json:"port,omitempty"`
	Host        string `json:"host,omitempty"`
	TCPPort     int    `json:"tcp_port,omitempty"`
	Description string `json:"description"`
	Name        string `json:"name,omitempty"` // operator-assigned
}

// DeviceInfo identifies a detected device for registration.
type DeviceInfo struct {
	Transport   string
	Description string
	Port        string
	VID         uint16
	PID         uint16
	Host        string
	TCPPort     int
}

// New loads or creates a registry backed by the given file.
func New(filePath string) (*Registry, error) {
	r := &Registry{
		filePath: filePath,
		data:     make(map[string]*DeviceEntry),
	}

	if err := r.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load device registry: %w", err)
		}
	}

	return r, nil
}

// DeviceID returns the stable ID for a device, creating one on first
// sight.
func (r *Registry) DeviceID(info DeviceInfo) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identityKey(info)
	if entry, ok := r.data[key]; ok {
		return entry.ID
	}

	entry := &DeviceEntry{
		ID:          uuid.New().String(),
		IdentityKey: key,
		Transport:   info.Transport,
		VID:         info.VID,
		PID:         info.PID,
		Port:        info.Port,
		Host:        info.Host,
		TCPPort:     info.TCPPort,
		Description: info.Description,
	}
	r.data[key] = entry

	if err := r.save(); err != nil {
		// Non-fatal: the ID is still usable, the next save retries.
		fmt.Printf("Warning: failed to save device registry: %v\n", err)
	}

	return entry.ID
}

// DeviceName returns the operator-assigned name, or "" if unset.
func (r *Registry) DeviceName(deviceID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.data {
		if entry.ID == deviceID {
			return entry.Name
		}
	}
	return ""
}

// SetDeviceName stores an operator-assigned name for a device.
func (r *Registry) SetDeviceName(deviceID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.data {
		if entry.ID == deviceID {
			entry.Name = name
			if err := r.save(); err != nil {
				fmt.Printf("Warning: failed to save device registry: %v\n", err)
			}
			return true
		}
	}
	return false
}

// EntryByID returns a copy of the stored entry, or nil.
func (r *Registry) EntryByID(deviceID string) *DeviceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.data {
		if entry.ID == deviceID {
			c := *entry
			return &c
		}
	}
	return nil
}

// Remove forgets a device.
func (r *Registry) Remove(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.data {
		if entry.ID == deviceID {
			delete(r.data, key)
			if err := r.save(); err != nil {
				fmt.Printf("Warning: failed to save device registry: %v\n", err)
			}
			return true
		}
	}
	return false
}

// All returns a copy of every registered device.
func (r *Registry) All() map[string]*DeviceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*DeviceEntry, len(r.data))
	for k, v := range r.data {
		c := *v
		out[k] = &c
	}
	return out
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &r.data)
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.filePath, data, 0644)
}

// identityKey builds a stable key from the strongest identity each
// transport offers.
func identityKey(info DeviceInfo) string {
	switch info.Transport {
	case "usb":
		if info.VID != 0 && info.PID != 0 {
			return fmt.Sprintf("usb:%04X:%04X", info.VID, info.PID)
		}
	case "serial":
		if info.Port != "" {
			return fmt.Sprintf("serial:%s", info.Port)
		}
	case "network":
		if info.Host != "" {
			return fmt.Sprintf("network:%s:%d", info.Host, info.TCPPort)
		}
	}

	hash := md5.Sum([]byte(info.Description))
	return fmt.Sprintf("hash:%x", hash)
}
