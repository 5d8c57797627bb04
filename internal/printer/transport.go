package printer

import "context"

// EndpointDirection mirrors the USB descriptor direction bit.
type EndpointDirection int

const (
	DirectionIn EndpointDirection = iota
	DirectionOut
)

// TransferType mirrors the USB descriptor transfer type.
type TransferType int

const (
	TransferControl TransferType = iota
	TransferIsochronous
	TransferBulk
	TransferInterrupt
)

// EndpointDesc describes one endpoint within an alternate setting.
type EndpointDesc struct {
	Number    int
	Direction EndpointDirection
	Transfer  TransferType
}

// AltSettingDesc describes one alternate setting of an interface.
type AltSettingDesc struct {
	Alternate int
	Endpoints []EndpointDesc
}

// InterfaceDesc describes one interface of the active configuration.
// Slices preserve descriptor declaration order; endpoint selection
// depends on it.
type InterfaceDesc struct {
	Number      int
	AltSettings []AltSettingDesc
}

// EndpointWriter is a claimed host-to-device channel.
type EndpointWriter interface {
	// Write transmits data, honoring ctx for cancellation/deadline.
	Write(ctx context.Context, data []byte) (int, error)
	Close() error
}

// Device is an opened device whose descriptors can be walked and whose
// endpoints can be claimed. Implementations: gousb (production), fakes
// (tests).
type Device interface {
	// Description identifies the device for logs and the registry.
	Description() string
	// Configure selects the default configuration if none is active.
	Configure() error
	// Interfaces lists the active configuration's interfaces in
	// declaration order.
	Interfaces() []InterfaceDesc
	// ClaimEndpoint claims an interface/alternate and opens the given
	// OUT endpoint on it.
	ClaimEndpoint(ifaceNum, alt, endpoint int) (EndpointWriter, error)
	Close() error
}

// Transport is the host boundary for device-level access.
type Transport interface {
	// Available reports whether this transport can be used at all,
	// detectable before any connect attempt.
	Available() bool
	// SelectDevice prompts for / picks a device. A cancelled or empty
	// selection returns ErrNoDeviceSelected.
	SelectDevice(ctx context.Context) (Device, error)
	Close() error
}

// findBulkOut walks interfaces, alternates, and endpoints in
// declaration order and returns the coordinates of the first bulk OUT
// endpoint. First match wins; there is no "best" match.
func findBulkOut(ifaces []InterfaceDesc) (ifaceNum, alt, endpoint int, err error) {
	for _, iface := range ifaces {
		for _, setting := range iface.AltSettings {
			for _, ep := range setting.Endpoints {
				if ep.Direction == DirectionOut && ep.Transfer == TransferBulk {
					return iface.Number, setting.Alternate, ep.Number, nil
				}
			}
		}
	}
	return 0, 0, 0, ErrNoBulkOutEndpoint
}
