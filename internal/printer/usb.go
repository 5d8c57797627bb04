package printer

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/gousb"
)

// USBTransport selects and opens thermal printers over libusb. A zero
// VID/PID pair means "first printer-class device on the bus".
type USBTransport struct {
	VID uint16
	PID uint16
}

// NewUSBTransport creates a transport pinned to one VID/PID, or an
// auto-selecting one when both are zero.
func NewUSBTransport(vid, pid uint16) *USBTransport {
	return &USBTransport{VID: vid, PID: pid}
}

// Available probes whether libusb can enumerate the bus at all. The
// probe opens nothing; it only asks for the device list.
func (t *USBTransport) Available() bool {
	ctx := gousb.NewContext()
	defer ctx.Close()

	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return false
	})
	return err == nil
}

// SelectDevice opens the matching device. With a pinned VID/PID only
// that device matches; otherwise the first printer-class device on the
// bus wins. Extra matches are closed again immediately.
func (t *USBTransport) SelectDevice(ctx context.Context) (Device, error) {
	usbCtx := gousb.NewContext()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if t.VID != 0 || t.PID != 0 {
			return desc.Vendor == gousb.ID(t.VID) && desc.Product == gousb.ID(t.PID)
		}
		return isPrinterClass(desc)
	})
	if err != nil {
		for _, dev := range devices {
			dev.Close()
		}
		usbCtx.Close()
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	if len(devices) == 0 {
		usbCtx.Close()
		if t.VID != 0 || t.PID != 0 {
			return nil, fmt.Errorf("%w: device %04X:%04X not found", ErrNoDeviceSelected, t.VID, t.PID)
		}
		return nil, fmt.Errorf("%w: no printer-class USB device found", ErrNoDeviceSelected)
	}

	dev := devices[0]
	for _, extra := range devices[1:] {
		extra.Close()
	}

	// Let libusb detach kernel drivers (usblp) that would otherwise
	// hold the interface.
	dev.SetAutoDetach(true)

	return &usbDevice{ctx: usbCtx, dev: dev}, nil
}

// Close is a no-op; each selected device carries its own context.
func (t *USBTransport) Close() error {
	return nil
}

// isPrinterClass reports whether the device or any of its interfaces
// declares USB class 7 (printer).
func isPrinterClass(desc *gousb.DeviceDesc) bool {
	if desc.Class == gousb.ClassPrinter {
		return true
	}
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// usbDevice adapts *gousb.Device to the Device interface.
type usbDevice struct {
	ctx *gousb.Context
	dev *gousb.Device
	cfg *gousb.Config
}

func (d *usbDevice) Description() string {
	desc := d.dev.Desc
	manufacturer, _ := d.dev.Manufacturer()
	product, _ := d.dev.Product()

	if manufacturer != "" || product != "" {
		return fmt.Sprintf("USB: %s %s (%04X:%04X)", manufacturer, product, desc.Vendor, desc.Product)
	}
	return fmt.Sprintf("USB: %04X:%04X", desc.Vendor, desc.Product)
}

// Configure selects the active configuration, falling back to the
// lowest-numbered one when the device reports none.
func (d *usbDevice) Configure() error {
	num, err := d.dev.ActiveConfigNum()
	if err != nil || num <= 0 {
		num = firstConfigNum(d.dev.Desc)
		if num <= 0 {
			return fmt.Errorf("device has no configurations")
		}
	}

	cfg, err := d.dev.Config(num)
	if err != nil {
		return fmt.Errorf("failed to set config %d: %w", num, err)
	}
	d.cfg = cfg
	return nil
}

func firstConfigNum(desc *gousb.DeviceDesc) int {
	nums := make([]int, 0, len(desc.Configs))
	for n := range desc.Configs {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	if len(nums) == 0 {
		return 0
	}
	return nums[0]
}

// Interfaces flattens the active configuration's descriptor tree.
// gousb exposes endpoints as a map, so they are ordered by endpoint
// number to keep selection deterministic.
func (d *usbDevice) Interfaces() []InterfaceDesc {
	if d.cfg == nil {
		return nil
	}

	ifaces := make([]InterfaceDesc, 0, len(d.cfg.Desc.Interfaces))
	for _, iface := range d.cfg.Desc.Interfaces {
		id := InterfaceDesc{Number: iface.Number}
		for _, alt := range iface.AltSettings {
			ad := AltSettingDesc{Alternate: alt.Alternate}
			for _, ep := range sortedEndpoints(alt) {
				ad.Endpoints = append(ad.Endpoints, EndpointDesc{
					Number:    ep.Number,
					Direction: mapDirection(ep.Direction),
					Transfer:  mapTransfer(ep.TransferType),
				})
			}
			id.AltSettings = append(id.AltSettings, ad)
		}
		ifaces = append(ifaces, id)
	}
	return ifaces
}

func sortedEndpoints(alt gousb.InterfaceSetting) []gousb.EndpointDesc {
	eps := make([]gousb.EndpointDesc, 0, len(alt.Endpoints))
	for _, ep := range alt.Endpoints {
		eps = append(eps, ep)
	}
	sort.Slice(eps, func(i, j int) bool {
		return eps[i].Address < eps[j].Address
	})
	return eps
}

func mapDirection(d gousb.EndpointDirection) EndpointDirection {
	if d == gousb.EndpointDirectionOut {
		return DirectionOut
	}
	return DirectionIn
}

func mapTransfer(t gousb.TransferType) TransferType {
	switch t {
	case gousb.TransferTypeBulk:
		return TransferBulk
	case gousb.TransferTypeInterrupt:
		return TransferInterrupt
	case gousb.TransferTypeIsochronous:
		return TransferIsochronous
	default:
		return TransferControl
	}
}

func (d *usbDevice) ClaimEndpoint(ifaceNum, alt, endpoint int) (EndpointWriter, error) {
	if d.cfg == nil {
		return nil, fmt.Errorf("device not configured")
	}

	iface, err := d.cfg.Interface(ifaceNum, alt)
	if err != nil {
		return nil, err
	}

	ep, err := iface.OutEndpoint(endpoint)
	if err != nil {
		iface.Close()
		return nil, err
	}

	return &usbEndpoint{iface: iface, ep: ep}, nil
}

func (d *usbDevice) Close() error {
	if d.cfg != nil {
		d.cfg.Close()
		d.cfg = nil
	}
	if d.dev != nil {
		d.dev.Close()
		d.dev = nil
	}
	if d.ctx != nil {
		d.ctx.Close()
		d.ctx = nil
	}
	return nil
}

// usbEndpoint is a claimed bulk OUT endpoint.
type usbEndpoint struct {
	iface *gousb.Interface
	ep    *gousb.OutEndpoint
}

func (e *usbEndpoint) Write(ctx context.Context, data []byte) (int, error) {
	return e.ep.WriteContext(ctx, data)
}

func (e *usbEndpoint) Close() error {
	if e.iface != nil {
		e.iface.Close()
		e.iface = nil
	}
	return nil
}
