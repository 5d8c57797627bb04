package printer

import (
	"errors"
	"strings"
)

// Error kinds surfaced by the session layer. All are reported to the
// caller; the printing workflow maps them to user-visible guidance via
// UserMessage.
var (
	// ErrUnsupportedTransport: the host has no usable raw USB stack.
	ErrUnsupportedTransport = errors.New("raw USB access is not available in this environment")
	// ErrNoDeviceSelected: device selection was cancelled or matched nothing.
	ErrNoDeviceSelected = errors.New("no device selected")
	// ErrNoBulkOutEndpoint: enumeration found no bulk OUT endpoint.
	ErrNoBulkOutEndpoint = errors.New("no bulk OUT endpoint on device")
	// ErrNotConnected: send attempted without an open session.
	ErrNotConnected = errors.New("printer not connected")
	// ErrTransferFailed: the transport rejected or aborted the transfer.
	ErrTransferFailed = errors.New("transfer to printer failed")
	// ErrTransferTimeout: the transfer did not complete in time.
	ErrTransferTimeout = errors.New("transfer to printer timed out")
	// ErrBusy: a transfer is already in flight on this session.
	ErrBusy = errors.New("a transfer is already in progress")
)

// IsPermissionDenied reports whether a transfer failure was caused by
// the OS driver denying access, which requires operator remediation
// rather than a retry.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "libusb: bad access")
}

// UserMessage turns a session error into actionable operator guidance.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedTransport):
		return "This system has no raw USB support. Install libusb and restart the engine."
	case errors.Is(err, ErrNoDeviceSelected):
		return "No printer was selected. Plug in the receipt printer and connect again."
	case errors.Is(err, ErrNoBulkOutEndpoint):
		return "The selected device is not a supported printer (no bulk OUT endpoint)."
	case errors.Is(err, ErrNotConnected):
		return "Printer is not connected. Connect the printer before printing."
	case errors.Is(err, ErrBusy):
		return "A receipt is still being sent to the printer. Wait for it to finish."
	case errors.Is(err, ErrTransferTimeout):
		return "The printer did not respond in time. Check the cable and try again."
	case IsPermissionDenied(err):
		return "The OS denied access to the printer. Reconfigure the USB driver permissions (e.g. udev rules) and reconnect."
	default:
		return "Printing failed: " + err.Error()
	}
}
