// Package printer owns the device session: discovery, endpoint
// selection, and serialized transmission of encoded receipts.
package printer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultSendTimeout bounds a single transfer. The underlying bulk
// transfer has no inherent deadline; an unplugged printer would hang a
// send forever without this.
const DefaultSendTimeout = 10 * time.Second

// Session is an open connection to one printer with a claimed bulk OUT
// endpoint. Transfers on a session are serialized: a second Send while
// one is in flight is rejected with ErrBusy rather than interleaved.
type Session struct {
	// InterfaceNumber and EndpointNumber record the claimed endpoint
	// coordinates for diagnostics.
	InterfaceNumber int
	EndpointNumber  int

	device   Device
	endpoint EndpointWriter
	timeout  time.Duration

	busy   atomic.Bool
	closed atomic.Bool
}

// openSession runs the full connect flow: capability probe, device
// selection, configuration, endpoint discovery, claim. On any failure
// the device is closed again so no partially-open session remains.
func openSession(ctx context.Context, t Transport, timeout time.Duration) (*Session, error) {
	if !t.Available() {
		return nil, ErrUnsupportedTransport
	}

	dev, err := t.SelectDevice(ctx)
	if err != nil {
		return nil, err
	}

	if err := dev.Configure(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to select configuration: %w", err)
	}

	ifaceNum, alt, epNum, err := findBulkOut(dev.Interfaces())
	if err != nil {
		dev.Close()
		return nil, err
	}

	endpoint, err := dev.ClaimEndpoint(ifaceNum, alt, epNum)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", ifaceNum, err)
	}

	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	return &Session{
		InterfaceNumber: ifaceNum,
		EndpointNumber:  epNum,
		device:          dev,
		endpoint:        endpoint,
		timeout:         timeout,
	}, nil
}

// IsOpen reports whether the session can still transmit.
func (s *Session) IsOpen() bool {
	return s != nil && !s.closed.Load()
}

// Send transmits one encoded document over the claimed endpoint. It
// does not retry; a failed send requires a fresh connect-then-send.
func (s *Session) Send(ctx context.Context, data []byte) error {
	if !s.IsOpen() {
		return ErrNotConnected
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.endpoint.Write(ctx, data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTransferTimeout, s.timeout)
		}
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if n < len(data) {
		return fmt.Errorf("%w: short write (%d of %d bytes)", ErrTransferFailed, n, len(data))
	}
	return nil
}

// Close releases the endpoint and the device. Safe to call twice.
func (s *Session) Close() error {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if s.endpoint != nil {
		if err := s.endpoint.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.device != nil {
		if err := s.device.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

