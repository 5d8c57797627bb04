package printer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeWriter is a scriptable EndpointWriter.
type fakeWriter struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool

	// block, when set, makes Write wait until release is closed or the
	// context expires.
	block     bool
	started   chan struct{}
	startOnce sync.Once
	release   chan struct{}

	shortWrite bool
	err        error
}

func newBlockingWriter() *fakeWriter {
	return &fakeWriter{
		block:   true,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (w *fakeWriter) Write(ctx context.Context, data []byte) (int, error) {
	if w.block {
		w.startOnce.Do(func() { close(w.started) })
		select {
		case <-w.release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if w.err != nil {
		return 0, w.err
	}

	w.mu.Lock()
	w.written = append(w.written, append([]byte(nil), data...))
	w.mu.Unlock()

	if w.shortWrite {
		return len(data) - 1, nil
	}
	return len(data), nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// fakeDevice exposes a fixed descriptor tree and hands out a fakeWriter.
type fakeDevice struct {
	ifaces     []InterfaceDesc
	writer     *fakeWriter
	configured bool
	closed     bool

	claimedIface    int
	claimedAlt      int
	claimedEndpoint int
}

func (d *fakeDevice) Description() string { return "fake thermal printer" }

func (d *fakeDevice) Configure() error {
	d.configured = true
	return nil
}

func (d *fakeDevice) Interfaces() []InterfaceDesc { return d.ifaces }

func (d *fakeDevice) ClaimEndpoint(ifaceNum, alt, endpoint int) (EndpointWriter, error) {
	d.claimedIface = ifaceNum
	d.claimedAlt = alt
	d.claimedEndpoint = endpoint
	if d.writer == nil {
		d.writer = &fakeWriter{}
	}
	return d.writer, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

type fakeTransport struct {
	available bool
	device    *fakeDevice
	selectErr error
}

func (t *fakeTransport) Available() bool { return t.available }

func (t *fakeTransport) SelectDevice(ctx context.Context) (Device, error) {
	if t.selectErr != nil {
		return nil, t.selectErr
	}
	return t.device, nil
}

func (t *fakeTransport) Close() error { return nil }

// printerIfaces is a typical ESC/POS descriptor tree: an interrupt IN
// status endpoint before the bulk pair, then a vendor interface with
// another bulk OUT that must never win.
func printerIfaces() []InterfaceDesc {
	return []InterfaceDesc{
		{
			Number: 0,
			AltSettings: []AltSettingDesc{
				{
					Alternate: 0,
					Endpoints: []EndpointDesc{
						{Number: 1, Direction: DirectionIn, Transfer: TransferInterrupt},
						{Number: 1, Direction: DirectionOut, Transfer: TransferBulk},
						{Number: 2, Direction: DirectionIn, Transfer: TransferBulk},
					},
				},
			},
		},
		{
			Number: 1,
			AltSettings: []AltSettingDesc{
				{
					Alternate: 0,
					Endpoints: []EndpointDesc{
						{Number: 3, Direction: DirectionOut, Transfer: TransferBulk},
					},
				},
			},
		},
	}
}

func TestFindBulkOutFirstMatchWins(t *testing.T) {
	ifaceNum, alt, endpoint, err := findBulkOut(printerIfaces())
	if err != nil {
		t.Fatalf("findBulkOut: %v", err)
	}
	if ifaceNum != 0 || alt != 0 || endpoint != 1 {
		t.Errorf("expected interface 0 alt 0 endpoint 1, got %d/%d/%d", ifaceNum, alt, endpoint)
	}
}

func TestFindBulkOutSkipsNonBulkNonOut(t *testing.T) {
	ifaces := []InterfaceDesc{
		{
			Number: 0,
			AltSettings: []AltSettingDesc{
				{
					Alternate: 0,
					Endpoints: []EndpointDesc{
						{Number: 1, Direction: DirectionOut, Transfer: TransferInterrupt},
						{Number: 2, Direction: DirectionIn, Transfer: TransferBulk},
					},
				},
				{
					Alternate: 1,
					Endpoints: []EndpointDesc{
						{Number: 2, Direction: DirectionOut, Transfer: TransferBulk},
					},
				},
			},
		},
	}

	ifaceNum, alt, endpoint, err := findBulkOut(ifaces)
	if err != nil {
		t.Fatalf("findBulkOut: %v", err)
	}
	if ifaceNum != 0 || alt != 1 || endpoint != 2 {
		t.Errorf("expected interface 0 alt 1 endpoint 2, got %d/%d/%d", ifaceNum, alt, endpoint)
	}
}

func TestFindBulkOutMissing(t *testing.T) {
	ifaces := []InterfaceDesc{
		{
			Number: 0,
			AltSettings: []AltSettingDesc{
				{
					Alternate: 0,
					Endpoints: []EndpointDesc{
						{Number: 1, Direction: DirectionIn, Transfer: TransferBulk},
						{Number: 2, Direction: DirectionOut, Transfer: TransferInterrupt},
					},
				},
			},
		},
	}

	_, _, _, err := findBulkOut(ifaces)
	if !errors.Is(err, ErrNoBulkOutEndpoint) {
		t.Errorf("expected ErrNoBulkOutEndpoint, got %v", err)
	}
}

func TestOpenSessionClaimsFirstBulkOut(t *testing.T) {
	dev := &fakeDevice{ifaces: printerIfaces()}
	transport := &fakeTransport{available: true, device: dev}

	s, err := openSession(context.Background(), transport, time.Second)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer s.Close()

	if !dev.configured {
		t.Error("device was not configured")
	}
	if dev.claimedIface != 0 || dev.claimedAlt != 0 || dev.claimedEndpoint != 1 {
		t.Errorf("claimed %d/%d/%d, expected 0/0/1",
			dev.claimedIface, dev.claimedAlt, dev.claimedEndpoint)
	}
	if s.InterfaceNumber != 0 || s.EndpointNumber != 1 {
		t.Errorf("session records %d/%d, expected 0/1", s.InterfaceNumber, s.EndpointNumber)
	}
}

func TestOpenSessionUnavailableTransport(t *testing.T) {
	transport := &fakeTransport{available: false}

	_, err := openSession(context.Background(), transport, time.Second)
	if !errors.Is(err, ErrUnsupportedTransport) {
		t.Errorf("expected ErrUnsupportedTransport, got %v", err)
	}
}

func TestOpenSessionNoDeviceSelected(t *testing.T) {
	transport := &fakeTransport{available: true, selectErr: ErrNoDeviceSelected}

	_, err := openSession(context.Background(), transport, time.Second)
	if !errors.Is(err, ErrNoDeviceSelected) {
		t.Errorf("expected ErrNoDeviceSelected, got %v", err)
	}
}

func TestOpenSessionNoBulkOutClosesDevice(t *testing.T) {
	dev := &fakeDevice{ifaces: []InterfaceDesc{
		{
			Number: 0,
			AltSettings: []AltSettingDesc{
				{
					Alternate: 0,
					Endpoints: []EndpointDesc{
						{Number: 1, Direction: DirectionIn, Transfer: TransferBulk},
					},
				},
			},
		},
	}}
	transport := &fakeTransport{available: true, device: dev}

	s, err := openSession(context.Background(), transport, time.Second)
	if !errors.Is(err, ErrNoBulkOutEndpoint) {
		t.Fatalf("expected ErrNoBulkOutEndpoint, got %v", err)
	}
	if s != nil {
		t.Error("expected no session after endpoint discovery failure")
	}
	if !dev.closed {
		t.Error("device left open after endpoint discovery failure")
	}
}

func TestSessionSendWritesPayload(t *testing.T) {
	dev := &fakeDevice{ifaces: printerIfaces()}
	transport := &fakeTransport{available: true, device: dev}

	s, err := openSession(context.Background(), transport, time.Second)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer s.Close()

	payload := []byte{0x1B, 0x40, 'h', 'i', 0x0A}
	if err := s.Send(context.Background(), payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(dev.writer.written) != 1 {
		t.Fatalf("expected 1 write, got %d", len(dev.writer.written))
	}
	if string(dev.writer.written[0]) != string(payload) {
		t.Errorf("written %v, expected %v", dev.writer.written[0], payload)
	}
}

func TestSessionSendBusy(t *testing.T) {
	writer := newBlockingWriter()
	dev := &fakeDevice{ifaces: printerIfaces(), writer: writer}
	transport := &fakeTransport{available: true, device: dev}

	s, err := openSession(context.Background(), transport, 5*time.Second)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer s.Close()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Send(context.Background(), []byte("first"))
	}()

	<-writer.started

	if err := s.Send(context.Background(), []byte("second")); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy while a transfer is in flight, got %v", err)
	}

	close(writer.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	// Slot is free again once the transfer finished.
	if err := s.Send(context.Background(), []byte("third")); err != nil {
		t.Errorf("send after release: %v", err)
	}
}

func TestSessionSendTimeout(t *testing.T) {
	writer := newBlockingWriter()
	dev := &fakeDevice{ifaces: printerIfaces(), writer: writer}
	transport := &fakeTransport{available: true, device: dev}

	s, err := openSession(context.Background(), transport, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer s.Close()

	err = s.Send(context.Background(), []byte("stuck"))
	if !errors.Is(err, ErrTransferTimeout) {
		t.Errorf("expected ErrTransferTimeout, got %v", err)
	}
}

func TestSessionSendShortWrite(t *testing.T) {
	dev := &fakeDevice{ifaces: printerIfaces(), writer: &fakeWriter{shortWrite: true}}
	transport := &fakeTransport{available: true, device: dev}

	s, err := openSession(context.Background(), transport, time.Second)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer s.Close()

	err = s.Send(context.Background(), []byte("receipt"))
	if !errors.Is(err, ErrTransferFailed) {
		t.Errorf("expected ErrTransferFailed on short write, got %v", err)
	}
}

func TestSessionSendAfterClose(t *testing.T) {
	dev := &fakeDevice{ifaces: printerIfaces()}
	transport := &fakeTransport{available: true, device: dev}

	s, err := openSession(context.Background(), transport, time.Second)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !dev.closed || !dev.writer.closed {
		t.Error("close did not release endpoint and device")
	}

	if err := s.Send(context.Background(), []byte("late")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after close, got %v", err)
	}

	// Second close is a no-op.
	if err := s.Close(); err != nil {
		t.Errorf("double close: %v", err)
	}
}

func TestSessionSendWrapsTransportError(t *testing.T) {
	cause := errors.New("libusb: bad access [code -3]")
	dev := &fakeDevice{ifaces: printerIfaces(), writer: &fakeWriter{err: cause}}
	transport := &fakeTransport{available: true, device: dev}

	s, err := openSession(context.Background(), transport, time.Second)
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer s.Close()

	err = s.Send(context.Background(), []byte("x"))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if !IsPermissionDenied(err) {
		t.Errorf("permission failure not detected in %v", err)
	}
}

func TestUserMessageKinds(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnsupportedTransport, "no raw USB support"},
		{ErrNoDeviceSelected, "No printer was selected"},
		{ErrNoBulkOutEndpoint, "not a supported printer"},
		{ErrNotConnected, "not connected"},
		{ErrBusy, "still being sent"},
		{ErrTransferTimeout, "did not respond in time"},
		{errors.New("libusb: permission denied"), "denied access"},
	}

	for _, tc := range cases {
		got := UserMessage(tc.err)
		if tc.want == "" {
			if got != "" {
				t.Errorf("UserMessage(nil) = %q", got)
			}
			continue
		}
		if !strings.Contains(strings.ToLower(got), strings.ToLower(tc.want)) {
			t.Errorf("UserMessage(%v) = %q, expected it to mention %q", tc.err, got, tc.want)
		}
	}
}
