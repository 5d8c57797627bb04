package printer

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaudRate is what most ESC/POS serial printers ship with.
const DefaultBaudRate = 9600

// NewSerialSession opens a serial port and wraps it in a Session. The
// endpoint coordinates stay zero; serial links have no descriptors to
// walk.
func NewSerialSession(portPath string, baud int, timeout time.Duration) (*Session, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	port, err := serial.OpenPort(&serial.Config{
		Name: portPath,
		Baud: baud,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portPath, err)
	}

	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	return &Session{
		endpoint: &serialEndpoint{port: port},
		timeout:  timeout,
	}, nil
}

// serialEndpoint adapts a serial port to EndpointWriter. Serial writes
// have no native cancellation, so the context is only consulted
// between the call and the write.
type serialEndpoint struct {
	port *serial.Port
}

func (e *serialEndpoint) Write(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return e.port.Write(data)
}

func (e *serialEndpoint) Close() error {
	return e.port.Close()
}

// scanSerialPorts lists serial ports that can actually be opened.
// Ports held by other processes or without hardware behind them are
// skipped.
func scanSerialPorts() []string {
	var candidates []string

	switch runtime.GOOS {
	case "darwin":
		skipPatterns := []string{"Bluetooth", "Modem", "SPP", "DialIn", "Callout", "KeySerial", "debug-console"}

		cuPorts, _ := filepath.Glob("/dev/cu.*")
		ttyPorts, _ := filepath.Glob("/dev/tty.*")
		for _, port := range append(cuPorts, ttyPorts...) {
			skip := false
			for _, pattern := range skipPatterns {
				if strings.Contains(port, pattern) {
					skip = true
					break
				}
			}
			if !skip {
				candidates = append(candidates, port)
			}
		}

	case "linux":
		usbPorts, _ := filepath.Glob("/dev/ttyUSB*")
		acmPorts, _ := filepath.Glob("/dev/ttyACM*")
		candidates = append(candidates, usbPorts...)
		candidates = append(candidates, acmPorts...)

	case "windows":
		for i := 1; i <= 256; i++ {
			candidates = append(candidates, fmt.Sprintf("COM%d", i))
		}
	}

	var ports []string
	for _, portPath := range candidates {
		port, err := serial.OpenPort(&serial.Config{Name: portPath, Baud: DefaultBaudRate})
		if err != nil {
			continue
		}
		port.Close()
		ports = append(ports, portPath)
	}
	return ports
}
