package printer

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultNetworkPort is the RAW/JetDirect port most network thermal
// printers listen on.
const DefaultNetworkPort = 9100

// NewNetworkSession dials a RAW-printing TCP printer and wraps the
// connection in a Session.
func NewNetworkSession(host string, port int, timeout time.Duration) (*Session, error) {
	if port <= 0 {
		port = DefaultNetworkPort
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer %s: %w", addr, err)
	}

	return &Session{
		endpoint: &networkEndpoint{conn: conn},
		timeout:  timeout,
	}, nil
}

// networkEndpoint adapts a TCP connection to EndpointWriter, mapping
// the context deadline onto the socket write deadline.
type networkEndpoint struct {
	conn net.Conn
}

func (e *networkEndpoint) Write(ctx context.Context, data []byte) (int, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := e.conn.SetWriteDeadline(deadline); err != nil {
			return 0, err
		}
		defer e.conn.SetWriteDeadline(time.Time{})
	}

	n, err := e.conn.Write(data)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return n, context.DeadlineExceeded
		}
		return n, err
	}
	return n, nil
}

func (e *networkEndpoint) Close() error {
	return e.conn.Close()
}
