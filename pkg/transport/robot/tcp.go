package robot

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// TCPTransport is the native adapter: a plain TCP socket speaking the
// robot's newline-delimited line protocol.
type TCPTransport struct {
	host        string
	port        int
	dialTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewTCPTransport builds a TCP adapter for host:port. dialTimeout bounds
// only the initial connect; per-operation timeouts come from the ctx
// passed to WriteLine/ReadLine.
func NewTCPTransport(host string, port int, dialTimeout time.Duration) *TCPTransport {
	return &TCPTransport{host: host, port: port, dialTimeout: dialTimeout}
}

func (t *TCPTransport) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", t.host, t.port))
	if err != nil {
		return fmt.Errorf("dialing %s:%d: %w", t.host, t.port, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.mu.Unlock()
	return nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	return err
}

func (t *TCPTransport) WriteLine(ctx context.Context, line string) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("robot transport: not connected")
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}

	_, err := conn.Write([]byte(line + "\n"))
	return err
}

func (t *TCPTransport) ReadLine(ctx context.Context) (string, error) {
	t.mu.Lock()
	conn := t.conn
	reader := t.reader
	t.mu.Unlock()
	if conn == nil || reader == nil {
		return "", fmt.Errorf("robot transport: not connected")
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
