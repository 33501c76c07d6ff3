package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	defaultTCPPort         = 8899
	defaultTCPChunkBufSize = 256
	defaultTCPDialTimeout  = 6 * time.Second
)

// TCPTransport talks to a BLE-to-TCP gateway (an ESP32 proxy or similar)
// that relays the kettle's serial characteristic over a socket. The gateway
// must forward each notification as its own segment; the framing layer
// reads chunk boundaries, not a byte stream.
type TCPTransport struct {
	host string
	port int

	mu      sync.Mutex
	conn    net.Conn
	writeMu sync.Mutex
}

func NewTCPTransport(host string, port int) *TCPTransport {
	if port == 0 {
		port = defaultTCPPort
	}

	return &TCPTransport{host: host, port: port}
}

func (t *TCPTransport) Name() string {
	return "tcp"
}

func (t *TCPTransport) SetHost(host string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.host = host
}

func (t *TCPTransport) Host() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.host
}

func (t *TCPTransport) StatusTarget() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.host == "" {
		return ""
	}

	return net.JoinHostPort(t.host, fmt.Sprintf("%d", t.port))
}

func (t *TCPTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *TCPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := ""
	if t.host != "" {
		target = net.JoinHostPort(t.host, fmt.Sprintf("%d", t.port))
	}
	logger := transportLogger("tcp", "target", target)

	if t.conn != nil {
		logger.Debug("connect skipped: already connected")

		return nil
	}

	if t.host == "" {
		logger.Warn("connect failed: host is empty")

		return errors.New("tcp host is empty")
	}

	dialer := net.Dialer{Timeout: defaultTCPDialTimeout}
	logger.Info("connecting")
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(t.host, fmt.Sprintf("%d", t.port)))
	if err != nil {
		logger.Warn("connect failed", "error", err)

		return fmt.Errorf("dial tcp: %w", err)
	}
	t.conn = conn
	logger.Info("connected", "remote", conn.RemoteAddr().String())

	return nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := ""
	if t.host != "" {
		target = net.JoinHostPort(t.host, fmt.Sprintf("%d", t.port))
	}
	logger := transportLogger("tcp", "target", target)

	if t.conn == nil {
		logger.Debug("close skipped: not connected")

		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		logger.Warn("close failed", "error", err)

		return err
	}
	logger.Info("closed")

	return err
}

func (t *TCPTransport) ReadChunk(ctx context.Context) ([]byte, error) {
	logger := transportLogger("tcp")
	conn, err := t.currentConn()
	if err != nil {
		logger.Debug("read chunk failed: not connected", "error", err)

		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, defaultTCPChunkBufSize)
	n, err := conn.Read(buf)
	if err != nil {
		logger.Debug("read chunk failed", "error", err)

		return nil, err
	}
	chunk := make([]byte, n)
	copy(chunk, buf[:n])
	logger.Debug("read chunk", "len", n)

	return chunk, nil
}

func (t *TCPTransport) Write(ctx context.Context, frame []byte) error {
	logger := transportLogger("tcp")
	if len(frame) == 0 {
		logger.Warn("write failed: frame is empty")

		return errors.New("frame is empty")
	}
	conn, err := t.currentConn()
	if err != nil {
		logger.Debug("write failed: not connected", "error", err)

		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := conn.Write(frame); err != nil {
		logger.Warn("write failed", "frame_len", len(frame), "error", err)

		return fmt.Errorf("write frame: %w", err)
	}
	logger.Debug("write", "frame_len", len(frame))

	return nil
}

func (t *TCPTransport) currentConn() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil, errors.New("transport is not connected")
	}

	return t.conn, nil
}
