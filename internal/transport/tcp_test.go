package transport

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"
)

func TestTCPTransportDefaultPort(t *testing.T) {
	tr := NewTCPTransport("gateway.local", 0)
	if got, want := tr.StatusTarget(), "gateway.local:8899"; got != want {
		t.Fatalf("unexpected status target: got %s want %s", got, want)
	}
}

func TestTCPTransportRequiresHost(t *testing.T) {
	tr := NewTCPTransport("", 0)
	if err := tr.Connect(context.Background()); err == nil {
		t.Fatalf("expected connect error for empty host")
	}
	if _, err := tr.ReadChunk(context.Background()); err == nil {
		t.Fatalf("expected read error when not connected")
	}
	if err := tr.Write(context.Background(), []byte{0x01}); err == nil {
		t.Fatalf("expected write error when not connected")
	}
}

func TestTCPTransportChunksAndWrites(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		acceptCh <- acceptResult{conn: conn, err: err}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	tr := NewTCPTransport("127.0.0.1", port)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Close()

	accepted := <-acceptCh
	if accepted.err != nil {
		t.Fatalf("accept: %v", accepted.err)
	}
	gateway := accepted.conn
	defer gateway.Close()

	header := []byte{0xEF, 0xDD, 0x03}
	if _, err := gateway.Write(header); err != nil {
		t.Fatalf("gateway write: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	chunk, err := tr.ReadChunk(ctx)
	if err != nil {
		t.Fatalf("read chunk: %v", err)
	}
	if !bytes.Equal(chunk, header) {
		t.Fatalf("unexpected chunk: got %x want %x", chunk, header)
	}

	payload := []byte{0x28, 0x00, 0x00, 0x00}
	if _, err := gateway.Write(payload); err != nil {
		t.Fatalf("gateway write: %v", err)
	}
	chunk, err = tr.ReadChunk(ctx)
	if err != nil {
		t.Fatalf("read chunk: %v", err)
	}
	if !bytes.Equal(chunk, payload) {
		t.Fatalf("unexpected chunk: got %x want %x", chunk, payload)
	}

	frame := []byte{0xEF, 0xDD, 0x0A, 0x00, 0x64, 0x64, 0x01}
	if err := tr.Write(ctx, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = gateway.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 32)
	n, err := gateway.Read(buf)
	if err != nil {
		t.Fatalf("gateway read: %v", err)
	}
	if !bytes.Equal(buf[:n], frame) {
		t.Fatalf("unexpected frame at gateway: got %x want %x", buf[:n], frame)
	}
}

func TestTCPTransportCloseIsIdempotent(t *testing.T) {
	tr := NewTCPTransport("127.0.0.1", 1)
	if err := tr.Close(); err != nil {
		t.Fatalf("close on unconnected transport: %v", err)
	}
	if tr.Connected() {
		t.Fatalf("expected transport to stay disconnected")
	}
}
